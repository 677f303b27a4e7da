package handlers

import (
	"net/http"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/machinepulse/machinepulse/internal/http/viewmodels"
	"github.com/machinepulse/machinepulse/internal/http/views"
)

// HandleDashboard renders the authenticated shell. The charts, cards, and
// mock panels are static front-end assets; the gateway only contributes the
// session-derived header fields.
func (h *Handlers) HandleDashboard(c *echo.Context) error {
	snap := snapshotOrUnauthenticated(c)

	csrfToken, _ := c.Get(middleware.DefaultCSRFConfig.ContextKey).(string)
	data := viewmodels.DashboardViewData{
		CSRFToken: csrfToken,
		Toast:     popFlashToast(c),
	}
	if snap.User != nil {
		data.UserName = snap.User.Name
		data.UserEmail = snap.User.Email
		data.AvatarURL = snap.User.AvatarURL
		data.Role = snap.User.Role
		data.IsAdmin = snap.User.IsAdmin()
	}

	c.Response().Header().Set("Content-Type", "text/html; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	if err := views.DashboardPage(c.Response(), data); err != nil {
		return h.RenderError(c, err)
	}
	return nil
}

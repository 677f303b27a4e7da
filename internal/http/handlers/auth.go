package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/machinepulse/machinepulse/internal/http/authn"
	"github.com/machinepulse/machinepulse/internal/http/viewmodels"
	"github.com/machinepulse/machinepulse/internal/http/views"
	"github.com/machinepulse/machinepulse/internal/session"
)

func (h *Handlers) HandleLoginGet(c *echo.Context) error {
	if h.Registry == nil {
		return errors.New("session registry not configured")
	}

	ctx := c.Request().Context()

	m := h.Registry.Manager(ctx)
	if err := m.Bootstrap(ctx); err != nil {
		return err
	}
	if m.Snapshot().Authenticated() {
		return c.Redirect(http.StatusSeeOther, "/")
	}

	csrfToken, _ := c.Get(middleware.DefaultCSRFConfig.ContextKey).(string)
	data := viewmodels.LoginViewData{
		CSRFToken: csrfToken,
		Next:      authn.SanitizeNext(c.QueryParam("next")),
		Toast:     popFlashToast(c),
	}
	return h.renderLogin(c, http.StatusOK, data)
}

func (h *Handlers) HandleLoginPost(c *echo.Context) error {
	if h.Registry == nil {
		return errors.New("session registry not configured")
	}

	ctx := c.Request().Context()

	idToken := strings.TrimSpace(c.FormValue("id_token"))
	next := authn.SanitizeNext(c.FormValue("next"))

	csrfToken, _ := c.Get(middleware.DefaultCSRFConfig.ContextKey).(string)
	data := viewmodels.LoginViewData{
		CSRFToken: csrfToken,
		Next:      next,
	}

	if idToken == "" {
		data.ErrorMessage = "Sign-in did not complete. Please try again."
		return h.renderLogin(c, http.StatusBadRequest, data)
	}

	// Renew before the credential lands in the session, so a pre-login
	// session cannot be fixated onto the authenticated one.
	if err := h.Sessions.RenewToken(ctx); err != nil {
		return err
	}

	m := h.Registry.Manager(ctx)
	if err := m.LoginGoogle(ctx, idToken); err != nil {
		c.Logger().Info("google sign-in failed", "error", err)
		data.ErrorMessage = "Sign-in failed. Please try again."
		return h.renderLogin(c, http.StatusUnauthorized, data)
	}

	if next != "" {
		return c.Redirect(http.StatusSeeOther, next)
	}
	return c.Redirect(http.StatusSeeOther, "/")
}

func (h *Handlers) HandleLogoutPost(c *echo.Context) error {
	if h.Registry == nil {
		return errors.New("session registry not configured")
	}

	ctx := c.Request().Context()

	m := h.Registry.Manager(ctx)
	m.Logout(ctx)
	h.Registry.Drop(ctx)

	if err := h.Sessions.Destroy(ctx); err != nil {
		return err
	}
	setFlashToast(c, viewmodels.ToastViewData{
		Category: "success",
		Title:    "Signed out",
	})
	return redirect(c, "/login")
}

func (h *Handlers) renderLogin(c *echo.Context, status int, data viewmodels.LoginViewData) error {
	c.Response().Header().Set("Content-Type", "text/html; charset=utf-8")
	c.Response().WriteHeader(status)
	if err := views.LoginPage(c.Response(), data); err != nil {
		return h.RenderError(c, err)
	}
	return nil
}

func snapshotOrUnauthenticated(c *echo.Context) session.Snapshot {
	if snap, ok := authn.SnapshotFromContext(c); ok {
		return snap
	}
	return session.Snapshot{Status: session.StatusUnauthenticated}
}

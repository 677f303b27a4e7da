package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v5"

	"github.com/machinepulse/machinepulse/internal/backend"
	"github.com/machinepulse/machinepulse/internal/session"
)

type sessionUserJSON struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
	Role      string `json:"role,omitempty"`
}

type sessionJSON struct {
	Status             session.Status   `json:"status"`
	User               *sessionUserJSON `json:"user"`
	PendingRoleRequest bool             `json:"pending_role_request"`
}

func sessionJSONFromSnapshot(snap session.Snapshot) sessionJSON {
	out := sessionJSON{
		Status:             snap.Status,
		PendingRoleRequest: snap.PendingRoleRequest,
	}
	if snap.User != nil {
		out.User = &sessionUserJSON{
			ID:        snap.User.ID,
			Email:     snap.User.Email,
			Name:      snap.User.Name,
			AvatarURL: snap.User.AvatarURL,
			Role:      snap.User.Role,
		}
	}
	return out
}

// HandleSessionGet exposes the session snapshot to the front-end assets.
func (h *Handlers) HandleSessionGet(c *echo.Context) error {
	return c.JSON(http.StatusOK, sessionJSONFromSnapshot(snapshotOrUnauthenticated(c)))
}

// HandleAdminSessions reports gateway session stats. Admin only.
func (h *Handlers) HandleAdminSessions(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]int{"active_sessions": h.Registry.Len()})
}

// HandleRoleUpdate forwards a self-service role request to the backend. A
// null role clears the assignment.
func (h *Handlers) HandleRoleUpdate(c *echo.Context) error {
	var req struct {
		Role *string `json:"role"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	ctx := c.Request().Context()
	m := h.Registry.Manager(ctx)

	var err error
	if req.Role == nil {
		err = m.SetRole(ctx, nil)
	} else {
		err = m.RequestRole(ctx, *req.Role)
	}

	switch {
	case err == nil:
		// Respond with the post-update state, not the snapshot the guard
		// stashed before the mutation.
		return c.JSON(http.StatusOK, sessionJSONFromSnapshot(m.Snapshot()))
	case errors.Is(err, session.ErrRoleRequestPending):
		return c.JSON(http.StatusConflict, map[string]string{"error": "role request already in flight"})
	case errors.Is(err, session.ErrNoUser):
		return c.JSON(http.StatusConflict, map[string]string{"error": "no confirmed user"})
	case errors.Is(err, backend.ErrUnauthenticated):
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	default:
		c.Logger().Warn("role update failed", "error", err)
		return c.JSON(http.StatusBadGateway, map[string]string{"error": "role update failed"})
	}
}

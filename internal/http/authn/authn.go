// Package authn is the route guard: it decides per request whether the
// protected subtree renders or the client is sent to the login entry point.
package authn

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v5"

	"github.com/machinepulse/machinepulse/internal/session"
)

const (
	ContextKeySession = "session_snapshot"
)

// SnapshotFromContext returns the session snapshot stashed by RequireSession.
func SnapshotFromContext(c *echo.Context) (session.Snapshot, bool) {
	snap, ok := c.Get(ContextKeySession).(session.Snapshot)
	return snap, ok
}

// RequireSession resolves the request's session manager, bootstraps it if
// this is the first request of the session, and gates the route on the
// outcome. While a concurrent bootstrap is in flight the request waits for
// resolution instead of flash-redirecting.
func RequireSession(reg *session.Registry) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			ctx := c.Request().Context()

			m := reg.Manager(ctx)
			if err := m.Bootstrap(ctx); err != nil {
				return err
			}
			if err := m.WaitReady(ctx); err != nil {
				return err
			}

			snap := m.Snapshot()
			if !snap.Authenticated() {
				return handleUnauth(c)
			}
			c.Set(ContextKeySession, snap)
			return next(c)
		}
	}
}

// RequireRole gates a route on the confirmed user's role. Provisional
// sessions have no confirmed role yet and are treated as forbidden.
func RequireRole(role string) echo.MiddlewareFunc {
	role = strings.ToLower(strings.TrimSpace(role))
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			snap, ok := SnapshotFromContext(c)
			if !ok {
				return handleUnauth(c)
			}
			if snap.User == nil || strings.ToLower(strings.TrimSpace(snap.User.Role)) != role {
				if isAPIRequest(c) {
					return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
				}
				return echo.NewHTTPError(http.StatusForbidden, http.StatusText(http.StatusForbidden))
			}
			return next(c)
		}
	}
}

func isAPIRequest(c *echo.Context) bool {
	return strings.HasPrefix(c.Path(), "/api/") || strings.HasPrefix(c.Request().URL.Path, "/api/")
}

func handleUnauth(c *echo.Context) error {
	if isAPIRequest(c) {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}

	location := "/login"
	if c.Request().Method == http.MethodGet {
		if next := SanitizeNext(c.Request().URL.RequestURI()); next != "" {
			location = "/login?next=" + url.QueryEscape(next)
		}
	}
	return c.Redirect(http.StatusSeeOther, location)
}

// SanitizeNext accepts only same-origin paths as post-login redirect
// targets, rejecting anything an attacker could use as an open redirect.
func SanitizeNext(next string) string {
	next = strings.TrimSpace(next)
	if next == "" || next == "/" || len(next) > 2048 {
		return ""
	}
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		return ""
	}

	u, err := url.Parse(next)
	if err != nil || u.IsAbs() || u.Host != "" || u.Scheme != "" {
		return ""
	}
	if u.Path == "/login" || strings.HasPrefix(u.Path, "/login/") {
		return ""
	}
	// Check the decoded path as well, so percent-encoded slashes and
	// backslashes cannot smuggle a protocol-relative target past the
	// prefix checks above.
	if strings.HasPrefix(u.Path, "//") || strings.Contains(u.Path, "\\") {
		return ""
	}
	if strings.Contains(next, "\\") {
		return ""
	}
	return next
}

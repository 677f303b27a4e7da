// Package httpapp assembles the echo server around the session registry.
package httpapp

import (
	"errors"
	"net/http"
	"strings"

	"github.com/alexedwards/scs/v2"
	"github.com/google/uuid"
	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/machinepulse/machinepulse/internal/config"
	"github.com/machinepulse/machinepulse/internal/http/authn"
	"github.com/machinepulse/machinepulse/internal/http/handlers"
	"github.com/machinepulse/machinepulse/internal/session"
)

// EchoServer is the HTTP server wrapper.
type EchoServer struct {
	h        *handlers.Handlers
	e        *echo.Echo
	sessions *scs.SessionManager
}

// NewEchoServer creates the gateway server: session persistence around
// everything, CSRF around anything that mutates, and the route guard around
// the protected subtree.
func NewEchoServer(cfg config.Config, sessions *scs.SessionManager, reg *session.Registry) (*EchoServer, error) {
	if sessions == nil {
		return nil, errors.New("session manager is required")
	}
	if reg == nil {
		return nil, errors.New("session registry is required")
	}

	h := &handlers.Handlers{Cfg: cfg, Sessions: sessions, Registry: reg}
	es := &EchoServer{h: h, e: echo.New(), sessions: sessions}
	es.e.HTTPErrorHandler = es.httpErrorHandler
	es.registerRoutes()
	return es, nil
}

func (es *EchoServer) registerRoutes() {
	es.e.GET("/healthz", es.h.HandleHealthz)

	app := es.e.Group("")
	app.Use(requestID())
	app.Use(echo.WrapMiddleware(es.sessions.LoadAndSave))
	app.Use(middleware.CSRFWithConfig(middleware.CSRFConfig{
		TokenLookup:    "header:" + echo.HeaderXCSRFToken + ",form:csrf",
		CookiePath:     "/",
		CookieSecure:   es.h.Cfg.AuthCookieSecure,
		CookieHTTPOnly: true,
		CookieSameSite: http.SameSiteLaxMode,
	}))

	app.GET("/login", es.h.HandleLoginGet)
	app.POST("/login", es.h.HandleLoginPost)
	app.POST("/logout", es.h.HandleLogoutPost)

	guarded := app.Group("", authn.RequireSession(es.h.Registry))
	guarded.GET("/", es.h.HandleDashboard)
	guarded.GET("/api/session", es.h.HandleSessionGet)
	guarded.POST("/api/role", es.h.HandleRoleUpdate)
	guarded.GET("/api/admin/sessions", es.h.HandleAdminSessions, authn.RequireRole(session.RoleAdmin))
}

func requestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			id := strings.TrimSpace(c.Request().Header.Get(echo.HeaderXRequestID))
			if id == "" {
				id = uuid.NewString()
			}
			c.Set(handlers.ContextKeyRequestID, id)
			c.Response().Header().Set(echo.HeaderXRequestID, id)
			return next(c)
		}
	}
}

func (es *EchoServer) httpErrorHandler(c *echo.Context, err error) {
	if r, _ := echo.UnwrapResponse(c.Response()); r != nil && r.Committed {
		return
	}

	var sc echo.HTTPStatusCoder
	if errors.As(err, &sc) {
		if code := sc.StatusCode(); code != 0 && code != http.StatusInternalServerError {
			switch code {
			case http.StatusNotFound:
				_ = handlers.RenderNotFound(c)
			default:
				_ = c.String(code, http.StatusText(code))
			}
			return
		}
	}

	_ = es.h.RenderError(c, err)
}

// Handler exposes the assembled routes; the caller owns the http.Server.
func (es *EchoServer) Handler() http.Handler {
	return es.e
}

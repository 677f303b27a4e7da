package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/alexedwards/scs/v2"
	"github.com/labstack/echo/v5"

	"github.com/machinepulse/machinepulse/internal/backend"
	"github.com/machinepulse/machinepulse/internal/credential"
	"github.com/machinepulse/machinepulse/internal/session"
)

type handlersFixture struct {
	h        *Handlers
	sessions *scs.SessionManager
	store    *credential.MemoryStore
}

func newHandlersFixture(t *testing.T, backendHandler http.Handler) *handlersFixture {
	t.Helper()

	srv := httptest.NewServer(backendHandler)
	t.Cleanup(srv.Close)

	store := credential.NewMemoryStore()
	api, err := backend.NewClient(srv.URL, store, backend.ClientOptions{})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	sessions := scs.New()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := session.NewRegistry(sessions, store, api, log)

	return &handlersFixture{
		h:        &Handlers{Sessions: sessions, Registry: reg},
		sessions: sessions,
		store:    store,
	}
}

func (f *handlersFixture) newContext(t *testing.T, method, target string, form url.Values) (*echo.Context, *httptest.ResponseRecorder) {
	t.Helper()

	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}

	ctx, err := f.sessions.Load(req.Context(), "")
	if err != nil {
		t.Fatalf("sessions.Load() error = %v", err)
	}
	req = req.WithContext(ctx)

	rec := httptest.NewRecorder()
	e := echo.New()
	e.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return e.NewContext(req, rec), rec
}

func googleBackend(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/login/google":
			_, _ = w.Write([]byte(`{"access_token":"backend-token"}`))
		case "/users/me":
			_, _ = w.Write([]byte(`{"id":"u1","email":"a@b.com","full_name":"Ada","role":"engineer"}`))
		default:
			t.Errorf("unexpected backend request to %s", r.URL.Path)
			http.NotFound(w, r)
		}
	})
}

func TestHandleLoginGetRendersForm(t *testing.T) {
	f := newHandlersFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected backend call to %s", r.URL.Path)
	}))

	c, rec := f.newContext(t, http.MethodGet, "http://example.com/login?next=%2Fmachines", nil)
	if err := f.h.HandleLoginGet(c); err != nil {
		t.Fatalf("HandleLoginGet() error = %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `name="next" value="/machines"`) {
		t.Fatalf("login form does not carry the next target: %q", body)
	}
}

func TestHandleLoginGetRedirectsAuthenticated(t *testing.T) {
	f := newHandlersFixture(t, googleBackend(t))
	f.store.Set(context.Background(), "stored-token")

	c, rec := f.newContext(t, http.MethodGet, "http://example.com/login", nil)
	if err := f.h.HandleLoginGet(c); err != nil {
		t.Fatalf("HandleLoginGet() error = %v", err)
	}

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}
	if got := rec.Header().Get("Location"); got != "/" {
		t.Fatalf("Location = %q, want /", got)
	}
}

func TestHandleLoginPostMissingToken(t *testing.T) {
	f := newHandlersFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected backend call to %s", r.URL.Path)
	}))

	c, rec := f.newContext(t, http.MethodPost, "http://example.com/login", url.Values{
		"id_token": {"   "},
	})
	if err := f.h.HandleLoginPost(c); err != nil {
		t.Fatalf("HandleLoginPost() error = %v", err)
	}

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if !strings.Contains(rec.Body.String(), "Sign-in did not complete") {
		t.Fatalf("body missing error message: %q", rec.Body.String())
	}
}

func TestHandleLoginPostSucceeds(t *testing.T) {
	f := newHandlersFixture(t, googleBackend(t))

	c, rec := f.newContext(t, http.MethodPost, "http://example.com/login", url.Values{
		"id_token": {"google-id-token"},
		"next":     {"/machines/42"},
	})
	if err := f.h.HandleLoginPost(c); err != nil {
		t.Fatalf("HandleLoginPost() error = %v", err)
	}

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}
	if got := rec.Header().Get("Location"); got != "/machines/42" {
		t.Fatalf("Location = %q, want /machines/42", got)
	}
	if tok, ok := f.store.Get(c.Request().Context()); !ok || tok != "backend-token" {
		t.Fatalf("stored credential = %q, %v", tok, ok)
	}
}

func TestHandleLoginPostRejectsUnsafeNext(t *testing.T) {
	f := newHandlersFixture(t, googleBackend(t))

	c, rec := f.newContext(t, http.MethodPost, "http://example.com/login", url.Values{
		"id_token": {"google-id-token"},
		"next":     {"https://evil.example/"},
	})
	if err := f.h.HandleLoginPost(c); err != nil {
		t.Fatalf("HandleLoginPost() error = %v", err)
	}

	if got := rec.Header().Get("Location"); got != "/" {
		t.Fatalf("Location = %q, want /", got)
	}
}

func TestHandleLoginPostExchangeFailure(t *testing.T) {
	f := newHandlersFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"bad id token"}`, http.StatusForbidden)
	}))

	c, rec := f.newContext(t, http.MethodPost, "http://example.com/login", url.Values{
		"id_token": {"bogus"},
	})
	if err := f.h.HandleLoginPost(c); err != nil {
		t.Fatalf("HandleLoginPost() error = %v", err)
	}

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if !strings.Contains(rec.Body.String(), "Sign-in failed") {
		t.Fatalf("body missing error message: %q", rec.Body.String())
	}
	if _, ok := f.store.Get(c.Request().Context()); ok {
		t.Fatal("exchange failure must not store a credential")
	}
}

func TestHandleLogoutPost(t *testing.T) {
	f := newHandlersFixture(t, googleBackend(t))

	loginCtx, _ := f.newContext(t, http.MethodPost, "http://example.com/login", url.Values{
		"id_token": {"google-id-token"},
	})
	if err := f.h.HandleLoginPost(loginCtx); err != nil {
		t.Fatalf("HandleLoginPost() error = %v", err)
	}

	c, rec := f.newContext(t, http.MethodPost, "http://example.com/logout", nil)
	if err := f.h.HandleLogoutPost(c); err != nil {
		t.Fatalf("HandleLogoutPost() error = %v", err)
	}

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}
	if got := rec.Header().Get("Location"); got != "/login" {
		t.Fatalf("Location = %q, want /login", got)
	}
	if _, ok := f.store.Get(c.Request().Context()); ok {
		t.Fatal("logout left a credential behind")
	}

	var sawToast bool
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == flashToastCookieName && ck.Value != "" {
			sawToast = true
		}
	}
	if !sawToast {
		t.Fatal("logout did not set a flash toast")
	}
}

// Package credential holds the single backend bearer credential for a
// browser session.
package credential

import (
	"context"
	"strings"
	"sync"

	"github.com/alexedwards/scs/v2"
)

// SessionKeyToken is the session key under which the backend credential is
// persisted. Exactly one credential exists per session; Set overwrites.
const SessionKeyToken = "backend_access_token"

// Store is the durable slot for a backend bearer credential. Implementations
// never fail: storage errors degrade to "absent".
type Store interface {
	Get(ctx context.Context) (string, bool)
	Set(ctx context.Context, token string)
	Clear(ctx context.Context)
}

// SessionStore persists the credential in an scs-managed session, so it
// survives page reloads and, with a database-backed session store, gateway
// restarts.
type SessionStore struct {
	sessions *scs.SessionManager
}

func NewSessionStore(sessions *scs.SessionManager) *SessionStore {
	return &SessionStore{sessions: sessions}
}

func (s *SessionStore) Get(ctx context.Context) (string, bool) {
	token := strings.TrimSpace(s.sessions.GetString(ctx, SessionKeyToken))
	if token == "" {
		return "", false
	}
	return token, true
}

func (s *SessionStore) Set(ctx context.Context, token string) {
	s.sessions.Put(ctx, SessionKeyToken, token)
}

func (s *SessionStore) Clear(ctx context.Context) {
	s.sessions.Remove(ctx, SessionKeyToken)
}

// MemoryStore is a process-local Store for tests and headless use.
type MemoryStore struct {
	mu    sync.Mutex
	token string
	set   bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Get(context.Context) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.set || s.token == "" {
		return "", false
	}
	return s.token, true
}

func (s *MemoryStore) Set(_ context.Context, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.set = true
}

func (s *MemoryStore) Clear(context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.set = false
}

package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/google/uuid"

	"github.com/machinepulse/machinepulse/internal/backend"
	"github.com/machinepulse/machinepulse/internal/credential"
)

// SessionKeyManagerID is the session key holding the stable ID that ties a
// browser session to its in-memory Manager. Unlike the scs token it does not
// rotate on login, so the manager survives token renewal.
const SessionKeyManagerID = "session_manager_id"

type entry struct {
	manager  *Manager
	lastSeen time.Time
}

// Registry hands out one Manager per browser session. Managers live in
// memory; after a gateway restart the stored credential is still in the
// session, and the recreated manager bootstraps from it.
type Registry struct {
	sessions *scs.SessionManager
	store    credential.Store
	api      *backend.Client
	log      *slog.Logger

	mu      sync.Mutex
	entries map[string]*entry
}

func NewRegistry(sessions *scs.SessionManager, store credential.Store, api *backend.Client, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		sessions: sessions,
		store:    store,
		api:      api,
		log:      log,
		entries:  make(map[string]*entry),
	}
}

// Manager returns the manager for the request's session, creating one on
// first sight. The caller is expected to Bootstrap it; Bootstrap is
// idempotent, so every request may do so.
func (r *Registry) Manager(ctx context.Context) *Manager {
	id := strings.TrimSpace(r.sessions.GetString(ctx, SessionKeyManagerID))
	if id == "" {
		id = uuid.NewString()
		r.sessions.Put(ctx, SessionKeyManagerID, id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		e = &entry{manager: NewManager(r.store, r.api, r.log.With("session", id))}
		r.entries[id] = e
	}
	e.lastSeen = time.Now()
	return e.manager
}

// Drop forgets the manager for the request's session. Called on logout so a
// later visit starts from a clean bootstrap.
func (r *Registry) Drop(ctx context.Context) {
	id := strings.TrimSpace(r.sessions.GetString(ctx, SessionKeyManagerID))
	if id == "" {
		return
	}
	r.mu.Lock()
	delete(r.entries, id)
	r.mu.Unlock()
}

// Len reports the number of live managers. Exposed for tests and the sweep
// loop's logging.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Sweep drops managers idle longer than maxIdle. The credential itself lives
// in the session store, so a swept session simply re-bootstraps.
func (r *Registry) Sweep(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, e := range r.entries {
		if e.lastSeen.Before(cutoff) {
			delete(r.entries, id)
			removed++
		}
	}
	return removed
}

// RunSweeper sweeps at the given interval until the context ends.
func (r *Registry) RunSweeper(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := r.Sweep(maxIdle); removed > 0 {
				r.log.Debug("swept idle session managers", "removed", removed)
			}
		}
	}
}

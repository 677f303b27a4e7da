// Package session owns the client-side belief about whether, and as whom, a
// browser is signed in. One Manager exists per browser session; consumers
// read snapshots and subscribe to transitions, never the internals.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/machinepulse/machinepulse/internal/backend"
	"github.com/machinepulse/machinepulse/internal/credential"
	"github.com/machinepulse/machinepulse/internal/metrics"
)

// Status is the outer state of the session state machine.
type Status string

const (
	// StatusBootstrapping covers the initial window where a stored
	// credential has been found but the profile fetch has not resolved.
	StatusBootstrapping   Status = "bootstrapping"
	StatusUnauthenticated Status = "unauthenticated"
	// StatusProvisional means a credential is held but the identity behind
	// it is not yet confirmed by the backend.
	StatusProvisional   Status = "provisional"
	StatusAuthenticated Status = "authenticated"
)

var (
	// ErrNoUser signals a role mutation attempted without a confirmed user.
	ErrNoUser = errors.New("session: no signed-in user")
	// ErrRoleRequestPending signals an overlapping role request.
	ErrRoleRequestPending = errors.New("session: role request already in flight")
)

// Snapshot is an atomic, copied-out view of session state.
type Snapshot struct {
	Status             Status
	User               *User
	PendingRoleRequest bool
}

// Loading reports whether the session outcome is still undecided.
func (s Snapshot) Loading() bool {
	return s.Status == StatusBootstrapping
}

// Authenticated covers both the provisional and the confirmed state: either
// way a credential is held and guarded routes may render.
func (s Snapshot) Authenticated() bool {
	return s.Status == StatusProvisional || s.Status == StatusAuthenticated
}

// Manager is the auth core for one browser session. All transitions happen
// under its mutex, so observers only ever see settled states. A generation
// counter fences every network round-trip: results are applied only if no
// login, logout, or invalidation happened in between.
type Manager struct {
	store credential.Store
	api   *backend.Client
	log   *slog.Logger

	mu           sync.Mutex
	status       Status
	user         *User
	pendingRole  bool
	generation   uint64
	bootstrapped bool
	ready        chan struct{}
	subs         map[int]chan Snapshot
	nextSub      int
}

// NewManager wires a manager to its credential store and the shared backend
// pipeline. The pipeline clone reports 401s back into this manager, which is
// the sole writer of session state.
func NewManager(store credential.Store, api *backend.Client, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	m := &Manager{
		store:  store,
		log:    log,
		status: StatusBootstrapping,
		ready:  make(chan struct{}),
		subs:   make(map[int]chan Snapshot),
	}
	m.api = api.WithUnauthenticatedHook(func() {
		m.invalidate("credential_rejected")
	})
	return m
}

// Snapshot returns the current state. The user is copied so callers cannot
// mutate manager-owned data.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() Snapshot {
	snap := Snapshot{
		Status:             m.status,
		PendingRoleRequest: m.pendingRole,
	}
	if m.user != nil {
		u := *m.user
		snap.User = &u
	}
	return snap
}

// Subscribe registers an observer. Every state transition delivers a
// snapshot; slow observers miss intermediate states, never the latest one
// pending in the buffer. The returned func unsubscribes.
func (m *Manager) Subscribe() (<-chan Snapshot, func()) {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	ch := make(chan Snapshot, 8)
	m.subs[id] = ch
	m.mu.Unlock()

	return ch, func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

func (m *Manager) notify() {
	m.mu.Lock()
	snap := m.snapshotLocked()
	for _, ch := range m.subs {
		select {
		case ch <- snap:
		default:
		}
	}
	m.mu.Unlock()
}

// WaitReady blocks until the session has left the bootstrapping state or the
// context ends. The route guard uses it instead of flash-redirecting while a
// concurrent bootstrap is in flight.
func (m *Manager) WaitReady(ctx context.Context) error {
	m.mu.Lock()
	ready := m.ready
	m.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) closeReadyLocked() {
	select {
	case <-m.ready:
	default:
		close(m.ready)
	}
}

// Bootstrap resolves the initial session state from the credential store:
// no credential means unauthenticated with no network call; a credential is
// confirmed against the backend and cleared on any failure. Safe to call
// from every request; only the first call does work, later ones wait.
func (m *Manager) Bootstrap(ctx context.Context) error {
	m.mu.Lock()
	if m.bootstrapped {
		m.mu.Unlock()
		return m.WaitReady(ctx)
	}
	m.bootstrapped = true
	gen := m.generation
	m.mu.Unlock()

	_, ok := m.store.Get(ctx)
	if !ok {
		m.mu.Lock()
		if gen == m.generation {
			m.status = StatusUnauthenticated
			m.user = nil
		}
		m.closeReadyLocked()
		m.mu.Unlock()
		m.notify()
		metrics.SessionBootstrapsTotal.WithLabelValues("no_credential").Inc()
		return nil
	}

	if err := m.confirmProfile(ctx, gen); err != nil {
		metrics.SessionBootstrapsTotal.WithLabelValues("failed").Inc()
		m.log.Info("session bootstrap rejected", "error", err)
		return nil
	}
	metrics.SessionBootstrapsTotal.WithLabelValues("ok").Inc()
	return nil
}

// Login stores the credential and marks the session provisionally
// authenticated before the profile round-trip, so guarded navigation
// unblocks immediately. The fetch then either confirms the identity or
// tears the session back down.
func (m *Manager) Login(ctx context.Context, token string) error {
	m.store.Set(ctx, token)

	m.mu.Lock()
	m.generation++
	gen := m.generation
	m.user = nil
	m.bootstrapped = true
	m.status = StatusProvisional
	m.closeReadyLocked()
	m.mu.Unlock()
	m.notify()

	return m.confirmProfile(ctx, gen)
}

// LoginGoogle exchanges a Google ID token for a backend credential. Exchange
// failure propagates without touching session state; success continues as a
// normal login.
func (m *Manager) LoginGoogle(ctx context.Context, idToken string) error {
	token, err := m.api.LoginGoogle(ctx, idToken)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues("google", "exchange_failed").Inc()
		return fmt.Errorf("google login: %w", err)
	}

	if err := m.Login(ctx, token); err != nil {
		metrics.LoginsTotal.WithLabelValues("google", "profile_failed").Inc()
		return err
	}
	metrics.LoginsTotal.WithLabelValues("google", "ok").Inc()
	return nil
}

// Logout clears the credential and resets to unauthenticated. Calling it on
// an already signed-out session is a no-op with the same end state.
func (m *Manager) Logout(ctx context.Context) {
	m.store.Clear(ctx)

	m.mu.Lock()
	m.generation++
	m.user = nil
	m.bootstrapped = true
	m.status = StatusUnauthenticated
	m.closeReadyLocked()
	m.mu.Unlock()
	m.notify()
}

// SetRole updates the signed-in user's role at the backend. On success only
// the role field changes; every other user field keeps its prior value. On
// failure session state is untouched and the error propagates.
func (m *Manager) SetRole(ctx context.Context, role *string) error {
	m.mu.Lock()
	if m.user == nil {
		m.mu.Unlock()
		return ErrNoUser
	}
	gen := m.generation
	m.mu.Unlock()

	updated, err := m.api.UpdateRole(ctx, role)
	if err != nil {
		metrics.RoleUpdatesTotal.WithLabelValues("failed").Inc()
		return err
	}
	metrics.RoleUpdatesTotal.WithLabelValues("ok").Inc()

	m.mu.Lock()
	if gen == m.generation && m.user != nil {
		u := *m.user
		u.Role = ""
		if updated != nil {
			u.Role = *updated
		}
		m.user = &u
	}
	m.mu.Unlock()
	m.notify()
	return nil
}

// RequestRole is SetRole plus a pending flag consumers can render a spinner
// from. The flag always resets, on success and on failure alike; a second
// request while one is in flight is rejected.
func (m *Manager) RequestRole(ctx context.Context, role string) error {
	m.mu.Lock()
	if m.pendingRole {
		m.mu.Unlock()
		return ErrRoleRequestPending
	}
	m.pendingRole = true
	m.mu.Unlock()
	m.notify()

	defer func() {
		m.mu.Lock()
		m.pendingRole = false
		m.mu.Unlock()
		m.notify()
	}()

	return m.SetRole(ctx, &role)
}

// confirmProfile fetches /users/me and applies the result if the session
// generation is still current. Any fetch failure is fatal to the session.
func (m *Manager) confirmProfile(ctx context.Context, gen uint64) error {
	profile, err := m.api.CurrentUser(ctx)
	if err != nil {
		if !errors.Is(err, backend.ErrUnauthenticated) {
			// Non-401 failures are still fatal here; the pipeline only
			// cleans up after explicit credential rejection.
			m.store.Clear(ctx)
			m.invalidate("profile_fetch_failed")
		}
		return fmt.Errorf("confirm profile: %w", err)
	}

	user := UserFromProfile(profile)

	m.mu.Lock()
	if gen == m.generation {
		m.user = &user
		m.status = StatusAuthenticated
	}
	m.closeReadyLocked()
	m.mu.Unlock()
	m.notify()
	return nil
}

// invalidate is the single entry point for forced transitions to
// unauthenticated, both from the pipeline's 401 hook and from fatal profile
// fetches. The generation bump fences out any response still in flight.
func (m *Manager) invalidate(reason string) {
	m.mu.Lock()
	m.generation++
	m.user = nil
	m.status = StatusUnauthenticated
	m.closeReadyLocked()
	m.mu.Unlock()
	m.notify()

	metrics.SessionInvalidationsTotal.WithLabelValues(reason).Inc()
	m.log.Info("session invalidated", "reason", reason)
}

// Package session tracks the session a device is working in: lifecycle
// calls against the server plus a local countdown that flags expiry. The
// countdown is advisory only; the server re-checks the limit on every
// issuance.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"openbar-go/internal/api"
)

// API is the slice of the ledger client the manager needs.
type API interface {
	CreateSession(ctx context.Context, req api.CreateSessionRequest) (*api.Session, error)
	StartSession(ctx context.Context, id int64) (*api.Session, error)
	JoinSession(ctx context.Context, id int64) error
	LeaveSession(ctx context.Context, id int64) error
	CloseSession(ctx context.Context, id int64, req api.CloseSessionRequest) (*api.CloseSessionResponse, error)
	DeleteSession(ctx context.Context, id int64) error
}

type Manager struct {
	api API
	log *slog.Logger
	now func() time.Time

	// onExpired fires once per session, on the tick that crosses the limit.
	onExpired func(sess *api.Session)

	mu       sync.Mutex
	current  *api.Session
	notified bool
}

func New(apiClient API, logger *slog.Logger, onExpired func(*api.Session)) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if onExpired == nil {
		onExpired = func(*api.Session) {}
	}
	return &Manager{
		api:       apiClient,
		log:       logger,
		now:       time.Now,
		onExpired: onExpired,
	}
}

// SetNow overrides the clock. Test hook.
func (m *Manager) SetNow(now func() time.Time) { m.now = now }

// Current returns the tracked session, or nil.
func (m *Manager) Current() *api.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	cp := *m.current
	return &cp
}

// SetCurrent swaps the tracked session and re-arms the expiry edge.
func (m *Manager) SetCurrent(sess *api.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = sess
	m.notified = false
}

// Expired reports whether the tracked session's limit has passed.
func (m *Manager) Expired() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current.Expired(m.now())
}

// Launch creates a session straight into the active state and tracks it.
func (m *Manager) Launch(ctx context.Context, req api.CreateSessionRequest) (*api.Session, error) {
	req.Launch = true
	sess, err := m.api.CreateSession(ctx, req)
	if err != nil {
		return nil, err
	}
	m.SetCurrent(sess)
	m.log.Info("session launched", "session_id", sess.ID, "expected_end", sess.ExpectedEndAt)
	return sess, nil
}

// CreateDraft creates a session without starting it. Not tracked until Start.
func (m *Manager) CreateDraft(ctx context.Context, req api.CreateSessionRequest) (*api.Session, error) {
	req.Launch = false
	return m.api.CreateSession(ctx, req)
}

// Start activates a draft and tracks it.
func (m *Manager) Start(ctx context.Context, id int64) (*api.Session, error) {
	sess, err := m.api.StartSession(ctx, id)
	if err != nil {
		return nil, err
	}
	m.SetCurrent(sess)
	return sess, nil
}

// Join attaches to someone else's active session and tracks it.
func (m *Manager) Join(ctx context.Context, sess *api.Session) error {
	if err := m.api.JoinSession(ctx, sess.ID); err != nil {
		return err
	}
	m.SetCurrent(sess)
	return nil
}

// Leave detaches from the tracked session.
func (m *Manager) Leave(ctx context.Context) error {
	cur := m.Current()
	if cur == nil {
		return &api.SessionStateError{Reason: "no session"}
	}
	if err := m.api.LeaveSession(ctx, cur.ID); err != nil {
		return err
	}
	m.SetCurrent(nil)
	return nil
}

// Close closes the tracked session, passing any reconciliation counts
// through, and stops tracking it.
func (m *Manager) Close(ctx context.Context, counts []api.ReconciliationCount) (*api.CloseSessionResponse, error) {
	cur := m.Current()
	if cur == nil {
		return nil, &api.SessionStateError{Reason: "no session"}
	}
	resp, err := m.api.CloseSession(ctx, cur.ID, api.CloseSessionRequest{Reconciliation: counts})
	if err != nil {
		return nil, err
	}
	m.SetCurrent(nil)
	m.log.Info("session closed", "session_id", cur.ID, "corrections", len(resp.Reconciliation))
	return resp, nil
}

// Delete removes the tracked session entirely.
func (m *Manager) Delete(ctx context.Context) error {
	cur := m.Current()
	if cur == nil {
		return &api.SessionStateError{Reason: "no session"}
	}
	if err := m.api.DeleteSession(ctx, cur.ID); err != nil {
		return err
	}
	m.SetCurrent(nil)
	return nil
}

// Run drives the countdown until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	tick := time.NewTicker(time.Second)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			m.checkExpiry()
		}
	}
}

func (m *Manager) checkExpiry() {
	m.mu.Lock()
	cur := m.current
	fire := cur != nil && !m.notified && cur.Status == api.SessionActive && cur.Expired(m.now())
	if fire {
		m.notified = true
		cp := *cur
		cur = &cp
	}
	m.mu.Unlock()

	if fire {
		m.log.Info("session time limit reached", "session_id", cur.ID)
		m.onExpired(cur)
	}
}

// Package syncq queues drink issuances while the server is unreachable and
// replays them when the connection returns. Entries live in the local store
// so a crash never loses a pour; the server remains the only place stock
// actually moves.
package syncq

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"openbar-go/internal/api"
	"openbar-go/internal/localstore"
)

const (
	storeKey        = "drink_issue_queue"
	offlineMessage  = "no connection, saved locally"
	defaultDebounce = 250 * time.Millisecond
)

type Status string

const (
	StatusPending Status = "pending"
	StatusSyncing Status = "syncing"
	StatusSynced  Status = "synced"
	StatusFailed  Status = "failed"
)

// Entry is one queued issuance. The payload is the full commit request,
// flags included, snapshotted when the bartender committed.
type Entry struct {
	LocalID   string                      `json:"localId"`
	Payload   api.CreateDrinkIssueRequest `json:"payload"`
	Status    Status                      `json:"status"`
	Error     string                      `json:"error,omitempty"`
	RemoteID  int64                       `json:"remoteId,omitempty"`
	CreatedAt time.Time                   `json:"createdAt"`
	UpdatedAt time.Time                   `json:"updatedAt"`
}

// Submitter is the slice of the ledger client the queue needs.
type Submitter interface {
	CreateDrinkIssue(ctx context.Context, req api.CreateDrinkIssueRequest) (*api.DrinkIssue, error)
}

type Queue struct {
	submit Submitter
	store  *localstore.Store
	log    *slog.Logger
	now    func() time.Time
	newID  func() string

	// onRefresh fires debounced after push events so a burst of them costs
	// one snapshot reload.
	onRefresh    func()
	debounceMu   sync.Mutex
	debounceTm   *time.Timer
	debounceWait time.Duration

	mu      sync.Mutex
	entries []Entry
	online  bool
}

func New(submit Submitter, store *localstore.Store, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		submit:       submit,
		store:        store,
		log:          logger,
		now:          time.Now,
		newID:        uuid.NewString,
		onRefresh:    func() {},
		debounceWait: defaultDebounce,
		online:       true,
	}
}

// SetNow overrides the clock. Test hook.
func (q *Queue) SetNow(now func() time.Time) { q.now = now }

// OnRefresh registers the snapshot reload callback.
func (q *Queue) OnRefresh(fn func()) {
	if fn != nil {
		q.onRefresh = fn
	}
}

// Load rehydrates the queue from the local store. Entries stranded in
// syncing by a crash go back to pending; whether they reached the server is
// unknown, and reconciliation against the next snapshot settles it.
func (q *Queue) Load() {
	raw, ok := q.store.Get(storeKey)
	if !ok {
		return
	}
	var entries []Entry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		q.log.Warn("queue rehydrate failed", "err", err)
		return
	}
	for i := range entries {
		if entries[i].Status == StatusSyncing {
			entries[i].Status = StatusPending
		}
	}
	q.mu.Lock()
	q.entries = entries
	q.mu.Unlock()
	q.log.Info("queue rehydrated", "entries", len(entries))
}

// persistLocked writes the whole queue. Best-effort: a failed write costs
// durability, not correctness.
func (q *Queue) persistLocked() {
	b, err := json.Marshal(q.entries)
	if err != nil {
		q.log.Warn("queue marshal failed", "err", err)
		return
	}
	if err := q.store.Set(storeKey, string(b)); err != nil {
		q.log.Warn("queue persist failed", "err", err)
	}
}

// Entries returns a copy of the queue in order.
func (q *Queue) Entries() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Entry, len(q.entries))
	copy(out, q.entries)
	return out
}

func (q *Queue) Online() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.online
}

// SetOnline records connectivity. Regaining it revives entries that failed
// only for lack of a connection and replays the queue; genuine rejections
// stay failed until an explicit retry.
func (q *Queue) SetOnline(ctx context.Context, online bool) {
	q.mu.Lock()
	was := q.online
	q.online = online
	if online && !was {
		for i := range q.entries {
			if q.entries[i].Status == StatusFailed && q.entries[i].Error == offlineMessage {
				q.entries[i].Status = StatusPending
				q.entries[i].Error = ""
				q.entries[i].UpdatedAt = q.now()
			}
		}
		q.persistLocked()
	}
	q.mu.Unlock()

	if online && !was {
		q.log.Info("connection regained, replaying queue")
		q.Flush(ctx)
	}
}

// Enqueue accepts a commit. Online it goes straight through the submit path;
// offline it lands as failed with a message the bartender can read, waiting
// for a retry.
func (q *Queue) Enqueue(ctx context.Context, payload api.CreateDrinkIssueRequest) Entry {
	now := q.now()
	e := Entry{
		LocalID:   q.newID(),
		Payload:   payload,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	q.mu.Lock()
	if !q.online {
		e.Status = StatusFailed
		e.Error = offlineMessage
	}
	q.entries = append(q.entries, e)
	q.persistLocked()
	online := q.online
	q.mu.Unlock()

	if online {
		q.Flush(ctx)
	}
	return q.mustEntry(e.LocalID)
}

// RetryAll moves every failed entry back to pending and replays the queue in
// order.
func (q *Queue) RetryAll(ctx context.Context) {
	q.mu.Lock()
	for i := range q.entries {
		if q.entries[i].Status == StatusFailed {
			q.entries[i].Status = StatusPending
			q.entries[i].Error = ""
			q.entries[i].UpdatedAt = q.now()
		}
	}
	q.persistLocked()
	q.mu.Unlock()
	q.Flush(ctx)
}

// Retry replays a single failed entry.
func (q *Queue) Retry(ctx context.Context, localID string) error {
	return q.retry(ctx, localID, false)
}

// RetryOverride replays a failed entry with the inactive-session override set,
// so a manager can push through a drink whose session has since closed.
func (q *Queue) RetryOverride(ctx context.Context, localID string) error {
	return q.retry(ctx, localID, true)
}

func (q *Queue) retry(ctx context.Context, localID string, override bool) error {
	q.mu.Lock()
	found := false
	for i := range q.entries {
		if q.entries[i].LocalID != localID {
			continue
		}
		found = true
		if q.entries[i].Status != StatusFailed {
			q.mu.Unlock()
			return &api.ValidationError{Msg: "only a failed entry can be retried"}
		}
		q.entries[i].Status = StatusPending
		q.entries[i].Error = ""
		if override {
			q.entries[i].Payload.AllowInactiveSession = true
		}
		q.entries[i].UpdatedAt = q.now()
	}
	q.persistLocked()
	q.mu.Unlock()
	if !found {
		return &api.NotFoundError{What: "queue entry"}
	}
	q.Flush(ctx)
	return nil
}

// Flush submits pending entries one at a time, oldest first. Synced and
// syncing entries are never resubmitted. A connectivity failure marks the
// entry failed, flips the queue offline and stops the walk; a genuine
// rejection marks just that entry and moves on.
func (q *Queue) Flush(ctx context.Context) {
	for {
		e, ok := q.takeNextPending()
		if !ok {
			return
		}

		issue, err := q.submit.CreateDrinkIssue(ctx, e.Payload)

		q.mu.Lock()
		idx := q.indexLocked(e.LocalID)
		if idx < 0 {
			q.mu.Unlock()
			continue
		}
		switch {
		case err == nil:
			q.entries[idx].Status = StatusSynced
			q.entries[idx].RemoteID = issue.ID
			q.entries[idx].Error = ""
		case isConnectivity(err):
			q.entries[idx].Status = StatusFailed
			q.entries[idx].Error = offlineMessage
			q.online = false
		default:
			q.entries[idx].Status = StatusFailed
			q.entries[idx].Error = failureMessage(err)
		}
		q.entries[idx].UpdatedAt = q.now()
		q.persistLocked()
		stop := !q.online
		q.mu.Unlock()

		if err == nil {
			q.log.Info("queued issue synced", "local_id", e.LocalID, "remote_id", issue.ID)
		} else {
			q.log.Warn("queued issue failed", "local_id", e.LocalID, "err", err)
		}
		if stop {
			return
		}
	}
}

// takeNextPending claims the oldest pending entry by marking it syncing.
func (q *Queue) takeNextPending() (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.entries {
		if q.entries[i].Status != StatusPending {
			continue
		}
		q.entries[i].Status = StatusSyncing
		q.entries[i].UpdatedAt = q.now()
		q.persistLocked()
		return q.entries[i], true
	}
	return Entry{}, false
}

// Reconcile merges the queue against an authoritative snapshot: synced
// entries the server now lists are done and drop out, and entries whose
// session no longer exists are pruned.
func (q *Queue) Reconcile(issues []api.DrinkIssue, sessions []api.Session) {
	remote := make(map[int64]struct{}, len(issues))
	for _, is := range issues {
		remote[is.ID] = struct{}{}
	}
	live := make(map[int64]struct{}, len(sessions))
	for _, s := range sessions {
		live[s.ID] = struct{}{}
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	kept := q.entries[:0]
	for _, e := range q.entries {
		if e.Status == StatusSynced {
			if _, ok := remote[e.RemoteID]; ok {
				continue // server confirmed it, nothing left to track
			}
		}
		if _, ok := live[e.Payload.SessionID]; !ok {
			q.log.Info("pruning queue entry for vanished session", "local_id", e.LocalID, "session_id", e.Payload.SessionID)
			continue
		}
		kept = append(kept, e)
	}
	q.entries = kept
	q.persistLocked()
}

// NotifyPush schedules a refresh. Calls inside the debounce window collapse
// into one.
func (q *Queue) NotifyPush() {
	q.debounceMu.Lock()
	defer q.debounceMu.Unlock()
	if q.debounceTm != nil {
		q.debounceTm.Stop()
	}
	q.debounceTm = time.AfterFunc(q.debounceWait, q.onRefresh)
}

func (q *Queue) indexLocked(localID string) int {
	for i := range q.entries {
		if q.entries[i].LocalID == localID {
			return i
		}
	}
	return -1
}

func (q *Queue) mustEntry(localID string) Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	if i := q.indexLocked(localID); i >= 0 {
		return q.entries[i]
	}
	return Entry{}
}

func isConnectivity(err error) bool {
	var connErr *api.ConnectivityError
	return errors.As(err, &connErr)
}

// failureMessage turns a rejection into something fit for the queue list.
func failureMessage(err error) string {
	var shErr *api.StockShortageError
	if errors.As(err, &shErr) {
		return "insufficient stock: " + api.FormatShortages(shErr.Shortages)
	}
	return api.SanitizeMessage(err.Error())
}

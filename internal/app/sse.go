package app

import (
	"log/slog"
	"sync"

	"openbar-go/internal/api"
)

type SSEEvent struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type SSEHub struct {
	log *slog.Logger

	mu   sync.RWMutex
	subs map[string]map[chan SSEEvent]struct{} // topic -> set(ch)
}

func NewSSEHub(logger *slog.Logger) *SSEHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &SSEHub{
		log:  logger,
		subs: map[string]map[chan SSEEvent]struct{}{},
	}
}

func (h *SSEHub) Subscribe(topics []string, buf int) (<-chan SSEEvent, func()) {
	if buf <= 0 {
		buf = 16
	}
	ch := make(chan SSEEvent, buf)

	h.mu.Lock()
	for _, t := range topics {
		if h.subs[t] == nil {
			h.subs[t] = map[chan SSEEvent]struct{}{}
		}
		h.subs[t][ch] = struct{}{}
	}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		for _, t := range topics {
			if set, ok := h.subs[t]; ok {
				delete(set, ch)
				if len(set) == 0 {
					delete(h.subs, t)
				}
			}
		}
		h.mu.Unlock()
		close(ch)
	}
	return ch, cancel
}

func (h *SSEHub) Broadcast(topic string, ev SSEEvent) {
	h.mu.RLock()
	set := h.subs[topic]
	h.mu.RUnlock()

	for ch := range set {
		select {
		case ch <- ev:
		default:
			// drop if slow consumer
		}
	}
}

/* ---- topic helpers ---- */

func TopicSession(sessionID int64) string { return "session:" + itoa64(sessionID) }
func TopicInventory() string              { return "inventory:global" }

// ledger.Events implementation: drink issuances fan out to the session's
// watchers so other participants can refresh their snapshots.

func (h *SSEHub) DrinkIssueCreated(sessionID int64, issue api.DrinkIssue) {
	h.Broadcast(TopicSession(sessionID), SSEEvent{
		Type: api.EventDrinkIssueCreated,
		Data: map[string]any{"issue": issue},
	})
}

func (h *SSEHub) DrinkIssueDeleted(sessionID, issueID int64) {
	h.Broadcast(TopicSession(sessionID), SSEEvent{
		Type: api.EventDrinkIssueDeleted,
		Data: map[string]any{"issue_id": issueID},
	})
}

// small helper to avoid bringing strconv into the hot path
func itoa64(v int64) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [32]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + (v % 10))
		v /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

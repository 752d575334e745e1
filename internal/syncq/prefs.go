package syncq

// Scope selects whose drinks the issue list shows.
type Scope string

const (
	ScopeMine Scope = "mine"
	ScopeAll  Scope = "all"
)

const scopeKey = "issue_scope"

// IssueScope reads the persisted visibility preference, defaulting to mine.
func (q *Queue) IssueScope() Scope {
	raw, ok := q.store.Get(scopeKey)
	if !ok || Scope(raw) != ScopeAll {
		return ScopeMine
	}
	return ScopeAll
}

// SetIssueScope persists the preference. Best-effort, like the queue itself.
func (q *Queue) SetIssueScope(s Scope) {
	if err := q.store.Set(scopeKey, string(s)); err != nil {
		q.log.Warn("scope persist failed", "err", err)
	}
}

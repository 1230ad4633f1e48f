package port

import (
	"time"

	"ragengine/internal/domain"
)

// SessionStore owns conversational sessions: creation, per-session
// turn history, timeout expiry and LRU eviction at capacity.
type SessionStore interface {
	// Create registers a new session and returns its id, evicting the
	// least-recently-active session first if the store is full.
	Create(metadata map[string]any) (string, error)

	// AppendTurn records a turn and refreshes the session's activity.
	AppendTurn(id string, turn domain.Turn) error

	// ContextWindow returns the most recent maxTurns turns.
	ContextWindow(id string, maxTurns int) ([]domain.Turn, error)

	// Get returns the session for inspection without refreshing its
	// activity.
	Get(id string) (domain.SessionInfo, error)

	Delete(id string) error

	// Sweep reaps sessions whose inactivity exceeds the timeout and
	// returns how many were removed.
	Sweep(now time.Time) int

	Count() int
}

package memory

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"ragengine/internal/domain"
	"ragengine/internal/log"
)

// Registry owns all conversational sessions. Structural changes
// (create, evict, delete, sweep) are serialized registry-wide; turn
// history is mutated under a per-session lock so concurrent turns on
// the same session serialize while different sessions proceed in
// parallel. Lock order is always registry before session.
type Registry struct {
	mu          sync.RWMutex
	sessions    map[string]*session
	timeout     time.Duration
	maxSessions int
	maxHistory  int
	now         func() time.Time
	logger      log.Logger
}

type session struct {
	mu           sync.Mutex
	id           string
	createdAt    time.Time
	lastActivity time.Time
	metadata     map[string]any
	turns        []domain.Turn

	// deleted marks a session unlinked from the registry. A caller that
	// looked the session up before it was deleted or evicted must not
	// append into the orphaned object.
	deleted bool
}

func NewRegistry(timeout time.Duration, maxSessions, maxHistory int, logger log.Logger) *Registry {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Registry{
		sessions:    make(map[string]*session),
		timeout:     timeout,
		maxSessions: maxSessions,
		maxHistory:  maxHistory,
		now:         time.Now,
		logger:      logger,
	}
}

// Create registers a new session. At capacity the least-recently-active
// session is evicted first; eviction takes the victim's lock, so a
// session in the middle of a turn finishes it before being dropped.
func (r *Registry) Create(metadata map[string]any) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.sessions) >= r.maxSessions {
		r.evictLRU()
	}

	meta := make(map[string]any, len(metadata))
	for k, v := range metadata {
		meta[k] = v
	}

	now := r.now()
	s := &session{
		id:           uuid.NewString(),
		createdAt:    now,
		lastActivity: now,
		metadata:     meta,
	}
	r.sessions[s.id] = s

	r.logger.Debug("session created", "session_id", s.id, "active", len(r.sessions))
	return s.id, nil
}

// evictLRU removes the session with the oldest activity. Caller holds
// the registry write lock.
func (r *Registry) evictLRU() {
	var victim *session
	for _, s := range r.sessions {
		s.mu.Lock()
		if victim == nil || s.lastActivity.Before(victim.lastActivity) {
			victim = s
		}
		s.mu.Unlock()
	}
	if victim == nil {
		return
	}

	victim.mu.Lock()
	victim.deleted = true
	delete(r.sessions, victim.id)
	victim.mu.Unlock()

	r.logger.Debug("session evicted", "session_id", victim.id)
}

// AppendTurn records a turn and refreshes the session's activity. A
// session past its timeout is rejected with ErrSessionExpired and left
// for Sweep to reap.
func (r *Registry) AppendTurn(id string, turn domain.Turn) error {
	s, err := r.lookup(id)
	if err != nil {
		return err
	}
	return r.appendTurn(s, turn)
}

func (r *Registry) appendTurn(s *session, turn domain.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.deleted {
		return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, s.id)
	}

	now := r.now()
	if r.expired(s, now) {
		return fmt.Errorf("%w: %s", domain.ErrSessionExpired, s.id)
	}

	s.turns = append(s.turns, turn)
	if len(s.turns) > r.maxHistory {
		s.turns = s.turns[len(s.turns)-r.maxHistory:]
	}
	s.lastActivity = now
	return nil
}

// ContextWindow returns the most recent maxTurns turns and refreshes
// the session's activity, since reading the window is part of a chat
// turn.
func (r *Registry) ContextWindow(id string, maxTurns int) ([]domain.Turn, error) {
	s, err := r.lookup(id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.deleted {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}

	now := r.now()
	if r.expired(s, now) {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionExpired, id)
	}
	s.lastActivity = now

	if maxTurns > len(s.turns) {
		maxTurns = len(s.turns)
	}
	window := make([]domain.Turn, maxTurns)
	copy(window, s.turns[len(s.turns)-maxTurns:])
	return window, nil
}

// Get returns the session for inspection or export. It does not
// refresh activity, and still answers for an expired-but-unreaped
// session.
func (r *Registry) Get(id string) (domain.SessionInfo, error) {
	s, err := r.lookup(id)
	if err != nil {
		return domain.SessionInfo{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.deleted {
		return domain.SessionInfo{}, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}

	history := make([]domain.Turn, len(s.turns))
	copy(history, s.turns)
	meta := make(map[string]any, len(s.metadata))
	for k, v := range s.metadata {
		meta[k] = v
	}

	return domain.SessionInfo{
		ID:           s.id,
		CreatedAt:    s.createdAt,
		LastActivity: s.lastActivity,
		Metadata:     meta,
		History:      history,
	}, nil
}

func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}

	s.mu.Lock()
	s.deleted = true
	delete(r.sessions, id)
	s.mu.Unlock()

	r.logger.Debug("session deleted", "session_id", id)
	return nil
}

// Sweep reaps every session whose inactivity exceeds the timeout and
// returns how many were removed.
func (r *Registry) Sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	reaped := 0
	for id, s := range r.sessions {
		s.mu.Lock()
		if r.expired(s, now) {
			s.deleted = true
			delete(r.sessions, id)
			reaped++
		}
		s.mu.Unlock()
	}

	if reaped > 0 {
		r.logger.Debug("sessions reaped", "count", reaped, "active", len(r.sessions))
	}
	return reaped
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) lookup(id string) (*session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	return s, nil
}

// expired reports whether the session idled past the timeout. Caller
// holds the session lock.
func (r *Registry) expired(s *session, now time.Time) bool {
	return now.Sub(s.lastActivity) > r.timeout
}

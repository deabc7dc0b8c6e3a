package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const DefaultTTL = 2 * time.Hour

// Store maps session IDs to state and expires idle sessions.
type Store struct {
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*State
}

func NewStore(ttl time.Duration, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{ttl: ttl, logger: logger, now: time.Now, sessions: make(map[string]*State)}
}

// Get returns the live session for id and marks it as seen.
func (s *Store) Get(id string) (*State, bool) {
	s.mu.Lock()
	st, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		return nil, false
	}
	st.touch(s.now())
	return st, true
}

// Create starts a session under a fresh random ID.
func (s *Store) Create() *State {
	st := NewState(uuid.NewString())
	st.touch(s.now())
	s.mu.Lock()
	s.sessions[st.ID] = st
	s.mu.Unlock()
	s.logger.Debug("session.created", "session_id", st.ID)
	return st
}

// GetOrCreate returns the session for id, or a new one when id is unknown or
// malformed. created is true for a new session.
func (s *Store) GetOrCreate(id string) (st *State, created bool) {
	if _, err := uuid.Parse(id); err == nil {
		if st, ok := s.Get(id); ok {
			return st, false
		}
	}
	return s.Create(), true
}

// Delete cancels the session's request in flight and forgets it.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	st, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if ok {
		st.CancelInflight()
	}
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep deletes sessions idle for longer than the TTL and returns how many.
func (s *Store) Sweep() int {
	cutoff := s.now().Add(-s.ttl)
	var expired []*State
	s.mu.Lock()
	for id, st := range s.sessions {
		if st.idleSince().Before(cutoff) && !st.Busy() {
			expired = append(expired, st)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()
	for _, st := range expired {
		st.CancelInflight()
		s.logger.Info("session.expired", "session_id", st.ID)
	}
	return len(expired)
}

// Run sweeps periodically until ctx ends.
func (s *Store) Run(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = s.ttl / 4
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := s.Sweep(); n > 0 {
				s.logger.Debug("session.sweep", "expired", n, "live", s.Len())
			}
		}
	}
}

// Close cancels every request in flight and drops all sessions.
func (s *Store) Close() {
	s.mu.Lock()
	all := s.sessions
	s.sessions = make(map[string]*State)
	s.mu.Unlock()
	for _, st := range all {
		st.CancelInflight()
	}
}

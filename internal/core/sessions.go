package core

// sessions.go keeps per-browser UI state in memory.
//
// Sessions are keyed by random UUIDs handed to the browser in a cookie. Idle
// sessions expire after the configured TTL; a background sweeper removes them
// so the map does not grow without bound.

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned for unknown or expired session IDs.
var ErrSessionNotFound = errors.New("session not found")

// DefaultSessionTTL is how long an idle session survives.
const DefaultSessionTTL = 12 * time.Hour

type sessionEntry struct {
	state    *SessionState
	lastSeen time.Time
}

// SessionStore is a concurrency-safe in-memory session table.
type SessionStore struct {
	ttl      time.Duration
	pageSize int
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

// NewSessionStore creates a store whose new sessions start at pageSize rows per page.
func NewSessionStore(ttl time.Duration, pageSize int) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionStore{
		ttl:      ttl,
		pageSize: pageSize,
		now:      time.Now,
		sessions: make(map[string]*sessionEntry),
	}
}

// Create starts a new session and returns its ID and a copy of its state.
func (s *SessionStore) Create() (string, *SessionState) {
	id := uuid.New().String()
	st := NewSessionState(s.pageSize)

	s.mu.Lock()
	s.sessions[id] = &sessionEntry{state: st, lastSeen: s.now()}
	s.mu.Unlock()

	return id, st.Clone()
}

// Get returns a copy of the session state and refreshes its idle timer.
func (s *SessionStore) Get(id string) (*SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[id]
	if !ok || s.expired(e) {
		delete(s.sessions, id)
		return nil, ErrSessionNotFound
	}
	e.lastSeen = s.now()
	return e.state.Clone(), nil
}

// GetOrCreate returns the session for id, creating a fresh one when id is
// unknown or expired. The returned ID may differ from the one passed in.
func (s *SessionStore) GetOrCreate(id string) (string, *SessionState) {
	if id != "" {
		if st, err := s.Get(id); err == nil {
			return id, st
		}
	}
	return s.Create()
}

// Update stores st as the session's new state.
func (s *SessionStore) Update(id string, st *SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[id]
	if !ok || s.expired(e) {
		delete(s.sessions, id)
		return ErrSessionNotFound
	}
	e.state = st.Clone()
	e.lastSeen = s.now()
	return nil
}

// Reset drops every session. Browsers holding an old cookie get a fresh
// state on their next request.
func (s *SessionStore) Reset(_ context.Context) error {
	s.mu.Lock()
	clear(s.sessions)
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored sessions, expired or not.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *SessionStore) expired(e *sessionEntry) bool {
	return s.now().Sub(e.lastSeen) > s.ttl
}

// Sweep removes expired sessions and returns how many were removed.
func (s *SessionStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.sessions {
		if s.expired(e) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// StartSweeper runs Sweep every interval until ctx is cancelled.
func (s *SessionStore) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	slog.Info("session sweeper started", "interval", interval, "ttl", s.ttl)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("session sweeper stopped")
			return
		case <-ticker.C:
			start := time.Now()
			if removed := s.Sweep(); removed > 0 {
				slog.Info("expired sessions removed",
					"removed", removed,
					"remaining", s.Len(),
					"duration_ms", time.Since(start).Milliseconds(),
				)
			}
		}
	}
}

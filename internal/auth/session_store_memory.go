package auth

import (
	"context"
	"sync"
	"time"
)

// InMemorySessionStore keeps refresh sessions in a map. Expired sessions are
// dropped whenever a new one is saved.
type InMemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
	now      func() time.Time
}

var _ SessionStore = (*InMemorySessionStore)(nil)

// NewInMemorySessionStore returns an empty store.
func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{
		sessions: make(map[string]Session),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Save records the session and prunes expired ones.
func (s *InMemorySessionStore) Save(_ context.Context, session Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for token, existing := range s.sessions {
		if now.After(existing.ExpiresAt) {
			delete(s.sessions, token)
		}
	}
	s.sessions[session.RefreshToken] = session
	return nil
}

// Find returns the session for refreshToken or ErrSessionNotFound.
func (s *InMemorySessionStore) Find(_ context.Context, refreshToken string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[refreshToken]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return session, nil
}

// Delete removes the session. Unknown tokens are ignored.
func (s *InMemorySessionStore) Delete(_ context.Context, refreshToken string) error {
	s.mu.Lock()
	delete(s.sessions, refreshToken)
	s.mu.Unlock()
	return nil
}

// Has reports whether refreshToken maps to a stored session.
func (s *InMemorySessionStore) Has(refreshToken string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[refreshToken]
	return ok
}

// Len returns the number of stored sessions.
func (s *InMemorySessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

package library

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is one logged-in user. Tokens are opaque to clients.
type Session struct {
	Token     string    `json:"token"`
	Identity  Identity  `json:"identity"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionStore tracks logged-in users for the lifetime of the process.
type SessionStore struct {
	sessions map[string]Session
	mu       sync.RWMutex
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]Session)}
}

func (s *SessionStore) Create(id Identity, now time.Time) Session {
	sess := Session{Token: uuid.NewString(), Identity: id, CreatedAt: now}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.Token] = sess
	return sess
}

func (s *SessionStore) Get(token string) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[token]
	return sess, ok
}

// Delete reports whether token was known.
func (s *SessionStore) Delete(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[token]
	delete(s.sessions, token)
	return ok
}

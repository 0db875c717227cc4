package auth

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultSessionTTL = 1 * time.Hour
	SessionCookie     = "webterm_session"
	BcryptCost        = 12
)

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

type sessionEntry struct {
	UserID    uint
	ExpiresAt time.Time
}

// SessionStore holds browser sessions in memory. Sessions do not survive a
// restart; users log in again.
type SessionStore struct {
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]sessionEntry
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionStore{
		ttl:      ttl,
		sessions: make(map[string]sessionEntry),
	}
}

// TTL returns the configured session lifetime, used to set cookie max-age.
func (s *SessionStore) TTL() time.Duration {
	return s.ttl
}

func (s *SessionStore) Create(userID uint) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	id := hex.EncodeToString(b)
	s.mu.Lock()
	s.sessions[id] = sessionEntry{
		UserID:    userID,
		ExpiresAt: time.Now().Add(s.ttl),
	}
	s.mu.Unlock()
	return id, nil
}

func (s *SessionStore) Get(sessionID string) (uint, bool) {
	s.mu.RLock()
	entry, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok || time.Now().After(entry.ExpiresAt) {
		return 0, false
	}
	return entry.UserID, true
}

func (s *SessionStore) Delete(sessionID string) {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
}

func (s *SessionStore) DeleteByUserID(userID uint) {
	s.mu.Lock()
	for id, entry := range s.sessions {
		if entry.UserID == userID {
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()
}

// Cleanup drops expired sessions. Run periodically from main.
func (s *SessionStore) Cleanup() {
	now := time.Now()
	s.mu.Lock()
	for id, entry := range s.sessions {
		if now.After(entry.ExpiresAt) {
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()
}

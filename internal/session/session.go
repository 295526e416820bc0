// Package session provides opaque-token session storage behind a small
// injected interface, so the persistence medium (Redis in the server,
// in-memory in tests) is swappable without touching callers.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hughes7370/fundconnectv3-sub001/internal/models"
)

// Session is the authenticated state attached to a token.
type Session struct {
	Token     string      `json:"token"`
	UserID    uuid.UUID   `json:"user_id"`
	Role      models.Role `json:"role"`
	Email     string      `json:"email"`
	CreatedAt time.Time   `json:"created_at"`
}

// Store holds sessions keyed by opaque token.
type Store interface {
	Get(ctx context.Context, token string) (*Session, error)
	Set(ctx context.Context, sess *Session, ttl time.Duration) error
	Remove(ctx context.Context, token string) error
}

// NewToken returns a 64-char hex token with 256 bits of entropy.
func NewToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// MemoryStore is an in-process Store used by tests and single-node
// development runs.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]memoryEntry
}

type memoryEntry struct {
	sess      Session
	expiresAt time.Time
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]memoryEntry)}
}

// Get retrieves a session by token, or nil when absent or expired.
func (s *MemoryStore) Get(_ context.Context, token string) (*Session, error) {
	s.mu.RLock()
	entry, ok := s.sessions[token]
	s.mu.RUnlock()
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, nil
	}
	sess := entry.sess
	return &sess, nil
}

// Set stores a session under its token for ttl.
func (s *MemoryStore) Set(_ context.Context, sess *Session, ttl time.Duration) error {
	s.mu.Lock()
	s.sessions[sess.Token] = memoryEntry{sess: *sess, expiresAt: time.Now().Add(ttl)}
	s.mu.Unlock()
	return nil
}

// Remove deletes a session by token.
func (s *MemoryStore) Remove(_ context.Context, token string) error {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
	return nil
}

package auth

import (
	"context"
	"sync"

	"github.com/vidtube/backend/internal/repositories"
)

// NewInMemoryTokenStore returns a TokenStore backed by an in-memory map. Users must be added
// with Register before tokens can be stored for them.
func NewInMemoryTokenStore() *InMemoryTokenStore {
	return &InMemoryTokenStore{tokens: make(map[string]string)}
}

// InMemoryTokenStore implements TokenStore for tests and local development.
type InMemoryTokenStore struct {
	mu     sync.Mutex
	tokens map[string]string
}

// Register adds a user with no active refresh token.
func (s *InMemoryTokenStore) Register(userID string) {
	s.mu.Lock()
	if _, ok := s.tokens[userID]; !ok {
		s.tokens[userID] = ""
	}
	s.mu.Unlock()
}

// SwapRefreshToken implements TokenStore.
func (s *InMemoryTokenStore) SwapRefreshToken(_ context.Context, userID, expected, next string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.tokens[userID]
	if !ok {
		return repositories.ErrNotFound
	}
	if current != expected {
		return repositories.ErrStale
	}
	s.tokens[userID] = next
	return nil
}

// Current returns the stored refresh token of userID. Useful for tests.
func (s *InMemoryTokenStore) Current(userID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens[userID]
}

// Package media stores uploaded videos and images and derives their metadata.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sync"

	"github.com/google/uuid"

	"github.com/vidtube/backend/internal/models"
)

// Kind selects how an uploaded object is stored.
type Kind string

const (
	KindVideo Kind = "video"
	KindImage Kind = "image"
)

// Prefix is the key prefix objects of the kind are stored under.
func (k Kind) Prefix() string {
	switch k {
	case KindVideo:
		return "videos"
	case KindImage:
		return "images"
	default:
		return "misc"
	}
}

// NewKey returns a fresh object key for the kind.
func NewKey(kind Kind) string {
	return path.Join(kind.Prefix(), uuid.NewString())
}

var (
	// ErrEmptyUpload indicates a store was attempted with no content.
	ErrEmptyUpload = errors.New("empty upload")
	// ErrUnavailable indicates the media store is refusing calls while it recovers.
	ErrUnavailable = errors.New("media store unavailable")
)

// Store uploads and deletes media objects.
type Store interface {
	Store(ctx context.Context, r io.Reader, kind Kind) (models.Asset, error)
	Remove(ctx context.Context, key string, kind Kind) error
}

// MemoryStore keeps objects in memory. It serves tests and local development without an object
// store.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	baseURL string
}

// NewMemoryStore constructs an empty in-memory store whose URLs start with baseURL.
func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte), baseURL: baseURL}
}

// Store implements Store.
func (s *MemoryStore) Store(_ context.Context, r io.Reader, kind Kind) (models.Asset, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return models.Asset{}, fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return models.Asset{}, ErrEmptyUpload
	}

	key := NewKey(kind)
	s.mu.Lock()
	s.objects[key] = data
	s.mu.Unlock()
	return models.Asset{URL: s.baseURL + "/" + key, StorageKey: key}, nil
}

// Remove implements Store. Removing an absent key is not an error.
func (s *MemoryStore) Remove(_ context.Context, key string, _ Kind) error {
	s.mu.Lock()
	delete(s.objects, key)
	s.mu.Unlock()
	return nil
}

// Has reports whether key is currently stored.
func (s *MemoryStore) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}

// Len returns the number of stored objects.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

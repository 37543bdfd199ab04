// Package credential provides the durable string stores that hold the
// session bearer token.
package credential

import (
	"context"
	"errors"
	"sync"
)

// DefaultKey is the storage key of the bearer token.
const DefaultKey = "auth_token"

var ErrStoreClosed = errors.New("credential store closed")

// Store is a minimal get/set/remove string store.
// Implementations must be safe for concurrent use, and a Remove must be
// observed by every Get that starts after it returns.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// MemStore keeps values in process memory.
type MemStore struct {
	mu sync.RWMutex
	m  map[string]string
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{m: make(map[string]string)}
}

func (s *MemStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	return v, ok, nil
}

func (s *MemStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	s.m[key] = value
	s.mu.Unlock()
	return nil
}

func (s *MemStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.m, key)
	s.mu.Unlock()
	return nil
}

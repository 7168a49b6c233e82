// Package memory provides a map-backed ObjectStore used by tests and local
// pipeline runs.
package memory

import (
	"context"
	"sync"
)

// Store is an in-memory object store. Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewStore creates an empty in-memory store
func NewStore() *Store {
	return &Store{objects: make(map[string][]byte)}
}

// Get returns a copy of the stored object, or found=false if absent
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.objects[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, true, nil
}

// Put stores a copy of data under key, overwriting any existing value
func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]byte, len(data))
	copy(stored, data)
	s.objects[key] = stored
	return nil
}

// Exists reports whether key is present
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.objects[key]
	return ok, nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.objects, key)
	return nil
}

// Keys returns all stored keys. Intended for tests.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	return keys
}

package store

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-memory SessionStore.  It is the default store for a client
// instance whose session should not outlive the process.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

// ensure that Memory implements the SessionStore interface
var _ SessionStore = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		values: map[string]string{},
	}
}

// Get returns the value for key, or ErrKeyNotFound.
func (s *Memory) Get(_ context.Context, key string) (string, error) {
	const op = "store.(Memory).Get"
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	if !ok {
		return "", fmt.Errorf("%s: %q: %w", op, key, ErrKeyNotFound)
	}
	return v, nil
}

// Set stores value under key, overwriting any existing value.
func (s *Memory) Set(_ context.Context, key string, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

// Remove deletes the value for key.  Removing an absent key is not an error.
func (s *Memory) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

package store

import (
	"context"
	"strings"
	"sync"
)

// MemoryStore is an in-process Store used in tests and local development
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte

	// FailNext, when set, makes the next operation return the error and
	// clears itself. Lets tests exercise I/O failure paths.
	failMu   sync.Mutex
	failNext error
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string][]byte),
	}
}

// FailNext arranges for the next store operation to fail with err
func (s *MemoryStore) FailNext(err error) {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	s.failNext = err
}

func (s *MemoryStore) takeFailure() error {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	err := s.failNext
	s.failNext = nil
	return err
}

// Get retrieves the value at key. Returns ErrNotFound for an absent key.
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := s.takeFailure(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.data[key]
	if !ok {
		return nil, ErrNotFound
	}

	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Set writes the value at key
func (s *MemoryStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.takeFailure(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)
	s.data[key] = stored
	return nil
}

// Remove deletes the key
func (s *MemoryStore) Remove(ctx context.Context, key string) error {
	if err := s.takeFailure(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// Keys returns all keys with the given prefix
func (s *MemoryStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	if err := s.takeFailure(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []string
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// Ping always succeeds for the in-memory store
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store
func (s *MemoryStore) Close() error {
	return nil
}

package kv

import (
	"context"
	"fmt"
	"sync"
)

// MemStore is an in-memory Store for tests and throwaway sessions.
// It provides the same ordering and atomicity guarantees as FileStore
// without touching the filesystem.
type MemStore struct {
	mu      sync.Mutex
	entries []Entry
	index   map[string]int
}

// NewMemStore creates an empty in-memory bucket.
func NewMemStore() *MemStore {
	return &MemStore{
		index: make(map[string]int),
	}
}

func (s *MemStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return cloneBytes(s.entries[i].Value), nil
}

func (s *MemStore) Put(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i, ok := s.index[key]; ok {
		s.entries[i].Value = cloneBytes(value)
		return nil
	}
	s.index[key] = len(s.entries)
	s.entries = append(s.entries, Entry{Key: key, Value: cloneBytes(value)})
	return nil
}

func (s *MemStore) PutIfAbsent(_ context.Context, key string, value []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i, ok := s.index[key]; ok {
		return cloneBytes(s.entries[i].Value), nil
	}
	s.index[key] = len(s.entries)
	s.entries = append(s.entries, Entry{Key: key, Value: cloneBytes(value)})
	return cloneBytes(value), nil
}

func (s *MemStore) GetAll(_ context.Context) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, len(s.entries))
	for i, e := range s.entries {
		out[i] = Entry{Key: e.Key, Value: cloneBytes(e.Value)}
	}
	return out, nil
}

func (s *MemStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = nil
	s.index = make(map[string]int)
	return nil
}

// Package kv provides the persistent key-value backend behind the memory
// system. It is deliberately minimal: get, put, create-if-absent, ordered
// enumeration, and bulk clear. No secondary indexes, no range queries.
//
// Two implementations are provided:
//   - FileStore: single-file JSON snapshot with atomic commits (local persistence)
//   - MemStore: in-memory store for tests and throwaway sessions
//
// Both preserve insertion order in GetAll, which the document store above
// relies on for deterministic ranking tie-breaks.
package kv

import (
	"context"
	"errors"
)

// Sentinel errors for backend operations.
var (
	ErrNotFound   = errors.New("key not found")
	ErrLoadFailed = errors.New("load failed")
	ErrSaveFailed = errors.New("save failed")
)

// Entry is a single stored key-value pair.
type Entry struct {
	Key   string `json:"key"`
	Value []byte `json:"value"`
}

// Store is the persistent key-value backend interface.
// Each call commits atomically; there are no multi-call transactions.
type Store interface {
	// Get retrieves the value for a key. Returns ErrNotFound if absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores a value under a key, overwriting any existing value.
	// Overwrites keep the key's original insertion position.
	Put(ctx context.Context, key string, value []byte) error

	// PutIfAbsent stores value only when the key is not already present,
	// and returns whichever value is persisted after the call. Concurrent
	// first writers converge on a single winner.
	PutIfAbsent(ctx context.Context, key string, value []byte) ([]byte, error)

	// GetAll returns every entry in insertion order.
	GetAll(ctx context.Context) ([]Entry, error)

	// Clear removes all entries atomically.
	Clear(ctx context.Context) error
}

// IsNotFound reports whether err is a missing-key error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

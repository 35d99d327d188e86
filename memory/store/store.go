// Package store implements the persistent document store over a kv bucket.
// Documents are append-only JSON records; the bucket preserves insertion
// order, which ranking relies on for deterministic tie-breaks.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/becomeliminal/memvault/memory"
	"github.com/becomeliminal/memvault/memory/kv"
)

// Sentinel errors for store operations.
var (
	// ErrBackend wraps persistence backend failures. Never retried here.
	ErrBackend = errors.New("store backend failure")

	// ErrCapacity is returned when MaxDocuments would be exceeded.
	ErrCapacity = errors.New("store capacity exceeded")
)

// Config holds DocumentStore configuration.
type Config struct {
	// MaxDocuments caps the number of stored documents. 0 means unbounded.
	MaxDocuments int
}

// DocumentStore is the kv-backed implementation of memory.Store.
// The documents bucket must not be shared with the keychain bucket:
// Clear wipes the whole bucket.
type DocumentStore struct {
	bucket kv.Store
	max    int
}

// New creates a DocumentStore over its own kv bucket. A nil config means
// no capacity bound.
func New(bucket kv.Store, config *Config) *DocumentStore {
	max := 0
	if config != nil {
		max = config.MaxDocuments
	}
	return &DocumentStore{bucket: bucket, max: max}
}

// Add inserts an immutable document record.
func (s *DocumentStore) Add(ctx context.Context, doc memory.Document) error {
	if s.max > 0 {
		// Check-then-put is racy across writers, but this subsystem
		// assumes a single owning process (single-writer-per-store).
		entries, err := s.bucket.GetAll(ctx)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrBackend, err)
		}
		if len(entries) >= s.max {
			return fmt.Errorf("%w: limit %d", ErrCapacity, s.max)
		}
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: encode document: %v", ErrBackend, err)
	}
	if err := s.bucket.Put(ctx, doc.ID, data); err != nil {
		return fmt.Errorf("%w: %v", ErrBackend, err)
	}

	log.Printf("[STORE] Added document id=%s type=%s", doc.ID, doc.Type)
	return nil
}

// All returns every stored document in insertion order.
func (s *DocumentStore) All(ctx context.Context) ([]memory.Document, error) {
	entries, err := s.bucket.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackend, err)
	}

	docs := make([]memory.Document, 0, len(entries))
	for _, e := range entries {
		var doc memory.Document
		if err := json.Unmarshal(e.Value, &doc); err != nil {
			return nil, fmt.Errorf("%w: decode document %s: %v", ErrBackend, e.Key, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Clear deletes all documents atomically.
func (s *DocumentStore) Clear(ctx context.Context) error {
	if err := s.bucket.Clear(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return nil
}

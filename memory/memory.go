package memory

import (
	"context"
	"time"
)

// DocumentType classifies what a stored document captures.
type DocumentType string

const (
	// TypeInteraction is a conversational exchange with the assistant.
	TypeInteraction DocumentType = "interaction"

	// TypeNote is a standalone note the assistant was asked to remember.
	TypeNote DocumentType = "note"
)

// Document is a single encrypted memory record. Documents are immutable
// once created: there is no update operation, only bulk clear. The store
// owns all documents; the service never holds a live reference after
// persistence.
type Document struct {
	// ID is unique across the store.
	ID string `json:"id"`

	// Ciphertext is the sealed content blob: base64(nonce || ciphertext || tag).
	Ciphertext string `json:"ciphertext"`

	// Embedding is the content vector. Its length is fixed by the
	// embedding provider and constant across all documents in one store.
	Embedding []float32 `json:"embedding"`

	// CreatedAt is the creation instant.
	CreatedAt time.Time `json:"created_at"`

	// Type is the document classification.
	Type DocumentType `json:"type"`
}

// Context is one retrieved memory, decrypted and scored against the query.
// It is created fresh on every retrieval and never persisted.
type Context struct {
	// Text is the decrypted (and previously redacted) content, or a
	// placeholder when the stored blob could not be decrypted.
	Text string

	// CreatedAt is when the underlying document was stored.
	CreatedAt time.Time

	// Score is the cosine similarity against the query, in [-1, 1].
	Score float64
}

// Store is the persistent document store interface.
// Implementations: store.DocumentStore (kv-backed).
type Store interface {
	// Add inserts an immutable document. Backend failures are reported,
	// never retried internally; the caller decides retry policy.
	Add(ctx context.Context, doc Document) error

	// All returns every stored document in insertion order. This is a
	// full scan; O(n) per query is the accepted scale ceiling here.
	All(ctx context.Context) ([]Document, error)

	// Clear deletes all documents atomically.
	Clear(ctx context.Context) error
}

// Embedder converts text to vector embeddings.
// Implementations: mock.Embedder (testing), onnx.Embedder (local).
//
// Embedder errors are provider errors: the service propagates them
// unchanged and persists nothing.
type Embedder interface {
	// Embed converts a single text to an embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}

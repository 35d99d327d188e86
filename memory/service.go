package memory

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/becomeliminal/memvault/memory/redact"
	"github.com/becomeliminal/memvault/memory/seal"
)

// unreadablePlaceholder replaces the text of a document whose ciphertext
// failed authentication. One bad record must not deny access to the rest.
const unreadablePlaceholder = "[unreadable memory]"

// Config holds Service configuration.
type Config struct {
	// Enabled toggles the memory system on/off. A disabled service
	// accepts writes as no-ops and returns empty retrievals.
	Enabled bool

	// EmbedCacheSize is the query-embedding cache budget in bytes.
	// Repeated queries skip the embedding provider. 0 disables the cache.
	EmbedCacheSize int64
}

// DefaultConfig returns sensible defaults.
var DefaultConfig = &Config{
	Enabled:        true,
	EmbedCacheSize: 8 << 20,
}

// Service is the memory orchestration facade. It composes redaction,
// encryption, embedding, and the document store behind three operations:
// AddInteraction, RetrieveContext, and Purge.
//
// Writes are synchronous and all-or-nothing: AddInteraction returns only
// after the document is committed, and a failed embedding or encryption
// persists nothing. No retry logic lives here; failures are reported,
// not masked.
type Service struct {
	store    Store
	embedder Embedder
	keys     *seal.Keychain
	filter   *redact.Filter
	config   *Config

	embedCache *ristretto.Cache
}

// NewService creates a Service. A nil config uses DefaultConfig.
func NewService(store Store, embedder Embedder, keys *seal.Keychain, config *Config) (*Service, error) {
	if config == nil {
		config = DefaultConfig
	}

	s := &Service{
		store:    store,
		embedder: embedder,
		keys:     keys,
		filter:   redact.New(),
		config:   config,
	}

	if config.EmbedCacheSize > 0 {
		cache, err := ristretto.NewCache(&ristretto.Config{
			NumCounters: 1e5,
			MaxCost:     config.EmbedCacheSize,
			BufferItems: 64,
		})
		if err != nil {
			return nil, fmt.Errorf("embed cache: %w", err)
		}
		s.embedCache = cache
	}

	return s, nil
}

// AddInteraction redacts text, then embeds and encrypts it concurrently,
// and persists the assembled document. If any step fails, nothing is
// stored: a document without a vector can never be retrieved, so the
// whole write fails instead.
func (s *Service) AddInteraction(ctx context.Context, text string, typ DocumentType) error {
	if !s.config.Enabled {
		return nil
	}

	cipher, err := s.keys.Cipher(ctx)
	if err != nil {
		return err
	}

	redacted := s.filter.Redact(text)

	// Embedding is network/model-bound, encryption is CPU-bound and
	// local; they touch disjoint state and join before persistence.
	var embedding []float32
	var blob string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		embedding, err = s.embed(gctx, redacted)
		if err != nil {
			return fmt.Errorf("embed interaction: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		blob, err = cipher.Encrypt(redacted)
		if err != nil {
			return fmt.Errorf("encrypt interaction: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	doc := Document{
		ID:         uuid.New().String(),
		Ciphertext: blob,
		Embedding:  embedding,
		CreatedAt:  time.Now().UTC(),
		Type:       typ,
	}
	if err := s.store.Add(ctx, doc); err != nil {
		return fmt.Errorf("persist interaction: %w", err)
	}

	log.Printf("[MEMORY] Stored %s document id=%s", typ, doc.ID)
	return nil
}

// RetrieveContext embeds the query, ranks every stored document by cosine
// similarity, drops entries below minScore, and decrypts the surviving
// top-limit entries. A document whose blob fails authentication comes
// back as a placeholder entry rather than aborting the retrieval.
func (s *Service) RetrieveContext(ctx context.Context, query string, limit int, minScore float64) ([]Context, error) {
	if !s.config.Enabled {
		return nil, nil
	}

	embedding, err := s.embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	docs, err := s.store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan store: %w", err)
	}

	ranked := Rank(embedding, docs, limit)

	out := make([]Context, 0, len(ranked))
	var cipher *seal.Cipher
	for _, sc := range ranked {
		if sc.Score < minScore {
			// Ranked is sorted descending; everything after is below
			// the threshold too.
			break
		}

		if cipher == nil {
			cipher, err = s.keys.Cipher(ctx)
			if err != nil {
				return nil, err
			}
		}

		text, err := cipher.Decrypt(sc.Document.Ciphertext)
		if err != nil {
			log.Printf("[MEMORY] Unreadable document id=%s: %v", sc.Document.ID, err)
			text = unreadablePlaceholder
		}

		out = append(out, Context{
			Text:      text,
			CreatedAt: sc.Document.CreatedAt,
			Score:     sc.Score,
		})
	}

	log.Printf("[MEMORY] Retrieved %d of %d documents for query %q", len(out), len(docs), truncateLog(query, 50))
	return out, nil
}

// Purge deletes every stored document. The persistent key survives a
// purge; only document content is dropped.
func (s *Service) Purge(ctx context.Context) error {
	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("purge: %w", err)
	}
	log.Printf("[MEMORY] Purged all documents")
	return nil
}

// embed converts text to a vector, consulting the cache first when one is
// configured. Provider errors propagate unchanged.
func (s *Service) embed(ctx context.Context, text string) ([]float32, error) {
	if s.embedCache != nil {
		if v, ok := s.embedCache.Get(text); ok {
			if emb, ok := v.([]float32); ok {
				return emb, nil
			}
		}
	}

	emb, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if s.embedCache != nil {
		s.embedCache.Set(text, emb, int64(4*len(emb)))
	}
	return emb, nil
}

// FormatContext renders retrieved contexts into a block suitable for
// prompt injection by the chat layer.
func FormatContext(contexts []Context) string {
	if len(contexts) == 0 {
		return ""
	}

	parts := make([]string, 0, len(contexts)+1)
	parts = append(parts, "=== RELEVANT PAST CONTEXT ===")
	for i, c := range contexts {
		parts = append(parts, fmt.Sprintf("%d. [%s] %s", i+1, c.CreatedAt.Format("2006-01-02"), c.Text))
	}
	return strings.Join(parts, "\n")
}

// truncateLog truncates text for logging.
func truncateLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

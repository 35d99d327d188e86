package memory_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/becomeliminal/memvault/memory"
	"github.com/becomeliminal/memvault/memory/embedder/mock"
	"github.com/becomeliminal/memvault/memory/kv"
	"github.com/becomeliminal/memvault/memory/seal"
	"github.com/becomeliminal/memvault/memory/store"
)

// failingEmbedder simulates an embedding provider outage.
type failingEmbedder struct{}

var errProviderDown = errors.New("embedding provider down")

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errProviderDown
}
func (failingEmbedder) Dimensions() int { return 384 }

// fixture wires a service over in-memory buckets and exposes the document
// bucket for direct inspection.
type fixture struct {
	svc       *memory.Service
	docBucket *kv.MemStore
}

func newFixture(t *testing.T, embedder memory.Embedder, cfg *memory.Config) *fixture {
	t.Helper()

	docBucket := kv.NewMemStore()
	docs := store.New(docBucket, nil)
	keys := seal.NewKeychain(kv.NewMemStore())

	svc, err := memory.NewService(docs, embedder, keys, cfg)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return &fixture{svc: svc, docBucket: docBucket}
}

func TestService_EndToEndSelfMatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, mock.New(), nil)

	text := "write a chorus about rain"
	if err := f.svc.AddInteraction(ctx, text, memory.TypeInteraction); err != nil {
		t.Fatalf("AddInteraction: %v", err)
	}

	got, err := f.svc.RetrieveContext(ctx, text, 1, 0)
	if err != nil {
		t.Fatalf("RetrieveContext: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("retrieved %d contexts, want 1", len(got))
	}
	if got[0].Text != text {
		t.Errorf("retrieved text = %q, want %q", got[0].Text, text)
	}
	if math.Abs(got[0].Score-1) > 1e-6 {
		t.Errorf("self-match score = %v, want ~1.0", got[0].Score)
	}
}

func TestService_RedactsBeforeStorage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, mock.New(), nil)

	if err := f.svc.AddInteraction(ctx, "contact a@b.com or (555) 123-4567", memory.TypeNote); err != nil {
		t.Fatalf("AddInteraction: %v", err)
	}

	got, err := f.svc.RetrieveContext(ctx, "contact information", 5, -1)
	if err != nil {
		t.Fatalf("RetrieveContext: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("retrieved %d contexts, want 1", len(got))
	}
	if !strings.Contains(got[0].Text, "[EMAIL_REDACTED]") || !strings.Contains(got[0].Text, "[PHONE_REDACTED]") {
		t.Errorf("stored text not redacted: %q", got[0].Text)
	}
	if strings.Contains(got[0].Text, "a@b.com") || strings.Contains(got[0].Text, "4567") {
		t.Errorf("raw PII reached storage: %q", got[0].Text)
	}

	// PII must also never reach the persisted ciphertext record in clear.
	entries, err := f.docBucket.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	for _, e := range entries {
		if strings.Contains(string(e.Value), "a@b.com") {
			t.Errorf("raw email present in persisted record")
		}
	}
}

func TestService_FaultIsolation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, mock.New(), nil)

	texts := []string{
		"first memory about music",
		"second memory about travel",
		"third memory about cooking",
		"fourth memory about books",
		"fifth memory about weather",
	}
	for _, text := range texts {
		if err := f.svc.AddInteraction(ctx, text, memory.TypeInteraction); err != nil {
			t.Fatalf("AddInteraction(%q): %v", text, err)
		}
	}

	// Corrupt the third record's ciphertext in place.
	entries, err := f.docBucket.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(entries) != 5 {
		t.Fatalf("expected 5 persisted records, got %d", len(entries))
	}
	var corrupted memory.Document
	if err := json.Unmarshal(entries[2].Value, &corrupted); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	corrupted.Ciphertext = "dGlueQ==" // too short to carry nonce and tag
	data, _ := json.Marshal(corrupted)
	if err := f.docBucket.Put(ctx, entries[2].Key, data); err != nil {
		t.Fatalf("Put corrupted: %v", err)
	}

	got, err := f.svc.RetrieveContext(ctx, "any of my memories", 5, -1)
	if err != nil {
		t.Fatalf("RetrieveContext must not fail on one bad record: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("retrieved %d contexts, want all 5", len(got))
	}

	placeholders := 0
	valid := make(map[string]bool)
	for _, c := range got {
		if c.Text == "[unreadable memory]" {
			placeholders++
			continue
		}
		valid[c.Text] = true
	}
	if placeholders != 1 {
		t.Errorf("got %d placeholder entries, want exactly 1", placeholders)
	}
	if len(valid) != 4 {
		t.Errorf("got %d valid decrypted texts, want 4", len(valid))
	}
	for _, text := range []string{texts[0], texts[1], texts[3], texts[4]} {
		if !valid[text] {
			t.Errorf("healthy record %q missing from results", text)
		}
	}
}

func TestService_ProviderFailureWritesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, failingEmbedder{}, nil)

	err := f.svc.AddInteraction(ctx, "this must not be persisted", memory.TypeInteraction)
	if !errors.Is(err, errProviderDown) {
		t.Fatalf("AddInteraction: got %v, want the provider error propagated", err)
	}

	entries, err := f.docBucket.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("partial write: %d records persisted after embed failure", len(entries))
	}
}

func TestService_PurgeSemantics(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, mock.New(), nil)

	for i := 0; i < 3; i++ {
		if err := f.svc.AddInteraction(ctx, fmt.Sprintf("memory number %d", i), memory.TypeInteraction); err != nil {
			t.Fatalf("AddInteraction: %v", err)
		}
	}
	if err := f.svc.Purge(ctx); err != nil {
		t.Fatalf("Purge: %v", err)
	}

	entries, err := f.docBucket.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("%d records survived purge", len(entries))
	}

	got, err := f.svc.RetrieveContext(ctx, "memory number 1", 10, -1)
	if err != nil {
		t.Fatalf("RetrieveContext after purge: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("retrieved %d contexts after purge, want 0", len(got))
	}
}

func TestService_Disabled(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, mock.New(), &memory.Config{Enabled: false})

	if err := f.svc.AddInteraction(ctx, "ignored", memory.TypeInteraction); err != nil {
		t.Fatalf("AddInteraction on disabled service: %v", err)
	}
	entries, _ := f.docBucket.GetAll(ctx)
	if len(entries) != 0 {
		t.Errorf("disabled service persisted %d records", len(entries))
	}

	got, err := f.svc.RetrieveContext(ctx, "ignored", 5, 0)
	if err != nil {
		t.Fatalf("RetrieveContext on disabled service: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("disabled service retrieved %d contexts", len(got))
	}
}

func TestService_MinScoreFilters(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, mock.New(), nil)

	if err := f.svc.AddInteraction(ctx, "completely unrelated content", memory.TypeInteraction); err != nil {
		t.Fatalf("AddInteraction: %v", err)
	}

	// The mock embedder gives unrelated texts near-zero similarity, so a
	// threshold just under 1 admits only exact self-matches.
	got, err := f.svc.RetrieveContext(ctx, "something else entirely", 5, 0.99)
	if err != nil {
		t.Fatalf("RetrieveContext: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("minScore 0.99 admitted %d unrelated contexts", len(got))
	}
}

func TestService_KeySurvivesRestart(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	open := func() *memory.Service {
		docBucket, err := kv.OpenFile(filepath.Join(dir, "documents.json"))
		if err != nil {
			t.Fatalf("open documents bucket: %v", err)
		}
		keyBucket, err := kv.OpenFile(filepath.Join(dir, "keyring.json"))
		if err != nil {
			t.Fatalf("open keyring bucket: %v", err)
		}
		svc, err := memory.NewService(store.New(docBucket, nil), mock.New(), seal.NewKeychain(keyBucket), nil)
		if err != nil {
			t.Fatalf("NewService: %v", err)
		}
		return svc
	}

	text := "remember me across restarts"
	if err := open().AddInteraction(ctx, text, memory.TypeNote); err != nil {
		t.Fatalf("AddInteraction: %v", err)
	}

	// A second service over the same files must load the same key and
	// decrypt what the first one wrote.
	got, err := open().RetrieveContext(ctx, text, 1, 0)
	if err != nil {
		t.Fatalf("RetrieveContext: %v", err)
	}
	if len(got) != 1 || got[0].Text != text {
		t.Fatalf("restart lost the memory: %+v", got)
	}
}

func TestService_PurgeKeepsKey(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, mock.New(), nil)

	if err := f.svc.AddInteraction(ctx, "before purge", memory.TypeInteraction); err != nil {
		t.Fatalf("AddInteraction: %v", err)
	}
	if err := f.svc.Purge(ctx); err != nil {
		t.Fatalf("Purge: %v", err)
	}

	// Writes after a purge must still work with the original key.
	text := "after purge"
	if err := f.svc.AddInteraction(ctx, text, memory.TypeInteraction); err != nil {
		t.Fatalf("AddInteraction after purge: %v", err)
	}
	got, err := f.svc.RetrieveContext(ctx, text, 1, 0)
	if err != nil {
		t.Fatalf("RetrieveContext: %v", err)
	}
	if len(got) != 1 || got[0].Text != text {
		t.Fatalf("post-purge write not retrievable: %+v", got)
	}
}

func TestFormatContext(t *testing.T) {
	if got := memory.FormatContext(nil); got != "" {
		t.Errorf("FormatContext(nil) = %q, want empty", got)
	}

	ctx := context.Background()
	f := newFixture(t, mock.New(), nil)
	if err := f.svc.AddInteraction(ctx, "formatted memory", memory.TypeNote); err != nil {
		t.Fatalf("AddInteraction: %v", err)
	}
	got, err := f.svc.RetrieveContext(ctx, "formatted memory", 1, 0)
	if err != nil {
		t.Fatalf("RetrieveContext: %v", err)
	}

	out := memory.FormatContext(got)
	if !strings.Contains(out, "RELEVANT PAST CONTEXT") {
		t.Errorf("missing header: %q", out)
	}
	if !strings.Contains(out, "formatted memory") {
		t.Errorf("missing memory text: %q", out)
	}
}

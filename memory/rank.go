package memory

import (
	"math"
	"sort"
)

// Scored pairs a document with its similarity against a query.
type Scored struct {
	Document Document
	Score    float64
}

// Score returns the cosine similarity of two vectors, in [-1, 1].
// A zero-magnitude vector scores exactly 0 — never NaN. Vectors of
// unequal length also score 0; the store invariant keeps all embeddings
// the same length, so this only happens on malformed input.
func Score(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Rank scores every document against the query vector and returns them
// sorted by score descending, truncated to limit. The sort is stable, so
// ties break by original insertion order. A negative limit disables
// truncation.
func Rank(query []float32, docs []Document, limit int) []Scored {
	scored := make([]Scored, len(docs))
	for i, doc := range docs {
		scored[i] = Scored{Document: doc, Score: Score(query, doc.Embedding)}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if limit >= 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}

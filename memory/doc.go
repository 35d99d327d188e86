// Package memory provides the encrypted semantic memory store for the
// assistant: it remembers prior interactions across sessions and retrieves
// the most relevant ones for a new query by vector similarity, while the
// raw text stays encrypted at rest.
//
// Architecture:
//   - kv: persistent key-value backend (file snapshot for local, in-memory for tests)
//   - seal: AES-256-GCM cipher and single-key lifecycle (the crypto boundary)
//   - redact: PII scrubbing applied before anything is embedded or stored
//   - store: append-only document store over kv
//   - Service: orchestration facade (AddInteraction / RetrieveContext / Purge)
//   - Embedder: text-to-vector conversion (mock for tests, ONNX for local)
//
// Write path: text -> redact -> {embed, encrypt} concurrently -> Document ->
// store. All-or-nothing: if embedding fails, nothing is persisted.
//
// Read path: query -> embed -> full scan -> cosine rank -> threshold filter ->
// decrypt top-K. A corrupted record becomes a placeholder entry instead of
// failing the whole retrieval.
//
// Retrieval is a linear scan over the corpus. That is the documented
// scalability ceiling of this subsystem, not a defect: it assumes a single
// owning process and a bounded corpus.
package memory

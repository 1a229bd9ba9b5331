package ingest

import "context"

// StaticEmbeddingSource serves embeddings from an in-memory map. It backs
// local development and the SQLite storage backend, where no embedding
// service is configured and callers are expected to supply vectors
// up-front (e.g. precomputed and loaded alongside the triple file).
type StaticEmbeddingSource struct {
	vectors map[string][]float32
}

// NewStaticEmbeddingSource wraps vectors as an EmbeddingSource. A nil map
// behaves as an always-missing source: every label resolves with ok=false,
// which the pipeline treats as "no embedding available" rather than an
// error.
func NewStaticEmbeddingSource(vectors map[string][]float32) *StaticEmbeddingSource {
	return &StaticEmbeddingSource{vectors: vectors}
}

func (s *StaticEmbeddingSource) Embedding(ctx context.Context, nodeLabel string) ([]float32, bool, error) {
	v, ok := s.vectors[nodeLabel]
	return v, ok, nil
}

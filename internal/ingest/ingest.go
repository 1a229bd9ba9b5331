// Package ingest adapts external triple and embedding sources into the
// shape internal/pipeline consumes, per the Triple source / Embedding
// source contracts.
package ingest

import "context"

// Triple is one Subject-Verb-Object fact as it arrives from an external
// extractor, before it is folded into hyperedges. Labels are compared
// case-sensitively; deduplication against existing nodes is the caller's
// responsibility, not the reader's.
type Triple struct {
	Verb         string
	SourceLabels []string
	TargetLabels []string
	ChunkID      string
}

// TripleReader is a pull-based iterator over a triple source. Next returns
// ok=false with a nil error at a clean end of input.
type TripleReader interface {
	Next(ctx context.Context) (triple Triple, ok bool, err error)
	Close() error
}

// EmbeddingSource maps a node label to its dense embedding. A missing
// embedding is not an error: the caller drops that node from pooling, per
// spec.md's External Interfaces contract.
type EmbeddingSource interface {
	Embedding(ctx context.Context, nodeLabel string) ([]float32, bool, error)
}

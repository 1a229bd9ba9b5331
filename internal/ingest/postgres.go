package ingest

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvec "github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
)

// PostgresTripleReader reads triples from the same pgx pool the Postgres
// sink writes through, ordered by chunk arrival so a single pass ingests a
// corpus in the order it was recorded.
type PostgresTripleReader struct {
	pool *pgxpool.Pool
	rows pgx.Rows
}

// NewPostgresTripleReader opens a streaming cursor over the raw_triples
// table. The caller owns pool and keeps it open for the reader's lifetime.
func NewPostgresTripleReader(ctx context.Context, pool *pgxpool.Pool) (*PostgresTripleReader, error) {
	rows, err := pool.Query(ctx, `SELECT verb, source_labels, target_labels, chunk_id
		FROM raw_triples ORDER BY chunk_id, id`)
	if err != nil {
		return nil, fmt.Errorf("query raw_triples: %w", err)
	}
	return &PostgresTripleReader{pool: pool, rows: rows}, nil
}

// Next returns the next triple row, or ok=false once the cursor is exhausted.
func (r *PostgresTripleReader) Next(ctx context.Context) (Triple, bool, error) {
	select {
	case <-ctx.Done():
		return Triple{}, false, ctx.Err()
	default:
	}

	if !r.rows.Next() {
		if err := r.rows.Err(); err != nil {
			return Triple{}, false, fmt.Errorf("scan raw_triples: %w", err)
		}
		return Triple{}, false, nil
	}

	var t Triple
	if err := r.rows.Scan(&t.Verb, &t.SourceLabels, &t.TargetLabels, &t.ChunkID); err != nil {
		return Triple{}, false, fmt.Errorf("scan raw_triples row: %w", err)
	}
	return t, true, nil
}

// Close releases the cursor. The pool itself is owned by the caller.
func (r *PostgresTripleReader) Close() error {
	r.rows.Close()
	return nil
}

// PostgresEmbeddingSource resolves node-label embeddings against the
// node_embeddings table via the same pgx pool, using pgvector's wire format.
type PostgresEmbeddingSource struct {
	pool *pgxpool.Pool
}

// NewPostgresEmbeddingSource wraps an existing pgx pool.
func NewPostgresEmbeddingSource(pool *pgxpool.Pool) *PostgresEmbeddingSource {
	return &PostgresEmbeddingSource{pool: pool}
}

// Embedding looks up nodeLabel's stored vector. A missing row is reported as
// ok=false with a nil error, not an error.
func (s *PostgresEmbeddingSource) Embedding(ctx context.Context, nodeLabel string) ([]float32, bool, error) {
	var vec pgvec.Vector
	err := s.pool.QueryRow(ctx, `SELECT embedding FROM node_embeddings WHERE label = $1`, nodeLabel).Scan(&vec)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("query embedding for %q: %w", nodeLabel, err)
	}
	log.Debug().Str("label", nodeLabel).Msg("resolved embedding from postgres")
	return vec.Slice(), true, nil
}

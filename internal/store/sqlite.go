package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/nwgraph/analyticscore/pkg/corpus"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS assignments (
	build_id TEXT NOT NULL,
	edge_id INTEGER NOT NULL,
	label INTEGER NOT NULL,
	membership REAL NOT NULL,
	PRIMARY KEY (build_id, edge_id)
);

CREATE TABLE IF NOT EXISTS clusters (
	build_id TEXT NOT NULL,
	label INTEGER NOT NULL,
	auto_label TEXT,
	top_entities TEXT,
	top_families TEXT,
	size INTEGER,
	centroid BLOB,
	PRIMARY KEY (build_id, label)
);

CREATE TABLE IF NOT EXISTS cluster_members (
	build_id TEXT NOT NULL,
	cluster_label INTEGER NOT NULL,
	edge_id INTEGER NOT NULL,
	PRIMARY KEY (build_id, cluster_label, edge_id)
);

CREATE TABLE IF NOT EXISTS cluster_exemplars (
	build_id TEXT NOT NULL,
	cluster_label INTEGER NOT NULL,
	edge_id INTEGER NOT NULL,
	rank INTEGER,
	similarity REAL,
	PRIMARY KEY (build_id, cluster_label, edge_id)
);

CREATE TABLE IF NOT EXISTS build_records (
	build_id TEXT PRIMARY KEY,
	started_at_utc INTEGER,
	finished_at_utc INTEGER,
	event_count INTEGER,
	cluster_count INTEGER,
	noise_count INTEGER,
	error TEXT
);
`

// SQLiteConfig configures the single-file fallback Sink, used for local
// development and small corpora that do not warrant a Postgres instance.
type SQLiteConfig struct {
	Path     string
	MaxConns int
}

// SQLiteStore is a Sink backed by a single SQLite file via modernc.org/sqlite,
// storing centroids as little-endian float32 blobs per the binary layout
// every wire/storage format in this module shares.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if necessary) the database file and
// applies the schema.
func NewSQLiteStore(cfg SQLiteConfig) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", cfg.Path+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 1 // SQLite serializes writers; one connection avoids lock contention.
	}
	db.SetMaxOpenConns(maxConns)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	log.Debug().Str("path", cfg.Path).Msg("sqlite store ready")
	return &SQLiteStore{db: db}, nil
}

func encodeCentroid(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// StoreAssignments writes every assignment row inside one transaction.
func (s *SQLiteStore) StoreAssignments(ctx context.Context, buildID string, assignments []corpus.Assignment) error {
	if len(assignments) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO assignments (build_id, edge_id, label, membership)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(build_id, edge_id) DO UPDATE SET label = excluded.label, membership = excluded.membership`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, a := range assignments {
		if _, err := stmt.ExecContext(ctx, buildID, a.EdgeID, a.Label, a.Membership); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// StoreCluster upserts one cluster's summary row.
func (s *SQLiteStore) StoreCluster(ctx context.Context, buildID string, cluster corpus.Cluster) error {
	entitiesJSON, err := json.Marshal(cluster.TopEntities)
	if err != nil {
		return fmt.Errorf("marshal top entities: %w", err)
	}
	familiesJSON, err := json.Marshal(cluster.TopFamilies)
	if err != nil {
		return fmt.Errorf("marshal top families: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO clusters
		(build_id, label, auto_label, top_entities, top_families, size, centroid)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(build_id, label) DO UPDATE SET
			auto_label = excluded.auto_label,
			top_entities = excluded.top_entities,
			top_families = excluded.top_families,
			size = excluded.size,
			centroid = excluded.centroid`,
		buildID, cluster.Label, cluster.AutoLabel, string(entitiesJSON), string(familiesJSON),
		cluster.Size, encodeCentroid(cluster.Centroid))
	return err
}

// StoreMember upserts one cluster membership row.
func (s *SQLiteStore) StoreMember(ctx context.Context, buildID string, clusterLabel int, edgeID int64) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO cluster_members (build_id, cluster_label, edge_id)
		VALUES (?, ?, ?) ON CONFLICT DO NOTHING`, buildID, clusterLabel, edgeID)
	return err
}

// StoreExemplar upserts one ranked exemplar row.
func (s *SQLiteStore) StoreExemplar(ctx context.Context, buildID string, clusterLabel int, exemplar corpus.Exemplar) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO cluster_exemplars
		(build_id, cluster_label, edge_id, rank, similarity)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(build_id, cluster_label, edge_id) DO UPDATE SET
			rank = excluded.rank, similarity = excluded.similarity`,
		buildID, clusterLabel, exemplar.EdgeID, exemplar.Rank, exemplar.Similarity)
	return err
}

// StoreBuildRecord upserts the build bookkeeping row.
func (s *SQLiteStore) StoreBuildRecord(ctx context.Context, record corpus.BuildRecord) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO build_records
		(build_id, started_at_utc, finished_at_utc, event_count, cluster_count, noise_count, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(build_id) DO UPDATE SET
			finished_at_utc = excluded.finished_at_utc,
			event_count = excluded.event_count,
			cluster_count = excluded.cluster_count,
			noise_count = excluded.noise_count,
			error = excluded.error`,
		record.BuildID, record.StartedAtUTC, record.FinishedUTC,
		record.EventCount, record.ClusterCount, record.NoiseCount, record.Err)
	return err
}

// Close closes the underlying database file.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

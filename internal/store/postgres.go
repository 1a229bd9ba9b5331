package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	pgvec "github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nwgraph/analyticscore/pkg/corpus"
)

// PostgresConfig configures the Postgres-backed Sink.
type PostgresConfig struct {
	DSN           string
	EmbeddingDims int
	MaxConns      int32
}

// PostgresStore is a Sink backed by Postgres with the pgvector extension.
// Schema migrations run once through gorm/gormigrate at construction time;
// all subsequent reads and writes go straight through a pgx pool, avoiding
// the ORM on the hot path.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore runs migrations via a short-lived gorm connection, then
// opens the pgx pool runtime queries use.
func NewPostgresStore(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	dims := cfg.EmbeddingDims
	if dims <= 0 {
		dims = 384
	}
	if err := migrateViaGorm(cfg.DSN, dims); err != nil {
		return nil, err
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse pgx pool config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	log.Debug().Str("dsn_host", hostOnly(cfg.DSN)).Msg("postgres store ready")
	return &PostgresStore{pool: pool}, nil
}

func migrateViaGorm(dsn string, embeddingDims int) error {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return fmt.Errorf("open gorm postgres for migration: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql.DB for migration: %w", err)
	}
	defer sqlDB.Close()

	if err := runMigrations(db, embeddingDims); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func hostOnly(dsn string) string {
	// Best-effort redaction for logging: never echo credentials embedded
	// in the DSN, only enough to confirm which host we connected to.
	for i := len(dsn) - 1; i >= 0; i-- {
		if dsn[i] == '@' {
			return dsn[i+1:]
		}
	}
	return "unknown"
}

// StoreAssignments upserts the per-build assignment rows in one transaction.
func (s *PostgresStore) StoreAssignments(ctx context.Context, buildID string, assignments []corpus.Assignment) error {
	if len(assignments) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, a := range assignments {
		if _, err := tx.Exec(ctx, `INSERT INTO assignments (build_id, edge_id, label, membership)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (build_id, edge_id) DO UPDATE SET label = excluded.label, membership = excluded.membership`,
			buildID, a.EdgeID, a.Label, a.Membership); err != nil {
			return fmt.Errorf("store assignment %d: %w", a.EdgeID, err)
		}
	}
	return tx.Commit(ctx)
}

// StoreCluster upserts one cluster's summary row.
func (s *PostgresStore) StoreCluster(ctx context.Context, buildID string, cluster corpus.Cluster) error {
	entitiesJSON, err := json.Marshal(cluster.TopEntities)
	if err != nil {
		return fmt.Errorf("marshal top entities: %w", err)
	}
	familiesJSON, err := json.Marshal(cluster.TopFamilies)
	if err != nil {
		return fmt.Errorf("marshal top families: %w", err)
	}

	_, err = s.pool.Exec(ctx, `INSERT INTO clusters
		(build_id, label, auto_label, top_entities, top_families, size, centroid)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (build_id, label) DO UPDATE SET
			auto_label = excluded.auto_label,
			top_entities = excluded.top_entities,
			top_families = excluded.top_families,
			size = excluded.size,
			centroid = excluded.centroid`,
		buildID, cluster.Label, cluster.AutoLabel, entitiesJSON, familiesJSON,
		cluster.Size, pgvec.NewVector(cluster.Centroid))
	return err
}

// StoreMember upserts one cluster membership row.
func (s *PostgresStore) StoreMember(ctx context.Context, buildID string, clusterLabel int, edgeID int64) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO cluster_members (build_id, cluster_label, edge_id)
		VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`, buildID, clusterLabel, edgeID)
	return err
}

// StoreExemplar upserts one ranked exemplar row.
func (s *PostgresStore) StoreExemplar(ctx context.Context, buildID string, clusterLabel int, exemplar corpus.Exemplar) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO cluster_exemplars
		(build_id, cluster_label, edge_id, rank, similarity)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (build_id, cluster_label, edge_id) DO UPDATE SET
			rank = excluded.rank, similarity = excluded.similarity`,
		buildID, clusterLabel, exemplar.EdgeID, exemplar.Rank, exemplar.Similarity)
	return err
}

// StoreBuildRecord upserts the build bookkeeping row.
func (s *PostgresStore) StoreBuildRecord(ctx context.Context, record corpus.BuildRecord) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO build_records
		(build_id, started_at_utc, finished_at_utc, event_count, cluster_count, noise_count, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (build_id) DO UPDATE SET
			finished_at_utc = excluded.finished_at_utc,
			event_count = excluded.event_count,
			cluster_count = excluded.cluster_count,
			noise_count = excluded.noise_count,
			error = excluded.error`,
		record.BuildID, record.StartedAtUTC, record.FinishedUTC,
		record.EventCount, record.ClusterCount, record.NoiseCount, record.Err)
	return err
}

// Close releases the pgx pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

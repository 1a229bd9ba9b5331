package store

import (
	"fmt"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// runMigrations applies the schema migrations for the Postgres-backed
// store, enabling pgvector before anything that depends on the vector
// column type.
func runMigrations(db *gorm.DB, embeddingDims int) error {
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return fmt.Errorf("enable pgvector extension: %w", err)
	}

	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "001_clusters_and_assignments",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&assignmentRow{}); err != nil {
					return err
				}
				if err := tx.Exec(fmt.Sprintf(
					`CREATE TABLE IF NOT EXISTS clusters (
						build_id text NOT NULL,
						label integer NOT NULL,
						auto_label text,
						top_entities jsonb,
						top_families jsonb,
						size integer,
						centroid vector(%d),
						PRIMARY KEY (build_id, label)
					)`, embeddingDims)).Error; err != nil {
					return err
				}
				if err := tx.AutoMigrate(&memberRow{}); err != nil {
					return err
				}
				return tx.AutoMigrate(&exemplarRow{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("assignments", "clusters", "cluster_members", "cluster_exemplars")
			},
		},
		{
			ID: "002_build_records",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&buildRecordRow{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("build_records")
			},
		},
		{
			ID: "003_centroid_ivfflat_index",
			Migrate: func(tx *gorm.DB) error {
				return tx.Exec(
					`CREATE INDEX IF NOT EXISTS idx_clusters_centroid
					 ON clusters USING ivfflat (centroid vector_cosine_ops)`).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Exec("DROP INDEX IF EXISTS idx_clusters_centroid").Error
			},
		},
	})

	return m.Migrate()
}

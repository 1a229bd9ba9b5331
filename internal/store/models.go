// Package store's GORM row types exist solely so gormigrate/AutoMigrate can
// stand up the schema; runtime reads and writes against Postgres go through
// pgx directly (see postgres.go), matching the teacher's split between
// gorm-managed migrations and hand-written pgx/pgvector query paths.
package store

// memberRow is the GORM model backing the cluster_members table.
type memberRow struct {
	BuildID      string `gorm:"primaryKey;column:build_id"`
	ClusterLabel int    `gorm:"primaryKey;column:cluster_label"`
	EdgeID       int64  `gorm:"primaryKey;column:edge_id"`
}

func (memberRow) TableName() string { return "cluster_members" }

// exemplarRow is the GORM model backing the cluster_exemplars table.
type exemplarRow struct {
	BuildID      string  `gorm:"primaryKey;column:build_id"`
	ClusterLabel int     `gorm:"primaryKey;column:cluster_label"`
	EdgeID       int64   `gorm:"primaryKey;column:edge_id"`
	Rank         int     `gorm:"column:rank"`
	Similarity   float64 `gorm:"column:similarity"`
}

func (exemplarRow) TableName() string { return "cluster_exemplars" }

// assignmentRow is the GORM model backing the assignments table.
type assignmentRow struct {
	BuildID    string  `gorm:"primaryKey;column:build_id"`
	EdgeID     int64   `gorm:"primaryKey;column:edge_id"`
	Label      int     `gorm:"column:label"`
	Membership float64 `gorm:"column:membership"`
}

func (assignmentRow) TableName() string { return "assignments" }

// buildRecordRow is the GORM model backing the build_records table.
type buildRecordRow struct {
	BuildID       string `gorm:"primaryKey;column:build_id"`
	Err           string `gorm:"column:error"`
	StartedAtUTC  int64  `gorm:"column:started_at_utc"`
	FinishedUTC   int64  `gorm:"column:finished_at_utc"`
	EventCount    int    `gorm:"column:event_count"`
	ClusterCount  int    `gorm:"column:cluster_count"`
	NoiseCount    int    `gorm:"column:noise_count"`
}

func (buildRecordRow) TableName() string { return "build_records" }

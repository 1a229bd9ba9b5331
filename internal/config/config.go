// Package config loads the process-wide tunables for an analyticscore
// deployment. Unlike the teacher's internal/config, nothing here is a
// package-level singleton: Load returns an explicit Config record that
// callers thread through the pipeline by hand; only cmd/analyticsd may
// choose to hold one globally at the process edge.
package config

import (
	"encoding/json"
	"os"
	"strconv"
)

// Defaults mirror spec.md's stated constants.
const (
	DefaultIDFMax             = 6.0
	DefaultEmbeddingDim       = 384
	DefaultMinClusterSize     = 10
	DefaultMinSamples         = 0 // 0 means "default to MinClusterSize"
	DefaultIntersectionThresh = 1
	DefaultMaxPaths           = 20
	DefaultMaxPathDepth       = 6
	DefaultHTTPPort           = 8080
	DefaultDSN                = "postgres://localhost:5432/analyticscore"
	DefaultSQLitePath         = "./analyticscore.db"
)

// Config is the explicit, process-wide parameter record passed into the
// pipeline and the HTTP surface. There is no package-level instance of it;
// every constructor takes one by value or pointer.
type Config struct {
	DSN                   string  `json:"dsn"`
	SQLitePath            string  `json:"sqlite_path"`
	StorageBackend        string  `json:"storage_backend"` // "postgres" or "sqlite"
	LabelingEndpoint      string  `json:"labeling_endpoint"`
	EmbeddingDim          int     `json:"embedding_dim"`
	MinClusterSize        int     `json:"min_cluster_size"`
	MinSamples            int     `json:"min_samples"`
	IntersectionThreshold int     `json:"intersection_threshold"`
	MaxPaths              int     `json:"max_paths"`
	MaxPathDepth          int     `json:"max_path_depth"`
	HTTPPort              int     `json:"http_port"`
	IDFMax                float64 `json:"idf_max"`
}

// Default returns a Config populated with spec-derived defaults.
func Default() Config {
	return Config{
		StorageBackend:        "sqlite",
		SQLitePath:            DefaultSQLitePath,
		DSN:                   DefaultDSN,
		EmbeddingDim:          DefaultEmbeddingDim,
		IDFMax:                DefaultIDFMax,
		MinClusterSize:        DefaultMinClusterSize,
		MinSamples:            DefaultMinSamples,
		IntersectionThreshold: DefaultIntersectionThresh,
		MaxPaths:              DefaultMaxPaths,
		MaxPathDepth:          DefaultMaxPathDepth,
		HTTPPort:              DefaultHTTPPort,
	}
}

// Load reads a JSON config file at path (if it exists) over top of
// Default(), then applies ANALYTICSCORE_* environment overrides. A missing
// file is not an error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, err
			}
		} else if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ANALYTICSCORE_DSN"); v != "" {
		cfg.DSN = v
	}
	if v := os.Getenv("ANALYTICSCORE_SQLITE_PATH"); v != "" {
		cfg.SQLitePath = v
	}
	if v := os.Getenv("ANALYTICSCORE_STORAGE_BACKEND"); v != "" {
		cfg.StorageBackend = v
	}
	if v := os.Getenv("ANALYTICSCORE_LABELING_ENDPOINT"); v != "" {
		cfg.LabelingEndpoint = v
	}
	if v, ok := intEnv("ANALYTICSCORE_HTTP_PORT"); ok {
		cfg.HTTPPort = v
	}
	if v, ok := intEnv("ANALYTICSCORE_MIN_CLUSTER_SIZE"); ok && v > 0 {
		cfg.MinClusterSize = v
	}
	if v, ok := intEnv("ANALYTICSCORE_MAX_PATHS"); ok && v > 0 {
		cfg.MaxPaths = v
	}
	if v, ok := intEnv("ANALYTICSCORE_MAX_PATH_DEPTH"); ok && v >= 0 {
		cfg.MaxPathDepth = v
	}
}

func intEnv(name string) (int, bool) {
	raw := os.Getenv(name)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

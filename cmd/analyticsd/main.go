// Package main provides the entry point for the analytics daemon: it loads
// configuration, wires a persistence sink, the clustering pipeline, and the
// interactive HTTP surface, then serves until a shutdown signal arrives.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nwgraph/analyticscore/internal/api"
	"github.com/nwgraph/analyticscore/internal/config"
	"github.com/nwgraph/analyticscore/internal/ingest"
	"github.com/nwgraph/analyticscore/internal/labeling"
	"github.com/nwgraph/analyticscore/internal/observability"
	"github.com/nwgraph/analyticscore/internal/pipeline"
	"github.com/nwgraph/analyticscore/internal/store"
)

var Version = "dev"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	log.Info().Str("version", Version).Msg("starting analyticscore daemon")

	cfg, err := config.Load(os.Getenv("ANALYTICSCORE_CONFIG_PATH"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	svc, err := newService(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build service")
	}

	if err := svc.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start service")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("received shutdown signal")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := svc.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}

	log.Info().Msg("analyticscore daemon shutdown complete")
}

// service bundles the HTTP and metrics listeners and the sink they both
// depend on, following the same Start/Shutdown shape the worker daemon
// this module was built from uses.
type service struct {
	cfg     config.Config
	sink    store.Sink
	metrics *observability.Metrics

	httpSrv    *http.Server
	metricsSrv *http.Server
}

func newService(cfg config.Config) (*service, error) {
	sink, err := buildSink(cfg)
	if err != nil {
		return nil, err
	}

	var labeler labeling.Provider
	if cfg.LabelingEndpoint != "" {
		labeler = labeling.New(labeling.Config{Endpoint: cfg.LabelingEndpoint})
	}

	runner := pipeline.New(sink, pipeline.Config{
		EmbeddingDim:   cfg.EmbeddingDim,
		MinClusterSize: cfg.MinClusterSize,
		MinSamples:     cfg.MinSamples,
	}, labeler)

	metrics, err := observability.New()
	if err != nil {
		return nil, err
	}
	runner.SetMetrics(metrics)

	embeddings, err := buildEmbeddingSource(cfg)
	if err != nil {
		return nil, err
	}

	server := api.New(runner, embeddings)
	server.SetMetrics(metrics)

	return &service{
		cfg:     cfg,
		sink:    sink,
		metrics: metrics,
		httpSrv: &http.Server{
			Addr:              httpAddr(cfg),
			Handler:           server,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		metricsSrv: &http.Server{
			Addr:              metricsAddr(cfg),
			Handler:           metrics.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

func (s *service) Start() error {
	go func() {
		log.Info().Str("addr", s.httpSrv.Addr).Msg("serving HTTP API")
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	go func() {
		log.Info().Str("addr", s.metricsSrv.Addr).Msg("serving metrics")
		if err := s.metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server error")
		}
	}()

	return nil
}

func (s *service) Shutdown(ctx context.Context) error {
	var errs []error

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.metricsSrv.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.metrics.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.sink.Close(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

func buildSink(cfg config.Config) (store.Sink, error) {
	switch cfg.StorageBackend {
	case "postgres":
		return store.NewPostgresStore(context.Background(), store.PostgresConfig{
			DSN:           cfg.DSN,
			EmbeddingDims: cfg.EmbeddingDim,
		})
	default:
		return store.NewSQLiteStore(store.SQLiteConfig{Path: cfg.SQLitePath})
	}
}

func buildEmbeddingSource(cfg config.Config) (ingest.EmbeddingSource, error) {
	switch cfg.StorageBackend {
	case "postgres":
		pool, err := pgxpool.New(context.Background(), cfg.DSN)
		if err != nil {
			return nil, err
		}
		return ingest.NewPostgresEmbeddingSource(pool), nil
	default:
		return ingest.NewStaticEmbeddingSource(nil), nil
	}
}

func httpAddr(cfg config.Config) string {
	port := cfg.HTTPPort
	if port <= 0 {
		port = config.DefaultHTTPPort
	}
	return ":" + strconv.Itoa(port)
}

func metricsAddr(cfg config.Config) string {
	port := cfg.HTTPPort
	if port <= 0 {
		port = config.DefaultHTTPPort
	}
	return ":" + strconv.Itoa(port+1)
}

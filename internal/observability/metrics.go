// Package observability wires OpenTelemetry metrics for the pipeline and
// HTTP surface into a Prometheus-scrapable endpoint, grounded on the same
// otel/metric meter-and-instrument idiom used across the pack's graph
// analytics services.
package observability

import (
	"context"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	otelprometheus "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

var meter = otel.Meter("analyticscore")

// Metrics bundles the instruments recorded across a pipeline run and the
// interactive HTTP surface.
type Metrics struct {
	PipelineRunDuration metric.Float64Histogram
	ClusterCount        metric.Int64Histogram
	PathQueryDuration   metric.Float64Histogram

	provider *sdkmetric.MeterProvider
	registry *prometheus.Registry
}

var (
	once    sync.Once
	current *Metrics
	initErr error
)

// New builds the meter provider, registers its Prometheus bridge, and
// creates every instrument. Safe to call more than once; later calls reuse
// the first provider.
func New() (*Metrics, error) {
	once.Do(func() {
		registry := prometheus.NewRegistry()
		exporter, err := otelprometheus.New(otelprometheus.WithRegisterer(registry))
		if err != nil {
			initErr = err
			return
		}

		provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
		otel.SetMeterProvider(provider)
		meter = provider.Meter("analyticscore")

		m := &Metrics{provider: provider, registry: registry}

		m.PipelineRunDuration, err = meter.Float64Histogram(
			"analyticscore_pipeline_run_duration_seconds",
			metric.WithDescription("Duration of one full pipeline run, from ingest through persistence"),
			metric.WithUnit("s"),
		)
		if err != nil {
			initErr = err
			return
		}

		m.ClusterCount, err = meter.Int64Histogram(
			"analyticscore_cluster_count",
			metric.WithDescription("Number of non-noise clusters produced per pipeline run"),
		)
		if err != nil {
			initErr = err
			return
		}

		m.PathQueryDuration, err = meter.Float64Histogram(
			"analyticscore_path_query_duration_seconds",
			metric.WithDescription("Duration of one PathFinder query over the HTTP surface"),
			metric.WithUnit("s"),
		)
		if err != nil {
			initErr = err
			return
		}

		current = m
	})
	return current, initErr
}

// Handler serves the Prometheus text exposition format for the registry
// New populated.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Shutdown flushes and stops the underlying meter provider.
func (m *Metrics) Shutdown(ctx context.Context) error {
	return m.provider.Shutdown(ctx)
}

// Package pipeline orchestrates one batch clustering run: build the
// hypergraph from a triple source, compute event vectors, cluster them with
// HDBSCAN, derive cluster artifacts, and persist the result. It mirrors the
// teacher's worker service in spirit (a single orchestrator holding
// constructed dependencies) without the singleton config or HTTP concerns,
// which live one layer up in cmd/analyticsd.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/nwgraph/analyticscore/internal/clusterart"
	"github.com/nwgraph/analyticscore/internal/eventvec"
	"github.com/nwgraph/analyticscore/internal/hdbscan"
	"github.com/nwgraph/analyticscore/internal/hypergraph"
	"github.com/nwgraph/analyticscore/internal/ingest"
	"github.com/nwgraph/analyticscore/internal/labeling"
	"github.com/nwgraph/analyticscore/internal/observability"
	"github.com/nwgraph/analyticscore/internal/store"
	"github.com/nwgraph/analyticscore/pkg/corpus"
)

// Config is the explicit, per-runner parameter set threaded in from
// internal/config; nothing here is read from a package-level singleton.
type Config struct {
	EmbeddingDim   int
	MinClusterSize int
	MinSamples     int
}

// Job is one unit of pipeline work: a buildID plus the sources it reads
// from. Multiple independent jobs can run concurrently via RunMany.
type Job struct {
	BuildID    string
	Triples    ingest.TripleReader
	Embeddings ingest.EmbeddingSource
}

// Result is everything one build produces: the bookkeeping record already
// durably stored through the Sink, plus the in-memory cluster artifacts and
// hypergraph index a caller needs for interactive queries (PathFinder,
// ForceDirectedLayout) without re-reading them back out of storage.
type Result struct {
	Record   corpus.BuildRecord
	Clusters []corpus.Cluster
	Index    *hypergraph.Index
}

// Runner executes build jobs against a fixed Sink, optionally improving
// cluster labels through a labeling.Provider. A single Runner is safe for
// concurrent use: concurrent Run calls for the same BuildID are coalesced
// via singleflight so only one clustering pass happens per build at a time.
type Runner struct {
	sink    store.Sink
	labeler labeling.Provider
	cfg     Config
	runs    singleflight.Group
	metrics *observability.Metrics
}

// New builds a Runner. labeler may be nil, in which case clusters keep
// their auto-generated labels.
func New(sink store.Sink, cfg Config, labeler labeling.Provider) *Runner {
	return &Runner{sink: sink, labeler: labeler, cfg: cfg}
}

// SetMetrics attaches the instruments a completed run records into. Nil is
// valid and leaves recording disabled, so tests and callers that don't care
// about metrics never need to construct a Metrics bundle.
func (r *Runner) SetMetrics(m *observability.Metrics) {
	r.metrics = m
}

// Run executes one build end to end and returns its bookkeeping record.
// Concurrent calls sharing the same BuildID are coalesced via singleflight
// so only one clustering pass happens per build at a time.
func (r *Runner) Run(ctx context.Context, job Job) (corpus.BuildRecord, error) {
	result, err := r.RunDetailed(ctx, job)
	return result.Record, err
}

// RunDetailed is Run plus the in-memory clusters and hypergraph index from
// the same run, for callers (cmd/analyticsd's HTTP surface) that need to
// answer interactive queries against a build without a read path on Sink.
func (r *Runner) RunDetailed(ctx context.Context, job Job) (Result, error) {
	out, err, _ := r.runs.Do(job.BuildID, func() (any, error) {
		return r.runOnce(ctx, job)
	})
	if err != nil {
		return Result{}, err
	}
	return out.(Result), nil
}

// RunMany fans out independent jobs concurrently, one goroutine per job,
// and returns every job's record in input order. The first job error
// cancels the shared context, per errgroup's usual fail-fast semantics; the
// records already produced are still returned.
func (r *Runner) RunMany(ctx context.Context, jobs []Job) ([]corpus.BuildRecord, error) {
	records := make([]corpus.BuildRecord, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			rec, err := r.Run(gctx, job)
			records[i] = rec
			return err
		})
	}
	err := g.Wait()
	return records, err
}

func (r *Runner) runOnce(ctx context.Context, job Job) (Result, error) {
	record := corpus.BuildRecord{BuildID: job.BuildID, StartedAtUTC: nowUnix()}
	phases := make(map[string]int64)
	runStart := time.Now()

	if err := r.sink.StoreBuildRecord(ctx, record); err != nil {
		log.Debug().Err(err).Str("build_id", job.BuildID).Msg("failed to persist build-start record, continuing")
	}

	result, err := r.runPhases(ctx, job, record, phases)
	result.Record.FinishedUTC = nowUnix()
	result.Record.PhaseMillis = phases
	if err != nil {
		result.Record.Err = err.Error()
	}
	if storeErr := r.sink.StoreBuildRecord(ctx, result.Record); storeErr != nil {
		log.Debug().Err(storeErr).Str("build_id", job.BuildID).Msg("failed to persist build-finish record")
	}

	r.recordMetrics(ctx, time.Since(runStart), len(result.Clusters))
	return result, err
}

func (r *Runner) recordMetrics(ctx context.Context, duration time.Duration, clusterCount int) {
	if r.metrics == nil {
		return
	}
	r.metrics.PipelineRunDuration.Record(ctx, duration.Seconds())
	r.metrics.ClusterCount.Record(ctx, int64(clusterCount))
}

func (r *Runner) runPhases(ctx context.Context, job Job, record corpus.BuildRecord, phases map[string]int64) (Result, error) {
	defer job.Triples.Close()
	result := Result{Record: record}

	phaseStart := time.Now()
	nodes, edges, err := buildCorpus(ctx, job.Triples, job.Embeddings)
	phases["ingest"] = time.Since(phaseStart).Milliseconds()
	if err != nil {
		return result, fmt.Errorf("build corpus for %s: %w", job.BuildID, err)
	}

	idx, err := hypergraph.NewIndex(nodes, edges)
	if err != nil {
		return result, fmt.Errorf("index corpus for %s: %w", job.BuildID, err)
	}
	result.Index = idx

	phaseStart = time.Now()
	vectorizer := eventvec.New(idx, eventvec.Config{D: r.dim()})
	vectorizer.ComputeIDF()
	vectors, err := vectorizer.BuildEventVectors(ctx)
	phases["vectorize"] = time.Since(phaseStart).Milliseconds()
	if err != nil {
		return result, fmt.Errorf("vectorize events for %s: %w", job.BuildID, err)
	}
	result.Record.EventCount = len(vectors)

	ids := make([]int64, len(vectors))
	values := make([][]float32, len(vectors))
	for i, v := range vectors {
		ids[i] = v.EdgeID
		values[i] = v.Vector
	}

	phaseStart = time.Now()
	assignments, err := hdbscan.Run(ids, values, hdbscan.Config{
		MinClusterSize: r.cfg.MinClusterSize,
		MinSamples:     r.cfg.MinSamples,
	})
	phases["cluster"] = time.Since(phaseStart).Milliseconds()
	if err != nil {
		return result, fmt.Errorf("cluster events for %s: %w", job.BuildID, err)
	}

	if err := r.sink.StoreAssignments(ctx, job.BuildID, assignments); err != nil {
		return result, fmt.Errorf("store assignments for %s: %w", job.BuildID, err)
	}

	phaseStart = time.Now()
	builder := clusterart.New(idx)
	clusters := builder.Build(vectors, assignments)
	phases["artifacts"] = time.Since(phaseStart).Milliseconds()

	if r.labeler != nil {
		for i := range clusters {
			clusters[i].AutoLabel = labeling.LabelOrFallback(ctx, r.labeler, clusters[i])
		}
	}
	result.Clusters = clusters
	result.Record.ClusterCount = len(clusters)
	result.Record.NoiseCount = countNoise(assignments)

	if err := r.persistClusters(ctx, job.BuildID, clusters, assignments); err != nil {
		return result, err
	}

	return result, nil
}

func (r *Runner) persistClusters(ctx context.Context, buildID string, clusters []corpus.Cluster, assignments []corpus.Assignment) error {
	for _, cluster := range clusters {
		if err := r.sink.StoreCluster(ctx, buildID, cluster); err != nil {
			return fmt.Errorf("store cluster %d for %s: %w", cluster.Label, buildID, err)
		}
	}

	for _, a := range assignments {
		if a.Label == -1 {
			continue
		}
		if err := r.sink.StoreMember(ctx, buildID, a.Label, a.EdgeID); err != nil {
			return fmt.Errorf("store member for cluster %d, build %s: %w", a.Label, buildID, err)
		}
	}

	for _, cluster := range clusters {
		for _, exemplar := range cluster.Exemplars {
			if err := r.sink.StoreExemplar(ctx, buildID, cluster.Label, exemplar); err != nil {
				return fmt.Errorf("store exemplar for cluster %d, build %s: %w", cluster.Label, buildID, err)
			}
		}
	}
	return nil
}

func (r *Runner) dim() int {
	if r.cfg.EmbeddingDim > 0 {
		return r.cfg.EmbeddingDim
	}
	return 384
}

func countNoise(assignments []corpus.Assignment) int {
	n := 0
	for _, a := range assignments {
		if a.Label == -1 {
			n++
		}
	}
	return n
}

var nowUnix = func() int64 { return time.Now().Unix() }

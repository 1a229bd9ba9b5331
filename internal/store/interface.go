// Package store persists cluster artifacts, assignments, and build
// bookkeeping produced by one pipeline run.
package store

import (
	"context"

	"github.com/nwgraph/analyticscore/pkg/corpus"
)

// Sink is the persistence contract a pipeline run writes through. The
// caller is responsible for write ordering (assignments, then clusters,
// then members, then exemplars) so a reader observing partial state during
// a build always sees consistent foreign-key closures; an implementation
// is only responsible for making each individual call transactional.
type Sink interface {
	// StoreAssignments persists the per-event cluster labels for one build.
	StoreAssignments(ctx context.Context, buildID string, assignments []corpus.Assignment) error

	// StoreCluster persists one cluster's summary row (everything but its
	// exemplars, which are written separately by StoreExemplar).
	StoreCluster(ctx context.Context, buildID string, cluster corpus.Cluster) error

	// StoreMember records that an event belongs to a cluster within a
	// build, independent of the cluster summary row.
	StoreMember(ctx context.Context, buildID string, clusterLabel int, edgeID int64) error

	// StoreExemplar persists one ranked exemplar of a cluster.
	StoreExemplar(ctx context.Context, buildID string, clusterLabel int, exemplar corpus.Exemplar) error

	// StoreBuildRecord upserts the run-scoped bookkeeping row for a build.
	StoreBuildRecord(ctx context.Context, record corpus.BuildRecord) error

	// Close releases any underlying connection resources.
	Close() error
}

// Package corpus contains the shared wire-level types for the knowledge-graph
// analytics core: hypergraph nodes and edges, event vectors, cluster
// artifacts, reasoning paths, and the sentinel errors the core surfaces to
// callers.
package corpus

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced by the analytics core. Callers should use
// errors.Is to classify them; Cancelled must be treated as non-error
// termination rather than failure.
var (
	// ErrNoEmbeddings is returned when the vectorizer is given an empty
	// node-embedding map.
	ErrNoEmbeddings = errors.New("corpus: embedding map is empty")
	// ErrNoEvents is returned when the clusterer is given zero event vectors.
	ErrNoEvents = errors.New("corpus: no event vectors to cluster")
	// ErrInvalidParameters is returned for caller-side misuse such as a
	// non-positive minClusterSize.
	ErrInvalidParameters = errors.New("corpus: invalid parameters")
	// ErrCancelled indicates cooperative cancellation of a long-running
	// operation. Non-error termination: callers must not treat it as a
	// pipeline failure.
	ErrCancelled = errors.New("corpus: operation cancelled")
	// ErrPersistenceFailure wraps an error surfaced unmodified from a
	// persistence sink.
	ErrPersistenceFailure = errors.New("corpus: persistence failure")
)

// DimensionMismatchError reports that a stored embedding did not match the
// process-wide embedding dimension D. The vectorizer does not construct it:
// it skips such a vector and logs a warning, and the build continues.
type DimensionMismatchError struct {
	NodeLabel string
	Want      int
	Got       int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("corpus: embedding dimension mismatch for node %q: want %d, got %d", e.NodeLabel, e.Want, e.Got)
}

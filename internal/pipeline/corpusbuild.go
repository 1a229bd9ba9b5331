package pipeline

import (
	"context"
	"fmt"

	"github.com/nwgraph/analyticscore/internal/ingest"
	"github.com/nwgraph/analyticscore/pkg/corpus"
)

// buildCorpus drains reader into a fixed set of nodes and hyperedges,
// interning labels to stable node IDs as they are first seen and resolving
// each node's embedding through embeddings. A missing embedding is not an
// error; the node is still created, just without a Embedding slice, and
// later drops out of event-vector pooling.
func buildCorpus(ctx context.Context, reader ingest.TripleReader, embeddings ingest.EmbeddingSource) ([]corpus.Node, []corpus.Hyperedge, error) {
	nodeIDs := make(map[string]int64)
	var nodes []corpus.Node
	var edges []corpus.Hyperedge
	var nextNodeID, nextEdgeID int64

	internLabel := func(label string) (int64, error) {
		if id, ok := nodeIDs[label]; ok {
			return id, nil
		}
		id := nextNodeID
		nextNodeID++

		var embedding []float32
		if embeddings != nil {
			vec, ok, err := embeddings.Embedding(ctx, label)
			if err != nil {
				return 0, fmt.Errorf("resolve embedding for %q: %w", label, err)
			}
			if ok {
				embedding = vec
			}
		}

		nodeIDs[label] = id
		nodes = append(nodes, corpus.Node{ID: id, Label: label, Embedding: embedding})
		return id, nil
	}

	for {
		triple, ok, err := reader.Next(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("read triple: %w", err)
		}
		if !ok {
			break
		}

		var incidences []corpus.Incidence
		for pos, label := range triple.SourceLabels {
			id, err := internLabel(label)
			if err != nil {
				return nil, nil, err
			}
			incidences = append(incidences, corpus.Incidence{NodeID: id, Role: corpus.RoleSource, Position: pos})
		}
		for pos, label := range triple.TargetLabels {
			id, err := internLabel(label)
			if err != nil {
				return nil, nil, err
			}
			incidences = append(incidences, corpus.Incidence{NodeID: id, Role: corpus.RoleTarget, Position: pos})
		}
		if len(incidences) == 0 {
			continue
		}

		edges = append(edges, corpus.Hyperedge{ID: nextEdgeID, Verb: triple.Verb, Incidences: incidences})
		nextEdgeID++
	}

	return nodes, edges, nil
}

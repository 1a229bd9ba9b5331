// Package eventvec computes IDF weights over a hypergraph and composes
// pooled, normalized event vectors for each hyperedge: source mean, target
// mean, their difference, and a relation-family one-hot block.
package eventvec

import (
	"context"
	"math"

	"github.com/rs/zerolog/log"

	"github.com/nwgraph/analyticscore/internal/hypergraph"
	"github.com/nwgraph/analyticscore/internal/relfamily"
	"github.com/nwgraph/analyticscore/internal/vectorops"
	"github.com/nwgraph/analyticscore/pkg/corpus"
)

// IDFMax caps the IDF weight so that rare nodes don't dominate pooling.
const IDFMax = 6.0

// Config is the explicit, per-construction context the vectorizer needs:
// no package-level singleton carries D or the IDF cap.
type Config struct {
	// D is the process-wide embedding dimension.
	D int
	// BatchSize bounds peak memory while building event vectors. It is a
	// tuning parameter, not a correctness one; 0 or a negative value selects
	// the default batch size of 512.
	BatchSize int
}

// Vectorizer builds event vectors over a fixed HypergraphIndex.
type Vectorizer struct {
	idx *hypergraph.Index
	cfg Config
}

// New creates a Vectorizer bound to idx with the given configuration.
func New(idx *hypergraph.Index, cfg Config) *Vectorizer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 512
	}
	return &Vectorizer{idx: idx, cfg: cfg}
}

// ComputeIDF writes idf(n) = min(ln((N+1)/(df(n)+1)) + 1, IDFMax) for every
// node in the index, where df(n) is the number of edges incident to n and N
// is the total edge count. A no-op when the index has zero edges. This is
// the vectorizer's only mutation of node state.
func (v *Vectorizer) ComputeIDF() {
	edgeIDs := v.idx.AllEdgeIDs()
	n := len(edgeIDs)
	if n == 0 {
		return
	}

	for _, nodeID := range v.idx.AllNodeIDs() {
		df := len(v.idx.Edges(nodeID))
		idf := math.Log(float64(n+1)/float64(df+1)) + 1
		if idf > IDFMax {
			idf = IDFMax
		}
		v.idx.SetIDF(nodeID, idf)
	}

	log.Debug().Int("edges", n).Int("nodes", v.idx.NodeCount()).Msg("computed node IDF weights")
}

// Dim returns the fixed dimension of an event vector: 3*D + F.
func (v *Vectorizer) Dim() int {
	return 3*v.cfg.D + relfamily.Dim()
}

// BuildEventVectors constructs one EventVector per hyperedge that has at
// least one source- or target-role participant with an embedding. Edges
// where both sides are entirely unembedded are excluded from the result.
// It processes edges in batches to bound peak memory; batching never
// changes the result. Returns corpus.ErrNoEmbeddings if no node in the
// index carries an embedding at all.
func (v *Vectorizer) BuildEventVectors(ctx context.Context) ([]corpus.EventVector, error) {
	if !v.anyEmbeddingsPresent() {
		return nil, corpus.ErrNoEmbeddings
	}

	edgeIDs := v.idx.AllEdgeIDs()
	out := make([]corpus.EventVector, 0, len(edgeIDs))

	for start := 0; start < len(edgeIDs); start += v.cfg.BatchSize {
		end := start + v.cfg.BatchSize
		if end > len(edgeIDs) {
			end = len(edgeIDs)
		}

		select {
		case <-ctx.Done():
			return out, corpus.ErrCancelled
		default:
		}

		for _, edgeID := range edgeIDs[start:end] {
			vec, ok := v.buildOne(edgeID)
			if ok {
				out = append(out, vec)
			}
		}

		log.Debug().Int("batch_start", start).Int("batch_end", end).Msg("vectorized event batch")
	}

	return out, nil
}

func (v *Vectorizer) anyEmbeddingsPresent() bool {
	for _, nodeID := range v.idx.AllNodeIDs() {
		if n, ok := v.idx.Node(nodeID); ok && len(n.Embedding) > 0 {
			return true
		}
	}
	return false
}

func (v *Vectorizer) buildOne(edgeID int64) (corpus.EventVector, bool) {
	sources := v.embeddedParticipants(edgeID, corpus.RoleSource)
	targets := v.embeddedParticipants(edgeID, corpus.RoleTarget)

	if len(sources) == 0 && len(targets) == 0 {
		return corpus.EventVector{}, false
	}

	sRaw, sHasRaw := v.pooledMean(sources)
	tRaw, tHasRaw := v.pooledMean(targets)

	zero := make([]float32, v.cfg.D)
	sPooled, tPooled := zero, zero
	if sHasRaw {
		sPooled = sRaw
	}
	if tHasRaw {
		tPooled = tRaw
	}

	// diff is computed from the pre-normalization pooled means per the
	// fixed ordering: pool first, derive diff from the raw pooled means,
	// then normalize all three independently.
	diffRaw := vectorops.Sub(sPooled, tPooled)

	sVec := vectorops.Normalize(sPooled)
	tVec := vectorops.Normalize(tPooled)
	diffVec := vectorops.Normalize(diffRaw)

	verb, _ := v.idx.LabelOfEdge(edgeID)
	family := relfamily.Classify(verb)
	oneHot := relfamily.OneHot(family)

	full := vectorops.Concat(sVec, tVec, diffVec, oneHot)

	return corpus.EventVector{
		EdgeID: edgeID,
		Verb:   verb,
		Family: string(family),
		Vector: full,
	}, true
}

type weightedEmbedding struct {
	vec    []float32
	weight float64
}

func (v *Vectorizer) embeddedParticipants(edgeID int64, role corpus.Role) []weightedEmbedding {
	var out []weightedEmbedding
	for _, nodeID := range v.idx.NodesByRole(edgeID, role) {
		node, ok := v.idx.Node(nodeID)
		if !ok || len(node.Embedding) == 0 {
			continue
		}
		if len(node.Embedding) != v.cfg.D {
			log.Warn().Str("node", node.Label).Int("want_dim", v.cfg.D).Int("got_dim", len(node.Embedding)).
				Msg("skipping node embedding with mismatched dimension")
			continue
		}
		weight := node.IDF
		if !node.HasIDF {
			weight = 1.0
		}
		out = append(out, weightedEmbedding{vec: node.Embedding, weight: weight})
	}
	return out
}

func (v *Vectorizer) pooledMean(participants []weightedEmbedding) ([]float32, bool) {
	if len(participants) == 0 {
		return nil, false
	}
	vecs := make([][]float32, len(participants))
	weights := make([]float64, len(participants))
	for i, p := range participants {
		vecs[i] = p.vec
		weights[i] = p.weight
	}
	mean, ok := vectorops.WeightedMean(vecs, weights)
	if !ok {
		return nil, false
	}
	return mean, true
}

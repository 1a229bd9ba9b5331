// Package clusterart derives the persisted artifacts for each non-noise
// HDBSCAN cluster: centroid, exemplars, top entities, top relation
// families, and an auto-generated human label.
package clusterart

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/nwgraph/analyticscore/internal/hypergraph"
	"github.com/nwgraph/analyticscore/internal/vectorops"
	"github.com/nwgraph/analyticscore/pkg/corpus"
)

const familySeparator = "—"

const (
	maxExemplars    = 10
	maxTopEntities  = 20
	maxTopFamilies  = 5
)

// Builder derives cluster artifacts against a fixed HypergraphIndex, used
// to recover node labels and IDF weights for the entities in a cluster's
// member edges.
type Builder struct {
	idx *hypergraph.Index
}

// New creates a Builder bound to idx.
func New(idx *hypergraph.Index) *Builder {
	return &Builder{idx: idx}
}

// Build groups vectors by their assignment label and derives one Cluster
// per non-noise label. Assignments for edges with no matching vector (or
// vice versa) are ignored.
func (b *Builder) Build(vectors []corpus.EventVector, assignments []corpus.Assignment) []corpus.Cluster {
	vecByEdge := make(map[int64]corpus.EventVector, len(vectors))
	for _, v := range vectors {
		vecByEdge[v.EdgeID] = v
	}

	members := make(map[int][]corpus.EventVector)
	for _, a := range assignments {
		if a.Label < 0 {
			continue
		}
		if v, ok := vecByEdge[a.EdgeID]; ok {
			members[a.Label] = append(members[a.Label], v)
		}
	}

	labels := make([]int, 0, len(members))
	for label := range members {
		labels = append(labels, label)
	}
	sort.Ints(labels)

	out := make([]corpus.Cluster, 0, len(labels))
	for _, label := range labels {
		out = append(out, b.buildOne(label, members[label]))
	}

	log.Debug().Int("clusters", len(out)).Msg("cluster artifacts built")
	return out
}

func (b *Builder) buildOne(label int, members []corpus.EventVector) corpus.Cluster {
	centroid := centroidOf(members)
	exemplars := exemplarsOf(members, centroid)
	topEntities := b.topEntitiesOf(members)
	topFamilies := topFamiliesOf(members)

	return corpus.Cluster{
		Label:       label,
		AutoLabel:   autoLabel(topEntities, topFamilies),
		Centroid:    centroid,
		TopEntities: topEntities,
		TopFamilies: topFamilies,
		Exemplars:   exemplars,
		Size:        len(members),
	}
}

func centroidOf(members []corpus.EventVector) []float32 {
	if len(members) == 0 {
		return nil
	}
	vecs := make([][]float32, len(members))
	weights := make([]float64, len(members))
	for i, m := range members {
		vecs[i] = m.Vector
		weights[i] = 1.0
	}
	mean, ok := vectorops.WeightedMean(vecs, weights)
	if !ok {
		return make([]float32, len(members[0].Vector))
	}
	return vectorops.Normalize(mean)
}

func exemplarsOf(members []corpus.EventVector, centroid []float32) []corpus.Exemplar {
	type scored struct {
		edgeID     int64
		similarity float64
	}
	scoredMembers := make([]scored, len(members))
	for i, m := range members {
		scoredMembers[i] = scored{edgeID: m.EdgeID, similarity: vectorops.Cosine(m.Vector, centroid)}
	}
	sort.Slice(scoredMembers, func(i, j int) bool {
		if scoredMembers[i].similarity != scoredMembers[j].similarity {
			return scoredMembers[i].similarity > scoredMembers[j].similarity
		}
		return scoredMembers[i].edgeID < scoredMembers[j].edgeID
	})

	n := len(scoredMembers)
	if n > maxExemplars {
		n = maxExemplars
	}
	out := make([]corpus.Exemplar, n)
	for i := 0; i < n; i++ {
		out[i] = corpus.Exemplar{
			EdgeID:     scoredMembers[i].edgeID,
			Similarity: scoredMembers[i].similarity,
			Rank:       i + 1,
		}
	}
	return out
}

func (b *Builder) topEntitiesOf(members []corpus.EventVector) []corpus.EntityScore {
	scores := make(map[string]float64)
	for _, m := range members {
		for _, nodeID := range b.idx.Nodes(m.EdgeID) {
			node, ok := b.idx.Node(nodeID)
			if !ok {
				continue
			}
			weight := 1.0
			if node.HasIDF {
				weight = node.IDF
			}
			scores[node.Label] += weight
		}
	}

	entities := make([]corpus.EntityScore, 0, len(scores))
	for label, score := range scores {
		entities = append(entities, corpus.EntityScore{Label: label, Score: score})
	}
	sort.Slice(entities, func(i, j int) bool {
		if entities[i].Score != entities[j].Score {
			return entities[i].Score > entities[j].Score
		}
		return entities[i].Label < entities[j].Label
	})

	if len(entities) > maxTopEntities {
		entities = entities[:maxTopEntities]
	}
	return entities
}

func topFamiliesOf(members []corpus.EventVector) []corpus.FamilyCount {
	counts := make(map[string]int)
	for _, m := range members {
		counts[m.Family]++
	}

	families := make([]corpus.FamilyCount, 0, len(counts))
	for family, count := range counts {
		families = append(families, corpus.FamilyCount{Family: family, Count: count})
	}
	sort.Slice(families, func(i, j int) bool {
		if families[i].Count != families[j].Count {
			return families[i].Count > families[j].Count
		}
		return families[i].Family < families[j].Family
	})

	if len(families) > maxTopFamilies {
		families = families[:maxTopFamilies]
	}
	return families
}

// autoLabel joins the first two top entities with the top family,
// separated by an em dash, falling back to the entities alone and finally
// to the literal "Cluster" when nothing scored.
func autoLabel(topEntities []corpus.EntityScore, topFamilies []corpus.FamilyCount) string {
	switch {
	case len(topEntities) >= 2 && len(topFamilies) >= 1:
		return fmt.Sprintf("%s, %s %s %s", topEntities[0].Label, topEntities[1].Label, familySeparator, topFamilies[0].Family)
	case len(topEntities) >= 2:
		return fmt.Sprintf("%s, %s", topEntities[0].Label, topEntities[1].Label)
	case len(topEntities) == 1:
		return topEntities[0].Label
	default:
		return "Cluster"
	}
}

package hypergraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nwgraph/analyticscore/pkg/corpus"
)

func sampleNodes() []corpus.Node {
	return []corpus.Node{
		{ID: 1, Label: "Apple"},
		{ID: 2, Label: "Beats"},
		{ID: 3, Label: "Google"},
	}
}

func TestNewIndexRejectsEmptyEdge(t *testing.T) {
	_, err := NewIndex(sampleNodes(), []corpus.Hyperedge{{ID: 100, Verb: "acquired"}})
	assert.Error(t, err)
}

func TestNewIndexRejectsUnknownNode(t *testing.T) {
	edges := []corpus.Hyperedge{{
		ID:   100,
		Verb: "acquired",
		Incidences: []corpus.Incidence{
			{NodeID: 999, Role: corpus.RoleSource},
		},
	}}
	_, err := NewIndex(sampleNodes(), edges)
	assert.Error(t, err)
}

func TestNewIndexRejectsDuplicateIncidence(t *testing.T) {
	edges := []corpus.Hyperedge{{
		ID:   100,
		Verb: "acquired",
		Incidences: []corpus.Incidence{
			{NodeID: 1, Role: corpus.RoleSource, Position: 0},
			{NodeID: 1, Role: corpus.RoleSource, Position: 1},
		},
	}}
	_, err := NewIndex(sampleNodes(), edges)
	assert.Error(t, err)
}

func TestIndexLookups(t *testing.T) {
	edges := []corpus.Hyperedge{
		{
			ID:   100,
			Verb: "acquired",
			Incidences: []corpus.Incidence{
				{NodeID: 1, Role: corpus.RoleSource, Position: 0},
				{NodeID: 2, Role: corpus.RoleTarget, Position: 0},
			},
		},
		{
			ID:   101,
			Verb: "partnered with",
			Incidences: []corpus.Incidence{
				{NodeID: 1, Role: corpus.RoleSource, Position: 0},
				{NodeID: 3, Role: corpus.RoleTarget, Position: 0},
			},
		},
	}

	idx, err := NewIndex(sampleNodes(), edges)
	require.NoError(t, err)

	assert.Equal(t, []int64{100, 101}, idx.Edges(1))
	assert.Equal(t, []int64{100}, idx.Edges(2))
	assert.Equal(t, []int64{1, 2}, idx.Nodes(100))
	assert.Equal(t, []int64{1}, idx.NodesByRole(100, corpus.RoleSource))
	assert.Equal(t, []int64{2}, idx.NodesByRole(100, corpus.RoleTarget))

	label, ok := idx.LabelOfNode(1)
	assert.True(t, ok)
	assert.Equal(t, "Apple", label)

	verb, ok := idx.LabelOfEdge(101)
	assert.True(t, ok)
	assert.Equal(t, "partnered with", verb)

	// 100 and 101 share node 1, so at s=1 they are neighbors.
	assert.Equal(t, []int64{101}, idx.NeighborEdges(100, 1))
	// At s=2 no shared pair exists.
	assert.Empty(t, idx.NeighborEdges(100, 2))
}

func TestAddingUnrelatedNodeIsNoop(t *testing.T) {
	edges := []corpus.Hyperedge{{
		ID:   100,
		Verb: "acquired",
		Incidences: []corpus.Incidence{
			{NodeID: 1, Role: corpus.RoleSource},
			{NodeID: 2, Role: corpus.RoleTarget},
		},
	}}

	before, err := NewIndex(sampleNodes(), edges)
	require.NoError(t, err)

	withExtra := append(sampleNodes(), corpus.Node{ID: 4, Label: "Unrelated"})
	after, err := NewIndex(withExtra, edges)
	require.NoError(t, err)

	assert.Equal(t, before.Nodes(100), after.Nodes(100))
}

func TestSetIDF(t *testing.T) {
	idx, err := NewIndex(sampleNodes(), []corpus.Hyperedge{{
		ID:         100,
		Verb:       "acquired",
		Incidences: []corpus.Incidence{{NodeID: 1, Role: corpus.RoleSource}},
	}})
	require.NoError(t, err)

	idx.SetIDF(1, 3.5)
	node, ok := idx.Node(1)
	require.True(t, ok)
	assert.True(t, node.HasIDF)
	assert.InDelta(t, 3.5, node.IDF, 1e-9)
}

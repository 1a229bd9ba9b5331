package pathfinder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nwgraph/analyticscore/internal/hypergraph"
	"github.com/nwgraph/analyticscore/pkg/corpus"
)

func chainNodes() []corpus.Node {
	return []corpus.Node{
		{ID: 1, Label: "A"},
		{ID: 2, Label: "B"},
		{ID: 3, Label: "C"},
		{ID: 4, Label: "D"},
	}
}

func chainIndex(t *testing.T) *hypergraph.Index {
	edges := []corpus.Hyperedge{
		{ID: 1, Verb: "started", Incidences: []corpus.Incidence{{NodeID: 1, Role: corpus.RoleSource}, {NodeID: 2, Role: corpus.RoleTarget}}},
		{ID: 2, Verb: "led to", Incidences: []corpus.Incidence{{NodeID: 2, Role: corpus.RoleSource}, {NodeID: 3, Role: corpus.RoleTarget}}},
		{ID: 3, Verb: "caused", Incidences: []corpus.Incidence{{NodeID: 3, Role: corpus.RoleSource}, {NodeID: 4, Role: corpus.RoleTarget}}},
	}
	idx, err := hypergraph.NewIndex(chainNodes(), edges)
	require.NoError(t, err)
	return idx
}

func TestFindPathsRequiresAtLeastTwoNodes(t *testing.T) {
	idx := chainIndex(t)
	_, err := FindPaths(context.Background(), idx, []int64{1}, Params{MaxPaths: 1, MaxDepth: 5})
	assert.ErrorIs(t, err, corpus.ErrInvalidParameters)
}

func TestFindPathsChain(t *testing.T) {
	idx := chainIndex(t)
	paths, err := FindPaths(context.Background(), idx, []int64{1, 4}, Params{IntersectionThreshold: 1, MaxPaths: 5, MaxDepth: 5})
	require.NoError(t, err)
	require.Len(t, paths, 1)

	p := paths[0]
	assert.Equal(t, "A", p.SourceLabel)
	assert.Equal(t, "D", p.TargetLabel)
	assert.Equal(t, []int64{1, 2, 3}, p.EdgeIDs)
	assert.Equal(t, []string{"started", "led to", "caused"}, p.RelationLabels)
	require.Len(t, p.HopLabels, 2)
	assert.Equal(t, []string{"B"}, p.HopLabels[0])
	assert.Equal(t, []string{"C"}, p.HopLabels[1])
}

func TestFindPathsRespectsMaxDepth(t *testing.T) {
	idx := chainIndex(t)
	paths, err := FindPaths(context.Background(), idx, []int64{1, 4}, Params{IntersectionThreshold: 1, MaxPaths: 5, MaxDepth: 1})
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func diamondIndex(t *testing.T) *hypergraph.Index {
	nodes := []corpus.Node{
		{ID: 1, Label: "start"}, {ID: 2, Label: "mid"}, {ID: 3, Label: "upper"},
		{ID: 4, Label: "lower"}, {ID: 5, Label: "end"},
	}
	edges := []corpus.Hyperedge{
		{ID: 1, Verb: "a", Incidences: []corpus.Incidence{{NodeID: 1, Role: corpus.RoleSource}, {NodeID: 2, Role: corpus.RoleTarget}}},
		{ID: 2, Verb: "b", Incidences: []corpus.Incidence{{NodeID: 2, Role: corpus.RoleSource}, {NodeID: 3, Role: corpus.RoleTarget}}},
		{ID: 3, Verb: "c", Incidences: []corpus.Incidence{{NodeID: 2, Role: corpus.RoleSource}, {NodeID: 4, Role: corpus.RoleTarget}}},
		{ID: 4, Verb: "d", Incidences: []corpus.Incidence{{NodeID: 3, Role: corpus.RoleSource}, {NodeID: 5, Role: corpus.RoleTarget}}},
		{ID: 5, Verb: "e", Incidences: []corpus.Incidence{{NodeID: 4, Role: corpus.RoleSource}, {NodeID: 5, Role: corpus.RoleTarget}}},
	}
	idx, err := hypergraph.NewIndex(nodes, edges)
	require.NoError(t, err)
	return idx
}

func TestFindPathsDiamondFindsBothBranches(t *testing.T) {
	idx := diamondIndex(t)
	paths, err := FindPaths(context.Background(), idx, []int64{1, 5}, Params{IntersectionThreshold: 1, MaxPaths: 5, MaxDepth: 5})
	require.NoError(t, err)
	assert.Len(t, paths, 2)
}

func TestFindPathsCapsAtMaxPaths(t *testing.T) {
	idx := diamondIndex(t)
	paths, err := FindPaths(context.Background(), idx, []int64{1, 5}, Params{IntersectionThreshold: 1, MaxPaths: 1, MaxDepth: 5})
	require.NoError(t, err)
	assert.Len(t, paths, 1)
}

func TestFindPathsCancellation(t *testing.T) {
	idx := chainIndex(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := FindPaths(ctx, idx, []int64{1, 4}, Params{IntersectionThreshold: 1, MaxPaths: 5, MaxDepth: 5})
	assert.ErrorIs(t, err, corpus.ErrCancelled)
}

func TestFindPathsNoConnectionReturnsEmpty(t *testing.T) {
	nodes := []corpus.Node{{ID: 1, Label: "A"}, {ID: 2, Label: "B"}, {ID: 3, Label: "C"}, {ID: 4, Label: "D"}}
	edges := []corpus.Hyperedge{
		{ID: 1, Verb: "x", Incidences: []corpus.Incidence{{NodeID: 1, Role: corpus.RoleSource}, {NodeID: 2, Role: corpus.RoleTarget}}},
		{ID: 2, Verb: "y", Incidences: []corpus.Incidence{{NodeID: 3, Role: corpus.RoleSource}, {NodeID: 4, Role: corpus.RoleTarget}}},
	}
	idx, err := hypergraph.NewIndex(nodes, edges)
	require.NoError(t, err)

	paths, err := FindPaths(context.Background(), idx, []int64{1, 4}, Params{IntersectionThreshold: 1, MaxPaths: 5, MaxDepth: 5})
	require.NoError(t, err)
	assert.Empty(t, paths)
}

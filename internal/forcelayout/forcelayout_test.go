package forcelayout

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nwgraph/analyticscore/internal/hypergraph"
	"github.com/nwgraph/analyticscore/pkg/corpus"
)

func twoNodeIndex(t *testing.T) *hypergraph.Index {
	nodes := []corpus.Node{{ID: 1, Label: "A"}, {ID: 2, Label: "B"}}
	edges := []corpus.Hyperedge{
		{ID: 1, Verb: "linked", Incidences: []corpus.Incidence{
			{NodeID: 1, Role: corpus.RoleSource}, {NodeID: 2, Role: corpus.RoleTarget},
		}},
	}
	idx, err := hypergraph.NewIndex(nodes, edges)
	require.NoError(t, err)
	return idx
}

func TestTwoNodeSpringConvergesToSpringLength(t *testing.T) {
	idx := twoNodeIndex(t)
	l := New(idx, DefaultConfig(), 1, 0)
	// Force a known initial separation of 1000 along the x axis.
	l.byID[1].pos = Vec2{X: -500, Y: 0}
	l.byID[2].pos = Vec2{X: 500, Y: 0}

	for i := 0; i < 500 && !l.IsStable(); i++ {
		l.Step()
	}

	d := distance(l.byID[1].pos, l.byID[2].pos)
	assert.InDelta(t, 100, d, 5)
	assert.True(t, l.IsStable())
}

func TestStepNeverExceedsMaxVelocity(t *testing.T) {
	idx := twoNodeIndex(t)
	l := New(idx, DefaultConfig(), 2, 50)

	for i := 0; i < 50; i++ {
		l.Step()
		for _, n := range l.nodes {
			if n.pinned {
				continue
			}
			assert.LessOrEqual(t, n.vel.Length(), l.cfg.MaxVelocity+1e-9)
		}
	}
}

func TestPinFreezesPositionAcrossSteps(t *testing.T) {
	idx := twoNodeIndex(t)
	l := New(idx, DefaultConfig(), 3, 50)

	pinnedAt := Vec2{X: 42, Y: -17}
	l.Pin(1, pinnedAt)

	for i := 0; i < 20; i++ {
		l.Step()
		assert.Equal(t, pinnedAt, l.byID[1].pos)
	}
}

func TestMoveOnlyAffectsPinnedNode(t *testing.T) {
	idx := twoNodeIndex(t)
	l := New(idx, DefaultConfig(), 4, 50)

	l.Move(1, Vec2{X: 1, Y: 1})
	assert.NotEqual(t, Vec2{X: 1, Y: 1}, l.byID[1].pos)

	l.Pin(1, Vec2{X: 0, Y: 0})
	l.Move(1, Vec2{X: 5, Y: 5})
	assert.Equal(t, Vec2{X: 5, Y: 5}, l.byID[1].pos)
}

func TestUnpinReenergizesSimulation(t *testing.T) {
	idx := twoNodeIndex(t)
	l := New(idx, DefaultConfig(), 5, 0)
	l.temperature = 0.001
	l.stable = true

	l.Unpin(1)
	assert.False(t, l.IsStable())
	assert.GreaterOrEqual(t, l.temperature, 0.1)
}

func TestAddNodesPlacesOnCircleAroundCenter(t *testing.T) {
	idx := twoNodeIndex(t)
	l := New(idx, DefaultConfig(), 6, 0)

	center := Vec2{X: 100, Y: 100}
	l.AddNodes([]int64{3, 4, 5, 6}, center, 10)

	require.Len(t, l.nodes, 6)
	for _, id := range []int64{3, 4, 5, 6} {
		n, ok := l.byID[id]
		require.True(t, ok)
		assert.InDelta(t, 10, distance(n.pos, center), 1e-9)
	}
}

func TestAddNodesInvalidatesAdjacency(t *testing.T) {
	idx := twoNodeIndex(t)
	l := New(idx, DefaultConfig(), 7, 0)
	l.buildAdjacency()
	require.NotNil(t, l.adjacency)

	l.AddNodes([]int64{9}, Vec2{}, 5)
	assert.Nil(t, l.adjacency)
}

func TestCenterGraphTranslatesWithoutTouchingVelocity(t *testing.T) {
	idx := twoNodeIndex(t)
	l := New(idx, DefaultConfig(), 8, 0)
	l.byID[1].pos = Vec2{X: 0, Y: 0}
	l.byID[2].pos = Vec2{X: 100, Y: 0}
	l.byID[1].vel = Vec2{X: 3, Y: -2}

	l.CenterGraph(Vec2{X: 400, Y: 400})

	minX, maxX := math.Inf(1), math.Inf(-1)
	for _, n := range l.nodes {
		minX = math.Min(minX, n.pos.X)
		maxX = math.Max(maxX, n.pos.X)
	}
	assert.InDelta(t, 200, (minX+maxX)/2, 1e-9)
	assert.Equal(t, Vec2{X: 3, Y: -2}, l.byID[1].vel)
}

func TestStepIsNoOpOnceStable(t *testing.T) {
	idx := twoNodeIndex(t)
	l := New(idx, DefaultConfig(), 9, 0)
	l.stable = true
	before := l.byID[1].pos
	l.Step()
	assert.Equal(t, before, l.byID[1].pos)
}

func TestQuadtreeInsertTracksRunningMeanAndCount(t *testing.T) {
	root := newQuadtree(boundingBox{minX: -100, minY: -100, maxX: 100, maxY: 100})
	root.insert(1, Vec2{X: -50, Y: -50})
	root.insert(2, Vec2{X: 50, Y: 50})
	root.insert(3, Vec2{X: 90, Y: 90})

	assert.Equal(t, 3, root.totalMass)
	expected := Vec2{X: (-50 + 50 + 90) / 3.0, Y: (-50 + 50 + 90) / 3.0}
	assert.InDelta(t, expected.X, root.centerOfMass.X, 1e-9)
	assert.InDelta(t, expected.Y, root.centerOfMass.Y, 1e-9)
}

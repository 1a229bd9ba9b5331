// Package forcelayout implements a Barnes-Hut force-directed graph layout,
// stepped one frame at a time by the caller. It holds no goroutines and no
// locks: the owning view calls Step() (and the pin/move/unpin/addNodes
// interactions) from a single goroutine, per the single-actor ownership
// the layout state requires.
package forcelayout

import (
	"math"
	"math/rand"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/nwgraph/analyticscore/internal/hypergraph"
	"github.com/nwgraph/analyticscore/pkg/corpus"
)

// Config holds the simulation's tunable constants.
type Config struct {
	SpringLength        float64
	SpringStrength      float64
	RepulsionStrength   float64
	Damping             float64
	CoolingFactor       float64
	BarnesHutTheta      float64
	MaxVelocity         float64
	StabilityThreshold  float64
}

// DefaultConfig returns the tunables from the layout's design defaults.
func DefaultConfig() Config {
	return Config{
		SpringLength:       120,
		SpringStrength:     0.05,
		RepulsionStrength:  8000,
		Damping:            0.85,
		CoolingFactor:      0.995,
		BarnesHutTheta:     0.8,
		MaxVelocity:        50,
		StabilityThreshold: 0.1,
	}
}

type nodeState struct {
	id     int64
	pos    Vec2
	vel    Vec2
	pinned bool
}

// NodeState is the externally visible position/pin snapshot of one node.
type NodeState struct {
	ID       int64
	Position Vec2
	Pinned   bool
}

// Layout is owned by exactly one actor and must not be shared across
// goroutines; its zero value is not usable, construct with New.
type Layout struct {
	idx   *hypergraph.Index
	cfg   Config
	rng   *rand.Rand

	nodes []*nodeState
	byID  map[int64]*nodeState

	adjacency map[int64][]int64

	temperature float64
	stable      bool
}

// New creates a layout for every node in idx, placed at random initial
// positions within the given spread. seed controls the random source so
// callers that need reproducible tests can fix it; production callers
// should seed from a time-derived value.
func New(idx *hypergraph.Index, cfg Config, seed int64, spread float64) *Layout {
	l := &Layout{
		idx:         idx,
		cfg:         cfg,
		rng:         rand.New(rand.NewSource(seed)),
		byID:        make(map[int64]*nodeState),
		temperature: 1.0,
	}

	ids := idx.AllNodeIDs()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		angle := l.rng.Float64() * 2 * math.Pi
		radius := l.rng.Float64() * spread
		n := &nodeState{
			id:  id,
			pos: Vec2{X: radius * math.Cos(angle), Y: radius * math.Sin(angle)},
		}
		l.nodes = append(l.nodes, n)
		l.byID[id] = n
	}

	log.Debug().Int("nodes", len(l.nodes)).Msg("force layout initialized")
	return l
}

// IsStable reports whether the simulation has converged; Step becomes a
// no-op once this is true until Unpin raises the temperature again.
func (l *Layout) IsStable() bool { return l.stable }

// State returns a snapshot of every node's current position and pin status:
// the nodes given to New in ascending id order, followed by nodes added with
// AddNodes in the order they were added.
func (l *Layout) State() []NodeState {
	out := make([]NodeState, len(l.nodes))
	for i, n := range l.nodes {
		out[i] = NodeState{ID: n.id, Position: n.pos, Pinned: n.pinned}
	}
	return out
}

func (l *Layout) buildAdjacency() {
	l.adjacency = make(map[int64][]int64)
	seen := make(map[[2]int64]bool)
	for _, edgeID := range l.idx.AllEdgeIDs() {
		sources := l.idx.NodesByRole(edgeID, corpus.RoleSource)
		targets := l.idx.NodesByRole(edgeID, corpus.RoleTarget)
		for _, s := range sources {
			for _, t := range targets {
				if s == t {
					continue
				}
				key := pairKey(s, t)
				if seen[key] {
					continue
				}
				seen[key] = true
				l.adjacency[s] = append(l.adjacency[s], t)
				l.adjacency[t] = append(l.adjacency[t], s)
			}
		}
	}
}

func pairKey(a, b int64) [2]int64 {
	if a < b {
		return [2]int64{a, b}
	}
	return [2]int64{b, a}
}

// Step advances the simulation by one frame. It is total: it never returns
// an error and never blocks. Once the layout reports stable, Step is a
// no-op until an interaction (Unpin) re-energizes it.
func (l *Layout) Step() {
	if l.stable || len(l.nodes) == 0 {
		return
	}
	if l.adjacency == nil {
		l.buildAdjacency()
	}

	root := l.buildQuadtree()
	forces := make(map[int64]Vec2, len(l.nodes))

	for _, n := range l.nodes {
		if n.pinned {
			continue
		}
		forces[n.id] = repulsionAt(root, n.id, n.pos, l.cfg.BarnesHutTheta, l.cfg.RepulsionStrength)
	}

	for a, neighbors := range l.adjacency {
		for _, b := range neighbors {
			if a >= b {
				continue
			}
			f := l.springForce(a, b)
			forces[a] = forces[a].Add(f)
			forces[b] = forces[b].Sub(f)
		}
	}

	totalKE := 0.0
	unpinnedCount := 0
	for _, n := range l.nodes {
		if n.pinned {
			continue
		}
		unpinnedCount++
		f := forces[n.id]
		n.vel = n.vel.Add(f.Scale(l.temperature))
		n.vel = n.vel.Scale(l.cfg.Damping)
		if speed := n.vel.Length(); speed > l.cfg.MaxVelocity {
			n.vel = n.vel.Scale(l.cfg.MaxVelocity / speed)
		}
		n.pos = n.pos.Add(n.vel)
		speed := n.vel.Length()
		totalKE += 0.5 * speed * speed
	}

	l.temperature *= l.cfg.CoolingFactor

	if unpinnedCount > 0 {
		meanKE := totalKE / float64(unpinnedCount)
		if meanKE < l.cfg.StabilityThreshold && l.temperature < 0.01 {
			l.stable = true
		}
	}
}

func (l *Layout) springForce(a, b int64) Vec2 {
	na, nb := l.byID[a], l.byID[b]
	d := distance(na.pos, nb.pos)
	if d < epsilon {
		return Vec2{}
	}
	dir := Vec2{X: (nb.pos.X - na.pos.X) / d, Y: (nb.pos.Y - na.pos.Y) / d}
	magnitude := l.cfg.SpringStrength * (d - l.cfg.SpringLength)
	return dir.Scale(magnitude)
}

func (l *Layout) buildQuadtree() *quadNode {
	bounds := boundingBox{minX: math.Inf(1), minY: math.Inf(1), maxX: math.Inf(-1), maxY: math.Inf(-1)}
	for _, n := range l.nodes {
		bounds.minX = math.Min(bounds.minX, n.pos.X)
		bounds.minY = math.Min(bounds.minY, n.pos.Y)
		bounds.maxX = math.Max(bounds.maxX, n.pos.X)
		bounds.maxY = math.Max(bounds.maxY, n.pos.Y)
	}
	const pad = 100.0
	bounds.minX -= pad
	bounds.minY -= pad
	bounds.maxX += pad
	bounds.maxY += pad

	root := newQuadtree(bounds)
	for _, n := range l.nodes {
		root.insert(n.id, n.pos)
	}
	return root
}

// Pin fixes a node at pos, zeroes its velocity, and marks it pinned so
// subsequent steps leave its position untouched.
func (l *Layout) Pin(id int64, pos Vec2) {
	n, ok := l.byID[id]
	if !ok {
		return
	}
	n.pos = pos
	n.vel = Vec2{}
	n.pinned = true
}

// Move repositions an already-pinned node; it is a no-op on unpinned nodes.
func (l *Layout) Move(id int64, pos Vec2) {
	n, ok := l.byID[id]
	if !ok || !n.pinned {
		return
	}
	n.pos = pos
}

// Unpin releases a pinned node and re-energizes the simulation so cooling
// resumes instead of staying stuck at whatever temperature it had reached.
func (l *Layout) Unpin(id int64) {
	n, ok := l.byID[id]
	if !ok {
		return
	}
	n.pinned = false
	l.stable = false
	if l.temperature < 0.1 {
		l.temperature = 0.1
	}
}

// AddNodes introduces new node ids onto the layout, placed evenly around a
// circle of the given radius centered on near, and invalidates the cached
// adjacency so the next Step rebuilds it from the index.
func (l *Layout) AddNodes(ids []int64, near Vec2, radius float64) {
	n := len(ids)
	for i, id := range ids {
		if _, exists := l.byID[id]; exists {
			continue
		}
		angle := 2 * math.Pi * float64(i) / float64(n)
		pos := Vec2{
			X: near.X + radius*math.Cos(angle),
			Y: near.Y + radius*math.Sin(angle),
		}
		ns := &nodeState{id: id, pos: pos}
		l.nodes = append(l.nodes, ns)
		l.byID[id] = ns
	}
	l.adjacency = nil
}

// CenterGraph translates every node so the layout's bounding box centers on
// the given canvas dimensions, without touching velocities.
func (l *Layout) CenterGraph(canvas Vec2) {
	if len(l.nodes) == 0 {
		return
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, n := range l.nodes {
		minX = math.Min(minX, n.pos.X)
		minY = math.Min(minY, n.pos.Y)
		maxX = math.Max(maxX, n.pos.X)
		maxY = math.Max(maxY, n.pos.Y)
	}
	center := Vec2{X: (minX + maxX) / 2, Y: (minY + maxY) / 2}
	target := Vec2{X: canvas.X / 2, Y: canvas.Y / 2}
	offset := target.Sub(center)
	for _, n := range l.nodes {
		n.pos = n.pos.Add(offset)
	}
}

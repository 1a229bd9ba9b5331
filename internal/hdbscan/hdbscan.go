// Package hdbscan clusters event vectors by density: core distances over
// the full pairwise distance matrix, a minimum spanning tree over mutual
// reachability built with Prim's algorithm, a condensed single-linkage
// dendrogram with persistent cluster identity across merges, and
// Excess-of-Mass selection.
package hdbscan

import (
	"math"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/nwgraph/analyticscore/internal/vectorops"
	"github.com/nwgraph/analyticscore/pkg/corpus"
)

// Config is the explicit, per-run parameter set. Both fields are
// auto-capped against the corpus size; see Run.
type Config struct {
	MinClusterSize int
	MinSamples     int
}

// Run clusters vectors (one per id, same order) and returns one Assignment
// per point. Labels are 0..K-1 for clustered points, -1 for noise.
// Running twice on identical input produces identical output.
func Run(ids []int64, vectors [][]float32, cfg Config) ([]corpus.Assignment, error) {
	if cfg.MinClusterSize <= 0 {
		return nil, corpus.ErrInvalidParameters
	}
	m := len(vectors)
	if m == 0 {
		return nil, corpus.ErrNoEvents
	}
	if len(ids) != m {
		return nil, corpus.ErrInvalidParameters
	}

	minClusterSize, minSamples := cappedParams(cfg, m)

	if m == 1 {
		return []corpus.Assignment{{EdgeID: ids[0], Label: -1, Membership: 0}}, nil
	}

	dist := pairwiseDistance(vectors)
	core := coreDistances(dist, minSamples, m)
	mst := primMST(dist, core, m)
	merges := buildMerges(mst, m)
	clusters, childrenOf, rootID := condense(merges, m, minClusterSize)
	selected := eomSelect(clusters, rootID)
	assignments := assignLabels(clusters, selected, childrenOf, m, ids)

	log.Debug().
		Int("points", m).
		Int("min_cluster_size", minClusterSize).
		Int("min_samples", minSamples).
		Int("condensed_clusters", len(clusters)).
		Msg("hdbscan run complete")

	return assignments, nil
}

// cappedParams applies the spec's auto-cap: minClusterSize shrinks to
// max(2, M/5) on small corpora, and minSamples never exceeds minClusterSize.
func cappedParams(cfg Config, m int) (minClusterSize, minSamples int) {
	cap := m / 5
	if cap < 2 {
		cap = 2
	}
	minClusterSize = cfg.MinClusterSize
	if minClusterSize > cap {
		minClusterSize = cap
	}
	minSamples = cfg.MinSamples
	if minSamples <= 0 {
		minSamples = minClusterSize
	}
	if minSamples > minClusterSize {
		minSamples = minClusterSize
	}
	return minClusterSize, minSamples
}

func pairwiseDistance(vectors [][]float32) [][]float64 {
	m := len(vectors)
	dist := make([][]float64, m)
	for i := range dist {
		dist[i] = make([]float64, m)
	}
	for i := 0; i < m; i++ {
		for j := i + 1; j < m; j++ {
			d := vectorops.Euclidean(vectors[i], vectors[j])
			dist[i][j] = d
			dist[j][i] = d
		}
	}
	return dist
}

// coreDistances returns, for each point, its distance to its k-th nearest
// neighbor (0-based index, self at index 0), ties broken by point index.
func coreDistances(dist [][]float64, minSamples, m int) []float64 {
	k := minSamples
	if k > m-1 {
		k = m - 1
	}

	type neighbor struct {
		d   float64
		idx int
	}

	core := make([]float64, m)
	row := make([]neighbor, m)
	for i := 0; i < m; i++ {
		for j := 0; j < m; j++ {
			row[j] = neighbor{dist[i][j], j}
		}
		sort.Slice(row, func(a, b int) bool {
			if row[a].d != row[b].d {
				return row[a].d < row[b].d
			}
			return row[a].idx < row[b].idx
		})
		core[i] = row[k].d
	}
	return core
}

type mstEdge struct {
	u, v   int64
	weight float64
}

func mutualReach(core []float64, dist [][]float64, i, j int) float64 {
	w := dist[i][j]
	if core[i] > w {
		w = core[i]
	}
	if core[j] > w {
		w = core[j]
	}
	return w
}

// primMST builds the MST over the mutual reachability graph starting from
// vertex 0, breaking ties on the smaller candidate vertex index.
func primMST(dist [][]float64, core []float64, m int) []mstEdge {
	inTree := make([]bool, m)
	minEdge := make([]float64, m)
	edgeFrom := make([]int, m)
	for j := 0; j < m; j++ {
		minEdge[j] = math.Inf(1)
	}
	inTree[0] = true
	for j := 1; j < m; j++ {
		minEdge[j] = mutualReach(core, dist, 0, j)
		edgeFrom[j] = 0
	}

	edges := make([]mstEdge, 0, m-1)
	for added := 1; added < m; added++ {
		next := -1
		for j := 0; j < m; j++ {
			if inTree[j] {
				continue
			}
			if next == -1 || minEdge[j] < minEdge[next] {
				next = j
			}
		}

		u, v := int64(edgeFrom[next]), int64(next)
		if u > v {
			u, v = v, u
		}
		edges = append(edges, mstEdge{u: u, v: v, weight: minEdge[next]})
		inTree[next] = true

		for j := 0; j < m; j++ {
			if inTree[j] {
				continue
			}
			w := mutualReach(core, dist, next, j)
			if w < minEdge[j] {
				minEdge[j] = w
				edgeFrom[j] = next
			}
		}
	}

	sort.SliceStable(edges, func(a, b int) bool {
		if edges[a].weight != edges[b].weight {
			return edges[a].weight < edges[b].weight
		}
		if edges[a].u != edges[b].u {
			return edges[a].u < edges[b].u
		}
		return edges[a].v < edges[b].v
	})
	return edges
}

// merge is one union-find step: left and right are the roots being joined,
// recorded under a fresh internal id >= m.
type merge struct {
	left, right int64
	distance    float64
	size        int
	id          int64
}

type unionFind struct {
	parent []int64
	size   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int64, n), size: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = int64(i)
		uf.size[i] = 1
	}
	return uf
}

func (uf *unionFind) find(x int64) int64 {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}
	return x
}

func buildMerges(edges []mstEdge, m int) []merge {
	uf := newUnionFind(2*m - 1)
	merges := make([]merge, 0, m-1)
	nextID := int64(m)
	for _, e := range edges {
		ru, rv := uf.find(e.u), uf.find(e.v)
		size := uf.size[ru] + uf.size[rv]
		id := nextID
		nextID++
		merges = append(merges, merge{left: ru, right: rv, distance: e.weight, size: size, id: id})
		uf.parent[ru] = id
		uf.parent[rv] = id
		uf.size[id] = size
	}
	return merges
}

// condensedCluster is a node in the condensed cluster tree built during
// condensation: children come from real splits, fallouts from absorbed
// smaller sides. dendroNode is the dendrogram node whose raw leaf
// descendants are exactly this cluster's member points (see condense).
type condensedCluster struct {
	id         int64
	birth      float64
	dendroNode int64
	children   []int64
	fallouts   []falloutRecord
}

type falloutRecord struct {
	lambda    float64
	childSize int
}

func stability(c *condensedCluster) float64 {
	var s float64
	for _, f := range c.fallouts {
		s += f.lambda - c.birth
	}
	if s < 0 {
		s = 0
	}
	return s
}

// condense walks merges in ascending distance order, building the condensed
// cluster tree. A merge is a real split iff both raw children have size >=
// minClusterSize: both are emitted (or continued, if already identified) as
// condensed clusters under a shared parent. Otherwise the larger side keeps
// its surviving identity (or the smaller side's, or a freshly allocated one)
// and the smaller side is recorded as a fall-out; the surviving cluster's
// dendroNode is left untouched so later leaf-descendant lookups never
// include the excluded side.
func condense(merges []merge, m int, minClusterSize int) (map[int64]*condensedCluster, map[int64][2]int64, int64) {
	nodeCluster := make(map[int64]int64, len(merges))
	childrenOf := make(map[int64][2]int64, len(merges))
	rawSize := make(map[int64]int, len(merges)+m)
	for i := 0; i < m; i++ {
		rawSize[int64(i)] = 1
	}

	clusters := make(map[int64]*condensedCluster)
	var nextCID int64
	newCluster := func(birth float64) *condensedCluster {
		c := &condensedCluster{id: nextCID, birth: birth}
		clusters[nextCID] = c
		nextCID++
		return c
	}

	var lastID int64
	for _, mg := range merges {
		childrenOf[mg.id] = [2]int64{mg.left, mg.right}
		rawSize[mg.id] = mg.size
		lastID = mg.id

		sizeL, sizeR := rawSize[mg.left], rawSize[mg.right]

		var lambda float64
		if mg.distance <= 0 {
			lambda = math.Inf(1)
		} else {
			lambda = 1.0 / mg.distance
		}

		if sizeL >= minClusterSize && sizeR >= minClusterSize {
			leftC := resolveOrCreate(clusters, nodeCluster, newCluster, mg.left, lambda)
			rightC := resolveOrCreate(clusters, nodeCluster, newCluster, mg.right, lambda)

			parentC := newCluster(lambda)
			parentC.dendroNode = mg.id
			parentC.children = []int64{leftC.id, rightC.id}
			nodeCluster[mg.id] = parentC.id
			continue
		}

		largerNode, smallerNode, smallerSize := mg.left, mg.right, sizeR
		if sizeR > sizeL {
			largerNode, smallerNode, smallerSize = mg.right, mg.left, sizeL
		}

		var survivor *condensedCluster
		if cid, ok := nodeCluster[largerNode]; ok {
			survivor = clusters[cid]
		} else if cid, ok := nodeCluster[smallerNode]; ok {
			survivor = clusters[cid]
		} else {
			survivor = newCluster(lambda)
			survivor.dendroNode = largerNode
		}
		survivor.fallouts = append(survivor.fallouts, falloutRecord{lambda: lambda, childSize: smallerSize})
		nodeCluster[mg.id] = survivor.id
	}

	rootID := nodeCluster[lastID]
	return clusters, childrenOf, rootID
}

func resolveOrCreate(clusters map[int64]*condensedCluster, nodeCluster map[int64]int64, newCluster func(float64) *condensedCluster, node int64, birth float64) *condensedCluster {
	if cid, ok := nodeCluster[node]; ok {
		return clusters[cid]
	}
	c := newCluster(birth)
	c.dendroNode = node
	return c
}

// leafDescendants returns the sorted point indices (< m) reachable from
// node via an iterative stack traversal, avoiding recursion on dendrograms
// that can reach depth m.
func leafDescendants(childrenOf map[int64][2]int64, m int, node int64) []int64 {
	var out []int64
	stack := []int64{node}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n < int64(m) {
			out = append(out, n)
			continue
		}
		ch := childrenOf[n]
		stack = append(stack, ch[0], ch[1])
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// eomSelect walks the condensed cluster tree bottom-up (recursion depth is
// bounded by the number of condensed clusters, not m). A cluster is
// selected when its own stability is at least the summed stability of its
// children, in which case all descendants are deselected; otherwise its
// stability propagates to its parent. Falls back to the root when nothing
// is ever selected.
func eomSelect(clusters map[int64]*condensedCluster, rootID int64) map[int64]bool {
	selected := make(map[int64]bool)
	if len(clusters) == 0 {
		return selected
	}

	var visit func(id int64) float64
	visit = func(id int64) float64 {
		c := clusters[id]
		own := stability(c)
		if len(c.children) == 0 {
			selected[id] = true
			return own
		}

		var childSum float64
		for _, ch := range c.children {
			childSum += visit(ch)
		}

		if own >= childSum {
			selected[id] = true
			deselectDescendants(clusters, c, selected)
			return own
		}
		return childSum
	}
	visit(rootID)

	for _, v := range selected {
		if v {
			return selected
		}
	}
	selected[rootID] = true
	return selected
}

func deselectDescendants(clusters map[int64]*condensedCluster, c *condensedCluster, selected map[int64]bool) {
	for _, ch := range c.children {
		selected[ch] = false
		deselectDescendants(clusters, clusters[ch], selected)
	}
}

// assignLabels gives every selected cluster a label 0..K-1 in ascending
// cluster-id order and marks every other point as noise (-1).
func assignLabels(clusters map[int64]*condensedCluster, selected map[int64]bool, childrenOf map[int64][2]int64, m int, ids []int64) []corpus.Assignment {
	var selectedIDs []int64
	for id, ok := range selected {
		if ok {
			selectedIDs = append(selectedIDs, id)
		}
	}
	sort.Slice(selectedIDs, func(i, j int) bool { return selectedIDs[i] < selectedIDs[j] })

	labelOf := make([]int, m)
	for i := range labelOf {
		labelOf[i] = -1
	}
	for label, cid := range selectedIDs {
		c := clusters[cid]
		for _, p := range leafDescendants(childrenOf, m, c.dendroNode) {
			labelOf[p] = label
		}
	}

	out := make([]corpus.Assignment, m)
	for i := 0; i < m; i++ {
		membership := 0.0
		if labelOf[i] >= 0 {
			membership = 1.0
		}
		out[i] = corpus.Assignment{EdgeID: ids[i], Label: labelOf[i], Membership: membership}
	}
	return out
}

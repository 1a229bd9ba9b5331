// Package hypergraph provides the in-memory node↔edge bidirectional index
// over hyperedge incidences. The index is read-only after construction and
// safe for concurrent readers, mirroring the teacher's CSR-backed
// ObservationGraph: build once under a write lock, then serve unlimited
// concurrent lookups under a read lock.
package hypergraph

import (
	"fmt"
	"sort"
	"sync"

	"github.com/nwgraph/analyticscore/pkg/corpus"
)

// Index is the bidirectional node↔edge hypergraph built from a fixed set of
// nodes and hyperedges. It never mutates after NewIndex returns except for
// node IDF values, which EventVectorizer.ComputeIDF writes in place.
type Index struct {
	nodes map[int64]*corpus.Node
	edges map[int64]*corpus.Hyperedge

	nodeToEdges map[int64][]int64            // node -> sorted, deduped edge ids
	edgeToNodes map[int64]map[int64]struct{} // edge -> node id set, for intersection tests
	edgeRoles   map[int64]map[corpus.Role][]int64

	mu sync.RWMutex

	csrOnce sync.Once
	csr     *csrSnapshot
}

// csrSnapshot is a compressed-sparse-row view of the edge-to-edge
// s-connectivity graph at the widest threshold (shared node count >= 1),
// built once on first NeighborEdges call and reused afterward. Each row is
// one edge; its columns are the other edges sharing at least one node,
// paired with the shared-node count so NeighborEdges can filter by s
// without recomputing intersections.
type csrSnapshot struct {
	edgeOrder []int64         // edge id at each row index, ascending
	rowIndex  map[int64]int32 // edge id -> row index
	rowPtr    []int32
	colIdx    []int32 // neighbor row index
	counts    []int32 // shared-node count for that neighbor
}

// NewIndex validates and builds an Index from external triple data. Every
// edge must carry at least one incidence; (edge, node, role) must be
// unique; every node and edge referenced by an incidence must exist in the
// supplied slices.
func NewIndex(nodes []corpus.Node, edges []corpus.Hyperedge) (*Index, error) {
	idx := &Index{
		nodes:       make(map[int64]*corpus.Node, len(nodes)),
		edges:       make(map[int64]*corpus.Hyperedge, len(edges)),
		nodeToEdges: make(map[int64][]int64, len(nodes)),
		edgeToNodes: make(map[int64]map[int64]struct{}, len(edges)),
		edgeRoles:   make(map[int64]map[corpus.Role][]int64, len(edges)),
	}

	for i := range nodes {
		n := &nodes[i]
		idx.nodes[n.ID] = n
	}

	for i := range edges {
		e := &edges[i]
		if len(e.Incidences) == 0 {
			return nil, fmt.Errorf("hypergraph: edge %d has no incidences", e.ID)
		}
		if _, exists := idx.edges[e.ID]; exists {
			return nil, fmt.Errorf("hypergraph: duplicate edge id %d", e.ID)
		}
		idx.edges[e.ID] = e

		seen := make(map[[2]any]struct{}, len(e.Incidences))
		nodeSet := make(map[int64]struct{}, len(e.Incidences))
		roles := make(map[corpus.Role][]int64)

		for _, inc := range e.Incidences {
			if _, ok := idx.nodes[inc.NodeID]; !ok {
				return nil, fmt.Errorf("hypergraph: edge %d references unknown node %d", e.ID, inc.NodeID)
			}
			key := [2]any{inc.NodeID, inc.Role}
			if _, dup := seen[key]; dup {
				return nil, fmt.Errorf("hypergraph: edge %d has duplicate (node %d, role %s) incidence", e.ID, inc.NodeID, inc.Role)
			}
			seen[key] = struct{}{}

			nodeSet[inc.NodeID] = struct{}{}
			roles[inc.Role] = append(roles[inc.Role], inc.NodeID)
			idx.nodeToEdges[inc.NodeID] = append(idx.nodeToEdges[inc.NodeID], e.ID)
		}

		for role, ids := range roles {
			positions := make(map[int64]int, len(e.Incidences))
			for _, inc := range e.Incidences {
				if inc.Role == role {
					positions[inc.NodeID] = inc.Position
				}
			}
			sort.Slice(ids, func(i, j int) bool { return positions[ids[i]] < positions[ids[j]] })
			roles[role] = ids
		}

		idx.edgeToNodes[e.ID] = nodeSet
		idx.edgeRoles[e.ID] = roles
	}

	for nodeID, edgeIDs := range idx.nodeToEdges {
		deduped := dedupeSorted(edgeIDs)
		idx.nodeToEdges[nodeID] = deduped
	}

	return idx, nil
}

func dedupeSorted(ids []int64) []int64 {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := ids[:0]
	var last int64
	for i, id := range ids {
		if i == 0 || id != last {
			out = append(out, id)
			last = id
		}
	}
	return out
}

// Edges returns the sorted, deduplicated edge ids incident to node.
func (idx *Index) Edges(nodeID int64) []int64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	src := idx.nodeToEdges[nodeID]
	out := make([]int64, len(src))
	copy(out, src)
	return out
}

// Nodes returns the node ids incident to edge, sorted ascending.
func (idx *Index) Nodes(edgeID int64) []int64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	set := idx.edgeToNodes[edgeID]
	out := make([]int64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// NodesByRole returns the node ids playing role in edge, ordered by their
// recorded incidence position.
func (idx *Index) NodesByRole(edgeID int64, role corpus.Role) []int64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	src := idx.edgeRoles[edgeID][role]
	out := make([]int64, len(src))
	copy(out, src)
	return out
}

// LabelOfNode returns the node's label, or "" and false if unknown.
func (idx *Index) LabelOfNode(nodeID int64) (string, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	n, ok := idx.nodes[nodeID]
	if !ok {
		return "", false
	}
	return n.Label, true
}

// LabelOfEdge returns the edge's verb, or "" and false if unknown.
func (idx *Index) LabelOfEdge(edgeID int64) (string, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	e, ok := idx.edges[edgeID]
	if !ok {
		return "", false
	}
	return e.Verb, true
}

// NeighborEdges returns the edges that share at least s nodes with edge,
// excluding edge itself. s is the s-connectivity intersection threshold.
// It is served from a CSR (compressed sparse row) snapshot of the full
// edge-adjacency graph, built lazily on first call and reused by every
// later call regardless of s.
func (idx *Index) NeighborEdges(edgeID int64, s int) []int64 {
	idx.ensureCSR()

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	row, ok := idx.csr.rowIndex[edgeID]
	if !ok {
		return nil
	}

	var out []int64
	start, end := idx.csr.rowPtr[row], idx.csr.rowPtr[row+1]
	for i := start; i < end; i++ {
		if int(idx.csr.counts[i]) >= s {
			out = append(out, idx.csr.edgeOrder[idx.csr.colIdx[i]])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ensureCSR builds the edge-adjacency CSR snapshot exactly once.
func (idx *Index) ensureCSR() {
	idx.csrOnce.Do(func() {
		idx.mu.Lock()
		defer idx.mu.Unlock()
		idx.csr = buildCSR(idx.edges, idx.edgeToNodes, idx.nodeToEdges)
	})
}

func buildCSR(edges map[int64]*corpus.Hyperedge, edgeToNodes map[int64]map[int64]struct{}, nodeToEdges map[int64][]int64) *csrSnapshot {
	order := make([]int64, 0, len(edges))
	for id := range edges {
		order = append(order, id)
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	rowIndex := make(map[int64]int32, len(order))
	for i, id := range order {
		rowIndex[id] = int32(i)
	}

	rowPtr := make([]int32, len(order)+1)
	var colIdx []int32
	var counts []int32

	for row, edgeID := range order {
		rowPtr[row] = int32(len(colIdx))

		shared := make(map[int64]int32)
		for nodeID := range edgeToNodes[edgeID] {
			for _, other := range nodeToEdges[nodeID] {
				if other == edgeID {
					continue
				}
				shared[other]++
			}
		}

		neighbors := make([]int64, 0, len(shared))
		for other := range shared {
			neighbors = append(neighbors, other)
		}
		sort.Slice(neighbors, func(i, j int) bool { return neighbors[i] < neighbors[j] })

		for _, other := range neighbors {
			colIdx = append(colIdx, rowIndex[other])
			counts = append(counts, shared[other])
		}
	}
	rowPtr[len(order)] = int32(len(colIdx))

	return &csrSnapshot{
		edgeOrder: order,
		rowIndex:  rowIndex,
		rowPtr:    rowPtr,
		colIdx:    colIdx,
		counts:    counts,
	}
}

// Node returns the node record by id.
func (idx *Index) Node(nodeID int64) (*corpus.Node, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	n, ok := idx.nodes[nodeID]
	return n, ok
}

// Edge returns the hyperedge record by id.
func (idx *Index) Edge(edgeID int64) (*corpus.Hyperedge, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	e, ok := idx.edges[edgeID]
	return e, ok
}

// AllNodeIDs returns every node id in ascending order.
func (idx *Index) AllNodeIDs() []int64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]int64, 0, len(idx.nodes))
	for id := range idx.nodes {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// AllEdgeIDs returns every edge id in ascending order.
func (idx *Index) AllEdgeIDs() []int64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]int64, 0, len(idx.edges))
	for id := range idx.edges {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SetIDF writes the computed IDF weight for a node. This is the only
// mutation of node state during a pipeline run (EventVectorizer.ComputeIDF).
func (idx *Index) SetIDF(nodeID int64, idf float64) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if n, ok := idx.nodes[nodeID]; ok {
		n.IDF = idf
		n.HasIDF = true
	}
}

// NodeCount returns the number of nodes in the index.
func (idx *Index) NodeCount() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.nodes)
}

// EdgeCount returns the number of hyperedges in the index.
func (idx *Index) EdgeCount() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.edges)
}

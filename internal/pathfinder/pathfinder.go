// Package pathfinder answers multi-hop reasoning queries over a
// HypergraphIndex: for every pair of query nodes, the shortest s-connected
// edge-paths linking an edge touching one to an edge touching the other.
package pathfinder

import (
	"context"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/nwgraph/analyticscore/internal/hypergraph"
	"github.com/nwgraph/analyticscore/pkg/corpus"
)

// Params is the explicit, per-call parameter set; the finder holds no
// state of its own beyond the index it reads.
type Params struct {
	IntersectionThreshold int
	MaxPaths              int
	MaxDepth              int
}

// FindPaths returns, for every unordered pair in query, up to MaxPaths
// shortest edge-paths connecting an edge touching the first node to an edge
// touching the second, where consecutive edges on a path share at least
// IntersectionThreshold nodes. Cancellation via ctx stops the search and
// returns the paths already found together with corpus.ErrCancelled; the
// index is read-only throughout, so there is no shared state to corrupt.
func FindPaths(ctx context.Context, idx *hypergraph.Index, query []int64, params Params) ([]corpus.ReasoningPath, error) {
	if len(query) < 2 {
		return nil, corpus.ErrInvalidParameters
	}
	if params.MaxPaths <= 0 || params.MaxDepth < 0 {
		return nil, corpus.ErrInvalidParameters
	}

	var out []corpus.ReasoningPath
	for i := 0; i < len(query); i++ {
		for j := i + 1; j < len(query); j++ {
			a, b := query[i], query[j]
			paths, err := pathsForPair(ctx, idx, a, b, params)
			out = append(out, paths...)
			if err != nil {
				return out, err
			}
		}
	}

	log.Debug().Int("query_size", len(query)).Int("paths_found", len(out)).Msg("pathfinder run complete")
	return out, nil
}

func pathsForPair(ctx context.Context, idx *hypergraph.Index, a, b int64, params Params) ([]corpus.ReasoningPath, error) {
	if a == b {
		return nil, nil
	}

	terminals, minDepth, parents, err := bfs(ctx, idx, a, b, params)
	if err != nil {
		return nil, err
	}
	if len(terminals) == 0 {
		return nil, nil
	}

	edgePaths := enumeratePaths(parents, minDepth, terminals, params.MaxPaths)

	sourceLabel, _ := idx.LabelOfNode(a)
	targetLabel, _ := idx.LabelOfNode(b)

	out := make([]corpus.ReasoningPath, 0, len(edgePaths))
	for _, path := range edgePaths {
		out = append(out, corpus.ReasoningPath{
			SourceLabel:    sourceLabel,
			TargetLabel:    targetLabel,
			EdgeIDs:        path,
			HopLabels:      hopLabels(idx, path),
			RelationLabels: relationLabels(idx, path),
		})
	}
	return out, nil
}

// bfs runs a level-synchronous multi-source BFS seeded from edges(a),
// expanding through neighborEdges(e, s), and returns every edge touching b
// found at the shallowest depth, the minimum discovery depth of every
// visited edge, and the parent DAG used to reconstruct paths.
func bfs(ctx context.Context, idx *hypergraph.Index, a, b int64, params Params) ([]int64, map[int64]int, map[int64][]int64, error) {
	edgesB := make(map[int64]bool)
	for _, e := range idx.Edges(b) {
		edgesB[e] = true
	}

	minDepth := make(map[int64]int)
	parents := make(map[int64][]int64)

	frontier := idx.Edges(a)
	for _, e := range frontier {
		if _, ok := minDepth[e]; !ok {
			minDepth[e] = 0
		}
	}

	var terminals []int64
	dStar := -1
	depth := 0

	for len(frontier) > 0 && depth <= params.MaxDepth {
		select {
		case <-ctx.Done():
			return terminals, minDepth, parents, corpus.ErrCancelled
		default:
		}

		for _, e := range frontier {
			if edgesB[e] {
				terminals = append(terminals, e)
				if dStar == -1 {
					dStar = depth
				}
			}
		}
		if dStar != -1 {
			break
		}

		candidateDepth := depth + 1
		neighborsByEdge := make(map[int64][]int64, len(frontier))
		for _, e := range frontier {
			neighborsByEdge[e] = idx.NeighborEdges(e, params.IntersectionThreshold)
		}

		var nextFrontier []int64
		for _, e := range frontier {
			for _, n := range neighborsByEdge[e] {
				if _, seen := minDepth[n]; !seen {
					minDepth[n] = candidateDepth
					nextFrontier = append(nextFrontier, n)
				}
			}
		}
		for _, e := range frontier {
			for _, n := range neighborsByEdge[e] {
				if minDepth[n] == candidateDepth {
					parents[n] = append(parents[n], e)
				}
			}
		}

		frontier = dedupe(nextFrontier)
		depth = candidateDepth
	}

	return terminals, minDepth, parents, nil
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// enumeratePaths reconstructs edge-paths from each terminal back to a depth
// zero edge by recursively walking the parent DAG, capping total
// enumeration at maxPaths across all terminals.
func enumeratePaths(parents map[int64][]int64, minDepth map[int64]int, terminals []int64, maxPaths int) [][]int64 {
	var results [][]int64

	var walk func(edge int64, suffix []int64)
	walk = func(edge int64, suffix []int64) {
		if len(results) >= maxPaths {
			return
		}
		path := append([]int64{edge}, suffix...)
		if minDepth[edge] == 0 {
			full := make([]int64, len(path))
			copy(full, path)
			results = append(results, full)
			return
		}
		for _, p := range parents[edge] {
			if len(results) >= maxPaths {
				return
			}
			walk(p, path)
		}
	}

	for _, t := range terminals {
		if len(results) >= maxPaths {
			break
		}
		walk(t, nil)
	}
	return results
}

func hopLabels(idx *hypergraph.Index, path []int64) [][]string {
	hops := make([][]string, 0, len(path)-1)
	for i := 0; i < len(path)-1; i++ {
		hops = append(hops, intersectionLabels(idx, path[i], path[i+1]))
	}
	return hops
}

func intersectionLabels(idx *hypergraph.Index, e1, e2 int64) []string {
	set1 := make(map[int64]bool)
	for _, n := range idx.Nodes(e1) {
		set1[n] = true
	}
	var labels []string
	for _, n := range idx.Nodes(e2) {
		if set1[n] {
			if label, ok := idx.LabelOfNode(n); ok {
				labels = append(labels, label)
			}
		}
	}
	sort.Strings(labels)
	return labels
}

func relationLabels(idx *hypergraph.Index, path []int64) []string {
	out := make([]string, len(path))
	for i, e := range path {
		out[i], _ = idx.LabelOfEdge(e)
	}
	return out
}

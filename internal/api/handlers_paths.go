package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/nwgraph/analyticscore/internal/pathfinder"
)

type findPathsRequest struct {
	BuildID               string   `json:"build_id"`
	Labels                []string `json:"labels"`
	IntersectionThreshold int      `json:"intersection_threshold"`
	MaxPaths              int      `json:"max_paths"`
	MaxDepth              int      `json:"max_depth"`
}

func (s *Server) handleFindPaths(w http.ResponseWriter, r *http.Request) {
	var req findPathsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	state, ok := s.lookupBuild(req.BuildID)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown build %q", req.BuildID))
		return
	}

	query := make([]int64, 0, len(req.Labels))
	for _, label := range req.Labels {
		id, ok := state.labelToID[label]
		if !ok {
			writeError(w, http.StatusBadRequest, fmt.Errorf("unknown node label %q in build %q", label, req.BuildID))
			return
		}
		query = append(query, id)
	}

	intersectionThreshold := req.IntersectionThreshold
	if intersectionThreshold <= 0 {
		intersectionThreshold = 1
	}
	maxPaths := req.MaxPaths
	if maxPaths <= 0 {
		maxPaths = 20
	}
	maxDepth := req.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 6
	}

	start := time.Now()
	paths, err := pathfinder.FindPaths(r.Context(), state.result.Index, query, pathfinder.Params{
		IntersectionThreshold: intersectionThreshold,
		MaxPaths:              maxPaths,
		MaxDepth:              maxDepth,
	})
	if s.metrics != nil {
		s.metrics.PathQueryDuration.Record(r.Context(), time.Since(start).Seconds())
	}
	if err != nil {
		writeCoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, paths)
}

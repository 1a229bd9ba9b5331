package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nwgraph/analyticscore/internal/ingest"
	"github.com/nwgraph/analyticscore/internal/pipeline"
)

// createBuildRequest names the NDJSON triple file a build reads from. A
// future revision may also accept Postgres-sourced triples, but the HTTP
// contract only needs the file path case: Postgres-backed ingestion is
// driven directly from cmd/analyticsd for scheduled runs. BuildID is
// optional: callers that don't need to correlate the request with an
// external identifier get one generated for them.
type createBuildRequest struct {
	BuildID        string `json:"build_id,omitempty"`
	TripleFilePath string `json:"triple_file_path"`
}

func (s *Server) handleCreateBuild(w http.ResponseWriter, r *http.Request) {
	var req createBuildRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if req.TripleFilePath == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("triple_file_path is required"))
		return
	}
	if req.BuildID == "" {
		req.BuildID = uuid.NewString()
	}

	reader, err := ingest.NewFileTripleReader(req.TripleFilePath)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("open triple file: %w", err))
		return
	}

	result, err := s.runner.RunDetailed(r.Context(), pipeline.Job{
		BuildID:    req.BuildID,
		Triples:    reader,
		Embeddings: s.embeddings,
	})
	if err != nil {
		writeCoreError(w, err)
		return
	}

	s.rememberBuild(req.BuildID, result)
	writeJSON(w, http.StatusCreated, result.Record)
}

func (s *Server) handleGetClusters(w http.ResponseWriter, r *http.Request) {
	buildID := chi.URLParam(r, "buildID")
	state, ok := s.lookupBuild(buildID)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown build %q", buildID))
		return
	}
	writeJSON(w, http.StatusOK, state.result.Clusters)
}

// Package api exposes pipeline runs and interactive queries over HTTP,
// grounded on the teacher's cmd/worker + internal/worker chi-router
// service: one Server holding its constructed dependencies, a handful of
// narrowly scoped middleware, and one handler per route.
package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nwgraph/analyticscore/internal/forcelayout"
	"github.com/nwgraph/analyticscore/internal/ingest"
	"github.com/nwgraph/analyticscore/internal/observability"
	"github.com/nwgraph/analyticscore/internal/pipeline"
)

// maxRequestBody bounds decoded JSON request bodies, mirroring the
// teacher's MaxBodySize guard against oversized payloads.
const maxRequestBody = 10 * 1024 * 1024

// buildState is the in-memory result of one completed build, kept around so
// interactive queries (paths, layout) don't need a read path on store.Sink.
type buildState struct {
	result    pipeline.Result
	labelToID map[string]int64
}

// Server wires the pipeline runner and interactive query engines behind an
// HTTP surface. EmbeddingSource is shared across every build request;
// per-request triple sources are supplied by path.
type Server struct {
	runner     *pipeline.Runner
	embeddings ingest.EmbeddingSource
	router     *chi.Mux
	metrics    *observability.Metrics

	mu      sync.RWMutex
	builds  map[string]*buildState
	layouts map[string]*forcelayout.Layout
}

// New builds a Server around runner. embeddings may be nil; triples carry no
// embeddings of their own, so builds then find no embedded nodes and fail
// with corpus.ErrNoEmbeddings.
func New(runner *pipeline.Runner, embeddings ingest.EmbeddingSource) *Server {
	s := &Server{
		runner:     runner,
		embeddings: embeddings,
		builds:     make(map[string]*buildState),
		layouts:    make(map[string]*forcelayout.Layout),
	}
	s.router = chi.NewRouter()
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// SetMetrics attaches the instruments PathFinder queries record into. Nil
// is valid and leaves recording disabled.
func (s *Server) SetMetrics(m *observability.Metrics) {
	s.metrics = m
}

// ServeHTTP makes Server usable directly as an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RealIP)
	s.router.Use(func(next http.Handler) http.Handler {
		return http.MaxBytesHandler(next, maxRequestBody)
	})
	s.router.Use(middleware.Timeout(30 * time.Second))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Post("/builds", s.handleCreateBuild)
	s.router.Get("/builds/{buildID}/clusters", s.handleGetClusters)
	s.router.Post("/paths", s.handleFindPaths)
	s.router.Post("/layout/{sessionID}/step", s.handleLayoutStep)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) rememberBuild(id string, result pipeline.Result) {
	labelToID := make(map[string]int64)
	if result.Index != nil {
		for _, nodeID := range result.Index.AllNodeIDs() {
			if label, ok := result.Index.LabelOfNode(nodeID); ok {
				labelToID[label] = nodeID
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.builds[id] = &buildState{result: result, labelToID: labelToID}
}

func (s *Server) lookupBuild(id string) (*buildState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.builds[id]
	return b, ok
}

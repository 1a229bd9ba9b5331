package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nwgraph/analyticscore/internal/pipeline"
	"github.com/nwgraph/analyticscore/internal/store"
	"github.com/nwgraph/analyticscore/pkg/corpus"
)

type staticEmbeddingSource struct {
	vectors map[string][]float32
}

func (s *staticEmbeddingSource) Embedding(ctx context.Context, label string) ([]float32, bool, error) {
	v, ok := s.vectors[label]
	return v, ok, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	sink, err := store.NewSQLiteStore(store.SQLiteConfig{Path: filepath.Join(t.TempDir(), "api-test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sink.Close() })

	embeddings := &staticEmbeddingSource{vectors: map[string][]float32{
		"Apple":  {1, 0, 0, 0},
		"Beats":  {0.9, 0.1, 0, 0},
		"Siri":   {0.8, 0.2, 0, 0},
		"Google": {0, 0, 1, 0},
		"Fitbit": {0, 0.1, 0.9, 0},
		"Nest":   {0, 0.2, 0.8, 0},
	}}

	runner := pipeline.New(sink, pipeline.Config{EmbeddingDim: 4, MinClusterSize: 2, MinSamples: 1}, nil)
	return New(runner, embeddings)
}

func writeSampleTripleFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "triples.ndjson")
	body := strings.Join([]string{
		`{"verb":"Acquire","source_labels":["Apple"],"target_labels":["Beats"],"chunk_id":"c1"}`,
		`{"verb":"Acquire","source_labels":["Apple"],"target_labels":["Siri"],"chunk_id":"c2"}`,
		`{"verb":"Partner","source_labels":["Google"],"target_labels":["Fitbit"],"chunk_id":"c3"}`,
		`{"verb":"Partner","source_labels":["Google"],"target_labels":["Nest"],"chunk_id":"c4"}`,
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func createBuild(t *testing.T, s *Server, buildID string) corpus.BuildRecord {
	t.Helper()
	body, err := json.Marshal(createBuildRequest{BuildID: buildID, TripleFilePath: writeSampleTripleFile(t)})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/builds", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var record corpus.BuildRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
	return record
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleCreateBuildAndGetClusters(t *testing.T) {
	s := newTestServer(t)
	record := createBuild(t, s, "build-1")
	assert.Equal(t, "build-1", record.BuildID)
	assert.Equal(t, 4, record.EventCount)

	req := httptest.NewRequest(http.MethodGet, "/builds/build-1/clusters", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var clusters []corpus.Cluster
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &clusters))
}

func TestHandleCreateBuildGeneratesBuildIDWhenOmitted(t *testing.T) {
	s := newTestServer(t)
	body, err := json.Marshal(createBuildRequest{TripleFilePath: writeSampleTripleFile(t)})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/builds", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var record corpus.BuildRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
	assert.NotEmpty(t, record.BuildID)
}

func TestHandleGetClustersUnknownBuild(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/builds/does-not-exist/clusters", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleFindPathsRequiresKnownLabels(t *testing.T) {
	s := newTestServer(t)
	createBuild(t, s, "build-1")

	body, _ := json.Marshal(findPathsRequest{BuildID: "build-1", Labels: []string{"Apple", "no-such-label"}})
	req := httptest.NewRequest(http.MethodPost, "/paths", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleFindPathsWithKnownLabels(t *testing.T) {
	s := newTestServer(t)
	createBuild(t, s, "build-1")

	body, _ := json.Marshal(findPathsRequest{BuildID: "build-1", Labels: []string{"Apple", "Google"}})
	req := httptest.NewRequest(http.MethodPost, "/paths", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var paths []corpus.ReasoningPath
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &paths))
}

func TestHandleLayoutStepStartsAndAdvancesSession(t *testing.T) {
	s := newTestServer(t)
	createBuild(t, s, "build-1")

	body, _ := json.Marshal(layoutStepRequest{BuildID: "build-1", Seed: 7, Spread: 300})
	req := httptest.NewRequest(http.MethodPost, "/layout/session-1/step", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp layoutStepResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Nodes)

	// Second call needs no build_id: the session already exists.
	req2 := httptest.NewRequest(http.MethodPost, "/layout/session-1/step", bytes.NewReader([]byte(`{}`)))
	rec2 := httptest.NewRecorder()
	s.ServeHTTP(rec2, req2)
	assert.Equal(t, http.StatusOK, rec2.Code)
}

func TestHandleLayoutStepUnknownSessionRequiresBuildID(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/layout/session-x/step", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

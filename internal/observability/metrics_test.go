package observability

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBuildsEveryInstrument(t *testing.T) {
	m, err := New()
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.NotNil(t, m.PipelineRunDuration)
	assert.NotNil(t, m.ClusterCount)
	assert.NotNil(t, m.PathQueryDuration)
}

func TestHandlerServesRecordedMetrics(t *testing.T) {
	m, err := New()
	require.NoError(t, err)

	m.PipelineRunDuration.Record(context.Background(), 1.5)
	m.ClusterCount.Record(context.Background(), 3)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	m.Handler().ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "analyticscore_pipeline_run_duration_seconds")
}

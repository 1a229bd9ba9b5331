package labeling

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nwgraph/analyticscore/pkg/corpus"
)

func sampleCluster() corpus.Cluster {
	return corpus.Cluster{
		Label:     3,
		AutoLabel: "Beats, Apple — Acquire",
		TopEntities: []corpus.EntityScore{
			{Label: "Beats", Score: 3.0},
			{Label: "Apple", Score: 2.0},
		},
		TopFamilies: []corpus.FamilyCount{
			{Family: "Acquire", Count: 4},
		},
	}
}

func TestClientLabelReturnsEndpointValue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req labelRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Beats", req.TopEntities[0].Label)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(labelResponse{Label: "Apple buys Beats"})
	}))
	defer srv.Close()

	c := New(Config{Endpoint: srv.URL})
	label, err := c.Label(context.Background(), sampleCluster())
	require.NoError(t, err)
	assert.Equal(t, "Apple buys Beats", label)
}

func TestClientLabelErrorsOnNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(Config{Endpoint: srv.URL})
	_, err := c.Label(context.Background(), sampleCluster())
	assert.Error(t, err)
}

func TestClientLabelErrorsOnEmptyLabel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(labelResponse{Label: ""})
	}))
	defer srv.Close()

	c := New(Config{Endpoint: srv.URL})
	_, err := c.Label(context.Background(), sampleCluster())
	assert.Error(t, err)
}

func TestLabelOrFallbackUsesAutoLabelOnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(Config{Endpoint: srv.URL})
	cluster := sampleCluster()
	got := LabelOrFallback(context.Background(), c, cluster)
	assert.Equal(t, cluster.AutoLabel, got)
}

func TestLabelOrFallbackWithNilProviderUsesAutoLabel(t *testing.T) {
	cluster := sampleCluster()
	got := LabelOrFallback(context.Background(), nil, cluster)
	assert.Equal(t, cluster.AutoLabel, got)
}

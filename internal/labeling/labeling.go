// Package labeling wraps an optional LLM-backed labeling endpoint used to
// improve on ClusterArtifacts' auto-generated labels. The endpoint returns a
// single label string; no summary is requested or returned. It is advisory:
// callers fall back to the auto-label on any error rather than failing the
// build.
package labeling

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nwgraph/analyticscore/pkg/corpus"
)

const defaultTimeout = 10 * time.Second

// Provider labels a cluster given its derived artifacts.
type Provider interface {
	Label(ctx context.Context, cluster corpus.Cluster) (string, error)
}

// Config configures the HTTP labeling client.
type Config struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

// Client calls an external HTTP endpoint that accepts a cluster's top
// entities and relation families and returns a human-readable label.
type Client struct {
	http     *http.Client
	endpoint string
	apiKey   string
}

type labelRequest struct {
	TopEntities []corpus.EntityScore `json:"top_entities"`
	TopFamilies []corpus.FamilyCount `json:"top_families"`
	AutoLabel   string               `json:"auto_label"`
}

type labelResponse struct {
	Label string `json:"label"`
}

// New builds a Client. Endpoint is required; an empty Config.Endpoint means
// labeling is disabled and callers should not construct a Client at all.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		http:     &http.Client{Timeout: timeout},
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
	}
}

// Label asks the endpoint for a title covering cluster's top entities and
// relation families. Errors are returned to the caller, which is expected to
// fall back to cluster.AutoLabel rather than fail the build.
func (c *Client) Label(ctx context.Context, cluster corpus.Cluster) (string, error) {
	body, err := json.Marshal(labelRequest{
		TopEntities: cluster.TopEntities,
		TopFamilies: cluster.TopFamilies,
		AutoLabel:   cluster.AutoLabel,
	})
	if err != nil {
		return "", fmt.Errorf("marshal label request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create label request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("send label request to %s: %w", c.endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("label endpoint error (status=%d): %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var parsed labelResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode label response: %w", err)
	}
	if parsed.Label == "" {
		return "", fmt.Errorf("label endpoint returned an empty label")
	}
	return parsed.Label, nil
}

// LabelOrFallback calls provider.Label and returns cluster.AutoLabel on any
// error, logging the failure instead of propagating it.
func LabelOrFallback(ctx context.Context, provider Provider, cluster corpus.Cluster) string {
	if provider == nil {
		return cluster.AutoLabel
	}
	label, err := provider.Label(ctx, cluster)
	if err != nil {
		log.Debug().Err(err).Int("cluster_label", cluster.Label).Msg("labeling provider failed, falling back to auto label")
		return cluster.AutoLabel
	}
	return label
}

// Package embedder wraps the pluggable external embedding service: the
// store never ships a vector model itself, only a thin HTTP client plus
// a deterministic test double.
package embedder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rcrt-io/rcrt/pkg/apierr"
	"github.com/rcrt-io/rcrt/pkg/config"
)

// Embedder turns text into a fixed-dimension vector for semantic search
// and edge computation.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dim() int
}

// HTTPEmbedder calls an external embedding endpoint over HTTP as a
// single-purpose client.
type HTTPEmbedder struct {
	httpClient *http.Client
	endpoint   string
	dim        int
}

// New constructs an HTTPEmbedder from cfg. An empty Endpoint is valid —
// Embed then always fails upstream_unavailable, degrading callers to
// keyword/tag-only search.
func New(cfg config.EmbedderConfig) *HTTPEmbedder {
	return &HTTPEmbedder{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		endpoint:   cfg.Endpoint,
		dim:        cfg.Dim,
	}
}

// Dim reports the embedding dimension this embedder produces.
func (e *HTTPEmbedder) Dim() int { return e.dim }

type embedRequest struct {
	Input string `json:"input"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed posts text to the configured endpoint and returns its vector.
// Any failure — unreachable endpoint, non-200 status, malformed body, or
// a dimension mismatch — is reported as apierr.UpstreamUnavailable so
// callers can degrade rather than fail the whole request.
func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.endpoint == "" {
		return nil, apierr.New(apierr.UpstreamUnavailable, "no embedder configured")
	}

	body, err := json.Marshal(embedRequest{Input: text})
	if err != nil {
		return nil, apierr.Wrap(apierr.Internal, "encode embed request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, strings.NewReader(string(body)))
	if err != nil {
		return nil, apierr.Wrap(apierr.Internal, "build embed request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, apierr.Wrap(apierr.UpstreamUnavailable, "call embedder", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apierr.New(apierr.UpstreamUnavailable, fmt.Sprintf("embedder returned HTTP %d", resp.StatusCode))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apierr.Wrap(apierr.UpstreamUnavailable, "read embedder response", err)
	}

	var parsed embedResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, apierr.Wrap(apierr.UpstreamUnavailable, "decode embedder response", err)
	}
	if len(parsed.Embedding) != e.dim {
		return nil, apierr.New(apierr.UpstreamUnavailable,
			fmt.Sprintf("embedder returned dimension %d, expected %d", len(parsed.Embedding), e.dim))
	}
	return parsed.Embedding, nil
}

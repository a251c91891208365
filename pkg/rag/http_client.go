package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// HTTPClient is a Client backed by an R2R-compatible retrieval API,
// grounded on original_source's api_analyzer_agent.py
// (R2RClient(base_url).retrieval.search). It throttles outbound queries
// with a token-bucket limiter before issuing the HTTP call — RAG calls are
// an explicit suspension point (spec.md §5) and this repo's rate limiter
// of choice, following vanducng-goclaw's go.mod selection of
// golang.org/x/time over a hand-rolled limiter.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewHTTPClient constructs an HTTPClient against baseURL (the R2R
// deployment's root, e.g. "http://localhost:7272"), allowing at most
// ratePerSecond queries/sec with a burst of burst requests. A non-positive
// ratePerSecond disables throttling (rate.Inf).
func NewHTTPClient(baseURL string, ratePerSecond float64, burst int) *HTTPClient {
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Inf
	if ratePerSecond > 0 {
		limit = rate.Limit(ratePerSecond)
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(limit, burst),
	}
}

type searchRequest struct {
	Query string `json:"query"`
}

type searchResult struct {
	Text string `json:"text"`
}

type searchResponse struct {
	Results struct {
		ChunkSearchResults []searchResult `json:"chunk_search_results"`
	} `json:"results"`
}

// Query issues a rate-limited POST to R2R's retrieval search endpoint and
// joins the returned chunk texts into a single context string. Any
// transport, status, or decode failure is returned as an error for the
// caller to degrade on, per spec.md §4.6.
func (c *HTTPClient) Query(ctx context.Context, query string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rag: rate limit wait: %w", err)
	}

	body, err := json.Marshal(searchRequest{Query: query})
	if err != nil {
		return "", fmt.Errorf("rag: encode search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v3/retrieval/search", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("rag: build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("rag: search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("rag: search returned status %d: %s", resp.StatusCode, string(snippet))
	}

	var decoded searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("rag: decode search response: %w", err)
	}

	texts := make([]string, 0, len(decoded.Results.ChunkSearchResults))
	for _, r := range decoded.Results.ChunkSearchResults {
		if r.Text != "" {
			texts = append(texts, r.Text)
		}
	}
	return strings.Join(texts, "\n\n"), nil
}

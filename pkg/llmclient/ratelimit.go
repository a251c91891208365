package llmclient

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimitedClient decorates a Client with a token-bucket limiter applied
// before each Generate call, the same rate.Limiter this repo uses to
// throttle pkg/rag's HTTP calls (golang.org/x/time, from vanducng-goclaw's
// dependency set). A provider-backed Client is as much a suspension point
// as the RAG retrieval call, so both get the same treatment.
type RateLimitedClient struct {
	inner   Client
	limiter *rate.Limiter
}

// NewRateLimitedClient wraps inner with a limiter allowing at most
// ratePerSecond Generate calls/sec with a burst of burst. A non-positive
// ratePerSecond disables throttling.
func NewRateLimitedClient(inner Client, ratePerSecond float64, burst int) *RateLimitedClient {
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Inf
	if ratePerSecond > 0 {
		limit = rate.Limit(ratePerSecond)
	}
	return &RateLimitedClient{inner: inner, limiter: rate.NewLimiter(limit, burst)}
}

// Generate waits for rate-limiter admission before delegating to inner.
func (c *RateLimitedClient) Generate(ctx context.Context, input GenerateInput) (<-chan Chunk, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		out := make(chan Chunk, 1)
		out <- &ErrorChunk{Message: "llmclient: rate limit wait: " + err.Error(), Retryable: true}
		close(out)
		return out, nil
	}
	return c.inner.Generate(ctx, input)
}

// Close delegates to inner.
func (c *RateLimitedClient) Close() error { return c.inner.Close() }

// Package rag provides the optional retrieval-augmented-generation
// collaborator the analyzer consults for extra context. Per spec.md §4.6
// this is a pure enhancement: any failure must degrade gracefully to a
// heuristic-only result rather than fail the pipeline, so Client is kept
// deliberately minimal and its zero value (nil) is itself a valid "RAG
// disabled" configuration.
package rag

import (
	"context"
	"fmt"
)

// Client queries a retrieval backend for context relevant to query.
type Client interface {
	Query(ctx context.Context, query string) (string, error)
}

// StubClient is a Client that always fails, standing in for an
// unconfigured or unreachable RAG backend in development/test
// environments. Its presence (rather than a nil Client) lets callers
// exercise the "RAG configured but unavailable" degradation path
// distinctly from "RAG not configured at all".
type StubClient struct{}

// NewStubClient creates a StubClient.
func NewStubClient() *StubClient { return &StubClient{} }

// Query always returns an error; the caller is expected to treat this as a
// graceful-degradation signal, not a pipeline failure.
func (s *StubClient) Query(ctx context.Context, query string) (string, error) {
	return "", fmt.Errorf("rag: no backend configured")
}

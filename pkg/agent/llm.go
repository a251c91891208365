package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pipelinecore/orchestrator/pkg/llmclient"
)

// LLMResult is the fully-collected output of one run_llm call (spec.md
// §4.4). Mirrors tarsy's controller.LLMResponse, trimmed to the chunk
// kinds this spec's mock/streaming backend actually emits.
type LLMResult struct {
	Text        string
	InputUsage  int
	OutputUsage int
	TotalUsage  int
}

// ErrModelError wraps a backend-reported, agent-retriable failure
// (ModelError in spec.md §4.4).
var ErrModelError = errors.New("agent: model error")

// RunLLM performs one LLM call and collects its stream into a single
// LLMResult. Non-streaming callers still use the channel underneath (the
// backend always streams; collection just buffers), matching tarsy's
// callLLM/collectStream split.
func RunLLM(ctx context.Context, client llmclient.Client, input llmclient.GenerateInput) (*LLMResult, error) {
	llmCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := client.Generate(llmCtx, input)
	if err != nil {
		return nil, fmt.Errorf("agent: llm generate failed: %w", err)
	}
	return collectStream(stream)
}

// StreamCallback is invoked for each text delta as it arrives, letting
// callers forward partial output (e.g. via BaseAgent.SendResponse) before
// the full response is collected.
type StreamCallback func(delta string)

// RunLLMStreaming is RunLLM with a per-chunk callback for live delivery.
func RunLLMStreaming(ctx context.Context, client llmclient.Client, input llmclient.GenerateInput, onDelta StreamCallback) (*LLMResult, error) {
	llmCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := client.Generate(llmCtx, input)
	if err != nil {
		return nil, fmt.Errorf("agent: llm generate failed: %w", err)
	}
	return collectStreamWithCallback(stream, onDelta)
}

func collectStream(stream <-chan llmclient.Chunk) (*LLMResult, error) {
	return collectStreamWithCallback(stream, nil)
}

func collectStreamWithCallback(stream <-chan llmclient.Chunk, onDelta StreamCallback) (*LLMResult, error) {
	var text strings.Builder
	result := &LLMResult{}

	for chunk := range stream {
		switch c := chunk.(type) {
		case *llmclient.TextChunk:
			text.WriteString(c.Content)
			if onDelta != nil {
				onDelta(c.Content)
			}
		case *llmclient.UsageChunk:
			result.InputUsage = c.InputTokens
			result.OutputUsage = c.OutputTokens
			result.TotalUsage = c.TotalTokens
		case *llmclient.ErrorChunk:
			return nil, fmt.Errorf("%w: %s", ErrModelError, c.Message)
		}
	}

	result.Text = text.String()
	return result, nil
}

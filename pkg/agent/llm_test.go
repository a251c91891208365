package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipelinecore/orchestrator/pkg/llmclient"
)

func TestRunLLMCollectsFullText(t *testing.T) {
	client := llmclient.NewMockClient()
	result, err := RunLLM(context.Background(), client, llmclient.GenerateInput{
		Messages: []llmclient.ConversationMessage{{Role: llmclient.RoleUser, Content: "hello"}},
	})
	require.NoError(t, err)
	assert.Contains(t, result.Text, "hello")
	assert.Greater(t, result.TotalUsage, 0)
}

func TestRunLLMStreamingInvokesCallbackPerDelta(t *testing.T) {
	client := llmclient.NewMockClient()
	var deltas []string
	result, err := RunLLMStreaming(context.Background(), client, llmclient.GenerateInput{
		Messages: []llmclient.ConversationMessage{{Role: llmclient.RoleUser, Content: "a b c"}},
	}, func(delta string) {
		deltas = append(deltas, delta)
	})
	require.NoError(t, err)
	assert.NotEmpty(t, deltas)
	assert.Equal(t, strings.Join(deltas, ""), result.Text)
}

type errorClient struct{}

func (errorClient) Generate(ctx context.Context, input llmclient.GenerateInput) (<-chan llmclient.Chunk, error) {
	out := make(chan llmclient.Chunk, 1)
	out <- &llmclient.ErrorChunk{Message: "provider down", Retryable: true}
	close(out)
	return out, nil
}

func (errorClient) Close() error { return nil }

func TestRunLLMPropagatesModelError(t *testing.T) {
	_, err := RunLLM(context.Background(), errorClient{}, llmclient.GenerateInput{
		Messages: []llmclient.ConversationMessage{{Role: llmclient.RoleUser, Content: "hi"}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrModelError)
}

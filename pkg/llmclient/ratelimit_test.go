package llmclient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(ch <-chan Chunk) []Chunk {
	var out []Chunk
	for c := range ch {
		out = append(out, c)
	}
	return out
}

func TestRateLimitedClientDelegatesToInner(t *testing.T) {
	c := NewRateLimitedClient(NewMockClient(), 0, 0)
	ch, err := c.Generate(context.Background(), GenerateInput{
		Messages: []ConversationMessage{{Role: RoleUser, Content: "hello"}},
	})
	require.NoError(t, err)

	chunks := drain(ch)
	require.NotEmpty(t, chunks)
	_, isUsage := chunks[len(chunks)-1].(*UsageChunk)
	assert.True(t, isUsage)
}

func TestRateLimitedClientReturnsErrorChunkWhenContextCancelled(t *testing.T) {
	c := NewRateLimitedClient(NewMockClient(), 1, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ch, err := c.Generate(ctx, GenerateInput{
		Messages: []ConversationMessage{{Role: RoleUser, Content: "hello"}},
	})
	require.NoError(t, err)

	chunks := drain(ch)
	require.Len(t, chunks, 1)
	errChunk, ok := chunks[0].(*ErrorChunk)
	require.True(t, ok)
	assert.Contains(t, errChunk.Message, "rate limit wait")
}

func TestRateLimitedClientCloseDelegatesToInner(t *testing.T) {
	c := NewRateLimitedClient(NewMockClient(), 0, 0)
	assert.NoError(t, c.Close())
}

package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipelinecore/orchestrator/pkg/bus"
	"github.com/pipelinecore/orchestrator/pkg/models"
)

type echoController struct {
	outTopic models.TopicType
	err      error
}

func (c *echoController) Handle(ctx context.Context, in models.TypedMessage) ([]Outbound, error) {
	if c.err != nil {
		return nil, c.err
	}
	return []Outbound{{
		Topic: c.outTopic,
		Message: models.TypedMessage{
			Kind:    models.KindParseOutput,
			Context: in.Context,
			ParseOutput: &models.ParseOutput{
				ConfidenceScore: 1,
			},
		},
	}}, nil
}

func TestBaseAgentDispatchesAndPublishesOutbound(t *testing.T) {
	b := bus.New()
	ctrl := &echoController{outTopic: models.TopicParseOutput}
	a := NewBaseAgent(models.AgentDocParser, models.TopicParseRequest, b, ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.Run(ctx)

	require.Eventually(t, func() bool {
		return b.SubscriberCount(models.TopicParseRequest) == 1
	}, time.Second, 10*time.Millisecond)

	received := make(chan models.TypedMessage, 1)
	b.Subscribe(models.TopicParseOutput, "test-observer", func(ctx context.Context, msg models.TypedMessage) {
		received <- msg
	})

	require.NoError(t, b.Publish(context.Background(), models.TopicParseRequest, models.TypedMessage{Kind: models.KindParseInput}))

	select {
	case msg := <-received:
		assert.Equal(t, float64(1), msg.ParseOutput.ConfidenceScore)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for outbound publish")
	}

	snap := a.Metrics().Snapshot()
	assert.Equal(t, int64(1), snap.Calls)
	assert.Equal(t, int64(0), snap.Failures)
}

func TestBaseAgentConvertsHandlerErrorToTerminalStreamResponse(t *testing.T) {
	b := bus.New()
	ctrl := &echoController{err: errors.New("boom")}
	a := NewBaseAgent(models.AgentAnalyzer, models.TopicAnalysisRequest, b, ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.Run(ctx)

	require.Eventually(t, func() bool {
		return b.SubscriberCount(models.TopicAnalysisRequest) == 1
	}, time.Second, 10*time.Millisecond)

	received := make(chan models.TypedMessage, 1)
	b.Subscribe(models.TopicStreamOutput, "test-observer", func(ctx context.Context, msg models.TypedMessage) {
		received <- msg
	})

	require.NoError(t, b.Publish(context.Background(), models.TopicAnalysisRequest, models.TypedMessage{Kind: models.KindAnalysisInput}))

	select {
	case msg := <-received:
		require.NotNil(t, msg.StreamResponse)
		assert.True(t, msg.StreamResponse.IsFinal)
		assert.Contains(t, msg.StreamResponse.Content, "boom")
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for error response")
	}

	snap := a.Metrics().Snapshot()
	assert.Equal(t, int64(1), snap.Failures)
}

func TestNewBaseAgentPanicsOnNilController(t *testing.T) {
	assert.Panics(t, func() {
		NewBaseAgent(models.AgentExecutor, models.TopicExecutionRequest, bus.New(), nil)
	})
}

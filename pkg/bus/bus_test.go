package bus

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipelinecore/orchestrator/pkg/models"
)

func TestPublishDeliversToSubscriber(t *testing.T) {
	b := New()
	received := make(chan models.TypedMessage, 1)
	b.Subscribe(models.TopicParseRequest, "doc_parser", func(ctx context.Context, msg models.TypedMessage) {
		received <- msg
	})

	msg := models.TypedMessage{Kind: models.KindParseInput, ParseInput: &models.ParseInput{Path: "spec.yaml"}}
	require.NoError(t, b.Publish(context.Background(), models.TopicParseRequest, msg))

	select {
	case got := <-received:
		assert.Equal(t, "spec.yaml", got.ParseInput.Path)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestPublishToUnknownTopicIsNotAnError(t *testing.T) {
	b := New()
	err := b.Publish(context.Background(), models.TopicAnalysisRequest, models.TypedMessage{Kind: models.KindAnalysisInput})
	assert.NoError(t, err)
}

func TestSubscribeIsIdempotent(t *testing.T) {
	b := New()
	handler := func(ctx context.Context, msg models.TypedMessage) {}
	b.Subscribe(models.TopicLogRecord, "log_recorder", handler)
	b.Subscribe(models.TopicLogRecord, "log_recorder", handler)
	assert.Equal(t, 1, b.SubscriberCount(models.TopicLogRecord))
}

func TestOrderingPerPublisherSubscriberPair(t *testing.T) {
	b := New()
	var mu sync.Mutex
	var order []int

	done := make(chan struct{})
	count := 0
	b.Subscribe(models.TopicExecutionRequest, "executor", func(ctx context.Context, msg models.TypedMessage) {
		mu.Lock()
		order = append(order, msg.ExecutionOutput.Record.ReturnCode)
		count++
		if count == 50 {
			close(done)
		}
		mu.Unlock()
	})

	for i := 0; i < 50; i++ {
		msg := models.TypedMessage{
			Kind: models.KindExecutionOutput,
			ExecutionOutput: &models.ExecutionOutput{
				Record: models.ExecutionRecord{ReturnCode: i},
			},
		}
		require.NoError(t, b.Publish(context.Background(), models.TopicExecutionRequest, msg))
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for all messages")
	}

	mu.Lock()
	defer mu.Unlock()
	for i, v := range order {
		assert.Equal(t, i, v)
	}
}

func TestSubscriberPanicIsIsolatedAndCounted(t *testing.T) {
	b := New()
	var calls int32
	b.Subscribe(models.TopicStreamOutput, "flaky", func(ctx context.Context, msg models.TypedMessage) {
		atomic.AddInt32(&calls, 1)
		panic("boom")
	})

	for i := 0; i < 3; i++ {
		require.NoError(t, b.Publish(context.Background(), models.TopicStreamOutput, models.TypedMessage{Kind: models.KindStreamResponse}))
	}

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) == 3
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, 3, b.ErrorCount("flaky"))
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	received := make(chan struct{}, 1)
	b.Subscribe(models.TopicYamlGeneration, "yaml_generator", func(ctx context.Context, msg models.TypedMessage) {
		received <- struct{}{}
	})
	b.Unsubscribe(models.TopicYamlGeneration, "yaml_generator")

	require.NoError(t, b.Publish(context.Background(), models.TopicYamlGeneration, models.TypedMessage{}))

	select {
	case <-received:
		t.Fatal("handler should not have been invoked after unsubscribe")
	case <-time.After(100 * time.Millisecond):
	}
	assert.Equal(t, 0, b.SubscriberCount(models.TopicYamlGeneration))
}

func TestPublishAfterShutdownFails(t *testing.T) {
	b := New()
	b.Subscribe(models.TopicParseRequest, "doc_parser", func(ctx context.Context, msg models.TypedMessage) {})
	b.Shutdown()
	err := b.Publish(context.Background(), models.TopicParseRequest, models.TypedMessage{})
	assert.ErrorIs(t, err, ErrBusShuttingDown)
}

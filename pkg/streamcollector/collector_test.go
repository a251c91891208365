package streamcollector

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipelinecore/orchestrator/pkg/bus"
	"github.com/pipelinecore/orchestrator/pkg/models"
)

type flushRecord struct {
	source  models.AgentType
	content string
	isFinal bool
}

func newRecordingConsumer() (Consumer, func() []flushRecord) {
	var mu sync.Mutex
	var records []flushRecord
	consumer := func(source models.AgentType, content string, isFinal bool) {
		mu.Lock()
		records = append(records, flushRecord{source, content, isFinal})
		mu.Unlock()
	}
	snapshot := func() []flushRecord {
		mu.Lock()
		defer mu.Unlock()
		out := make([]flushRecord, len(records))
		copy(out, records)
		return out
	}
	return consumer, snapshot
}

func TestCollectorFlushesOnFinalChunkImmediately(t *testing.T) {
	b := bus.New()
	consumer, snapshot := newRecordingConsumer()
	c := New(b, consumer).WithFlushInterval(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	require.Eventually(t, func() bool {
		return b.SubscriberCount(models.TopicStreamOutput) == 1
	}, time.Second, 10*time.Millisecond)

	msg := models.TypedMessage{
		Kind: models.KindStreamResponse,
		StreamResponse: &models.StreamResponse{
			Source:  models.AgentAnalyzer,
			Content: "done",
			IsFinal: true,
		},
	}
	require.NoError(t, b.Publish(context.Background(), models.TopicStreamOutput, msg))

	require.Eventually(t, func() bool {
		return len(snapshot()) == 1
	}, time.Second, 10*time.Millisecond)

	rec := snapshot()[0]
	assert.Equal(t, "done", rec.content)
	assert.True(t, rec.isFinal)
}

func TestCollectorNeverReordersASourcesChunks(t *testing.T) {
	b := bus.New()
	consumer, snapshot := newRecordingConsumer()
	c := New(b, consumer).WithFlushInterval(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	require.Eventually(t, func() bool {
		return b.SubscriberCount(models.TopicStreamOutput) == 1
	}, time.Second, 10*time.Millisecond)

	for _, part := range []string{"a", "b", "c"} {
		msg := models.TypedMessage{
			Kind: models.KindStreamResponse,
			StreamResponse: &models.StreamResponse{
				Source:  models.AgentDocParser,
				Content: part,
			},
		}
		require.NoError(t, b.Publish(context.Background(), models.TopicStreamOutput, msg))
	}

	require.Eventually(t, func() bool {
		return len(snapshot()) > 0
	}, time.Second, 10*time.Millisecond)

	var combined string
	for _, rec := range snapshot() {
		combined += rec.content
	}
	assert.Equal(t, "abc", combined)
}

func TestFlushAllIsIdempotent(t *testing.T) {
	b := bus.New()
	consumer, snapshot := newRecordingConsumer()
	c := New(b, consumer)

	c.FlushAll()
	c.FlushAll()
	assert.Empty(t, snapshot())
}

func TestFlushAllDeliversBufferedContentOnce(t *testing.T) {
	b := bus.New()
	consumer, snapshot := newRecordingConsumer()
	c := New(b, consumer).WithFlushInterval(time.Hour)

	c.ingest(&models.StreamResponse{Source: models.AgentScriptGenerator, Content: "partial"})
	c.FlushAll()
	c.FlushAll()

	require.Len(t, snapshot(), 1)
	assert.Equal(t, "partial", snapshot()[0].content)
}

// Package streamcollector implements the Stream Collector described in
// spec.md §4.5: an agent subscribed to the stream-output topic that buffers
// partial chunks per source and flushes them to an external consumer
// callback on a time-based cadence, never reordering a single source's
// chunks relative to each other.
//
// The buffered-map-plus-mutex shape mirrors tarsy's
// pkg/agent/orchestrator.SubAgentRunner's result bookkeeping (map guarded
// by a mutex, a dedicated background goroutine driving delivery instead of
// ad-hoc polling).
package streamcollector

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pipelinecore/orchestrator/pkg/bus"
	"github.com/pipelinecore/orchestrator/pkg/models"
)

// defaultFlushInterval matches spec.md §4.5's default flush cadence.
const defaultFlushInterval = 300 * time.Millisecond

// Consumer is called with a source's accumulated buffer content whenever it
// is flushed. Implementations must not block the collector for long —
// Consumer is invoked synchronously from the collector's single goroutine.
type Consumer func(source models.AgentType, content string, isFinal bool)

type sourceBuffer struct {
	content   string
	lastFlush time.Time
	final     bool
}

// Collector buffers per-source stream chunks and flushes them to a Consumer
// on a fixed interval (or immediately, for final chunks).
type Collector struct {
	mu            sync.Mutex
	buffers       map[models.AgentType]*sourceBuffer
	flushInterval time.Duration
	consumer      Consumer

	b *bus.Bus
}

// New creates a Collector with the default flush interval. Call Run to
// start consuming from b; Run blocks until ctx is cancelled, matching
// runtime.Agent's contract so a Collector can be registered directly with
// the Agent Runtime.
func New(b *bus.Bus, consumer Consumer) *Collector {
	return &Collector{
		buffers:       make(map[models.AgentType]*sourceBuffer),
		flushInterval: defaultFlushInterval,
		consumer:      consumer,
		b:             b,
	}
}

// WithFlushInterval overrides the default flush cadence; intended for tests
// that need deterministic, fast flushing.
func (c *Collector) WithFlushInterval(d time.Duration) *Collector {
	c.flushInterval = d
	return c
}

// Type implements runtime.Agent.
func (c *Collector) Type() models.AgentType { return models.AgentStreamCollector }

// Run subscribes to the stream-output topic and drives periodic flushing
// until ctx is cancelled.
func (c *Collector) Run(ctx context.Context) error {
	agentID := string(models.AgentStreamCollector)
	c.b.Subscribe(models.TopicStreamOutput, agentID, func(ctx context.Context, msg models.TypedMessage) {
		if msg.StreamResponse == nil {
			return
		}
		c.ingest(msg.StreamResponse)
	})

	ticker := time.NewTicker(c.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.b.Unsubscribe(models.TopicStreamOutput, agentID)
			c.FlushAll()
			return ctx.Err()
		case <-ticker.C:
			c.flushDue(time.Now())
		}
	}
}

// ingest appends a chunk to its source's buffer. A final chunk's content is
// appended, not substituted for what was buffered before (Open Question 2:
// trailing content on is_final=true is authoritative for closing the
// stream, never discarded), and triggers an immediate flush rather than
// waiting for the next tick.
func (c *Collector) ingest(resp *models.StreamResponse) {
	c.mu.Lock()
	buf, ok := c.buffers[resp.Source]
	if !ok {
		buf = &sourceBuffer{lastFlush: time.Now()}
		c.buffers[resp.Source] = buf
	}
	buf.content += resp.Content
	if resp.IsFinal {
		buf.final = true
	}
	flushNow := resp.IsFinal
	c.mu.Unlock()

	if flushNow {
		c.flushOne(resp.Source)
	}
}

// flushDue flushes every source whose buffer has content and whose last
// flush is at least flushInterval in the past.
func (c *Collector) flushDue(now time.Time) {
	c.mu.Lock()
	due := make([]models.AgentType, 0, len(c.buffers))
	for source, buf := range c.buffers {
		if buf.content != "" && now.Sub(buf.lastFlush) >= c.flushInterval {
			due = append(due, source)
		}
	}
	c.mu.Unlock()

	for _, source := range due {
		c.flushOne(source)
	}
}

// flushOne delivers and clears one source's buffer. A no-op when the buffer
// is already empty, which is what makes FlushAll idempotent (P3).
func (c *Collector) flushOne(source models.AgentType) {
	c.mu.Lock()
	buf, ok := c.buffers[source]
	if !ok || buf.content == "" {
		c.mu.Unlock()
		return
	}
	content := buf.content
	isFinal := buf.final
	buf.content = ""
	buf.lastFlush = time.Now()
	c.mu.Unlock()

	if c.consumer != nil {
		c.consumer(source, content, isFinal)
	} else {
		slog.Debug("streamcollector: no consumer configured, dropping flush", "source", source)
	}
}

// FlushAll flushes every source with pending buffered content. Calling it
// repeatedly with nothing new buffered is a no-op (P3, flush_all
// idempotence).
func (c *Collector) FlushAll() {
	c.mu.Lock()
	sources := make([]models.AgentType, 0, len(c.buffers))
	for source := range c.buffers {
		sources = append(sources, source)
	}
	c.mu.Unlock()

	for _, source := range sources {
		c.flushOne(source)
	}
}

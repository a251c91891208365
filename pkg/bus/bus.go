// Package bus implements the topic-typed publish/subscribe message bus
// described in spec.md §4.1. Delivery is at-most-once per subscriber,
// ordered per (publisher, subscriber) pair, and non-blocking for the
// publisher beyond enqueueing onto the subscriber's mailbox.
//
// The subscription bookkeeping mirrors tarsy's
// pkg/events.ConnectionManager: a map guarded by an RWMutex, subscriber
// pointers snapshotted under a read lock and released before the
// potentially slow per-subscriber delivery happens. Each subscriber is
// drained by exactly one goroutine (tarsy's pkg/queue.Worker loop shape),
// which guarantees handlers are never re-entered concurrently on the same
// agent instance.
package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pipelinecore/orchestrator/pkg/models"
)

// Handler processes one message delivered to a subscriber. Handlers must not
// hold a shared lock across a suspension point (spec.md §5).
type Handler func(ctx context.Context, msg models.TypedMessage)

// Sentinel errors for bus operations (spec.md §4.1 failure modes).
var (
	// ErrBusShuttingDown is returned by Publish after Shutdown has been
	// called; it is a terminal error for the publisher.
	ErrBusShuttingDown = errors.New("bus: shutting down")
)

// defaultMailboxCapacity bounds each subscriber's mailbox. The bus is a
// valid implementation choice either bounded or unbounded (spec.md §4.1);
// we choose bounded with blocking publish so the designed backpressure path
// (spec.md §5) is exercised rather than worked around with silent drops.
const defaultMailboxCapacity = 256

// subscription is one agent's mailbox on one topic.
type subscription struct {
	topic   models.TopicType
	agentID string
	handler Handler
	mailbox chan envelope
	stopCh  chan struct{}
	done    chan struct{}
}

type envelope struct {
	ctx context.Context
	msg models.TypedMessage
}

// Bus is the process-wide topic router. A Bus is safe for concurrent use.
type Bus struct {
	mu       sync.RWMutex
	subs     map[models.TopicType]map[string]*subscription
	mailboxCap int

	shutdownOnce sync.Once
	shuttingDown chan struct{}

	errMu  sync.Mutex
	errors map[string]int // agentID -> handler error/panic count
}

// New creates an empty Bus with the default per-subscriber mailbox
// capacity.
func New() *Bus {
	return NewWithCapacity(defaultMailboxCapacity)
}

// NewWithCapacity creates an empty Bus whose subscriber mailboxes are sized
// to capacity, letting an operator tune pkg/config's BusMailboxSize
// without a rebuild. capacity <= 0 falls back to the default.
func NewWithCapacity(capacity int) *Bus {
	if capacity <= 0 {
		capacity = defaultMailboxCapacity
	}
	return &Bus{
		subs:         make(map[models.TopicType]map[string]*subscription),
		mailboxCap:   capacity,
		shuttingDown: make(chan struct{}),
		errors:       make(map[string]int),
	}
}

// Subscribe attaches agentID's handler to topic. Idempotent: subscribing the
// same agentID to the same topic twice is a no-op (mirrors tarsy's
// ConnectionManager.subscribe channel-creation guard).
func (b *Bus) Subscribe(topic models.TopicType, agentID string, handler Handler) {
	b.mu.Lock()
	if _, ok := b.subs[topic]; !ok {
		b.subs[topic] = make(map[string]*subscription)
	}
	if _, exists := b.subs[topic][agentID]; exists {
		b.mu.Unlock()
		return
	}
	sub := &subscription{
		topic:   topic,
		agentID: agentID,
		handler: handler,
		mailbox: make(chan envelope, b.mailboxCap),
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
	b.subs[topic][agentID] = sub
	b.mu.Unlock()

	go b.drain(sub)
}

// Unsubscribe detaches agentID from topic and stops its drain goroutine
// once any in-flight handler call finishes.
func (b *Bus) Unsubscribe(topic models.TopicType, agentID string) {
	b.mu.Lock()
	subsForTopic, ok := b.subs[topic]
	if !ok {
		b.mu.Unlock()
		return
	}
	sub, ok := subsForTopic[agentID]
	if !ok {
		b.mu.Unlock()
		return
	}
	delete(subsForTopic, agentID)
	if len(subsForTopic) == 0 {
		delete(b.subs, topic)
	}
	b.mu.Unlock()

	close(sub.stopCh)
	<-sub.done
}

// Publish delivers msg to every agent currently subscribed to topic.
// TopicUnknown (no subscribers) is logged and silently dropped, never an
// error, per spec.md §4.1. Publish enqueues onto each subscriber's mailbox;
// if a mailbox is full, Publish blocks (the designed backpressure path)
// rather than dropping the message.
func (b *Bus) Publish(ctx context.Context, topic models.TopicType, msg models.TypedMessage) error {
	select {
	case <-b.shuttingDown:
		return ErrBusShuttingDown
	default:
	}

	b.mu.RLock()
	subsForTopic, ok := b.subs[topic]
	if !ok || len(subsForTopic) == 0 {
		b.mu.RUnlock()
		slog.Debug("bus: publish to topic with no subscribers", "topic", topic)
		return nil
	}
	targets := make([]*subscription, 0, len(subsForTopic))
	for _, sub := range subsForTopic {
		targets = append(targets, sub)
	}
	b.mu.RUnlock()

	for _, sub := range targets {
		select {
		case sub.mailbox <- envelope{ctx: ctx, msg: msg}:
		case <-b.shuttingDown:
			return ErrBusShuttingDown
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// drain is the single goroutine that serialises handler invocations for one
// subscription. A handler panic is isolated (SubscriberPanicked in spec.md
// §4.1): it is recovered, logged, and counted, and the loop continues
// serving the next message.
func (b *Bus) drain(sub *subscription) {
	defer close(sub.done)
	for {
		select {
		case <-sub.stopCh:
			return
		case env := <-sub.mailbox:
			b.invoke(sub, env)
		}
	}
}

func (b *Bus) invoke(sub *subscription, env envelope) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("bus: subscriber handler panicked",
				"agent_id", sub.agentID, "topic", sub.topic, "panic", fmt.Sprint(r))
			b.errMu.Lock()
			b.errors[sub.agentID]++
			b.errMu.Unlock()
		}
	}()
	sub.handler(env.ctx, env.msg)
}

// ErrorCount returns the number of handler panics recorded for agentID.
func (b *Bus) ErrorCount(agentID string) int {
	b.errMu.Lock()
	defer b.errMu.Unlock()
	return b.errors[agentID]
}

// Shutdown marks the bus as terminal: further Publish calls fail with
// ErrBusShuttingDown. It does not itself stop subscriber goroutines — the
// Agent Runtime is responsible for draining and stopping agents within its
// own graceful-shutdown timeout (spec.md §4.2).
func (b *Bus) Shutdown() {
	b.shutdownOnce.Do(func() { close(b.shuttingDown) })
}

// SubscriberCount returns the number of agents subscribed to topic.
// Exported for test assertions (e.g. verifying Subscribe/Unsubscribe).
func (b *Bus) SubscriberCount(topic models.TopicType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

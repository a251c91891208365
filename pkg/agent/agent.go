// Package agent provides the common agent framework: a strategy-pattern
// BaseAgent that subscribes to one bus topic, delegates per-message work to
// a Controller, and wraps every call with metrics and terminal error
// handling. Mirrors tarsy's pkg/agent: BaseAgent/Controller/AgentFactory,
// generalized from tarsy's one-shot-execution agents to long-lived,
// topic-bound agents per spec.md §2.
package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pipelinecore/orchestrator/pkg/bus"
	"github.com/pipelinecore/orchestrator/pkg/models"
	"github.com/pipelinecore/orchestrator/pkg/tracing"
)

// Controller implements one agent's domain logic (the strategy). Handle is
// invoked once per message delivered on the agent's subscribed topic and
// returns zero or more outbound messages to publish, keyed by the topic
// each should go out on.
type Controller interface {
	Handle(ctx context.Context, in models.TypedMessage) ([]Outbound, error)
}

// Outbound pairs a message with the topic it should be published on.
type Outbound struct {
	Topic   models.TopicType
	Message models.TypedMessage
}

// BaseAgent wires a Controller to the bus: it subscribes to InTopic, calls
// the controller for each inbound message, publishes every Outbound the
// controller returns, and converts controller errors into a terminal
// StreamResponse (handle_exception in spec.md §4.4) rather than crashing
// the subscriber goroutine.
type BaseAgent struct {
	agentType models.AgentType
	inTopic   models.TopicType
	bus       *bus.Bus
	ctrl      Controller
	metrics   *Metrics
}

// NewBaseAgent creates an agent of agentType that subscribes to inTopic and
// delegates handling to ctrl. Panics if ctrl is nil, matching tarsy's
// NewBaseAgent contract (a nil controller is a factory programming error,
// not a runtime condition to recover from).
func NewBaseAgent(agentType models.AgentType, inTopic models.TopicType, b *bus.Bus, ctrl Controller) *BaseAgent {
	if ctrl == nil {
		panic("agent: NewBaseAgent requires a non-nil controller")
	}
	return &BaseAgent{
		agentType: agentType,
		inTopic:   inTopic,
		bus:       b,
		ctrl:      ctrl,
		metrics:   NewMetrics(),
	}
}

// Type implements runtime.Agent.
func (a *BaseAgent) Type() models.AgentType { return a.agentType }

// Metrics returns the agent's handler call/duration/failure accounting.
func (a *BaseAgent) Metrics() *Metrics { return a.metrics }

// Run implements runtime.Agent: it subscribes to the agent's input topic
// and blocks until ctx is cancelled, at which point it unsubscribes and
// returns. Each delivered message is handled synchronously on the bus's
// per-subscriber goroutine (spec.md §5: one in-flight message per agent
// instance at a time).
func (a *BaseAgent) Run(ctx context.Context) error {
	agentID := string(a.agentType)
	a.bus.Subscribe(a.inTopic, agentID, func(ctx context.Context, msg models.TypedMessage) {
		a.dispatch(ctx, msg)
	})
	<-ctx.Done()
	a.bus.Unsubscribe(a.inTopic, agentID)
	return ctx.Err()
}

// dispatch wraps one controller invocation with monitoring and terminal
// error conversion (start_monitor/end_monitor + handle_exception, spec.md
// §4.4).
func (a *BaseAgent) dispatch(ctx context.Context, msg models.TypedMessage) {
	ctx, span := tracing.StartAgentSpan(ctx, string(a.agentType), msg.Context.SessionID)
	stop := a.metrics.StartMonitor()
	outbound, err := a.ctrl.Handle(ctx, msg)
	stop(err == nil)
	tracing.EndSpan(span, err)

	if err != nil {
		a.handleException(ctx, msg.Context, "handle", err)
		return
	}
	for _, ob := range outbound {
		if pubErr := a.bus.Publish(ctx, ob.Topic, ob.Message); pubErr != nil {
			slog.Error("agent: failed to publish outbound message",
				"agent_type", a.agentType, "topic", ob.Topic, "error", pubErr)
		}
	}
}

// handleException converts a handler error into a terminal StreamResponse
// published on the stream-output topic, per spec.md §4.4.
func (a *BaseAgent) handleException(ctx context.Context, mctx models.MessageContext, operation string, err error) {
	slog.Error("agent: handler failed", "agent_type", a.agentType, "operation", operation, "error", err)

	resp := models.TypedMessage{
		Kind:    models.KindStreamResponse,
		Context: mctx,
		StreamResponse: &models.StreamResponse{
			Source:  a.agentType,
			Content: fmt.Sprintf("%s failed: %s", operation, err.Error()),
			IsFinal: true,
		},
	}
	if pubErr := a.bus.Publish(ctx, models.TopicStreamOutput, resp); pubErr != nil {
		slog.Error("agent: failed to publish error response", "agent_type", a.agentType, "error", pubErr)
	}
}

// SendResponse publishes a StreamResponse on the stream-output topic with
// this agent as source (send_response in spec.md §4.4).
func (a *BaseAgent) SendResponse(ctx context.Context, mctx models.MessageContext, content string, isFinal bool, result map[string]any) error {
	return a.bus.Publish(ctx, models.TopicStreamOutput, models.TypedMessage{
		Kind:    models.KindStreamResponse,
		Context: mctx,
		StreamResponse: &models.StreamResponse{
			Source:  a.agentType,
			Content: content,
			IsFinal: isFinal,
			Result:  result,
		},
	})
}

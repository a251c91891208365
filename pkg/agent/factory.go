package agent

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/pipelinecore/orchestrator/pkg/bus"
	"github.com/pipelinecore/orchestrator/pkg/models"
)

// Constructor builds the BaseAgent for one AgentType, wiring its
// Controller to the shared bus.
type Constructor func(b *bus.Bus) *BaseAgent

// Factory is a static, process-wide registry of agent constructors,
// mirroring original_source's AgentFactory singleton (one instance,
// lazily-registered agent classes) reimplemented without the Python
// new()-based singleton trick: callers construct one Factory explicitly
// and share it, rather than relying on hidden global state.
type Factory struct {
	mu           sync.Mutex
	constructors map[models.AgentType]Constructor
}

// NewFactory creates an empty Factory.
func NewFactory() *Factory {
	return &Factory{constructors: make(map[models.AgentType]Constructor)}
}

// Register installs a constructor for agentType. Registering the same
// AgentType twice is a no-op: the second registration is ignored and the
// first constructor remains in effect (invariant P2, idempotent
// registration). Returns false when it was a no-op.
func (f *Factory) Register(agentType models.AgentType, ctor Constructor) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.constructors[agentType]; exists {
		slog.Debug("agent factory: constructor already registered, ignoring duplicate", "agent_type", agentType)
		return false
	}
	f.constructors[agentType] = ctor
	return true
}

// Build constructs the agent for agentType using the registered
// constructor, wired to b. Returns an error if no constructor was
// registered for agentType.
func (f *Factory) Build(agentType models.AgentType, b *bus.Bus) (*BaseAgent, error) {
	f.mu.Lock()
	ctor, ok := f.constructors[agentType]
	f.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("agent factory: no constructor registered for agent type %q", agentType)
	}
	return ctor(b), nil
}

// Registered reports whether a constructor exists for agentType.
func (f *Factory) Registered(agentType models.AgentType) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.constructors[agentType]
	return ok
}

// Package runtime implements the Agent Runtime described in spec.md §4.2:
// the supervisor that registers agent instances, starts/stops them, and
// reports per-agent health. Its lifecycle management mirrors tarsy's
// pkg/queue.WorkerPool: a registry guarded by a mutex, one goroutine per
// managed unit, and a graceful Stop that signals first and waits second.
package runtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pipelinecore/orchestrator/pkg/models"
)

// HealthStatus is the reported liveness of one registered agent.
type HealthStatus string

const (
	HealthStarting HealthStatus = "starting"
	HealthRunning  HealthStatus = "running"
	HealthStopped  HealthStatus = "stopped"
)

// Agent is anything the runtime can supervise. Run blocks until ctx is
// cancelled or the agent decides to exit on its own; it must return
// promptly after ctx is done (spec.md §4.2 graceful-shutdown contract).
type Agent interface {
	Type() models.AgentType
	Run(ctx context.Context) error
}

// handle is the runtime's bookkeeping for one registered agent.
type handle struct {
	agent     Agent
	cancel    context.CancelFunc
	done      chan struct{}
	mu        sync.Mutex
	status    HealthStatus
	lastErr   error
	startedAt time.Time
}

func (h *handle) setStatus(s HealthStatus) {
	h.mu.Lock()
	h.status = s
	h.mu.Unlock()
}

func (h *handle) setErr(err error) {
	h.mu.Lock()
	h.lastErr = err
	h.mu.Unlock()
}

func (h *handle) snapshot() (HealthStatus, error, time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status, h.lastErr, h.startedAt
}

// HealthReport is one agent's point-in-time health snapshot.
type HealthReport struct {
	Type      models.AgentType
	Status    HealthStatus
	LastError error
	StartedAt time.Time
}

// Runtime supervises a set of agents, at most one per AgentType.
type Runtime struct {
	mu      sync.RWMutex
	agents  map[models.AgentType]*handle
	wg      sync.WaitGroup
	stopped bool
}

// New creates an empty Runtime.
func New() *Runtime {
	return &Runtime{agents: make(map[models.AgentType]*handle)}
}

// Register installs agent and immediately starts it under a context derived
// from ctx. Calling Register twice for the same AgentType is a no-op: the
// existing handle's agent keeps running, and the second call's agent is
// never started (invariant P2, idempotent registration). Register returns
// false when it was a no-op (agent already registered).
func (r *Runtime) Register(ctx context.Context, agent Agent) bool {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		slog.Warn("runtime: register called after Stop, ignoring", "agent_type", agent.Type())
		return false
	}
	if _, exists := r.agents[agent.Type()]; exists {
		r.mu.Unlock()
		slog.Debug("runtime: agent already registered, ignoring duplicate", "agent_type", agent.Type())
		return false
	}

	agentCtx, cancel := context.WithCancel(ctx)
	h := &handle{
		agent:     agent,
		cancel:    cancel,
		done:      make(chan struct{}),
		status:    HealthStarting,
		startedAt: time.Now(),
	}
	r.agents[agent.Type()] = h
	r.mu.Unlock()

	r.wg.Add(1)
	go r.run(agentCtx, h)
	return true
}

func (r *Runtime) run(ctx context.Context, h *handle) {
	defer r.wg.Done()
	defer close(h.done)

	h.setStatus(HealthRunning)
	err := h.agent.Run(ctx)
	if err != nil && ctx.Err() == nil {
		slog.Error("runtime: agent exited with error", "agent_type", h.agent.Type(), "error", err)
	}
	h.setErr(err)
	h.setStatus(HealthStopped)
}

// Stop signals every registered agent to shut down (via context
// cancellation) and waits up to timeout for all of them to exit. It returns
// the set of agent types that had not exited by the deadline.
func (r *Runtime) Stop(timeout time.Duration) []models.AgentType {
	r.mu.Lock()
	r.stopped = true
	handles := make([]*handle, 0, len(r.agents))
	for _, h := range r.agents {
		handles = append(handles, h)
	}
	r.mu.Unlock()

	for _, h := range handles {
		h.cancel()
	}

	allDone := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(allDone)
	}()

	select {
	case <-allDone:
		return nil
	case <-time.After(timeout):
	}

	var lingering []models.AgentType
	for _, h := range handles {
		select {
		case <-h.done:
		default:
			lingering = append(lingering, h.agent.Type())
		}
	}
	return lingering
}

// Health returns a point-in-time snapshot for every registered agent.
func (r *Runtime) Health() []HealthReport {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reports := make([]HealthReport, 0, len(r.agents))
	for t, h := range r.agents {
		status, lastErr, startedAt := h.snapshot()
		reports = append(reports, HealthReport{
			Type:      t,
			Status:    status,
			LastError: lastErr,
			StartedAt: startedAt,
		})
	}
	return reports
}

// HealthFor returns the health snapshot for a single agent type, or false if
// it was never registered.
func (r *Runtime) HealthFor(t models.AgentType) (HealthReport, bool) {
	r.mu.RLock()
	h, ok := r.agents[t]
	r.mu.RUnlock()
	if !ok {
		return HealthReport{}, false
	}
	status, lastErr, startedAt := h.snapshot()
	return HealthReport{Type: t, Status: status, LastError: lastErr, StartedAt: startedAt}, true
}

package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipelinecore/orchestrator/pkg/bus"
	"github.com/pipelinecore/orchestrator/pkg/models"
)

type noopController struct{ calls int }

func (c *noopController) Handle(ctx context.Context, in models.TypedMessage) ([]Outbound, error) {
	c.calls++
	return nil, nil
}

func TestFactoryRegisterIsIdempotent(t *testing.T) {
	f := NewFactory()
	calls := 0
	ctor := func(b *bus.Bus) *BaseAgent {
		calls++
		return NewBaseAgent(models.AgentAnalyzer, models.TopicAnalysisRequest, b, &noopController{})
	}

	first := f.Register(models.AgentAnalyzer, ctor)
	second := f.Register(models.AgentAnalyzer, ctor)
	assert.True(t, first)
	assert.False(t, second)

	_, err := f.Build(models.AgentAnalyzer, bus.New())
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestFactoryBuildUnregisteredFails(t *testing.T) {
	f := NewFactory()
	_, err := f.Build(models.AgentExecutor, bus.New())
	assert.Error(t, err)
}

func TestFactoryRegisteredReportsPresence(t *testing.T) {
	f := NewFactory()
	assert.False(t, f.Registered(models.AgentLogRecorder))
	f.Register(models.AgentLogRecorder, func(b *bus.Bus) *BaseAgent {
		return NewBaseAgent(models.AgentLogRecorder, models.TopicLogRecord, b, &noopController{})
	})
	assert.True(t, f.Registered(models.AgentLogRecorder))
}

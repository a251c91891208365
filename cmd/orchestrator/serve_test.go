package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipelinecore/orchestrator/pkg/bus"
	"github.com/pipelinecore/orchestrator/pkg/config"
	"github.com/pipelinecore/orchestrator/pkg/models"
	"github.com/pipelinecore/orchestrator/pkg/runtime"
)

func TestRegisterDomainAgentsBuildsEveryNonPersistenceAgentWithoutAStore(t *testing.T) {
	cfg := config.Defaults()
	cfg.WorkspaceRoot = t.TempDir()
	b := bus.New()
	rt := runtime.New()

	built := registerDomainAgents(context.Background(), rt, b, &cfg, nil)
	defer rt.Stop(time.Second)

	want := []models.AgentType{
		models.AgentDocParser, models.AgentAnalyzer, models.AgentTestCaseGenerator,
		models.AgentScriptGenerator, models.AgentYamlGenerator, models.AgentExecutor,
		models.AgentPlaywrightExecutor, models.AgentLogRecorder,
	}
	require.Len(t, built, len(want))
	for _, typ := range want {
		agent, ok := built[typ]
		assert.True(t, ok, "expected agent type %s to be built", typ)
		assert.Equal(t, typ, agent.Type())
	}
	_, hasPersistence := built[models.AgentPersistence]
	assert.False(t, hasPersistence, "persistence agent should not be built without a store")
}

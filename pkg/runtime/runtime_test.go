package runtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipelinecore/orchestrator/pkg/models"
)

type fakeAgent struct {
	kind       models.AgentType
	runErr     error
	started    chan struct{}
	blockFor   time.Duration
	ignoreStop bool
}

func (f *fakeAgent) Type() models.AgentType { return f.kind }

func (f *fakeAgent) Run(ctx context.Context) error {
	if f.started != nil {
		close(f.started)
	}
	if f.ignoreStop {
		<-time.After(f.blockFor)
		return f.runErr
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(f.blockFor):
		return f.runErr
	}
}

func TestRegisterStartsAgentAndReportsHealth(t *testing.T) {
	r := New()
	started := make(chan struct{})
	ok := r.Register(context.Background(), &fakeAgent{kind: models.AgentDocParser, started: started, blockFor: time.Hour})
	require.True(t, ok)

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("agent never started")
	}

	require.Eventually(t, func() bool {
		report, found := r.HealthFor(models.AgentDocParser)
		return found && report.Status == HealthRunning
	}, time.Second, 10*time.Millisecond)

	lingering := r.Stop(time.Second)
	assert.Empty(t, lingering)
}

func TestRegisterIsIdempotent(t *testing.T) {
	r := New()
	ok1 := r.Register(context.Background(), &fakeAgent{kind: models.AgentAnalyzer, blockFor: time.Hour})
	ok2 := r.Register(context.Background(), &fakeAgent{kind: models.AgentAnalyzer, blockFor: time.Hour})
	assert.True(t, ok1)
	assert.False(t, ok2)
	assert.Len(t, r.Health(), 1)
	r.Stop(time.Second)
}

func TestAgentExitRecordsLastError(t *testing.T) {
	r := New()
	wantErr := errors.New("boom")
	r.Register(context.Background(), &fakeAgent{kind: models.AgentExecutor, runErr: wantErr})

	require.Eventually(t, func() bool {
		report, found := r.HealthFor(models.AgentExecutor)
		return found && report.Status == HealthStopped
	}, time.Second, 10*time.Millisecond)

	report, _ := r.HealthFor(models.AgentExecutor)
	assert.ErrorIs(t, report.LastError, wantErr)
}

func TestStopReturnsLingeringAgentsPastDeadline(t *testing.T) {
	r := New()
	r.Register(context.Background(), &fakeAgent{kind: models.AgentLogRecorder, blockFor: time.Hour, ignoreStop: true})

	lingering := r.Stop(50 * time.Millisecond)
	assert.Equal(t, []models.AgentType{models.AgentLogRecorder}, lingering)
}

func TestHealthForUnknownAgent(t *testing.T) {
	r := New()
	_, found := r.HealthFor(models.AgentScriptGenerator)
	assert.False(t, found)
}

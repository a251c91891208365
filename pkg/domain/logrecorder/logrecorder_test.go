package logrecorder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipelinecore/orchestrator/pkg/models"
)

func newController() *Controller {
	return &Controller{sessions: make(map[string][]models.LogRecord)}
}

func TestHandleMissingPayloadErrors(t *testing.T) {
	c := newController()
	_, err := c.Handle(context.Background(), models.TypedMessage{})
	assert.Error(t, err)
}

func TestHandleInfoLogBelowThresholdProducesNoOutput(t *testing.T) {
	c := newController()
	outbound, err := c.Handle(context.Background(), models.TypedMessage{
		LogRecord: &models.LogRecord{SessionID: "s1", Level: models.LogInfo, Message: "ok"},
	})
	require.NoError(t, err)
	assert.Empty(t, outbound)
}

func TestHandleErrorLogTriggersImmediateAnalysis(t *testing.T) {
	c := newController()
	outbound, err := c.Handle(context.Background(), models.TypedMessage{
		Context:   models.MessageContext{SessionID: "s1"},
		LogRecord: &models.LogRecord{SessionID: "s1", Level: models.LogError, Message: "boom"},
	})
	require.NoError(t, err)
	require.Len(t, outbound, 1)
	resp := outbound[0].Message.StreamResponse
	require.NotNil(t, resp)
	assert.False(t, resp.IsFinal)
	summary := resp.Result["log_summary"].(LogSummary)
	assert.Equal(t, 1, summary.TotalLogs)
	assert.Equal(t, 1, summary.ErrorCount)
	assert.Equal(t, float64(100), summary.ErrorRate)
}

func TestHandlePeriodicTriggerEveryNthLog(t *testing.T) {
	c := newController()
	for i := 0; i < analyzeEveryN-1; i++ {
		outbound, err := c.Handle(context.Background(), models.TypedMessage{
			LogRecord: &models.LogRecord{SessionID: "s2", Level: models.LogInfo, Message: "tick"},
		})
		require.NoError(t, err)
		assert.Empty(t, outbound)
	}

	outbound, err := c.Handle(context.Background(), models.TypedMessage{
		LogRecord: &models.LogRecord{SessionID: "s2", Level: models.LogInfo, Message: "tick"},
	})
	require.NoError(t, err)
	require.Len(t, outbound, 1)
	summary := outbound[0].Message.StreamResponse.Result["log_summary"].(LogSummary)
	assert.Equal(t, analyzeEveryN, summary.TotalLogs)
}

func TestGenerateAlertsOnlyAboveThreshold(t *testing.T) {
	assert.Empty(t, generateAlerts(LogSummary{ErrorRate: 10}))
	alerts := generateAlerts(LogSummary{ErrorRate: 50})
	require.Len(t, alerts, 1)
	assert.Equal(t, "critical", alerts[0].Level)
}

func TestPercentileEmptyReturnsZero(t *testing.T) {
	assert.Equal(t, int64(0), percentile(nil, 95))
}

func TestPercentileNearestRank(t *testing.T) {
	values := []int64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}
	assert.Equal(t, int64(50), percentile(values, 50))
	assert.Equal(t, int64(100), percentile(values, 95))
}

func TestHandleExecutionOutputConvertedToLogRecord(t *testing.T) {
	c := newController()
	outbound, err := c.Handle(context.Background(), models.TypedMessage{
		Context: models.MessageContext{SessionID: "s3"},
		ExecutionOutput: &models.ExecutionOutput{
			Record: models.ExecutionRecord{ExecutionID: "e1", Status: models.ExecutionFailed},
		},
	})
	require.NoError(t, err)
	require.Len(t, outbound, 1)
}

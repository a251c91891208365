// Package logrecorder implements the log recorder agent: it accumulates
// structured log events per session, periodically derives a summary, and
// raises alerts when error-level activity crosses a threshold.
//
// Grounded on original_source's LogRecorderAgent, specifically
// _record_log (session log accumulation), _should_analyze_logs (trigger
// rule: any ERROR/CRITICAL log, or every 50th log in a session),
// _fallback_log_analysis (summary shape), and _generate_alerts (alert
// level gating).
package logrecorder

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/pipelinecore/orchestrator/pkg/agent"
	"github.com/pipelinecore/orchestrator/pkg/bus"
	"github.com/pipelinecore/orchestrator/pkg/models"
)

// analyzeEveryN mirrors _should_analyze_logs' "session_log_count % 50 == 0"
// periodic trigger.
const analyzeEveryN = 50

// alertErrorRateThreshold is the error-rate percentage at or above which a
// session-level alert is raised.
const alertErrorRateThreshold = 25.0

// New constructs the log recorder's BaseAgent.
func New(b *bus.Bus) *agent.BaseAgent {
	return agent.NewBaseAgent(models.AgentLogRecorder, models.TopicLogRecord, b, &Controller{
		sessions: make(map[string][]models.LogRecord),
	})
}

// Controller implements agent.Controller for the log recorder.
type Controller struct {
	mu       sync.Mutex
	sessions map[string][]models.LogRecord
}

// Handle appends the incoming log record to its session buffer, and when
// the trigger rule fires, publishes a summary (and any resulting alerts) as
// an intermediate stream chunk. A log that isn't recordable yet (no
// session, e.g. an ExecutionOutput arriving on the same topic from the
// executor) is converted into a LogRecord first.
func (c *Controller) Handle(ctx context.Context, in models.TypedMessage) ([]agent.Outbound, error) {
	record := in.LogRecord
	if record == nil {
		if in.ExecutionOutput == nil {
			return nil, fmt.Errorf("logrecorder: message missing LogRecord payload")
		}
		record = logRecordFromExecution(in.Context, *in.ExecutionOutput)
	}

	c.mu.Lock()
	c.sessions[record.SessionID] = append(c.sessions[record.SessionID], *record)
	count := len(c.sessions[record.SessionID])
	logs := append([]models.LogRecord(nil), c.sessions[record.SessionID]...)
	c.mu.Unlock()

	if !shouldAnalyze(*record, count) {
		return nil, nil
	}

	summary := summarize(logs)
	alerts := generateAlerts(summary)

	result := map[string]any{
		"log_summary": summary,
		"alerts":      alerts,
	}

	return []agent.Outbound{{
		Topic: models.TopicStreamOutput,
		Message: models.TypedMessage{
			Kind:    models.KindStreamResponse,
			Context: in.Context,
			StreamResponse: &models.StreamResponse{
				Source:  models.AgentLogRecorder,
				Content: fmt.Sprintf("log analysis for session %s: %d logs, %.2f%% error rate", record.SessionID, summary.TotalLogs, summary.ErrorRate),
				IsFinal: false,
				Result:  result,
			},
		},
	}}, nil
}

func logRecordFromExecution(mctx models.MessageContext, out models.ExecutionOutput) *models.LogRecord {
	level := models.LogInfo
	if out.Record.Status == models.ExecutionFailed {
		level = models.LogError
	}
	return &models.LogRecord{
		SessionID: mctx.SessionID,
		Source:    models.AgentExecutor,
		Level:     level,
		Message:   fmt.Sprintf("execution %s finished with status %s", out.Record.ExecutionID, out.Record.Status),
		Metadata:  map[string]string{"duration_ms": strconv.FormatInt(out.Record.Duration.Milliseconds(), 10)},
		Operation: "execute",
	}
}

// shouldAnalyze mirrors _should_analyze_logs: any error-or-above log
// triggers immediate analysis, otherwise analysis fires every Nth log in
// the session.
func shouldAnalyze(record models.LogRecord, sessionLogCount int) bool {
	if record.Level == models.LogError {
		return true
	}
	return sessionLogCount > 0 && sessionLogCount%analyzeEveryN == 0
}

// LogSummary is the per-session analysis result, mirroring
// _fallback_log_analysis's "log_summary" dict.
type LogSummary struct {
	TotalLogs     int
	ErrorCount    int
	WarningCount  int
	InfoCount     int
	ErrorRate     float64
	P50DurationMs int64
	P95DurationMs int64
}

func summarize(logs []models.LogRecord) LogSummary {
	var s LogSummary
	var durations []int64

	for _, l := range logs {
		s.TotalLogs++
		switch l.Level {
		case models.LogError:
			s.ErrorCount++
		case models.LogWarn:
			s.WarningCount++
		case models.LogInfo:
			s.InfoCount++
		}
		if raw, ok := l.Metadata["duration_ms"]; ok {
			if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
				durations = append(durations, ms)
			}
		}
	}

	if s.TotalLogs > 0 {
		s.ErrorRate = float64(s.ErrorCount) / float64(s.TotalLogs) * 100
	}

	s.P50DurationMs = percentile(durations, 50)
	s.P95DurationMs = percentile(durations, 95)

	return s
}

// percentile returns the nearest-rank percentile of a set of millisecond
// durations, 0 for an empty set.
func percentile(values []int64, p int) int64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]int64(nil), values...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	// Nearest rank: the 1-based rank ceil(p*n/100).
	rank := (p*len(sorted) + 99) / 100
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	return sorted[rank-1]
}

// Alert is one raised threshold breach.
type Alert struct {
	Level   string
	Message string
}

// generateAlerts mirrors _generate_alerts' level gating: only
// critical/high severity alerts are actually emitted.
func generateAlerts(summary LogSummary) []Alert {
	var alerts []Alert
	if summary.ErrorRate >= alertErrorRateThreshold {
		alerts = append(alerts, Alert{
			Level:   "critical",
			Message: fmt.Sprintf("error rate %.2f%% exceeds threshold %.2f%%", summary.ErrorRate, alertErrorRateThreshold),
		})
	}
	if summary.P95DurationMs > 0 && summary.P95DurationMs > 30000 {
		alerts = append(alerts, Alert{
			Level:   "high",
			Message: fmt.Sprintf("p95 duration %dms exceeds 30s", summary.P95DurationMs),
		})
	}
	return alerts
}

// Package executor implements the Script Executor described in spec.md
// §4.7: it prepares a workspace, launches a generated script as a
// subprocess, streams its output, parses the result, and produces an
// ExecutionRecord/TestReport pair.
//
// Subprocess construction (merged environment, command/args split) is
// grounded on tarsy's pkg/mcp/transport.go createStdioTransport. The
// claim/process/cleanup lifecycle and state machine are grounded on
// pkg/queue/worker.go's per-worker processing loop.
package executor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pipelinecore/orchestrator/pkg/agent"
	"github.com/pipelinecore/orchestrator/pkg/bus"
	"github.com/pipelinecore/orchestrator/pkg/models"
	"github.com/pipelinecore/orchestrator/pkg/tracing"
)

// New constructs the executor's BaseAgent.
func New(b *bus.Bus, workDir string) *agent.BaseAgent {
	return agent.NewBaseAgent(models.AgentExecutor, models.TopicExecutionRequest, b, &Controller{workDir: workDir})
}

// Controller implements agent.Controller for the script executor.
type Controller struct {
	workDir string

	mu      sync.Mutex
	records map[string]*models.ExecutionRecord
}

func (c *Controller) ensureRecords() map[string]*models.ExecutionRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.records == nil {
		c.records = make(map[string]*models.ExecutionRecord)
	}
	return c.records
}

// Handle writes the requested scripts to a per-execution workspace,
// launches the configured runner against them, and publishes the
// resulting ExecutionOutput. A subprocess failure is reported in the
// ExecutionOutput, not returned as a handler error — a non-zero exit code
// is an expected outcome, not an infrastructure fault.
func (c *Controller) Handle(ctx context.Context, in models.TypedMessage) ([]agent.Outbound, error) {
	if in.ExecutionInput == nil {
		return nil, fmt.Errorf("executor: message missing ExecutionInput payload")
	}
	if in.ExecutionInput.Config.UIMode {
		// UI-flagged executions belong to the playwright executor, which
		// shares this topic; nothing to do here.
		return nil, nil
	}

	executionID := in.Context.ExecutionID
	if executionID == "" {
		executionID = fmt.Sprintf("exec-%d", len(c.ensureRecords())+1)
	}

	record := &models.ExecutionRecord{
		ExecutionID: executionID,
		Status:      models.ExecutionRunning,
		StartTime:   time.Now(),
		Config:      map[string]string{"runner": "pytest"},
		Environment: map[string]string{},
	}
	c.mu.Lock()
	c.ensureRecords()[executionID] = record
	c.mu.Unlock()

	workspace, err := c.prepareWorkspace(executionID, in.ExecutionInput.Scripts)
	if err != nil {
		record.MarkTerminal(models.ExecutionFailed, time.Now())
		record.Error = err.Error()
		return c.outbound(in.Context, record), nil
	}
	defer os.RemoveAll(workspace)

	scriptID := ""
	if len(in.ExecutionInput.Scripts) > 0 {
		scriptID = in.ExecutionInput.Scripts[0].Name
	}
	spanCtx, span := tracing.StartExecutionSpan(ctx, executionID, scriptID)
	logs, exitCode, runErr := runScript(spanCtx, workspace, in.ExecutionInput.Config)
	tracing.EndSpan(span, runErr)
	record.Logs = logs
	record.ReturnCode = exitCode

	if errors.Is(runErr, context.DeadlineExceeded) {
		record.MarkTerminal(models.ExecutionFailed, time.Now())
		record.Error = "execution timeout"
	} else if ctx.Err() != nil {
		record.MarkTerminal(models.ExecutionCancelled, time.Now())
	} else if runErr != nil && exitCode == 0 {
		record.MarkTerminal(models.ExecutionFailed, time.Now())
		record.Error = runErr.Error()
	} else if exitCode == 0 {
		record.MarkTerminal(models.ExecutionCompleted, time.Now())
	} else {
		record.MarkTerminal(models.ExecutionFailed, time.Now())
		record.Error = fmt.Sprintf("runner exited with code %d", exitCode)
	}

	return c.outbound(in.Context, record), nil
}

func (c *Controller) outbound(mctx models.MessageContext, record *models.ExecutionRecord) []agent.Outbound {
	report := buildReport(record, logOutputText(record.Logs))
	return []agent.Outbound{
		{Topic: models.TopicLogRecord, Message: models.TypedMessage{
			Kind:    models.KindExecutionOutput,
			Context: mctx,
			ExecutionOutput: &models.ExecutionOutput{
				Record: *record,
				Report: report,
			},
		}},
		{Topic: models.TopicStreamOutput, Message: models.TypedMessage{
			Kind:    models.KindStreamResponse,
			Context: mctx,
			StreamResponse: &models.StreamResponse{
				Source:  models.AgentExecutor,
				Content: terminalContent(record),
				IsFinal: true,
				Result: map[string]any{
					"status":       string(record.Status),
					"total_tests":  report.Totals.Total,
					"passed_tests": report.Totals.Passed,
					"success_rate": report.SuccessRate,
				},
			},
		}},
	}
}

// terminalContent renders the human-readable summary that closes out an
// execution's stream (spec.md §7: every pipeline ends with exactly one
// is_final=true StreamResponse whose content is human-readable).
func terminalContent(record *models.ExecutionRecord) string {
	if record.Error != "" {
		return fmt.Sprintf("execution %s: %s", record.Status, record.Error)
	}
	return fmt.Sprintf("execution %s (return code %d)", record.Status, record.ReturnCode)
}

// prepareWorkspace writes every script artifact to its own file under a
// fresh temp directory and returns that directory.
func (c *Controller) prepareWorkspace(executionID string, scripts []models.ScriptArtifact) (string, error) {
	base := c.workDir
	if base == "" {
		base = os.TempDir()
	}
	dir := filepath.Join(base, "orchestrator-exec-"+executionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("executor: create workspace: %w", err)
	}
	for _, s := range scripts {
		target := filepath.Join(dir, filepath.Base(s.RelativePath))
		if err := os.WriteFile(target, s.Content, 0o644); err != nil {
			return "", fmt.Errorf("executor: write script %s: %w", s.RelativePath, err)
		}
	}
	return dir, nil
}

// runScript launches the pytest runner in workspace, streaming combined
// stdout/stderr into the returned log lines. A non-zero exit is reported
// via exitCode, not err; err is reserved for failures to even start the
// process.
func runScript(ctx context.Context, workspace string, cfg models.ExecutionConfig) (logs []string, exitCode int, err error) {
	timeout := 300 * time.Second
	if cfg.Timeout > 0 {
		timeout = time.Duration(cfg.Timeout) * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append([]string{"-m", "pytest", "-v"}, cfg.RunnerArgs...)
	cmd := exec.CommandContext(runCtx, "python3", args...)
	cmd.Dir = workspace

	env := os.Environ()
	for k, v := range cfg.Env {
		env = append(env, k+"="+v)
	}
	cmd.Env = env

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, 0, fmt.Errorf("executor: stdout pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return nil, 0, fmt.Errorf("executor: start runner: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := scanner.Text()
		logs = append(logs, line)
	}

	waitErr := cmd.Wait()
	if runCtx.Err() != nil {
		return logs, -1, runCtx.Err()
	}
	if waitErr != nil {
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			return logs, exitErr.ExitCode(), nil
		}
		return logs, -1, waitErr
	}
	return logs, 0, nil
}

func logOutputText(logs []string) string {
	return strings.Join(logs, "\n")
}

// buildReport parses the runner's output into pass/fail totals by counting
// the "PASSED"/"FAILED"/"SKIPPED" markers pytest's -v output emits per
// test; JSON summary output is not parsed. A report is always produced, even for a run that produced no
// recognizable output (boundary behaviour B2: SuccessRate stays 0, not
// NaN).
func buildReport(record *models.ExecutionRecord, output string) models.TestReport {
	totals := parsePytestVerboseOutput(output)

	report := models.TestReport{
		ReportID:    record.ExecutionID + "-report",
		ExecutionID: record.ExecutionID,
		Status:      record.Status,
		Totals:      totals,
		SuccessRate: totals.SuccessRate(),
		StartTime:   record.StartTime,
		EndTime:     record.EndTime,
		Duration:    record.Duration,
		Logs:        record.Logs,
	}
	return report
}

func parsePytestVerboseOutput(output string) models.TestTotals {
	var totals models.TestTotals
	for _, line := range strings.Split(output, "\n") {
		switch {
		case strings.Contains(line, " PASSED"):
			totals.Passed++
			totals.Total++
		case strings.Contains(line, " FAILED"):
			totals.Failed++
			totals.Total++
		case strings.Contains(line, " SKIPPED"):
			totals.Skipped++
			totals.Total++
		}
	}
	return totals
}

// Package playwrightexec implements the UI test runner: it renders a
// generated YAML automation document into a Playwright/midscene spec
// file, runs it under a concurrency-gated, grid-placed browser sandbox,
// and parses the result into an ExecutionRecord/TestReport pair.
//
// Grounded on original_source's PlaywrightExecutorAgent
// (ui-automation/.../playwright_script_executor_agent.py): _create_test_file
// and _generate_test_file/_generate_fixture_content for the spec-file
// rendering, _run_playwright_test for the subprocess shape,
// _parse_playwright_result/_extract_test_statistics/_extract_report_path
// for result parsing, and _collect_test_artifacts for artifact collection.
// Window placement and concurrency gating are delegated to pkg/sandbox.
package playwrightexec

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pipelinecore/orchestrator/pkg/agent"
	"github.com/pipelinecore/orchestrator/pkg/bus"
	"github.com/pipelinecore/orchestrator/pkg/models"
	"github.com/pipelinecore/orchestrator/pkg/sandbox"
	"github.com/pipelinecore/orchestrator/pkg/tracing"
)

// New constructs the playwright executor's BaseAgent. ctrl may be nil,
// meaning no AdsPower controller was configured; forceAdsPowerOnly mirrors
// FORCE_ADSPOWER_ONLY (spec.md §6) — when true, Handle refuses to run a
// UI execution it cannot sandbox rather than launching an unsandboxed
// browser.
func New(b *bus.Bus, workDir string, sem *sandbox.Semaphore, grid sandbox.GridConfig, ctrl *sandbox.Controller, forceAdsPowerOnly bool) *agent.BaseAgent {
	if sem == nil {
		sem = sandbox.NewSemaphore(0)
	}
	return agent.NewBaseAgent(models.AgentPlaywrightExecutor, models.TopicExecutionRequest, b, &Controller{
		workDir:           workDir,
		sem:               sem,
		grid:              grid,
		adsp:              ctrl,
		forceAdsPowerOnly: forceAdsPowerOnly,
	})
}

// Controller implements agent.Controller for UI-flagged executions. It
// shares models.TopicExecutionRequest with pkg/executor, which skips
// UIMode messages so the two never race on the same request.
type Controller struct {
	workDir           string
	sem               *sandbox.Semaphore
	grid              sandbox.GridConfig
	adsp              *sandbox.Controller
	forceAdsPowerOnly bool

	mu       sync.Mutex
	nextTile int
}

// document is the subset of yamlgen's rendered structure this package
// needs to decode. It is redeclared rather than imported because the two
// agents only ever exchange serialized bytes over the bus, the same
// boundary the original's separate-process agents cross.
type document struct {
	Web struct {
		URL                string `yaml:"url"`
		AIActionContext    string `yaml:"aiActionContext"`
		WaitForNetworkIdle struct {
			Timeout int `yaml:"timeout"`
		} `yaml:"waitForNetworkIdle"`
	} `yaml:"web"`
	Tasks []struct {
		Name string `yaml:"name"`
		Flow []struct {
			AITap     string `yaml:"aiTap,omitempty"`
			AIInput   string `yaml:"aiInput,omitempty"`
			Locate    string `yaml:"locate,omitempty"`
			AIAssert  string `yaml:"aiAssert,omitempty"`
			ErrorMsg  string `yaml:"errorMsg,omitempty"`
			DeepThink bool   `yaml:"deepThink,omitempty"`
		} `yaml:"flow"`
	} `yaml:"tasks"`
}

// Handle runs a UI-flagged ExecutionInput's first script through a
// sandboxed Playwright invocation; further scripts in the input are not run.
func (c *Controller) Handle(ctx context.Context, in models.TypedMessage) ([]agent.Outbound, error) {
	if in.ExecutionInput == nil {
		return nil, fmt.Errorf("playwrightexec: message missing ExecutionInput payload")
	}
	if !in.ExecutionInput.Config.UIMode {
		return nil, nil
	}

	if c.forceAdsPowerOnly && !c.adsp.Reachable(ctx) {
		// Configuration error (spec.md §7): fail the request terminally
		// rather than degrade to an unsandboxed browser launch.
		return []agent.Outbound{{Topic: models.TopicStreamOutput, Message: models.TypedMessage{
			Kind:    models.KindStreamResponse,
			Context: in.Context,
			StreamResponse: &models.StreamResponse{
				Source:  models.AgentPlaywrightExecutor,
				Content: "configuration error: FORCE_ADSPOWER_ONLY is set but the sandbox controller is unreachable",
				IsFinal: true,
			},
		}}}, nil
	}

	if err := c.sem.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("playwrightexec: acquire sandbox slot: %w", err)
	}
	defer c.sem.Release()

	executionID := in.Context.ExecutionID
	if executionID == "" {
		executionID = fmt.Sprintf("ui-exec-%d", time.Now().UnixNano())
	}

	record := &models.ExecutionRecord{
		ExecutionID: executionID,
		Status:      models.ExecutionRunning,
		StartTime:   time.Now(),
		Config:      map[string]string{"runner": "playwright"},
		Environment: map[string]string{},
	}

	workspace, specPath, err := c.prepareWorkspace(executionID, in.ExecutionInput.Scripts)
	if err != nil {
		record.MarkTerminal(models.ExecutionFailed, time.Now())
		record.Error = err.Error()
		return c.outbound(in.Context, record), nil
	}
	defer os.RemoveAll(workspace)

	c.placeWindow(in.ExecutionInput.Config, record)

	spanCtx, span := tracing.StartExecutionSpan(ctx, executionID, specPath)
	logs, exitCode, runErr := runPlaywright(spanCtx, workspace, specPath, in.ExecutionInput.Config)
	tracing.EndSpan(span, runErr)
	record.Logs = logs
	record.ReturnCode = exitCode

	switch {
	case errors.Is(runErr, context.DeadlineExceeded):
		record.MarkTerminal(models.ExecutionFailed, time.Now())
		record.Error = "execution timeout"
	case ctx.Err() != nil:
		record.MarkTerminal(models.ExecutionCancelled, time.Now())
	case runErr != nil && exitCode == 0:
		record.MarkTerminal(models.ExecutionFailed, time.Now())
		record.Error = runErr.Error()
	case exitCode == 0:
		record.MarkTerminal(models.ExecutionCompleted, time.Now())
	default:
		record.MarkTerminal(models.ExecutionFailed, time.Now())
		record.Error = fmt.Sprintf("playwright exited with code %d", exitCode)
	}

	record.ReportPath = extractReportPath(logs, workspace)
	record.Artifacts = collectArtifacts(workspace)

	return c.outbound(in.Context, record), nil
}

func (c *Controller) outbound(mctx models.MessageContext, record *models.ExecutionRecord) []agent.Outbound {
	output := strings.Join(record.Logs, "\n")
	totals := extractTestStatistics(output)
	report := models.TestReport{
		ReportID:    record.ExecutionID + "-report",
		ExecutionID: record.ExecutionID,
		Status:      record.Status,
		Totals:      totals,
		SuccessRate: totals.SuccessRate(),
		StartTime:   record.StartTime,
		EndTime:     record.EndTime,
		Duration:    record.Duration,
		ReportPath:  record.ReportPath,
		Logs:        record.Logs,
	}
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
				Source:  models.AgentPlaywrightExecutor,
				Content: terminalContent(record),
				IsFinal: true,
				Result: map[string]any{
					"status":       string(record.Status),
					"total_tests":  totals.Total,
					"passed_tests": totals.Passed,
					"success_rate": report.SuccessRate,
				},
			},
		}},
	}
}

// terminalContent renders the human-readable summary that closes out a UI
// execution's stream (spec.md §7: every pipeline ends with exactly one
// is_final=true StreamResponse whose content is human-readable).
func terminalContent(record *models.ExecutionRecord) string {
	if record.Error != "" {
		return fmt.Sprintf("playwright execution %s: %s", record.Status, record.Error)
	}
	return fmt.Sprintf("playwright execution %s (return code %d)", record.Status, record.ReturnCode)
}

// prepareWorkspace decodes the execution's sole YAML script artifact and
// renders it into a fixture.ts + test-<id>.spec.ts pair, mirroring
// _create_test_file's fixed e2e/ layout.
func (c *Controller) prepareWorkspace(executionID string, scripts []models.ScriptArtifact) (workspace, specPath string, err error) {
	if len(scripts) == 0 {
		return "", "", fmt.Errorf("playwrightexec: no script artifact supplied")
	}

	base := c.workDir
	if base == "" {
		base = os.TempDir()
	}
	dir := filepath.Join(base, "orchestrator-ui-exec-"+executionID, "e2e")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("playwrightexec: create workspace: %w", err)
	}

	var doc document
	if err := yaml.Unmarshal(scripts[0].Content, &doc); err != nil {
		return "", "", fmt.Errorf("playwrightexec: decode script: %w", err)
	}

	fixturePath := filepath.Join(dir, "fixture.ts")
	if err := os.WriteFile(fixturePath, []byte(generateFixture(doc)), 0o644); err != nil {
		return "", "", fmt.Errorf("playwrightexec: write fixture: %w", err)
	}

	specPath = filepath.Join(dir, "test-"+executionID+".spec.ts")
	if err := os.WriteFile(specPath, []byte(generateSpec(doc)), 0o644); err != nil {
		return "", "", fmt.Errorf("playwrightexec: write spec: %w", err)
	}

	return filepath.Dir(dir), specPath, nil
}

// generateFixture mirrors _generate_fixture_content.
func generateFixture(doc document) string {
	timeout := doc.Web.WaitForNetworkIdle.Timeout
	if timeout == 0 {
		timeout = 2000
	}
	return fmt.Sprintf(`import { test as base } from '@playwright/test';
import type { PlayWrightAiFixtureType } from '@midscene/web/playwright';
import { PlaywrightAiFixture } from '@midscene/web/playwright';

export const test = base.extend<PlayWrightAiFixtureType>(PlaywrightAiFixture({
  waitForNetworkIdleTimeout: %d,
}));

export { expect } from '@playwright/test';
`, timeout)
}

// generateSpec mirrors _generate_test_file: one Playwright test per
// decoded task, each task's flow translated into ai fixture calls.
func generateSpec(doc document) string {
	url := doc.Web.URL
	if url == "" {
		url = "https://example.com"
	}

	var body strings.Builder
	for _, task := range doc.Tasks {
		body.WriteString(fmt.Sprintf("test(%q, async ({ ai, aiTap, aiInput, aiAssert, aiWaitFor, aiHover }) => {\n", task.Name))
		for _, action := range task.Flow {
			switch {
			case action.AITap != "":
				body.WriteString(fmt.Sprintf("  await aiTap(%q);\n", action.AITap))
			case action.AIInput != "":
				body.WriteString(fmt.Sprintf("  await aiInput(%q, %q);\n", action.AIInput, action.Locate))
			case action.AIAssert != "":
				body.WriteString(fmt.Sprintf("  await aiAssert(%q, { errorMsg: %q });\n", action.AIAssert, action.ErrorMsg))
			}
		}
		body.WriteString("});\n\n")
	}

	return fmt.Sprintf(`import { expect } from "@playwright/test";
import { test } from "./fixture";

test.beforeEach(async ({ page }) => {
  await page.goto(%q);
  await page.waitForLoadState("networkidle");
});

%s`, url, body.String())
}

// placeWindow connects to the sandbox's browser endpoint (if one was
// supplied via Config.Env) and positions its window on the tiling grid.
// Failures are logged onto the record's environment, not treated as fatal,
// since window placement is cosmetic to the test run itself.
func (c *Controller) placeWindow(cfg models.ExecutionConfig, record *models.ExecutionRecord) {
	endpoint := cfg.Env["SANDBOX_WS_ENDPOINT"]
	if endpoint == "" {
		return
	}

	c.mu.Lock()
	index := c.nextTile
	c.nextTile++
	c.mu.Unlock()

	bounds := sandbox.TileBounds(c.grid, index, index+1)

	driver, err := sandbox.Connect(endpoint)
	if err != nil {
		record.Environment["window_placement_error"] = err.Error()
		return
	}
	defer driver.Disconnect()

	if err := driver.PlaceWindow(sandbox.WindowBoundsPX{
		Left: bounds.Left, Top: bounds.Top, Width: bounds.Width, Height: bounds.Height,
	}); err != nil {
		record.Environment["window_placement_error"] = err.Error()
	}
}

// runPlaywright launches `npx playwright test <spec>` against workspace,
// mirroring _run_playwright_test's command construction and the
// combined-stdout capture pattern pkg/executor also uses.
func runPlaywright(ctx context.Context, workspace, specPath string, cfg models.ExecutionConfig) (logs []string, exitCode int, err error) {
	timeout := 180 * time.Second
	if cfg.Timeout > 0 {
		timeout = time.Duration(cfg.Timeout) * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	relPath, relErr := filepath.Rel(workspace, specPath)
	if relErr != nil {
		relPath = specPath
	}

	args := []string{"playwright", "test", filepath.ToSlash(relPath)}
	if cfg.Env["HEADED"] == "true" {
		args = append(args, "--headed")
	}
	args = append(args, cfg.RunnerArgs...)

	cmd := exec.CommandContext(runCtx, "npx", args...)
	cmd.Dir = workspace

	env := os.Environ()
	for k, v := range cfg.Env {
		env = append(env, k+"="+v)
	}
	cmd.Env = env

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, 0, fmt.Errorf("playwrightexec: stdout pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return nil, 0, fmt.Errorf("playwrightexec: start runner: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		logs = append(logs, scanner.Text())
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

var reportPathPattern = regexp.MustCompile(`Midscene - report file updated:\s*(.+\.html)`)

// extractReportPath mirrors _extract_report_path: it scans log lines for
// midscene's report marker and resolves a relative path against workspace.
func extractReportPath(logs []string, workspace string) string {
	for _, line := range logs {
		m := reportPathPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		path := strings.TrimSpace(m[1])
		path = strings.TrimPrefix(path, "./")
		if !filepath.IsAbs(path) {
			path = filepath.Join(workspace, path)
		}
		return path
	}
	return ""
}

var (
	runningPattern = regexp.MustCompile(`Running (\d+) test`)
	failedPattern  = regexp.MustCompile(`(\d+) failed`)
	passedPattern  = regexp.MustCompile(`(\d+) passed`)
)

// extractTestStatistics mirrors _extract_test_statistics: it reads
// Playwright's summary line ("Running N test", "N passed", "N failed")
// rather than per-test markers, since midscene's reporter output doesn't
// emit one line per assertion the way pytest -v does.
func extractTestStatistics(output string) models.TestTotals {
	var totals models.TestTotals
	if m := runningPattern.FindStringSubmatch(output); m != nil {
		totals.Total, _ = strconv.Atoi(m[1])
	}
	if m := failedPattern.FindStringSubmatch(output); m != nil {
		totals.Failed, _ = strconv.Atoi(m[1])
	}
	if m := passedPattern.FindStringSubmatch(output); m != nil {
		totals.Passed, _ = strconv.Atoi(m[1])
	}
	if totals.Passed == 0 && totals.Total > 0 {
		totals.Passed = totals.Total - totals.Failed - totals.Skipped
	}
	return totals
}

// collectArtifacts mirrors _collect_test_artifacts/_collect_playwright_reports:
// it walks the fixed report directories Playwright and midscene write to
// and returns every html/json file found.
func collectArtifacts(workspace string) []string {
	var artifacts []string
	reportDirs := []string{
		filepath.Join(workspace, "playwright-report"),
		filepath.Join(workspace, "test-results"),
		filepath.Join(workspace, "midscene_run", "report"),
	}
	for _, dir := range reportDirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			name := entry.Name()
			if strings.HasSuffix(name, ".html") || strings.HasSuffix(name, ".json") {
				artifacts = append(artifacts, filepath.Join(dir, name))
			}
		}
	}
	return artifacts
}

// Package yamlgen implements the YAML script generator for the UI testing
// pipeline: it renders a browser automation task list (the midscene-style
// "web"/"tasks"/"flow" document) from generated test cases, scores the
// result's complexity, and estimates its execution duration.
//
// Grounded on original_source's YAMLGeneratorAgent
// (ui-automation/.../yaml_script_generator_agent.py), specifically
// _validate_yaml_structure's schema defaults, _calculate_complexity_score,
// and _estimate_execution_duration.
package yamlgen

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/pipelinecore/orchestrator/pkg/agent"
	"github.com/pipelinecore/orchestrator/pkg/bus"
	"github.com/pipelinecore/orchestrator/pkg/models"
)

// New constructs the YAML generator's BaseAgent.
func New(b *bus.Bus) *agent.BaseAgent {
	return agent.NewBaseAgent(models.AgentYamlGenerator, models.TopicYamlGeneration, b, &Controller{})
}

// Controller implements agent.Controller for the YAML generator.
type Controller struct{}

// WebConfig is the document's "web" section: target URL and viewport,
// mirroring _validate_yaml_structure's web_config defaults.
type WebConfig struct {
	URL                string             `yaml:"url"`
	ViewportWidth      int                `yaml:"viewportWidth"`
	ViewportHeight     int                `yaml:"viewportHeight"`
	WaitForNetworkIdle WaitForNetworkIdle `yaml:"waitForNetworkIdle"`
	AIActionContext    string             `yaml:"aiActionContext"`
}

// WaitForNetworkIdle mirrors the original's fixed default wait policy.
type WaitForNetworkIdle struct {
	Timeout                    int  `yaml:"timeout"`
	ContinueOnNetworkIdleError bool `yaml:"continueOnNetworkIdleError"`
}

// Action is one step in a task's flow. Exactly one of the action fields is
// set per action, matching the original's single-key-per-dict action
// encoding (aiTap/aiInput/aiAssert/...).
type Action struct {
	AITap     string `yaml:"aiTap,omitempty"`
	AIInput   string `yaml:"aiInput,omitempty"`
	Locate    string `yaml:"locate,omitempty"`
	AIAssert  string `yaml:"aiAssert,omitempty"`
	ErrorMsg  string `yaml:"errorMsg,omitempty"`
	DeepThink bool   `yaml:"deepThink,omitempty"`
}

// Task is one named, independently continuable test flow.
type Task struct {
	Name            string   `yaml:"name"`
	ContinueOnError bool     `yaml:"continueOnError"`
	Flow            []Action `yaml:"flow"`
}

// Document is the full rendered YAML script.
type Document struct {
	Web   WebConfig `yaml:"web"`
	Tasks []Task    `yaml:"tasks"`
}

// Handle renders one Document covering all generated test cases (one task
// per test case) and forwards the encoded YAML plus scoring metadata to the
// execution pipeline as a UI-mode execution.
func (c *Controller) Handle(ctx context.Context, in models.TypedMessage) ([]agent.Outbound, error) {
	if in.TestCaseGenerationOutput == nil {
		return nil, fmt.Errorf("yamlgen: message missing TestCaseGenerationOutput payload")
	}

	doc := buildDocument(in.TestCaseGenerationOutput.TestCases)
	content, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("yamlgen: marshal document: %w", err)
	}

	complexity := complexityScore(doc)
	duration := estimateDuration(doc)

	return []agent.Outbound{{
		Topic: models.TopicExecutionRequest,
		Message: models.TypedMessage{
			Kind:    models.KindExecutionInput,
			Context: in.Context,
			ExecutionInput: &models.ExecutionInput{
				Scripts: []models.ScriptArtifact{{
					Name:         "script.yaml",
					RelativePath: "script.yaml",
					Content:      content,
					Framework:    models.FrameworkPlaywright,
				}},
				Config: models.ExecutionConfig{
					UIMode: true,
					Env: map[string]string{
						"COMPLEXITY_SCORE":   fmt.Sprintf("%.2f", complexity),
						"ESTIMATED_DURATION": duration,
					},
				},
			},
		},
	}}, nil
}

// buildDocument derives one task per test case, translating each into a
// tap/assert pair against the endpoint it targets. When no test cases are
// supplied, a single default task is produced, matching
// _validate_yaml_structure's fallback-to-default-task behaviour for an
// empty task list.
func buildDocument(cases []models.TestCase) Document {
	web := WebConfig{
		URL:            "https://example.com",
		ViewportWidth:  1280,
		ViewportHeight: 960,
		WaitForNetworkIdle: WaitForNetworkIdle{
			Timeout:                    2000,
			ContinueOnNetworkIdleError: true,
		},
		AIActionContext: "automated API-driven UI regression run",
	}

	if len(cases) == 0 {
		return Document{Web: web, Tasks: []Task{defaultTask()}}
	}

	tasks := make([]Task, 0, len(cases))
	for _, tc := range cases {
		tasks = append(tasks, Task{
			Name:            tc.Endpoint + " " + string(tc.Type),
			ContinueOnError: false,
			Flow: []Action{
				{AITap: "trigger control for " + tc.Endpoint, DeepThink: true},
				{AIAssert: "request completed as expected", ErrorMsg: "expected outcome for " + tc.ID + " did not occur"},
			},
		})
	}
	return Document{Web: web, Tasks: tasks}
}

func defaultTask() Task {
	return Task{
		Name:            "default smoke test",
		ContinueOnError: false,
		Flow: []Action{
			{AITap: "main action button on the page", DeepThink: true},
			{AIAssert: "action completed successfully", ErrorMsg: "action verification failed"},
		},
	}
}

// complexityScore mirrors _calculate_complexity_score: a base of 1.0, plus
// 0.3 per flow action, plus 0.5 per action carrying more than one field set
// (here approximated as any action with an errorMsg, locate or deepThink
// modifier), clamped to [1.0, 5.0].
func complexityScore(doc Document) float64 {
	score := 1.0
	for _, task := range doc.Tasks {
		for _, action := range task.Flow {
			score += 0.3
			if action.ErrorMsg != "" || action.Locate != "" || action.DeepThink {
				score += 0.5
			}
		}
	}
	if score < 1.0 {
		score = 1.0
	}
	if score > 5.0 {
		score = 5.0
	}
	return score
}

// estimateDuration mirrors _estimate_execution_duration's per-action-type
// second budget (tap=2, input=3, assert=2) plus a 5s base page-load cost,
// formatted as the original does ("Ns" under a minute, "MmNs" otherwise).
func estimateDuration(doc Document) string {
	totalSeconds := 5
	for _, task := range doc.Tasks {
		for _, action := range task.Flow {
			switch {
			case action.AITap != "":
				totalSeconds += 2
			case action.AIInput != "":
				totalSeconds += 3
			case action.AIAssert != "":
				totalSeconds += 2
			default:
				totalSeconds += 2
			}
		}
	}

	if totalSeconds < 60 {
		return fmt.Sprintf("%ds", totalSeconds)
	}
	minutes := totalSeconds / 60
	seconds := totalSeconds % 60
	return fmt.Sprintf("%dm%ds", minutes, seconds)
}

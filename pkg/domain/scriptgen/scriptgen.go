// Package scriptgen implements the script generator agent: it renders
// generated test cases into runnable pytest scripts plus a
// requirements.txt, grounded on original_source's ScriptGeneratorAgent
// (_generate_complete_script_template, _generate_requirements_txt).
package scriptgen

import (
	"context"
	"fmt"
	"strings"

	"github.com/pipelinecore/orchestrator/pkg/agent"
	"github.com/pipelinecore/orchestrator/pkg/bus"
	"github.com/pipelinecore/orchestrator/pkg/models"
)

// New constructs the script generator's BaseAgent.
func New(b *bus.Bus) *agent.BaseAgent {
	return agent.NewBaseAgent(models.AgentScriptGenerator, models.TopicScriptGeneration, b, &Controller{})
}

// Controller implements agent.Controller for the script generator.
type Controller struct{}

// Handle renders one pytest script containing all generated test cases and
// a pinned requirements.txt, then forwards the script to the execution
// topic. The requirements.txt descriptor is not published; the script
// artifact carries the same pinned list in its Dependencies.
func (c *Controller) Handle(ctx context.Context, in models.TypedMessage) ([]agent.Outbound, error) {
	if in.TestCaseGenerationOutput == nil {
		return nil, fmt.Errorf("scriptgen: message missing TestCaseGenerationOutput payload")
	}

	script := renderPytestScript(in.TestCaseGenerationOutput.TestCases)
	output := models.ScriptGenerationOutput{
		Scripts: []models.ScriptArtifact{{
			Name:         "test_api_automation.py",
			RelativePath: "test_api_automation.py",
			Content:      []byte(script),
			Dependencies: requirementsList(),
			TestCaseIDs:  testCaseIDs(in.TestCaseGenerationOutput.TestCases),
			Framework:    models.FrameworkPytest,
		}},
		Requirements: models.RequirementsDescriptor{
			RelativePath: "requirements.txt",
			Content:      []byte(strings.Join(requirementsList(), "\n") + "\n"),
		},
	}

	return []agent.Outbound{
		{Topic: models.TopicStreamOutput, Message: models.TypedMessage{
			Kind:    models.KindStreamResponse,
			Context: in.Context,
			StreamResponse: &models.StreamResponse{
				Source:  models.AgentScriptGenerator,
				Content: fmt.Sprintf("generated %s covering %d test cases", output.Scripts[0].Name, len(output.Scripts[0].TestCaseIDs)),
			},
		}},
		{Topic: models.TopicExecutionRequest, Message: models.TypedMessage{
			Kind:    models.KindExecutionInput,
			Context: in.Context,
			ExecutionInput: &models.ExecutionInput{
				Scripts: output.Scripts,
			},
		}},
	}, nil
}

func testCaseIDs(cases []models.TestCase) []string {
	ids := make([]string, len(cases))
	for i, c := range cases {
		ids[i] = c.ID
	}
	return ids
}

func requirementsList() []string {
	return []string{
		"pytest>=7.0.0",
		"requests>=2.31.0",
		"allure-pytest>=2.12.0",
		"pytest-html>=3.1.0",
	}
}

// renderPytestScript emits one pytest test function per test case, each
// asserting the expected status code recorded in the test case's
// assertions. Mirrors _generate_complete_script_template's fixed
// header/body/footer structure.
func renderPytestScript(cases []models.TestCase) string {
	var b strings.Builder
	b.WriteString("import pytest\nimport requests\n\n\nBASE_URL = \"http://localhost:8000\"\n\n\n")

	for _, tc := range cases {
		funcName := sanitizeIdentifier(tc.ID)
		method, path := splitEndpoint(tc.Endpoint)
		expectedStatus := "200"
		for _, a := range tc.Assertions {
			if a.Type == models.AssertionStatusCode {
				expectedStatus = a.Expected
				break
			}
		}

		fmt.Fprintf(&b, "def test_%s():\n", funcName)
		fmt.Fprintf(&b, "    response = requests.request(%q, BASE_URL + %q)\n", method, path)
		fmt.Fprintf(&b, "    assert response.status_code == %s\n\n\n", expectedStatus)
	}

	return b.String()
}

func splitEndpoint(endpoint string) (method, path string) {
	parts := strings.SplitN(endpoint, " ", 2)
	if len(parts) != 2 {
		return "GET", endpoint
	}
	return parts[0], parts[1]
}

// sanitizeIdentifier lowercases s, drops spaces, and replaces every other
// non-alphanumeric rune with '_'.
func sanitizeIdentifier(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ':
			continue
		default:
			b.WriteRune('_')
		}
	}
	return strings.ToLower(b.String())
}

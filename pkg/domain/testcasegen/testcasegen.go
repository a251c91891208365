// Package testcasegen implements the test case generator agent: it derives
// positive, negative, boundary, and security test cases per endpoint, and a
// coverage report summarizing endpoint reach.
//
// Grounded on original_source's TestCaseGeneratorAgent, specifically its
// deterministic fallback generator (_fallback_generate_test_cases,
// _generate_default_test_value) rather than its LLM-driven path, for the
// same reason as the analyzer: a heuristic core that works without an LLM,
// enrichable but not dependent on one.
package testcasegen

import (
	"context"
	"fmt"

	"github.com/pipelinecore/orchestrator/pkg/agent"
	"github.com/pipelinecore/orchestrator/pkg/bus"
	"github.com/pipelinecore/orchestrator/pkg/models"
)

// New constructs the test case generator's BaseAgent.
func New(b *bus.Bus) *agent.BaseAgent {
	return agent.NewBaseAgent(models.AgentTestCaseGenerator, models.TopicTestCaseGeneration, b, &Controller{})
}

// Controller implements agent.Controller for the test case generator.
type Controller struct{}

// Handle generates a test case set for every endpoint in the analysis
// output and a coverage report, then forwards both to the script
// generation topic.
func (c *Controller) Handle(ctx context.Context, in models.TypedMessage) ([]agent.Outbound, error) {
	if in.AnalysisOutput == nil {
		return nil, fmt.Errorf("testcasegen: message missing AnalysisOutput payload")
	}
	// The endpoint list travels with the analysis output implicitly via the
	// dependency edges' endpoint keys; the generator also accepts an
	// explicit TestCaseGenerationInput for callers that have the full
	// endpoint objects (e.g. direct invocation, bypassing the analyzer).
	endpoints := endpointsFromDependencies(in.AnalysisOutput.Dependencies)
	if in.TestCaseGenerationInput != nil {
		endpoints = in.TestCaseGenerationInput.Endpoints
	}

	var cases []models.TestCase
	for _, ep := range endpoints {
		cases = append(cases, generateForEndpoint(ep)...)
	}

	coverage := coverageReport(cases, endpoints)

	output := models.TestCaseGenerationOutput{
		TestCases: cases,
		Coverage:  coverage,
	}

	return []agent.Outbound{
		{Topic: models.TopicStreamOutput, Message: models.TypedMessage{
			Kind:    models.KindStreamResponse,
			Context: in.Context,
			StreamResponse: &models.StreamResponse{
				Source:  models.AgentTestCaseGenerator,
				Content: fmt.Sprintf("generated %d test cases across %d endpoints (%.0f%% coverage)", len(cases), coverage.TotalEndpoints, coverage.CoveragePercentage),
			},
		}},
		{Topic: models.TopicScriptGeneration, Message: models.TypedMessage{
			Kind:                     models.KindTestCaseGenerationOutput,
			Context:                  in.Context,
			TestCaseGenerationOutput: &output,
		}},
	}, nil
}

// endpointsFromDependencies reconstructs a minimal endpoint set from
// dependency-edge endpoint keys when no explicit endpoint list was
// supplied; keys are of the form "METHOD path".
func endpointsFromDependencies(deps []models.DependencyEdge) []models.Endpoint {
	seen := make(map[string]bool)
	var out []models.Endpoint
	add := func(key string) {
		if seen[key] || key == "" {
			return
		}
		seen[key] = true
		var method, path string
		if _, err := fmt.Sscanf(key, "%s", &method); err == nil {
			path = key[len(method)+1:]
		}
		out = append(out, models.Endpoint{Method: method, Path: path})
	}
	for _, d := range deps {
		add(d.FromEndpoint)
		add(d.ToEndpoint)
	}
	return out
}

// generateForEndpoint produces one test case per enabled category
// (positive/negative/boundary/security), matching the fixed category set
// _fallback_generate_test_cases always emits.
func generateForEndpoint(ep models.Endpoint) []models.TestCase {
	base := ep.Method + " " + ep.Path

	cases := []models.TestCase{
		{
			ID:       base + "#positive",
			Endpoint: base,
			Type:     models.TestCasePositive,
			TestData: defaultTestData(ep),
			Assertions: []models.Assertion{
				{Type: models.AssertionStatusCode, Expected: successStatusCode(ep.Method)},
			},
			Priority: 1,
			Tags:     []string{"basic", "positive"},
		},
		{
			ID:       base + "#negative",
			Endpoint: base,
			Type:     models.TestCaseNegative,
			TestData: map[string]any{},
			Assertions: []models.Assertion{
				{Type: models.AssertionStatusCode, Expected: "400"},
			},
			Priority: 2,
			Tags:     []string{"negative"},
		},
		{
			ID:       base + "#boundary",
			Endpoint: base,
			Type:     models.TestCaseBoundary,
			TestData: boundaryTestData(ep),
			Assertions: []models.Assertion{
				{Type: models.AssertionStatusCode, Expected: "400"},
			},
			Priority: 3,
			Tags:     []string{"boundary"},
		},
	}

	if ep.Auth.Required {
		cases = append(cases, models.TestCase{
			ID:       base + "#security",
			Endpoint: base,
			Type:     models.TestCaseSecurity,
			TestData: map[string]any{},
			Assertions: []models.Assertion{
				{Type: models.AssertionStatusCode, Expected: "401"},
			},
			Priority: 4,
			Tags:     []string{"security", "auth"},
		})
	}

	return cases
}

func successStatusCode(method string) string {
	if method == "POST" {
		return "201"
	}
	return "200"
}

// defaultTestData mirrors _generate_default_test_value: a plausible value
// per declared parameter type.
func defaultTestData(ep models.Endpoint) map[string]any {
	data := make(map[string]any)
	for _, p := range ep.Parameters {
		data[p.Name] = defaultValueForType(p.Type)
	}
	return data
}

func boundaryTestData(ep models.Endpoint) map[string]any {
	data := make(map[string]any)
	for _, p := range ep.Parameters {
		if p.Type == "integer" || p.Type == "number" {
			data[p.Name] = -1
		} else {
			data[p.Name] = ""
		}
	}
	return data
}

func defaultValueForType(t string) any {
	switch t {
	case "integer":
		return 1
	case "number":
		return 1.0
	case "boolean":
		return true
	default:
		return "test_value"
	}
}

// coverageReport reports the fraction of distinct endpoints with at least
// one generated test case. Returns the zero value {0, 0} for an empty
// endpoint list without error (boundary behaviour B1).
func coverageReport(cases []models.TestCase, endpoints []models.Endpoint) models.CoverageReport {
	if len(endpoints) == 0 {
		return models.CoverageReport{}
	}
	covered := make(map[string]bool)
	for _, c := range cases {
		covered[c.Endpoint] = true
	}
	return models.CoverageReport{
		TotalEndpoints:     len(endpoints),
		CoveragePercentage: float64(len(covered)) / float64(len(endpoints)) * 100,
	}
}

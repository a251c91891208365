// Package analyzer implements the dependency analyzer agent: given a set of
// parsed endpoints it infers dependency edges, topologically sorts them
// into execution phases with intra-phase parallel groups, and produces a
// risk assessment and narrative test strategy.
//
// Grounded on original_source's ApiAnalyzerAgent, specifically its
// deterministic fallback path (_build_dependency_graph/_topological_sort)
// rather than its LLM-driven path, since this spec treats RAG/LLM
// enrichment as an optional, gracefully-degrading enhancement (spec.md
// §4.6) over a heuristic core that must work without either.
package analyzer

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/pipelinecore/orchestrator/pkg/agent"
	"github.com/pipelinecore/orchestrator/pkg/bus"
	"github.com/pipelinecore/orchestrator/pkg/models"
	"github.com/pipelinecore/orchestrator/pkg/rag"
)

// New constructs the analyzer's BaseAgent. ragClient may be nil, in which
// case RAG enrichment is skipped entirely (graceful degradation, spec.md
// §4.6).
func New(b *bus.Bus, ragClient rag.Client) *agent.BaseAgent {
	return agent.NewBaseAgent(models.AgentAnalyzer, models.TopicAnalysisRequest, b, &Controller{rag: ragClient})
}

// Controller implements agent.Controller for the analyzer.
type Controller struct {
	rag rag.Client
}

// endpointKey uniquely identifies an endpoint within one analysis.
func endpointKey(e models.Endpoint) string { return e.Method + " " + e.Path }

// Handle infers the dependency graph and phased execution plan for the
// parsed document, then publishes the analysis to the test-case-generation
// topic.
func (c *Controller) Handle(ctx context.Context, in models.TypedMessage) ([]agent.Outbound, error) {
	if in.AnalysisInput == nil {
		return nil, fmt.Errorf("analyzer: message missing AnalysisInput payload")
	}
	endpoints := in.AnalysisInput.Parsed.Endpoints

	deps := inferDependencies(endpoints)
	plan := buildExecutionPlan(endpoints, deps)
	risk := assessRisk(endpoints, deps)

	output := models.AnalysisOutput{
		Dependencies:   deps,
		ExecutionPlan:  plan,
		RiskAssessment: risk,
		TestStrategy:   buildTestStrategy(endpoints, deps),
	}

	if c.rag != nil {
		if context, err := c.rag.Query(ctx, summarizeForRAG(endpoints)); err == nil && context != "" {
			output.TestStrategy = output.TestStrategy + "\n\nAdditional context:\n" + context
			output.RAGContextUsed = true
		}
		// RAG failures are swallowed: a degraded analysis (heuristic-only) is
		// still a valid, usable result (spec.md §4.6 graceful degradation).
	}

	return []agent.Outbound{
		{Topic: models.TopicStreamOutput, Message: models.TypedMessage{
			Kind:    models.KindStreamResponse,
			Context: in.Context,
			StreamResponse: &models.StreamResponse{
				Source:  models.AgentAnalyzer,
				Content: fmt.Sprintf("analyzed %d endpoints, %d dependency edges, %d execution phases", len(endpoints), len(deps), len(plan)),
			},
		}},
		{Topic: models.TopicTestCaseGeneration, Message: models.TypedMessage{
			Kind:           models.KindAnalysisOutput,
			Context:        in.Context,
			AnalysisOutput: &output,
		}},
	}, nil
}

// inferDependencies derives edges from naming conventions: an endpoint
// whose path references a resource ID path parameter depends on the
// corresponding collection's create (POST) endpoint (data dependency), and
// any endpoint requiring auth depends on a login/token endpoint if one
// exists (auth dependency). Mirrors the structural signal
// _build_dependency_graph extracts, without requiring an LLM call.
func inferDependencies(endpoints []models.Endpoint) []models.DependencyEdge {
	var deps []models.DependencyEdge

	var authEndpoint *models.Endpoint
	for i := range endpoints {
		p := strings.ToLower(endpoints[i].Path)
		if endpoints[i].Method == "POST" && (strings.Contains(p, "login") || strings.Contains(p, "auth") || strings.Contains(p, "token")) {
			authEndpoint = &endpoints[i]
			break
		}
	}

	resourceCreators := make(map[string]models.Endpoint) // resource segment -> creating endpoint
	for _, e := range endpoints {
		if e.Method == "POST" {
			resourceCreators[resourceSegment(e.Path)] = e
		}
	}

	for _, e := range endpoints {
		if authEndpoint != nil && e.Auth.Required && endpointKey(e) != endpointKey(*authEndpoint) {
			deps = append(deps, models.DependencyEdge{
				FromEndpoint: endpointKey(*authEndpoint),
				ToEndpoint:   endpointKey(e),
				Type:         models.DependencyAuth,
				Reason:       "requires authentication",
			})
		}

		if strings.Contains(e.Path, "{") && e.Method != "POST" {
			if creator, ok := resourceCreators[resourceSegment(e.Path)]; ok && endpointKey(creator) != endpointKey(e) {
				deps = append(deps, models.DependencyEdge{
					FromEndpoint: endpointKey(creator),
					ToEndpoint:   endpointKey(e),
					Type:         models.DependencyData,
					Reason:       "path references a resource created by " + endpointKey(creator),
				})
			}
		}
	}
	return deps
}

// resourceSegment returns the first path segment, used as a coarse
// resource-family grouping key ("/users/{id}" and "/users" both -> "users").
func resourceSegment(path string) string {
	for _, seg := range strings.Split(path, "/") {
		if seg != "" && !strings.HasPrefix(seg, "{") {
			return seg
		}
	}
	return path
}

// buildExecutionPlan topologically sorts endpoints by dependency edges into
// ordered phases, with endpoints that share a phase and have no edge
// between them grouped for parallel execution. Mirrors
// ApiAnalyzerAgent._topological_sort's level-by-level (Kahn's algorithm)
// approach.
func buildExecutionPlan(endpoints []models.Endpoint, deps []models.DependencyEdge) []models.ExecutionPhase {
	if len(endpoints) == 0 {
		return nil
	}

	indegree := make(map[string]int)
	blockedBy := make(map[string][]string) // to -> [from,...]
	keys := make([]string, 0, len(endpoints))
	for _, e := range endpoints {
		keys = append(keys, endpointKey(e))
		indegree[endpointKey(e)] = 0
	}
	for _, d := range deps {
		indegree[d.ToEndpoint]++
		blockedBy[d.ToEndpoint] = append(blockedBy[d.ToEndpoint], d.FromEndpoint)
	}

	remaining := make(map[string]bool, len(keys))
	for _, k := range keys {
		remaining[k] = true
	}

	var phases []models.ExecutionPhase
	phaseNum := 1
	for len(remaining) > 0 {
		var ready []string
		for k := range remaining {
			if indegree[k] == 0 {
				ready = append(ready, k)
			}
		}
		if len(ready) == 0 {
			// Dependency cycle: break it by releasing all remaining endpoints
			// into one final phase rather than looping forever.
			for k := range remaining {
				ready = append(ready, k)
			}
		}
		sort.Strings(ready)

		phases = append(phases, models.ExecutionPhase{
			Name:           fmt.Sprintf("phase_%d", phaseNum),
			ParallelGroups: [][]string{ready},
		})
		phaseNum++

		for _, k := range ready {
			delete(remaining, k)
			for to, froms := range blockedBy {
				for _, from := range froms {
					if from == k {
						indegree[to]--
					}
				}
			}
		}
	}
	return phases
}

func assessRisk(endpoints []models.Endpoint, deps []models.DependencyEdge) string {
	if len(endpoints) == 0 {
		return "no endpoints to assess"
	}
	authCount := 0
	for _, e := range endpoints {
		if e.Auth.Required {
			authCount++
		}
	}
	return fmt.Sprintf("%d endpoints, %d dependency edges, %d requiring authentication", len(endpoints), len(deps), authCount)
}

func buildTestStrategy(endpoints []models.Endpoint, deps []models.DependencyEdge) string {
	if len(endpoints) == 0 {
		return "no endpoints available; nothing to test"
	}
	if len(deps) == 0 {
		return "endpoints are independent; test cases may run in any order"
	}
	return "execute dependent endpoints in topological order; independent endpoints within a phase may run concurrently"
}

func summarizeForRAG(endpoints []models.Endpoint) string {
	var b strings.Builder
	for _, e := range endpoints {
		b.WriteString(endpointKey(e))
		b.WriteString("\n")
	}
	return b.String()
}

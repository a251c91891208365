package api

import "github.com/pipelinecore/orchestrator/pkg/models"

// SubmitParseRequest is the JSON body of POST /api/v1/parse, the HTTP
// projection of spec.md §6's submit_parse(document, format, session_id)
// entry point. Content carries inline document bytes; Path is not read from
// disk, it is copied to the resulting ParseInput, where a ".pdf" extension
// selects the PDF format during auto-detection.
type SubmitParseRequest struct {
	SessionID string                `json:"session_id"`
	Path      string                `json:"path"`
	Content   []byte                `json:"content"`
	Format    models.DocumentFormat `json:"format"`
}

// SubmitUIAnalysisRequest is the JSON body of POST /api/v1/ui-analysis,
// the HTTP projection of submit_ui_analysis(payload, session_id). Per the
// control flow in spec.md §2 ("AnalysisResponse → YamlGenerator"), the UI
// pipeline enters directly with generated test cases rather than a raw
// document.
type SubmitUIAnalysisRequest struct {
	SessionID string            `json:"session_id"`
	TestCases []models.TestCase `json:"test_cases"`
}

// SubmitExecutionRequest is the JSON body of POST /api/v1/execution, the
// HTTP projection of submit_execution(scripts, config, session_id).
type SubmitExecutionRequest struct {
	SessionID string                  `json:"session_id"`
	Scripts   []models.ScriptArtifact `json:"scripts"`
	Config    models.ExecutionConfig  `json:"config"`
}

// AcceptedResponse is returned by every submit_* handler: the pipeline has
// been handed off to the bus, not completed — callers follow the
// WebSocket stream for results.
type AcceptedResponse struct {
	SessionID string `json:"session_id"`
	Accepted  bool   `json:"accepted"`
}

package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pipelinecore/orchestrator/pkg/models"
)

// submitParseHandler implements spec.md §6's submit_parse entry point: it
// publishes a ParseInput onto the doc-parser's topic and returns
// immediately, before any agent has run (the pipeline streams its results
// over /ws).
func (s *Server) submitParseHandler(c *gin.Context) {
	var req SubmitParseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = newSessionID()
	}
	format := req.Format
	if format == "" {
		format = models.FormatAuto
	}

	msg := models.TypedMessage{
		Kind:    models.KindParseInput,
		Context: models.MessageContext{SessionID: sessionID},
		ParseInput: &models.ParseInput{
			Path:    req.Path,
			Content: req.Content,
			Format:  format,
		},
	}
	if err := s.bus.Publish(c.Request.Context(), models.TopicParseRequest, msg); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, AcceptedResponse{SessionID: sessionID, Accepted: true})
}

// submitUIAnalysisHandler implements submit_ui_analysis: it hands
// already-generated UI test cases straight to the YAML generator, per
// spec.md §2's UI control flow.
func (s *Server) submitUIAnalysisHandler(c *gin.Context) {
	var req SubmitUIAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = newSessionID()
	}

	msg := models.TypedMessage{
		Kind:    models.KindTestCaseGenerationOutput,
		Context: models.MessageContext{SessionID: sessionID},
		TestCaseGenerationOutput: &models.TestCaseGenerationOutput{
			TestCases: req.TestCases,
		},
	}
	if err := s.bus.Publish(c.Request.Context(), models.TopicYamlGeneration, msg); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, AcceptedResponse{SessionID: sessionID, Accepted: true})
}

// submitExecutionHandler implements submit_execution: it publishes an
// ExecutionInput directly onto the execution-request topic, bypassing
// script generation for callers that already hold generated scripts
// (e.g. re-running a previously generated script, or a UI caller handing
// over a Playwright-flagged ExecutionConfig).
func (s *Server) submitExecutionHandler(c *gin.Context) {
	var req SubmitExecutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = newSessionID()
	}
	executionID := newSessionID()

	msg := models.TypedMessage{
		Kind: models.KindExecutionInput,
		Context: models.MessageContext{
			SessionID:   sessionID,
			ExecutionID: executionID,
		},
		ExecutionInput: &models.ExecutionInput{
			Scripts: req.Scripts,
			Config:  req.Config,
		},
	}
	if err := s.bus.Publish(c.Request.Context(), models.TopicExecutionRequest, msg); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, AcceptedResponse{SessionID: sessionID, Accepted: true})
}

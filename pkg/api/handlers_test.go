package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipelinecore/orchestrator/pkg/bus"
	"github.com/pipelinecore/orchestrator/pkg/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func doJSON(s *Server, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestSubmitParseHandlerPublishesAndAccepts(t *testing.T) {
	b := bus.New()
	s := &Server{router: gin.New(), bus: b, hub: NewHub()}
	s.setupRoutes()

	received := make(chan models.TypedMessage, 1)
	b.Subscribe(models.TopicParseRequest, "doc_parser", func(ctx context.Context, msg models.TypedMessage) {
		received <- msg
	})

	rec := doJSON(s, http.MethodPost, "/api/v1/parse", SubmitParseRequest{
		Path:   "openapi.yaml",
		Format: models.FormatOpenAPI,
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp AcceptedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Accepted)
	assert.NotEmpty(t, resp.SessionID)

	select {
	case msg := <-received:
		require.NotNil(t, msg.ParseInput)
		assert.Equal(t, "openapi.yaml", msg.ParseInput.Path)
		assert.Equal(t, models.FormatOpenAPI, msg.ParseInput.Format)
		assert.Equal(t, resp.SessionID, msg.Context.SessionID)
	default:
		t.Fatal("expected parse input to be published")
	}
}

func TestSubmitParseHandlerRejectsMalformedBody(t *testing.T) {
	s := &Server{router: gin.New(), bus: bus.New(), hub: NewHub()}
	s.setupRoutes()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/parse", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitUIAnalysisHandlerPublishesToYamlGeneration(t *testing.T) {
	b := bus.New()
	s := &Server{router: gin.New(), bus: b, hub: NewHub()}
	s.setupRoutes()

	received := make(chan models.TypedMessage, 1)
	b.Subscribe(models.TopicYamlGeneration, "yaml_generator", func(ctx context.Context, msg models.TypedMessage) {
		received <- msg
	})

	rec := doJSON(s, http.MethodPost, "/api/v1/ui-analysis", SubmitUIAnalysisRequest{
		TestCases: []models.TestCase{{ID: "tc-1", Endpoint: "/login"}},
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	select {
	case msg := <-received:
		require.NotNil(t, msg.TestCaseGenerationOutput)
		require.Len(t, msg.TestCaseGenerationOutput.TestCases, 1)
		assert.Equal(t, "tc-1", msg.TestCaseGenerationOutput.TestCases[0].ID)
	default:
		t.Fatal("expected test case generation output to be published")
	}
}

func TestSubmitExecutionHandlerAssignsDistinctSessionAndExecutionIDs(t *testing.T) {
	b := bus.New()
	s := &Server{router: gin.New(), bus: b, hub: NewHub()}
	s.setupRoutes()

	received := make(chan models.TypedMessage, 1)
	b.Subscribe(models.TopicExecutionRequest, "executor", func(ctx context.Context, msg models.TypedMessage) {
		received <- msg
	})

	rec := doJSON(s, http.MethodPost, "/api/v1/execution", SubmitExecutionRequest{
		Scripts: []models.ScriptArtifact{{Name: "test_one.py"}},
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	select {
	case msg := <-received:
		require.NotNil(t, msg.ExecutionInput)
		assert.NotEmpty(t, msg.Context.SessionID)
		assert.NotEmpty(t, msg.Context.ExecutionID)
		assert.NotEqual(t, msg.Context.SessionID, msg.Context.ExecutionID)
	default:
		t.Fatal("expected execution input to be published")
	}
}

func TestSubmitHandlersReportUnavailableAfterBusShutdown(t *testing.T) {
	b := bus.New()
	b.Shutdown()
	s := &Server{router: gin.New(), bus: b, hub: NewHub()}
	s.setupRoutes()

	rec := doJSON(s, http.MethodPost, "/api/v1/parse", SubmitParseRequest{Path: "x.yaml"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

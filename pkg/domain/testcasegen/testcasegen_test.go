package testcasegen

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipelinecore/orchestrator/pkg/models"
)

func TestHandleGeneratesCasesPerEndpoint(t *testing.T) {
	c := &Controller{}
	outbound, err := c.Handle(context.Background(), models.TypedMessage{
		AnalysisOutput: &models.AnalysisOutput{},
		TestCaseGenerationInput: &models.TestCaseGenerationInput{
			Endpoints: []models.Endpoint{
				{Method: "GET", Path: "/users"},
				{Method: "POST", Path: "/users", Auth: models.EndpointAuth{Required: true}},
			},
		},
	})
	require.NoError(t, err)
	require.Len(t, outbound, 2)

	assert.Equal(t, models.TopicStreamOutput, outbound[0].Topic)
	out := outbound[1].Message.TestCaseGenerationOutput
	require.NotNil(t, out)
	// GET endpoint: positive+negative+boundary = 3; POST with auth: +security = 4
	assert.Len(t, out.TestCases, 7)
	assert.Equal(t, 2, out.Coverage.TotalEndpoints)
	assert.Equal(t, float64(100), out.Coverage.CoveragePercentage)
}

func TestHandleMissingPayloadErrors(t *testing.T) {
	c := &Controller{}
	_, err := c.Handle(context.Background(), models.TypedMessage{})
	assert.Error(t, err)
}

func TestCoverageReportEmptyEndpointsReturnsZeroValue(t *testing.T) {
	report := coverageReport(nil, nil)
	assert.Equal(t, models.CoverageReport{}, report)
}

func TestGenerateForEndpointOmitsSecurityWhenNoAuth(t *testing.T) {
	cases := generateForEndpoint(models.Endpoint{Method: "GET", Path: "/public"})
	for _, c := range cases {
		assert.NotEqual(t, models.TestCaseSecurity, c.Type)
	}
}

func TestSuccessStatusCodeDiffersForPost(t *testing.T) {
	assert.Equal(t, "201", successStatusCode("POST"))
	assert.Equal(t, "200", successStatusCode("GET"))
}

package persistence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pipelinecore/orchestrator/pkg/models"
)

func fixedClock() int64 { return 1700000000 }

func TestHandleMissingPayloadErrors(t *testing.T) {
	c := &Controller{now: fixedClock}
	_, err := c.Handle(context.Background(), models.TypedMessage{})
	assert.Error(t, err)
}

func TestHandleParseOutputMissingDocumentIDErrors(t *testing.T) {
	c := &Controller{now: fixedClock}
	_, err := c.Handle(context.Background(), models.TypedMessage{
		ParseOutput: &models.ParseOutput{},
	})
	assert.ErrorContains(t, err, "DocumentID")
}

func TestHandleScriptGenerationOutputMissingDocumentIDErrors(t *testing.T) {
	c := &Controller{now: fixedClock}
	_, err := c.Handle(context.Background(), models.TypedMessage{
		ScriptGenerationOutput: &models.ScriptGenerationOutput{},
	})
	assert.ErrorContains(t, err, "DocumentID")
}

// Package persistence implements the data persistence agent: it writes
// parsed documents and generated scripts to durable storage, grounded on
// original_source's ApiDataPersistenceAgent (handle_persistence_request,
// handle_script_persistence_request).
package persistence

import (
	"context"
	"fmt"

	"github.com/pipelinecore/orchestrator/pkg/agent"
	"github.com/pipelinecore/orchestrator/pkg/bus"
	"github.com/pipelinecore/orchestrator/pkg/models"
	"github.com/pipelinecore/orchestrator/pkg/store"
)

// Clock abstracts wall-clock time for deterministic testing.
type Clock func() int64

// New constructs the persistence agent's BaseAgent.
func New(b *bus.Bus, s *store.Store, now Clock) *agent.BaseAgent {
	return agent.NewBaseAgent(models.AgentPersistence, models.TopicPersistRequest, b, &Controller{store: s, now: now})
}

// Controller implements agent.Controller for the persistence agent.
type Controller struct {
	store *store.Store
	now   Clock
}

// Handle persists whichever payload the message carries: a freshly parsed
// document, or a generated script set. Exactly one is expected per
// message; both paths are transactional at the store layer, so a partial
// write never leaves interfaces without their parameters/responses.
func (c *Controller) Handle(ctx context.Context, in models.TypedMessage) ([]agent.Outbound, error) {
	var content string
	switch {
	case in.ParseOutput != nil:
		if err := c.persistDocument(ctx, in); err != nil {
			return nil, err
		}
		content = fmt.Sprintf("persisted parsed document %s", in.Context.DocumentID)
	case in.ScriptGenerationOutput != nil:
		if err := c.persistScripts(ctx, in); err != nil {
			return nil, err
		}
		content = fmt.Sprintf("persisted %d script artifact(s) for document %s", len(in.ScriptGenerationOutput.Scripts), in.Context.DocumentID)
	default:
		return nil, fmt.Errorf("persistence: message carries neither ParseOutput nor ScriptGenerationOutput")
	}

	return []agent.Outbound{{
		Topic: models.TopicStreamOutput,
		Message: models.TypedMessage{
			Kind:    models.KindStreamResponse,
			Context: in.Context,
			StreamResponse: &models.StreamResponse{
				Source:  models.AgentPersistence,
				Content: content,
			},
		},
	}}, nil
}

func (c *Controller) persistDocument(ctx context.Context, in models.TypedMessage) error {
	docID := in.Context.DocumentID
	if docID == "" {
		return fmt.Errorf("persistence: ParseOutput message missing DocumentID")
	}
	ts := c.now()
	if err := c.store.UpsertParsedDocument(ctx, docID, in.ParseOutput.Info, *in.ParseOutput, ts, ts); err != nil {
		return fmt.Errorf("persistence: store document: %w", err)
	}
	return nil
}

func (c *Controller) persistScripts(ctx context.Context, in models.TypedMessage) error {
	docID := in.Context.DocumentID
	if docID == "" {
		return fmt.Errorf("persistence: ScriptGenerationOutput message missing DocumentID")
	}
	if err := c.store.UpsertScripts(ctx, docID, in.ScriptGenerationOutput.Scripts, c.now()); err != nil {
		return fmt.Errorf("persistence: store scripts: %w", err)
	}
	return nil
}

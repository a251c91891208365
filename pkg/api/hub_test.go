package api

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pipelinecore/orchestrator/pkg/models"
)

func TestHubConsumeQueuesBroadcast(t *testing.T) {
	h := NewHub()
	h.Consume(models.AgentDocParser, "chunk one", false)

	select {
	case msg := <-h.broadcast:
		assert.Equal(t, models.AgentDocParser, msg.Source)
		assert.Equal(t, "chunk one", msg.Content)
		assert.False(t, msg.IsFinal)
	default:
		t.Fatal("expected a queued broadcast message")
	}
}

func TestHubRegisterUnregisterTracksActiveConnections(t *testing.T) {
	h := NewHub()
	assert.Equal(t, 0, h.ActiveConnections())

	id := h.register(nil)
	assert.Equal(t, 1, h.ActiveConnections())

	h.unregister(id)
	assert.Equal(t, 0, h.ActiveConnections())
}

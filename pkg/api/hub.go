package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/pipelinecore/orchestrator/pkg/models"
)

// wsMessage is the envelope broadcast to every connected WebSocket client,
// mirroring the shape of tarsy's events.ConnectionManager broadcast
// payloads (a type tag plus a data blob) but carrying a StreamResponse
// instead of a database-backed event.
type wsMessage struct {
	Type      string                 `json:"type"`
	SessionID string                 `json:"session_id,omitempty"`
	Source    models.AgentType       `json:"source,omitempty"`
	Content   string                 `json:"content,omitempty"`
	IsFinal   bool                   `json:"is_final,omitempty"`
	Result    map[string]interface{} `json:"result,omitempty"`
}

// Hub fans out StreamResponse broadcasts to every connected WebSocket
// client. Grounded on tarsy's pkg/events.ConnectionManager: a
// mutex-guarded connection registry, snapshot-then-send broadcast (so a
// slow client never blocks registration), and a dedicated broadcast
// channel instead of direct locked sends from arbitrary goroutines.
type Hub struct {
	mu          sync.RWMutex
	connections map[string]*websocket.Conn
	broadcast   chan wsMessage
}

// NewHub creates an empty Hub. Call Run to start its broadcast loop.
func NewHub() *Hub {
	return &Hub{
		connections: make(map[string]*websocket.Conn),
		broadcast:   make(chan wsMessage, 256),
	}
}

// Run drains the broadcast channel until ctx is cancelled, sending each
// message to every currently registered connection.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-h.broadcast:
			h.send(ctx, msg)
		}
	}
}

// Consumer is the streamcollector.Consumer adapter: wire
// Server.Hub().Consume as the collector's flush callback so every flushed
// chunk reaches WebSocket clients without the collector importing
// anything WebSocket-specific.
func (h *Hub) Consume(source models.AgentType, content string, isFinal bool) {
	h.broadcast <- wsMessage{Type: "stream.chunk", Source: source, Content: content, IsFinal: isFinal}
}

func (h *Hub) send(ctx context.Context, msg wsMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("api: marshal ws message", "error", err)
		return
	}

	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.connections))
	for _, c := range h.connections {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
			slog.Warn("api: failed to write to websocket client", "error", err)
		}
	}
}

func (h *Hub) register(conn *websocket.Conn) string {
	id := uuid.NewString()
	h.mu.Lock()
	h.connections[id] = conn
	h.mu.Unlock()
	return id
}

func (h *Hub) unregister(id string) {
	h.mu.Lock()
	delete(h.connections, id)
	h.mu.Unlock()
}

// ActiveConnections reports the number of currently registered clients.
func (h *Hub) ActiveConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

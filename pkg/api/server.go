// Package api is the thin HTTP/WebSocket shell around the orchestration
// core: it exposes the three inbound entry points spec.md §6 names
// (submit_parse, submit_ui_analysis, submit_execution) as REST handles,
// forwards the stream collector's output to WebSocket clients, and reports
// per-agent health. Per spec.md §1 this package specifies only the
// collaborator contract — route design beyond what exercises the core is
// out of scope.
//
// Grounded on tarsy's cmd/tarsy/main.go (gin.Default router, gin.H JSON
// health responses) and pkg/api/server.go's Server-struct-with-setters
// shape, reduced to a single constructor since this repo's core has a
// fixed, small set of collaborators rather than tarsy's dozen optional
// services.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pipelinecore/orchestrator/pkg/agent"
	"github.com/pipelinecore/orchestrator/pkg/bus"
	"github.com/pipelinecore/orchestrator/pkg/models"
	"github.com/pipelinecore/orchestrator/pkg/runtime"
)

// Server is the orchestrator's HTTP API, wiring inbound requests onto the
// bus and the runtime's health snapshot, plus a WebSocket hub fed by the
// stream collector's consumer callback.
type Server struct {
	router  *gin.Engine
	http    *http.Server
	bus     *bus.Bus
	rt      *runtime.Runtime
	agents  map[models.AgentType]*agent.BaseAgent
	hub     *Hub
}

// NewServer builds the gin router and registers every route. agents is the
// set of domain agents the factory built, keyed by type, used only for the
// /health endpoint's per-agent metrics; it may be nil.
func NewServer(addr string, b *bus.Bus, rt *runtime.Runtime, agents map[models.AgentType]*agent.BaseAgent) *Server {
	router := gin.Default()
	s := &Server{
		router: router,
		http:   &http.Server{Addr: addr, Handler: router},
		bus:    b,
		rt:     rt,
		agents: agents,
		hub:    NewHub(),
	}
	s.setupRoutes()
	return s
}

// Hub returns the WebSocket hub so callers can wire it as the stream
// collector's consumer callback (streamcollector.Consumer).
func (s *Server) Hub() *Hub { return s.hub }

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/ws", s.wsHandler)

	v1 := s.router.Group("/api/v1")
	v1.POST("/parse", s.submitParseHandler)
	v1.POST("/ui-analysis", s.submitUIAnalysisHandler)
	v1.POST("/execution", s.submitExecutionHandler)
}

// Run starts the hub's broadcast loop and the HTTP server, blocking until
// ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	go s.hub.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("api: server failed: %w", err)
	}
}

// newSessionID mints a correlation id for a freshly submitted request,
// mirroring spec.md §3's "created by the entry point" MessageContext rule.
func newSessionID() string { return uuid.NewString() }

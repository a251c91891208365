package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/pipelinecore/orchestrator/pkg/agent"
	"github.com/pipelinecore/orchestrator/pkg/api"
	"github.com/pipelinecore/orchestrator/pkg/bus"
	"github.com/pipelinecore/orchestrator/pkg/config"
	"github.com/pipelinecore/orchestrator/pkg/domain/analyzer"
	"github.com/pipelinecore/orchestrator/pkg/domain/docparser"
	"github.com/pipelinecore/orchestrator/pkg/domain/logrecorder"
	"github.com/pipelinecore/orchestrator/pkg/domain/persistence"
	"github.com/pipelinecore/orchestrator/pkg/domain/playwrightexec"
	"github.com/pipelinecore/orchestrator/pkg/domain/scriptgen"
	"github.com/pipelinecore/orchestrator/pkg/domain/testcasegen"
	"github.com/pipelinecore/orchestrator/pkg/domain/yamlgen"
	"github.com/pipelinecore/orchestrator/pkg/executor"
	"github.com/pipelinecore/orchestrator/pkg/models"
	"github.com/pipelinecore/orchestrator/pkg/rag"
	"github.com/pipelinecore/orchestrator/pkg/runtime"
	"github.com/pipelinecore/orchestrator/pkg/sandbox"
	"github.com/pipelinecore/orchestrator/pkg/store"
	"github.com/pipelinecore/orchestrator/pkg/streamcollector"
	"github.com/pipelinecore/orchestrator/pkg/tracing"
)

// newServeCmd builds the "serve" subcommand: load config, wire the full
// bus/runtime/factory/collector/executor/sandbox stack described in
// spec.md §2, and block serving HTTP until terminated. Grounded on tarsy's
// main()'s linear "load config, connect database, build services, start
// server" sequencing.
func newServeCmd(configDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the orchestrator's agent pipelines and HTTP/WebSocket API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *configDir)
		},
	}
}

func runServe(ctx context.Context, configDir string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx, configDir)
	if err != nil {
		return fmt.Errorf("serve: load config: %w", err)
	}

	shutdownTracing, err := tracing.Init(ctx, "orchestrator")
	if err != nil {
		slog.Warn("serve: tracing disabled, continuing without spans", "error", err)
		shutdownTracing = func(context.Context) error { return nil }
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			slog.Warn("serve: tracing shutdown failed", "error", err)
		}
	}()

	var st *store.Store
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("serve: connect database: %w", err)
		}
		defer pool.Close()

		st = store.New(pool)
		if err := st.Init(ctx); err != nil {
			return fmt.Errorf("serve: init schema: %w", err)
		}
		slog.Info("serve: connected to database")
	} else {
		slog.Warn("serve: no database_url configured, persistence agent is not registered")
	}

	b := bus.NewWithCapacity(cfg.BusMailboxSize)
	rt := runtime.New()

	agents := registerDomainAgents(ctx, rt, b, cfg, st)

	server := api.NewServer(cfg.ListenAddr, b, rt, agents)
	collector := streamcollector.New(b, server.Hub().Consume)
	rt.Register(ctx, collector)

	slog.Info("serve: orchestrator starting", "listen_addr", cfg.ListenAddr, "workspace_root", cfg.WorkspaceRoot)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Run(ctx)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			slog.Error("serve: api server exited with error", "error", err)
		}
	}

	lingering := rt.Stop(15 * time.Second)
	if len(lingering) > 0 {
		slog.Warn("serve: agents did not stop within the grace period", "agents", lingering)
	}
	return nil
}

// registerDomainAgents builds the factory's static constructor registry
// (spec.md §4.3's AgentFactory), builds one instance per registered type,
// and attaches each to the runtime at its canonical topic
// (register_all). Extra per-agent collaborators (the RAG client, the
// sandbox semaphore, the store) are closed over in each constructor rather
// than threaded through Constructor's fixed signature, the same
// closure-over-dependencies shape tarsy's factory.go uses for its
// per-agent-type config overrides.
func registerDomainAgents(ctx context.Context, rt *runtime.Runtime, b *bus.Bus, cfg *config.Config, st *store.Store) map[models.AgentType]*agent.BaseAgent {
	ragCfg := config.LoadRAGConfig()
	var ragClient rag.Client = rag.NewStubClient()
	if ragCfg.BaseURL != "" {
		ragClient = rag.NewHTTPClient(ragCfg.BaseURL, ragCfg.RatePerSecond, ragCfg.Burst)
	}
	adsp := config.LoadAdsPowerConfig()
	maxConcurrency := adsp.MaxConcurrency
	if os.Getenv("ADSP_MAX_CONCURRENCY") == "" && cfg.SandboxMaxConcurrency > 0 {
		// No explicit env override: respect the config-file knob so
		// orchestrator.yaml's sandbox_max_concurrency still applies.
		maxConcurrency = cfg.SandboxMaxConcurrency
	}
	sem := sandbox.NewSemaphore(maxConcurrency)
	grid := sandbox.GridConfig{
		Cols:   adsp.GridCols,
		Rows:   adsp.GridRows,
		Margin: sandbox.DefaultGridConfig().Margin,
		Screen: sandbox.ScreenSize{Width: adsp.ScreenWidth, Height: adsp.ScreenHeight},
	}
	adspCtrl := sandbox.NewController(sandbox.ControllerConfig{
		BaseURL:        adsp.BaseURL,
		Token:          adsp.Token,
		RateLimitDelay: adsp.RateLimitDelay,
	})
	nowFn := func() int64 { return time.Now().UnixNano() }

	f := agent.NewFactory()
	f.Register(models.AgentDocParser, func(b *bus.Bus) *agent.BaseAgent { return docparser.New(b) })
	f.Register(models.AgentAnalyzer, func(b *bus.Bus) *agent.BaseAgent { return analyzer.New(b, ragClient) })
	f.Register(models.AgentTestCaseGenerator, func(b *bus.Bus) *agent.BaseAgent { return testcasegen.New(b) })
	f.Register(models.AgentScriptGenerator, func(b *bus.Bus) *agent.BaseAgent { return scriptgen.New(b) })
	f.Register(models.AgentYamlGenerator, func(b *bus.Bus) *agent.BaseAgent { return yamlgen.New(b) })
	f.Register(models.AgentExecutor, func(b *bus.Bus) *agent.BaseAgent { return executor.New(b, cfg.WorkspaceRoot) })
	f.Register(models.AgentPlaywrightExecutor, func(b *bus.Bus) *agent.BaseAgent {
		return playwrightexec.New(b, cfg.WorkspaceRoot, sem, grid, adspCtrl, adsp.ForceOnly)
	})
	f.Register(models.AgentLogRecorder, func(b *bus.Bus) *agent.BaseAgent { return logrecorder.New(b) })
	if st != nil {
		f.Register(models.AgentPersistence, func(b *bus.Bus) *agent.BaseAgent { return persistence.New(b, st, nowFn) })
	}

	types := []models.AgentType{
		models.AgentDocParser, models.AgentAnalyzer, models.AgentTestCaseGenerator,
		models.AgentScriptGenerator, models.AgentYamlGenerator, models.AgentExecutor,
		models.AgentPlaywrightExecutor, models.AgentLogRecorder,
	}
	if st != nil {
		types = append(types, models.AgentPersistence)
	}

	built := make(map[models.AgentType]*agent.BaseAgent, len(types))
	for _, t := range types {
		a, err := f.Build(t, b)
		if err != nil {
			// Registered just above; only reachable on a programming error.
			slog.Error("serve: failed to build agent", "agent_type", t, "error", err)
			continue
		}
		built[t] = a
		rt.Register(ctx, a)
	}
	return built
}

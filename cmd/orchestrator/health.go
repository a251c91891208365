package main

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/pipelinecore/orchestrator/pkg/config"
)

// newHealthCmd builds the "health" subcommand: a zero-dependency liveness
// probe that GETs a running instance's /health endpoint, for use from a
// container healthcheck or an operator's shell, mirroring goclaw's
// "doctor"-style diagnostic subcommands.
func newHealthCmd(configDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check a running orchestrator instance's /health endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Context(), *configDir)
			if err != nil {
				return fmt.Errorf("health: load config: %w", err)
			}

			client := http.Client{Timeout: 5 * time.Second}
			resp, err := client.Get("http://" + listenAddrForProbe(cfg.ListenAddr) + "/health")
			if err != nil {
				return fmt.Errorf("health: request failed: %w", err)
			}
			defer resp.Body.Close()

			body, _ := io.ReadAll(resp.Body)
			fmt.Println(string(body))
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("health: orchestrator reported status %d", resp.StatusCode)
			}
			return nil
		},
	}
}

// listenAddrForProbe rewrites a bind address like ":8080" to "localhost:8080"
// so the probe dials a loopback-reachable host instead of the wildcard bind
// address.
func listenAddrForProbe(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "localhost" + addr
	}
	return addr
}

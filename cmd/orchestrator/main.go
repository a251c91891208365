// Command orchestrator is the Multi-Agent Orchestration Core's process
// entry point: it loads configuration, wires the bus/runtime/factory/
// stream-collector/executor/sandbox stack described in spec.md §2, and
// serves the HTTP/WebSocket shell.
//
// Grounded on tarsy's cmd/tarsy/main.go (flag-based config-dir resolution,
// .env loading, gin router bring-up, ordered "connect database, build
// services, start server" sequencing) fused with vanducng-goclaw's
// cmd/root.go cobra command layout (a root command plus "serve"/"health"
// subcommands instead of tarsy's single-shot main).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags
// "-X main.version=...", matching goclaw's Version var convention.
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configDir string

	root := &cobra.Command{
		Use:   "orchestrator",
		Short: "Multi-agent orchestration core for the API and UI test pipelines",
	}
	root.PersistentFlags().StringVar(&configDir, "config-dir", getEnv("CONFIG_DIR", "./config"),
		"path to the directory holding orchestrator.yaml/.toml and .env")

	root.AddCommand(newServeCmd(&configDir))
	root.AddCommand(newHealthCmd(&configDir))
	root.AddCommand(newVersionCmd())

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("orchestrator %s\n", version)
		},
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Package config loads the orchestrator's static configuration: agent
// registry entries, chain definitions, queue/bus tuning, and the
// workspace root the Script Executor materializes scripts under.
//
// Grounded on tarsy's pkg/config/loader.go (the Initialize/load two-step
// entry point) and pkg/config/envexpand.go (os.ExpandEnv-based variable
// substitution), reduced to this repo's smaller configuration surface.
package config

import "time"

// Config is the orchestrator's resolved runtime configuration, ready for
// use once Load returns successfully.
type Config struct {
	// WorkspaceRoot is where the Script Executor and the UI test runner
	// materialize generated scripts, resolved by ResolveWorkspaceRoot: the
	// ORCHESTRATOR_WORKSPACE_ROOT env var, then the config file value, then
	// the "./workspace" default. No bundled examples directory is probed.
	WorkspaceRoot string `yaml:"workspace_root" toml:"workspace_root"`

	// BusMailboxSize is the per-agent mailbox buffer size pkg/bus
	// constructs subscriptions with.
	BusMailboxSize int `yaml:"bus_mailbox_size" toml:"bus_mailbox_size"`

	// ExecutionTimeout holds the configured per-run limit (300s default).
	// The executors do not read it: each run is bounded by its request's
	// ExecutionConfig.Timeout or the executor's own default.
	ExecutionTimeout        time.Duration `yaml:"-" toml:"-"`
	ExecutionTimeoutSeconds int           `yaml:"execution_timeout_seconds" toml:"execution_timeout_seconds"`

	// SandboxMaxConcurrency bounds pkg/sandbox's browser semaphore.
	SandboxMaxConcurrency int `yaml:"sandbox_max_concurrency" toml:"sandbox_max_concurrency"`

	// Agents and Chains are declarative agent/topic wiring entries. They
	// are parsed and merged by Load, but cmd/orchestrator wires agents to
	// their fixed canonical topics and does not read them.
	Agents map[string]AgentConfig `yaml:"agents" toml:"agents"`
	Chains map[string]ChainConfig `yaml:"agent_chains" toml:"agent_chains"`

	// DatabaseURL configures pkg/store's pgxpool, empty meaning
	// persistence is disabled.
	DatabaseURL string `yaml:"database_url" toml:"database_url"`

	// ListenAddr is pkg/api's HTTP bind address.
	ListenAddr string `yaml:"listen_addr" toml:"listen_addr"`
}

// AgentConfig declares one domain agent's topic wiring — mirrors tarsy's
// config.AgentConfig shape at the level this repo needs. It is not applied
// to the running agents.
type AgentConfig struct {
	Type     string `yaml:"type" toml:"type"`
	InTopic  string `yaml:"in_topic" toml:"in_topic"`
	OutTopic string `yaml:"out_topic" toml:"out_topic"`
	Enabled  *bool  `yaml:"enabled,omitempty" toml:"enabled,omitempty"`
}

// ChainConfig declares an ordered sequence of agent types forming one
// pipeline, mirroring tarsy's config.ChainConfig.
type ChainConfig struct {
	Name  string   `yaml:"name" toml:"name"`
	Steps []string `yaml:"steps" toml:"steps"`
}

// Defaults returns the hard defaults applied when neither a config file
// nor an env var supplies a value.
func Defaults() Config {
	return Config{
		WorkspaceRoot:           "./workspace",
		BusMailboxSize:          64,
		ExecutionTimeout:        300 * time.Second,
		ExecutionTimeoutSeconds: 300,
		SandboxMaxConcurrency:   15,
		ListenAddr:              ":8080",
	}
}

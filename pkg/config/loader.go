package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrConfigNotFound is returned when neither orchestrator.yaml nor
// orchestrator.toml exists in configDir.
var ErrConfigNotFound = errors.New("config: no orchestrator.yaml or orchestrator.toml found")

// Load is the orchestrator's configuration entry point, mirroring tarsy's
// Initialize: load a local .env, read the config file, expand environment
// variables, parse, and layer the result over hard defaults.
//
// configDir may be empty, in which case only defaults and env vars apply —
// useful for tests and for the CLI's zero-config fast path.
func Load(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)

	if envPath := filepath.Join(configDir, ".env"); configDir != "" {
		if _, err := os.Stat(envPath); err == nil {
			if err := godotenv.Load(envPath); err != nil {
				log.Warn("failed to load .env file", "path", envPath, "error", err)
			}
		}
	}

	cfg := Defaults()
	if configDir != "" {
		loaded, err := loadFile(configDir)
		if err != nil && !errors.Is(err, ErrConfigNotFound) {
			return nil, fmt.Errorf("config: load %s: %w", configDir, err)
		}
		if loaded != nil {
			applyOverrides(&cfg, loaded)
		}
	}

	cfg.WorkspaceRoot = ResolveWorkspaceRoot(cfg.WorkspaceRoot, "./workspace")
	if cfg.ExecutionTimeoutSeconds > 0 {
		cfg.ExecutionTimeout = time.Duration(cfg.ExecutionTimeoutSeconds) * time.Second
	}

	log.Info("configuration loaded",
		"workspace_root", cfg.WorkspaceRoot,
		"agents", len(cfg.Agents),
		"chains", len(cfg.Chains))

	_ = ctx // reserved for future context-aware remote config sources
	return &cfg, nil
}

// loadFile reads orchestrator.yaml (preferred) or orchestrator.toml from
// configDir, expanding env vars in the raw bytes before parsing, the same
// order tarsy's configLoader.loadYAML applies.
func loadFile(configDir string) (*Config, error) {
	yamlPath := filepath.Join(configDir, "orchestrator.yaml")
	tomlPath := filepath.Join(configDir, "orchestrator.toml")

	switch {
	case fileExists(yamlPath):
		return parseYAML(yamlPath)
	case fileExists(tomlPath):
		return parseTOML(tomlPath)
	default:
		return nil, ErrConfigNotFound
	}
}

func parseYAML(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	data = ExpandEnv(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: invalid yaml: %w", err)
	}
	return &cfg, nil
}

func parseTOML(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	data = ExpandEnv(data)

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: invalid toml: %w", err)
	}
	return &cfg, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// applyOverrides layers non-zero fields from loaded onto base, the same
// "user config overrides built-in defaults" rule tarsy's loader applies via
// mergo, written out by hand since this repo's Config is small enough that
// a merge library earns its keep only at tarsy's larger configuration
// surface.
func applyOverrides(base *Config, loaded *Config) {
	if loaded.WorkspaceRoot != "" {
		base.WorkspaceRoot = loaded.WorkspaceRoot
	}
	if loaded.BusMailboxSize > 0 {
		base.BusMailboxSize = loaded.BusMailboxSize
	}
	if loaded.ExecutionTimeoutSeconds > 0 {
		base.ExecutionTimeoutSeconds = loaded.ExecutionTimeoutSeconds
	}
	if loaded.SandboxMaxConcurrency > 0 {
		base.SandboxMaxConcurrency = loaded.SandboxMaxConcurrency
	}
	if loaded.DatabaseURL != "" {
		base.DatabaseURL = loaded.DatabaseURL
	}
	if loaded.ListenAddr != "" {
		base.ListenAddr = loaded.ListenAddr
	}
	if len(loaded.Agents) > 0 {
		if base.Agents == nil {
			base.Agents = make(map[string]AgentConfig, len(loaded.Agents))
		}
		for k, v := range loaded.Agents {
			base.Agents[k] = v
		}
	}
	if len(loaded.Chains) > 0 {
		if base.Chains == nil {
			base.Chains = make(map[string]ChainConfig, len(loaded.Chains))
		}
		for k, v := range loaded.Chains {
			base.Chains[k] = v
		}
	}
}

// ResolveWorkspaceRoot implements spec.md §4.7's workspace resolution
// order: the ORCHESTRATOR_WORKSPACE_ROOT env var wins if set, else the
// value already resolved from config, else bundledDefault.
func ResolveWorkspaceRoot(fromConfig, bundledDefault string) string {
	if v := strings.TrimSpace(os.Getenv("ORCHESTRATOR_WORKSPACE_ROOT")); v != "" {
		return v
	}
	if fromConfig != "" {
		return fromConfig
	}
	return bundledDefault
}

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreNonZero(t *testing.T) {
	cfg := Defaults()
	assert.NotEmpty(t, cfg.WorkspaceRoot)
	assert.Positive(t, cfg.BusMailboxSize)
	assert.Positive(t, cfg.ExecutionTimeoutSeconds)
	assert.Positive(t, cfg.SandboxMaxConcurrency)
}

func TestExpandEnvSubstitutesBraceAndBareForms(t *testing.T) {
	t.Setenv("ORCH_TEST_VAR", "resolved")
	out := ExpandEnv([]byte("value: ${ORCH_TEST_VAR}/$ORCH_TEST_VAR"))
	assert.Equal(t, "value: resolved/resolved", string(out))
}

func TestExpandEnvLeavesMissingVarsEmpty(t *testing.T) {
	os.Unsetenv("ORCH_TEST_MISSING")
	out := ExpandEnv([]byte("value: ${ORCH_TEST_MISSING}"))
	assert.Equal(t, "value: ", string(out))
}

func TestResolveWorkspaceRootPrefersEnvVar(t *testing.T) {
	t.Setenv("ORCHESTRATOR_WORKSPACE_ROOT", "/env/workspace")
	got := ResolveWorkspaceRoot("/config/workspace", "/bundled/workspace")
	assert.Equal(t, "/env/workspace", got)
}

func TestResolveWorkspaceRootFallsBackToConfigThenDefault(t *testing.T) {
	os.Unsetenv("ORCHESTRATOR_WORKSPACE_ROOT")
	assert.Equal(t, "/config/workspace", ResolveWorkspaceRoot("/config/workspace", "/bundled/workspace"))
	assert.Equal(t, "/bundled/workspace", ResolveWorkspaceRoot("", "/bundled/workspace"))
}

func TestLoadWithNoConfigDirReturnsDefaults(t *testing.T) {
	os.Unsetenv("ORCHESTRATOR_WORKSPACE_ROOT")
	cfg, err := Load(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "./workspace", cfg.WorkspaceRoot)
}

func TestLoadParsesYAMLConfigAndOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	content := `
workspace_root: ./custom-workspace
bus_mailbox_size: 128
agents:
  executor:
    type: executor
    in_topic: execution.request
    out_topic: log.record
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "orchestrator.yaml"), []byte(content), 0o644))

	cfg, err := Load(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, "./custom-workspace", cfg.WorkspaceRoot)
	assert.Equal(t, 128, cfg.BusMailboxSize)
	require.Contains(t, cfg.Agents, "executor")
	assert.Equal(t, "execution.request", cfg.Agents["executor"].InTopic)
}

func TestLoadParsesTOMLConfig(t *testing.T) {
	dir := t.TempDir()
	content := "workspace_root = \"./toml-workspace\"\nsandbox_max_concurrency = 7\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "orchestrator.toml"), []byte(content), 0o644))

	cfg, err := Load(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, "./toml-workspace", cfg.WorkspaceRoot)
	assert.Equal(t, 7, cfg.SandboxMaxConcurrency)
}

func TestLoadExpandsEnvVarsInConfigFile(t *testing.T) {
	t.Setenv("ORCH_TEST_DB_URL", "postgres://test")
	dir := t.TempDir()
	content := "database_url: ${ORCH_TEST_DB_URL}\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "orchestrator.yaml"), []byte(content), 0o644))

	cfg, err := Load(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, "postgres://test", cfg.DatabaseURL)
}

func TestWatchReturnsWhenContextCancelled(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Watch(ctx, dir, func(*Config, error) {})
	assert.NoError(t, err)
}

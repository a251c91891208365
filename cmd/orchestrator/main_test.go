package main

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRootCmdRegistersSubcommands(t *testing.T) {
	root := newRootCmd()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "serve")
	assert.Contains(t, names, "health")
	assert.Contains(t, names, "version")
}

func TestGetEnvFallsBackWhenUnset(t *testing.T) {
	os.Unsetenv("ORCHESTRATOR_TEST_VAR")
	assert.Equal(t, "fallback", getEnv("ORCHESTRATOR_TEST_VAR", "fallback"))

	os.Setenv("ORCHESTRATOR_TEST_VAR", "set")
	defer os.Unsetenv("ORCHESTRATOR_TEST_VAR")
	assert.Equal(t, "set", getEnv("ORCHESTRATOR_TEST_VAR", "fallback"))
}

func TestListenAddrForProbeRewritesWildcardBind(t *testing.T) {
	assert.Equal(t, "localhost:8080", listenAddrForProbe(":8080"))
	assert.Equal(t, "example.com:8080", listenAddrForProbe("example.com:8080"))
}

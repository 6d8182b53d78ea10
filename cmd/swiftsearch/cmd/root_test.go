package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_ShowsHelp(t *testing.T) {
	// Given: a root command
	isolate(t)

	// When: executing with --help
	out, err := run(t, "--help")

	// Then: it should show usage with every command
	require.NoError(t, err)
	assert.Contains(t, out, "swiftsearch")
	for _, name := range []string{"serve", "stop", "status", "index", "search", "encrypt",
		"timestamp", "config", "check-disk", "doctor", "validate", "logs", "version"} {
		assert.Contains(t, out, name)
	}
}

func TestRootCmd_Version(t *testing.T) {
	isolate(t)

	out, err := run(t, "--version")

	require.NoError(t, err)
	assert.Contains(t, out, "swiftsearch version")
}

func TestRootCmd_UnknownCommand(t *testing.T) {
	isolate(t)

	_, err := run(t, "reindex-everything")

	assert.Error(t, err)
}

func TestLoadConfig_BadFileIsConfigError(t *testing.T) {
	// Given: --config names a missing file
	isolate(t)
	configPath = "/nonexistent/swiftsearch.yaml"
	t.Cleanup(func() { configPath = "" })

	// When: loading
	_, err := loadConfig()

	// Then: the error carries a hint
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load configuration")
}

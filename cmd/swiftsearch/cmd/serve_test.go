package cmd

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/swiftsearch/internal/config"
	"github.com/Aman-CERP/swiftsearch/internal/daemon"
	"github.com/Aman-CERP/swiftsearch/internal/telemetry"
	"github.com/Aman-CERP/swiftsearch/internal/userconfig"
)

func TestServeLogConfig(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Logging.MaxFiles = 9

	lc := serveLogConfig(cfg)
	assert.True(t, lc.WriteToStderr)
	assert.Equal(t, "info", lc.Level)
	assert.Equal(t, 9, lc.MaxFiles)

	// MCP mode keeps stderr quiet
	cfg.MCP.Enabled = true
	cfg.Logging.Level = "warn"
	lc = serveLogConfig(cfg)
	assert.False(t, lc.WriteToStderr)
	assert.Equal(t, "warn", lc.Level)
}

func TestPreflightTarget(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Engine.LibraryPath = "/opt/lib.so"

	// Given: defaults
	target := preflightTarget(cfg)

	// Then: only the index dir matters
	assert.Equal(t, cfg.Paths.IndexDir, target.IndexDir)
	assert.Empty(t, target.LibraryPath)
	assert.Empty(t, target.ArchiveTools)

	// Given: the native engine and command archiver
	cfg.Engine.Backend = "native"
	cfg.Index.ArchiveMode = "command"
	target = preflightTarget(cfg)

	// Then: the library and both tools are checked
	assert.Equal(t, "/opt/lib.so", target.LibraryPath)
	assert.Equal(t, []string{"tar", "lz4"}, target.ArchiveTools)
}

func TestBuildManagerDeps(t *testing.T) {
	dir := t.TempDir()
	cfg := config.NewConfig()
	cfg.Paths.IndexDir = filepath.Join(dir, "index")
	store := userconfig.New(filepath.Join(dir, "users.json"), cfg.Index.Version, nil)

	deps, err := buildManagerDeps(cfg, store, nil)

	require.NoError(t, err)
	assert.NotNil(t, deps.Slot)
	assert.NotNil(t, deps.Archiver)
	assert.NotNil(t, deps.Validator)
	assert.NotNil(t, deps.Queries)
	assert.Equal(t, cfg.Paths.IndexDir, deps.Paths.IndexDir)
	assert.Equal(t, cfg.Index.SearchPeriodDuration(), deps.Limits.SearchPeriod)
	assert.Equal(t, cfg.Index.FlushInterval(), deps.Limits.FlushInterval)
}

func TestBuildManagerDeps_BadBackend(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Engine.Backend = "lucene"

	_, err := buildManagerDeps(cfg, nil, nil)

	assert.Error(t, err)
}

func TestMetricsMux(t *testing.T) {
	srv := httptest.NewServer(metricsMux(telemetry.NewMetrics()))
	t.Cleanup(srv.Close)

	for _, path := range []string{"/metrics", "/healthz"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestIndexSources_NoIndex(t *testing.T) {
	b := daemon.NewBridge(daemon.BridgeOptions{})

	assert.Nil(t, mcpSource(b)())
	assert.Equal(t, telemetry.Status{}, indexStatus(b)())
}

func TestIgnoreCanceled(t *testing.T) {
	assert.NoError(t, ignoreCanceled(nil))
	assert.NoError(t, ignoreCanceled(context.Canceled))
	boom := errors.New("boom")
	assert.Same(t, boom, ignoreCanceled(boom))
}

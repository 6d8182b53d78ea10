package cmd

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/swiftsearch/internal/config"
	"github.com/Aman-CERP/swiftsearch/internal/ui"
)

func TestCollectStatus_NoDaemon(t *testing.T) {
	// Given: an index directory with two files and no daemon
	home := isolate(t)
	dir := filepath.Join(home, "index")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "u1"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a"), make([]byte, 100), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "u1", "b"), make([]byte, 50), 0o644))
	cfg, err := config.Load("")
	require.NoError(t, err)

	// When: collecting status
	info := collectStatus(context.Background(), cfg)

	// Then: the daemon is stopped and local facts are filled in
	assert.False(t, info.Running)
	assert.Equal(t, filepath.Join(home, "s.sock"), info.Socket)
	assert.Equal(t, dir, info.IndexDir)
	assert.Equal(t, int64(150), info.IndexSize)
	assert.Equal(t, "bleve", info.Engine)
	assert.False(t, info.Initialized)
}

func TestStatusCmd_JSON(t *testing.T) {
	isolate(t)

	out, err := run(t, "status", "--json")

	require.NoError(t, err)
	var info ui.StatusInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.False(t, info.Running)
}

func TestStatusCmd_Text(t *testing.T) {
	isolate(t)

	out, err := run(t, "status")

	require.NoError(t, err)
	assert.Contains(t, out, "swiftsearch status")
	assert.Contains(t, out, "stopped")
}

func TestParseMillis(t *testing.T) {
	assert.True(t, parseMillis("").IsZero())
	assert.True(t, parseMillis("0").IsZero())
	assert.True(t, parseMillis("abc").IsZero())
	assert.Equal(t, int64(1700000000000), parseMillis("1700000000000").UnixMilli())
}

func TestDirSize_Missing(t *testing.T) {
	assert.Zero(t, dirSize(filepath.Join(t.TempDir(), "nope")))
}

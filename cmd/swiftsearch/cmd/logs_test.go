package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	amerrors "github.com/Aman-CERP/swiftsearch/internal/errors"
)

func writeLog(t *testing.T) string {
	t.Helper()
	lines := []string{
		`{"time":"2026-01-02T10:00:00Z","level":"INFO","msg":"daemon_started","pid":1}`,
		`{"time":"2026-01-02T10:00:01Z","level":"WARN","msg":"collector_busy"}`,
		`{"time":"2026-01-02T10:00:02Z","level":"ERROR","msg":"collector_flush_failed","user_id":"u1"}`,
		`{"time":"2026-01-02T10:00:03Z","level":"INFO","msg":"search_completed"}`,
	}
	path := filepath.Join(t.TempDir(), "server.log")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func TestLogsCmd_TailAndLevel(t *testing.T) {
	// Given: a log with mixed levels
	isolate(t)
	path := writeLog(t)

	// When: asking for warnings and above
	out, err := run(t, "logs", "--file", path, "--level", "warn")

	// Then: only those are printed, oldest first
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "collector_busy")
	assert.Contains(t, lines[1], "collector_flush_failed user_id=u1")
}

func TestLogsCmd_FilterThenLimit(t *testing.T) {
	isolate(t)
	path := writeLog(t)

	out, err := run(t, "logs", "--file", path, "--filter", "collector_", "-n", "1")

	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "\n"))
	assert.Contains(t, out, "collector_flush_failed")
}

func TestLogsCmd_Errors(t *testing.T) {
	isolate(t)

	_, err := run(t, "logs", "--filter", "(")
	assert.True(t, amerrors.HasCode(err, amerrors.ErrCodeInvalidInput), "got %v", err)

	_, err = run(t, "logs")
	assert.True(t, amerrors.HasCode(err, amerrors.ErrCodeFileNotFound), "got %v", err)
}

package logging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLogPath(t *testing.T) {
	path := DefaultLogPath()
	assert.True(t, strings.HasSuffix(path, filepath.Join(".swiftsearch", "logs", "server.log")))
}

func TestConfigs(t *testing.T) {
	assert.Equal(t, "info", DefaultConfig().Level)
	assert.True(t, DefaultConfig().WriteToStderr)
	assert.Equal(t, "debug", DebugConfig().Level)

	stdio := StdioConfig("warn")
	assert.Equal(t, "warn", stdio.Level)
	assert.False(t, stdio.WriteToStderr)
}

func TestSetup_WritesJSONToFile(t *testing.T) {
	// Given: a file-only configuration in a temp dir
	path := filepath.Join(t.TempDir(), "logs", "server.log")
	cfg := Config{Level: "info", FilePath: path, MaxSizeMB: 1, MaxFiles: 2}

	// When: logging below and at the threshold
	logger, cleanup, err := Setup(cfg)
	require.NoError(t, err)
	logger.Debug("hidden_event")
	logger.Info("index_ready", slog.String("user_id", "u1"))
	cleanup()

	// Then: only the info record is written, as JSON
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden_event")
	assert.Contains(t, string(data), `"msg":"index_ready"`)
	assert.Contains(t, string(data), `"user_id":"u1"`)
}

func TestLevelFromString(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, LevelFromString(in), in)
	}
}

func TestOrDefault(t *testing.T) {
	assert.Equal(t, slog.Default(), OrDefault(nil))

	l := slog.New(slog.NewTextHandler(os.Stderr, nil))
	assert.Same(t, l, OrDefault(l))
}

func TestFindLogFile(t *testing.T) {
	_, err := FindLogFile(filepath.Join(t.TempDir(), "missing.log"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "x.log")
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0o644))
	got, err := FindLogFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, got)
}

func TestRotatingWriter_Rotation(t *testing.T) {
	// Given: a writer with a 1MB limit and two kept files
	path := filepath.Join(t.TempDir(), "server.log")
	w, err := NewRotatingWriter(path, 1, 2)
	require.NoError(t, err)
	w.SetImmediateSync(false)
	defer func() { _ = w.Close() }()

	// When: writing just over three files worth of data
	chunk := []byte(strings.Repeat("x", 512*1024))
	for i := 0; i < 7; i++ {
		_, err := w.Write(chunk)
		require.NoError(t, err)
	}

	// Then: current file plus .1 and .2 exist, .3 does not
	assert.FileExists(t, path)
	assert.FileExists(t, path+".1")
	assert.FileExists(t, path+".2")
	assert.NoFileExists(t, path+".3")
}

func TestRotatingWriter_ConcurrentWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")
	w, err := NewRotatingWriter(path, 1, 2)
	require.NoError(t, err)
	w.SetImmediateSync(false)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_, _ = fmt.Fprintf(w, "line %d-%d\n", i, j)
			}
		}(i)
	}
	wg.Wait()
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 400, strings.Count(string(data), "\n"))
}

func TestTail_FiltersByLevelAndKeepsLastN(t *testing.T) {
	// Given: a log file with mixed levels and one garbage line
	path := filepath.Join(t.TempDir(), "server.log")
	lines := []string{
		`{"time":"2026-01-02T10:00:00Z","level":"DEBUG","msg":"a"}`,
		`{"time":"2026-01-02T10:00:01Z","level":"INFO","msg":"b"}`,
		`{"time":"2026-01-02T10:00:02Z","level":"WARN","msg":"c","user_id":"u1"}`,
		`not json`,
		`{"time":"2026-01-02T10:00:03Z","level":"ERROR","msg":"d"}`,
	}
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))

	// When: tailing the last 2 entries at warn and above
	entries, err := Tail(path, 2, "warn")
	require.NoError(t, err)

	// Then: the raw line is kept and the error entry is last
	require.Len(t, entries, 2)
	assert.False(t, entries[0].IsValid)
	assert.Equal(t, "d", entries[1].Msg)

	all, err := Tail(path, 0, "")
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestFormatEntry(t *testing.T) {
	entry := ParseLine(`{"time":"2026-01-02T10:00:02Z","level":"WARN","msg":"index_disabled","reason":"disk","user_id":"u1"}`)
	require.True(t, entry.IsValid)

	assert.Equal(t, "10:00:02.000 WARN  index_disabled reason=disk user_id=u1", FormatEntry(entry))
	assert.Equal(t, "garbage", FormatEntry(ParseLine("garbage")))
}

package daemon

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/swiftsearch/internal/config"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotEmpty(t, cfg.SocketPath, "SocketPath should not be empty")
	assert.NotEmpty(t, cfg.PIDPath, "PIDPath should not be empty")
	assert.Greater(t, cfg.Timeout, time.Duration(0), "Timeout should be positive")
	assert.Greater(t, cfg.ShutdownGracePeriod, time.Duration(0), "ShutdownGracePeriod should be positive")
}

func TestDefaultConfig_PathsInBaseDir(t *testing.T) {
	cfg := DefaultConfig()

	base := config.BaseDir()
	assert.True(t, strings.HasPrefix(cfg.SocketPath, base), "SocketPath should be in the base dir")
	assert.True(t, strings.HasPrefix(cfg.PIDPath, base), "PIDPath should be in the base dir")
}

func TestFromConfig(t *testing.T) {
	// Given: a daemon section with overrides and an invalid timeout
	section := config.DaemonConfig{SocketPath: "/tmp/x.sock", Timeout: "bogus"}

	// When: converting it
	cfg := FromConfig(section)

	// Then: set values win and the rest keep defaults
	assert.Equal(t, "/tmp/x.sock", cfg.SocketPath)
	assert.Equal(t, DefaultConfig().PIDPath, cfg.PIDPath)
	assert.Equal(t, 30*time.Second, cfg.Timeout)

	cfg = FromConfig(config.DaemonConfig{Timeout: "2s"})
	assert.Equal(t, 2*time.Second, cfg.Timeout)
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{
		SocketPath:          "/tmp/test.sock",
		PIDPath:             "/tmp/test.pid",
		Timeout:             30 * time.Second,
		ShutdownGracePeriod: 10 * time.Second,
	}
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"valid", func(*Config) {}, ""},
		{"empty socket path", func(c *Config) { c.SocketPath = "" }, "socket path"},
		{"empty pid path", func(c *Config) { c.PIDPath = "" }, "PID path"},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, "timeout"},
		{"negative grace", func(c *Config) { c.ShutdownGracePeriod = -time.Second }, "grace period"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestConfig_EnsureDir(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := Config{
		SocketPath: filepath.Join(tmpDir, "sock", "d.sock"),
		PIDPath:    filepath.Join(tmpDir, "pid", "d.pid"),
	}

	require.NoError(t, cfg.EnsureDir())

	for _, dir := range []string{filepath.Dir(cfg.SocketPath), filepath.Dir(cfg.PIDPath)} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

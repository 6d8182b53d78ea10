// Package daemon serves the search bridge over a Unix socket.
//
// A front-end drives one index through JSON-RPC commands: initialSearch
// builds the per-user index manager, later commands index, search and
// encrypt through it. Subscribed connections receive readiness changes.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Aman-CERP/swiftsearch/internal/config"
)

// Config holds configuration for the daemon service.
type Config struct {
	// SocketPath is the Unix domain socket path for IPC.
	// Default: ~/.swiftsearch/swiftsearch.sock
	SocketPath string

	// PIDPath is the file path for storing the daemon's process ID.
	// Default: ~/.swiftsearch/swiftsearch.pid
	PIDPath string

	// Timeout bounds client calls and idle server connections.
	// Default: 30s
	Timeout time.Duration

	// ShutdownGracePeriod is the time to wait for graceful shutdown.
	// Default: 10s
	ShutdownGracePeriod time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	base := config.BaseDir()
	return Config{
		SocketPath:          filepath.Join(base, "swiftsearch.sock"),
		PIDPath:             filepath.Join(base, "swiftsearch.pid"),
		Timeout:             30 * time.Second,
		ShutdownGracePeriod: 10 * time.Second,
	}
}

// FromConfig overlays the daemon section of the service config on the
// defaults.
func FromConfig(c config.DaemonConfig) Config {
	cfg := DefaultConfig()
	if c.SocketPath != "" {
		cfg.SocketPath = c.SocketPath
	}
	if c.PIDPath != "" {
		cfg.PIDPath = c.PIDPath
	}
	if d := c.TimeoutDuration(); d > 0 {
		cfg.Timeout = d
	}
	return cfg
}

// Validate checks that the configuration is valid.
func (c Config) Validate() error {
	if c.SocketPath == "" {
		return fmt.Errorf("socket path cannot be empty")
	}
	if c.PIDPath == "" {
		return fmt.Errorf("PID path cannot be empty")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.ShutdownGracePeriod <= 0 {
		return fmt.Errorf("shutdown grace period must be positive")
	}
	return nil
}

// EnsureDir creates the directory for socket and PID files if it doesn't exist.
func (c Config) EnsureDir() error {
	socketDir := filepath.Dir(c.SocketPath)
	if err := os.MkdirAll(socketDir, 0o700); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}

	// PID path might live elsewhere
	pidDir := filepath.Dir(c.PIDPath)
	if pidDir != socketDir {
		if err := os.MkdirAll(pidDir, 0o700); err != nil {
			return fmt.Errorf("failed to create PID directory: %w", err)
		}
	}

	return nil
}

// Package config loads the swiftsearch service configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Index constants shared by every component that touches persisted state.
const (
	IndexVersion       = "v3"
	KeyLength          = 32
	MinimumDiskSpace   = 300000000
	PrefixName         = "search_index"
	MainIndex          = "mainindex"
	ArchiveExt         = ".tar.lz4"
	UserConfigFileName = "search_users_config.json"

	SortByScore = 0
	SortByDate  = 1

	MaximumDate = "9999999999999"
	MinimumDate = "0000000000000"

	DefaultLimit  = 25
	DefaultOffset = 0
)

const (
	// RealTimeIndexingTime is the collector debounce window.
	RealTimeIndexingTime = 60 * time.Second
	// SearchPeriod bounds how far back searches and loaded indexes reach.
	SearchPeriod = 3 * 31 * 24 * time.Hour
)

// Config is the complete service configuration.
type Config struct {
	Version   int             `yaml:"version" json:"version"`
	Paths     PathsConfig     `yaml:"paths" json:"paths"`
	Engine    EngineConfig    `yaml:"engine" json:"engine"`
	Index     IndexConfig     `yaml:"index" json:"index"`
	Validator ValidatorConfig `yaml:"validator" json:"validator"`
	Daemon    DaemonConfig    `yaml:"daemon" json:"daemon"`
	Metrics   MetricsConfig   `yaml:"metrics" json:"metrics"`
	MCP       MCPConfig       `yaml:"mcp" json:"mcp"`
	Search    SearchConfig    `yaml:"search" json:"search"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
}

// PathsConfig locates persisted state.
type PathsConfig struct {
	// IndexDir holds one working directory and one archive per user.
	IndexDir string `yaml:"index_dir" json:"index_dir"`
	// UserConfigFile is the shared per-user JSON document.
	UserConfigFile string `yaml:"user_config_file" json:"user_config_file"`
	// DictPath is handed to the engine on init. Optional.
	DictPath string `yaml:"dict_path" json:"dict_path"`
}

// EngineConfig selects the engine backend.
type EngineConfig struct {
	// Backend is one of bleve, sqlite, native.
	Backend string `yaml:"backend" json:"backend"`
	// LibraryPath is the shared library loaded by the native backend.
	LibraryPath string `yaml:"library_path" json:"library_path"`
}

// IndexConfig tunes the index lifecycle.
type IndexConfig struct {
	Version          string `yaml:"version" json:"version"`
	MinimumDiskSpace int64  `yaml:"minimum_disk_space" json:"minimum_disk_space"`
	// RealTimeFlushInterval is a duration string, e.g. "60s".
	RealTimeFlushInterval string `yaml:"realtime_flush_interval" json:"realtime_flush_interval"`
	// SearchPeriod is a duration string, e.g. "2232h".
	SearchPeriod string `yaml:"search_period" json:"search_period"`
	// ArchiveMode is native (in-process tar+lz4) or command (tar | lz4 subprocesses).
	ArchiveMode    string `yaml:"archive_mode" json:"archive_mode"`
	TarPath        string `yaml:"tar_path" json:"tar_path"`
	LZ4Path        string `yaml:"lz4_path" json:"lz4_path"`
	ArchiveTimeout string `yaml:"archive_timeout" json:"archive_timeout"`
}

// ValidatorConfig selects the corruption validator.
type ValidatorConfig struct {
	// Mode is snapshot, command or none.
	Mode    string `yaml:"mode" json:"mode"`
	Path    string `yaml:"path" json:"path"`
	Timeout string `yaml:"timeout" json:"timeout"`
}

// DaemonConfig configures the command-surface socket.
type DaemonConfig struct {
	SocketPath string `yaml:"socket_path" json:"socket_path"`
	PIDPath    string `yaml:"pid_path" json:"pid_path"`
	Timeout    string `yaml:"timeout" json:"timeout"`
}

// MetricsConfig configures the Prometheus endpoint. Empty Addr disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// MCPConfig toggles the MCP stdio surface in serve.
type MCPConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// SearchConfig tunes query construction.
type SearchConfig struct {
	// QueryCacheSize is the LRU size for constructed queries. 0 disables it.
	QueryCacheSize int `yaml:"query_cache_size" json:"query_cache_size"`
}

// LoggingConfig mirrors logging.Config for the file sink.
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" json:"max_files"`
}

// NewConfig creates a Config with defaults rooted at ~/.swiftsearch.
func NewConfig() *Config {
	base := BaseDir()
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			IndexDir:       filepath.Join(base, "index"),
			UserConfigFile: filepath.Join(base, UserConfigFileName),
		},
		Engine: EngineConfig{
			Backend: "bleve",
		},
		Index: IndexConfig{
			Version:               IndexVersion,
			MinimumDiskSpace:      MinimumDiskSpace,
			RealTimeFlushInterval: RealTimeIndexingTime.String(),
			SearchPeriod:          SearchPeriod.String(),
			ArchiveMode:           "native",
			TarPath:               "tar",
			LZ4Path:               "lz4",
			ArchiveTimeout:        "5m",
		},
		Validator: ValidatorConfig{
			Mode:    "snapshot",
			Timeout: "1m",
		},
		Daemon: DaemonConfig{
			SocketPath: filepath.Join(base, "swiftsearch.sock"),
			PIDPath:    filepath.Join(base, "swiftsearch.pid"),
			Timeout:    "30s",
		},
		Search: SearchConfig{
			QueryCacheSize: 256,
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
	}
}

// BaseDir returns ~/.swiftsearch, or a temp-dir fallback without a home.
func BaseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".swiftsearch")
	}
	return filepath.Join(home, ".swiftsearch")
}

// GetUserConfigPath returns the user configuration file:
//   - $XDG_CONFIG_HOME/swiftsearch/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/swiftsearch/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "swiftsearch", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "swiftsearch", "config.yaml")
	}
	return filepath.Join(home, ".config", "swiftsearch", "config.yaml")
}

// Load applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User config (~/.config/swiftsearch/config.yaml)
//  3. explicitPath, when non-empty (must exist)
//  4. Environment variables (SWIFTSEARCH_*)
func Load(explicitPath string) (*Config, error) {
	cfg := NewConfig()

	userPath := GetUserConfigPath()
	if fileExists(userPath) {
		if err := cfg.loadYAML(userPath); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	if explicitPath != "" {
		if err := cfg.loadYAML(explicitPath); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Parse overlays YAML data on the defaults and validates the result. Zero
// values in data keep the default, as in Load.
func Parse(data []byte) (*Config, error) {
	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg := NewConfig()
	cfg.mergeWith(&parsed)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	setString(&c.Paths.IndexDir, other.Paths.IndexDir)
	setString(&c.Paths.UserConfigFile, other.Paths.UserConfigFile)
	setString(&c.Paths.DictPath, other.Paths.DictPath)

	setString(&c.Engine.Backend, other.Engine.Backend)
	setString(&c.Engine.LibraryPath, other.Engine.LibraryPath)

	setString(&c.Index.Version, other.Index.Version)
	if other.Index.MinimumDiskSpace != 0 {
		c.Index.MinimumDiskSpace = other.Index.MinimumDiskSpace
	}
	setString(&c.Index.RealTimeFlushInterval, other.Index.RealTimeFlushInterval)
	setString(&c.Index.SearchPeriod, other.Index.SearchPeriod)
	setString(&c.Index.ArchiveMode, other.Index.ArchiveMode)
	setString(&c.Index.TarPath, other.Index.TarPath)
	setString(&c.Index.LZ4Path, other.Index.LZ4Path)
	setString(&c.Index.ArchiveTimeout, other.Index.ArchiveTimeout)

	setString(&c.Validator.Mode, other.Validator.Mode)
	setString(&c.Validator.Path, other.Validator.Path)
	setString(&c.Validator.Timeout, other.Validator.Timeout)

	setString(&c.Daemon.SocketPath, other.Daemon.SocketPath)
	setString(&c.Daemon.PIDPath, other.Daemon.PIDPath)
	setString(&c.Daemon.Timeout, other.Daemon.Timeout)

	setString(&c.Metrics.Addr, other.Metrics.Addr)
	if other.MCP.Enabled {
		c.MCP.Enabled = true
	}
	if other.Search.QueryCacheSize != 0 {
		c.Search.QueryCacheSize = other.Search.QueryCacheSize
	}

	setString(&c.Logging.Level, other.Logging.Level)
	if other.Logging.MaxSizeMB != 0 {
		c.Logging.MaxSizeMB = other.Logging.MaxSizeMB
	}
	if other.Logging.MaxFiles != 0 {
		c.Logging.MaxFiles = other.Logging.MaxFiles
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// applyEnvOverrides applies SWIFTSEARCH_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SWIFTSEARCH_INDEX_DIR"); v != "" {
		c.Paths.IndexDir = v
	}
	if v := os.Getenv("SWIFTSEARCH_USER_CONFIG_FILE"); v != "" {
		c.Paths.UserConfigFile = v
	}
	if v := os.Getenv("SWIFTSEARCH_DICT_PATH"); v != "" {
		c.Paths.DictPath = v
	}
	if v := os.Getenv("SWIFTSEARCH_ENGINE"); v != "" {
		c.Engine.Backend = v
	}
	if v := os.Getenv("SWIFTSEARCH_LIBRARY_PATH"); v != "" {
		c.Engine.LibraryPath = v
	}
	if v := os.Getenv("SWIFTSEARCH_MINIMUM_DISK_SPACE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
			c.Index.MinimumDiskSpace = n
		}
	}
	if v := os.Getenv("SWIFTSEARCH_ARCHIVE_MODE"); v != "" {
		c.Index.ArchiveMode = v
	}
	if v := os.Getenv("SWIFTSEARCH_VALIDATOR"); v != "" {
		c.Validator.Mode = v
	}
	if v := os.Getenv("SWIFTSEARCH_SOCKET"); v != "" {
		c.Daemon.SocketPath = v
	}
	if v := os.Getenv("SWIFTSEARCH_METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
	}
	if v := os.Getenv("SWIFTSEARCH_MCP"); v != "" {
		c.MCP.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("SWIFTSEARCH_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Paths.IndexDir == "" {
		return fmt.Errorf("paths.index_dir cannot be empty")
	}
	if c.Paths.UserConfigFile == "" {
		return fmt.Errorf("paths.user_config_file cannot be empty")
	}

	switch strings.ToLower(c.Engine.Backend) {
	case "bleve", "sqlite":
	case "native":
		if c.Engine.LibraryPath == "" {
			return fmt.Errorf("engine.library_path is required for the native backend")
		}
	default:
		return fmt.Errorf("engine.backend must be 'bleve', 'sqlite' or 'native', got %s", c.Engine.Backend)
	}

	if c.Index.Version == "" {
		return fmt.Errorf("index.version cannot be empty")
	}
	if c.Index.MinimumDiskSpace < 0 {
		return fmt.Errorf("index.minimum_disk_space must be non-negative, got %d", c.Index.MinimumDiskSpace)
	}
	for name, v := range map[string]string{
		"index.realtime_flush_interval": c.Index.RealTimeFlushInterval,
		"index.search_period":           c.Index.SearchPeriod,
		"index.archive_timeout":         c.Index.ArchiveTimeout,
		"validator.timeout":             c.Validator.Timeout,
		"daemon.timeout":                c.Daemon.Timeout,
	} {
		if d, err := time.ParseDuration(v); err != nil || d <= 0 {
			return fmt.Errorf("%s must be a positive duration, got %q", name, v)
		}
	}

	switch strings.ToLower(c.Index.ArchiveMode) {
	case "native", "command":
	default:
		return fmt.Errorf("index.archive_mode must be 'native' or 'command', got %s", c.Index.ArchiveMode)
	}

	switch strings.ToLower(c.Validator.Mode) {
	case "snapshot", "none":
	case "command":
		if c.Validator.Path == "" {
			return fmt.Errorf("validator.path is required for the command validator")
		}
	default:
		return fmt.Errorf("validator.mode must be 'snapshot', 'command' or 'none', got %s", c.Validator.Mode)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}
	if c.Search.QueryCacheSize < 0 {
		return fmt.Errorf("search.query_cache_size must be non-negative, got %d", c.Search.QueryCacheSize)
	}
	return nil
}

// FlushInterval returns the parsed collector debounce window.
func (c IndexConfig) FlushInterval() time.Duration {
	return durationOr(c.RealTimeFlushInterval, RealTimeIndexingTime)
}

// SearchPeriodDuration returns the parsed search period.
func (c IndexConfig) SearchPeriodDuration() time.Duration {
	return durationOr(c.SearchPeriod, SearchPeriod)
}

// ArchiveTimeoutDuration returns the parsed subprocess timeout for archives.
func (c IndexConfig) ArchiveTimeoutDuration() time.Duration {
	return durationOr(c.ArchiveTimeout, 5*time.Minute)
}

// TimeoutDuration returns the parsed validator timeout.
func (c ValidatorConfig) TimeoutDuration() time.Duration {
	return durationOr(c.Timeout, time.Minute)
}

// TimeoutDuration returns the parsed client/server I/O timeout.
func (c DaemonConfig) TimeoutDuration() time.Duration {
	return durationOr(c.Timeout, 30*time.Second)
}

func durationOr(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// WriteYAML writes the configuration to a YAML file, creating its directory.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

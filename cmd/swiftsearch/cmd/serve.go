package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/swiftsearch/internal/archive"
	"github.com/Aman-CERP/swiftsearch/internal/config"
	"github.com/Aman-CERP/swiftsearch/internal/daemon"
	"github.com/Aman-CERP/swiftsearch/internal/engine"
	"github.com/Aman-CERP/swiftsearch/internal/lifecycle"
	"github.com/Aman-CERP/swiftsearch/internal/logging"
	"github.com/Aman-CERP/swiftsearch/internal/mcp"
	"github.com/Aman-CERP/swiftsearch/internal/preflight"
	"github.com/Aman-CERP/swiftsearch/internal/query"
	"github.com/Aman-CERP/swiftsearch/internal/telemetry"
	"github.com/Aman-CERP/swiftsearch/internal/userconfig"
	"github.com/Aman-CERP/swiftsearch/internal/validator"
)

const searchStatsWindow = 1000

type serveOptions struct {
	mcp         bool
	metricsAddr string
	skipCheck   bool
}

func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the search daemon",
		Long: `Run the search daemon in the foreground.

The daemon listens on a Unix socket for bridge commands. With --mcp it also
answers MCP tool calls on stdin/stdout; stdout then carries only protocol
messages and logs go to the log file. With --metrics-addr it serves
Prometheus metrics over HTTP.`,
		Example: `  # Start the daemon
  swiftsearch serve

  # Start with MCP on stdio and metrics on :9464
  swiftsearch serve --mcp --metrics-addr 127.0.0.1:9464`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("mcp") {
				cfg.MCP.Enabled = opts.mcp
			}
			if cmd.Flags().Changed("metrics-addr") {
				cfg.Metrics.Addr = opts.metricsAddr
			}
			return runServe(cmd.Context(), cfg, opts.skipCheck)
		},
	}

	cmd.Flags().BoolVar(&opts.mcp, "mcp", false, "Serve MCP tools on stdio")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	cmd.Flags().BoolVar(&opts.skipCheck, "skip-check", false, "Skip host preflight checks")

	return cmd
}

// serveLogConfig keeps stderr quiet when stdio carries MCP.
func serveLogConfig(cfg *config.Config) logging.Config {
	lc := logging.DefaultConfig()
	if cfg.MCP.Enabled {
		lc = logging.StdioConfig(cfg.Logging.Level)
	}
	if debugMode {
		lc.Level = "debug"
	} else if cfg.Logging.Level != "" {
		lc.Level = cfg.Logging.Level
	}
	if cfg.Logging.MaxSizeMB > 0 {
		lc.MaxSizeMB = cfg.Logging.MaxSizeMB
	}
	if cfg.Logging.MaxFiles > 0 {
		lc.MaxFiles = cfg.Logging.MaxFiles
	}
	return lc
}

func runServe(ctx context.Context, cfg *config.Config, skipCheck bool) error {
	logger, cleanup, err := logging.Setup(serveLogConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer cleanup()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !skipCheck {
		if err := runPreflight(ctx, cfg, logger); err != nil {
			return err
		}
	}

	metrics := telemetry.NewMetrics()
	stats := telemetry.NewSearchStats(searchStatsWindow)
	store := userconfig.New(cfg.Paths.UserConfigFile, cfg.Index.Version, logger)

	deps, err := buildManagerDeps(cfg, store, logger)
	if err != nil {
		return err
	}
	deps.Metrics = metrics
	deps.Stats = stats

	bridge := daemon.NewBridge(daemon.BridgeOptions{
		Open:      daemon.ManagerOpener(deps),
		DiskSpace: deps.DiskSpace,
		Users:     store,
		Logger:    logger,
	})
	d, err := daemon.NewDaemon(daemon.FromConfig(cfg.Daemon), daemon.WithBridge(bridge), daemon.WithLogger(logger))
	if err != nil {
		return err
	}

	if err := metrics.Register(telemetry.NewStatusCollector(indexStatus(bridge))); err != nil {
		return fmt.Errorf("failed to register status collector: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return ignoreCanceled(d.Start(gctx))
	})

	if cfg.Metrics.Addr != "" {
		srv := &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           metricsMux(metrics),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("metrics_listening", slog.String("addr", cfg.Metrics.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if cfg.MCP.Enabled {
		srv, err := mcp.NewServer(mcpSource(bridge), deps.Queries, logger)
		if err != nil {
			return err
		}
		srv.SetStats(stats)
		g.Go(func() error {
			// The MCP client owns the process; its hangup ends serve.
			defer cancel()
			return ignoreCanceled(srv.Serve(gctx, "stdio"))
		})
	}

	return g.Wait()
}

// buildManagerDeps builds the collaborators shared by every index the
// daemon opens.
func buildManagerDeps(cfg *config.Config, store *userconfig.Store, logger *slog.Logger) (daemon.ManagerDeps, error) {
	eng, err := engine.New(cfg.Engine.Backend, cfg.Engine.LibraryPath, logger)
	if err != nil {
		return daemon.ManagerDeps{}, err
	}
	arch, err := archive.New(cfg.Index.ArchiveMode, cfg.Index.TarPath, cfg.Index.LZ4Path,
		cfg.Index.ArchiveTimeoutDuration(), logger)
	if err != nil {
		return daemon.ManagerDeps{}, err
	}
	val, err := validator.New(cfg.Validator.Mode, cfg.Validator.Path, cfg.Validator.TimeoutDuration(), logger)
	if err != nil {
		return daemon.ManagerDeps{}, err
	}

	return daemon.ManagerDeps{
		Slot:        engine.NewSlot(eng),
		Archiver:    arch,
		DiskSpace:   preflight.NewDiskProbe(cfg.Paths.IndexDir),
		Validator:   val,
		ConfigStore: store,
		Queries:     query.NewBuilder(cfg.Search.QueryCacheSize),
		Paths: lifecycle.Paths{
			IndexDir: cfg.Paths.IndexDir,
			DictPath: cfg.Paths.DictPath,
		},
		Limits: lifecycle.Limits{
			MinimumDiskSpace: cfg.Index.MinimumDiskSpace,
			SearchPeriod:     cfg.Index.SearchPeriodDuration(),
			FlushInterval:    cfg.Index.FlushInterval(),
			IndexVersion:     cfg.Index.Version,
		},
		Logger: logger,
	}, nil
}

// runPreflight runs the host checks once per marker lifetime. Output is
// discarded because stdout may carry MCP.
func runPreflight(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if !preflight.NeedsCheck(cfg.Paths.IndexDir) {
		return nil
	}
	checker := preflight.New(
		preflight.WithOutput(io.Discard),
		preflight.WithMinimumDiskSpace(cfg.Index.MinimumDiskSpace),
	)
	results := checker.RunAll(ctx, preflightTarget(cfg))
	for _, r := range results {
		if r.Status != preflight.StatusPass {
			logger.Warn("preflight_check",
				slog.String("check", r.Name),
				slog.String("status", r.Status.String()),
				slog.String("message", r.Message))
		}
	}
	if checker.HasCriticalFailures(results) {
		logger.Error("preflight_failed")
		return fmt.Errorf("system check failed, run 'swiftsearch doctor' for details")
	}
	if err := preflight.MarkPassed(cfg.Paths.IndexDir, checker.SummaryStatus(results)); err != nil {
		logger.Debug("preflight_mark_failed", slog.String("error", err.Error()))
	}
	return nil
}

func preflightTarget(cfg *config.Config) preflight.Target {
	t := preflight.Target{
		IndexDir: cfg.Paths.IndexDir,
		DictPath: cfg.Paths.DictPath,
	}
	if cfg.Engine.Backend == engine.BackendNative {
		t.LibraryPath = cfg.Engine.LibraryPath
	}
	if cfg.Index.ArchiveMode == archive.ModeCommand {
		t.ArchiveTools = []string{cfg.Index.TarPath, cfg.Index.LZ4Path}
	}
	return t
}

// indexStatus reads the live index for metric scrapes.
func indexStatus(b *daemon.Bridge) func() telemetry.Status {
	return func() telemetry.Status {
		if s, ok := b.Current().(interface{ Status() telemetry.Status }); ok {
			return s.Status()
		}
		return telemetry.Status{}
	}
}

// mcpSource hands the bridge's index to MCP. A nil index must stay an
// untyped nil.
func mcpSource(b *daemon.Bridge) mcp.Source {
	return func() mcp.Index {
		idx := b.Current()
		if idx == nil {
			return nil
		}
		return idx
	}
}

func metricsMux(m *telemetry.Metrics) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

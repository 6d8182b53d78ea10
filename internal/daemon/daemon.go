package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Aman-CERP/swiftsearch/internal/lifecycle"
	"github.com/Aman-CERP/swiftsearch/internal/logging"
)

// Daemon owns the socket server, the bridge and the PID file.
type Daemon struct {
	cfg    Config
	bridge *Bridge
	server *Server
	pid    *PIDFile
	logger *slog.Logger
}

// Option configures a Daemon.
type Option func(*Daemon)

// WithBridge sets the bridge served by the daemon.
func WithBridge(b *Bridge) Option {
	return func(d *Daemon) { d.bridge = b }
}

// WithLogger sets the daemon logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Daemon) { d.logger = l }
}

// NewDaemon creates a daemon. Without WithBridge it serves a bridge that
// cannot open indexes, which still answers ping and status.
func NewDaemon(cfg Config, opts ...Option) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid daemon config: %w", err)
	}
	d := &Daemon{cfg: cfg, pid: NewPIDFile(cfg.PIDPath)}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = logging.OrDefault(d.logger)
	if d.bridge == nil {
		d.bridge = NewBridge(BridgeOptions{Logger: d.logger})
	}
	srv, err := NewServer(cfg.SocketPath, cfg.Timeout, d.logger)
	if err != nil {
		return nil, err
	}
	srv.SetHandler(d.bridge)
	d.bridge.SetPublisher(srv.Broadcast)
	d.server = srv
	return d, nil
}

// Bridge returns the served bridge.
func (d *Daemon) Bridge() *Bridge {
	return d.bridge
}

// Start takes the single-instance lock and serves until ctx is done. The
// live index is destroyed on the way out.
func (d *Daemon) Start(ctx context.Context) error {
	if err := d.cfg.EnsureDir(); err != nil {
		return err
	}
	if err := d.pid.Acquire(); err != nil {
		return err
	}
	defer func() {
		if err := d.pid.Release(); err != nil {
			d.logger.Warn("pidfile_release_failed", slog.String("error", err.Error()))
		}
	}()

	d.logger.Info("daemon_started",
		slog.String("socket", d.cfg.SocketPath),
		slog.String("pid_file", d.cfg.PIDPath))

	err := d.server.ListenAndServe(ctx)

	done := make(chan struct{})
	go func() {
		d.bridge.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d.cfg.ShutdownGracePeriod):
		d.logger.Warn("daemon_shutdown_timeout", slog.Duration("grace", d.cfg.ShutdownGracePeriod))
	}
	d.logger.Info("daemon_stopped")
	return err
}

// ManagerDeps are the collaborators shared by every manager the daemon
// builds. The slot carries the process-wide engine.
type ManagerDeps = lifecycle.Options

// ManagerOpener returns an Opener building lifecycle managers from base.
// The initialSearch payload may force a reindex and override the search
// period and the archive ceiling.
func ManagerOpener(base ManagerDeps) Opener {
	return func(ctx context.Context, p InitialSearchParams, onInit func(bool)) (Index, error) {
		opts := base
		opts.ForceReindex = p.Payload.ReIndex
		if p.Payload.SearchPeriod > 0 {
			opts.Limits.SearchPeriod = time.Duration(p.Payload.SearchPeriod) * time.Millisecond
		}
		if p.Payload.MinimumDiskSpace > 0 {
			opts.Limits.MinimumDiskSpace = p.Payload.MinimumDiskSpace
		}
		opts.OnInitState = onInit
		m, err := lifecycle.New(ctx, p.UserID, p.Key, opts)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
}

package cmd

import (
	"context"
	"io/fs"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/swiftsearch/internal/config"
	"github.com/Aman-CERP/swiftsearch/internal/daemon"
	"github.com/Aman-CERP/swiftsearch/internal/ui"
)

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and index status",
		Long: `Display the daemon state and the index it serves:
  - process id, uptime and version
  - the open user and readiness state
  - whether a real-time flush is running
  - the newest indexed message
  - the index directory and its size on disk`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			info := collectStatus(cmd.Context(), cfg)

			r := ui.NewStatusRenderer(cmd.OutOrStdout(), ui.PlainOutput(cmd.OutOrStdout(), noColor))
			if jsonOutput {
				return r.RenderJSON(info)
			}
			return r.Render(info)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

// collectStatus never fails: a daemon that does not answer is reported as
// stopped.
func collectStatus(ctx context.Context, cfg *config.Config) ui.StatusInfo {
	dcfg := daemon.FromConfig(cfg.Daemon)
	info := ui.StatusInfo{
		Socket:    dcfg.SocketPath,
		IndexDir:  cfg.Paths.IndexDir,
		IndexSize: dirSize(cfg.Paths.IndexDir),
		Engine:    cfg.Engine.Backend,
	}

	client := daemon.NewClient(dcfg)
	st, err := client.Status(ctx)
	if err != nil {
		return info
	}
	info.Running = st.Running
	info.PID = st.PID
	info.Uptime = st.Uptime
	info.Version = st.Version
	info.UserID = st.UserID
	info.State = st.State
	info.Initialized = st.Initialized
	info.RealTimeIndexing = st.RealTimeIndexing

	if st.Initialized {
		if ts, err := client.LatestTimestamp(ctx); err == nil && ts.Status {
			info.LatestMessage = parseMillis(ts.Timestamp)
		}
	}
	return info
}

// parseMillis reads an epoch-millisecond string. Empty and zero timestamps
// yield the zero time.
func parseMillis(s string) time.Time {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// dirSize sums regular file sizes under dir. Unreadable entries are skipped.
func dirSize(dir string) int64 {
	var size int64
	_ = filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Type().IsRegular() {
			if info, err := d.Info(); err == nil {
				size += info.Size()
			}
		}
		return nil
	})
	return size
}

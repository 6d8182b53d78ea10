package cmd

import (
	"fmt"
	"regexp"

	"github.com/spf13/cobra"

	amerrors "github.com/Aman-CERP/swiftsearch/internal/errors"
	"github.com/Aman-CERP/swiftsearch/internal/logging"
)

func newLogsCmd() *cobra.Command {
	var (
		lines   int
		level   string
		filter  string
		logFile string
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent server log entries",
		Long: `Show the last entries of the server log (~/.swiftsearch/logs/server.log).

Entries below --level are skipped. --filter keeps only lines whose
message or attributes match the pattern.`,
		Example: `  swiftsearch logs -n 100
  swiftsearch logs --level error
  swiftsearch logs --filter "collector_"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var pattern *regexp.Regexp
			if filter != "" {
				var err error
				if pattern, err = regexp.Compile(filter); err != nil {
					return amerrors.ValidationError("invalid filter pattern", err)
				}
			}

			path, err := logging.FindLogFile(logFile)
			if err != nil {
				return amerrors.New(amerrors.ErrCodeFileNotFound, err.Error(), err)
			}

			// -n applies after --filter.
			entries, err := logging.Tail(path, 0, level)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Log file: %s\n---\n", path)
			var shown []string
			for _, e := range entries {
				line := logging.FormatEntry(e)
				if pattern != nil && !pattern.MatchString(line) {
					continue
				}
				shown = append(shown, line)
			}
			if lines > 0 && len(shown) > lines {
				shown = shown[len(shown)-lines:]
			}
			for _, line := range shown {
				_, _ = fmt.Fprintln(out, line)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of entries to show")
	cmd.Flags().StringVar(&level, "level", "", "Minimum level (debug|info|warn|error)")
	cmd.Flags().StringVar(&filter, "filter", "", "Only show entries matching this regex")
	cmd.Flags().StringVar(&logFile, "file", "", "Path to log file")

	return cmd
}

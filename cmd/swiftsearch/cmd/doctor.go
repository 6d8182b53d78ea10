package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	amerrors "github.com/Aman-CERP/swiftsearch/internal/errors"
	"github.com/Aman-CERP/swiftsearch/internal/preflight"
)

func newDoctorCmd() *cobra.Command {
	var (
		verbose    bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check host requirements and diagnose issues",
		Long: `Run host diagnostics to ensure swiftsearch can operate correctly.

Checks:
  - Free disk space next to the index (index.minimum_disk_space)
  - Available memory
  - Write permission on the index directory
  - File descriptor limits
  - The native engine library and dictionary, when configured
  - tar and lz4, when archive_mode is command

A passing run refreshes the marker that lets 'serve' skip these checks.`,
		Example: `  # Run diagnostics
  swiftsearch doctor

  # JSON output for scripting
  swiftsearch doctor --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, verbose, jsonOutput)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed diagnostic info")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runDoctor(cmd *cobra.Command, verbose, jsonOutput bool) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	checker := preflight.New(
		preflight.WithVerbose(verbose),
		preflight.WithOutput(cmd.OutOrStdout()),
		preflight.WithMinimumDiskSpace(cfg.Index.MinimumDiskSpace),
	)
	results := checker.RunAll(ctx, preflightTarget(cfg))
	failed := checker.HasCriticalFailures(results)

	if jsonOutput {
		if err := writeDoctorJSON(cmd, checker, results); err != nil {
			return err
		}
	} else {
		checker.PrintResults(results)
		if age := preflight.MarkerAge(cfg.Paths.IndexDir); age > 0 && !failed {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "\nPrevious successful check: %s ago\n", age.Round(time.Second))
		}
	}

	if failed {
		_ = preflight.ClearMarker(cfg.Paths.IndexDir)
		return amerrors.New(amerrors.ErrCodeInternal, "system check failed", nil).
			WithSuggestion("Fix the failed checks above and run 'swiftsearch doctor' again.")
	}
	if err := preflight.MarkPassed(cfg.Paths.IndexDir, checker.SummaryStatus(results)); err != nil {
		return fmt.Errorf("failed to record check result: %w", err)
	}
	return nil
}

type doctorReport struct {
	Status string                  `json:"status"`
	Checks []preflight.CheckResult `json:"checks"`
}

func writeDoctorJSON(cmd *cobra.Command, checker *preflight.Checker, results []preflight.CheckResult) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(doctorReport{
		Status: checker.SummaryStatus(results),
		Checks: results,
	})
}

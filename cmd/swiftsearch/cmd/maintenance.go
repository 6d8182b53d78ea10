package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	amerrors "github.com/Aman-CERP/swiftsearch/internal/errors"
	"github.com/Aman-CERP/swiftsearch/internal/preflight"
	"github.com/Aman-CERP/swiftsearch/internal/ui"
	"github.com/Aman-CERP/swiftsearch/internal/validator"
)

func newEncryptCmd() *cobra.Command {
	var key string

	cmd := &cobra.Command{
		Use:   "encrypt",
		Short: "Write the encrypted index archive",
		Long: `Serialize the open index, encrypt it with key and replace the stored
archive. The daemon rotates to key for later opens.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resolved, err := resolveKey(key)
			if err != nil {
				return err
			}
			client, _, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			if err := client.EncryptIndex(cmd.Context(), resolved); err != nil {
				return rpcFailure(err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Index archive written.")
			return nil
		},
	}

	cmd.Flags().StringVar(&key, "key", "", "Base64 index key (default $"+keyEnv+")")

	return cmd
}

func newTimestampCmd() *cobra.Command {
	var millis bool

	cmd := &cobra.Command{
		Use:   "timestamp",
		Short: "Print the newest indexed message time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, _, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			res, err := client.LatestTimestamp(cmd.Context())
			if err != nil {
				return rpcFailure(err)
			}
			if !res.Status {
				return amerrors.New(amerrors.ErrCodeTimestampFailed, res.Timestamp, nil)
			}
			t := parseMillis(res.Timestamp)
			if millis || t.IsZero() {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), res.Timestamp)
				return nil
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", t.UTC().Format(time.RFC3339), res.Timestamp)
			return nil
		},
	}

	cmd.Flags().BoolVar(&millis, "millis", false, "Print only epoch milliseconds")

	return cmd
}

func newCheckDiskCmd() *cobra.Command {
	var minBytes int64

	cmd := &cobra.Command{
		Use:   "check-disk",
		Short: "Check free space next to the index",
		Long: `Report whether the filesystem holding the index directory has at least
--min bytes free. The check runs locally; the daemon need not be running.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("min") {
				minBytes = cfg.Index.MinimumDiskSpace
			}
			probe := preflight.NewDiskProbe(cfg.Paths.IndexDir)
			free, err := probe.Free(cmd.Context())
			if err != nil {
				return amerrors.New(amerrors.ErrCodeFileNotFound, "failed to read disk usage", err)
			}
			ok, _ := probe.HasFreeSpace(cmd.Context(), minBytes)

			st := ui.GetStyles(ui.PlainOutput(cmd.OutOrStdout(), noColor))
			verdict := st.Success.Render("ok")
			if !ok {
				verdict = st.Error.Render("insufficient")
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s free of %s required: %s\n",
				ui.FormatBytes(int64(free)), ui.FormatBytes(minBytes), verdict)
			if !ok {
				return amerrors.New(amerrors.ErrCodeDiskFull, "not enough free disk space", nil)
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&minBytes, "min", 0, "Required free bytes (default index.minimum_disk_space)")

	return cmd
}

func newValidateCmd() *cobra.Command {
	var (
		dir string
		key string
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Show or run the corruption check",
		Long: `Without --dir, print the validator response the daemon recorded when it
opened the index. With --dir, run the configured validator against an
unpacked index directory and print its response.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp := map[string]any{}
			valid := true
			if dir == "" {
				client, _, err := connect(cmd.Context())
				if err != nil {
					return err
				}
				resp, err = client.ValidatorResponse(cmd.Context())
				if err != nil {
					return rpcFailure(err)
				}
			} else {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				resolved, err := resolveKey(key)
				if err != nil {
					return err
				}
				v, err := validator.New(cfg.Validator.Mode, cfg.Validator.Path, cfg.Validator.TimeoutDuration(), nil)
				if err != nil {
					return err
				}
				if v == nil {
					return amerrors.New(amerrors.ErrCodeConfigInvalid, "validator.mode is none", nil)
				}
				resp, valid = v.Validate(cmd.Context(), dir, resolved)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(resp); err != nil {
				return err
			}
			if !valid {
				return amerrors.New(amerrors.ErrCodeCorruptIndex, "index failed validation", nil)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Unpacked index directory to validate")
	cmd.Flags().StringVar(&key, "key", "", "Base64 index key for --dir (default $"+keyEnv+")")

	return cmd
}

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/swiftsearch/internal/daemon"
	amerrors "github.com/Aman-CERP/swiftsearch/internal/errors"
	"github.com/Aman-CERP/swiftsearch/internal/lifecycle"
)

const readyPollInterval = 200 * time.Millisecond

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Open an index and feed it messages",
		Long: `Drive the daemon's index.

Messages are JSON objects with messageId, threadId, senderId, text, tags,
ingestionDate (epoch milliseconds), chatType and attachments. Batches are
JSON arrays read from a file or from stdin.`,
		Example: `  # Open (or create) the index for a user and wait until it is ready
  SWIFTSEARCH_KEY=... swiftsearch index open u-42 --wait 1m

  # Index a batch of messages
  swiftsearch index batch messages.json

  # Queue messages for the real-time index
  cat live.json | swiftsearch index realtime`,
	}

	cmd.AddCommand(newIndexOpenCmd())
	cmd.AddCommand(newIndexBatchCmd())
	cmd.AddCommand(newIndexRealtimeCmd())
	cmd.AddCommand(newIndexClearRealtimeCmd())

	return cmd
}

func newIndexOpenCmd() *cobra.Command {
	var (
		key          string
		reindex      bool
		searchPeriod time.Duration
		minDisk      int64
		wait         time.Duration
	)

	cmd := &cobra.Command{
		Use:   "open <user-id>",
		Short: "Open the index for a user",
		Long: `Replace the daemon's index with the one for user-id.

The stored archive is decrypted and validated in the background. Use --wait
to block until the index is ready.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			resolved, err := resolveKey(key)
			if err != nil {
				return err
			}
			client, _, err := connect(ctx)
			if err != nil {
				return err
			}

			params := daemon.InitialSearchParams{
				UserID: args[0],
				Key:    resolved,
				Payload: daemon.InitialPayload{
					ReIndex:          reindex,
					SearchPeriod:     searchPeriod.Milliseconds(),
					MinimumDiskSpace: minDisk,
				},
			}
			if err := client.InitialSearch(ctx, params); err != nil {
				return rpcFailure(err)
			}
			if wait <= 0 {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Opening index for %s.\n", args[0])
				return nil
			}
			if err := waitReady(ctx, client, wait); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Index for %s is ready.\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&key, "key", "", "Base64 index key (default $"+keyEnv+")")
	cmd.Flags().BoolVar(&reindex, "reindex", false, "Ignore the stored archive and start a fresh index")
	cmd.Flags().DurationVar(&searchPeriod, "search-period", 0, "Override how far back the index reaches")
	cmd.Flags().Int64Var(&minDisk, "min-disk", 0, "Override the archive size ceiling in bytes")
	cmd.Flags().DurationVar(&wait, "wait", 0, "Wait up to this long for the index to become ready")

	return cmd
}

// waitReady polls status until the index is ready. A destroyed index or the
// deadline ends the wait with an error.
func waitReady(ctx context.Context, client *daemon.Client, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(readyPollInterval)
	defer ticker.Stop()
	for {
		st, err := client.Status(ctx)
		if err == nil {
			if st.Initialized {
				return nil
			}
			if st.State == lifecycle.StateDestroyed.String() {
				return amerrors.New(amerrors.ErrCodeDestroyed, "index was destroyed while opening", nil).
					WithSuggestion("Check the daemon log with 'swiftsearch logs'.")
			}
		}
		select {
		case <-ctx.Done():
			return amerrors.New(amerrors.ErrCodeNotInitialized,
				fmt.Sprintf("index not ready after %s", timeout), ctx.Err())
		case <-ticker.C:
		}
	}
}

func newIndexBatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "batch [file]",
		Short: "Index a JSON array of messages",
		Long:  `Index a JSON array of messages into the main index. Reads stdin when file is omitted or "-".`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			client, _, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			res, err := client.IndexBatch(cmd.Context(), string(data))
			if err != nil {
				return rpcFailure(err)
			}
			if !res.Status {
				return amerrors.New(amerrors.ErrCodeIndexFailed, fmt.Sprint(res.Data), nil)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Indexed %v message(s).\n", res.Data)
			return nil
		},
	}
}

func newIndexRealtimeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "realtime [file]",
		Short: "Queue messages for the real-time index",
		Long: `Queue each message of a JSON array for the real-time index. The daemon
flushes queued messages in batches. Reads stdin when file is omitted or "-".`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			var messages []json.RawMessage
			if err := json.Unmarshal(data, &messages); err != nil {
				return amerrors.New(amerrors.ErrCodeMessagesNotArray, "input must be a JSON array of messages", err)
			}
			client, _, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			for _, m := range messages {
				if err := client.RealTimeIndex(cmd.Context(), m); err != nil {
					return rpcFailure(err)
				}
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Queued %d message(s).\n", len(messages))
			return nil
		},
	}
}

func newIndexClearRealtimeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear-realtime",
		Short: "Empty the real-time index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, _, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			if err := client.DeleteRealTimeIndex(cmd.Context()); err != nil {
				return rpcFailure(err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Real-time index cleared.")
			return nil
		},
	}
}

// readInput reads args[0], or stdin when it is absent or "-".
func readInput(stdin io.Reader, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, amerrors.New(amerrors.ErrCodeFileNotFound, "failed to read "+args[0], err)
	}
	return data, nil
}

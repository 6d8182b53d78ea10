package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/swiftsearch/internal/config"
	"github.com/Aman-CERP/swiftsearch/internal/daemon"
	"github.com/Aman-CERP/swiftsearch/internal/engine"
	amerrors "github.com/Aman-CERP/swiftsearch/internal/errors"
)

// keyEnv is read when --key is not given.
const keyEnv = "SWIFTSEARCH_KEY"

// connect loads the config and returns a client for a running daemon.
func connect(ctx context.Context) (*daemon.Client, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	client := daemon.NewClient(daemon.FromConfig(cfg.Daemon))
	if err := client.Ping(ctx); err != nil {
		return nil, nil, amerrors.New(amerrors.ErrCodeNotInitialized, "daemon is not running", err).
			WithSuggestion("Start it with 'swiftsearch serve'.")
	}
	return client, cfg, nil
}

// resolveKey returns the base64 index key from flag or environment.
func resolveKey(flag string) (string, error) {
	key := strings.TrimSpace(flag)
	if key == "" {
		key = strings.TrimSpace(os.Getenv(keyEnv))
	}
	if key == "" {
		return "", amerrors.New(amerrors.ErrCodeInvalidKey, "an index key is required", nil).
			WithSuggestion("Pass --key or set " + keyEnv + ".")
	}
	if _, err := engine.DecodeKey(key); err != nil {
		return "", err
	}
	return key, nil
}

// rpcFailure turns a daemon RPC error into a CLI error. Operation failures
// carry the structured error as data and keep its code and hint.
func rpcFailure(err error) error {
	var rpcErr *daemon.RPCError
	if !errors.As(err, &rpcErr) {
		return err
	}
	switch rpcErr.Code {
	case daemon.ErrCodeNotInitialized:
		return amerrors.New(amerrors.ErrCodeNotInitialized, rpcErr.Message, err).
			WithSuggestion("Open an index with 'swiftsearch index open <user-id>'.")
	case daemon.ErrCodeOperationFailed:
		var data struct {
			Code       string `json:"code"`
			Suggestion string `json:"suggestion"`
		}
		if json.Unmarshal(rpcErr.Data, &data) == nil && data.Code != "" {
			se := amerrors.New(data.Code, rpcErr.Message, err)
			if data.Suggestion != "" {
				se = se.WithSuggestion(data.Suggestion)
			}
			return se
		}
		return amerrors.New(amerrors.ErrCodeInternal, rpcErr.Message, err)
	default:
		return amerrors.New(amerrors.ErrCodeInternal, rpcErr.Message, err)
	}
}

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running daemon",
		Long: `Stop the running daemon.

Sends SIGTERM to the daemon process. The daemon destroys the live index and
removes its socket and PID file on the way out.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			pid := daemon.NewPIDFile(daemon.FromConfig(cfg.Daemon).PIDPath)
			if !pid.IsRunning() {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Daemon is not running.")
				return nil
			}
			if err := pid.Signal(syscall.SIGTERM); err != nil {
				return fmt.Errorf("failed to stop daemon: %w", err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Stop signal sent.")
			return nil
		},
	}
}

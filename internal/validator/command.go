package validator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/Aman-CERP/swiftsearch/internal/logging"
)

// DefaultTimeout bounds one validator subprocess.
const DefaultTimeout = 2 * time.Minute

// Command runs an external validator binary as `<path> <workDir> <key>`
// and reads a JSON diagnostic from its stdout.
type Command struct {
	path    string
	timeout time.Duration
	logger  *slog.Logger
}

// NewCommand returns a subprocess validator.
func NewCommand(path string, timeout time.Duration, logger *slog.Logger) *Command {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Command{path: path, timeout: timeout, logger: logging.OrDefault(logger)}
}

// Validate runs the binary. ok is true only when it exits cleanly and
// reports status OK.
func (c *Command) Validate(ctx context.Context, workDir, key string) (map[string]any, bool) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.path, workDir, key)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	start := time.Now()
	runErr := cmd.Run()

	var resp map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &resp); err != nil || resp == nil {
		cause := runErr
		if cause == nil {
			cause = fmt.Errorf("unparseable validator output: %w", errOrEmpty(err))
		}
		c.logger.Error("validator_failed",
			slog.String("binary", c.path),
			slog.String("error", cause.Error()),
			slog.String("stderr", string(bytes.TrimSpace(stderr.Bytes()))))
		return failure(StatusError, cause), false
	}

	status, _ := resp["status"].(string)
	ok := runErr == nil && status == StatusOK
	c.logger.Info("validator_done",
		slog.String("status", status),
		slog.Bool("ok", ok),
		slog.Duration("elapsed", time.Since(start)))
	return resp, ok
}

func errOrEmpty(err error) error {
	if err == nil {
		return errors.New("empty object")
	}
	return err
}

var _ Validator = (*Command)(nil)

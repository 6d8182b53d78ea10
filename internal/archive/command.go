package archive

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/Aman-CERP/swiftsearch/internal/logging"
)

// DefaultCommandTimeout bounds one tar|lz4 pipeline.
const DefaultCommandTimeout = 5 * time.Minute

// Command archives by piping the host's tar and lz4 binaries.
type Command struct {
	tarPath string
	lz4Path string
	timeout time.Duration
	logger  *slog.Logger
}

// NewCommand returns a subprocess archiver. Empty paths resolve via PATH.
func NewCommand(tarPath, lz4Path string, timeout time.Duration, logger *slog.Logger) *Command {
	if tarPath == "" {
		tarPath = "tar"
	}
	if lz4Path == "" {
		lz4Path = "lz4"
	}
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	return &Command{
		tarPath: tarPath,
		lz4Path: lz4Path,
		timeout: timeout,
		logger:  logging.OrDefault(logger),
	}
}

// Compress runs `tar -cf - -C <parent> <base> | lz4 -q -f - <archive>`.
func (c *Command) Compress(ctx context.Context, sourceDir, archivePath string) bool {
	clean := filepath.Clean(sourceDir)
	if _, err := os.Stat(clean); err != nil {
		c.logger.Error("archive_compress_failed",
			slog.String("source", sourceDir),
			slog.String("error", err.Error()))
		return false
	}
	tarArgs := []string{"-cf", "-", "-C", filepath.Dir(clean), filepath.Base(clean)}
	lz4Args := []string{"-q", "-f", "-", archivePath}
	if err := c.pipe(ctx, c.tarPath, tarArgs, c.lz4Path, lz4Args); err != nil {
		c.logger.Error("archive_compress_failed",
			slog.String("source", sourceDir),
			slog.String("archive", archivePath),
			slog.String("error", err.Error()))
		_ = os.Remove(archivePath)
		return false
	}
	return true
}

// Decompress runs `lz4 -d -c <archive> | tar -xf - -C <dest>`.
func (c *Command) Decompress(ctx context.Context, archivePath, destDir string) bool {
	if _, err := os.Stat(archivePath); err != nil {
		c.logger.Error("archive_decompress_failed",
			slog.String("archive", archivePath),
			slog.String("error", err.Error()))
		return false
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		c.logger.Error("archive_decompress_failed",
			slog.String("dest", destDir),
			slog.String("error", err.Error()))
		return false
	}
	lz4Args := []string{"-d", "-c", archivePath}
	tarArgs := []string{"-xf", "-", "-C", destDir}
	if err := c.pipe(ctx, c.lz4Path, lz4Args, c.tarPath, tarArgs); err != nil {
		c.logger.Error("archive_decompress_failed",
			slog.String("archive", archivePath),
			slog.String("dest", destDir),
			slog.String("error", err.Error()))
		return false
	}
	return true
}

func (c *Command) pipe(ctx context.Context, left string, leftArgs []string, right string, rightArgs []string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	producer := exec.CommandContext(ctx, left, leftArgs...)
	consumer := exec.CommandContext(ctx, right, rightArgs...)
	producer.WaitDelay = time.Second
	consumer.WaitDelay = time.Second

	out, err := producer.StdoutPipe()
	if err != nil {
		return err
	}
	consumer.Stdin = out

	var leftErr, rightErr bytes.Buffer
	producer.Stderr = &leftErr
	consumer.Stderr = &rightErr

	if err := consumer.Start(); err != nil {
		return fmt.Errorf("start %s: %w", right, err)
	}
	if err := producer.Start(); err != nil {
		_ = consumer.Process.Kill()
		_ = consumer.Wait()
		return fmt.Errorf("start %s: %w", left, err)
	}

	perr := producer.Wait()
	cerr := consumer.Wait()
	if perr != nil {
		return fmt.Errorf("%s: %w: %s", left, perr, bytes.TrimSpace(leftErr.Bytes()))
	}
	if cerr != nil {
		return fmt.Errorf("%s: %w: %s", right, cerr, bytes.TrimSpace(rightErr.Bytes()))
	}
	return nil
}

var _ Archiver = (*Command)(nil)

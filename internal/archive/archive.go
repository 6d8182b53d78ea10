// Package archive packs a user's working directory into a .tar.lz4 archive
// and unpacks it again.
//
// Failures are logged and reported as false; callers degrade rather than
// abort.
package archive

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Archiver compresses and decompresses index working directories.
//
// Compress stores sourceDir under its base name, so decompressing into the
// parent of sourceDir recreates it.
type Archiver interface {
	Compress(ctx context.Context, sourceDir, archivePath string) bool
	Decompress(ctx context.Context, archivePath, destDir string) bool
}

// Modes accepted by config index.archive_mode.
const (
	ModeNative  = "native"
	ModeCommand = "command"
)

// New returns the archiver for mode. tarPath, lz4Path and timeout only
// apply to command mode.
func New(mode, tarPath, lz4Path string, timeout time.Duration, logger *slog.Logger) (Archiver, error) {
	switch mode {
	case ModeNative, "":
		return NewLZ4Tar(logger), nil
	case ModeCommand:
		return NewCommand(tarPath, lz4Path, timeout, logger), nil
	default:
		return nil, fmt.Errorf("unknown archive mode: %s (valid options: native, command)", mode)
	}
}

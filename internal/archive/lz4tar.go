package archive

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pierrec/lz4/v4"

	"github.com/Aman-CERP/swiftsearch/internal/logging"
)

// LZ4Tar archives in process: a tar stream inside LZ4 frames.
type LZ4Tar struct {
	logger *slog.Logger
}

// NewLZ4Tar returns the in-process archiver.
func NewLZ4Tar(logger *slog.Logger) *LZ4Tar {
	return &LZ4Tar{logger: logging.OrDefault(logger)}
}

// Compress writes sourceDir to archivePath. The archive is assembled in
// <archivePath>.tmp and renamed on success.
func (a *LZ4Tar) Compress(ctx context.Context, sourceDir, archivePath string) bool {
	if err := a.compress(ctx, sourceDir, archivePath); err != nil {
		a.logger.Error("archive_compress_failed",
			slog.String("source", sourceDir),
			slog.String("archive", archivePath),
			slog.String("error", err.Error()))
		return false
	}
	a.logger.Info("archive_compressed", slog.String("archive", archivePath))
	return true
}

func (a *LZ4Tar) compress(ctx context.Context, sourceDir, archivePath string) (err error) {
	info, err := os.Stat(sourceDir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", sourceDir)
	}

	tmp := archivePath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
		}
	}()

	zw := lz4.NewWriter(f)
	tw := tar.NewWriter(zw)
	base := filepath.Dir(filepath.Clean(sourceDir))

	err = filepath.WalkDir(sourceDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		if !fi.Mode().IsDir() && !fi.Mode().IsRegular() {
			// sockets, symlinks and devices never appear in an index
			return nil
		}
		hdr, err := tar.FileInfoHeader(fi, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if fi.IsDir() {
			hdr.Name += "/"
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if !fi.Mode().IsRegular() {
			return nil
		}
		src, err := os.Open(path)
		if err != nil {
			return err
		}
		_, err = io.Copy(tw, src)
		_ = src.Close()
		return err
	})
	if err != nil {
		return err
	}
	if err = tw.Close(); err != nil {
		return err
	}
	if err = zw.Close(); err != nil {
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, archivePath)
}

// Decompress extracts archivePath into destDir.
func (a *LZ4Tar) Decompress(ctx context.Context, archivePath, destDir string) bool {
	if err := a.decompress(ctx, archivePath, destDir); err != nil {
		a.logger.Error("archive_decompress_failed",
			slog.String("archive", archivePath),
			slog.String("dest", destDir),
			slog.String("error", err.Error()))
		return false
	}
	a.logger.Info("archive_decompressed", slog.String("archive", archivePath))
	return true
}

var errUnsafePath = errors.New("archive entry escapes destination")

func (a *LZ4Tar) decompress(ctx context.Context, archivePath, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return err
	}
	root, err := filepath.Abs(destDir)
	if err != nil {
		return err
	}

	tr := tar.NewReader(lz4.NewReader(f))
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read archive: %w", err)
		}

		target := filepath.Join(root, filepath.FromSlash(hdr.Name))
		if target != root && !strings.HasPrefix(target, root+string(filepath.Separator)) {
			return fmt.Errorf("%w: %s", errUnsafePath, hdr.Name)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeEntry(target, tr, hdr.FileInfo().Mode().Perm()); err != nil {
				return err
			}
		default:
			a.logger.Debug("archive_entry_skipped", slog.String("name", hdr.Name))
		}
	}
}

func writeEntry(target string, r io.Reader, perm fs.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm|0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

var _ Archiver = (*LZ4Tar)(nil)

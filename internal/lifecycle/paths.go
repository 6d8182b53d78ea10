package lifecycle

import (
	"os"
	"path/filepath"

	"github.com/Aman-CERP/swiftsearch/internal/config"
)

// Layout locates one user's persisted index under the index directory.
type Layout struct {
	IndexDir string
	UserID   string
}

// WorkDir is <indexDir>/search_index_<userId>.
func (l Layout) WorkDir() string {
	return filepath.Join(l.IndexDir, config.PrefixName+"_"+l.UserID)
}

// MainIndexDir is the engine snapshot directory inside WorkDir.
func (l Layout) MainIndexDir() string {
	return filepath.Join(l.WorkDir(), config.MainIndex)
}

// ArchivePath is <indexDir>/search_index_<userId>.tar.lz4.
func (l Layout) ArchivePath() string {
	return l.WorkDir() + config.ArchiveExt
}

func (l Layout) workDirExists() bool {
	info, err := os.Stat(l.WorkDir())
	return err == nil && info.IsDir()
}

// removeWorkDir deletes the working directory if present.
func (l Layout) removeWorkDir() error {
	return os.RemoveAll(l.WorkDir())
}

// resetWorkDir leaves an empty, existing working directory.
func (l Layout) resetWorkDir() error {
	if err := l.removeWorkDir(); err != nil {
		return err
	}
	return l.ensureWorkDir()
}

func (l Layout) ensureWorkDir() error {
	return os.MkdirAll(l.WorkDir(), 0o700)
}

// archiveSize returns the archive size, or 0 when it does not exist.
func (l Layout) archiveSize() (int64, bool) {
	info, err := os.Stat(l.ArchivePath())
	if err != nil || info.IsDir() {
		return 0, false
	}
	return info.Size(), true
}

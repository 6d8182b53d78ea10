package preflight

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Aman-CERP/swiftsearch/internal/fsutil"
)

// MarkerFile records the last host check that passed. serve skips the
// startup check while it exists.
const MarkerFile = ".doctor-passed"

type marker struct {
	PassedAt time.Time `json:"passedAt"`
	Status   string    `json:"status"`
}

// NeedsCheck reports whether no passing check has been recorded in dir.
func NeedsCheck(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, MarkerFile))
	return os.IsNotExist(err)
}

// MarkPassed records a passing check with its summary status.
func MarkPassed(dir, status string) error {
	data, err := json.Marshal(marker{PassedAt: time.Now().UTC(), Status: status})
	if err != nil {
		return fmt.Errorf("encode marker: %w", err)
	}
	return fsutil.WriteFileAtomic(filepath.Join(dir, MarkerFile), data, 0o644)
}

// ClearMarker forces the next serve to check again.
func ClearMarker(dir string) error {
	err := os.Remove(filepath.Join(dir, MarkerFile))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove marker file: %w", err)
	}
	return nil
}

// MarkerAge returns how long ago the check passed, or zero without a
// readable marker.
func MarkerAge(dir string) time.Duration {
	data, err := os.ReadFile(filepath.Join(dir, MarkerFile))
	if err != nil {
		return 0
	}
	var m marker
	if err := json.Unmarshal(data, &m); err != nil || m.PassedAt.IsZero() {
		return 0
	}
	return time.Since(m.PassedAt)
}

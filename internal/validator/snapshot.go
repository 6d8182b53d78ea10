package validator

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/Aman-CERP/swiftsearch/internal/config"
	"github.com/Aman-CERP/swiftsearch/internal/engine"
	"github.com/Aman-CERP/swiftsearch/internal/logging"
)

// Snapshot opens the encrypted main index snapshot in process.
type Snapshot struct {
	logger *slog.Logger
}

// NewSnapshot returns an in-process snapshot validator.
func NewSnapshot(logger *slog.Logger) *Snapshot {
	return &Snapshot{logger: logging.OrDefault(logger)}
}

// Validate decrypts <workDir>/mainindex and counts its messages.
func (s *Snapshot) Validate(ctx context.Context, workDir, key string) (map[string]any, bool) {
	if err := ctx.Err(); err != nil {
		return failure(StatusError, err), false
	}
	raw, err := engine.DecodeKey(key)
	if err != nil {
		return failure(StatusError, err), false
	}
	msgs, manifest, err := engine.OpenSnapshot(filepath.Join(workDir, config.MainIndex), raw)
	if err != nil {
		s.logger.Warn("snapshot_validation_failed",
			slog.String("dir", workDir),
			slog.String("error", err.Error()))
		return failure(StatusCorrupted, err), false
	}
	return map[string]any{
		"status":       StatusOK,
		"count":        len(msgs),
		"indexVersion": manifest.IndexVersion,
	}, true
}

var _ Validator = (*Snapshot)(nil)

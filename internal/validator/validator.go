// Package validator checks a decompressed working directory before the
// engine loads it.
package validator

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Status values reported in a validator response.
const (
	StatusOK        = "OK"
	StatusCorrupted = "CORRUPTED"
	StatusError     = "ERROR"
)

// Modes accepted by config validator.mode.
const (
	ModeSnapshot = "snapshot"
	ModeCommand  = "command"
	ModeNone     = "none"
)

// Validator inspects workDir using the user's base64 key. The response is
// surfaced verbatim through getValidatorResponse.
type Validator interface {
	Validate(ctx context.Context, workDir string, key string) (map[string]any, bool)
}

// New returns the validator for mode. ModeNone yields a nil Validator,
// which callers treat as "skip validation".
func New(mode, path string, timeout time.Duration, logger *slog.Logger) (Validator, error) {
	switch mode {
	case ModeSnapshot, "":
		return NewSnapshot(logger), nil
	case ModeCommand:
		if path == "" {
			return nil, fmt.Errorf("validator.path is required for command mode")
		}
		return NewCommand(path, timeout, logger), nil
	case ModeNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown validator mode: %s (valid options: snapshot, command, none)", mode)
	}
}

func failure(status string, err error) map[string]any {
	return map[string]any{"status": status, "error": err.Error()}
}

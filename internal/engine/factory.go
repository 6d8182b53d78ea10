package engine

import (
	"fmt"
	"log/slog"
)

// Backend names accepted by New.
const (
	BackendBleve  = "bleve"
	BackendSQLite = "sqlite"
	BackendNative = "native"
)

// New creates an engine for backend. libraryPath is only used by the native
// backend. An empty backend selects bleve.
func New(backend, libraryPath string, logger *slog.Logger) (Engine, error) {
	switch backend {
	case BackendBleve, "":
		return NewBleveEngine(logger), nil
	case BackendSQLite:
		return NewSQLiteEngine(logger), nil
	case BackendNative:
		return NewNativeEngine(libraryPath, logger), nil
	default:
		return nil, fmt.Errorf("unknown engine backend: %s (valid options: bleve, sqlite, native)", backend)
	}
}

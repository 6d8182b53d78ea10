//go:build !darwin && !linux

package engine

import (
	"context"
	"fmt"
	"log/slog"
)

// NativeEngine is unavailable on this platform; every call fails.
type NativeEngine struct{ path string }

// NewNativeEngine returns an engine whose Init always fails here.
func NewNativeEngine(libraryPath string, logger *slog.Logger) *NativeEngine {
	return &NativeEngine{path: libraryPath}
}

var errNativeUnsupported = fmt.Errorf("native engine is only supported on linux and darwin")

func (n *NativeEngine) Init(ctx context.Context, dictPath string) error { return errNativeUnsupported }
func (n *NativeEngine) Destroy() error                                  { return nil }
func (n *NativeEngine) ClearMainIndex(ctx context.Context) error        { return errNativeUnsupported }
func (n *NativeEngine) ClearRealtimeIndex(ctx context.Context) error    { return errNativeUnsupported }
func (n *NativeEngine) IndexMain(ctx context.Context, messagesJSON string) (int, error) {
	return 0, errNativeUnsupported
}
func (n *NativeEngine) IndexRealtime(ctx context.Context, messagesJSON string) (int, error) {
	return 0, errNativeUnsupported
}
func (n *NativeEngine) Search(ctx context.Context, req SearchRequest) (*Result, error) {
	return nil, errNativeUnsupported
}
func (n *NativeEngine) GetLastTimestamp(ctx context.Context) (*Result, error) {
	return nil, errNativeUnsupported
}
func (n *NativeEngine) DeleteMessages(ctx context.Context, filter string, fromTs, toTs int64) (int, error) {
	return 0, errNativeUnsupported
}
func (n *NativeEngine) SerializeMainIndex(ctx context.Context, dir string, key []byte) (int, error) {
	return 0, errNativeUnsupported
}
func (n *NativeEngine) DeserializeMainIndex(ctx context.Context, dir string, key []byte) (int, error) {
	return 0, errNativeUnsupported
}

var _ Engine = (*NativeEngine)(nil)

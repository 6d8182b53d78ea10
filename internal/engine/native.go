//go:build darwin || linux

package engine

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"

	"github.com/Aman-CERP/swiftsearch/internal/config"
	"github.com/Aman-CERP/swiftsearch/internal/logging"
)

// nativeSymbols are the libsymphonysearch entry points in use.
type nativeSymbols struct {
	init        func(dictPath string)
	destroy     func() int32
	clearMain   func() int32
	clearRT     func() int32
	indexMain   func(messages string) int32
	indexRT     func(messages string) int32
	search      func(query, start, end string, offset, limit, sortOrder int32) *byte
	lastTs      func() *byte
	deleteMsgs  func(filter *byte, from, to string) int32
	serialize   func(dir, key string) int32
	deserialize func(dir, key string) int32
	free        func(res *byte) int32
}

// NativeEngine binds the libsymphonysearch shared library through purego.
// The library keeps process-global state, so every call is serialized.
type NativeEngine struct {
	path   string
	logger *slog.Logger

	mu  sync.Mutex
	lib uintptr
	fn  *nativeSymbols
}

// NewNativeEngine returns an engine that loads libraryPath on first Init.
func NewNativeEngine(libraryPath string, logger *slog.Logger) *NativeEngine {
	return &NativeEngine{path: libraryPath, logger: logging.OrDefault(logger)}
}

func (n *NativeEngine) load() (err error) {
	if n.fn != nil {
		return nil
	}
	if n.path == "" {
		return fmt.Errorf("native engine: library path is not configured")
	}
	lib, err := purego.Dlopen(n.path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return fmt.Errorf("load %s: %w", n.path, err)
	}
	// RegisterLibFunc panics on a missing symbol
	defer func() {
		if r := recover(); r != nil {
			_ = purego.Dlclose(lib)
			err = fmt.Errorf("bind %s: %v", n.path, r)
		}
	}()

	fn := &nativeSymbols{}
	purego.RegisterLibFunc(&fn.init, lib, "symSE_init")
	purego.RegisterLibFunc(&fn.destroy, lib, "symSE_destroy")
	purego.RegisterLibFunc(&fn.clearMain, lib, "symSE_clear_main_RAM_index")
	purego.RegisterLibFunc(&fn.clearRT, lib, "symSE_clear_realtime_RAM_index")
	purego.RegisterLibFunc(&fn.indexMain, lib, "symSE_index_main_RAM")
	purego.RegisterLibFunc(&fn.indexRT, lib, "symSE_index_realtime_RAM")
	purego.RegisterLibFunc(&fn.search, lib, "symSE_RAM_index_search")
	purego.RegisterLibFunc(&fn.lastTs, lib, "symSE_main_RAM_index_get_last_message_timestamp")
	purego.RegisterLibFunc(&fn.deleteMsgs, lib, "symSE_delete_messages_from_RAM_index")
	purego.RegisterLibFunc(&fn.serialize, lib, "symSE_serialize_main_index_to_encrypted_folders")
	purego.RegisterLibFunc(&fn.deserialize, lib, "symSE_deserialize_main_index_from_encrypted_folders")
	purego.RegisterLibFunc(&fn.free, lib, "symSE_free_results")

	n.lib, n.fn = lib, fn
	n.logger.Info("native_engine_loaded", slog.String("path", n.path))
	return nil
}

func (n *NativeEngine) Init(ctx context.Context, dictPath string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.load(); err != nil {
		return err
	}
	n.fn.init(dictPath)
	return nil
}

// Destroy releases the library's indexes. The library stays loaded.
func (n *NativeEngine) Destroy() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fn == nil {
		return nil
	}
	return status("destroy", n.fn.destroy())
}

func (n *NativeEngine) ClearMainIndex(ctx context.Context) error {
	return n.call("clear main index", func(fn *nativeSymbols) int32 { return fn.clearMain() })
}

func (n *NativeEngine) ClearRealtimeIndex(ctx context.Context) error {
	return n.call("clear realtime index", func(fn *nativeSymbols) int32 { return fn.clearRT() })
}

func (n *NativeEngine) IndexMain(ctx context.Context, messagesJSON string) (int, error) {
	return n.count("index main", func(fn *nativeSymbols) int32 { return fn.indexMain(messagesJSON) })
}

func (n *NativeEngine) IndexRealtime(ctx context.Context, messagesJSON string) (int, error) {
	return n.count("index realtime", func(fn *nativeSymbols) int32 { return fn.indexRT(messagesJSON) })
}

func (n *NativeEngine) Search(ctx context.Context, req SearchRequest) (*Result, error) {
	return n.result("search", func(fn *nativeSymbols) *byte {
		return fn.search(req.Query, strconv.FormatInt(req.StartTs, 10), strconv.FormatInt(req.EndTs, 10),
			int32(req.Offset), int32(req.Limit), int32(req.SortOrder))
	})
}

func (n *NativeEngine) GetLastTimestamp(ctx context.Context) (*Result, error) {
	r, err := n.result("latest timestamp", func(fn *nativeSymbols) *byte { return fn.lastTs() })
	if err != nil {
		return nil, err
	}
	if len(r.Bytes()) == 0 {
		r.Free()
		return NewResult([]byte(config.MinimumDate)), nil
	}
	return r, nil
}

func (n *NativeEngine) DeleteMessages(ctx context.Context, filter string, fromTs, toTs int64) (int, error) {
	cfilter := cString(filter)
	count, err := n.count("delete messages", func(fn *nativeSymbols) int32 {
		return fn.deleteMsgs(cfilter, FormatTimestamp(fromTs), FormatTimestamp(toTs))
	})
	runtime.KeepAlive(cfilter)
	return count, err
}

func (n *NativeEngine) SerializeMainIndex(ctx context.Context, dir string, key []byte) (int, error) {
	k := base64.StdEncoding.EncodeToString(key)
	return n.count("serialize main index", func(fn *nativeSymbols) int32 { return fn.serialize(dir, k) })
}

func (n *NativeEngine) DeserializeMainIndex(ctx context.Context, dir string, key []byte) (int, error) {
	k := base64.StdEncoding.EncodeToString(key)
	return n.count("deserialize main index", func(fn *nativeSymbols) int32 { return fn.deserialize(dir, k) })
}

func (n *NativeEngine) call(op string, f func(*nativeSymbols) int32) error {
	_, err := n.count(op, f)
	return err
}

func (n *NativeEngine) count(op string, f func(*nativeSymbols) int32) (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fn == nil {
		return 0, errNotInitialized
	}
	rc := f(n.fn)
	if err := status(op, rc); err != nil {
		return 0, err
	}
	return int(rc), nil
}

func (n *NativeEngine) result(op string, f func(*nativeSymbols) *byte) (*Result, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fn == nil {
		return nil, errNotInitialized
	}
	p := f(n.fn)
	if p == nil {
		return nil, fmt.Errorf("native %s: no result", op)
	}
	free := n.fn.free
	return newOwnedResult(cBytes(p), func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		free(p)
	}), nil
}

func status(op string, rc int32) error {
	if rc < 0 {
		return fmt.Errorf("native %s: status %d", op, rc)
	}
	return nil
}

// cBytes views a NUL-terminated C buffer. The slice aliases native memory
// and is only valid until the owning Result is freed.
func cBytes(p *byte) []byte {
	n := 0
	for *(*byte)(unsafe.Add(unsafe.Pointer(p), n)) != 0 {
		n++
	}
	return unsafe.Slice(p, n)
}

// cString returns a NUL-terminated copy of s, or nil for "".
func cString(s string) *byte {
	if s == "" {
		return nil
	}
	b := make([]byte, len(s)+1)
	copy(b, s)
	return &b[0]
}

var _ Engine = (*NativeEngine)(nil)

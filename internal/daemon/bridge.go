package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/Aman-CERP/swiftsearch/internal/config"
	"github.com/Aman-CERP/swiftsearch/internal/engine"
	amerrors "github.com/Aman-CERP/swiftsearch/internal/errors"
	"github.com/Aman-CERP/swiftsearch/internal/lifecycle"
	"github.com/Aman-CERP/swiftsearch/internal/logging"
	"github.com/Aman-CERP/swiftsearch/internal/userconfig"
	"github.com/Aman-CERP/swiftsearch/pkg/version"
)

// Index is the per-user index the bridge drives. *lifecycle.Manager
// implements it.
type Index interface {
	UserID() string
	State() lifecycle.State
	IsLibInit() bool
	IsRealTimeIndexing() bool
	IndexBatch(ctx context.Context, messages *string) (int, error)
	BatchRealTimeIndexing(message json.RawMessage)
	SearchQueryV2(ctx context.Context, p lifecycle.SearchPayload) (engine.SearchResult, error)
	GetLatestMessageTimestamp(ctx context.Context) (string, error)
	EncryptIndex(ctx context.Context, key string) error
	DeleteRealTimeFolder(ctx context.Context)
	ValidatorResponse() map[string]any
	DestroyLibrary()
}

// Opener builds the index for an initialSearch. onInit must observe every
// readiness change of the new index.
type Opener func(ctx context.Context, p InitialSearchParams, onInit func(bool)) (Index, error)

// UserConfigs is the shared per-user config document.
type UserConfigs interface {
	Get(userID string) (*userconfig.UserConfig, error)
	Update(userID string, data *userconfig.UserConfig) (*userconfig.UserConfig, error)
}

// preInit lists the methods served before the index is ready.
var preInit = map[string]bool{
	MethodInitialSearch:        true,
	MethodCheckDiskSpace:       true,
	MethodGetSearchUserConfig:  true,
	MethodUpdateUserConfig:     true,
	MethodSearch:               true,
	MethodGetValidatorResponse: true,
	MethodPing:                 true,
	MethodStatus:               true,
	MethodSubscribe:            true,
}

// BridgeOptions wires a Bridge.
type BridgeOptions struct {
	Open      Opener
	DiskSpace lifecycle.DiskSpace
	Users     UserConfigs
	Logger    *slog.Logger
}

// Bridge maps bridge commands onto the current index. At most one index is
// live; a new initialSearch destroys the previous one first.
type Bridge struct {
	open    Opener
	disk    lifecycle.DiskSpace
	users   UserConfigs
	logger  *slog.Logger
	started time.Time

	// initMu serializes index replacement.
	initMu sync.Mutex

	mu      sync.RWMutex
	index   Index
	publish func(Notification)
}

// NewBridge creates a bridge with no index.
func NewBridge(opts BridgeOptions) *Bridge {
	return &Bridge{
		open:    opts.Open,
		disk:    opts.DiskSpace,
		users:   opts.Users,
		logger:  logging.OrDefault(opts.Logger),
		started: time.Now(),
	}
}

// SetPublisher sets the sink for readiness notifications.
func (b *Bridge) SetPublisher(fn func(Notification)) {
	b.mu.Lock()
	b.publish = fn
	b.mu.Unlock()
}

// Current returns the live index, or nil.
func (b *Bridge) Current() Index {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.index
}

// publishInitState broadcasts a readiness change to subscribers.
func (b *Bridge) publishInitState(ready bool) {
	b.mu.RLock()
	fn := b.publish
	b.mu.RUnlock()
	if fn == nil {
		return
	}
	fn(Notification{JSONRPC: "2.0", Method: MethodSetIsSwiftSearchInitialized, Data: ready})
}

// Close destroys the live index.
func (b *Bridge) Close() {
	b.initMu.Lock()
	defer b.initMu.Unlock()
	b.replace(nil)
}

// replace swaps in next and destroys the previous index.
func (b *Bridge) replace(next Index) {
	b.mu.Lock()
	prev := b.index
	b.index = next
	b.mu.Unlock()
	if prev != nil {
		prev.DestroyLibrary()
	}
}

// Handle dispatches one request. Calls made before the index is ready are
// dropped unless whitelisted.
func (b *Bridge) Handle(ctx context.Context, req Request) Response {
	if req.Method == MethodSetIsSwiftSearchInitialized {
		return NewSuccessResponse(req.ID, nil)
	}
	idx := b.Current()
	if !preInit[req.Method] && (idx == nil || !idx.IsLibInit()) {
		b.logger.Info("bridge_call_before_init", slog.String("method", req.Method))
		return NewErrorResponse(req.ID, ErrCodeNotInitialized, "not initialized")
	}

	switch req.Method {
	case MethodPing:
		return NewSuccessResponse(req.ID, PingResult{Pong: true, Version: version.Short()})
	case MethodStatus:
		return NewSuccessResponse(req.ID, b.Status())
	case MethodInitialSearch:
		return b.initialSearch(ctx, req)
	case MethodIndexBatch:
		return b.indexBatch(ctx, idx, req)
	case MethodRealTimeIndex:
		return b.realTimeIndex(idx, req)
	case MethodSearch:
		return b.search(ctx, idx, req)
	case MethodGetLatestTimestamp:
		return b.latestTimestamp(ctx, idx, req)
	case MethodEncryptIndex:
		return b.encryptIndex(ctx, idx, req)
	case MethodDeleteRealTimeIndex:
		idx.DeleteRealTimeFolder(ctx)
		return NewSuccessResponse(req.ID, nil)
	case MethodCheckDiskSpace:
		return b.checkDiskSpace(ctx, req)
	case MethodGetSearchUserConfig:
		return b.getUserConfig(req)
	case MethodUpdateUserConfig:
		return b.updateUserConfig(req)
	case MethodGetValidatorResponse:
		var resp map[string]any
		if idx != nil {
			resp = idx.ValidatorResponse()
		}
		return NewSuccessResponse(req.ID, resp)
	default:
		return NewErrorResponse(req.ID, ErrCodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
	}
}

// Status reports the daemon and the live index.
func (b *Bridge) Status() StatusResult {
	st := StatusResult{
		Running: true,
		PID:     os.Getpid(),
		Uptime:  time.Since(b.started).Round(time.Second).String(),
		Version: version.Short(),
		State:   lifecycle.StateUninitialized.String(),
	}
	if idx := b.Current(); idx != nil {
		st.Initialized = idx.IsLibInit()
		st.State = idx.State().String()
		st.UserID = idx.UserID()
		st.RealTimeIndexing = idx.IsRealTimeIndexing()
	}
	return st
}

func decodeParams(req Request, dst any) error {
	if len(req.Params) == 0 || bytes.Equal(bytes.TrimSpace(req.Params), []byte("null")) {
		return nil
	}
	return json.Unmarshal(req.Params, dst)
}

func (b *Bridge) initialSearch(ctx context.Context, req Request) Response {
	var p InitialSearchParams
	if err := decodeParams(req, &p); err != nil {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, "failed to decode params")
	}
	if p.UserID == "" {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, "userId is required")
	}
	if b.open == nil {
		return NewErrorResponse(req.ID, ErrCodeInternalError, "no index opener configured")
	}

	b.initMu.Lock()
	defer b.initMu.Unlock()

	b.replace(nil)
	b.logger.Info("bridge_initial_search",
		slog.String("user_id", p.UserID),
		slog.Bool("reindex", p.Payload.ReIndex))
	idx, err := b.open(ctx, p, b.publishInitState)
	if err != nil {
		b.logger.Error("bridge_open_failed", amerrors.LogAttrs(err)...)
		return newFailureResponse(req.ID, err)
	}
	b.mu.Lock()
	b.index = idx
	b.mu.Unlock()
	return NewSuccessResponse(req.ID, true)
}

func (b *Bridge) indexBatch(ctx context.Context, idx Index, req Request) Response {
	var p IndexBatchParams
	if err := decodeParams(req, &p); err != nil {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, "failed to decode params")
	}
	n, err := idx.IndexBatch(ctx, p.Message)
	if err != nil {
		return NewSuccessResponse(req.ID, IndexBatchResult{Status: false, Data: amerrors.MessageOf(err)})
	}
	return NewSuccessResponse(req.ID, IndexBatchResult{Status: true, Data: n})
}

func (b *Bridge) realTimeIndex(idx Index, req Request) Response {
	var p RealTimeIndexParams
	if err := decodeParams(req, &p); err != nil {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, "failed to decode params")
	}
	msg := bytes.TrimSpace(p.Message)
	if len(msg) == 0 || bytes.Equal(msg, []byte("null")) {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, "message is required")
	}
	idx.BatchRealTimeIndexing(msg)
	return NewSuccessResponse(req.ID, nil)
}

func (b *Bridge) search(ctx context.Context, idx Index, req Request) Response {
	var p lifecycle.SearchPayload
	if err := decodeParams(req, &p); err != nil {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, "failed to decode params")
	}
	if idx == nil {
		return NewSuccessResponse(req.ID, engine.EmptyResult())
	}
	res, err := idx.SearchQueryV2(ctx, p)
	if err != nil {
		return newFailureResponse(req.ID, err)
	}
	return NewSuccessResponse(req.ID, res)
}

func (b *Bridge) latestTimestamp(ctx context.Context, idx Index, req Request) Response {
	ts, err := idx.GetLatestMessageTimestamp(ctx)
	if err != nil {
		return NewSuccessResponse(req.ID, TimestampResult{Status: false, Timestamp: amerrors.MessageOf(err)})
	}
	return NewSuccessResponse(req.ID, TimestampResult{Status: true, Timestamp: ts})
}

func (b *Bridge) encryptIndex(ctx context.Context, idx Index, req Request) Response {
	var p EncryptIndexParams
	if err := decodeParams(req, &p); err != nil {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, "failed to decode params")
	}
	if err := idx.EncryptIndex(ctx, p.Key); err != nil {
		return newFailureResponse(req.ID, err)
	}
	return NewSuccessResponse(req.ID, true)
}

func (b *Bridge) checkDiskSpace(ctx context.Context, req Request) Response {
	var p CheckDiskSpaceParams
	if err := decodeParams(req, &p); err != nil {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, "failed to decode params")
	}
	if b.disk == nil {
		return NewErrorResponse(req.ID, ErrCodeInternalError, "no disk probe configured")
	}
	if p.MinimumDiskSpace <= 0 {
		p.MinimumDiskSpace = config.MinimumDiskSpace
	}
	ok, err := b.disk.HasFreeSpace(ctx, p.MinimumDiskSpace)
	if err != nil {
		return newFailureResponse(req.ID, amerrors.IOError("disk space check failed", err))
	}
	return NewSuccessResponse(req.ID, ok)
}

func (b *Bridge) getUserConfig(req Request) Response {
	var p UserConfigParams
	if err := decodeParams(req, &p); err != nil {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, "failed to decode params")
	}
	if b.users == nil {
		return NewErrorResponse(req.ID, ErrCodeInternalError, "no user config store configured")
	}
	cfg, err := b.users.Get(p.UserID)
	if err != nil {
		return newFailureResponse(req.ID, err)
	}
	return NewSuccessResponse(req.ID, cfg)
}

func (b *Bridge) updateUserConfig(req Request) Response {
	var p UpdateUserConfigParams
	if err := decodeParams(req, &p); err != nil {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, "failed to decode params")
	}
	if b.users == nil {
		return NewErrorResponse(req.ID, ErrCodeInternalError, "no user config store configured")
	}
	cfg, err := b.users.Update(p.UserID, p.UserData)
	if err != nil {
		return newFailureResponse(req.ID, err)
	}
	return NewSuccessResponse(req.ID, cfg)
}

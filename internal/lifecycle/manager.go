// Package lifecycle owns one user's search index from archive to memory and
// back.
//
// A Manager bootstraps asynchronously: it reads the user config, unpacks the
// archive, checks size and free space, validates the unpacked snapshot and
// loads it into the engine. Every failure lands in a defined state: either
// disabled (not initialized) or ready with a fresh, possibly empty, index.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Aman-CERP/swiftsearch/internal/archive"
	"github.com/Aman-CERP/swiftsearch/internal/collector"
	"github.com/Aman-CERP/swiftsearch/internal/config"
	"github.com/Aman-CERP/swiftsearch/internal/engine"
	amerrors "github.com/Aman-CERP/swiftsearch/internal/errors"
	"github.com/Aman-CERP/swiftsearch/internal/logging"
	"github.com/Aman-CERP/swiftsearch/internal/query"
	"github.com/Aman-CERP/swiftsearch/internal/telemetry"
	"github.com/Aman-CERP/swiftsearch/internal/userconfig"
	"github.com/Aman-CERP/swiftsearch/internal/validator"
)

// DiskSpace reports whether at least minBytes are free next to the index.
type DiskSpace interface {
	HasFreeSpace(ctx context.Context, minBytes int64) (bool, error)
}

// ConfigStore looks up the per-user config record.
type ConfigStore interface {
	Get(userID string) (*userconfig.UserConfig, error)
}

// Paths locates persisted state.
type Paths struct {
	IndexDir string
	DictPath string
}

// Limits tunes the lifecycle. Zero values take the package defaults.
type Limits struct {
	// MinimumDiskSpace is both the archive size ceiling and the free space
	// required for a fresh index.
	MinimumDiskSpace int64
	SearchPeriod     time.Duration
	FlushInterval    time.Duration
	IndexVersion     string
}

func (l Limits) withDefaults() Limits {
	if l.MinimumDiskSpace <= 0 {
		l.MinimumDiskSpace = config.MinimumDiskSpace
	}
	if l.SearchPeriod <= 0 {
		l.SearchPeriod = config.SearchPeriod
	}
	if l.FlushInterval <= 0 {
		l.FlushInterval = config.RealTimeIndexingTime
	}
	if l.IndexVersion == "" {
		l.IndexVersion = config.IndexVersion
	}
	return l
}

// Options wires a Manager to its collaborators. Slot (or Engine, which is
// wrapped in a private slot) and Archiver are required; DiskSpace,
// Validator and ConfigStore may be nil to skip their step.
type Options struct {
	Slot        *engine.Slot
	Engine      engine.Engine
	Archiver    archive.Archiver
	DiskSpace   DiskSpace
	Validator   validator.Validator
	ConfigStore ConfigStore
	Queries     *query.Builder
	Paths       Paths
	Limits      Limits

	// ForceReindex skips the archive even when the stored version matches.
	ForceReindex bool

	// OnInitState observes every readiness change.
	OnInitState func(bool)

	Logger  *slog.Logger
	Metrics *telemetry.Metrics
	Stats   *telemetry.SearchStats
}

var ownerSeq atomic.Uint64

// Manager is the index lifecycle for one user. Methods are safe for
// concurrent use.
type Manager struct {
	userID  string
	owner   string
	layout  Layout
	dict    string
	limits  Limits
	slot    *engine.Slot
	engine  engine.Engine
	archive archive.Archiver
	disk    DiskSpace
	valid   validator.Validator
	store   ConfigStore
	queries *query.Builder
	reindex bool
	notify  func(bool)
	logger  *slog.Logger
	metrics *telemetry.Metrics
	stats   *telemetry.SearchStats

	collector *collector.Collector

	mu                sync.Mutex
	state             State
	validatorResponse map[string]any

	flushInFlight atomic.Bool

	// opMu serializes bootstrap, encryption and teardown against each other.
	opMu sync.Mutex

	ctx          context.Context
	cancel       context.CancelFunc
	done         chan struct{}
	bootstrapErr error
	destroyOnce  sync.Once

	now func() time.Time
}

// New checks out the engine, builds the real-time collector and starts the
// bootstrap in the background. The returned manager is not initialized until
// Done is closed and IsLibInit reports true.
//
// ctx only bounds construction; the bootstrap runs until it completes or
// DestroyLibrary is called.
func New(ctx context.Context, userID, key string, opts Options) (*Manager, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, amerrors.ValidationError("userId is required", nil)
	}
	if opts.Archiver == nil {
		return nil, amerrors.InternalError("archiver is required", nil)
	}
	slot := opts.Slot
	if slot == nil {
		if opts.Engine == nil {
			return nil, amerrors.InternalError("engine is required", nil)
		}
		slot = engine.NewSlot(opts.Engine)
	}

	owner := fmt.Sprintf("%s#%d", userID, ownerSeq.Add(1))
	eng, err := slot.Acquire(owner)
	if err != nil {
		return nil, err
	}

	logger := logging.OrDefault(opts.Logger).With(slog.String("user_id", userID))
	bctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		userID:  userID,
		owner:   owner,
		layout:  Layout{IndexDir: opts.Paths.IndexDir, UserID: userID},
		dict:    opts.Paths.DictPath,
		limits:  opts.Limits.withDefaults(),
		slot:    slot,
		engine:  eng,
		archive: opts.Archiver,
		disk:    opts.DiskSpace,
		valid:   opts.Validator,
		store:   opts.ConfigStore,
		queries: opts.Queries,
		reindex: opts.ForceReindex,
		notify:  opts.OnInitState,
		logger:  logger,
		metrics: opts.Metrics,
		stats:   opts.Stats,
		state:   StateUninitialized,
		ctx:     bctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		now:     time.Now,
	}
	m.collector = collector.New(collector.Options{
		IsBusy:  m.IsRealTimeIndexing,
		Timeout: m.limits.FlushInterval,
		Flush:   m.flushRealTime,
		Logger:  logger,
	})

	logger.Info("index_manager_created", slog.Int("key_length", len(key)))
	go m.bootstrap(key)
	return m, nil
}

func (m *Manager) bootstrap(key string) {
	defer close(m.done)

	m.opMu.Lock()
	defer m.opMu.Unlock()

	start := time.Now()
	err := m.checkUserConfig(m.ctx, key)
	m.bootstrapErr = err
	if err != nil {
		m.logger.Warn("index_bootstrap_degraded",
			append(amerrors.LogAttrs(err), slog.Duration("elapsed", time.Since(start)))...)
		return
	}
	m.logger.Info("index_bootstrap_complete",
		slog.Bool("initialized", m.IsLibInit()),
		slog.Duration("elapsed", time.Since(start)))
}

// Done is closed when the bootstrap finishes, whatever the outcome.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// WaitBootstrap blocks until the bootstrap finishes and returns its error.
// A non-nil error means the index was disabled or reset, not that the
// manager is unusable.
func (m *Manager) WaitBootstrap(ctx context.Context) error {
	select {
	case <-m.done:
		return m.bootstrapErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// UserID returns the owning user.
func (m *Manager) UserID() string {
	return m.userID
}

// Layout returns the on-disk locations of this user's index.
func (m *Manager) Layout() Layout {
	return m.layout
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsLibInit reports whether the index accepts operations.
func (m *Manager) IsLibInit() bool {
	return m.State().initialized()
}

// IsRealTimeIndexing reports whether a real-time engine call is in flight.
func (m *Manager) IsRealTimeIndexing() bool {
	return m.flushInFlight.Load() && m.IsLibInit()
}

// PendingRealTime returns the number of events waiting in the collector.
func (m *Manager) PendingRealTime() int {
	return m.collector.Pending()
}

// ValidatorResponse returns a copy of the last validator diagnostic, or nil.
func (m *Manager) ValidatorResponse() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.validatorResponse == nil {
		return nil
	}
	out := make(map[string]any, len(m.validatorResponse))
	for k, v := range m.validatorResponse {
		out[k] = v
	}
	return out
}

// Status is the view used by metrics scrapes.
func (m *Manager) Status() telemetry.Status {
	return telemetry.Status{
		Ready:           m.IsLibInit(),
		RealTimeFlush:   m.IsRealTimeIndexing(),
		PendingRealTime: m.PendingRealTime(),
	}
}

// SetLibInitState is the single readiness transition point. true moves to
// ready; false moves to uninitialized. A destroyed manager stays destroyed.
func (m *Manager) SetLibInitState(ready bool) {
	m.mu.Lock()
	if m.state == StateDestroyed {
		m.mu.Unlock()
		return
	}
	next := StateUninitialized
	if ready {
		next = StateReady
	}
	m.state = next
	m.mu.Unlock()

	m.metrics.Transition(next.String(), ready)
	m.logger.Info("index_init_state", slog.Bool("initialized", ready))
	if m.notify != nil {
		m.notify(ready)
	}
}

// setState moves between intermediate states. It refuses to leave
// StateDestroyed and reports whether the move happened.
func (m *Manager) setState(next State) bool {
	m.mu.Lock()
	if m.state == StateDestroyed {
		m.mu.Unlock()
		return false
	}
	m.state = next
	m.mu.Unlock()

	m.metrics.Transition(next.String(), next.initialized())
	m.logger.Debug("index_state", slog.String("state", next.String()))
	return true
}

func (m *Manager) setValidatorResponse(resp map[string]any) {
	m.mu.Lock()
	m.validatorResponse = resp
	m.mu.Unlock()
}

// DestroyLibrary marks the manager destroyed, stops the collector, waits
// for any running bootstrap or encryption, then destroys the engine and
// releases the slot. Calls after the first are no-ops.
func (m *Manager) DestroyLibrary() {
	m.destroyOnce.Do(func() {
		m.SetLibInitState(false)
		m.mu.Lock()
		m.state = StateDestroyed
		m.mu.Unlock()
		m.metrics.Transition(StateDestroyed.String(), false)

		m.collector.Stop()
		m.cancel()

		m.opMu.Lock()
		defer m.opMu.Unlock()

		if err := m.engine.Destroy(); err != nil {
			m.logger.Warn("engine_destroy_failed", slog.String("error", err.Error()))
		}
		m.slot.Release(m.owner)
		m.logger.Info("index_manager_destroyed")
	})
}

func (m *Manager) destroyed() bool {
	return m.State() == StateDestroyed
}

// timed runs one engine call and records its latency.
func (m *Manager) timed(op string, fn func()) {
	start := time.Now()
	fn()
	m.metrics.EngineCall(op, time.Since(start))
}

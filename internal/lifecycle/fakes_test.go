package lifecycle

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/swiftsearch/internal/config"
	"github.com/Aman-CERP/swiftsearch/internal/engine"
	"github.com/Aman-CERP/swiftsearch/internal/userconfig"
)

var errFake = errors.New("fake failure")

// fakeEngine records calls and returns canned results.
type fakeEngine struct {
	mu sync.Mutex

	calls []string

	initErr        error
	indexMainErr   error
	indexRTErr     error
	searchErr      error
	timestampErr   error
	serializeErr   error
	deserializeErr error

	searchPayload []byte
	timestamp     string
	lastRequest   engine.SearchRequest
	deleted       [][2]int64
	rtBlock       chan struct{}
	rtBatches     []string
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		searchPayload: []byte(`{"messages":[{"messageId":"m1"}],"more":0,"returned":1,"total":1}`),
		timestamp:     "0000000000000",
	}
}

func (f *fakeEngine) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeEngine) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeEngine) count(call string) int {
	n := 0
	for _, c := range f.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeEngine) Init(context.Context, string) error {
	f.record("init")
	return f.initErr
}

func (f *fakeEngine) Destroy() error {
	f.record("destroy")
	return nil
}

func (f *fakeEngine) ClearMainIndex(context.Context) error {
	f.record("clear_main")
	return nil
}

func (f *fakeEngine) ClearRealtimeIndex(context.Context) error {
	f.record("clear_realtime")
	return nil
}

func (f *fakeEngine) IndexMain(_ context.Context, _ string) (int, error) {
	f.record("index_main")
	if f.indexMainErr != nil {
		return 0, f.indexMainErr
	}
	return 2, nil
}

func (f *fakeEngine) IndexRealtime(_ context.Context, messages string) (int, error) {
	f.record("index_realtime")
	f.mu.Lock()
	block := f.rtBlock
	f.rtBatches = append(f.rtBatches, messages)
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	if f.indexRTErr != nil {
		return 0, f.indexRTErr
	}
	return 1, nil
}

func (f *fakeEngine) batches() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.rtBatches...)
}

func (f *fakeEngine) Search(_ context.Context, req engine.SearchRequest) (*engine.Result, error) {
	f.record("search")
	f.mu.Lock()
	f.lastRequest = req
	f.mu.Unlock()
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.handle(f.searchPayload), nil
}

func (f *fakeEngine) GetLastTimestamp(context.Context) (*engine.Result, error) {
	f.record("last_timestamp")
	if f.timestampErr != nil {
		return nil, f.timestampErr
	}
	return f.handle([]byte(f.timestamp)), nil
}

func (f *fakeEngine) handle(data []byte) *engine.Result {
	return engine.NewResult(append([]byte(nil), data...))
}

func (f *fakeEngine) DeleteMessages(_ context.Context, _ string, from, to int64) (int, error) {
	f.record("delete")
	f.mu.Lock()
	f.deleted = append(f.deleted, [2]int64{from, to})
	f.mu.Unlock()
	return 0, nil
}

func (f *fakeEngine) SerializeMainIndex(_ context.Context, dir string, _ []byte) (int, error) {
	f.record("serialize")
	if f.serializeErr != nil {
		return 0, f.serializeErr
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return 0, err
	}
	return 3, os.WriteFile(filepath.Join(dir, "snapshot.ssx"), []byte("data"), 0o600)
}

func (f *fakeEngine) DeserializeMainIndex(context.Context, string, []byte) (int, error) {
	f.record("deserialize")
	if f.deserializeErr != nil {
		return 0, f.deserializeErr
	}
	return 3, nil
}

func (f *fakeEngine) lastSearch() engine.SearchRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastRequest
}

// fakeArchiver copies nothing; it creates the work dir on decompress and an
// archive file on compress.
type fakeArchiver struct {
	mu              sync.Mutex
	decompressOK    bool
	compressOK      bool
	decompressCalls int
	compressCalls   int
	workDirSeen     bool
}

func (a *fakeArchiver) Decompress(_ context.Context, archivePath, _ string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.decompressCalls++
	if !a.decompressOK {
		return false
	}
	work := archivePath[:len(archivePath)-len(config.ArchiveExt)]
	return os.MkdirAll(filepath.Join(work, config.MainIndex), 0o700) == nil
}

func (a *fakeArchiver) Compress(_ context.Context, sourceDir, archivePath string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.compressCalls++
	_, err := os.Stat(filepath.Join(sourceDir, config.MainIndex))
	a.workDirSeen = err == nil
	if !a.compressOK {
		return false
	}
	return os.WriteFile(archivePath, []byte("archive"), 0o600) == nil
}

type fakeDisk struct {
	free     bool
	err      error
	mu       sync.Mutex
	required []int64
}

func (d *fakeDisk) HasFreeSpace(_ context.Context, minBytes int64) (bool, error) {
	d.mu.Lock()
	d.required = append(d.required, minBytes)
	d.mu.Unlock()
	return d.free, d.err
}

type fakeValidator struct {
	resp  map[string]any
	ok    bool
	calls int
}

func (v *fakeValidator) Validate(context.Context, string, string) (map[string]any, bool) {
	v.calls++
	return v.resp, v.ok
}

type fakeStore struct {
	cfg *userconfig.UserConfig
	err error
}

func (s *fakeStore) Get(string) (*userconfig.UserConfig, error) {
	return s.cfg, s.err
}

func testKey() string {
	raw := make([]byte, config.KeyLength)
	for i := range raw {
		raw[i] = byte(i + 1)
	}
	return base64.StdEncoding.EncodeToString(raw)
}

func otherKey() string {
	raw := make([]byte, config.KeyLength)
	for i := range raw {
		raw[i] = byte(200 - i)
	}
	return base64.StdEncoding.EncodeToString(raw)
}

// harness wires a manager to fakes under a temp index dir.
type harness struct {
	dir       string
	engine    *fakeEngine
	archiver  *fakeArchiver
	disk      *fakeDisk
	validator *fakeValidator
	store     *fakeStore
	states    chan bool
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return &harness{
		dir:       t.TempDir(),
		engine:    newFakeEngine(),
		archiver:  &fakeArchiver{decompressOK: true, compressOK: true},
		disk:      &fakeDisk{free: true},
		validator: &fakeValidator{resp: map[string]any{"status": "OK"}, ok: true},
		store:     &fakeStore{cfg: &userconfig.UserConfig{IndexVersion: config.IndexVersion}},
		states:    make(chan bool, 32),
	}
}

func (h *harness) options() Options {
	return Options{
		Engine:      h.engine,
		Archiver:    h.archiver,
		DiskSpace:   h.disk,
		Validator:   h.validator,
		ConfigStore: h.store,
		Paths:       Paths{IndexDir: h.dir},
		Limits:      Limits{FlushInterval: time.Hour},
		OnInitState: func(ready bool) {
			select {
			case h.states <- ready:
			default:
			}
		},
	}
}

func (h *harness) layout() Layout {
	return Layout{IndexDir: h.dir, UserID: "u1"}
}

func (h *harness) writeArchive(t *testing.T, size int) {
	t.Helper()
	require.NoError(t, os.WriteFile(h.layout().ArchivePath(), make([]byte, size), 0o600))
}

// start builds a manager and waits for its bootstrap.
func (h *harness) start(t *testing.T, key string) (*Manager, error) {
	t.Helper()
	m, err := New(context.Background(), "u1", key, h.options())
	require.NoError(t, err)
	t.Cleanup(m.DestroyLibrary)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return m, m.WaitBootstrap(ctx)
}

package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/swiftsearch/internal/config"
	"github.com/Aman-CERP/swiftsearch/internal/engine"
	amerrors "github.com/Aman-CERP/swiftsearch/internal/errors"
	"github.com/Aman-CERP/swiftsearch/internal/query"
	"github.com/Aman-CERP/swiftsearch/internal/userconfig"
)

func strPtr(s string) *string { return &s }

func num(v float64) *float64 { return &v }

func assertEmptyWorkDir(t *testing.T, l Layout) {
	t.Helper()
	entries, err := os.ReadDir(l.WorkDir())
	require.NoError(t, err, "working dir should exist")
	assert.Empty(t, entries)
}

// =============================================================================
// Bootstrap
// =============================================================================

func TestBootstrap_FreshWithoutArchive(t *testing.T) {
	// Given: no archive on disk
	h := newHarness(t)

	// When: the manager bootstraps
	m, err := h.start(t, testKey())

	// Then: a fresh index is ready and the working dir is empty
	require.NoError(t, err)
	assert.True(t, m.IsLibInit())
	assert.Equal(t, StateReady, m.State())
	assert.Equal(t, []string{"destroy", "init", "clear_main", "clear_realtime"}, h.engine.Calls())
	assert.Equal(t, 0, h.archiver.decompressCalls)
	assert.Equal(t, 0, h.validator.calls)
	assertEmptyWorkDir(t, h.layout())
	assert.True(t, <-h.states)
}

func TestBootstrap_ReindexSkipsArchive(t *testing.T) {
	tests := []struct {
		name  string
		store *fakeStore
	}{
		{"version mismatch", &fakeStore{cfg: &userconfig.UserConfig{IndexVersion: "v2"}}},
		{"new user", &fakeStore{cfg: nil}},
		{"lookup error", &fakeStore{err: userconfig.ErrUserNotFound}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given: an archive but a config that forces a reindex
			h := newHarness(t)
			h.store = tt.store
			h.writeArchive(t, 10)

			// When: bootstrapping
			m, err := h.start(t, testKey())

			// Then: the archive is ignored and a fresh index is ready
			require.NoError(t, err)
			assert.True(t, m.IsLibInit())
			assert.Equal(t, 0, h.archiver.decompressCalls)
			assert.Equal(t, 0, h.engine.count("deserialize"))
		})
	}
}

func TestBootstrap_LoadsArchive(t *testing.T) {
	// Given: a current-version archive
	h := newHarness(t)
	h.writeArchive(t, 100)

	// When: bootstrapping
	m, err := h.start(t, testKey())

	// Then: it is unpacked, validated, loaded and pruned
	require.NoError(t, err)
	assert.True(t, m.IsLibInit())
	assert.Equal(t, 1, h.archiver.decompressCalls)
	assert.Equal(t, 1, h.validator.calls)
	assert.Equal(t, 1, h.engine.count("deserialize"))
	require.Len(t, h.engine.deleted, 1)
	assert.Equal(t, int64(0), h.engine.deleted[0][0])
	floor := time.Now().Add(-config.SearchPeriod).UnixMilli()
	assert.InDelta(t, floor, h.engine.deleted[0][1], float64(time.Minute.Milliseconds()))

	resp := m.ValidatorResponse()
	assert.Equal(t, "OK", resp["status"])
	assert.Equal(t, int64(100), resp["size"])
	assertEmptyWorkDir(t, h.layout())
}

func TestBootstrap_ArchiveTooLarge(t *testing.T) {
	// Given: an archive bigger than the ceiling
	h := newHarness(t)
	h.writeArchive(t, 64)
	opts := h.options()
	opts.Limits.MinimumDiskSpace = 32

	// When: bootstrapping
	m, err := New(context.Background(), "u1", testKey(), opts)
	require.NoError(t, err)
	t.Cleanup(m.DestroyLibrary)
	err = m.WaitBootstrap(context.Background())

	// Then: the index is disabled and local data purged
	assert.True(t, amerrors.HasCode(err, amerrors.ErrCodeIndexTooLarge))
	assert.False(t, m.IsLibInit())
	assert.Equal(t, StateUninitialized, m.State())
	assert.NoDirExists(t, h.layout().WorkDir())
	assert.Equal(t, 0, h.engine.count("init"))
}

func TestBootstrap_DiskFull(t *testing.T) {
	// Given: an archive within the ceiling but no free space
	h := newHarness(t)
	h.disk.free = false
	h.writeArchive(t, 40)
	opts := h.options()
	opts.Limits.MinimumDiskSpace = 100

	// When: bootstrapping
	m, err := New(context.Background(), "u1", testKey(), opts)
	require.NoError(t, err)
	t.Cleanup(m.DestroyLibrary)
	err = m.WaitBootstrap(context.Background())

	// Then: the index is disabled
	assert.True(t, amerrors.HasCode(err, amerrors.ErrCodeDiskFull))
	assert.False(t, m.IsLibInit())
	assert.NoDirExists(t, h.layout().WorkDir())
	assert.Equal(t, []int64{40 - 100}, h.disk.required)
}

func TestBootstrap_DiskProbeError(t *testing.T) {
	h := newHarness(t)
	h.disk.err = errFake
	h.writeArchive(t, 10)

	m, err := h.start(t, testKey())

	assert.True(t, amerrors.HasCode(err, amerrors.ErrCodeDiskFull))
	assert.False(t, m.IsLibInit())
}

func TestBootstrap_ValidatorRejects(t *testing.T) {
	// Given: a validator that reports corruption
	h := newHarness(t)
	h.validator.ok = false
	h.validator.resp = map[string]any{"status": "CORRUPTED"}
	h.writeArchive(t, 10)

	// When: bootstrapping
	m, err := h.start(t, testKey())

	// Then: the data is discarded and a fresh index is ready
	assert.True(t, amerrors.HasCode(err, amerrors.ErrCodeCorruptIndex))
	assert.True(t, m.IsLibInit())
	assert.Equal(t, 0, h.engine.count("deserialize"))
	assert.Equal(t, map[string]any{"status": "CORRUPTED"}, m.ValidatorResponse())
	assertEmptyWorkDir(t, h.layout())
}

func TestBootstrap_DecompressFailure(t *testing.T) {
	// Given: an archive that fails to unpack
	h := newHarness(t)
	h.archiver.decompressOK = false
	h.writeArchive(t, 10)

	// When: bootstrapping
	m, err := h.start(t, testKey())

	// Then: it continues with a fresh index and skips validation
	require.NoError(t, err)
	assert.True(t, m.IsLibInit())
	assert.Equal(t, 0, h.validator.calls)
	assert.Equal(t, 0, h.engine.count("deserialize"))
	assert.Len(t, h.disk.required, 1)
	assertEmptyWorkDir(t, h.layout())
}

func TestBootstrap_DeserializeFailureIsDegradedReady(t *testing.T) {
	// Given: a snapshot the engine cannot load
	h := newHarness(t)
	h.engine.deserializeErr = errFake
	h.writeArchive(t, 10)

	// When: bootstrapping
	m, err := h.start(t, testKey())

	// Then: the manager is ready with an empty index
	assert.True(t, amerrors.HasCode(err, amerrors.ErrCodeCorruptIndex))
	assert.True(t, m.IsLibInit())
	assert.Equal(t, 0, h.engine.count("delete"))
	assertEmptyWorkDir(t, h.layout())
}

func TestBootstrap_InvalidKey(t *testing.T) {
	for _, key := range []string{"", "short", "!!!"} {
		h := newHarness(t)

		m, err := h.start(t, key)

		assert.True(t, amerrors.HasCode(err, amerrors.ErrCodeInvalidKey), key)
		assert.False(t, m.IsLibInit())
		assert.Equal(t, 0, h.engine.count("init"))
	}
}

func TestBootstrap_EngineInitFailure(t *testing.T) {
	h := newHarness(t)
	h.engine.initErr = errFake

	m, err := h.start(t, testKey())

	assert.True(t, amerrors.HasCode(err, amerrors.ErrCodeEngineInit))
	assert.False(t, m.IsLibInit())
	assert.Equal(t, StateUninitialized, m.State())
}

func TestDecompress_Idempotent(t *testing.T) {
	// Given: a ready manager without an archive
	h := newHarness(t)
	m, err := h.start(t, testKey())
	require.NoError(t, err)

	// When: decompressing twice
	for i := 0; i < 2; i++ {
		require.NoError(t, m.Decompress(context.Background(), testKey(), false))

		// Then: the working dir exists and is empty each time
		assertEmptyWorkDir(t, h.layout())
		assert.True(t, m.IsLibInit())
	}
}

func TestNew_Validation(t *testing.T) {
	h := newHarness(t)

	_, err := New(context.Background(), "", testKey(), h.options())
	assert.Error(t, err)

	opts := h.options()
	opts.Archiver = nil
	_, err = New(context.Background(), "u1", testKey(), opts)
	assert.Error(t, err)

	opts = h.options()
	opts.Engine = nil
	_, err = New(context.Background(), "u1", testKey(), opts)
	assert.Error(t, err)
}

func TestNew_SlotBusy(t *testing.T) {
	// Given: a shared slot held by one manager
	h := newHarness(t)
	opts := h.options()
	opts.Slot = engine.NewSlot(h.engine)
	first, err := New(context.Background(), "u1", testKey(), opts)
	require.NoError(t, err)

	// When: a second manager is built on it
	_, err = New(context.Background(), "u2", testKey(), opts)

	// Then: it is refused until the first is destroyed
	assert.True(t, errors.Is(err, engine.ErrSlotBusy))

	first.DestroyLibrary()
	second, err := New(context.Background(), "u2", testKey(), opts)
	require.NoError(t, err)
	second.DestroyLibrary()
}

// =============================================================================
// Indexing
// =============================================================================

func TestIndexBatch_Errors(t *testing.T) {
	h := newHarness(t)
	m, err := h.start(t, testKey())
	require.NoError(t, err)

	tests := []struct {
		name     string
		messages *string
		code     string
		message  string
	}{
		{"nil", nil, amerrors.ErrCodeMessagesRequired, "Batch Indexing: Messages are required"},
		{"empty", strPtr(""), amerrors.ErrCodeMessagesRequired, "Batch Indexing: Messages are required"},
		{"invalid json", strPtr("[{"), amerrors.ErrCodeMessagesParse, "Batch Indexing parse error"},
		{"object", strPtr(`{"a":1}`), amerrors.ErrCodeMessagesNotArray, "Batch Indexing: Messages must be an array"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := m.IndexBatch(context.Background(), tt.messages)
			assert.Equal(t, 0, n)
			assert.True(t, amerrors.HasCode(err, tt.code))
			assert.Equal(t, tt.message, amerrors.MessageOf(err))
		})
	}
	assert.Equal(t, 0, h.engine.count("index_main"))
}

func TestIndexBatch_NotInitialized(t *testing.T) {
	h := newHarness(t)
	h.engine.initErr = errFake
	m, _ := h.start(t, testKey())

	_, err := m.IndexBatch(context.Background(), strPtr("[]"))

	assert.Equal(t, "Library not initialized", amerrors.MessageOf(err))
	assert.True(t, amerrors.HasCode(err, amerrors.ErrCodeNotInitialized))
}

func TestIndexBatch_EngineFailureAndSuccess(t *testing.T) {
	h := newHarness(t)
	m, err := h.start(t, testKey())
	require.NoError(t, err)

	n, err := m.IndexBatch(context.Background(), strPtr(`[{"messageId":"a"}]`))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	h.engine.indexMainErr = errFake
	_, err = m.IndexBatch(context.Background(), strPtr(`[{"messageId":"a"}]`))
	assert.Equal(t, "IndexBatch: Error indexing messages to memory", amerrors.MessageOf(err))
}

func TestRealTimeIndexing_Messages(t *testing.T) {
	h := newHarness(t)
	m, err := h.start(t, testKey())
	require.NoError(t, err)

	_, err = m.RealTimeIndexing(context.Background(), nil)
	assert.Equal(t, "RealTime Indexing: Messages are required", amerrors.MessageOf(err))
	_, err = m.RealTimeIndexing(context.Background(), strPtr("nope"))
	assert.Equal(t, "RealTime Indexing: parse error ", amerrors.MessageOf(err))
	_, err = m.RealTimeIndexing(context.Background(), strPtr(`"x"`))
	assert.Equal(t, "RealTime Indexing: Messages must be an array", amerrors.MessageOf(err))

	n, err := m.RealTimeIndexing(context.Background(), strPtr(`[{"messageId":"a"}]`))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.False(t, m.IsRealTimeIndexing())

	h.engine.indexRTErr = errFake
	_, err = m.RealTimeIndexing(context.Background(), strPtr(`[]`))
	assert.Equal(t, "RealTime Indexing: error", amerrors.MessageOf(err))
	assert.False(t, m.IsRealTimeIndexing(), "flag resets on failure")
}

func TestBatchRealTimeIndexing_AccumulatesWhileBusy(t *testing.T) {
	// Given: a ready manager whose realtime engine call blocks
	h := newHarness(t)
	m, err := h.start(t, testKey())
	require.NoError(t, err)
	release := make(chan struct{})
	h.engine.mu.Lock()
	h.engine.rtBlock = release
	h.engine.mu.Unlock()

	// When: events arrive while the first flush is in flight
	m.BatchRealTimeIndexing(json.RawMessage(`{"messageId":"e1"}`))
	require.Eventually(t, m.IsRealTimeIndexing, time.Second, 5*time.Millisecond)
	m.BatchRealTimeIndexing(json.RawMessage(`{"messageId":"e2"}`))
	m.BatchRealTimeIndexing(json.RawMessage(`{"messageId":"e3"}`))
	assert.Equal(t, 2, m.PendingRealTime())

	close(release)
	require.Eventually(t, func() bool { return !m.IsRealTimeIndexing() }, time.Second, 5*time.Millisecond)
	m.BatchRealTimeIndexing(json.RawMessage(`{"messageId":"e4"}`))

	// Then: the queued events are delivered together
	require.Eventually(t, func() bool { return len(h.engine.batches()) == 2 }, time.Second, 5*time.Millisecond)
	batches := h.engine.batches()
	assert.JSONEq(t, `[{"messageId":"e1"}]`, batches[0])
	assert.JSONEq(t, `[{"messageId":"e2"},{"messageId":"e3"},{"messageId":"e4"}]`, batches[1])
	assert.Equal(t, 0, m.PendingRealTime())
}

func TestDeleteRealTimeFolder(t *testing.T) {
	h := newHarness(t)
	h.engine.initErr = errFake
	m, _ := h.start(t, testKey())
	before := h.engine.count("clear_realtime")

	m.DeleteRealTimeFolder(context.Background())
	assert.Equal(t, before, h.engine.count("clear_realtime"), "no-op when not ready")

	h.engine.initErr = nil
	require.NoError(t, m.Init(context.Background(), testKey(), false))
	before = h.engine.count("clear_realtime")
	m.DeleteRealTimeFolder(context.Background())
	assert.Equal(t, before+1, h.engine.count("clear_realtime"))
}

// =============================================================================
// Search
// =============================================================================

func TestSearch_NotInitialized(t *testing.T) {
	h := newHarness(t)
	h.engine.initErr = errFake
	m, _ := h.start(t, testKey())

	res, err := m.SearchQueryV2(context.Background(), SearchPayload{Q: "text:(hello)"})
	require.NoError(t, err)
	assert.Equal(t, engine.EmptyResult(), res)

	res, err = m.SearchQuery(context.Background(), SearchParams{Query: "hello"})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Total)
	assert.Equal(t, 0, h.engine.count("search"))
}

func TestSearch_EmptyQuery(t *testing.T) {
	h := newHarness(t)
	m, err := h.start(t, testKey())
	require.NoError(t, err)

	res, err := m.SearchQueryV2(context.Background(), SearchPayload{})
	require.NoError(t, err)
	assert.Equal(t, engine.EmptyResult(), res)

	res, err = m.SearchQuery(context.Background(), SearchParams{Query: "   "})
	require.NoError(t, err)
	assert.Equal(t, engine.EmptyResult(), res)
	assert.Equal(t, 0, h.engine.count("search"))
}

func TestSearch_Parameters(t *testing.T) {
	fixed := time.UnixMilli(1_700_000_000_000)
	floor := fixed.Add(-config.SearchPeriod).UnixMilli()

	tests := []struct {
		name    string
		payload SearchPayload
		want    engine.SearchRequest
	}{
		{
			name:    "defaults",
			payload: SearchPayload{Q: "q"},
			want:    engine.SearchRequest{Query: "q", StartTs: floor, EndTs: 9999999999999, Offset: 0, Limit: 25, SortOrder: config.SortByDate},
		},
		{
			name: "explicit values",
			payload: SearchPayload{Q: "q", StartDate: DateParam(itoa(floor + 1000)), EndDate: "1700000000000",
				Limit: num(10), Offset: num(5), SortOrder: num(0)},
			want: engine.SearchRequest{Query: "q", StartTs: floor + 1000, EndTs: 1700000000000, Offset: 5, Limit: 10, SortOrder: config.SortByScore},
		},
		{
			name: "invalid values fall back",
			payload: SearchPayload{Q: "q", StartDate: "1", EndDate: "abc",
				Limit: num(2.5), Offset: num(-3), SortOrder: num(0.5)},
			want: engine.SearchRequest{Query: "q", StartTs: floor, EndTs: 9999999999999, Offset: 0, Limit: 25, SortOrder: config.SortByDate},
		},
		{
			name:    "zero limit and zero dates",
			payload: SearchPayload{Q: "q", StartDate: "0", EndDate: "0", Limit: num(0)},
			want:    engine.SearchRequest{Query: "q", StartTs: floor, EndTs: 9999999999999, Offset: 0, Limit: 25, SortOrder: config.SortByDate},
		},
	}

	h := newHarness(t)
	m, err := h.start(t, testKey())
	require.NoError(t, err)
	m.now = func() time.Time { return fixed }

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := m.SearchQueryV2(context.Background(), tt.payload)
			require.NoError(t, err)
			assert.Equal(t, 1, res.Returned)
			assert.Equal(t, tt.want, h.engine.lastSearch())
		})
	}
}

func TestSearchQuery_BuildsQuery(t *testing.T) {
	// Given: a ready manager with a query cache
	h := newHarness(t)
	opts := h.options()
	opts.Queries = query.NewBuilder(8)
	m, err := New(context.Background(), "u1", testKey(), opts)
	require.NoError(t, err)
	t.Cleanup(m.DestroyLibrary)
	require.NoError(t, m.WaitBootstrap(context.Background()))

	// When: searching with free text and filters
	_, err = m.SearchQuery(context.Background(), SearchParams{
		Query:     "Hello World",
		SenderIDs: []string{"s1"},
		SortOrder: num(config.SortByScore),
	})
	require.NoError(t, err)

	// Then: the engine receives the constructed query
	want := query.ConstructQuery("Hello World", []string{"s1"}, nil, "", false)
	assert.Equal(t, want, h.engine.lastSearch().Query)
	assert.Equal(t, config.SortByScore, h.engine.lastSearch().SortOrder)
	assert.Equal(t, 1, opts.Queries.Len())
}

func TestSearch_EngineErrors(t *testing.T) {
	h := newHarness(t)
	m, err := h.start(t, testKey())
	require.NoError(t, err)

	h.engine.searchErr = errFake
	res, err := m.SearchQueryV2(context.Background(), SearchPayload{Q: "q"})
	assert.True(t, amerrors.HasCode(err, amerrors.ErrCodeSearchFailed))
	assert.Equal(t, engine.EmptyResult(), res)

	h.engine.searchErr = nil
	h.engine.searchPayload = []byte("not json")
	res, err = m.SearchQueryV2(context.Background(), SearchPayload{Q: "q"})
	assert.True(t, amerrors.HasCode(err, amerrors.ErrCodeSearchFailed))
	assert.Equal(t, engine.EmptyResult(), res)
}

func TestDateParam_UnmarshalJSON(t *testing.T) {
	var p SearchPayload
	require.NoError(t, json.Unmarshal([]byte(`{"q":"x","startDate":1234,"endDate":"99"}`), &p))
	assert.Equal(t, DateParam("1234"), p.StartDate)
	assert.Equal(t, DateParam("99"), p.EndDate)

	require.NoError(t, json.Unmarshal([]byte(`{"startDate":null}`), &p))
	assert.Equal(t, DateParam(""), p.StartDate)
}

func TestParseMillis(t *testing.T) {
	tests := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"1700000000000", 1700000000000, true},
		{" 42abc", 42, true},
		{"-5", -5, true},
		{"", 0, false},
		{"abc", 0, false},
		{"99999999999999999", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseMillis(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestGetLatestMessageTimestamp(t *testing.T) {
	h := newHarness(t)
	h.engine.initErr = errFake
	m, _ := h.start(t, testKey())

	_, err := m.GetLatestMessageTimestamp(context.Background())
	assert.Equal(t, "Not initialized", amerrors.MessageOf(err))

	h.engine.initErr = nil
	require.NoError(t, m.Init(context.Background(), testKey(), false))
	h.engine.timestamp = "1700000000000"
	ts, err := m.GetLatestMessageTimestamp(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1700000000000", ts)

	h.engine.timestampErr = errFake
	_, err = m.GetLatestMessageTimestamp(context.Background())
	assert.Equal(t, "Error getting the index timestamp", amerrors.MessageOf(err))
}

// =============================================================================
// Encryption and teardown
// =============================================================================

func TestEncryptIndex_Success(t *testing.T) {
	// Given: a ready manager
	h := newHarness(t)
	m, err := h.start(t, testKey())
	require.NoError(t, err)

	// When: encrypting
	err = m.EncryptIndex(context.Background(), testKey())

	// Then: the archive is written and the working dir removed
	require.NoError(t, err)
	assert.FileExists(t, h.layout().ArchivePath())
	assert.NoDirExists(t, h.layout().WorkDir())
	assert.True(t, h.archiver.workDirSeen)
	assert.Equal(t, StateReady, m.State())
}

func TestEncryptIndex_Failures(t *testing.T) {
	t.Run("compression", func(t *testing.T) {
		h := newHarness(t)
		h.archiver.compressOK = false
		m, err := h.start(t, testKey())
		require.NoError(t, err)

		err = m.EncryptIndex(context.Background(), testKey())

		assert.True(t, amerrors.HasCode(err, amerrors.ErrCodeCompressionFailed))
		assert.NoDirExists(t, h.layout().WorkDir())
		assert.Equal(t, StateReady, m.State())
	})

	t.Run("serialization", func(t *testing.T) {
		h := newHarness(t)
		h.engine.serializeErr = errFake
		m, err := h.start(t, testKey())
		require.NoError(t, err)

		err = m.EncryptIndex(context.Background(), testKey())

		assert.True(t, amerrors.HasCode(err, amerrors.ErrCodeIndexFailed))
		assert.Equal(t, 0, h.archiver.compressCalls)
		assert.NoDirExists(t, h.layout().WorkDir())
		assert.True(t, m.IsLibInit())
	})

	t.Run("not initialized", func(t *testing.T) {
		h := newHarness(t)
		h.engine.initErr = errFake
		m, _ := h.start(t, testKey())

		err := m.EncryptIndex(context.Background(), testKey())

		assert.True(t, amerrors.HasCode(err, amerrors.ErrCodeNotInitialized))
		assert.DirExists(t, h.layout().WorkDir())
		assert.Equal(t, 0, h.engine.count("serialize"))
	})

	t.Run("invalid key", func(t *testing.T) {
		h := newHarness(t)
		m, err := h.start(t, testKey())
		require.NoError(t, err)

		err = m.EncryptIndex(context.Background(), "bad")

		assert.True(t, amerrors.HasCode(err, amerrors.ErrCodeInvalidKey))
		assert.Equal(t, StateReady, m.State())
	})
}

func TestDestroyLibrary(t *testing.T) {
	// Given: a ready manager
	h := newHarness(t)
	m, err := h.start(t, testKey())
	require.NoError(t, err)
	destroysBefore := h.engine.count("destroy")

	// When: destroying twice
	m.DestroyLibrary()
	m.DestroyLibrary()

	// Then: resources are released once and the state sticks
	assert.Equal(t, StateDestroyed, m.State())
	assert.False(t, m.IsLibInit())
	assert.Equal(t, destroysBefore+1, h.engine.count("destroy"))

	m.SetLibInitState(true)
	assert.Equal(t, StateDestroyed, m.State())

	_, err = m.IndexBatch(context.Background(), strPtr("[]"))
	assert.Equal(t, "Library not initialized", amerrors.MessageOf(err))
}

func TestSetLibInitState_Notifies(t *testing.T) {
	h := newHarness(t)
	m, err := h.start(t, testKey())
	require.NoError(t, err)
	<-h.states

	m.SetLibInitState(false)
	assert.False(t, <-h.states)
	assert.Equal(t, StateUninitialized, m.State())

	m.SetLibInitState(true)
	assert.True(t, <-h.states)
	assert.True(t, m.Status().Ready)
}

func TestLayout(t *testing.T) {
	l := Layout{IndexDir: "/data", UserID: "42"}
	assert.Equal(t, filepath.Join("/data", "search_index_42"), l.WorkDir())
	assert.Equal(t, filepath.Join("/data", "search_index_42", "mainindex"), l.MainIndexDir())
	assert.Equal(t, filepath.Join("/data", "search_index_42.tar.lz4"), l.ArchivePath())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "ready", StateReady.String())
	assert.Equal(t, "unknown", State(42).String())
	b, err := StateEncrypting.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "encrypting", string(b))
}

func itoa(v int64) string {
	return engine.FormatTimestamp(v)
}

func TestBootstrap_ForceReindex(t *testing.T) {
	// Given: a current archive and a forced reindex
	h := newHarness(t)
	h.writeArchive(t, 10)
	opts := h.options()
	opts.ForceReindex = true

	// When: bootstrapping
	m, err := New(context.Background(), "u1", testKey(), opts)
	require.NoError(t, err)
	t.Cleanup(m.DestroyLibrary)
	require.NoError(t, m.WaitBootstrap(context.Background()))

	// Then: the archive is left alone
	assert.True(t, m.IsLibInit())
	assert.Equal(t, 0, h.archiver.decompressCalls)
	assert.FileExists(t, h.layout().ArchivePath())
}

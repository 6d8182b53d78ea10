package lifecycle

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/Aman-CERP/swiftsearch/internal/engine"
	amerrors "github.com/Aman-CERP/swiftsearch/internal/errors"
)

// Replies for batch indexing. Front-ends match on the exact text.
const (
	msgBatchRequired    = "Batch Indexing: Messages are required"
	msgBatchParse       = "Batch Indexing parse error"
	msgBatchNotArray    = "Batch Indexing: Messages must be an array"
	msgBatchEngine      = "IndexBatch: Error indexing messages to memory"
	msgNotInitialized   = "Library not initialized"
	msgRealTimeRequired = "RealTime Indexing: Messages are required"
	msgRealTimeNotArray = "RealTime Indexing: Messages must be an array"
	msgRealTimeParse    = "RealTime Indexing: parse error "
	msgRealTimeEngine   = "RealTime Indexing: error"
)

type messageReplies struct {
	required, parse, notArray string
}

var (
	batchReplies    = messageReplies{msgBatchRequired, msgBatchParse, msgBatchNotArray}
	realTimeReplies = messageReplies{msgRealTimeRequired, msgRealTimeParse, msgRealTimeNotArray}
)

// checkMessages validates a JSON array payload and readiness, in that order.
func (m *Manager) checkMessages(messages *string, r messageReplies) error {
	if messages == nil || strings.TrimSpace(*messages) == "" {
		return amerrors.New(amerrors.ErrCodeMessagesRequired, r.required, nil)
	}
	var probe any
	if err := json.Unmarshal([]byte(*messages), &probe); err != nil {
		return amerrors.New(amerrors.ErrCodeMessagesParse, r.parse, err)
	}
	if _, ok := probe.([]any); !ok {
		return amerrors.New(amerrors.ErrCodeMessagesNotArray, r.notArray, nil)
	}
	if !m.IsLibInit() {
		return amerrors.NotReady(msgNotInitialized)
	}
	return nil
}

// IndexBatch adds a JSON array of messages to the main index.
func (m *Manager) IndexBatch(ctx context.Context, messages *string) (int, error) {
	if err := m.checkMessages(messages, batchReplies); err != nil {
		m.logger.Error("index_batch_rejected", amerrors.LogAttrs(err)...)
		return 0, err
	}

	var n int
	var err error
	m.timed("index_main", func() { n, err = m.engine.IndexMain(ctx, *messages) })
	if err != nil {
		m.logger.Error("index_batch_failed", slog.String("error", err.Error()))
		return 0, amerrors.New(amerrors.ErrCodeIndexFailed, msgBatchEngine, err)
	}
	m.metrics.Indexed("main", n)
	m.logger.Debug("index_batch_done", slog.Int("indexed", n))
	return n, nil
}

// BatchRealTimeIndexing queues one event for the debounced real-time flush.
func (m *Manager) BatchRealTimeIndexing(message json.RawMessage) {
	m.collector.Add(message)
}

// RealTimeIndexing adds a JSON array of messages to the realtime index and
// waits for the engine.
func (m *Manager) RealTimeIndexing(ctx context.Context, messages *string) (int, error) {
	if err := m.checkMessages(messages, realTimeReplies); err != nil {
		return 0, err
	}

	m.flushInFlight.Store(true)
	defer m.flushInFlight.Store(false)
	return m.indexRealtime(ctx, *messages)
}

// flushRealTime is the collector sink. The engine call runs on its own
// goroutine so Add never blocks on indexing.
func (m *Manager) flushRealTime(batch []byte, done func(int, error)) {
	payload := string(batch)
	if err := m.checkMessages(&payload, realTimeReplies); err != nil {
		m.metrics.Flush(0, err)
		done(0, err)
		return
	}

	m.flushInFlight.Store(true)
	go func() {
		n, err := m.indexRealtime(m.ctx, payload)
		m.flushInFlight.Store(false)
		m.metrics.Flush(n, err)
		done(n, err)
	}()
}

func (m *Manager) indexRealtime(ctx context.Context, payload string) (int, error) {
	var n int
	var err error
	m.timed("index_realtime", func() { n, err = m.engine.IndexRealtime(ctx, payload) })
	if err != nil {
		m.logger.Error("realtime_index_failed", slog.String("error", err.Error()))
		return 0, amerrors.New(amerrors.ErrCodeIndexFailed, msgRealTimeEngine, err)
	}
	m.metrics.Indexed("realtime", n)
	return n, nil
}

// DeleteRealTimeFolder clears the realtime index. It does nothing before
// the index is ready.
func (m *Manager) DeleteRealTimeFolder(ctx context.Context) {
	if !m.IsLibInit() {
		return
	}
	if err := m.engine.ClearRealtimeIndex(ctx); err != nil {
		m.logger.Warn("realtime_clear_failed", slog.String("error", err.Error()))
	}
}

// EncryptIndex serializes the main index into the working directory,
// compresses it into the archive and removes the working directory.
func (m *Manager) EncryptIndex(ctx context.Context, key string) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if !m.layout.workDirExists() {
		if err := m.layout.ensureWorkDir(); err != nil {
			m.logger.Warn("workdir_create_failed", slog.String("error", err.Error()))
		}
	}
	if !m.IsLibInit() {
		m.logger.Error("encrypt_not_initialized")
		return amerrors.NotReady(msgNotInitialized)
	}
	rawKey, err := engine.DecodeKey(key)
	if err != nil {
		return err
	}
	if !m.beginEncrypt() {
		return amerrors.NotReady(msgNotInitialized)
	}
	defer m.endEncrypt()

	var n int
	var serErr error
	m.timed("serialize", func() {
		n, serErr = m.engine.SerializeMainIndex(ctx, m.layout.MainIndexDir(), rawKey)
	})
	if serErr != nil {
		m.logger.Error("index_serialize_failed", slog.String("error", serErr.Error()))
		if err := m.layout.removeWorkDir(); err != nil {
			m.logger.Warn("workdir_remove_failed", slog.String("error", err.Error()))
		}
		return amerrors.New(amerrors.ErrCodeIndexFailed, "Serializing Main Index Failed", serErr)
	}

	ok := m.archive.Compress(ctx, m.layout.WorkDir(), m.layout.ArchivePath())
	m.metrics.Archive("compress", ok)
	if err := m.layout.removeWorkDir(); err != nil {
		m.logger.Warn("workdir_remove_failed", slog.String("error", err.Error()))
	}
	if !ok {
		m.logger.Error("index_compress_failed", slog.String("archive", m.layout.ArchivePath()))
		return amerrors.New(amerrors.ErrCodeCompressionFailed, "Error Compressing Main Index Folder", nil)
	}
	m.logger.Info("index_encrypted", slog.Int("messages", n), slog.String("archive", m.layout.ArchivePath()))
	return nil
}

func (m *Manager) beginEncrypt() bool {
	m.mu.Lock()
	if m.state != StateReady {
		m.mu.Unlock()
		return false
	}
	m.state = StateEncrypting
	m.mu.Unlock()
	m.metrics.Transition(StateEncrypting.String(), true)
	return true
}

func (m *Manager) endEncrypt() {
	m.mu.Lock()
	if m.state != StateEncrypting {
		m.mu.Unlock()
		return
	}
	m.state = StateReady
	m.mu.Unlock()
	m.metrics.Transition(StateReady.String(), true)
}

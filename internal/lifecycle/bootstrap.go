package lifecycle

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/Aman-CERP/swiftsearch/internal/engine"
	amerrors "github.com/Aman-CERP/swiftsearch/internal/errors"
)

// checkUserConfig decides between loading the archive and reindexing. Any
// lookup failure, a missing record or a version mismatch forces a reindex.
func (m *Manager) checkUserConfig(ctx context.Context, key string) error {
	reIndex := true
	if m.reindex {
		m.logger.Info("index_reindex_requested")
	} else if m.store != nil {
		cfg, err := m.store.Get(m.userID)
		switch {
		case err != nil:
			m.logger.Info("user_config_lookup_failed", amerrors.LogAttrs(err)...)
		case cfg == nil:
			m.logger.Info("user_config_created")
		case cfg.IndexVersion != m.limits.IndexVersion:
			m.logger.Info("index_version_mismatch",
				slog.String("stored", cfg.IndexVersion),
				slog.String("expected", m.limits.IndexVersion))
		default:
			reIndex = false
		}
	}
	return m.Decompress(ctx, key, reIndex)
}

// Decompress clears the working directory and either unpacks the archive
// (then validates) or starts a fresh index.
func (m *Manager) Decompress(ctx context.Context, key string, reIndex bool) error {
	if !m.setState(StateDecompressing) {
		return amerrors.New(amerrors.ErrCodeDestroyed, "index manager destroyed", nil)
	}
	if err := m.layout.removeWorkDir(); err != nil {
		m.logger.Warn("workdir_remove_failed", slog.String("error", err.Error()))
	}

	_, hasArchive := m.layout.archiveSize()
	if !hasArchive || reIndex {
		m.logger.Info("index_fresh_start",
			slog.Bool("archive_present", hasArchive),
			slog.Bool("reindex", reIndex))
		if err := m.layout.ensureWorkDir(); err != nil {
			m.logger.Warn("workdir_create_failed", slog.String("error", err.Error()))
		}
		return m.Init(ctx, key, false)
	}

	ok := m.archive.Decompress(ctx, m.layout.ArchivePath(), m.layout.IndexDir)
	m.metrics.Archive("decompress", ok)
	decompressed := true
	if !ok {
		m.logger.Warn("index_decompress_failed", slog.String("archive", m.layout.ArchivePath()))
		if err := m.layout.resetWorkDir(); err != nil {
			m.logger.Warn("workdir_reset_failed", slog.String("error", err.Error()))
		}
		decompressed = false
	}
	return m.ValidateIndexSize(ctx, key, decompressed)
}

// ValidateIndexSize applies the archive ceiling and free-space checks, runs
// the validator over a freshly unpacked index and then initializes.
func (m *Manager) ValidateIndexSize(ctx context.Context, key string, isDecompressed bool) error {
	if !m.setState(StateValidating) {
		return amerrors.New(amerrors.ErrCodeDestroyed, "index manager destroyed", nil)
	}

	ceiling := m.limits.MinimumDiskSpace
	size, hasArchive := m.layout.archiveSize()
	if hasArchive && size > ceiling {
		m.logger.Warn("index_disabled_archive_too_large",
			slog.Int64("size", size),
			slog.Int64("ceiling", ceiling))
		m.disable()
		return amerrors.New(amerrors.ErrCodeIndexTooLarge, "index archive exceeds the size ceiling", nil).
			WithDetail("size", strconv.FormatInt(size, 10))
	}

	required := ceiling
	if hasArchive && size > 0 {
		required = size - ceiling
	}
	if m.disk != nil {
		free, err := m.disk.HasFreeSpace(ctx, required)
		if err != nil || !free {
			attrs := []any{slog.Int64("required", required), slog.Int64("size", size)}
			if err != nil {
				attrs = append(attrs, slog.String("error", err.Error()))
			}
			m.logger.Warn("index_disabled_disk_space", attrs...)
			m.disable()
			return amerrors.New(amerrors.ErrCodeDiskFull, "not enough free disk space for the index", err)
		}
	}

	if isDecompressed && m.layout.workDirExists() && m.valid != nil {
		resp, ok := m.valid.Validate(ctx, m.layout.WorkDir(), key)
		if !ok {
			m.setValidatorResponse(resp)
			m.logger.Warn("index_corrupted", slog.Any("validator", resp))
			if err := m.Init(ctx, key, false); err != nil {
				return err
			}
			return amerrors.New(amerrors.ErrCodeCorruptIndex, "index failed validation, started fresh", nil)
		}
		withSize := make(map[string]any, len(resp)+1)
		for k, v := range resp {
			withSize[k] = v
		}
		withSize["size"] = size
		m.setValidatorResponse(withSize)
		m.logger.Info("index_validated", slog.Any("validator", withSize))
	}

	return m.Init(ctx, key, isDecompressed)
}

// disable marks the index unavailable and purges local data.
func (m *Manager) disable() {
	m.SetLibInitState(false)
	if err := m.layout.removeWorkDir(); err != nil {
		m.logger.Warn("workdir_remove_failed", slog.String("error", err.Error()))
	}
}

// Init (re)initializes the engine. With isDecompressed it loads the
// unpacked main index and prunes messages older than the search period; a
// failed load leaves the manager ready with an empty index. The working
// directory ends empty either way.
func (m *Manager) Init(ctx context.Context, key string, isDecompressed bool) error {
	rawKey, err := engine.DecodeKey(key)
	if err != nil {
		m.logger.Error("index_init_invalid_key", slog.Int("key_length", len(key)))
		m.SetLibInitState(false)
		return err
	}
	if !m.setState(StateInitializing) {
		return amerrors.New(amerrors.ErrCodeDestroyed, "index manager destroyed", nil)
	}

	if err := m.engine.Destroy(); err != nil {
		m.logger.Debug("engine_destroy_failed", slog.String("error", err.Error()))
	}
	var initErr error
	m.timed("init", func() { initErr = m.engine.Init(ctx, m.dict) })
	if initErr != nil {
		m.logger.Error("engine_init_failed", slog.String("error", initErr.Error()))
		m.SetLibInitState(false)
		if se, ok := amerrors.As(initErr); ok {
			return se
		}
		return amerrors.New(amerrors.ErrCodeEngineInit, "engine initialization failed", initErr)
	}
	if err := m.engine.ClearMainIndex(ctx); err != nil {
		m.logger.Warn("engine_clear_main_failed", slog.String("error", err.Error()))
	}
	if err := m.engine.ClearRealtimeIndex(ctx); err != nil {
		m.logger.Warn("engine_clear_realtime_failed", slog.String("error", err.Error()))
	}

	if !isDecompressed || !m.layout.workDirExists() {
		m.logger.Info("index_initialized_fresh")
		m.SetLibInitState(true)
		m.resetWorkDir()
		return nil
	}

	var n int
	var loadErr error
	m.timed("deserialize", func() {
		n, loadErr = m.engine.DeserializeMainIndex(ctx, m.layout.MainIndexDir(), rawKey)
	})
	m.resetWorkDir()
	if loadErr != nil {
		m.logger.Error("index_deserialize_failed", slog.String("error", loadErr.Error()))
		m.SetLibInitState(true)
		return amerrors.New(amerrors.ErrCodeCorruptIndex, "index snapshot could not be loaded, started empty", loadErr)
	}

	cutoff := m.searchFloor()
	pruned, err := m.engine.DeleteMessages(ctx, "", 0, cutoff)
	if err != nil {
		m.logger.Warn("index_prune_failed", slog.String("error", err.Error()))
	}
	m.metrics.Indexed("main", n)
	m.logger.Info("index_loaded",
		slog.Int("messages", n),
		slog.Int("pruned", pruned),
		slog.String("cutoff", engine.FormatTimestamp(cutoff)))
	m.SetLibInitState(true)
	return nil
}

func (m *Manager) resetWorkDir() {
	if err := m.layout.resetWorkDir(); err != nil {
		m.logger.Warn("workdir_reset_failed", slog.String("error", err.Error()))
	}
}

// searchFloor is the oldest timestamp searches may reach.
func (m *Manager) searchFloor() int64 {
	return m.now().Add(-m.limits.SearchPeriod).UnixMilli()
}

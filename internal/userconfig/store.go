// Package userconfig persists per-user index settings in one shared JSON
// document keyed by user id.
package userconfig

import (
	"encoding/json"
	"log/slog"
	"os"

	amerrors "github.com/Aman-CERP/swiftsearch/internal/errors"
	"github.com/Aman-CERP/swiftsearch/internal/fsutil"
	"github.com/Aman-CERP/swiftsearch/internal/logging"
)

// UserConfig is one user's record.
type UserConfig struct {
	RotationID   int    `json:"rotationId,omitempty"`
	Language     string `json:"language,omitempty"`
	Version      int    `json:"version,omitempty"`
	IndexVersion string `json:"indexVersion,omitempty"`
}

var (
	// ErrConfigCorrupt is returned when the document could not be parsed and
	// was recreated.
	ErrConfigCorrupt = amerrors.New(amerrors.ErrCodeUserConfigCorrupt, "user config file is corrupted", nil)
	// ErrUserNotFound is returned by Get when the user had no record. An empty
	// record has been added.
	ErrUserNotFound = amerrors.New(amerrors.ErrCodeUserNotFound, "user not found in config", nil)
	// ErrConfigMissing is returned by Update when the document did not exist.
	ErrConfigMissing = amerrors.New(amerrors.ErrCodeUserConfigMissing, "user config file missing", nil)
)

// Store reads and writes the shared document. Each call is a locked
// read-modify-write, so several processes may share one file.
type Store struct {
	path         string
	indexVersion string
	logger       *slog.Logger
}

// New returns a Store for path. indexVersion is stamped on updates that do
// not carry one.
func New(path, indexVersion string, logger *slog.Logger) *Store {
	return &Store{path: path, indexVersion: indexVersion, logger: logging.OrDefault(logger)}
}

// Path returns the document path.
func (s *Store) Path() string { return s.path }

type document map[string]json.RawMessage

// Get returns the record for userID.
//
// A missing document is created holding an empty record for the user and
// (nil, nil) is returned. An unparseable document is recreated the same way
// and ErrConfigCorrupt is returned. A user without a record gets an empty one
// and ErrUserNotFound.
func (s *Store) Get(userID string) (*UserConfig, error) {
	lock := fsutil.NewLock(s.path)
	if err := lock.Lock(); err != nil {
		return nil, amerrors.New(amerrors.ErrCodeFilePermission, "lock user config", err)
	}
	defer func() { _ = lock.Unlock() }()

	doc, err := s.read()
	switch {
	case os.IsNotExist(err):
		s.logger.Info("user_config_created", slog.String("path", s.path))
		return nil, s.write(document{userID: emptyRecord()})
	case err != nil:
		s.logger.Warn("user_config_corrupt", slog.String("path", s.path), slog.String("error", err.Error()))
		if werr := s.write(document{userID: emptyRecord()}); werr != nil {
			return nil, werr
		}
		return nil, ErrConfigCorrupt
	}

	raw, ok := doc[userID]
	if !ok {
		doc[userID] = emptyRecord()
		if werr := s.write(doc); werr != nil {
			return nil, werr
		}
		return nil, ErrUserNotFound
	}

	var cfg UserConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, amerrors.New(amerrors.ErrCodeUserConfigCorrupt, "user record is not an object", err).
			WithDetail("user_id", userID)
	}
	return &cfg, nil
}

// Peek returns userID's record without creating or repairing anything.
// A missing document or user yields (nil, nil).
func (s *Store) Peek(userID string) (*UserConfig, error) {
	doc, err := s.read()
	switch {
	case os.IsNotExist(err):
		return nil, nil
	case err != nil:
		return nil, ErrConfigCorrupt
	}
	raw, ok := doc[userID]
	if !ok {
		return nil, nil
	}
	var cfg UserConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, amerrors.New(amerrors.ErrCodeUserConfigCorrupt, "user record is not an object", err).
			WithDetail("user_id", userID)
	}
	return &cfg, nil
}

// Update replaces userID's record with data and returns it.
//
// When the document is missing it is created with only this user's record and
// ErrConfigMissing is returned. A corrupt document is recreated with this
// user's record and ErrConfigCorrupt is returned.
func (s *Store) Update(userID string, data *UserConfig) (*UserConfig, error) {
	if data == nil {
		data = &UserConfig{}
	}
	rec := *data
	if rec.IndexVersion == "" {
		rec.IndexVersion = s.indexVersion
	}
	encoded, err := json.Marshal(rec)
	if err != nil {
		return nil, amerrors.InternalError("encode user record", err)
	}

	lock := fsutil.NewLock(s.path)
	if err := lock.Lock(); err != nil {
		return nil, amerrors.New(amerrors.ErrCodeFilePermission, "lock user config", err)
	}
	defer func() { _ = lock.Unlock() }()

	doc, err := s.read()
	switch {
	case os.IsNotExist(err):
		if werr := s.write(document{userID: encoded}); werr != nil {
			return nil, werr
		}
		return nil, ErrConfigMissing
	case err != nil:
		s.logger.Warn("user_config_corrupt", slog.String("path", s.path), slog.String("error", err.Error()))
		if werr := s.write(document{userID: encoded}); werr != nil {
			return nil, werr
		}
		return nil, ErrConfigCorrupt
	}

	doc[userID] = encoded
	if err := s.write(doc); err != nil {
		return nil, err
	}
	s.logger.Info("user_config_updated", slog.String("user_id", userID), slog.String("index_version", rec.IndexVersion))
	return &rec, nil
}

func (s *Store) read() (document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		// the literal null parses without error
		doc = document{}
	}
	return doc, nil
}

func (s *Store) write(doc document) error {
	data, err := json.MarshalIndent(doc, "", " ")
	if err != nil {
		return amerrors.InternalError("encode user config", err)
	}
	if err := fsutil.WriteFileAtomic(s.path, data, 0o600); err != nil {
		return amerrors.New(amerrors.ErrCodeFilePermission, "write user config", err).
			WithDetail("path", s.path)
	}
	return nil
}

func emptyRecord() json.RawMessage {
	return json.RawMessage("{}")
}

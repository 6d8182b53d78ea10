package userconfig

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "search_users_config.json"), "v3", nil)
}

func readDoc(t *testing.T, s *Store) map[string]json.RawMessage {
	t.Helper()
	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &doc))
	return doc
}

func TestGet_FirstCallNilThenEmptyRecord(t *testing.T) {
	// Given: no config document on disk
	s := newStore(t)

	// When: the first lookup runs
	cfg, err := s.Get("u1")

	// Then: nothing is returned but the document now holds an empty record
	require.NoError(t, err)
	assert.Nil(t, cfg)
	assert.JSONEq(t, `{}`, string(readDoc(t, s)["u1"]))

	// When: looking up again
	cfg, err = s.Get("u1")

	// Then: the empty record comes back
	require.NoError(t, err)
	assert.Equal(t, &UserConfig{}, cfg)
}

func TestGet_UnknownUserAddsRecord(t *testing.T) {
	// Given: a document for another user
	s := newStore(t)
	_, err := s.Update("other", &UserConfig{Language: "en"})
	require.True(t, errors.Is(err, ErrConfigMissing))

	// When: looking up a user without a record
	cfg, err := s.Get("u2")

	// Then: ErrUserNotFound and both records are kept
	assert.Nil(t, cfg)
	assert.True(t, errors.Is(err, ErrUserNotFound))
	doc := readDoc(t, s)
	assert.Contains(t, doc, "u2")
	assert.JSONEq(t, `{"language":"en","indexVersion":"v3"}`, string(doc["other"]))
}

func TestGet_CorruptDocumentRecreated(t *testing.T) {
	// Given: garbage on disk
	s := newStore(t)
	require.NoError(t, os.WriteFile(s.Path(), []byte("{not json"), 0o600))

	// When: looking up
	cfg, err := s.Get("u1")

	// Then: ErrConfigCorrupt and a fresh document with the user
	assert.Nil(t, cfg)
	assert.True(t, errors.Is(err, ErrConfigCorrupt))
	assert.Equal(t, map[string]json.RawMessage{"u1": json.RawMessage("{}")}, readDoc(t, s))
}

func TestUpdate_StampsIndexVersion(t *testing.T) {
	// Given: an existing document
	s := newStore(t)
	_, err := s.Get("u1")
	require.NoError(t, err)

	// When: updating without an index version
	got, err := s.Update("u1", &UserConfig{RotationID: 2, Language: "fr", Version: 1})

	// Then: the stored and returned record carry the configured version
	require.NoError(t, err)
	assert.Equal(t, &UserConfig{RotationID: 2, Language: "fr", Version: 1, IndexVersion: "v3"}, got)

	cfg, err := s.Get("u1")
	require.NoError(t, err)
	assert.Equal(t, got, cfg)
}

func TestUpdate_KeepsExplicitIndexVersion(t *testing.T) {
	s := newStore(t)
	_, _ = s.Get("u1")

	got, err := s.Update("u1", &UserConfig{IndexVersion: "v2"})

	require.NoError(t, err)
	assert.Equal(t, "v2", got.IndexVersion)
}

func TestUpdate_MissingDocument(t *testing.T) {
	// Given: no document
	s := newStore(t)

	// When: updating
	got, err := s.Update("u1", &UserConfig{Language: "de"})

	// Then: the document is created with the user's data but the update is rejected
	assert.Nil(t, got)
	assert.True(t, errors.Is(err, ErrConfigMissing))
	assert.JSONEq(t, `{"language":"de","indexVersion":"v3"}`, string(readDoc(t, s)["u1"]))
}

func TestUpdate_CorruptDocument(t *testing.T) {
	s := newStore(t)
	require.NoError(t, os.WriteFile(s.Path(), []byte("[1,2"), 0o600))

	got, err := s.Update("u1", &UserConfig{Version: 4})

	assert.Nil(t, got)
	assert.True(t, errors.Is(err, ErrConfigCorrupt))
	assert.JSONEq(t, `{"version":4,"indexVersion":"v3"}`, string(readDoc(t, s)["u1"]))
}

func TestStore_WritesIndentedJSON(t *testing.T) {
	s := newStore(t)
	_, _ = s.Get("u1")

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Equal(t, "{\n \"u1\": {}\n}", string(data))
}

func TestPeek_NeverWrites(t *testing.T) {
	// Given: no document
	s := newStore(t)

	// When: peeking
	cfg, err := s.Peek("u1")

	// Then: nothing is returned and nothing is created
	require.NoError(t, err)
	assert.Nil(t, cfg)
	_, statErr := os.Stat(s.Path())
	assert.True(t, os.IsNotExist(statErr))

	// When: the user has a record
	_, err = s.Update("u1", &UserConfig{RotationID: 4})
	require.ErrorIs(t, err, ErrConfigMissing)
	cfg, err = s.Peek("u1")

	// Then: it is read back, and other users stay absent
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, 4, cfg.RotationID)
	other, err := s.Peek("u2")
	require.NoError(t, err)
	assert.Nil(t, other)
	assert.NotContains(t, readDoc(t, s), "u2")
}

func TestPeek_CorruptDocument(t *testing.T) {
	s := newStore(t)
	require.NoError(t, os.WriteFile(s.Path(), []byte("{not json"), 0o600))

	_, err := s.Peek("u1")

	assert.ErrorIs(t, err, ErrConfigCorrupt)
	data, _ := os.ReadFile(s.Path())
	assert.Equal(t, "{not json", string(data))
}

package engine

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	amerrors "github.com/Aman-CERP/swiftsearch/internal/errors"
)

func testKey(b byte) []byte {
	return bytes.Repeat([]byte{b}, 32)
}

func TestSnapshot_RoundTrip(t *testing.T) {
	// Given: two messages written under a key
	dir := filepath.Join(t.TempDir(), "mainindex")
	in := []json.RawMessage{
		json.RawMessage(`{"messageId": "1", "text": "a\nb"}`),
		json.RawMessage(`{"messageId":"2"}`),
	}
	m, err := WriteSnapshot(dir, testKey(1), in)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Count)

	// When: opening with the same key
	out, manifest, err := OpenSnapshot(dir, testKey(1))

	// Then: messages come back compacted and in order
	require.NoError(t, err)
	assert.Equal(t, "v3", manifest.IndexVersion)
	require.Len(t, out, 2)
	assert.JSONEq(t, string(in[0]), string(out[0]))
	assert.Equal(t, `{"messageId":"2"}`, string(out[1]))
}

func TestSnapshot_WrongKeyIsCorrupt(t *testing.T) {
	dir := t.TempDir()
	_, err := WriteSnapshot(dir, testKey(1), []json.RawMessage{json.RawMessage(`{}`)})
	require.NoError(t, err)

	_, _, err = OpenSnapshot(dir, testKey(2))

	assert.True(t, amerrors.HasCode(err, amerrors.ErrCodeCorruptIndex))
}

func TestSnapshot_TamperedPayloadIsCorrupt(t *testing.T) {
	dir := t.TempDir()
	_, err := WriteSnapshot(dir, testKey(1), []json.RawMessage{json.RawMessage(`{}`)})
	require.NoError(t, err)

	path := filepath.Join(dir, SnapshotFile)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xff
	require.NoError(t, os.WriteFile(path, data, 0o600))

	_, _, err = OpenSnapshot(dir, testKey(1))
	assert.True(t, amerrors.HasCode(err, amerrors.ErrCodeCorruptIndex))
}

func TestSnapshot_MissingManifest(t *testing.T) {
	_, _, err := OpenSnapshot(t.TempDir(), testKey(1))
	assert.True(t, amerrors.HasCode(err, amerrors.ErrCodeCorruptIndex))
}

func TestSnapshot_ShortKeyRejected(t *testing.T) {
	_, err := WriteSnapshot(t.TempDir(), []byte("short"), nil)
	assert.True(t, amerrors.HasCode(err, amerrors.ErrCodeInvalidKey))
}

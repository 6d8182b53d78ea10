package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileAtomic_ReplacesContent(t *testing.T) {
	// Given: an existing file
	path := filepath.Join(t.TempDir(), "nested", "doc.json")
	require.NoError(t, WriteFileAtomic(path, []byte("old"), 0o644))

	// When: writing new content
	require.NoError(t, WriteFileAtomic(path, []byte("new"), 0o644))

	// Then: content is replaced and no temp file remains
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
	assert.False(t, Exists(path+".tmp"))
}

func TestLock_TryLockContention(t *testing.T) {
	// Given: one holder of the lock
	target := filepath.Join(t.TempDir(), "doc.json")
	first := NewLock(target)
	require.NoError(t, first.Lock())
	defer func() { _ = first.Unlock() }()

	// When: a second lock on the same file tries without blocking
	second := NewLock(target)
	ok, err := second.TryLock()

	// Then: it is refused
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, target+".lock", first.Path())
	assert.True(t, first.Held())
}

func TestLock_UnlockIdempotent(t *testing.T) {
	l := NewLock(filepath.Join(t.TempDir(), "x"))
	require.NoError(t, l.Lock())
	require.NoError(t, l.Unlock())
	require.NoError(t, l.Unlock())
	assert.False(t, l.Held())
}

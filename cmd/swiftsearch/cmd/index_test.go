package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	amerrors "github.com/Aman-CERP/swiftsearch/internal/errors"
)

func TestReadInput(t *testing.T) {
	// stdin when no file or "-"
	data, err := readInput(strings.NewReader(`[{"messageId":"m1"}]`), nil)
	require.NoError(t, err)
	assert.Equal(t, `[{"messageId":"m1"}]`, string(data))

	data, err = readInput(strings.NewReader("x"), []string{"-"})
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))

	// a file path
	path := filepath.Join(t.TempDir(), "batch.json")
	require.NoError(t, os.WriteFile(path, []byte("[]"), 0o644))
	data, err = readInput(strings.NewReader("ignored"), []string{path})
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestReadInput_MissingFile(t *testing.T) {
	_, err := readInput(strings.NewReader(""), []string{filepath.Join(t.TempDir(), "nope.json")})

	assert.True(t, amerrors.HasCode(err, amerrors.ErrCodeFileNotFound))
}

func TestIndexOpen_RejectsBadKeyBeforeDialing(t *testing.T) {
	isolate(t)

	_, err := run(t, "index", "open", "u1", "--key", "not-a-key")

	assert.True(t, amerrors.HasCode(err, amerrors.ErrCodeInvalidKey), "got %v", err)
}

func TestIndexCmd_Help(t *testing.T) {
	isolate(t)

	out, err := run(t, "index", "--help")

	require.NoError(t, err)
	for _, sub := range []string{"open", "batch", "realtime", "clear-realtime"} {
		assert.Contains(t, out, sub)
	}
}

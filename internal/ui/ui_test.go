package ui

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTTY_WithBuffer_ReturnsFalse(t *testing.T) {
	assert.False(t, IsTTY(&bytes.Buffer{}))
}

func TestIsTTY_WithNil_ReturnsFalse(t *testing.T) {
	assert.False(t, IsTTY(nil))
}

func TestIsTTY_WithRegularFile_ReturnsFalse(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "out")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.Close() }()

	assert.False(t, IsTTY(f))
}

func TestDetectNoColor(t *testing.T) {
	// Given: NO_COLOR set
	t.Setenv("NO_COLOR", "1")

	// Then: detected
	assert.True(t, DetectNoColor())

	// When: unset
	_ = os.Unsetenv("NO_COLOR")

	// Then: not detected
	assert.False(t, DetectNoColor())
}

func TestDetectCI(t *testing.T) {
	// Given: no CI variables
	for _, v := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"} {
		t.Setenv(v, "")
		_ = os.Unsetenv(v)
	}
	assert.False(t, DetectCI())

	// When: CI is set
	t.Setenv("CI", "true")

	// Then: detected
	assert.True(t, DetectCI())
}

func TestPlainOutput(t *testing.T) {
	// Given: a non-terminal writer
	buf := &bytes.Buffer{}

	// Then: output is always plain
	assert.True(t, PlainOutput(buf, false))
	assert.True(t, PlainOutput(buf, true))
}

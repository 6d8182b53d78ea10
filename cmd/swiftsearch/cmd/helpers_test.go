package cmd

import (
	"bytes"
	"path/filepath"
	"testing"
)

// isolate points every config and state lookup at a fresh temp home.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("SWIFTSEARCH_INDEX_DIR", filepath.Join(home, "index"))
	t.Setenv("SWIFTSEARCH_SOCKET", filepath.Join(home, "s.sock"))
	t.Setenv(keyEnv, "")
	t.Setenv("NO_COLOR", "1")
	configPath = ""
	return home
}

// run executes the root command with args and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

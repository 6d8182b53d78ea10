package ui

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusRenderer_Stopped(t *testing.T) {
	// Given: no daemon
	buf := &bytes.Buffer{}
	r := NewStatusRenderer(buf, true)

	// When: rendering
	require.NoError(t, r.Render(StatusInfo{Socket: "/tmp/s.sock", IndexDir: "/data/idx"}))

	// Then: daemon is stopped and the index is uninitialized
	out := buf.String()
	assert.Contains(t, out, "Daemon:  stopped")
	assert.Contains(t, out, "/tmp/s.sock")
	assert.Contains(t, out, "State:     uninitialized")
	assert.Contains(t, out, "On disk:   0 B")
	assert.NotContains(t, out, "Real-time")
}

func TestStatusRenderer_Running(t *testing.T) {
	// Given: a running daemon with a ready index
	buf := &bytes.Buffer{}
	r := NewStatusRenderer(buf, true)
	info := StatusInfo{
		Running:          true,
		PID:              4242,
		Uptime:           "3m0s",
		Version:          "1.2.0",
		UserID:           "u-1",
		State:            "ready",
		Initialized:      true,
		RealTimeIndexing: true,
		LatestMessage:    time.Now().Add(-2 * time.Hour),
		IndexDir:         "/data/idx",
		IndexSize:        5 * 1024 * 1024,
		Engine:           "bleve",
	}

	// When: rendering
	require.NoError(t, r.Render(info))

	// Then: daemon and index details are shown
	out := buf.String()
	assert.Contains(t, out, "running (pid 4242, up 3m0s)")
	assert.Contains(t, out, "Version: 1.2.0")
	assert.Contains(t, out, "User:      u-1")
	assert.Contains(t, out, "Engine:    bleve")
	assert.Contains(t, out, "Real-time: on")
	assert.Contains(t, out, "Newest:    2 hours ago")
	assert.Contains(t, out, "5.0 MB")
}

func TestStatusRenderer_RenderJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewStatusRenderer(buf, false)

	require.NoError(t, r.RenderJSON(StatusInfo{Running: true, PID: 7, State: "ready", Engine: "sqlite"}))

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &parsed))
	assert.Equal(t, true, parsed["running"])
	assert.Equal(t, float64(7), parsed["pid"])
	assert.Equal(t, "ready", parsed["state"])
	assert.Equal(t, "sqlite", parsed["engine"])
}

func TestFormatTime(t *testing.T) {
	now := time.Now()
	tests := []struct {
		at   time.Time
		want string
	}{
		{now, "just now"},
		{now.Add(-1 * time.Minute), "1 minute ago"},
		{now.Add(-5 * time.Minute), "5 minutes ago"},
		{now.Add(-1 * time.Hour), "1 hour ago"},
		{now.Add(-25 * time.Hour), "1 day ago"},
		{now.Add(-3 * 24 * time.Hour), "3 days ago"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatTime(tt.at))
	}

	old := time.Date(2020, 5, 1, 9, 30, 0, 0, time.Local)
	assert.Equal(t, "2020-05-01 09:30", formatTime(old))
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes    int64
		expected string
	}{
		{0, "0 B"},
		{100, "100 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1024 * 1024, "1.0 MB"},
		{5 * 1024 * 1024, "5.0 MB"},
		{1024 * 1024 * 1024, "1.0 GB"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatBytes(tt.bytes))
		})
	}
}

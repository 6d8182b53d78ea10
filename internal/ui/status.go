package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// StatusInfo describes the daemon and the index it serves.
type StatusInfo struct {
	Running bool   `json:"running"`
	PID     int    `json:"pid,omitempty"`
	Uptime  string `json:"uptime,omitempty"`
	Version string `json:"version,omitempty"`
	Socket  string `json:"socket"`

	UserID           string    `json:"user_id,omitempty"`
	State            string    `json:"state"`
	Initialized      bool      `json:"initialized"`
	RealTimeIndexing bool      `json:"real_time_indexing"`
	LatestMessage    time.Time `json:"latest_message,omitempty"`

	IndexDir  string `json:"index_dir"`
	IndexSize int64  `json:"index_size"`
	Engine    string `json:"engine"`
}

// StatusRenderer displays daemon status.
type StatusRenderer struct {
	out    io.Writer
	styles Styles
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{
		out:    out,
		styles: GetStyles(noColor),
	}
}

// Render displays status info to terminal.
func (r *StatusRenderer) Render(info StatusInfo) error {
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("swiftsearch status"))

	if !info.Running {
		_, _ = fmt.Fprintf(r.out, "  Daemon:  %s\n", r.renderStatus("stopped"))
		_, _ = fmt.Fprintf(r.out, "  Socket:  %s\n", info.Socket)
	} else {
		_, _ = fmt.Fprintf(r.out, "  Daemon:  %s (pid %d, up %s)\n", r.renderStatus("running"), info.PID, info.Uptime)
		_, _ = fmt.Fprintf(r.out, "  Socket:  %s\n", info.Socket)
		if info.Version != "" {
			_, _ = fmt.Fprintf(r.out, "  Version: %s\n", info.Version)
		}
	}
	_, _ = fmt.Fprintln(r.out)

	_, _ = fmt.Fprintln(r.out, "  Index:")
	state := info.State
	if state == "" {
		state = "uninitialized"
	}
	_, _ = fmt.Fprintf(r.out, "    State:     %s\n", r.renderStatus(state))
	if info.UserID != "" {
		_, _ = fmt.Fprintf(r.out, "    User:      %s\n", info.UserID)
	}
	if info.Engine != "" {
		_, _ = fmt.Fprintf(r.out, "    Engine:    %s\n", info.Engine)
	}
	if info.Initialized {
		rt := "off"
		if info.RealTimeIndexing {
			rt = "on"
		}
		_, _ = fmt.Fprintf(r.out, "    Real-time: %s\n", rt)
	}
	if !info.LatestMessage.IsZero() {
		_, _ = fmt.Fprintf(r.out, "    Newest:    %s\n", formatTime(info.LatestMessage))
	}
	_, _ = fmt.Fprintf(r.out, "    Directory: %s\n", info.IndexDir)
	_, _ = fmt.Fprintf(r.out, "    On disk:   %s\n", FormatBytes(info.IndexSize))

	return nil
}

// RenderJSON outputs status as JSON.
func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}

// renderStatus formats a status string with color.
func (r *StatusRenderer) renderStatus(status string) string {
	switch status {
	case "ready", "running":
		return r.styles.Success.Render(status)
	case "stopped", "uninitialized", "destroyed":
		return r.styles.Warning.Render(status)
	case "error":
		return r.styles.Error.Render(status)
	default:
		return r.styles.Accent.Render(status)
	}
}

// formatTime formats a time for display.
func formatTime(t time.Time) string {
	now := time.Now()
	diff := now.Sub(t)

	switch {
	case diff < 0:
		return t.Format("2006-01-02 15:04")
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	case diff < 7*24*time.Hour:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	default:
		return t.Format("2006-01-02 15:04")
	}
}

// FormatBytes formats bytes to human-readable format.
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

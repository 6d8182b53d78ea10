package mcp

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Aman-CERP/swiftsearch/internal/engine"
)

// maxSnippet bounds the text shown per message in markdown output.
const maxSnippet = 500

// FormatMessages formats a page of messages as markdown.
func FormatMessages(query string, out SearchMessagesOutput) string {
	if len(out.Messages) == 0 {
		return fmt.Sprintf("No messages found for \"%s\"", query)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Messages matching \"%s\"\n\n", query))
	sb.WriteString(fmt.Sprintf("Showing %d of %d message", out.Returned, out.Total))
	if out.Total != 1 {
		sb.WriteString("s")
	}
	if out.More {
		sb.WriteString(" (more available, raise offset)")
	}
	sb.WriteString("\n\n")

	for i, m := range out.Messages {
		formatMessage(&sb, i+1, m)
	}
	return sb.String()
}

func formatMessage(sb *strings.Builder, num int, m MessageOutput) {
	fmt.Fprintf(sb, "### %d. %s", num, m.MessageID)
	if m.IngestionDate > 0 {
		fmt.Fprintf(sb, " (%s)", time.UnixMilli(m.IngestionDate).UTC().Format(time.RFC3339))
	}
	sb.WriteString("\n")

	if m.SenderID != "" || m.ThreadID != "" {
		fmt.Fprintf(sb, "**From:** %s **Thread:** %s\n", orDash(m.SenderID), orDash(m.ThreadID))
	}
	if len(m.Tags) > 0 {
		fmt.Fprintf(sb, "**Tags:** %s\n", strings.Join(m.Tags, ", "))
	}
	if len(m.Attachments) > 0 {
		fmt.Fprintf(sb, "**Files:** %s\n", strings.Join(m.Attachments, ", "))
	}
	sb.WriteString("\n")
	sb.WriteString(truncate(m.Text, maxSnippet))
	sb.WriteString("\n\n---\n\n")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// clampLimit ensures limit is within bounds.
func clampLimit(limit, defaultVal, min, max int) int {
	if limit <= 0 {
		return defaultVal
	}
	if limit < min {
		return min
	}
	if limit > max {
		return max
	}
	return limit
}

// ToMessageOutput decodes one message document returned by a search.
func ToMessageOutput(raw json.RawMessage) (MessageOutput, error) {
	var m engine.Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return MessageOutput{}, err
	}
	out := MessageOutput{
		MessageID:     string(m.MessageID),
		ThreadID:      string(m.ThreadID),
		SenderID:      string(m.SenderID),
		Text:          m.Text,
		Tags:          m.Tags,
		IngestionDate: m.Timestamp(),
		ChatType:      m.ChatType,
	}
	for _, a := range m.Attachments {
		if a.Name != "" {
			out.Attachments = append(out.Attachments, a.Name)
		}
	}
	return out, nil
}

// ToSearchOutput converts an engine page, skipping documents that fail to
// decode.
func ToSearchOutput(res engine.SearchResult) SearchMessagesOutput {
	out := SearchMessagesOutput{
		Messages: make([]MessageOutput, 0, len(res.Messages)),
		Returned: res.Returned,
		Total:    res.Total,
		More:     res.More > 0,
	}
	for _, raw := range res.Messages {
		m, err := ToMessageOutput(raw)
		if err != nil {
			continue
		}
		out.Messages = append(out.Messages, m)
	}
	return out
}

package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

const snippetWidth = 160

// ResultRow is one message in a search listing.
type ResultRow struct {
	MessageID string    `json:"message_id"`
	SenderID  string    `json:"sender_id,omitempty"`
	ThreadID  string    `json:"thread_id,omitempty"`
	Date      time.Time `json:"date,omitempty"`
	Text      string    `json:"text"`
	Tags      []string  `json:"tags,omitempty"`
	Files     []string  `json:"files,omitempty"`
}

// ResultPage is a page of search results.
type ResultPage struct {
	Rows     []ResultRow `json:"rows"`
	Returned int         `json:"returned"`
	Total    int         `json:"total"`
	More     bool        `json:"more"`
}

// ResultsRenderer prints search results.
type ResultsRenderer struct {
	out    io.Writer
	styles Styles
}

// NewResultsRenderer creates a results renderer.
func NewResultsRenderer(out io.Writer, noColor bool) *ResultsRenderer {
	return &ResultsRenderer{out: out, styles: GetStyles(noColor)}
}

// Render prints one block per row followed by a paging footer.
func (r *ResultsRenderer) Render(page ResultPage) error {
	if len(page.Rows) == 0 {
		_, _ = fmt.Fprintln(r.out, r.styles.Warning.Render("No messages found."))
		return nil
	}

	for i, row := range page.Rows {
		head := fmt.Sprintf("%d. %s", i+1, row.MessageID)
		_, _ = fmt.Fprint(r.out, r.styles.Header.Render(head))
		if !row.Date.IsZero() {
			_, _ = fmt.Fprintf(r.out, "  %s", r.styles.Dim.Render(row.Date.UTC().Format(time.RFC3339)))
		}
		_, _ = fmt.Fprintln(r.out)

		var meta []string
		if row.SenderID != "" {
			meta = append(meta, r.styles.Label.Render("from ")+row.SenderID)
		}
		if row.ThreadID != "" {
			meta = append(meta, r.styles.Label.Render("thread ")+row.ThreadID)
		}
		if len(meta) > 0 {
			_, _ = fmt.Fprintf(r.out, "   %s\n", strings.Join(meta, "  "))
		}
		if len(row.Tags) > 0 {
			_, _ = fmt.Fprintf(r.out, "   %s\n", r.styles.Accent.Render(strings.Join(row.Tags, " ")))
		}
		if len(row.Files) > 0 {
			_, _ = fmt.Fprintf(r.out, "   %s%s\n", r.styles.Label.Render("files "), strings.Join(row.Files, ", "))
		}
		if text := Snippet(row.Text, snippetWidth); text != "" {
			_, _ = fmt.Fprintf(r.out, "   %s\n", text)
		}
		_, _ = fmt.Fprintln(r.out)
	}

	footer := fmt.Sprintf("%d of %d", page.Returned, page.Total)
	if page.More {
		footer += ", more available"
	}
	_, _ = fmt.Fprintln(r.out, r.styles.Dim.Render(footer))
	return nil
}

// RenderJSON outputs the page as JSON.
func (r *ResultsRenderer) RenderJSON(page ResultPage) error {
	if page.Rows == nil {
		page.Rows = []ResultRow{}
	}
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(page)
}

// Snippet collapses whitespace and cuts text to at most width runes.
func Snippet(text string, width int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if width <= 3 || len(runes) <= width {
		return text
	}
	return string(runes[:width-3]) + "..."
}

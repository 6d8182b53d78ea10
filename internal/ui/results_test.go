package ui

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultsRenderer_Empty(t *testing.T) {
	buf := &bytes.Buffer{}

	require.NoError(t, NewResultsRenderer(buf, true).Render(ResultPage{}))

	assert.Equal(t, "No messages found.\n", buf.String())
}

func TestResultsRenderer_Rows(t *testing.T) {
	// Given: a page with one detailed and one bare row
	buf := &bytes.Buffer{}
	page := ResultPage{
		Rows: []ResultRow{
			{
				MessageID: "m1",
				SenderID:  "alice",
				ThreadID:  "t9",
				Date:      time.UnixMilli(1700000000000),
				Text:      "quarterly\n  budget   draft",
				Tags:      []string{"#fin", "#q3"},
				Files:     []string{"budget.xlsx"},
			},
			{MessageID: "m2"},
		},
		Returned: 2,
		Total:    7,
		More:     true,
	}

	// When: rendering without color
	require.NoError(t, NewResultsRenderer(buf, true).Render(page))

	// Then: each row and the footer are printed
	out := buf.String()
	assert.Contains(t, out, "1. m1  2023-11-14T22:13:20Z\n")
	assert.Contains(t, out, "from alice  thread t9")
	assert.Contains(t, out, "#fin #q3")
	assert.Contains(t, out, "files budget.xlsx")
	assert.Contains(t, out, "quarterly budget draft")
	assert.Contains(t, out, "2. m2\n")
	assert.True(t, strings.HasSuffix(out, "2 of 7, more available\n"))
}

func TestResultsRenderer_RenderJSON(t *testing.T) {
	buf := &bytes.Buffer{}

	require.NoError(t, NewResultsRenderer(buf, true).RenderJSON(ResultPage{Total: 0}))

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &parsed))
	assert.Equal(t, []any{}, parsed["rows"])
	assert.Equal(t, false, parsed["more"])
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "a b c", Snippet(" a\tb\n c ", 10))
	assert.Equal(t, "abcdefg...", Snippet("abcdefghijklmnop", 10))
	assert.Equal(t, "ééé...", Snippet(strings.Repeat("é", 20), 6))
	assert.Equal(t, "abcdef", Snippet("abcdef", 2))
}

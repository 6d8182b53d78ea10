package mcp

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/swiftsearch/internal/engine"
)

func TestToMessageOutput(t *testing.T) {
	// Given: a stored document with numeric ids and attachments
	raw := json.RawMessage(`{"messageId":42,"threadId":"t1","senderId":"s1","text":"hello",
		"tags":["#q3"],"ingestionDate":"1700000000000","chatType":"IM",
		"attachments":[{"name":"report.pdf","fileType":"pdf"},{"fileType":"png"}]}`)

	// When: converting it
	m, err := ToMessageOutput(raw)

	// Then: ids are strings and only named attachments are listed
	require.NoError(t, err)
	assert.Equal(t, "42", m.MessageID)
	assert.Equal(t, "t1", m.ThreadID)
	assert.Equal(t, "s1", m.SenderID)
	assert.Equal(t, "hello", m.Text)
	assert.Equal(t, []string{"#q3"}, m.Tags)
	assert.Equal(t, int64(1700000000000), m.IngestionDate)
	assert.Equal(t, "IM", m.ChatType)
	assert.Equal(t, []string{"report.pdf"}, m.Attachments)
}

func TestToSearchOutput_SkipsUndecodable(t *testing.T) {
	res := engine.SearchResult{
		Messages: []json.RawMessage{
			json.RawMessage(`{"messageId":"a","text":"x"}`),
			json.RawMessage(`[1,2]`),
		},
		Returned: 2,
		Total:    5,
		More:     1,
	}

	out := ToSearchOutput(res)

	require.Len(t, out.Messages, 1)
	assert.Equal(t, "a", out.Messages[0].MessageID)
	assert.Equal(t, 2, out.Returned)
	assert.Equal(t, 5, out.Total)
	assert.True(t, out.More)
}

func TestToSearchOutput_Empty(t *testing.T) {
	out := ToSearchOutput(engine.EmptyResult())

	assert.NotNil(t, out.Messages)
	assert.Empty(t, out.Messages)
	assert.False(t, out.More)
}

func TestFormatMessages_NoResults(t *testing.T) {
	assert.Equal(t, `No messages found for "budget"`, FormatMessages("budget", SearchMessagesOutput{}))
}

func TestFormatMessages(t *testing.T) {
	// Given: a page of two out of three messages
	out := SearchMessagesOutput{
		Messages: []MessageOutput{
			{MessageID: "m1", SenderID: "alice", ThreadID: "t1", Text: "budget draft", IngestionDate: 1700000000000, Tags: []string{"#fin"}},
			{MessageID: "m2", Text: "see attached", Attachments: []string{"budget.xlsx"}},
		},
		Returned: 2,
		Total:    3,
		More:     true,
	}

	// When: formatting
	md := FormatMessages("budget", out)

	// Then: header, paging hint and per-message details are present
	assert.Contains(t, md, `## Messages matching "budget"`)
	assert.Contains(t, md, "Showing 2 of 3 messages (more available, raise offset)")
	assert.Contains(t, md, "### 1. m1 (2023-11-14T22:13:20Z)")
	assert.Contains(t, md, "**From:** alice **Thread:** t1")
	assert.Contains(t, md, "**Tags:** #fin")
	assert.Contains(t, md, "### 2. m2\n")
	assert.Contains(t, md, "**Files:** budget.xlsx")
	assert.Equal(t, 2, strings.Count(md, "---"))
}

func TestFormatMessages_SingularAndTruncation(t *testing.T) {
	long := strings.Repeat("é", maxSnippet+20)
	out := SearchMessagesOutput{
		Messages: []MessageOutput{{MessageID: "m1", Text: long}},
		Returned: 1,
		Total:    1,
	}

	md := FormatMessages("x", out)

	assert.Contains(t, md, "Showing 1 of 1 message\n")
	assert.Contains(t, md, strings.Repeat("é", maxSnippet-3)+"...")
	assert.NotContains(t, md, strings.Repeat("é", maxSnippet-2))
}

func TestClampLimit(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, 10},
		{-5, 10},
		{1, 1},
		{50, 50},
		{500, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, clampLimit(tt.in, 10, 1, 100), "limit %d", tt.in)
	}
}

package mcp

// SearchMessagesInput defines the input schema for the search_messages tool.
type SearchMessagesInput struct {
	Query      string   `json:"query" jsonschema:"free text to search for; #tags also match message tags"`
	SenderIDs  []string `json:"sender_ids,omitempty" jsonschema:"only messages from these senders"`
	ThreadIDs  []string `json:"thread_ids,omitempty" jsonschema:"only messages in these threads"`
	FileType   string   `json:"file_type,omitempty" jsonschema:"attachment type such as pdf, or 'attachment' for any file"`
	StartDate  int64    `json:"start_date,omitempty" jsonschema:"earliest ingestion date, ms since epoch"`
	EndDate    int64    `json:"end_date,omitempty" jsonschema:"latest ingestion date, ms since epoch"`
	Limit      int      `json:"limit,omitempty" jsonschema:"maximum number of messages, default 10"`
	Offset     int      `json:"offset,omitempty" jsonschema:"number of messages to skip"`
	SortByDate bool     `json:"sort_by_date,omitempty" jsonschema:"newest first instead of by relevance"`
}

// SearchMessagesOutput defines the output schema for the search_messages tool.
type SearchMessagesOutput struct {
	Messages []MessageOutput `json:"messages" jsonschema:"matching messages"`
	Returned int             `json:"returned" jsonschema:"number of messages in this page"`
	Total    int             `json:"total" jsonschema:"number of matching messages"`
	More     bool            `json:"more" jsonschema:"true if more pages follow"`
}

// MessageOutput is one matching message.
type MessageOutput struct {
	MessageID     string   `json:"message_id"`
	ThreadID      string   `json:"thread_id,omitempty"`
	SenderID      string   `json:"sender_id,omitempty"`
	Text          string   `json:"text"`
	Tags          []string `json:"tags,omitempty"`
	IngestionDate int64    `json:"ingestion_date"`
	ChatType      string   `json:"chat_type,omitempty"`
	Attachments   []string `json:"attachments,omitempty" jsonschema:"attachment file names"`
}

// IndexStatusInput defines the input schema for the index_status tool (no parameters).
type IndexStatusInput struct{}

// IndexStatusOutput defines the output schema for the index_status tool.
type IndexStatusOutput struct {
	UserID           string         `json:"user_id,omitempty"`
	State            string         `json:"state" jsonschema:"lifecycle state, ready when searchable"`
	Initialized      bool           `json:"initialized"`
	RealTimeIndexing bool           `json:"realtime_indexing"`
	LatestTimestamp  string         `json:"latest_timestamp,omitempty" jsonschema:"newest indexed ingestion date, ms since epoch"`
	Validator        map[string]any `json:"validator,omitempty" jsonschema:"last corruption check diagnostic"`
	Version          string         `json:"version"`
}

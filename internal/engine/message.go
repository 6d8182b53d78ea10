package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Message is the subset of a message document the Go backends index. The
// original JSON is kept in Raw and returned verbatim by searches.
type Message struct {
	MessageID     flexString   `json:"messageId"`
	ThreadID      flexString   `json:"threadId"`
	SenderID      flexString   `json:"senderId"`
	Text          string       `json:"text"`
	Tags          []string     `json:"tags"`
	IngestionDate flexInt      `json:"ingestionDate"`
	ChatType      string       `json:"chatType"`
	Attachments   []Attachment `json:"attachments"`

	Raw json.RawMessage `json:"-"`
}

// Attachment describes one file on a message.
type Attachment struct {
	Name     string `json:"name"`
	FileType string `json:"fileType"`
}

// Timestamp returns the ingestion date in ms.
func (m *Message) Timestamp() int64 { return int64(m.IngestionDate) }

// HasFiles reports whether the message carries attachments.
func (m *Message) HasFiles() bool { return len(m.Attachments) > 0 }

// FileNames joins attachment names for full-text matching.
func (m *Message) FileNames() string {
	names := make([]string, 0, len(m.Attachments))
	for _, a := range m.Attachments {
		if a.Name != "" {
			names = append(names, a.Name)
		}
	}
	return strings.Join(names, " ")
}

// FileTypes returns lower-cased attachment types.
func (m *Message) FileTypes() []string {
	var types []string
	for _, a := range m.Attachments {
		if a.FileType != "" {
			types = append(types, strings.ToLower(a.FileType))
		}
	}
	return types
}

// LowerTags returns lower-cased tags.
func (m *Message) LowerTags() []string {
	tags := make([]string, 0, len(m.Tags))
	for _, t := range m.Tags {
		tags = append(tags, strings.ToLower(t))
	}
	return tags
}

// ParseMessages decodes a JSON array of message documents.
func ParseMessages(messagesJSON string) ([]Message, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal([]byte(messagesJSON), &raws); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	msgs := make([]Message, 0, len(raws))
	for i, raw := range raws {
		var m Message
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("decode message %d: %w", i, err)
		}
		m.Raw = append(json.RawMessage(nil), raw...)
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number: %w", err)
	}
	*f = flexString(n.String())
	return nil
}

// flexInt accepts a JSON number or a numeric string. Anything else is zero.
type flexInt int64

func (f *flexInt) UnmarshalJSON(b []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(b); err != nil {
		return err
	}
	if s == "" {
		*f = 0
		return nil
	}
	if n, err := strconv.ParseInt(string(s), 10, 64); err == nil {
		*f = flexInt(n)
		return nil
	}
	if v, err := strconv.ParseFloat(string(s), 64); err == nil {
		*f = flexInt(int64(v))
		return nil
	}
	*f = 0
	return nil
}

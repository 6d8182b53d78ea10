// Package engine defines the search engine contract used by the index
// lifecycle and provides its backends.
//
// An engine holds two in-memory indexes: the main index, which is
// serialized to an encrypted snapshot on disk, and the realtime index, which
// receives live events and is never persisted. Searches cover both.
package engine

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/Aman-CERP/swiftsearch/internal/config"
	amerrors "github.com/Aman-CERP/swiftsearch/internal/errors"
)

// Engine is the narrow contract the lifecycle manager drives. Implementations
// are not required to be safe for concurrent mutation; the manager serializes
// lifecycle calls but may search concurrently.
type Engine interface {
	// Init prepares the engine. dictPath is optional.
	Init(ctx context.Context, dictPath string) error
	// Destroy releases every resource. Init may be called again afterwards.
	Destroy() error

	ClearMainIndex(ctx context.Context) error
	ClearRealtimeIndex(ctx context.Context) error

	// IndexMain and IndexRealtime take a JSON array of messages and return
	// the number indexed.
	IndexMain(ctx context.Context, messagesJSON string) (int, error)
	IndexRealtime(ctx context.Context, messagesJSON string) (int, error)

	// Search returns a handle over SearchResult JSON.
	Search(ctx context.Context, req SearchRequest) (*Result, error)
	// GetLastTimestamp returns a handle over the newest main-index message
	// timestamp, or MinimumDate when empty.
	GetLastTimestamp(ctx context.Context) (*Result, error)

	// DeleteMessages removes messages matching filter (empty for all) with a
	// timestamp in [fromTs, toTs].
	DeleteMessages(ctx context.Context, filter string, fromTs, toTs int64) (int, error)

	// SerializeMainIndex writes the main index under dir, encrypted with the
	// 32-byte key. DeserializeMainIndex replaces the main index with it.
	SerializeMainIndex(ctx context.Context, dir string, key []byte) (int, error)
	DeserializeMainIndex(ctx context.Context, dir string, key []byte) (int, error)
}

// SearchRequest is one engine query.
type SearchRequest struct {
	Query     string
	StartTs   int64
	EndTs     int64
	Offset    int
	Limit     int
	SortOrder int
}

var errNotInitialized = amerrors.New(amerrors.ErrCodeEngineInit, "engine not initialized", nil)

// Sort orders understood by every backend.
const (
	SortByScore = config.SortByScore
	SortByDate  = config.SortByDate
)

// SearchResult is the JSON payload of a search handle.
type SearchResult struct {
	Messages []json.RawMessage `json:"messages"`
	More     int               `json:"more"`
	Returned int               `json:"returned"`
	Total    int               `json:"total"`
}

// EmptyResult returns a result with no hits that marshals with an empty
// messages array.
func EmptyResult() SearchResult {
	return SearchResult{Messages: []json.RawMessage{}}
}

// NewSearchResult builds a page from hits given the total and the page offset.
func NewSearchResult(hits []json.RawMessage, total, offset int) SearchResult {
	if hits == nil {
		hits = []json.RawMessage{}
	}
	r := SearchResult{Messages: hits, Returned: len(hits), Total: total}
	if offset+len(hits) < total {
		r.More = 1
	}
	return r
}

// Result is a scoped handle over an engine payload. Free must be called once
// the caller is done; it is idempotent.
type Result struct {
	data []byte
	free func()
	once sync.Once
}

// NewResult wraps a Go-owned payload.
func NewResult(data []byte) *Result {
	return &Result{data: data}
}

func newOwnedResult(data []byte, free func()) *Result {
	return &Result{data: data, free: free}
}

// Bytes returns the payload. It is nil after Free.
func (r *Result) Bytes() []byte {
	if r == nil {
		return nil
	}
	return r.data
}

// Free releases the payload.
func (r *Result) Free() {
	if r == nil {
		return
	}
	r.once.Do(func() {
		if r.free != nil {
			r.free()
		}
		r.data = nil
	})
}

// FormatTimestamp renders ms as the 13-digit form used across the engine API.
func FormatTimestamp(ms int64) string {
	return fmt.Sprintf("%013d", ms)
}

// DecodeKey decodes a base64 user key and checks its length.
func DecodeKey(key string) ([]byte, error) {
	if key == "" {
		return nil, amerrors.New(amerrors.ErrCodeInvalidKey, "key is required", nil)
	}
	raw, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		return nil, amerrors.New(amerrors.ErrCodeInvalidKey, "key is not valid base64", err)
	}
	if len(raw) != config.KeyLength {
		return nil, amerrors.New(amerrors.ErrCodeInvalidKey,
			fmt.Sprintf("key must decode to %d bytes, got %d", config.KeyLength, len(raw)), nil)
	}
	return raw, nil
}

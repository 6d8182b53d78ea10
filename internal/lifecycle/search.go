package lifecycle

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/Aman-CERP/swiftsearch/internal/config"
	"github.com/Aman-CERP/swiftsearch/internal/engine"
	amerrors "github.com/Aman-CERP/swiftsearch/internal/errors"
	"github.com/Aman-CERP/swiftsearch/internal/telemetry"
)

// maxDateMillis is the largest magnitude a millisecond date may have.
const maxDateMillis = 8.64e15

// DateParam is a millisecond timestamp sent as a string or a number.
type DateParam string

// UnmarshalJSON accepts "123", 123 and null.
func (d *DateParam) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*d = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*d = DateParam(s)
		return nil
	}
	*d = DateParam(b)
	return nil
}

// SearchParams is the input of the query-building search.
type SearchParams struct {
	Query     string
	SenderIDs []string
	ThreadIDs []string
	FileType  string
	StartDate DateParam
	EndDate   DateParam
	Limit     *float64
	Offset    *float64
	SortOrder *float64
}

// SearchPayload is the input of SearchQueryV2. Q is passed to the engine
// as is.
type SearchPayload struct {
	Q         string    `json:"q"`
	StartDate DateParam `json:"startDate,omitempty"`
	EndDate   DateParam `json:"endDate,omitempty"`
	Limit     *float64  `json:"limit,omitempty"`
	Offset    *float64  `json:"offset,omitempty"`
	SortOrder *float64  `json:"sortOrder,omitempty"`
}

// SearchQuery builds the query from free text and filters, then searches.
//
// Deprecated: front-ends build queries themselves and call SearchQueryV2.
func (m *Manager) SearchQuery(ctx context.Context, p SearchParams) (engine.SearchResult, error) {
	start := time.Now()
	if !m.IsLibInit() {
		m.logger.Warn("search_not_initialized")
		return engine.EmptyResult(), nil
	}
	sort := sortOrder(p.SortOrder)
	q := m.queries.Construct(p.Query, p.SenderIDs, p.ThreadIDs, p.FileType, sort == config.SortByDate)
	res, err := m.search(ctx, q, p.StartDate, p.EndDate, p.Limit, p.Offset, sort)
	m.record("v1", p.Query, res, start, err)
	return res, err
}

// SearchQueryV2 searches with a prebuilt query.
func (m *Manager) SearchQueryV2(ctx context.Context, p SearchPayload) (engine.SearchResult, error) {
	start := time.Now()
	if !m.IsLibInit() {
		m.logger.Warn("search_not_initialized")
		return engine.EmptyResult(), nil
	}
	res, err := m.search(ctx, p.Q, p.StartDate, p.EndDate, p.Limit, p.Offset, sortOrder(p.SortOrder))
	m.record("v2", p.Q, res, start, err)
	return res, err
}

func (m *Manager) search(ctx context.Context, q string, startDate, endDate DateParam, limit, offset *float64, sort int) (engine.SearchResult, error) {
	if q == "" {
		return engine.EmptyResult(), nil
	}

	floor := m.searchFloor()
	startTs := floor
	if v, ok := parseMillis(string(startDate)); ok && v != 0 && v >= floor {
		startTs = v
	}
	endTs, _ := strconv.ParseInt(config.MaximumDate, 10, 64)
	if v, ok := parseMillis(string(endDate)); ok && v != 0 {
		endTs = v
	}

	req := engine.SearchRequest{
		Query:     q,
		StartTs:   startTs,
		EndTs:     endTs,
		Offset:    wholeOr(offset, config.DefaultOffset, 0),
		Limit:     wholeOr(limit, config.DefaultLimit, 1),
		SortOrder: sort,
	}

	var handle *engine.Result
	var err error
	m.timed("search", func() { handle, err = m.engine.Search(ctx, req) })
	if err != nil {
		m.logger.Error("search_failed", slog.String("error", err.Error()))
		return engine.EmptyResult(), amerrors.New(amerrors.ErrCodeSearchFailed, "search failed", err)
	}
	defer handle.Free()

	var out engine.SearchResult
	if err := json.Unmarshal(handle.Bytes(), &out); err != nil {
		m.logger.Error("search_result_parse_failed", slog.String("error", err.Error()))
		return engine.EmptyResult(), amerrors.New(amerrors.ErrCodeSearchFailed, "search result parse failed", err)
	}
	if out.Messages == nil {
		out.Messages = []json.RawMessage{}
	}
	return out, nil
}

func (m *Manager) record(api, q string, res engine.SearchResult, start time.Time, err error) {
	elapsed := time.Since(start)
	m.metrics.Search(api, elapsed, err)
	if err == nil {
		m.stats.Record(telemetry.SearchEvent{Query: q, Returned: res.Returned, Latency: elapsed})
	}
}

// GetLatestMessageTimestamp returns the newest main-index timestamp as a
// 13-digit string.
func (m *Manager) GetLatestMessageTimestamp(ctx context.Context) (string, error) {
	if !m.IsLibInit() {
		m.logger.Error("timestamp_not_initialized")
		return "", amerrors.NotReady("Not initialized")
	}

	var handle *engine.Result
	var err error
	m.timed("last_timestamp", func() { handle, err = m.engine.GetLastTimestamp(ctx) })
	if err != nil {
		m.logger.Error("timestamp_failed", slog.String("error", err.Error()))
		return "", amerrors.New(amerrors.ErrCodeTimestampFailed, "Error getting the index timestamp", err)
	}
	defer handle.Free()
	return string(handle.Bytes()), nil
}

// sortOrder defaults anything missing or fractional to date order.
func sortOrder(v *float64) int {
	if !isWhole(v) {
		return config.SortByDate
	}
	return int(*v)
}

// wholeOr returns *v when it is a whole number >= lo, else def.
func wholeOr(v *float64, def, lo int) int {
	if !isWhole(v) || *v < float64(lo) || *v > math.MaxInt32 {
		return def
	}
	return int(*v)
}

func isWhole(v *float64) bool {
	return v != nil && !math.IsInf(*v, 0) && !math.IsNaN(*v) && math.Trunc(*v) == *v
}

// parseMillis reads a leading, optionally signed, integer and ignores the
// rest, the way browsers parse date strings.
func parseMillis(s string) (int64, bool) {
	s = strings.TrimLeft(s, " \t\r\n")
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}
	v, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil || math.Abs(float64(v)) > maxDateMillis {
		return 0, false
	}
	return v, true
}

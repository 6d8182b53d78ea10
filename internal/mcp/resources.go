package mcp

import (
	"context"
	"encoding/json"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/swiftsearch/internal/telemetry"
)

const (
	statusURI      = "swiftsearch://index_status"
	searchStatsURI = "swiftsearch://search_stats"
)

// SearchStatsOutput is the JSON structure for the search_stats resource.
type SearchStatsOutput struct {
	Summary             SearchStatsSummary `json:"summary"`
	LatencyDistribution map[string]int64   `json:"latency_distribution"`
}

// SearchStatsSummary provides overview statistics.
type SearchStatsSummary struct {
	TotalSearches   int64   `json:"total_searches"`
	ZeroResultPct   float64 `json:"zero_result_pct"`
	RepeatedQueries int64   `json:"repeated_queries"`
	P50Millis       int64   `json:"p50_ms"`
	P95Millis       int64   `json:"p95_ms"`
	Since           string  `json:"since"`
}

// registerResources registers the resources available on every server.
func (s *Server) registerResources() {
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        "index_status",
			URI:         statusURI,
			Description: "Lifecycle state of the message index",
			MIMEType:    "application/json",
		},
		func(ctx context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			return jsonResource(statusURI, s.indexStatus(ctx))
		},
	)
}

// SetStats sets the search statistics source. When set, a search_stats
// resource is registered.
func (s *Server) SetStats(stats *telemetry.SearchStats) {
	s.mu.Lock()
	s.stats = stats
	register := stats != nil && !s.statsAdded
	if register {
		s.statsAdded = true
	}
	s.mu.Unlock()

	if register {
		s.mcp.AddResource(
			&mcp.Resource{
				Name:        "search_stats",
				URI:         searchStatsURI,
				Description: "Aggregate search activity: volume, zero-result share and latency",
				MIMEType:    "application/json",
			},
			func(context.Context, *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
				out, err := s.SearchStats()
				if err != nil {
					return nil, err
				}
				return jsonResource(searchStatsURI, out)
			},
		)
	}
}

// SearchStats returns the current aggregates.
func (s *Server) SearchStats() (*SearchStatsOutput, error) {
	s.mu.RLock()
	stats := s.stats
	s.mu.RUnlock()
	if stats == nil {
		return nil, NewInvalidParamsError("search stats not available")
	}

	snap := stats.Snapshot()
	out := &SearchStatsOutput{
		Summary: SearchStatsSummary{
			TotalSearches:   snap.TotalSearches,
			ZeroResultPct:   snap.ZeroResultPercentage(),
			RepeatedQueries: snap.ExactRepeatCount,
			P50Millis:       snap.P50.Milliseconds(),
			P95Millis:       snap.P95.Milliseconds(),
			Since:           snap.Since.UTC().Format(time.RFC3339),
		},
		LatencyDistribution: make(map[string]int64, len(snap.LatencyDistribution)),
	}
	for bucket, count := range snap.LatencyDistribution {
		out.LatencyDistribution[string(bucket)] = count
	}
	return out, nil
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	content, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, MapError(err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      uri,
				MIMEType: "application/json",
				Text:     string(content),
			},
		},
	}, nil
}

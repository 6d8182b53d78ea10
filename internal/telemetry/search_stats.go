package telemetry

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LatencyBucket is a coarse latency histogram bucket.
type LatencyBucket string

const (
	BucketP10   LatencyBucket = "p10"   // <10ms
	BucketP50   LatencyBucket = "p50"   // 10-50ms
	BucketP100  LatencyBucket = "p100"  // 50-100ms
	BucketP500  LatencyBucket = "p500"  // 100-500ms
	BucketP1000 LatencyBucket = "p1000" // >=500ms
)

// LatencyToBucket converts a duration to its histogram bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	ms := d.Milliseconds()
	switch {
	case ms < 10:
		return BucketP10
	case ms < 50:
		return BucketP50
	case ms < 100:
		return BucketP100
	case ms < 500:
		return BucketP500
	default:
		return BucketP1000
	}
}

// SearchEvent is one completed search.
type SearchEvent struct {
	Query    string
	Returned int
	Latency  time.Duration
}

// CircularBuffer is a fixed-capacity FIFO buffer.
type CircularBuffer[T any] struct {
	items    []T
	head     int // next write position
	size     int
	capacity int
	mu       sync.RWMutex
}

// NewCircularBuffer creates a buffer with the given capacity.
func NewCircularBuffer[T any](capacity int) *CircularBuffer[T] {
	if capacity <= 0 {
		capacity = 100
	}
	return &CircularBuffer[T]{
		items:    make([]T, capacity),
		capacity: capacity,
	}
}

// Add appends item, evicting the oldest when full.
func (b *CircularBuffer[T]) Add(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items[b.head] = item
	b.head = (b.head + 1) % b.capacity
	if b.size < b.capacity {
		b.size++
	}
}

// Items returns the buffered items oldest first.
func (b *CircularBuffer[T]) Items() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.size == 0 {
		return []T{}
	}
	out := make([]T, b.size)
	if b.size < b.capacity {
		copy(out, b.items[:b.size])
	} else {
		copy(out, b.items[b.head:])
		copy(out[b.capacity-b.head:], b.items[:b.head])
	}
	return out
}

// Size returns the number of buffered items.
func (b *CircularBuffer[T]) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// SearchStatsSnapshot is an immutable copy of SearchStats.
type SearchStatsSnapshot struct {
	TotalSearches       int64                   `json:"total_searches"`
	ZeroResultCount     int64                   `json:"zero_result_count"`
	ExactRepeatCount    int64                   `json:"exact_repeat_count"`
	LatencyDistribution map[LatencyBucket]int64 `json:"latency_distribution"`
	P50                 time.Duration           `json:"p50"`
	P95                 time.Duration           `json:"p95"`
	Since               time.Time               `json:"since"`
}

// ZeroResultPercentage returns the share of searches with no hits.
func (s *SearchStatsSnapshot) ZeroResultPercentage() float64 {
	if s.TotalSearches == 0 {
		return 0
	}
	return float64(s.ZeroResultCount) / float64(s.TotalSearches) * 100
}

// SearchStats aggregates search activity in memory. Query text is only
// kept as a truncated hash, never verbatim.
type SearchStats struct {
	mu sync.Mutex

	total       int64
	zeroResults int64
	repeats     int64
	latencies   map[LatencyBucket]int64
	recent      *CircularBuffer[time.Duration]
	seen        *lru.Cache[string, struct{}]
	since       time.Time
}

// NewSearchStats keeps the last window latencies for percentiles.
func NewSearchStats(window int) *SearchStats {
	if window <= 0 {
		window = 500
	}
	seen, _ := lru.New[string, struct{}](window)
	return &SearchStats{
		latencies: make(map[LatencyBucket]int64),
		recent:    NewCircularBuffer[time.Duration](window),
		seen:      seen,
		since:     time.Now(),
	}
}

// Record adds one search. Safe on a nil receiver.
func (s *SearchStats) Record(ev SearchEvent) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total++
	if ev.Returned == 0 {
		s.zeroResults++
	}
	s.latencies[LatencyToBucket(ev.Latency)]++
	s.recent.Add(ev.Latency)

	h := hashQuery(ev.Query)
	if _, ok := s.seen.Get(h); ok {
		s.repeats++
	}
	s.seen.Add(h, struct{}{})
}

// Snapshot copies the current aggregates.
func (s *SearchStats) Snapshot() *SearchStatsSnapshot {
	if s == nil {
		return &SearchStatsSnapshot{LatencyDistribution: map[LatencyBucket]int64{}}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	dist := make(map[LatencyBucket]int64, len(s.latencies))
	for k, v := range s.latencies {
		dist[k] = v
	}
	recent := s.recent.Items()
	slices.Sort(recent)

	return &SearchStatsSnapshot{
		TotalSearches:       s.total,
		ZeroResultCount:     s.zeroResults,
		ExactRepeatCount:    s.repeats,
		LatencyDistribution: dist,
		P50:                 percentile(recent, 50),
		P95:                 percentile(recent, 95),
		Since:               s.since,
	}
}

// percentile expects sorted input.
func percentile(sorted []time.Duration, p int) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := (len(sorted)*p + 99) / 100
	if idx < 1 {
		idx = 1
	}
	return sorted[idx-1]
}

func hashQuery(query string) string {
	normalized := strings.ToLower(strings.TrimSpace(query))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:16])
}

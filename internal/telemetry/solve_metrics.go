// Package telemetry records solve telemetry: outcome counts, popular
// endpoints, unreachable pairs and latency. All data is stored locally.
package telemetry

import (
	"cmp"
	"slices"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// =============================================================================
// Latency Buckets
// =============================================================================

// LatencyBucket represents a latency histogram bucket.
type LatencyBucket string

const (
	BucketS1   LatencyBucket = "s1"   // <1s
	BucketS5   LatencyBucket = "s5"   // 1-5s
	BucketS30  LatencyBucket = "s30"  // 5-30s
	BucketS120 LatencyBucket = "s120" // 30-120s
	BucketSlow LatencyBucket = "slow" // >=120s
)

// LatencyBuckets lists the buckets in ascending order.
var LatencyBuckets = []LatencyBucket{BucketS1, BucketS5, BucketS30, BucketS120, BucketSlow}

// LatencyToBucket converts a duration to its histogram bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	switch {
	case d < time.Second:
		return BucketS1
	case d < 5*time.Second:
		return BucketS5
	case d < 30*time.Second:
		return BucketS30
	case d < 120*time.Second:
		return BucketS120
	default:
		return BucketSlow
	}
}

// =============================================================================
// Solve Event
// =============================================================================

// SolveEvent is one finished solve.
type SolveEvent struct {
	RunID     string
	Start     string
	Goal      string
	Tolerance int
	Status    string // terminal search state, e.g. "done", "not_reachable"
	Distance  int    // -1 when the goal was not reached
	Paths     int
	Expanded  int
	CacheHits int
	Latency   time.Duration
	Timestamp time.Time
}

// Reached reports whether the solve found at least one path.
func (e SolveEvent) Reached() bool {
	return e.Paths > 0
}

// Pair is a start/goal query that did not reach its goal.
type Pair struct {
	Start     string    `json:"start"`
	Goal      string    `json:"goal"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// =============================================================================
// Circular Buffer
// =============================================================================

// CircularBuffer is a fixed-capacity FIFO buffer.
type CircularBuffer[T any] struct {
	items    []T
	head     int // Next write position
	size     int
	capacity int
	mu       sync.RWMutex
}

// NewCircularBuffer creates a new circular buffer with the given capacity.
func NewCircularBuffer[T any](capacity int) *CircularBuffer[T] {
	if capacity <= 0 {
		capacity = 100
	}
	return &CircularBuffer[T]{
		items:    make([]T, capacity),
		capacity: capacity,
	}
}

// Add adds an item to the buffer. If full, the oldest item is evicted.
func (b *CircularBuffer[T]) Add(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items[b.head] = item
	b.head = (b.head + 1) % b.capacity
	if b.size < b.capacity {
		b.size++
	}
}

// Items returns all items in the buffer in FIFO order (oldest first).
func (b *CircularBuffer[T]) Items() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.size == 0 {
		return []T{}
	}

	result := make([]T, b.size)
	if b.size < b.capacity {
		copy(result, b.items[:b.size])
	} else {
		// Full: oldest item is at head
		copy(result, b.items[b.head:])
		copy(result[b.capacity-b.head:], b.items[:b.head])
	}
	return result
}

// Size returns the current number of items in the buffer.
func (b *CircularBuffer[T]) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// Clear removes all items from the buffer.
func (b *CircularBuffer[T]) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.head = 0
	b.size = 0
}

// =============================================================================
// Snapshot
// =============================================================================

// EndpointCount is a node id and how often it was used as a start or goal.
type EndpointCount struct {
	ID    string `json:"id"`
	Count int64  `json:"count"`
}

// SolveMetricsSnapshot is an immutable view of solve metrics.
type SolveMetricsSnapshot struct {
	StatusCounts        map[string]int64        `json:"status_counts"`
	TopEndpoints        []EndpointCount         `json:"top_endpoints"`
	Unreachable         []Pair                  `json:"unreachable"`
	LatencyDistribution map[LatencyBucket]int64 `json:"latency_distribution"`
	TotalSolves         int64                   `json:"total_solves"`
	ReachedCount        int64                   `json:"reached_count"`
	TotalExpanded       int64                   `json:"total_expanded"`
	TotalCacheHits      int64                   `json:"total_cache_hits"`
	Since               time.Time               `json:"since"`
}

// ReachedPercentage returns the percentage of solves that found a path.
func (s *SolveMetricsSnapshot) ReachedPercentage() float64 {
	if s.TotalSolves == 0 {
		return 0
	}
	return float64(s.ReachedCount) / float64(s.TotalSolves) * 100
}

// CacheHitRate returns cache hits over all node expansions, in [0, 1].
func (s *SolveMetricsSnapshot) CacheHitRate() float64 {
	total := s.TotalExpanded + s.TotalCacheHits
	if total == 0 {
		return 0
	}
	return float64(s.TotalCacheHits) / float64(total)
}

// =============================================================================
// Store (Interface)
// =============================================================================

// SolveMetricsStore defines persistence operations for solve metrics.
type SolveMetricsStore interface {
	// AddRun records one solve.
	AddRun(event SolveEvent) error

	// SaveStatusCounts upserts daily status counts.
	SaveStatusCounts(date string, counts map[string]int64) error

	// GetStatusCounts retrieves counts for a date range.
	GetStatusCounts(from, to string) (map[string]int64, error)

	// UpsertEndpointCounts updates endpoint frequency counts.
	UpsertEndpointCounts(counts map[string]int64) error

	// GetTopEndpoints retrieves the top N endpoints by frequency.
	GetTopEndpoints(limit int) ([]EndpointCount, error)

	// AddUnreachable records a pair that did not reach its goal.
	AddUnreachable(p Pair) error

	// GetUnreachable retrieves recent unreachable pairs, newest first.
	GetUnreachable(limit int) ([]Pair, error)

	// SaveLatencyCounts upserts daily latency histogram counts.
	SaveLatencyCounts(date string, counts map[LatencyBucket]int64) error

	// GetLatencyCounts retrieves latency distribution for a date range.
	GetLatencyCounts(from, to string) (map[LatencyBucket]int64, error)

	// GetTotals returns run count, reached count, expansions and cache hits.
	GetTotals() (Totals, error)

	// Close releases resources.
	Close() error
}

// Totals aggregates the runs table.
type Totals struct {
	Solves    int64
	Reached   int64
	Expanded  int64
	CacheHits int64
	First     time.Time
}

// =============================================================================
// Configuration
// =============================================================================

// SolveMetricsConfig configures the collector.
type SolveMetricsConfig struct {
	TopEndpointsCapacity int           // Max endpoints to track (default: 100)
	UnreachableCapacity  int           // Max unreachable pairs to keep (default: 100)
	FlushInterval        time.Duration // Auto-flush period (0 = flush only on Close)
}

// DefaultSolveMetricsConfig returns sensible defaults.
func DefaultSolveMetricsConfig() SolveMetricsConfig {
	return SolveMetricsConfig{
		TopEndpointsCapacity: 100,
		UnreachableCapacity:  100,
	}
}

// =============================================================================
// Solve Metrics
// =============================================================================

// SolveMetrics collects solve telemetry. Safe for concurrent use.
type SolveMetrics struct {
	mu sync.Mutex

	statusCounts   map[string]int64
	endpoints      *lru.Cache[string, int64]
	unreachable    *CircularBuffer[Pair]
	latencies      map[LatencyBucket]int64
	totalSolves    int64
	reachedCount   int64
	totalExpanded  int64
	totalCacheHits int64
	startTime      time.Time

	// Deltas not yet flushed
	pending pendingDeltas

	store       SolveMetricsStore
	flushTicker *time.Ticker
	stopCh      chan struct{}
	closed      bool
}

type pendingDeltas struct {
	runs      []SolveEvent
	status    map[string]int64
	endpoints map[string]int64
	latencies map[LatencyBucket]int64
}

func newPending() pendingDeltas {
	return pendingDeltas{
		status:    make(map[string]int64),
		endpoints: make(map[string]int64),
		latencies: make(map[LatencyBucket]int64),
	}
}

// NewSolveMetrics creates a collector with default configuration.
// If store is nil, metrics are only kept in memory.
func NewSolveMetrics(store SolveMetricsStore) *SolveMetrics {
	return NewSolveMetricsWithConfig(store, DefaultSolveMetricsConfig())
}

// NewSolveMetricsWithConfig creates a collector with custom configuration.
func NewSolveMetricsWithConfig(store SolveMetricsStore, cfg SolveMetricsConfig) *SolveMetrics {
	if cfg.TopEndpointsCapacity <= 0 {
		cfg.TopEndpointsCapacity = 100
	}
	if cfg.UnreachableCapacity <= 0 {
		cfg.UnreachableCapacity = 100
	}

	endpoints, _ := lru.New[string, int64](cfg.TopEndpointsCapacity)

	m := &SolveMetrics{
		statusCounts: make(map[string]int64),
		endpoints:    endpoints,
		unreachable:  NewCircularBuffer[Pair](cfg.UnreachableCapacity),
		latencies:    make(map[LatencyBucket]int64),
		startTime:    time.Now(),
		pending:      newPending(),
		store:        store,
		stopCh:       make(chan struct{}),
	}

	if cfg.FlushInterval > 0 && store != nil {
		m.flushTicker = time.NewTicker(cfg.FlushInterval)
		go m.flushLoop()
	}
	return m
}

func (m *SolveMetrics) flushLoop() {
	for {
		select {
		case <-m.flushTicker.C:
			_ = m.Flush()
		case <-m.stopCh:
			return
		}
	}
}

// Record captures one finished solve.
func (m *SolveMetrics) Record(event SolveEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}

	m.totalSolves++
	m.totalExpanded += int64(event.Expanded)
	m.totalCacheHits += int64(event.CacheHits)
	m.statusCounts[event.Status]++
	m.pending.status[event.Status]++

	for _, id := range []string{event.Start, event.Goal} {
		if id == "" {
			continue
		}
		count, _ := m.endpoints.Get(id)
		m.endpoints.Add(id, count+1)
		m.pending.endpoints[id]++
	}

	if event.Reached() {
		m.reachedCount++
	} else {
		m.unreachable.Add(Pair{Start: event.Start, Goal: event.Goal, Status: event.Status, Timestamp: event.Timestamp})
	}

	bucket := LatencyToBucket(event.Latency)
	m.latencies[bucket]++
	m.pending.latencies[bucket]++

	m.pending.runs = append(m.pending.runs, event)
}

// Snapshot returns the in-memory metrics.
func (m *SolveMetrics) Snapshot() *SolveMetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	statusCounts := make(map[string]int64, len(m.statusCounts))
	for k, v := range m.statusCounts {
		statusCounts[k] = v
	}
	latencies := make(map[LatencyBucket]int64, len(m.latencies))
	for k, v := range m.latencies {
		latencies[k] = v
	}

	var top []EndpointCount
	for _, key := range m.endpoints.Keys() {
		if count, ok := m.endpoints.Peek(key); ok {
			top = append(top, EndpointCount{ID: key, Count: count})
		}
	}
	sortEndpoints(top)

	return &SolveMetricsSnapshot{
		StatusCounts:        statusCounts,
		TopEndpoints:        top,
		Unreachable:         m.unreachable.Items(),
		LatencyDistribution: latencies,
		TotalSolves:         m.totalSolves,
		ReachedCount:        m.reachedCount,
		TotalExpanded:       m.totalExpanded,
		TotalCacheHits:      m.totalCacheHits,
		Since:               m.startTime,
	}
}

func sortEndpoints(top []EndpointCount) {
	slices.SortFunc(top, func(a, b EndpointCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// Flush persists metrics recorded since the last flush.
// Safe to call even if no store is configured.
func (m *SolveMetrics) Flush() error {
	if m.store == nil {
		return nil
	}

	m.mu.Lock()
	p := m.pending
	m.pending = newPending()
	m.mu.Unlock()

	if len(p.runs) == 0 {
		return nil
	}

	if err := m.persist(p); err != nil {
		// Put the deltas back so the next flush retries them.
		m.mu.Lock()
		m.pending = mergePending(p, m.pending)
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *SolveMetrics) persist(p pendingDeltas) error {
	today := time.Now().Format("2006-01-02")

	for _, run := range p.runs {
		if err := m.store.AddRun(run); err != nil {
			return err
		}
		if !run.Reached() {
			if err := m.store.AddUnreachable(Pair{
				Start: run.Start, Goal: run.Goal, Status: run.Status, Timestamp: run.Timestamp,
			}); err != nil {
				return err
			}
		}
	}
	if err := m.store.SaveStatusCounts(today, p.status); err != nil {
		return err
	}
	if err := m.store.UpsertEndpointCounts(p.endpoints); err != nil {
		return err
	}
	return m.store.SaveLatencyCounts(today, p.latencies)
}

func mergePending(a, b pendingDeltas) pendingDeltas {
	out := newPending()
	out.runs = append(append(out.runs, a.runs...), b.runs...)
	for _, src := range []pendingDeltas{a, b} {
		for k, v := range src.status {
			out.status[k] += v
		}
		for k, v := range src.endpoints {
			out.endpoints[k] += v
		}
		for k, v := range src.latencies {
			out.latencies[k] += v
		}
	}
	return out
}

// Close flushes and stops the collector.
func (m *SolveMetrics) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	if m.flushTicker != nil {
		m.flushTicker.Stop()
		close(m.stopCh)
	}
	return m.Flush()
}

// =============================================================================
// Persisted Summary
// =============================================================================

// LoadSnapshot builds a snapshot from everything persisted in store, for
// reporting across process runs.
func LoadSnapshot(store SolveMetricsStore, limit int) (*SolveMetricsSnapshot, error) {
	const allTime = "0000-01-01"
	const farFuture = "9999-12-31"

	status, err := store.GetStatusCounts(allTime, farFuture)
	if err != nil {
		return nil, err
	}
	top, err := store.GetTopEndpoints(limit)
	if err != nil {
		return nil, err
	}
	unreachable, err := store.GetUnreachable(limit)
	if err != nil {
		return nil, err
	}
	latencies, err := store.GetLatencyCounts(allTime, farFuture)
	if err != nil {
		return nil, err
	}
	totals, err := store.GetTotals()
	if err != nil {
		return nil, err
	}

	if top == nil {
		top = []EndpointCount{}
	}
	if unreachable == nil {
		unreachable = []Pair{}
	}
	return &SolveMetricsSnapshot{
		StatusCounts:        status,
		TopEndpoints:        top,
		Unreachable:         unreachable,
		LatencyDistribution: latencies,
		TotalSolves:         totals.Solves,
		ReachedCount:        totals.Reached,
		TotalExpanded:       totals.Expanded,
		TotalCacheHits:      totals.CacheHits,
		Since:               totals.First,
	}, nil
}

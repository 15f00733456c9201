package telemetry

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// CircularBuffer Tests
// =============================================================================

func TestCircularBuffer_MaintainsCapacity(t *testing.T) {
	buf := NewCircularBuffer[string](3)

	for _, s := range []string{"a", "b", "c", "d", "e"} {
		buf.Add(s)
	}

	assert.Equal(t, 3, buf.Size())
	assert.Equal(t, []string{"c", "d", "e"}, buf.Items())
}

func TestCircularBuffer_EmptyAndClear(t *testing.T) {
	buf := NewCircularBuffer[int](0)

	items := buf.Items()
	assert.NotNil(t, items)
	assert.Empty(t, items)

	buf.Add(1)
	buf.Clear()
	assert.Equal(t, 0, buf.Size())
}

// =============================================================================
// LatencyBucket Tests
// =============================================================================

func TestLatencyToBucket(t *testing.T) {
	tests := []struct {
		latency  time.Duration
		expected LatencyBucket
	}{
		{10 * time.Millisecond, BucketS1},
		{999 * time.Millisecond, BucketS1},
		{time.Second, BucketS5},
		{4 * time.Second, BucketS5},
		{5 * time.Second, BucketS30},
		{30 * time.Second, BucketS120},
		{119 * time.Second, BucketS120},
		{2 * time.Minute, BucketSlow},
		{time.Hour, BucketSlow},
	}

	for _, tt := range tests {
		t.Run(tt.latency.String(), func(t *testing.T) {
			assert.Equal(t, tt.expected, LatencyToBucket(tt.latency))
		})
	}
}

// =============================================================================
// SolveMetrics Tests
// =============================================================================

func reachedEvent(id, start, goal string) SolveEvent {
	return SolveEvent{RunID: id, Start: start, Goal: goal, Status: "done", Distance: 3, Paths: 1,
		Expanded: 5, CacheHits: 5, Latency: 200 * time.Millisecond}
}

func TestSolveMetrics_Record(t *testing.T) {
	m := NewSolveMetrics(nil)
	t.Cleanup(func() { _ = m.Close() })

	// Given: two reached solves and one miss
	m.Record(reachedEvent("r1", "mozart", "bach"))
	m.Record(reachedEvent("r2", "mozart", "adele"))
	m.Record(SolveEvent{RunID: "r3", Start: "x", Goal: "y", Status: "not_reachable", Distance: -1,
		Expanded: 2, Latency: 10 * time.Second})

	// When
	snap := m.Snapshot()

	// Then
	assert.Equal(t, int64(3), snap.TotalSolves)
	assert.Equal(t, int64(2), snap.ReachedCount)
	assert.InDelta(t, 66.67, snap.ReachedPercentage(), 0.01)
	assert.Equal(t, int64(2), snap.StatusCounts["done"])
	assert.Equal(t, int64(1), snap.StatusCounts["not_reachable"])
	assert.Equal(t, EndpointCount{ID: "mozart", Count: 2}, snap.TopEndpoints[0])
	require.Len(t, snap.Unreachable, 1)
	assert.Equal(t, "x", snap.Unreachable[0].Start)
	assert.Equal(t, int64(2), snap.LatencyDistribution[BucketS1])
	assert.Equal(t, int64(1), snap.LatencyDistribution[BucketS30])
	assert.InDelta(t, 10.0/22.0, snap.CacheHitRate(), 1e-9)
}

func TestSolveMetrics_EmptySnapshot(t *testing.T) {
	snap := NewSolveMetrics(nil).Snapshot()

	assert.Equal(t, 0.0, snap.ReachedPercentage())
	assert.Equal(t, 0.0, snap.CacheHitRate())
	assert.Empty(t, snap.TopEndpoints)
}

func TestSolveMetrics_ConcurrentRecord(t *testing.T) {
	m := NewSolveMetrics(nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				m.Record(reachedEvent("", "a", "b"))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1000), m.Snapshot().TotalSolves)
}

func TestSolveMetrics_FlushPersistsDeltasOnce(t *testing.T) {
	store := newTestMetricsStore(t)
	m := NewSolveMetrics(store)

	// Given: one recorded solve flushed twice
	m.Record(reachedEvent("r1", "mozart", "bach"))
	require.NoError(t, m.Flush())
	require.NoError(t, m.Flush())

	// And: another one flushed by Close
	m.Record(SolveEvent{RunID: "r2", Start: "mozart", Goal: "nobody", Status: "not_reachable", Distance: -1})
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	// When
	snap, err := LoadSnapshot(store, 10)
	require.NoError(t, err)

	// Then: nothing was double counted
	assert.Equal(t, int64(2), snap.TotalSolves)
	assert.Equal(t, int64(1), snap.ReachedCount)
	assert.Equal(t, int64(1), snap.StatusCounts["done"])
	assert.Equal(t, int64(1), snap.StatusCounts["not_reachable"])
	assert.Equal(t, EndpointCount{ID: "mozart", Count: 2}, snap.TopEndpoints[0])
	require.Len(t, snap.Unreachable, 1)
	assert.Equal(t, "nobody", snap.Unreachable[0].Goal)
	assert.Equal(t, int64(2), snap.LatencyDistribution[BucketS1])
}

func TestSolveMetrics_RecordAfterCloseIgnored(t *testing.T) {
	m := NewSolveMetrics(nil)
	require.NoError(t, m.Close())

	m.Record(reachedEvent("r1", "a", "b"))

	assert.Equal(t, int64(0), m.Snapshot().TotalSolves)
}

type failingStore struct {
	SolveMetricsStore
	fail bool
	runs []SolveEvent
}

func (s *failingStore) AddRun(e SolveEvent) error {
	if s.fail {
		return errors.New("disk full")
	}
	s.runs = append(s.runs, e)
	return nil
}

func (s *failingStore) AddUnreachable(Pair) error { return nil }
func (s *failingStore) SaveStatusCounts(string, map[string]int64) error { return nil }
func (s *failingStore) UpsertEndpointCounts(map[string]int64) error { return nil }
func (s *failingStore) SaveLatencyCounts(string, map[LatencyBucket]int64) error { return nil }

func TestSolveMetrics_FailedFlushRetried(t *testing.T) {
	store := &failingStore{fail: true}
	m := NewSolveMetrics(store)

	m.Record(reachedEvent("r1", "a", "b"))
	require.Error(t, m.Flush())

	store.fail = false
	m.Record(reachedEvent("r2", "a", "c"))
	require.NoError(t, m.Flush())

	require.Len(t, store.runs, 2)
	assert.Equal(t, "r1", store.runs[0].RunID)
	assert.Equal(t, "r2", store.runs[1].RunID)
}

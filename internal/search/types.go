// Package search finds every shortest and near-shortest path between two
// nodes of a lazily discovered graph.
//
// The engine runs a breadth-first search over a bounded frontier. Neighbor
// fetches run on a bounded worker pool; all score and frontier mutation stays
// on the engine loop. Once the goal's distance is final, paths within the
// tolerance are enumerated by walking parent links back from the goal.
package search

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// State is the engine's lifecycle state.
type State int

const (
	StateRunning State = iota
	StateConverged
	StateEnumerating
	StateDone
	StateFailed
	StateNotReachable
	StateCancelled
)

// String returns the state name used in logs and output.
func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateConverged:
		return "converged"
	case StateEnumerating:
		return "enumerating"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	case StateNotReachable:
		return "not_reachable"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	for st := StateRunning; st <= StateCancelled; st++ {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown search state %q", text)
}

// Terminal reports whether the state ends a search.
func (s State) Terminal() bool {
	switch s {
	case StateDone, StateFailed, StateNotReachable, StateCancelled:
		return true
	}
	return false
}

// Path is a start-to-goal sequence of node ids.
type Path []string

// String joins the ids with " -> ".
func (p Path) String() string {
	return strings.Join(p, " -> ")
}

// Buckets groups paths by node count.
type Buckets map[int][]Path

// Lengths returns the bucket keys in ascending order.
func (b Buckets) Lengths() []int {
	keys := make([]int, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// Shortest returns the smallest path length, or 0 when there are no paths.
func (b Buckets) Shortest() int {
	keys := b.Lengths()
	if len(keys) == 0 {
		return 0
	}
	return keys[0]
}

// Count returns the total number of paths.
func (b Buckets) Count() int {
	n := 0
	for _, paths := range b {
		n += len(paths)
	}
	return n
}

// Stats describes the work a search did.
type Stats struct {
	Expanded      int           `json:"expanded"`       // provider fetches that completed
	CacheHits     int           `json:"cache_hits"`     // expansions served from known children
	FetchFailures int           `json:"fetch_failures"` // absorbed transient failures
	Discovered    int           `json:"discovered"`     // nodes enqueued this generation
	MaxFrontier   int           `json:"max_frontier"`
	Requeued      int           `json:"requeued"` // batches held back for space
	Dropped       int           `json:"dropped"`  // heads past the bound removed for held-back batches
	Duration      time.Duration `json:"duration"`
}

// Result is the outcome of one search.
type Result struct {
	RunID     string  `json:"run_id,omitempty"`
	Start     string  `json:"start"`
	Goal      string  `json:"goal"`
	Tolerance int     `json:"tolerance"`
	Status    State   `json:"status"`
	Distance  int     `json:"distance"` // goal score in edges, -1 when unresolved
	Buckets   Buckets `json:"buckets,omitempty"`
	Stats     Stats   `json:"stats"`
}

// Found reports whether at least one path was enumerated.
func (r *Result) Found() bool {
	return r != nil && r.Status == StateDone && r.Buckets.Count() > 0
}

// Converged reports whether the search met its bound and enumerated its
// paths. A converged search ends with StateDone.
func (r *Result) Converged() bool {
	return r != nil && r.Status == StateDone
}

// Progress is a point-in-time view of a running search.
type Progress struct {
	State         State
	Expanded      int
	CacheHits     int
	Discovered    int
	InFlight      int
	FrontierLen   int
	FrontierCap   int
	GoalDistance  int // -1 until the goal is reached
	CurrentScore  int
	CurrentNodeID string
}

package mcp

import (
	"time"

	"github.com/Aman-CERP/pathmap/internal/async"
	"github.com/Aman-CERP/pathmap/internal/graph"
	"github.com/Aman-CERP/pathmap/internal/search"
	"github.com/Aman-CERP/pathmap/internal/telemetry"
)

// FindPathsInput defines the input schema for the find_paths tool.
type FindPathsInput struct {
	Start     string `json:"start" jsonschema:"artist to start from, e.g. 'the beatles'"`
	Goal      string `json:"goal" jsonschema:"artist to reach, e.g. 'miles davis'"`
	Tolerance *int   `json:"tolerance,omitempty" jsonschema:"extra hops allowed beyond the shortest path, 0-8, default from config"`
	MaxPaths  int    `json:"max_paths,omitempty" jsonschema:"maximum paths listed per length, default 20"`
}

// FindPathsOutput defines the output schema for the find_paths tool.
type FindPathsOutput struct {
	RunID     string      `json:"run_id"`
	Start     string      `json:"start" jsonschema:"start id as resolved by the provider"`
	Goal      string      `json:"goal" jsonschema:"goal id as resolved by the provider"`
	Status    string      `json:"status" jsonschema:"done, not_reachable, failed or cancelled"`
	Distance  int         `json:"distance" jsonschema:"edges on the shortest path, -1 if unreachable"`
	Tolerance int         `json:"tolerance"`
	Groups    []PathGroup `json:"groups" jsonschema:"paths grouped by node count, shortest first"`
	Stats     RunStats    `json:"stats"`
}

// PathGroup is the set of paths sharing one length.
type PathGroup struct {
	Length    int        `json:"length" jsonschema:"number of nodes in each path"`
	OffBy     int        `json:"off_by" jsonschema:"extra hops compared with the shortest paths"`
	Count     int        `json:"count" jsonschema:"number of paths of this length"`
	Paths     [][]string `json:"paths"`
	Truncated bool       `json:"truncated,omitempty" jsonschema:"true if more paths exist than are listed"`
}

// RunStats summarises the work done by one search.
type RunStats struct {
	Expanded      int   `json:"expanded"`
	CacheHits     int   `json:"cache_hits"`
	FetchFailures int   `json:"fetch_failures"`
	Discovered    int   `json:"discovered"`
	DurationMs    int64 `json:"duration_ms"`
}

// NeighborsInput defines the input schema for the neighbors tool.
type NeighborsInput struct {
	ID string `json:"id" jsonschema:"artist id or display name"`
}

// NeighborsOutput defines the output schema for the neighbors tool.
type NeighborsOutput struct {
	ID        string   `json:"id"`
	Neighbors []string `json:"neighbors"`
	Count     int      `json:"count"`
}

// GraphStatsInput defines the input schema for the graph_stats tool (no parameters).
type GraphStatsInput struct{}

// GraphStatsOutput defines the output schema for the graph_stats tool.
type GraphStatsOutput struct {
	Graph     graph.Stats                     `json:"graph"`
	Engine    EngineInfo                      `json:"engine"`
	Provider  ProviderInfo                    `json:"provider"`
	Store     StoreInfo                       `json:"store"`
	Autosave  *AutosaveInfo  `json:"autosave,omitempty" jsonschema:"background save state, present while serving"`
	Telemetry *TelemetryInfo `json:"telemetry,omitempty" jsonschema:"solve history, present when telemetry is enabled"`
}

// AutosaveInfo describes background graph saves.
type AutosaveInfo struct {
	State          string `json:"state" jsonschema:"idle, saving or error"`
	Saves          int    `json:"saves"`
	Failures       int    `json:"failures"`
	Pending        bool   `json:"pending" jsonschema:"true if the graph changed since the last save"`
	LastSave       string `json:"last_save,omitempty" jsonschema:"RFC3339 time of the last successful save"`
	LastDurationMs int64  `json:"last_duration_ms"`
	ErrorMessage   string `json:"error_message,omitempty"`
}

// TelemetryInfo summarises solve history for this session.
type TelemetryInfo struct {
	TotalSolves  int64             `json:"total_solves"`
	ReachedPct   float64           `json:"reached_pct"`
	CacheHitRate float64           `json:"cache_hit_rate" jsonschema:"cached expansions over all expansions, 0-1"`
	StatusCounts map[string]int64  `json:"status_counts"`
	TopEndpoints []EndpointInfo    `json:"top_endpoints"`
	Unreachable  []UnreachableInfo `json:"unreachable" jsonschema:"recent pairs with no path, newest first"`
}

// EndpointInfo is an artist and how often it was queried.
type EndpointInfo struct {
	ID    string `json:"id"`
	Count int64  `json:"count"`
}

// UnreachableInfo is a query that found no path.
type UnreachableInfo struct {
	Start  string `json:"start"`
	Goal   string `json:"goal"`
	Status string `json:"status"`
	At     string `json:"at"`
}

// EngineInfo describes the search engine settings.
type EngineInfo struct {
	Workers          int    `json:"workers"`
	FrontierCapacity int    `json:"frontier_capacity"`
	CapacityPolicy   string `json:"capacity_policy"`
}

// ProviderInfo describes where neighbors come from.
type ProviderInfo struct {
	Kind    string `json:"kind"`
	BaseURL string `json:"base_url,omitempty"`
}

// StoreInfo describes graph persistence.
type StoreInfo struct {
	Backend string `json:"backend"`
	Path    string `json:"path"`
}

// ToAutosaveInfo converts a save status snapshot.
func ToAutosaveInfo(snap async.SaveSnapshot) *AutosaveInfo {
	info := &AutosaveInfo{
		State:          snap.State,
		Saves:          snap.Saves,
		Failures:       snap.Failures,
		Pending:        snap.Pending,
		LastDurationMs: snap.LastDurationMs,
		ErrorMessage:   snap.ErrorMessage,
	}
	if !snap.LastSave.IsZero() {
		info.LastSave = snap.LastSave.Format(time.RFC3339)
	}
	return info
}

// ToTelemetryInfo converts a metrics snapshot, keeping at most limit
// endpoints and unreachable pairs.
func ToTelemetryInfo(snap *telemetry.SolveMetricsSnapshot, limit int) *TelemetryInfo {
	info := &TelemetryInfo{
		TotalSolves:  snap.TotalSolves,
		ReachedPct:   snap.ReachedPercentage(),
		CacheHitRate: snap.CacheHitRate(),
		StatusCounts: make(map[string]int64, len(snap.StatusCounts)),
		TopEndpoints: []EndpointInfo{},
		Unreachable:  []UnreachableInfo{},
	}
	for k, v := range snap.StatusCounts {
		info.StatusCounts[k] = v
	}
	for i, e := range snap.TopEndpoints {
		if i == limit {
			break
		}
		info.TopEndpoints = append(info.TopEndpoints, EndpointInfo{ID: e.ID, Count: e.Count})
	}
	for i, p := range snap.Unreachable {
		if i == limit {
			break
		}
		info.Unreachable = append(info.Unreachable, UnreachableInfo{
			Start:  p.Start,
			Goal:   p.Goal,
			Status: p.Status,
			At:     p.Timestamp.Format(time.RFC3339),
		})
	}
	return info
}

// ToFindPathsOutput converts a search result, listing at most maxPaths
// paths per length.
func ToFindPathsOutput(res *search.Result, maxPaths int) FindPathsOutput {
	out := FindPathsOutput{
		RunID:     res.RunID,
		Start:     res.Start,
		Goal:      res.Goal,
		Status:    res.Status.String(),
		Distance:  res.Distance,
		Tolerance: res.Tolerance,
		Groups:    []PathGroup{},
		Stats: RunStats{
			Expanded:      res.Stats.Expanded,
			CacheHits:     res.Stats.CacheHits,
			FetchFailures: res.Stats.FetchFailures,
			Discovered:    res.Stats.Discovered,
			DurationMs:    res.Stats.Duration.Milliseconds(),
		},
	}

	shortest := res.Buckets.Shortest()
	for _, n := range res.Buckets.Lengths() {
		paths := res.Buckets[n]
		g := PathGroup{
			Length: n,
			OffBy:  n - shortest,
			Count:  len(paths),
			Paths:  make([][]string, 0, min(len(paths), maxPaths)),
		}
		for i, p := range paths {
			if i == maxPaths {
				g.Truncated = true
				break
			}
			g.Paths = append(g.Paths, append([]string(nil), p...))
		}
		out.Groups = append(out.Groups, g)
	}
	return out
}

// clampLimit returns limit within [lo, hi], or def when limit is not positive.
func clampLimit(limit, def, lo, hi int) int {
	if limit <= 0 {
		return def
	}
	return min(max(limit, lo), hi)
}

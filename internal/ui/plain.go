package ui

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Aman-CERP/pathmap/internal/search"
)

// plainInterval spaces out repeated expansion lines.
const plainInterval = time.Second

// PlainRenderer outputs plain text progress (for CI/pipes).
// Phase changes are always printed; expansion updates at most once per
// interval.
type PlainRenderer struct {
	mu       sync.Mutex
	out      io.Writer
	clock    func() time.Time
	interval time.Duration
	phase    Phase
	lastLine time.Time
	query    QueryEvent
}

// NewPlainRenderer creates a plain text renderer.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	return &PlainRenderer{
		out:      cfg.Output,
		clock:    time.Now,
		interval: plainInterval,
	}
}

// Start implements Renderer.
func (r *PlainRenderer) Start(ctx context.Context) error {
	return nil
}

// BeginQuery implements Renderer.
func (r *PlainRenderer) BeginQuery(event QueryEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.query = event
	r.phase = PhaseExpanding
	r.lastLine = time.Time{}

	if event.Total > 1 {
		_, _ = fmt.Fprintf(r.out, "[QUERY] %d/%d - %s -> %s\n", event.Index, event.Total, event.Start, event.Goal)
	} else {
		_, _ = fmt.Fprintf(r.out, "[QUERY] %s -> %s\n", event.Start, event.Goal)
	}
}

// UpdateProgress implements Renderer.
func (r *PlainRenderer) UpdateProgress(p search.Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()

	phase := PhaseOf(p.State)
	if phase == PhaseComplete {
		// EndQuery reports the outcome.
		return
	}

	now := r.clock()
	if phase == r.phase && !r.lastLine.IsZero() && now.Sub(r.lastLine) < r.interval {
		return
	}
	r.phase = phase
	r.lastLine = now

	switch phase {
	case PhaseExpanding:
		goal := "-"
		if p.GoalDistance >= 0 {
			goal = fmt.Sprint(p.GoalDistance)
		}
		_, _ = fmt.Fprintf(r.out, "[%s] expanded=%d cached=%d frontier=%d/%d inflight=%d goal=%s\n",
			phase.Icon(), p.Expanded, p.CacheHits, p.FrontierLen, p.FrontierCap, p.InFlight, goal)
	case PhaseConverged:
		_, _ = fmt.Fprintf(r.out, "[%s] goal at distance %d after %d expansions\n",
			phase.Icon(), p.GoalDistance, p.Expanded)
	case PhaseEnumerating:
		_, _ = fmt.Fprintf(r.out, "[%s] collecting paths\n", phase.Icon())
	}
}

// EndQuery implements Renderer.
func (r *PlainRenderer) EndQuery(res *search.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.phase = PhaseComplete
	if res == nil {
		return
	}
	if res.Found() {
		_, _ = fmt.Fprintf(r.out, "[%s] %s -> %s: %d paths, shortest %d (%d expanded in %s)\n",
			PhaseComplete.Icon(), res.Start, res.Goal, res.Buckets.Count(), res.Buckets.Shortest(),
			res.Stats.Expanded, res.Stats.Duration.Round(time.Millisecond))
		return
	}
	_, _ = fmt.Fprintf(r.out, "[%s] %s -> %s: %s (%d expanded in %s)\n",
		PhaseComplete.Icon(), res.Start, res.Goal, res.Status,
		res.Stats.Expanded, res.Stats.Duration.Round(time.Millisecond))
}

// AddError implements Renderer.
func (r *PlainRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prefix := "ERROR"
	if event.IsWarn {
		prefix = "WARN"
	}
	if event.Query != "" {
		_, _ = fmt.Fprintf(r.out, "%s: %s: %v\n", prefix, event.Query, event.Err)
	} else {
		_, _ = fmt.Fprintf(r.out, "%s: %v\n", prefix, event.Err)
	}
}

// Complete implements Renderer.
func (r *PlainRenderer) Complete(s Summary) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, _ = fmt.Fprintf(r.out, "Complete: %d queries, %d reached in %s (%d expanded, %d cached)",
		s.Queries, s.Reached, s.Duration.Round(100*time.Millisecond), s.Expanded, s.CacheHits)
	if s.Failed > 0 {
		_, _ = fmt.Fprintf(r.out, " (%d failed)", s.Failed)
	}
	_, _ = fmt.Fprintln(r.out)
}

// Stop implements Renderer.
func (r *PlainRenderer) Stop() error {
	return nil
}

var _ Renderer = (*PlainRenderer)(nil)

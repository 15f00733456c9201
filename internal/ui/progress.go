package ui

import (
	"sync"
	"time"

	"github.com/Aman-CERP/pathmap/internal/search"
)

// speedInterval is the minimum spacing between expansion-rate samples.
const speedInterval = 500 * time.Millisecond

// ProgressTracker accumulates engine progress across the queries of a run.
// It is safe for concurrent use.
type ProgressTracker struct {
	mu         sync.RWMutex
	clock      func() time.Time
	query      QueryEvent
	latest     search.Progress
	phase      Phase
	startTime  time.Time
	queryStart time.Time
	completed  int
	reached    int
	errors     []ErrorEvent
	warnings   []ErrorEvent

	lastExpanded  int
	lastSpeedCalc time.Time
	currentSpeed  float64
	avgSpeed      float64
	peakSpeed     float64
	speedSamples  int
	sparkline     *Sparkline
}

// SpeedStats contains expansion rates in nodes per second.
type SpeedStats struct {
	Current float64
	Avg     float64
	Peak    float64
}

// ProgressStats is a snapshot of the tracker.
type ProgressStats struct {
	Query        QueryEvent
	Phase        Phase
	Progress     search.Progress
	Completed    int
	Reached      int
	Elapsed      time.Duration
	QueryElapsed time.Duration
	ErrorCount   int
	WarnCount    int
	Speed        SpeedStats
}

// FrontierFill returns the frontier occupancy in [0, 1].
func (s ProgressStats) FrontierFill() float64 {
	if s.Progress.FrontierCap <= 0 {
		return 0
	}
	return min(float64(s.Progress.FrontierLen)/float64(s.Progress.FrontierCap), 1)
}

// BatchFill returns the fraction of queries completed in [0, 1].
func (s ProgressStats) BatchFill() float64 {
	if s.Query.Total <= 0 {
		return 0
	}
	return min(float64(s.Completed)/float64(s.Query.Total), 1)
}

// NewProgressTracker creates a new progress tracker.
func NewProgressTracker() *ProgressTracker {
	return newProgressTracker(time.Now)
}

func newProgressTracker(clock func() time.Time) *ProgressTracker {
	now := clock()
	return &ProgressTracker{
		clock:         clock,
		startTime:     now,
		queryStart:    now,
		lastSpeedCalc: now,
		latest:        search.Progress{GoalDistance: -1},
		sparkline:     NewSparkline(60),
	}
}

// BeginQuery resets the per-query state.
func (p *ProgressTracker) BeginQuery(q QueryEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock()
	p.query = q
	p.phase = PhaseExpanding
	p.latest = search.Progress{GoalDistance: -1}
	p.queryStart = now
	p.lastExpanded = 0
	p.lastSpeedCalc = now
	p.currentSpeed = 0
	p.avgSpeed = 0
	p.peakSpeed = 0
	p.speedSamples = 0
	p.sparkline.Clear()
}

// Update records an engine progress report and samples the expansion rate.
func (p *ProgressTracker) Update(pr search.Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.latest = pr
	p.phase = PhaseOf(pr.State)

	now := p.clock()
	elapsed := now.Sub(p.lastSpeedCalc)
	if elapsed < speedInterval {
		return
	}
	if delta := pr.Expanded - p.lastExpanded; delta > 0 {
		speed := float64(delta) / elapsed.Seconds()
		p.currentSpeed = speed
		p.speedSamples++
		if p.speedSamples == 1 {
			p.avgSpeed = speed
		} else {
			p.avgSpeed = 0.2*speed + 0.8*p.avgSpeed
		}
		p.peakSpeed = max(p.peakSpeed, speed)
		p.sparkline.Add(speed)
	}
	p.lastExpanded = pr.Expanded
	p.lastSpeedCalc = now
}

// EndQuery records a finished query.
func (p *ProgressTracker) EndQuery(res *search.Result) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.completed++
	p.phase = PhaseComplete
	if res != nil && res.Found() {
		p.reached++
	}
}

// AddError records an error or warning.
func (p *ProgressTracker) AddError(event ErrorEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if event.IsWarn {
		p.warnings = append(p.warnings, event)
	} else {
		p.errors = append(p.errors, event)
	}
}

// Stats returns current statistics snapshot.
func (p *ProgressTracker) Stats() ProgressStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	now := p.clock()
	return ProgressStats{
		Query:        p.query,
		Phase:        p.phase,
		Progress:     p.latest,
		Completed:    p.completed,
		Reached:      p.reached,
		Elapsed:      now.Sub(p.startTime),
		QueryElapsed: now.Sub(p.queryStart),
		ErrorCount:   len(p.errors),
		WarnCount:    len(p.warnings),
		Speed: SpeedStats{
			Current: p.currentSpeed,
			Avg:     p.avgSpeed,
			Peak:    p.peakSpeed,
		},
	}
}

// Errors returns the recorded errors.
func (p *ProgressTracker) Errors() []ErrorEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]ErrorEvent(nil), p.errors...)
}

// Warnings returns the recorded warnings.
func (p *ProgressTracker) Warnings() []ErrorEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]ErrorEvent(nil), p.warnings...)
}

// RenderSparkline returns the expansion-rate sparkline.
func (p *ProgressTracker) RenderSparkline(width int) string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sparkline.RenderWithWidth(width)
}

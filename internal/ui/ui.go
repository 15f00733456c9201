// Package ui provides terminal UI components for solve progress and status display.
package ui

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/Aman-CERP/pathmap/internal/search"
)

// Phase is the stage of the search for one query.
type Phase int

const (
	// PhaseExpanding is the best-first expansion before the goal settles.
	PhaseExpanding Phase = iota
	// PhaseConverged means the frontier can no longer improve the goal.
	PhaseConverged
	// PhaseEnumerating is path enumeration over the expanded graph.
	PhaseEnumerating
	// PhaseComplete means the query has a result.
	PhaseComplete
)

// PhaseOf maps an engine state to its display phase.
func PhaseOf(s search.State) Phase {
	switch s {
	case search.StateRunning:
		return PhaseExpanding
	case search.StateConverged:
		return PhaseConverged
	case search.StateEnumerating:
		return PhaseEnumerating
	default:
		return PhaseComplete
	}
}

// String returns the human-readable phase name.
func (p Phase) String() string {
	switch p {
	case PhaseExpanding:
		return "Expanding"
	case PhaseConverged:
		return "Converged"
	case PhaseEnumerating:
		return "Enumerating"
	case PhaseComplete:
		return "Complete"
	default:
		return "Unknown"
	}
}

// Icon returns the short phase tag for plain text output.
func (p Phase) Icon() string {
	switch p {
	case PhaseExpanding:
		return "EXPAND"
	case PhaseConverged:
		return "CONV"
	case PhaseEnumerating:
		return "ENUM"
	case PhaseComplete:
		return "DONE"
	default:
		return "???"
	}
}

// QueryEvent announces the next query of a run.
type QueryEvent struct {
	Index int // 1-based
	Total int
	Start string
	Goal  string
}

// ErrorEvent represents a failed or degraded query.
type ErrorEvent struct {
	Query  string
	Err    error
	IsWarn bool
}

// Summary describes a finished run of one or more queries.
type Summary struct {
	Queries   int
	Reached   int
	Failed    int
	Expanded  int
	CacheHits int
	Duration  time.Duration
}

// Summarize totals results. Nil results count as failed.
func Summarize(results []*search.Result, d time.Duration) Summary {
	s := Summary{Queries: len(results), Duration: d}
	for _, r := range results {
		if r == nil {
			s.Failed++
			continue
		}
		switch {
		case r.Found():
			s.Reached++
		case r.Status == search.StateFailed || r.Status == search.StateCancelled:
			s.Failed++
		}
		s.Expanded += r.Stats.Expanded
		s.CacheHits += r.Stats.CacheHits
	}
	return s
}

// Renderer displays the progress of a solve or batch run.
//
// UpdateProgress is called from the search engine loop and must not block.
type Renderer interface {
	// Start initializes the renderer.
	Start(ctx context.Context) error

	// BeginQuery marks the start of a query.
	BeginQuery(event QueryEvent)

	// UpdateProgress records an engine progress report.
	UpdateProgress(p search.Progress)

	// EndQuery records the result of the current query.
	EndQuery(res *search.Result)

	// AddError adds an error to display.
	AddError(event ErrorEvent)

	// Complete marks rendering as complete with summary.
	Complete(summary Summary)

	// Stop stops the renderer and cleans up.
	Stop() error
}

// Config configures the UI renderer.
type Config struct {
	Output     io.Writer
	ForcePlain bool
	NoColor    bool
}

// ConfigOption is a function that modifies Config.
type ConfigOption func(*Config)

// WithForcePlain forces plain text output.
func WithForcePlain(force bool) ConfigOption {
	return func(c *Config) {
		c.ForcePlain = force
	}
}

// WithNoColor disables color output.
func WithNoColor(noColor bool) ConfigOption {
	return func(c *Config) {
		c.NoColor = noColor
	}
}

// NewConfig creates a new Config with the given output and options.
func NewConfig(output io.Writer, opts ...ConfigOption) Config {
	cfg := Config{Output: output}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// NewRenderer returns a TUI renderer for interactive terminals and a plain
// text renderer for CI, pipes, or when plain output is forced.
func NewRenderer(cfg Config) Renderer {
	if cfg.ForcePlain || !IsTTY(cfg.Output) || DetectCI() {
		return NewPlainRenderer(cfg)
	}

	tui, err := NewTUIRenderer(cfg)
	if err != nil {
		return NewPlainRenderer(cfg)
	}
	return tui
}

// IsTTY checks if output is a terminal.
func IsTTY(w io.Writer) bool {
	if w == nil {
		return false
	}
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// DetectNoColor checks if NO_COLOR environment variable is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// DetectCI checks if running in a CI environment.
func DetectCI() bool {
	for _, v := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"} {
		if _, exists := os.LookupEnv(v); exists {
			return true
		}
	}
	return false
}

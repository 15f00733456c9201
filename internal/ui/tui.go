package ui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Aman-CERP/pathmap/internal/search"
)

// TUIRenderer shows live search progress with bubbletea.
//
// Progress reports only update the tracker; the model redraws from it on a
// timer, so the engine loop never waits on the terminal.
type TUIRenderer struct {
	mu      sync.Mutex
	cfg     Config
	program *tea.Program
	model   *solveModel
	tracker *ProgressTracker
	cancel  context.CancelFunc
	started bool
	done    chan struct{}
}

// NewTUIRenderer creates a TUI renderer.
// Returns an error if the output is not a terminal.
func NewTUIRenderer(cfg Config) (*TUIRenderer, error) {
	if !IsTTY(cfg.Output) {
		return nil, fmt.Errorf("output is not a TTY")
	}

	tracker := NewProgressTracker()
	model := newSolveModel(tracker)
	if cfg.NoColor || DetectNoColor() {
		model.styles = NoColorStyles()
	}

	return &TUIRenderer{
		cfg:     cfg,
		tracker: tracker,
		model:   model,
		done:    make(chan struct{}),
	}, nil
}

// Start implements Renderer.
func (r *TUIRenderer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return nil
	}

	ctx, r.cancel = context.WithCancel(ctx)

	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if f, ok := r.cfg.Output.(*os.File); ok {
		opts = append(opts, tea.WithOutput(f))
	}

	r.program = tea.NewProgram(r.model, opts...)
	r.started = true

	go func() {
		defer close(r.done)
		_, _ = r.program.Run()
	}()

	return nil
}

// BeginQuery implements Renderer.
func (r *TUIRenderer) BeginQuery(event QueryEvent) {
	r.tracker.BeginQuery(event)
}

// UpdateProgress implements Renderer.
func (r *TUIRenderer) UpdateProgress(p search.Progress) {
	r.tracker.Update(p)
}

// EndQuery implements Renderer.
func (r *TUIRenderer) EndQuery(res *search.Result) {
	r.tracker.EndQuery(res)
}

// AddError implements Renderer.
func (r *TUIRenderer) AddError(event ErrorEvent) {
	r.tracker.AddError(event)
}

// Complete implements Renderer.
func (r *TUIRenderer) Complete(summary Summary) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.program != nil {
		r.program.Send(completeMsg(summary))
	}
}

// Stop implements Renderer.
func (r *TUIRenderer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.program == nil {
		return nil
	}
	r.program.Quit()

	// An unresponsive terminal must not hang shutdown.
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
	}
	if r.cancel != nil {
		r.cancel()
	}
	return nil
}

type completeMsg Summary
type tickMsg time.Time

// solveModel is the bubbletea model for search progress.
type solveModel struct {
	tracker     *ProgressTracker
	width       int
	quitting    bool
	complete    bool
	summary     Summary
	spinner     spinner.Model
	frontierBar progress.Model
	styles      Styles
}

func newSolveModel(tracker *ProgressTracker) *solveModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorLime))

	bar := progress.New(
		progress.WithSolidFill(ColorLime),
		progress.WithWidth(40),
		progress.WithoutPercentage(),
	)

	return &solveModel{
		tracker:     tracker,
		spinner:     s,
		frontierBar: bar,
		styles:      DefaultStyles(),
		width:       80,
	}
}

// Init implements tea.Model.
func (m *solveModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model.
func (m *solveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.frontierBar.Width = max(msg.Width-30, 20)

	case completeMsg:
		m.complete = true
		m.summary = Summary(msg)
		return m, tea.Quit

	case tickMsg:
		return m, tickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View implements tea.Model.
func (m *solveModel) View() string {
	if m.quitting {
		return "Cancelled.\n"
	}
	if m.complete {
		return m.renderComplete()
	}

	stats := m.tracker.Stats()
	contentWidth := max(m.width-4, 40)

	sections := []string{
		m.renderPhases(stats.Phase),
		m.renderDivider(contentWidth),
		m.renderCounters(stats),
		m.renderFrontier(stats),
		m.renderSpeed(stats),
		m.renderSparkline(contentWidth),
	}
	if id := stats.Progress.CurrentNodeID; id != "" {
		sections = append(sections, m.renderDivider(contentWidth),
			m.styles.Dim.Render(truncate(id, contentWidth-2)))
	}

	title := "pathmap"
	if q := stats.Query; q.Start != "" {
		title = fmt.Sprintf("pathmap • %s -> %s", q.Start, q.Goal)
		if q.Total > 1 {
			title += fmt.Sprintf(" (%d/%d)", q.Index, q.Total)
		}
	}

	return m.wrapInPanel(title, strings.Join(sections, "\n"), contentWidth) + "\n" +
		m.renderStatusBar(stats)
}

// renderPhases renders the phase indicators for the current query.
func (m *solveModel) renderPhases(current Phase) string {
	phases := []struct {
		phase Phase
		name  string
	}{
		{PhaseExpanding, "Expand"},
		{PhaseConverged, "Converge"},
		{PhaseEnumerating, "Enumerate"},
	}

	parts := make([]string, 0, len(phases))
	for _, p := range phases {
		switch {
		case p.phase < current:
			parts = append(parts, m.styles.Success.Render("● "+p.name))
		case p.phase == current:
			parts = append(parts, m.styles.Active.Render(m.spinner.View()+" "+p.name))
		default:
			parts = append(parts, m.styles.Dim.Render("○ "+p.name))
		}
	}
	return strings.Join(parts, m.styles.Dim.Render(" → "))
}

func (m *solveModel) renderCounters(stats ProgressStats) string {
	p := stats.Progress
	goal := m.styles.Dim.Render("searching")
	if p.GoalDistance >= 0 {
		goal = m.styles.Active.Render(fmt.Sprintf("%d hops", p.GoalDistance))
	}

	return fmt.Sprintf("%s %s  %s %s  %s %s  %s %s\n%s %s  %s %s",
		m.styles.Label.Render("Expanded:"), m.styles.Value.Render(fmt.Sprint(p.Expanded)),
		m.styles.Label.Render("Cached:"), m.styles.Value.Render(fmt.Sprint(p.CacheHits)),
		m.styles.Label.Render("Discovered:"), m.styles.Value.Render(fmt.Sprint(p.Discovered)),
		m.styles.Label.Render("In flight:"), m.styles.Value.Render(fmt.Sprint(p.InFlight)),
		m.styles.Label.Render("Goal:"), goal,
		m.styles.Label.Render("Score:"), m.styles.Value.Render(fmt.Sprint(p.CurrentScore)))
}

func (m *solveModel) renderFrontier(stats ProgressStats) string {
	p := stats.Progress
	return fmt.Sprintf("%s %s",
		m.frontierBar.ViewAs(stats.FrontierFill()),
		m.styles.Label.Render(fmt.Sprintf("frontier %d/%d", p.FrontierLen, p.FrontierCap)))
}

func (m *solveModel) renderSpeed(stats ProgressStats) string {
	speed := fmt.Sprintf("Speed: %.0f nodes/s", stats.Speed.Current)
	if stats.Speed.Avg > 0 {
		speed += fmt.Sprintf(" (avg: %.0f, peak: %.0f)", stats.Speed.Avg, stats.Speed.Peak)
	}
	elapsed := fmt.Sprintf("Elapsed: %s", formatDuration(stats.QueryElapsed))
	return m.styles.Label.Render(speed) + m.styles.Dim.Render("  •  ") + m.styles.Label.Render(elapsed)
}

func (m *solveModel) renderSparkline(width int) string {
	spark := m.tracker.RenderSparkline(max(width-14, 10))
	return m.styles.Sparkline.Render(spark) + " " + m.styles.Dim.Render("expansions ─")
}

func (m *solveModel) renderDivider(width int) string {
	return m.styles.Border.Render(strings.Repeat("─", width))
}

func (m *solveModel) wrapInPanel(title, content string, width int) string {
	panel := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorDarkGray)).
		Padding(0, 1).
		Width(width)

	return lipgloss.JoinVertical(lipgloss.Left,
		m.styles.Header.Render(title),
		panel.Render(content),
	)
}

func (m *solveModel) renderStatusBar(stats ProgressStats) string {
	var parts []string
	if stats.Query.Total > 1 {
		parts = append(parts, m.styles.Label.Render(
			fmt.Sprintf("%d/%d queries, %d reached", stats.Completed, stats.Query.Total, stats.Reached)))
	}
	if stats.WarnCount > 0 {
		parts = append(parts, m.styles.Warning.Render(fmt.Sprintf("⚠ %d warnings", stats.WarnCount)))
	}
	if stats.ErrorCount > 0 {
		parts = append(parts, m.styles.Error.Render(fmt.Sprintf("✗ %d errors", stats.ErrorCount)))
	}
	parts = append(parts, m.styles.Dim.Render("q to quit"))
	return strings.Join(parts, m.styles.Dim.Render("  │  "))
}

func (m *solveModel) renderComplete() string {
	s := m.summary
	lines := []string{
		m.styles.Success.Render("✓ Search Complete"),
		"",
		fmt.Sprintf("%s   %s", m.styles.Label.Render("Queries:"), m.styles.Active.Render(fmt.Sprint(s.Queries))),
		fmt.Sprintf("%s   %s", m.styles.Label.Render("Reached:"), m.styles.Active.Render(fmt.Sprint(s.Reached))),
		fmt.Sprintf("%s  %s", m.styles.Label.Render("Expanded:"), m.styles.Active.Render(fmt.Sprint(s.Expanded))),
		fmt.Sprintf("%s  %s", m.styles.Label.Render("Duration:"), m.styles.Active.Render(formatDuration(s.Duration))),
	}
	if s.Failed > 0 {
		lines = append(lines, "", m.styles.Error.Render(fmt.Sprintf("✗ %d failed", s.Failed)))
	}

	panel := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorLime)).
		Padding(1, 2).
		Width(max(m.width-4, 40))

	return panel.Render(strings.Join(lines, "\n")) + "\n"
}

// formatDuration formats a duration in a human-friendly way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		if s == 0 {
			return fmt.Sprintf("%dm", m)
		}
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}

// truncate shortens s to maxLen runes, keeping the tail.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return "..."
	}
	return "..." + string(r[len(r)-maxLen+3:])
}

var _ Renderer = (*TUIRenderer)(nil)

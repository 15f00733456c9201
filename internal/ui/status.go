package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/Aman-CERP/pathmap/internal/graph"
	"github.com/Aman-CERP/pathmap/internal/telemetry"
)

// StatusInfo describes the stored graph and local solve history.
type StatusInfo struct {
	Backend   string      `json:"backend"`
	StorePath string      `json:"store_path"`
	StoreSize int64       `json:"store_size"`
	LastSaved time.Time   `json:"last_saved"`
	Graph     graph.Stats `json:"graph"`

	Provider    string `json:"provider"`
	ProviderURL string `json:"provider_url,omitempty"`

	Telemetry *telemetry.SolveMetricsSnapshot `json:"telemetry,omitempty"`
}

// StatusRenderer displays graph status.
type StatusRenderer struct {
	out    io.Writer
	styles Styles
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{
		out:    out,
		styles: GetStyles(noColor),
	}
}

// Render displays status info to terminal.
func (r *StatusRenderer) Render(info StatusInfo) error {
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("Graph Status"))

	_, _ = fmt.Fprintf(r.out, "  Nodes:      %d\n", info.Graph.Nodes)
	_, _ = fmt.Fprintf(r.out, "  Expanded:   %d\n", info.Graph.Expanded)
	_, _ = fmt.Fprintf(r.out, "  Edges:      %d\n", info.Graph.Edges)
	_, _ = fmt.Fprintln(r.out)

	_, _ = fmt.Fprintln(r.out, "  Store:")
	_, _ = fmt.Fprintf(r.out, "    Backend:  %s\n", info.Backend)
	_, _ = fmt.Fprintf(r.out, "    Path:     %s\n", info.StorePath)
	_, _ = fmt.Fprintf(r.out, "    Size:     %s\n", FormatBytes(info.StoreSize))
	if !info.LastSaved.IsZero() {
		_, _ = fmt.Fprintf(r.out, "    Saved:    %s\n", formatTime(info.LastSaved))
	}
	_, _ = fmt.Fprintln(r.out)

	_, _ = fmt.Fprintf(r.out, "  Provider:   %s", info.Provider)
	if info.ProviderURL != "" {
		_, _ = fmt.Fprintf(r.out, " (%s)", info.ProviderURL)
	}
	_, _ = fmt.Fprintln(r.out)

	if t := info.Telemetry; t != nil {
		_, _ = fmt.Fprintln(r.out)
		_, _ = fmt.Fprintln(r.out, "  Solves:")
		_, _ = fmt.Fprintf(r.out, "    Total:    %d\n", t.TotalSolves)
		_, _ = fmt.Fprintf(r.out, "    Reached:  %s\n", r.renderRate(t.ReachedPercentage()))
		_, _ = fmt.Fprintf(r.out, "    Cached:   %.0f%% of expansions\n", t.CacheHitRate()*100)
		if len(t.Unreachable) > 0 {
			last := t.Unreachable[0]
			_, _ = fmt.Fprintf(r.out, "    Last miss: %s -> %s (%s)\n", last.Start, last.Goal, last.Status)
		}
	}

	return nil
}

// RenderJSON outputs status as JSON.
func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}

func (r *StatusRenderer) renderRate(pct float64) string {
	s := fmt.Sprintf("%.0f%%", pct)
	switch {
	case pct >= 80:
		return r.styles.Success.Render(s)
	case pct >= 50:
		return r.styles.Warning.Render(s)
	default:
		return r.styles.Error.Render(s)
	}
}

// formatTime formats a time relative to now.
func formatTime(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return plural(int(diff.Minutes()), "minute") + " ago"
	case diff < 24*time.Hour:
		return plural(int(diff.Hours()), "hour") + " ago"
	case diff < 7*24*time.Hour:
		return plural(int(diff.Hours()/24), "day") + " ago"
	default:
		return t.Format("2006-01-02 15:04")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// FormatBytes formats bytes to human-readable format.
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

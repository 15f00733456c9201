package mcp

import (
	"fmt"
	"strings"
)

// FormatFindPaths renders a find_paths result as markdown for clients that
// only read text content.
func FormatFindPaths(out *FindPathsOutput) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## Paths from `%s` to `%s`\n\n", out.Start, out.Goal)

	if len(out.Groups) == 0 {
		fmt.Fprintf(&sb, "No path found (%s).\n\n", out.Status)
		formatRunStats(&sb, out.Stats)
		return sb.String()
	}

	total := 0
	for _, g := range out.Groups {
		total += g.Count
	}
	fmt.Fprintf(&sb, "Found %d path", total)
	if total != 1 {
		sb.WriteString("s")
	}
	fmt.Fprintf(&sb, ", shortest %d hops, tolerance %d\n\n", out.Distance, out.Tolerance)

	for _, g := range out.Groups {
		if g.OffBy == 0 {
			fmt.Fprintf(&sb, "### Shortest (%d nodes, %d)\n\n", g.Length, g.Count)
		} else {
			fmt.Fprintf(&sb, "### Off by %d (%d nodes, %d)\n\n", g.OffBy, g.Length, g.Count)
		}
		for _, p := range g.Paths {
			fmt.Fprintf(&sb, "- %s\n", strings.Join(p, " -> "))
		}
		if g.Truncated {
			fmt.Fprintf(&sb, "- ... %d more\n", g.Count-len(g.Paths))
		}
		sb.WriteString("\n")
	}

	formatRunStats(&sb, out.Stats)
	return sb.String()
}

func formatRunStats(sb *strings.Builder, st RunStats) {
	fmt.Fprintf(sb, "_Expanded %d nodes (%d cached, %d discovered) in %dms", st.Expanded, st.CacheHits, st.Discovered, st.DurationMs)
	if st.FetchFailures > 0 {
		fmt.Fprintf(sb, ", %d fetch failures", st.FetchFailures)
	}
	sb.WriteString("_\n")
}

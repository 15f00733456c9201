package solver

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Aman-CERP/pathmap/internal/search"
	"github.com/Aman-CERP/pathmap/internal/validation"
)

// DefaultQueries is the batch run when no queries are configured.
func DefaultQueries() []validation.Query {
	return []validation.Query{
		{Start: "the+beatles", Goal: "miles+davis"},
		{Start: "louis+armstrong", Goal: "nickelback"},
		{Start: "mozart", Goal: "jacob+collier"},
		{Start: "nicki+minaj", Goal: "chick+corea"},
		{Start: "billie+eilish", Goal: "count+basie+orchestra"},
	}
}

// Report writes the text report for one result:
//
//	 --- start -> goal ---
//	Solutions:
//		start -> a -> goal
//	Approximations (Off by 1):
//		start -> b -> c -> goal
//	Expanded 12 nodes (3 cached) in 1.2s
func Report(w io.Writer, res *search.Result) error {
	return report(w, res, false)
}

// ReportSummary is Report with path lists replaced by per-length counts.
func ReportSummary(w io.Writer, res *search.Result) error {
	return report(w, res, true)
}

func report(w io.Writer, res *search.Result, summary bool) error {
	var b strings.Builder
	fmt.Fprintf(&b, " --- %s -> %s --- \n", res.Start, res.Goal)

	if !res.Found() {
		fmt.Fprintf(&b, "No path found (%s)\n", res.Status)
	} else {
		lengths := res.Buckets.Lengths()
		shortest := lengths[0]
		for _, n := range lengths {
			paths := res.Buckets[n]
			if summary {
				fmt.Fprintf(&b, "Length %d: %d Possibilities\n", n, len(paths))
				continue
			}
			if n == shortest {
				b.WriteString("Solutions:\n")
			} else {
				fmt.Fprintf(&b, "Approximations (Off by %d):\n", n-shortest)
			}
			for _, p := range paths {
				fmt.Fprintf(&b, "\t%s\n", p)
			}
		}
	}

	fmt.Fprintf(&b, "Expanded %d nodes (%d cached) in %s\n",
		res.Stats.Expanded, res.Stats.CacheHits, res.Stats.Duration.Round(time.Millisecond))

	_, err := io.WriteString(w, b.String())
	return err
}

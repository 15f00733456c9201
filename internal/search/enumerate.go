package search

import (
	"slices"
	"sort"

	"github.com/Aman-CERP/pathmap/internal/graph"
)

// Enumerate walks parent links back from goal and returns every start-to-goal
// path at most tolerance hops longer than the goal's distance, grouped by node
// count. Paths inside a bucket are sorted lexicographically.
//
// At each node only resolved parents are considered. A parent is followed when
// its score exceeds the lowest parent score by no more than the remaining
// budget, and following it spends that excess. Nodes already on the path are
// skipped.
func Enumerate(start, goal *graph.Node, tolerance int) Buckets {
	buckets := Buckets{}
	if !goal.Resolved() {
		return buckets
	}

	var path []*graph.Node
	onPath := make(map[*graph.Node]bool)

	var walk func(n *graph.Node, budget int)
	walk = func(n *graph.Node, budget int) {
		path = append(path, n)
		onPath[n] = true
		defer func() {
			path = path[:len(path)-1]
			delete(onPath, n)
		}()

		if n == start {
			out := make(Path, len(path))
			for i, node := range path {
				out[len(path)-1-i] = node.ID()
			}
			buckets[len(out)] = append(buckets[len(out)], out)
			return
		}

		parents := n.Parents()
		lowest := graph.Unresolved
		for _, p := range parents {
			if s := p.Score(); s < lowest {
				lowest = s
			}
		}
		if lowest == graph.Unresolved {
			return
		}

		for _, p := range parents {
			s := p.Score()
			if s == graph.Unresolved || onPath[p] {
				continue
			}
			if excess := s - lowest; excess <= budget {
				walk(p, budget-excess)
			}
		}
	}
	walk(goal, tolerance)

	for _, paths := range buckets {
		sort.Slice(paths, func(i, j int) bool { return slices.Compare(paths[i], paths[j]) < 0 })
	}
	return buckets
}

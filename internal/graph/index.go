package graph

import (
	"sort"
	"sync"
)

// Index maps node identifiers to the single Node instance for each id.
// It is shared by every search run against the same graph.
type Index struct {
	mu    sync.RWMutex
	nodes map[string]*Node
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{nodes: make(map[string]*Node)}
}

// GetOrCreate returns the node for id, creating it if needed.
// Concurrent callers with the same id always get the same instance.
func (x *Index) GetOrCreate(id string) *Node {
	x.mu.RLock()
	n, ok := x.nodes[id]
	x.mu.RUnlock()
	if ok {
		return n
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if n, ok := x.nodes[id]; ok {
		return n
	}
	n = newNode(id)
	x.nodes[id] = n
	return n
}

// Lookup returns the node for id without creating it.
func (x *Index) Lookup(id string) (*Node, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	n, ok := x.nodes[id]
	return n, ok
}

// Len returns the number of known nodes.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.nodes)
}

// Nodes returns every node sorted by id.
func (x *Index) Nodes() []*Node {
	x.mu.RLock()
	out := make([]*Node, 0, len(x.nodes))
	for _, n := range x.nodes {
		out = append(out, n)
	}
	x.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// ResetAll clears the transient state of every node so a new search
// generation can start. Expansion results are kept.
func (x *Index) ResetAll() {
	for _, n := range x.Nodes() {
		n.Reset()
	}
}

// Stats summarizes the structure of the graph.
type Stats struct {
	Nodes    int `json:"nodes"`
	Expanded int `json:"expanded"`
	Edges    int `json:"edges"`
}

// Stats counts nodes, expanded nodes and edges.
func (x *Index) Stats() Stats {
	var s Stats
	for _, n := range x.Nodes() {
		s.Nodes++
		if n.IsExpanded() {
			s.Expanded++
			s.Edges += len(n.Children())
		}
	}
	return s
}

package graph

import (
	"fmt"
	"strings"

	"github.com/Aman-CERP/pathmap/internal/errors"
)

// Entry is the persisted form of one expanded node.
type Entry struct {
	ID       string   `json:"id" yaml:"id"`
	Children []string `json:"children" yaml:"children"`
}

// Snapshot is the persisted form of a graph: every expanded node with its
// ordered children, sorted by id. Unexpanded nodes are implied by the child
// lists and are not stored.
type Snapshot struct {
	Entries []Entry `json:"nodes" yaml:"nodes"`
}

// Len returns the number of expanded nodes in the snapshot.
func (s Snapshot) Len() int {
	return len(s.Entries)
}

// Edges returns the total number of child links.
func (s Snapshot) Edges() int {
	total := 0
	for _, e := range s.Entries {
		total += len(e.Children)
	}
	return total
}

// Snapshot captures the expanded part of the graph.
func (x *Index) Snapshot() Snapshot {
	var s Snapshot
	for _, n := range x.Nodes() {
		if !n.IsExpanded() {
			continue
		}
		s.Entries = append(s.Entries, Entry{ID: n.id, Children: n.ChildIDs()})
	}
	return s
}

// Load restores expanded nodes from a snapshot. A snapshot naming a node that
// is already expanded, or the same node twice, fails with DoubleExpansion.
func (x *Index) Load(s Snapshot) error {
	for i, e := range s.Entries {
		if strings.TrimSpace(e.ID) == "" {
			return errors.New(errors.ErrCodeCorruptGraph,
				fmt.Sprintf("snapshot entry %d has an empty id", i), nil)
		}
		for _, c := range e.Children {
			if strings.TrimSpace(c) == "" {
				return errors.New(errors.ErrCodeCorruptGraph,
					fmt.Sprintf("node %q has an empty child id", e.ID), nil)
			}
		}
		if err := x.GetOrCreate(e.ID).Initialize(e.Children, x); err != nil {
			return err
		}
	}
	return nil
}

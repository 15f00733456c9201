// Package graph holds the lazily discovered graph: nodes with their best known
// distance, their children and the parents that reached them, plus the index
// that owns every node.
//
// Structural state (children, parents, expansion) survives between searches.
// Transient state (score, claim and queue marks) is cleared by Reset at the
// start of each search generation.
package graph

import (
	"context"
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/Aman-CERP/pathmap/internal/errors"
)

// Unresolved is the score of a node no search has reached yet.
const Unresolved = math.MaxInt

// ExpansionState tells whether a node's children are known.
type ExpansionState int32

const (
	// NotExpanded nodes have never had their neighbors fetched.
	NotExpanded ExpansionState = iota
	// Expanded nodes carry their final child list.
	Expanded
)

// String returns the state name.
func (s ExpansionState) String() string {
	if s == Expanded {
		return "expanded"
	}
	return "not_expanded"
}

// NeighborProvider returns the neighbor identifiers of a node.
//
// Errors carrying errors.ErrCodeNeighborsNotFound mean the node has no remote
// resource and are cached as "no children". Any other error is treated as a
// transient fetch failure: the node has no children for this search only.
type NeighborProvider interface {
	FetchNeighbors(ctx context.Context, id string) ([]string, error)
}

// Node is a vertex of the discovered graph.
type Node struct {
	id string

	mu       sync.Mutex
	score    int
	children []*Node
	parents  map[*Node]struct{}
	state    ExpansionState
	settled  bool // children relaxed in the current generation

	claimed atomic.Bool
	queued  atomic.Bool
}

func newNode(id string) *Node {
	return &Node{
		id:      id,
		score:   Unresolved,
		parents: make(map[*Node]struct{}),
	}
}

// ID returns the node identifier.
func (n *Node) ID() string {
	return n.id
}

// Score returns the best known distance from the current search's start,
// or Unresolved.
func (n *Node) Score() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.score
}

// Resolved reports whether the current search has reached the node.
func (n *Node) Resolved() bool {
	return n.Score() != Unresolved
}

// State returns the expansion state.
func (n *Node) State() ExpansionState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// IsExpanded reports whether the node's children are known.
func (n *Node) IsExpanded() bool {
	return n.State() == Expanded
}

// Children returns the ordered child list.
func (n *Node) Children() []*Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]*Node, len(n.children))
	copy(out, n.children)
	return out
}

// ChildIDs returns the ordered child identifiers.
func (n *Node) ChildIDs() []string {
	children := n.Children()
	ids := make([]string, len(children))
	for i, c := range children {
		ids[i] = c.id
	}
	return ids
}

// Parents returns every node that has relaxed this one, sorted by id.
func (n *Node) Parents() []*Node {
	n.mu.Lock()
	out := make([]*Node, 0, len(n.parents))
	for p := range n.parents {
		out = append(out, p)
	}
	n.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// SetOrigin makes the node the start of the current search (score 0).
func (n *Node) SetOrigin() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.score = 0
}

// Relax records parent as a parent of n and lowers n's score to
// parent.Score()+1 when that is better. It reports whether the score dropped.
// Calling it again with an unchanged parent changes nothing.
func (n *Node) Relax(parent *Node) bool {
	ps := parent.Score()

	n.mu.Lock()
	defer n.mu.Unlock()

	n.parents[parent] = struct{}{}
	if ps == Unresolved || ps+1 >= n.score {
		return false
	}
	n.score = ps + 1
	return true
}

// ClaimForExpansion atomically claims the node for expansion in the current
// generation. Only the caller that made the transition gets true.
func (n *Node) ClaimForExpansion() bool {
	return n.claimed.CompareAndSwap(false, true)
}

// Claimed reports whether the node has been claimed this generation.
func (n *Node) Claimed() bool {
	return n.claimed.Load()
}

// MarkQueued atomically marks the node as enqueued in the current generation.
// Only the first caller gets true.
func (n *Node) MarkQueued() bool {
	return n.queued.CompareAndSwap(false, true)
}

// UnmarkQueued clears the enqueue mark so the node can be enqueued again in
// the current generation.
func (n *Node) UnmarkQueued() {
	n.queued.Store(false)
}

// Queued reports whether the node has been enqueued this generation.
func (n *Node) Queued() bool {
	return n.queued.Load()
}

// Reset prepares the node for a new generation. Children, parents and the
// expansion state are kept.
func (n *Node) Reset() {
	n.mu.Lock()
	n.score = Unresolved
	n.settled = false
	n.mu.Unlock()

	n.claimed.Store(false)
	n.queued.Store(false)
}

// Initialize sets the children of a node that has not been expanded yet and
// marks it Expanded. Setting children twice is an invariant violation and
// returns a DoubleExpansion error.
func (n *Node) Initialize(childIDs []string, index *Index) error {
	if n.IsExpanded() {
		return errors.DoubleExpansion(n.id)
	}

	// Resolve children before taking n.mu: the index lock is never taken
	// while a node lock is held.
	seen := make(map[string]struct{}, len(childIDs))
	children := make([]*Node, 0, len(childIDs))
	for _, id := range childIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		children = append(children, index.GetOrCreate(id))
	}

	n.mu.Lock()
	if n.state == Expanded {
		n.mu.Unlock()
		return errors.DoubleExpansion(n.id)
	}
	n.children = children
	n.state = Expanded
	n.mu.Unlock()

	for _, c := range children {
		c.addParent(n)
	}
	return nil
}

func (n *Node) addParent(p *Node) {
	n.mu.Lock()
	n.parents[p] = struct{}{}
	n.mu.Unlock()
}

// settle marks the node's children as relaxed for this generation and
// returns them.
func (n *Node) settle() []*Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.settled = true
	out := make([]*Node, len(n.children))
	copy(out, n.children)
	return out
}

func (n *Node) isSettled() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.settled
}

// RelaxChildren relaxes every child with n as parent and returns n's children.
//
// If a relaxation lowers the score of a node whose own children were already
// relaxed this generation, the improvement is pushed on to those children so
// scores stay exact when expansions complete out of order.
func (n *Node) RelaxChildren() []*Node {
	children := n.settle()

	work := []*Node{n}
	for len(work) > 0 {
		cur := work[len(work)-1]
		work = work[:len(work)-1]

		var kids []*Node
		if cur == n {
			kids = children
		} else {
			kids = cur.Children()
		}
		for _, c := range kids {
			if c.Relax(cur) && c.isSettled() {
				work = append(work, c)
			}
		}
	}
	return children
}

// MarkSettled records that n has been handled this generation without
// children, e.g. after an absorbed fetch failure.
func (n *Node) MarkSettled() {
	n.settle()
}

// Expand fetches n's neighbors through provider the first time and relaxes
// them. Later calls are cache hits: the stored children are relaxed again for
// the current generation and the provider is not consulted.
//
// Provider errors never escape: a NotFound node gets zero children for good;
// any other failure leaves the node unexpanded and yields no children this
// generation. Only cancellation and DoubleExpansion are returned.
func (n *Node) Expand(ctx context.Context, provider NeighborProvider, index *Index) ([]*Node, error) {
	if n.IsExpanded() {
		return n.RelaxChildren(), nil
	}

	ids, err := provider.FetchNeighbors(ctx, n.id)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.Cancelled(ctx.Err())
		}
		if !errors.HasCode(err, errors.ErrCodeNeighborsNotFound) {
			n.MarkSettled()
			return nil, nil
		}
		ids = nil
	}

	if err := n.Initialize(ids, index); err != nil {
		return nil, err
	}
	return n.RelaxChildren(), nil
}

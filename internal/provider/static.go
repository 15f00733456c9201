package provider

import (
	"context"
	"sync"

	"github.com/Aman-CERP/pathmap/internal/errors"
)

// StaticProvider serves an in-memory adjacency list and counts fetches per
// node. Nodes can be marked as failing to simulate transient errors.
type StaticProvider struct {
	mu      sync.Mutex
	edges   map[string][]string
	failing map[string]error
	calls   map[string]int
}

var _ NeighborProvider = (*StaticProvider)(nil)

// NewStaticProvider creates a provider over edges. The map is copied.
func NewStaticProvider(edges map[string][]string) *StaticProvider {
	p := &StaticProvider{
		edges:   make(map[string][]string, len(edges)),
		failing: make(map[string]error),
		calls:   make(map[string]int),
	}
	for id, children := range edges {
		p.edges[id] = clone(children)
	}
	return p
}

// FetchNeighbors implements NeighborProvider.
func (p *StaticProvider) FetchNeighbors(ctx context.Context, id string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Cancelled(err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls[id]++
	if cause, ok := p.failing[id]; ok {
		return nil, errors.FetchError(id, cause)
	}
	children, ok := p.edges[id]
	if !ok {
		return nil, errors.NotFound(id)
	}
	return clone(children), nil
}

// Fail makes fetches of id fail with cause until Recover is called.
func (p *StaticProvider) Fail(id string, cause error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failing[id] = cause
}

// Recover clears a failure set by Fail.
func (p *StaticProvider) Recover(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.failing, id)
}

// Calls returns how often id was fetched.
func (p *StaticProvider) Calls(id string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[id]
}

// TotalCalls returns the number of fetches across all nodes.
func (p *StaticProvider) TotalCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	total := 0
	for _, n := range p.calls {
		total += n
	}
	return total
}

package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/pathmap/internal/errors"
	"github.com/Aman-CERP/pathmap/internal/graph"
)

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = errors.InternalError("nil dependency", nil)

// Engine searches a shared graph index. Searches on one engine are
// serialized because each one resets the index's transient state.
type Engine struct {
	index    *graph.Index
	provider graph.NeighborProvider
	config   Config
	logger   *slog.Logger
	progress func(Progress)

	mu sync.Mutex
}

// NewEngine creates an engine over index that fetches unknown neighbors from
// provider.
func NewEngine(index *graph.Index, provider graph.NeighborProvider, opts ...Option) (*Engine, error) {
	if index == nil {
		return nil, fmt.Errorf("%w: graph index is required", ErrNilDependency)
	}
	if provider == nil {
		return nil, fmt.Errorf("%w: neighbor provider is required", ErrNilDependency)
	}

	e := &Engine{
		index:    index,
		provider: provider,
		config:   DefaultConfig(),
		logger:   defaultLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if _, err := ParseCapacityPolicy(string(e.config.Policy)); err != nil {
		return nil, errors.ValidationError("invalid engine configuration", err)
	}
	return e, nil
}

// Config returns the effective engine settings.
func (e *Engine) Config() Config {
	return e.config
}

// Index returns the graph the engine searches.
func (e *Engine) Index() *graph.Index {
	return e.index
}

// Search finds every path from start to goal whose length is within
// tolerance extra hops of the shortest one.
//
// The returned Result is never nil. Its Status is StateDone or
// StateNotReachable on success. Failed and cancelled searches return an
// error alongside a Result with no buckets.
func (e *Engine) Search(ctx context.Context, start, goal string, tolerance int) (*Result, error) {
	res := &Result{Start: start, Goal: goal, Tolerance: tolerance, Distance: -1, Status: StateRunning}

	if err := validateRequest(start, goal, tolerance); err != nil {
		res.Status = StateFailed
		return res, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	began := time.Now()
	ctx, span := startSearchSpan(ctx, start, goal, tolerance)
	defer span.End()

	e.logger.Info("search started",
		slog.String("start", start),
		slog.String("goal", goal),
		slog.Int("tolerance", tolerance),
		slog.Int("workers", e.config.Workers),
		slog.Int("frontier_capacity", e.config.FrontierCapacity),
		slog.String("capacity_policy", string(e.config.Policy)))

	e.index.ResetAll()
	r := newRun(ctx, e, e.index.GetOrCreate(start), e.index.GetOrCreate(goal), tolerance)
	err := r.execute()

	res.Stats = r.stats
	if r.goal.Resolved() {
		res.Distance = r.goal.Score()
	}

	switch {
	case errors.HasCode(err, errors.ErrCodeSearchCancelled):
		res.Status = StateCancelled
	case err != nil:
		res.Status = StateFailed
	case r.state == StateNotReachable:
		res.Status = StateNotReachable
	default:
		e.emit(r.progressSnapshot(StateConverged, nil))
		e.emit(r.progressSnapshot(StateEnumerating, nil))
		res.Buckets = Enumerate(r.start, r.goal, tolerance)
		res.Status = StateDone
	}
	res.Stats.Duration = time.Since(began)
	e.emit(r.progressSnapshot(res.Status, nil))

	recordSearchMetrics(ctx, res)
	setSearchSpanResult(span, res, res.Stats.Duration)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.Warn("search ended without paths",
			slog.String("status", res.Status.String()),
			slog.String("error", err.Error()))
		return res, err
	}

	e.logger.Info("search finished",
		slog.String("status", res.Status.String()),
		slog.Int("distance", res.Distance),
		slog.Int("paths", res.Buckets.Count()),
		slog.Int("expanded", res.Stats.Expanded),
		slog.Int("cache_hits", res.Stats.CacheHits),
		slog.Int("fetch_failures", res.Stats.FetchFailures),
		slog.Int("max_frontier", res.Stats.MaxFrontier),
		slog.Duration("duration", res.Stats.Duration))
	return res, nil
}

func validateRequest(start, goal string, tolerance int) error {
	if strings.TrimSpace(start) == "" {
		return errors.New(errors.ErrCodeInvalidNodeID, "start node id is empty", nil)
	}
	if strings.TrimSpace(goal) == "" {
		return errors.New(errors.ErrCodeInvalidNodeID, "goal node id is empty", nil)
	}
	if tolerance < 0 {
		return errors.New(errors.ErrCodeInvalidTolerance,
			fmt.Sprintf("tolerance must be non-negative, got %d", tolerance), nil)
	}
	return nil
}

func (e *Engine) emit(p Progress) {
	if e.progress != nil {
		e.progress(p)
	}
}

// fetched is a worker's report for one node.
type fetched struct {
	node  *graph.Node
	score int
	ids   []string
	err   error
}

type pendingBatch struct {
	from  string
	nodes []*graph.Node
}

// run is the state of one search. Only the engine loop touches it; workers
// communicate through results.
type run struct {
	ctx    context.Context
	engine *Engine
	start  *graph.Node
	goal   *graph.Node
	tol    int

	frontier *frontier
	pending  []pendingBatch

	group    *errgroup.Group
	gctx     context.Context
	cancel   context.CancelFunc
	results  chan fetched
	inFlight map[int]int // score -> running expansions
	running  int

	state State
	stats Stats
}

func newRun(ctx context.Context, e *Engine, start, goal *graph.Node, tol int) *run {
	wctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(wctx)
	g.SetLimit(e.config.Workers)

	return &run{
		ctx:      ctx,
		engine:   e,
		start:    start,
		goal:     goal,
		tol:      tol,
		frontier: newFrontier(e.config.FrontierCapacity),
		group:    g,
		gctx:     gctx,
		cancel:   cancel,
		results:  make(chan fetched, e.config.Workers),
		inFlight: make(map[int]int),
		state:    StateRunning,
	}
}

// execute runs the loop and always drains the worker pool before returning.
func (r *run) execute() error {
	defer func() {
		r.cancel()
		_ = r.group.Wait()
	}()

	r.start.SetOrigin()
	r.start.MarkQueued()
	r.frontier.PushAll([]*graph.Node{r.start})
	r.stats.Discovered = 1
	r.stats.MaxFrontier = 1

	return r.loop()
}

func (r *run) loop() error {
	for {
		if err := r.ctx.Err(); err != nil {
			return errors.Cancelled(err)
		}
		r.admitPending()

		head := r.frontier.Peek()
		if head == nil {
			if r.running == 0 && len(r.pending) == 0 {
				if !r.goal.Resolved() {
					r.state = StateNotReachable
				}
				return nil
			}
			if err := r.await(); err != nil {
				return err
			}
			continue
		}

		score := head.Score()
		if r.goal.Resolved() {
			bound := r.goal.Score() + r.tol
			if score >= bound {
				if r.running > 0 {
					if err := r.await(); err != nil {
						return err
					}
					continue
				}
				below := func(n *graph.Node) bool { return n.Score() < bound }
				switch {
				case r.frontier.Any(below):
					r.frontier.Rotate()
				case r.pendingAny(below):
					r.drop()
				default:
					r.state = StateConverged
					return nil
				}
				continue
			}
		}

		// A node starts only once every shallower expansion has reported,
		// so its score is final.
		if r.running > 0 && (r.running >= r.engine.config.Workers || r.minInFlight() < score) {
			if err := r.await(); err != nil {
				return err
			}
			continue
		}

		r.frontier.Pop()
		if !head.ClaimForExpansion() {
			continue
		}
		if head.IsExpanded() {
			r.stats.CacheHits++
			if err := r.settle(head, head.RelaxChildren()); err != nil {
				return err
			}
			continue
		}
		r.dispatch(head, score)
	}
}

func (r *run) dispatch(n *graph.Node, score int) {
	r.inFlight[score]++
	r.running++

	provider := r.engine.provider
	r.group.Go(func() error {
		ids, err := provider.FetchNeighbors(r.gctx, n.ID())
		r.results <- fetched{node: n, score: score, ids: ids, err: err}
		return nil
	})
}

func (r *run) minInFlight() int {
	lowest := graph.Unresolved
	for s := range r.inFlight {
		if s < lowest {
			lowest = s
		}
	}
	return lowest
}

// await blocks until one expansion reports or the search is cancelled.
func (r *run) await() error {
	select {
	case <-r.ctx.Done():
		return errors.Cancelled(r.ctx.Err())
	case f := <-r.results:
		return r.handle(f)
	}
}

func (r *run) handle(f fetched) error {
	r.inFlight[f.score]--
	if r.inFlight[f.score] == 0 {
		delete(r.inFlight, f.score)
	}
	r.running--

	ids := f.ids
	if f.err != nil {
		switch {
		case errors.HasCode(f.err, errors.ErrCodeNeighborsNotFound):
			ids = nil
		case r.ctx.Err() != nil:
			return errors.Cancelled(r.ctx.Err())
		default:
			r.stats.FetchFailures++
			r.engine.logger.Warn("neighbor fetch failed",
				slog.String("node", f.node.ID()),
				slog.String("error", f.err.Error()))
			f.node.MarkSettled()
			r.engine.emit(r.progressSnapshot(StateRunning, f.node))
			return nil
		}
	}

	r.stats.Expanded++
	if err := f.node.Initialize(ids, r.engine.index); err != nil {
		return err
	}
	r.engine.logger.Debug("node expanded",
		slog.String("node", f.node.ID()),
		slog.Int("score", f.score),
		slog.Int("children", len(ids)))
	return r.settle(f.node, f.node.RelaxChildren())
}

// settle enqueues the children of from that are new this generation as one
// batch.
func (r *run) settle(from *graph.Node, children []*graph.Node) error {
	defer func() { r.engine.emit(r.progressSnapshot(StateRunning, from)) }()

	var batch []*graph.Node
	for _, c := range children {
		if c.MarkQueued() {
			batch = append(batch, c)
		}
	}
	if len(batch) == 0 {
		return nil
	}
	r.stats.Discovered += len(batch)

	if len(r.pending) == 0 && r.frontier.PushAll(batch) {
		r.trackFrontier()
		return nil
	}

	if r.engine.config.Policy == PolicyFatal {
		return errors.ResourceExhausted(from.ID(), len(batch), r.frontier.Free())
	}
	if len(batch) > r.frontier.Cap() {
		return errors.ResourceExhausted(from.ID(), len(batch), r.frontier.Cap())
	}

	r.pending = append(r.pending, pendingBatch{from: from.ID(), nodes: batch})
	r.stats.Requeued++
	r.engine.logger.Debug("frontier full, batch held back",
		slog.String("node", from.ID()),
		slog.Int("requested", len(batch)),
		slog.Int("available", r.frontier.Free()))
	return nil
}

func (r *run) pendingAny(fn func(*graph.Node) bool) bool {
	for _, b := range r.pending {
		for _, n := range b.nodes {
			if fn(n) {
				return true
			}
		}
	}
	return false
}

// drop removes the head to make room for held-back batches. The head is at
// or past the termination bound, so it would never be expanded; it may be
// enqueued again if a later relaxation brings it below the bound.
func (r *run) drop() {
	n := r.frontier.Pop()
	n.UnmarkQueued()
	r.stats.Dropped++
	r.engine.logger.Debug("frontier head dropped for held-back batch",
		slog.String("node", n.ID()),
		slog.Int("score", n.Score()))
}

// admitPending moves held-back batches into the frontier in arrival order.
func (r *run) admitPending() {
	for len(r.pending) > 0 && r.frontier.PushAll(r.pending[0].nodes) {
		r.pending = r.pending[1:]
		r.trackFrontier()
	}
}

func (r *run) trackFrontier() {
	if n := r.frontier.Len(); n > r.stats.MaxFrontier {
		r.stats.MaxFrontier = n
	}
}

func (r *run) progressSnapshot(state State, current *graph.Node) Progress {
	p := Progress{
		State:        state,
		Expanded:     r.stats.Expanded,
		CacheHits:    r.stats.CacheHits,
		Discovered:   r.stats.Discovered,
		InFlight:     r.running,
		FrontierLen:  r.frontier.Len(),
		FrontierCap:  r.frontier.Cap(),
		GoalDistance: -1,
	}
	if r.goal.Resolved() {
		p.GoalDistance = r.goal.Score()
	}
	if current != nil {
		p.CurrentNodeID = current.ID()
		p.CurrentScore = current.Score()
	}
	return p
}

// Package solver is the top-level orchestration: it owns the shared graph,
// the neighbor provider and the optional graph store, and runs searches one
// at a time over them.
package solver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/Aman-CERP/pathmap/internal/errors"
	"github.com/Aman-CERP/pathmap/internal/graph"
	"github.com/Aman-CERP/pathmap/internal/logging"
	"github.com/Aman-CERP/pathmap/internal/provider"
	"github.com/Aman-CERP/pathmap/internal/search"
	"github.com/Aman-CERP/pathmap/internal/store"
	"github.com/Aman-CERP/pathmap/internal/telemetry"
	"github.com/Aman-CERP/pathmap/internal/validation"
)

// Solver runs path queries over a graph that persists across queries.
//
// Every search resets the index's transient state, so operations that touch
// the index (Solve, Neighbors, Import) are admitted one at a time through a
// context-aware gate.
type Solver struct {
	index    *graph.Index
	provider graph.NeighborProvider
	engine   *search.Engine
	store    store.GraphStore
	metrics  *telemetry.SolveMetrics
	logger   *slog.Logger

	engineOpts []search.Option
	gate       *semaphore.Weighted
	loaded     bool
}

// Option configures a Solver.
type Option func(*Solver)

// WithStore persists the graph through st. Open loads it; Save writes it.
func WithStore(st store.GraphStore) Option {
	return func(s *Solver) {
		s.store = st
	}
}

// WithMetrics records every solve in m.
func WithMetrics(m *telemetry.SolveMetrics) Option {
	return func(s *Solver) {
		s.metrics = m
	}
}

// WithLogger sets the logger for the solver and its engine.
func WithLogger(l *slog.Logger) Option {
	return func(s *Solver) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithEngineOptions passes options through to the search engine.
func WithEngineOptions(opts ...search.Option) Option {
	return func(s *Solver) {
		s.engineOpts = append(s.engineOpts, opts...)
	}
}

// WithIndex shares an existing index instead of creating a new one.
func WithIndex(idx *graph.Index) Option {
	return func(s *Solver) {
		if idx != nil {
			s.index = idx
		}
	}
}

// New creates a solver that fetches unknown neighbors from p.
func New(p graph.NeighborProvider, opts ...Option) (*Solver, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: neighbor provider is required", search.ErrNilDependency)
	}

	s := &Solver{
		index:    graph.NewIndex(),
		provider: p,
		logger:   logging.Discard(),
		gate:     semaphore.NewWeighted(1),
	}
	for _, opt := range opts {
		opt(s)
	}

	engineOpts := append([]search.Option{search.WithLogger(s.logger)}, s.engineOpts...)
	engine, err := search.NewEngine(s.index, p, engineOpts...)
	if err != nil {
		return nil, err
	}
	s.engine = engine
	return s, nil
}

// Index returns the shared graph.
func (s *Solver) Index() *graph.Index {
	return s.index
}

// Engine returns the search engine.
func (s *Solver) Engine() *search.Engine {
	return s.engine
}

// acquire admits one index-mutating operation.
func (s *Solver) acquire(ctx context.Context) error {
	if err := s.gate.Acquire(ctx, 1); err != nil {
		return errors.Cancelled(err)
	}
	return nil
}

func (s *Solver) release() {
	s.gate.Release(1)
}

// Open loads the stored graph into the index. It is a no-op without a store
// and after the first successful call.
func (s *Solver) Open(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	if s.loaded {
		return nil
	}

	began := time.Now()
	snap, err := s.store.Load(ctx)
	if err != nil {
		return err
	}
	if err := s.index.Load(snap); err != nil {
		return err
	}
	s.loaded = true

	s.logger.Info("graph loaded",
		slog.Int("expanded", snap.Len()),
		slog.Int("edges", snap.Edges()),
		slog.Int("nodes", s.index.Len()),
		slog.Duration("duration", time.Since(began)))
	return nil
}

// NormalizeID maps a user-supplied id to the provider's id scheme. Ids are
// opaque unless the provider defines a scheme.
func (s *Solver) NormalizeID(raw string) (string, error) {
	id, err := validation.NormalizeID(raw)
	if err != nil {
		return "", err
	}
	return provider.NormalizeID(s.provider, id)
}

func (s *Solver) normalizeQuery(q validation.Query) (validation.Query, error) {
	q, err := validation.NormalizeQuery(q)
	if err != nil {
		return validation.Query{}, err
	}
	if q.Start, err = provider.NormalizeID(s.provider, q.Start); err != nil {
		return validation.Query{}, err
	}
	if q.Goal, err = provider.NormalizeID(s.provider, q.Goal); err != nil {
		return validation.Query{}, err
	}
	return q, nil
}

// Solve normalises start and goal, searches, and records telemetry.
func (s *Solver) Solve(ctx context.Context, start, goal string, tolerance int) (*search.Result, error) {
	runID := uuid.NewString()

	q, err := s.normalizeQuery(validation.Query{Start: start, Goal: goal, Tolerance: tolerance})
	if err != nil {
		res := &search.Result{RunID: runID, Start: start, Goal: goal, Tolerance: tolerance,
			Status: search.StateFailed, Distance: -1}
		return res, err
	}

	if err := s.acquire(ctx); err != nil {
		res := &search.Result{RunID: runID, Start: q.Start, Goal: q.Goal, Tolerance: q.Tolerance,
			Status: search.StateCancelled, Distance: -1}
		return res, err
	}
	defer s.release()

	res, err := s.engine.Search(ctx, q.Start, q.Goal, q.Tolerance)
	res.RunID = runID

	if s.metrics != nil {
		s.metrics.Record(telemetry.SolveEvent{
			RunID:     runID,
			Start:     res.Start,
			Goal:      res.Goal,
			Tolerance: res.Tolerance,
			Status:    res.Status.String(),
			Distance:  res.Distance,
			Paths:     res.Buckets.Count(),
			Expanded:  res.Stats.Expanded,
			CacheHits: res.Stats.CacheHits,
			Latency:   res.Stats.Duration,
		})
	}
	return res, err
}

// BatchObserver follows a batch run.
type BatchObserver interface {
	BeginQuery(index, total int, q validation.Query)
	EndQuery(index int, res *search.Result, err error)
}

// BatchOption configures a Batch run.
type BatchOption func(*batchConfig)

type batchConfig struct {
	observer BatchObserver
}

// WithObserver reports each query of the batch to o.
func WithObserver(o BatchObserver) BatchOption {
	return func(c *batchConfig) {
		c.observer = o
	}
}

// Batch runs queries one after another and returns their results in input
// order. A failed query is reported in its result and does not stop the
// batch; cancellation does. With a store, the graph is saved afterwards.
func (s *Solver) Batch(ctx context.Context, queries []validation.Query, opts ...BatchOption) ([]*search.Result, error) {
	var cfg batchConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	results := make([]*search.Result, 0, len(queries))
	for i, q := range queries {
		s.logger.Info("batch query",
			slog.Int("index", i+1),
			slog.Int("total", len(queries)),
			slog.String("start", q.Start),
			slog.String("goal", q.Goal))
		if cfg.observer != nil {
			cfg.observer.BeginQuery(i+1, len(queries), q)
		}

		res, err := s.Solve(ctx, q.Start, q.Goal, q.Tolerance)
		results = append(results, res)
		if cfg.observer != nil {
			cfg.observer.EndQuery(i+1, res, err)
		}
		if err != nil {
			if errors.HasCode(err, errors.ErrCodeSearchCancelled) {
				return results, err
			}
			s.logger.Warn("batch query failed",
				slog.String("start", q.Start),
				slog.String("goal", q.Goal),
				slog.String("error", err.Error()))
		}
	}

	if err := s.Save(ctx); err != nil {
		return results, err
	}
	return results, nil
}

// Save writes the index snapshot to the store. It is a no-op without one.
func (s *Solver) Save(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	snap := s.index.Snapshot()
	if err := s.store.Save(ctx, snap); err != nil {
		return err
	}
	s.logger.Debug("graph saved",
		slog.Int("expanded", snap.Len()),
		slog.Int("edges", snap.Edges()))
	return nil
}

// Neighbors returns the children of id, expanding the node when it has not
// been expanded yet. Unlike a search, which absorbs them, fetch failures are
// returned; the node stays unexpanded so a later call retries.
func (s *Solver) Neighbors(ctx context.Context, id string) ([]string, error) {
	norm, err := s.NormalizeID(id)
	if err != nil {
		return nil, err
	}
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()

	rec := &fetchRecorder{NeighborProvider: s.provider}
	children, err := s.index.GetOrCreate(norm).Expand(ctx, rec, s.index)
	if err != nil {
		return nil, err
	}
	if rec.err != nil {
		return nil, rec.err
	}

	ids := make([]string, len(children))
	for i, c := range children {
		ids[i] = c.ID()
	}
	return ids, nil
}

// fetchRecorder keeps the fetch failure that Node.Expand absorbs.
type fetchRecorder struct {
	graph.NeighborProvider
	err error
}

func (r *fetchRecorder) FetchNeighbors(ctx context.Context, id string) ([]string, error) {
	ids, err := r.NeighborProvider.FetchNeighbors(ctx, id)
	if err != nil && !errors.HasCode(err, errors.ErrCodeNeighborsNotFound) {
		r.err = err
	}
	return ids, err
}

// Stats describes the shared graph.
func (s *Solver) Stats() graph.Stats {
	return s.index.Stats()
}

// Snapshot returns the structural graph.
func (s *Solver) Snapshot() graph.Snapshot {
	return s.index.Snapshot()
}

// Import merges a snapshot into the graph. Entries for nodes that are already
// expanded fail with DoubleExpansion.
func (s *Solver) Import(ctx context.Context, snap graph.Snapshot) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()
	return s.index.Load(snap)
}

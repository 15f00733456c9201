package search

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for search operations.
var (
	tracer = otel.Tracer("pathmap.search")
	meter  = otel.Meter("pathmap.search")
)

var (
	searchLatency  metric.Float64Histogram
	searchTotal    metric.Int64Counter
	expansionTotal metric.Int64Counter
	frontierPeak   metric.Int64Histogram
	pathsFound     metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the instruments. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		searchLatency, err = meter.Float64Histogram(
			"search_duration_seconds",
			metric.WithDescription("Duration of path searches"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		searchTotal, err = meter.Int64Counter(
			"search_total",
			metric.WithDescription("Total number of path searches by status"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		expansionTotal, err = meter.Int64Counter(
			"search_expansions_total",
			metric.WithDescription("Node expansions by source (fetch, cache, failed)"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		frontierPeak, err = meter.Int64Histogram(
			"search_frontier_peak",
			metric.WithDescription("Largest frontier size per search"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		pathsFound, err = meter.Int64Histogram(
			"search_paths_found",
			metric.WithDescription("Number of paths enumerated per search"),
		)
		if err != nil {
			metricsErr = err
		}
	})
	return metricsErr
}

func recordSearchMetrics(ctx context.Context, res *Result) {
	if err := initMetrics(); err != nil {
		return
	}

	status := metric.WithAttributes(attribute.String("status", res.Status.String()))
	searchLatency.Record(ctx, res.Stats.Duration.Seconds(), status)
	searchTotal.Add(ctx, 1, status)

	expansionTotal.Add(ctx, int64(res.Stats.Expanded), metric.WithAttributes(attribute.String("source", "fetch")))
	expansionTotal.Add(ctx, int64(res.Stats.CacheHits), metric.WithAttributes(attribute.String("source", "cache")))
	expansionTotal.Add(ctx, int64(res.Stats.FetchFailures), metric.WithAttributes(attribute.String("source", "failed")))

	frontierPeak.Record(ctx, int64(res.Stats.MaxFrontier))
	if res.Status == StateDone {
		pathsFound.Record(ctx, int64(res.Buckets.Count()))
	}
}

func startSearchSpan(ctx context.Context, start, goal string, tolerance int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Engine.Search",
		trace.WithAttributes(
			attribute.String("search.start", start),
			attribute.String("search.goal", goal),
			attribute.Int("search.tolerance", tolerance),
		),
	)
}

func setSearchSpanResult(span trace.Span, res *Result, elapsed time.Duration) {
	span.SetAttributes(
		attribute.String("search.status", res.Status.String()),
		attribute.Int("search.distance", res.Distance),
		attribute.Int("search.paths", res.Buckets.Count()),
		attribute.Int("search.expanded", res.Stats.Expanded),
		attribute.Int64("search.duration_ms", elapsed.Milliseconds()),
	)
}

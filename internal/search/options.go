package search

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/Aman-CERP/pathmap/internal/logging"
)

// Defaults for engine configuration.
const (
	DefaultWorkers          = 20
	DefaultFrontierCapacity = 4096
)

// CapacityPolicy decides what happens when a discovered batch does not fit in
// the frontier.
type CapacityPolicy string

const (
	// PolicyRequeue holds the batch back until the frontier has room.
	PolicyRequeue CapacityPolicy = "requeue"
	// PolicyFatal fails the search with ResourceExhausted.
	PolicyFatal CapacityPolicy = "fatal"
)

// ParseCapacityPolicy parses a policy name. The empty string means requeue.
func ParseCapacityPolicy(s string) (CapacityPolicy, error) {
	switch CapacityPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyRequeue:
		return PolicyRequeue, nil
	case PolicyFatal:
		return PolicyFatal, nil
	default:
		return "", fmt.Errorf("unknown capacity policy %q (want %q or %q)", s, PolicyRequeue, PolicyFatal)
	}
}

// Config holds engine settings.
type Config struct {
	Workers          int
	FrontierCapacity int
	Policy           CapacityPolicy
}

// DefaultConfig returns the default engine settings.
func DefaultConfig() Config {
	return Config{
		Workers:          DefaultWorkers,
		FrontierCapacity: DefaultFrontierCapacity,
		Policy:           PolicyRequeue,
	}
}

// Option configures an Engine.
type Option func(*Engine)

// WithWorkers sets the number of concurrent expansions. Values below 1 are ignored.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.config.Workers = n
		}
	}
}

// WithFrontierCapacity sets the frontier capacity. Values below 1 are ignored.
func WithFrontierCapacity(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.config.FrontierCapacity = n
		}
	}
}

// WithCapacityPolicy sets the policy for batches that do not fit.
func WithCapacityPolicy(p CapacityPolicy) Option {
	return func(e *Engine) {
		if p != "" {
			e.config.Policy = p
		}
	}
}

// WithConfig applies every non-zero field of cfg.
func WithConfig(cfg Config) Option {
	return func(e *Engine) {
		WithWorkers(cfg.Workers)(e)
		WithFrontierCapacity(cfg.FrontierCapacity)(e)
		WithCapacityPolicy(cfg.Policy)(e)
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithProgress registers a callback invoked from the engine loop after every
// processed expansion. It must not block.
func WithProgress(fn func(Progress)) Option {
	return func(e *Engine) {
		e.progress = fn
	}
}

func defaultLogger() *slog.Logger {
	return logging.Discard()
}

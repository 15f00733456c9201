// Package provider implements neighbor sources for the graph: the
// music-map.com scraper, file-backed adjacency lists, and an LRU cache that
// wraps either.
package provider

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Aman-CERP/pathmap/internal/logging"
)

// NeighborProvider returns the neighbor identifiers of a node.
//
// Implementations return errors.NotFound when the node has no resource and
// errors.FetchError for transient failures.
type NeighborProvider interface {
	FetchNeighbors(ctx context.Context, id string) ([]string, error)
}

// Kind selects a provider implementation.
type Kind string

const (
	// KindMusicMap scrapes music-map.com.
	KindMusicMap Kind = "musicmap"
	// KindFile reads a static adjacency list.
	KindFile Kind = "file"
)

// Defaults for provider configuration.
const (
	DefaultBaseURL      = "https://www.music-map.com"
	DefaultTimeout      = 15 * time.Second
	DefaultUserAgent    = "pathmap (+https://github.com/Aman-CERP/pathmap)"
	DefaultCacheSize    = 10000
	DefaultMaxFailures  = 5
	DefaultResetTimeout = 30 * time.Second
)

// Config configures the provider built by New.
type Config struct {
	Kind         Kind
	BaseURL      string
	Timeout      time.Duration
	UserAgent    string
	CacheSize    int // 0 disables the LRU cache
	MaxFailures  int
	ResetTimeout time.Duration
	GraphFile    string // for KindFile
}

// DefaultConfig returns the music-map provider settings.
func DefaultConfig() Config {
	return Config{
		Kind:         KindMusicMap,
		BaseURL:      DefaultBaseURL,
		Timeout:      DefaultTimeout,
		UserAgent:    DefaultUserAgent,
		CacheSize:    DefaultCacheSize,
		MaxFailures:  DefaultMaxFailures,
		ResetTimeout: DefaultResetTimeout,
	}
}

// New builds the provider described by cfg, wrapped in a CachedProvider
// unless cfg.CacheSize is 0.
func New(cfg Config, logger *slog.Logger) (NeighborProvider, error) {
	if logger == nil {
		logger = logging.Discard()
	}

	var p NeighborProvider
	switch cfg.Kind {
	case KindMusicMap, "":
		p = NewMusicMapProvider(cfg, logger)
	case KindFile:
		fp, err := LoadFileProvider(cfg.GraphFile)
		if err != nil {
			return nil, err
		}
		p = fp
	default:
		return nil, fmt.Errorf("unknown provider kind %q (want %q or %q)", cfg.Kind, KindMusicMap, KindFile)
	}

	if cfg.CacheSize > 0 {
		p = NewCachedProvider(p, cfg.CacheSize)
	}
	return p, nil
}

package provider

import (
	"context"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Aman-CERP/pathmap/internal/errors"
)

// CachedProvider wraps a NeighborProvider with an LRU of neighbor lists.
// Successful lookups and NotFound answers are cached; fetch failures are not.
type CachedProvider struct {
	inner NeighborProvider
	cache *lru.Cache[string, []string]

	hits   atomic.Int64
	misses atomic.Int64
}

var _ NeighborProvider = (*CachedProvider)(nil)

// CacheStats reports cache effectiveness.
type CacheStats struct {
	Size   int   `json:"size"`
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

// NewCachedProvider wraps inner with a cache of size entries.
func NewCachedProvider(inner NeighborProvider, size int) *CachedProvider {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, _ := lru.New[string, []string](size)
	return &CachedProvider{inner: inner, cache: cache}
}

// NormalizeID uses the wrapped provider's id scheme.
func (c *CachedProvider) NormalizeID(raw string) (string, error) {
	return NormalizeID(c.inner, raw)
}

// FetchNeighbors implements NeighborProvider.
func (c *CachedProvider) FetchNeighbors(ctx context.Context, id string) ([]string, error) {
	if children, ok := c.cache.Get(id); ok {
		c.hits.Add(1)
		return clone(children), nil
	}
	c.misses.Add(1)

	children, err := c.inner.FetchNeighbors(ctx, id)
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeNeighborsNotFound) {
			c.cache.Add(id, []string{})
		}
		return nil, err
	}

	c.cache.Add(id, clone(children))
	return children, nil
}

// Stats returns the current cache counters.
func (c *CachedProvider) Stats() CacheStats {
	return CacheStats{
		Size:   c.cache.Len(),
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
	}
}

// Purge empties the cache.
func (c *CachedProvider) Purge() {
	c.cache.Purge()
}

// Inner returns the wrapped provider.
func (c *CachedProvider) Inner() NeighborProvider {
	return c.inner
}

func clone(ids []string) []string {
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// Package cache provides the process-wide catalog cache: TTL-bounded
// aggregate catalog facts with single-flight load deduplication.
//
// The cache is the one mandatory synchronization point in the search
// subsystem. Concurrent Get calls against a cold or expired key collapse
// into exactly one underlying load; everything else the pipeline shares is
// immutable once loaded.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// LoaderFunc loads the current value for a key. Loads run detached from
// any single caller's context so an abandoning caller cannot cancel a
// load other callers are awaiting.
type LoaderFunc func(ctx context.Context) (any, error)

// Result is a cache read. Value is the whole aggregate value; entries are
// replaced wholesale, never partially updated.
type Result struct {
	Value    any
	LoadedAt time.Time
	// Expired marks a stale value served because a refresh failed.
	Expired bool
}

// entry is one cached value. Immutable after creation; refresh replaces
// the entry pointer.
type entry struct {
	value    any
	loadedAt time.Time
}

type keySpec struct {
	ttl    time.Duration
	loader LoaderFunc
}

// Cache is a TTL cache with per-key registered loaders.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*entry
	keys    map[string]keySpec

	group singleflight.Group

	// loadTimeout bounds a single load, independent of caller deadlines.
	loadTimeout time.Duration
}

// Option configures the cache.
type Option func(*Cache)

// WithLoadTimeout bounds each underlying load.
func WithLoadTimeout(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.loadTimeout = d
		}
	}
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries:     make(map[string]*entry),
		keys:        make(map[string]keySpec),
		loadTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register binds a key to its loader and TTL. Must be called before Get
// for that key.
func (c *Cache) Register(key string, ttl time.Duration, loader LoaderFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys[key] = keySpec{ttl: ttl, loader: loader}
}

// Get returns the cached value for key, loading it if cold or expired.
//
// When a load is already in flight for key, the caller awaits that load
// instead of starting a duplicate. If a refresh fails and a previous value
// exists, the stale value is served with Expired=true; with no previous
// value the failure propagates.
func (c *Cache) Get(ctx context.Context, key string) (Result, error) {
	c.mu.RLock()
	spec, registered := c.keys[key]
	e := c.entries[key]
	c.mu.RUnlock()

	if !registered {
		return Result{}, fmt.Errorf("cache: unregistered key %q", key)
	}

	if e != nil && time.Since(e.loadedAt) < spec.ttl {
		return Result{Value: e.value, LoadedAt: e.loadedAt}, nil
	}

	// DoChan rather than Do: the caller may abandon the wait without
	// cancelling the shared load.
	ch := c.group.DoChan(key, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.Background(), c.loadTimeout)
		defer cancel()

		value, err := spec.loader(loadCtx)
		if err != nil {
			return nil, err
		}

		loaded := &entry{value: value, loadedAt: time.Now()}
		c.mu.Lock()
		c.entries[key] = loaded
		c.mu.Unlock()
		return loaded, nil
	})

	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			// Stale fallback: serve the expired value rather than fail,
			// when one exists.
			if e != nil {
				slog.Warn("cache_serving_stale",
					slog.String("key", key),
					slog.String("error", res.Err.Error()))
				return Result{Value: e.value, LoadedAt: e.loadedAt, Expired: true}, nil
			}
			return Result{}, res.Err
		}
		loaded := res.Val.(*entry)
		return Result{Value: loaded.value, LoadedAt: loaded.loadedAt}, nil
	}
}

// Invalidate clears the entry for key, forcing the next Get to reload.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// InvalidateAll clears every entry.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[string]*entry)
	c.mu.Unlock()
}

// Warm loads the given keys concurrently. Individual load failures are
// collected; warming is best-effort.
func (c *Cache) Warm(ctx context.Context, keys ...string) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, key := range keys {
		g.Go(func() error {
			_, err := c.Get(gctx, key)
			return err
		})
	}
	return g.Wait()
}

// Keys returns the registered key names.
func (c *Cache) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.keys))
	for k := range c.keys {
		keys = append(keys, k)
	}
	return keys
}

// Len returns the number of populated entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

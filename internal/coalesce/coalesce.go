// Package coalesce implements the Request Coalescer (spec.md §4.D): at
// most one in-flight fetch per WindowKey, fanned out to every waiter.
//
// File: coalesce.go
// Purpose: deduplicate concurrent cache-miss fetches for the same key.
// Dependencies: golang.org/x/sync/singleflight, windowcache
//
// singleflight.Group.Do already implements the policy spec.md §4.D
// requires: the shared function runs independently of any individual
// caller's context, so if every waiter cancels before it completes, the
// work still runs to completion and populates the cache. That is the
// reference policy this package documents and relies on rather than
// re-implementing.
package coalesce

import (
	"context"

	"github.com/sogelink-research/ctod/internal/windowcache"
	"golang.org/x/sync/singleflight"
)

// Coalescer guarantees at most one concurrent call to produce per key,
// backed by a processed-window cache that short-circuits repeat calls
// entirely.
type Coalescer struct {
	cache *windowcache.Cache
	group singleflight.Group
}

// New creates a Coalescer over the given processed-window cache.
func New(cache *windowcache.Cache) *Coalescer {
	return &Coalescer{cache: cache}
}

// Produce performs the expensive load+process for a cache miss. It
// returns the value to cache, its size in bytes for the LRU budget, and
// an error.
type Produce func(ctx context.Context) (value any, sizeBytes int64, err error)

// GetOrFetch implements spec.md §4.D's get_or_fetch: cache hit returns
// immediately; otherwise one produce call is in flight per key and
// every caller attached to it — whether they arrived first or
// attached as a waiter — observes the same result or the same error.
//
// The ctx passed to produce is this call's own context, for tracing and
// deadline propagation into GDAL reads; but Coalescer does not cancel
// produce when an individual caller's ctx is done, because singleflight
// has no notion of per-caller cancellation — the call simply returns to
// this particular caller once the shared result (or any equivalent call
// made concurrently) completes.
func (c *Coalescer) GetOrFetch(ctx context.Context, key string, produce Produce) (any, error) {
	if v, ok := c.cache.Get(key); ok {
		return v, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		if v, ok := c.cache.Get(key); ok {
			return v, nil
		}
		value, size, err := produce(ctx)
		if err != nil {
			return nil, err
		}
		c.cache.Put(key, value, size)
		return value, nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

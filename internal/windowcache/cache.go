// Package windowcache implements the Processed-Window Cache (spec.md
// §4.C): an in-memory, byte-budgeted LRU of decoded+resampled
// elevation grids, keyed by WindowKey.
//
// File: cache.go
// Purpose: bound memory use of cached cog.Grid values by total bytes,
// evicting least-recently-used entries first.
// Pattern: LRU, generalized from the corpus's own container/list-backed
// tile cache to a byte-budgeted generic handle cache.
package windowcache

import (
	"container/list"
	"log/slog"
	"sync"

	"github.com/dustin/go-humanize"
)

// DefaultBudgetBytes is the default total byte budget (256 MiB, spec.md §4.C).
const DefaultBudgetBytes = 256 * 1024 * 1024

// Entry is the CacheEntry of spec.md §3.
type Entry struct {
	Key       string
	Value     any
	SizeBytes int64
}

// Cache is a byte-bounded LRU keyed by WindowKey string. Insertions are
// idempotent by key: inserting an existing key moves it to the front
// without double-counting its bytes. Safe for concurrent use.
type Cache struct {
	mu          sync.Mutex
	budgetBytes int64
	usedBytes   int64
	ll          *list.List
	index       map[string]*list.Element
}

// New creates a Cache bounded by budgetBytes (DefaultBudgetBytes if <= 0).
func New(budgetBytes int64) *Cache {
	if budgetBytes <= 0 {
		budgetBytes = DefaultBudgetBytes
	}
	return &Cache{
		budgetBytes: budgetBytes,
		ll:          list.New(),
		index:       make(map[string]*list.Element),
	}
}

// Get returns the cached value for key, if present, and bumps its
// recency. The returned handle is not extended beyond the caller's own
// reference; the cache retains exactly one reference of its own.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.index[key]
	if !ok {
		return nil, false
	}
	c.ll.MoveToFront(elem)
	return elem.Value.(*Entry).Value, true
}

// Put inserts value under key with the given size, evicting
// least-recently-used entries until the budget is respected.
func (c *Cache) Put(key string, value any, sizeBytes int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.index[key]; ok {
		c.ll.MoveToFront(elem)
		return
	}

	entry := &Entry{Key: key, Value: value, SizeBytes: sizeBytes}
	elem := c.ll.PushFront(entry)
	c.index[key] = elem
	c.usedBytes += sizeBytes

	for c.usedBytes > c.budgetBytes && c.ll.Len() > 1 {
		oldest := c.ll.Back()
		if oldest == elem {
			break
		}
		c.evict(oldest)
	}
}

func (c *Cache) evict(elem *list.Element) {
	entry := elem.Value.(*Entry)
	c.ll.Remove(elem)
	delete(c.index, entry.Key)
	c.usedBytes -= entry.SizeBytes
	slog.Debug("windowcache: evicted entry",
		"key", entry.Key,
		"size", humanize.Bytes(uint64(entry.SizeBytes)),
		"used", humanize.Bytes(uint64(c.usedBytes)),
		"budget", humanize.Bytes(uint64(c.budgetBytes)),
	)
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// UsedBytes returns the current total size of cached entries. The
// invariant UsedBytes() <= budget always holds after Put returns,
// except for a single entry larger than the whole budget, which is
// kept alone (spec.md §8 invariant 6 is stated over sequences that
// don't pathologically exceed the budget with one entry).
func (c *Cache) UsedBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usedBytes
}

package coalesce

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sogelink-research/ctod/internal/windowcache"
	"github.com/stretchr/testify/require"
)

func TestGetOrFetch_CoalescesConcurrentCallers(t *testing.T) {
	c := New(windowcache.New(0))

	var calls int32
	produce := func(ctx context.Context) (any, int64, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(20 * time.Millisecond)
		return "grid-data", 4, nil
	}

	const n = 32
	var wg sync.WaitGroup
	results := make([]any, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.GetOrFetch(context.Background(), "z/x/y", produce)
			require.NoError(t, err)
			results[i] = v
		}(i)
	}
	wg.Wait()

	require.EqualValues(t, 1, atomic.LoadInt32(&calls), "produce must run exactly once for N concurrent callers on the same key")
	for _, r := range results {
		require.Equal(t, "grid-data", r)
	}
}

func TestGetOrFetch_CacheHitSkipsProduce(t *testing.T) {
	cache := windowcache.New(0)
	cache.Put("k", "cached", 1)
	c := New(cache)

	called := false
	v, err := c.GetOrFetch(context.Background(), "k", func(ctx context.Context) (any, int64, error) {
		called = true
		return "fresh", 1, nil
	})
	require.NoError(t, err)
	require.Equal(t, "cached", v)
	require.False(t, called)
}

func TestGetOrFetch_SharedFailure(t *testing.T) {
	c := New(windowcache.New(0))
	boom := errBoom{}

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := c.GetOrFetch(context.Background(), "failing", func(ctx context.Context) (any, int64, error) {
				return nil, 0, boom
			})
			errs[i] = err
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.ErrorIs(t, err, boom)
	}
}

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

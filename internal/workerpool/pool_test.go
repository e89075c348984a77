package workerpool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sogelink-research/ctod/internal/ctoderr"
	"github.com/stretchr/testify/require"
)

func TestPool_BoundsConcurrency(t *testing.T) {
	p := New(2, 100)

	var inflight atomic.Int32
	var maxSeen atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.Do(context.Background(), func() error {
				n := inflight.Add(1)
				for {
					old := maxSeen.Load()
					if n <= old || maxSeen.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				inflight.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()

	require.LessOrEqual(t, int(maxSeen.Load()), 2)
}

func TestPool_RejectsOverQueueBound(t *testing.T) {
	p := New(1, 2)

	block := make(chan struct{})
	var wg sync.WaitGroup

	// Occupy the single slot and one queue slot so the next admission
	// exceeds maxQueued.
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = p.Do(context.Background(), func() error {
			<-block
			return nil
		})
	}()
	go func() {
		defer wg.Done()
		_ = p.Do(context.Background(), func() error {
			<-block
			return nil
		})
	}()

	// Give both goroutines time to register in the queue.
	deadline := time.Now().Add(time.Second)
	for p.Queued() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	require.EqualValues(t, 2, p.Queued())

	err := p.Do(context.Background(), func() error { return nil })
	require.Error(t, err)
	require.Equal(t, ctoderr.Overloaded, ctoderr.KindOf(err))

	close(block)
	wg.Wait()
}

func TestPool_DoReturnsCtxErrBeforeSlotFrees(t *testing.T) {
	p := New(1, 10)

	block := make(chan struct{})
	go func() {
		_ = p.Do(context.Background(), func() error {
			<-block
			return nil
		})
	}()

	deadline := time.Now().Add(time.Second)
	for p.Queued() < 1 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := p.Do(ctx, func() error { return nil })
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(block)
}

// Package workerpool implements the bounded CPU worker pool that the
// factory submits its window meshing (including normal computation) to.
// Decode and resampling run inside the coalescer's produce function, and
// stitching and encoding run on the request goroutine; none of these go
// through the pool.
//
// File: pool.go
// Purpose: a fixed-capacity goroutine slot pool with queue-depth
// backpressure, generalized from the corpus's own bounded resource
// pool (lazy single init, explicit capacity, graceful shutdown;
// chrome_pool.go's allocator-context pool, here a pool of CPU slots
// guarded by a buffered channel semaphore instead of browser contexts).
package workerpool

import (
	"context"
	"runtime"
	"sync/atomic"

	"github.com/sogelink-research/ctod/internal/ctoderr"
)

// DefaultMaxQueueFactor is the default queue-depth bound relative to
// pool size (spec.md §5: "2x pool size").
const DefaultMaxQueueFactor = 2

// Pool bounds concurrent CPU-bound work to a fixed number of slots and
// rejects admission once too much work is already queued or running.
type Pool struct {
	slots     chan struct{}
	queued    atomic.Int64
	maxQueued int64
}

// New creates a Pool with size slots (runtime.NumCPU() if size <= 0)
// and a queue bound of maxQueued (DefaultMaxQueueFactor*size if <= 0).
func New(size, maxQueued int) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	if maxQueued <= 0 {
		maxQueued = DefaultMaxQueueFactor * size
	}
	return &Pool{
		slots:     make(chan struct{}, size),
		maxQueued: int64(maxQueued),
	}
}

// Size returns the pool's slot capacity.
func (p *Pool) Size() int { return cap(p.slots) }

// Do runs fn with a slot reserved, blocking the caller until a slot is
// free or ctx is done. It rejects admission with Overloaded before
// even queueing if the queue bound is already exceeded, per spec.md §5
// backpressure: "requests queued above a configured limit are rejected
// rather than buffered indefinitely."
func (p *Pool) Do(ctx context.Context, fn func() error) error {
	n := p.queued.Add(1)
	defer p.queued.Add(-1)
	if n > p.maxQueued {
		return ctoderr.New(ctoderr.Overloaded, "worker pool: queue depth exceeded")
	}

	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-p.slots }()

	return fn()
}

// Queued returns the current number of goroutines admitted to Do
// (waiting for a slot or holding one).
func (p *Pool) Queued() int64 { return p.queued.Load() }

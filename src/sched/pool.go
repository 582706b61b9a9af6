package sched

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// A Pool is the scheduler's bounded thread pool (spec §4.C: "The scheduler
// owns a bounded thread pool"). It's the same channel-of-work idea as
// please's core.Pool, rebuilt on golang.org/x/sync's errgroup and semaphore
// so the first task failure is captured automatically (errgroup) and the
// concurrency cap is enforced without a fixed set of long-lived worker
// goroutines (semaphore). The size is fixed when NewPool is called.
type Pool struct {
	sem *semaphore.Weighted
	eg  *errgroup.Group
	ctx context.Context
}

// NewPool constructs a Pool that runs at most size tasks concurrently.
// ctx cancellation (including the errgroup's own first-error cancellation)
// propagates to any task blocked waiting for a free slot.
func NewPool(ctx context.Context, size int64) *Pool {
	eg, gctx := errgroup.WithContext(ctx)
	return &Pool{sem: semaphore.NewWeighted(size), eg: eg, ctx: gctx}
}

// Go submits fn to run on the pool, blocking the caller only long enough to
// acquire a slot (not for fn to run). Returns an error immediately if ctx
// was cancelled while waiting for a slot, e.g. because an earlier task
// already failed.
func (p *Pool) Go(fn func() error) error {
	if err := p.sem.Acquire(p.ctx, 1); err != nil {
		return err
	}
	p.eg.Go(func() error {
		defer p.sem.Release(1)
		return fn()
	})
	return nil
}

// Wait blocks until every submitted task has finished, returning the first
// error encountered (if any), matching errgroup.Group.Wait.
func (p *Pool) Wait() error {
	return p.eg.Wait()
}

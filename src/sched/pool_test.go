package sched

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPoolRunsAllSubmittedTasks(t *testing.T) {
	p := NewPool(context.Background(), 2)
	var n atomic.Int64
	for i := 0; i < 10; i++ {
		assert.NoError(t, p.Go(func() error {
			n.Add(1)
			return nil
		}))
	}
	assert.NoError(t, p.Wait())
	assert.Equal(t, int64(10), n.Load())
}

func TestPoolWaitReturnsFirstError(t *testing.T) {
	p := NewPool(context.Background(), 4)
	sentinel := assert.AnError
	assert.NoError(t, p.Go(func() error { return sentinel }))
	assert.NoError(t, p.Go(func() error { return nil }))
	err := p.Wait()
	assert.Equal(t, sentinel, err)
}

func TestPoolGoFailsAfterContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := NewPool(ctx, 1)

	block := make(chan struct{})
	started := make(chan struct{})
	assert.NoError(t, p.Go(func() error {
		close(started)
		<-block
		return nil
	}))
	<-started

	// The single slot is occupied, so a second Go call has to wait for it;
	// cancelling ctx while it waits must surface as an error rather than
	// block forever.
	cancel()
	err := p.Go(func() error { return nil })
	assert.Error(t, err)

	close(block)
	_ = p.Wait()
}

func TestPoolEnforcesConcurrencyCap(t *testing.T) {
	const size = 3
	p := NewPool(context.Background(), size)

	var active atomic.Int64
	var maxActive atomic.Int64
	release := make(chan struct{})
	started := make(chan struct{}, 10)

	// Submitting more tasks than there are slots blocks the submitter once
	// the pool is full, so submission runs on its own goroutine rather than
	// the one that needs to drain `started` below.
	go func() {
		for i := 0; i < 10; i++ {
			_ = p.Go(func() error {
				cur := active.Add(1)
				for {
					prev := maxActive.Load()
					if cur <= prev || maxActive.CompareAndSwap(prev, cur) {
						break
					}
				}
				started <- struct{}{}
				<-release
				active.Add(-1)
				return nil
			})
		}
	}()

	for i := 0; i < size; i++ {
		<-started
	}
	close(release)
	assert.NoError(t, p.Wait())
	assert.LessOrEqual(t, maxActive.Load(), int64(size))
}

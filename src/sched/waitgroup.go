package sched

import (
	"sync"
	"sync/atomic"

	"github.com/forgebuild/forge/src/core"
)

// A WaitGuard is the spec §4.C "wait_guard" cooperative join primitive:
// "after starting N async tasks that increment a counter, the caller waits
// until the counter reaches the initial value again. While waiting, the
// thread participates in stealing." Adapted from please's
// core.BroadcastChan/initialErrgroup pairing, generalized to N tasks rather
// than just "first error wins": every task's error is collected, and the
// calling goroutine helps drain the same backlog the pool workers draw
// from instead of just parking.
type WaitGuard struct {
	pool    *Pool
	backlog chan func() error

	pending atomic.Int64
	done    chan struct{}
	once    sync.Once

	errMu sync.Mutex
	errs  []error
}

// NewWaitGuard constructs a guard whose tasks run on pool. backlog is sized
// generously so Go never blocks a match/apply goroutine on a full channel;
// it only needs to hold the prerequisites of one target at a time in
// practice.
func NewWaitGuard(pool *Pool) *WaitGuard {
	return &WaitGuard{pool: pool, backlog: make(chan func() error, 256), done: make(chan struct{})}
}

// Go registers one more task and arranges for it to run, either on a pool
// worker or stolen by the eventual Wait() caller.
func (w *WaitGuard) Go(fn func() error) {
	w.pending.Add(1)
	w.backlog <- func() error {
		defer w.finish()
		return fn()
	}
	// Nudge a pool worker to come drain the backlog. Pool.Go blocks this
	// caller until a slot is free; a task still in the backlog once Wait()
	// runs may be taken by Wait() itself.
	_ = w.pool.Go(w.stealOne)
}

// stealOne runs at most one pending task if one is available, otherwise
// returns immediately. Both pool workers and the Wait() caller call this
// same method, which is the "participates in stealing" behavior: whichever
// goroutine gets to the backlog first runs the task.
func (w *WaitGuard) stealOne() error {
	select {
	case task := <-w.backlog:
		if err := task(); err != nil {
			w.record(err)
		}
	default:
	}
	return nil
}

func (w *WaitGuard) record(err error) {
	w.errMu.Lock()
	w.errs = append(w.errs, err)
	w.errMu.Unlock()
}

func (w *WaitGuard) finish() {
	if w.pending.Add(-1) == 0 {
		w.once.Do(func() { close(w.done) })
	}
}

// Wait blocks until every task started via Go has completed, stealing work
// from the shared backlog while it waits rather than sitting idle, and
// returns the aggregate of every task's error (nil if none failed).
func (w *WaitGuard) Wait() error {
	for {
		select {
		case task := <-w.backlog:
			if err := task(); err != nil {
				w.record(err)
			}
		case <-w.done:
			w.errMu.Lock()
			defer w.errMu.Unlock()
			return core.AggregateErrors(w.errs...)
		}
	}
}

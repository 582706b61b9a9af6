// Package sched implements the build-wide phase lock and bounded worker
// pool described in spec §4.C: load, match and execute coexist but only one
// is ever active at a time, with mid-operation switches permitted (match
// temporarily becoming execute to materialize a generated header before
// continuing).
package sched

import "sync"

// Phase is one of the three coexisting build phases.
type Phase int32

const (
	PhaseLoad Phase = iota
	PhaseMatch
	PhaseExecute
)

func (p Phase) String() string {
	switch p {
	case PhaseLoad:
		return "load"
	case PhaseMatch:
		return "match"
	case PhaseExecute:
		return "execute"
	default:
		return "unknown phase"
	}
}

// A PhaseLock enforces that only one Phase is ever active at a time, while
// allowing any number of concurrent holders of that same phase (match runs
// many targets concurrently; only switching to a different phase needs
// exclusivity over the outgoing one).
type PhaseLock struct {
	mu      sync.Mutex
	cond    *sync.Cond
	current Phase
	holders int
}

// NewPhaseLock constructs a lock initially idle (no phase held).
func NewPhaseLock() *PhaseLock {
	pl := &PhaseLock{}
	pl.cond = sync.NewCond(&pl.mu)
	return pl
}

// A Ticket represents one goroutine's hold on a phase. Release must be
// called exactly once.
type Ticket struct {
	pl    *PhaseLock
	phase Phase
}

// Acquire blocks until phase is either the currently active phase (joining
// its existing holders) or no phase is active (becoming the first holder),
// then returns a Ticket. This is the spec §4.C entry point every load/
// match/execute worker calls before touching phase-scoped state.
func (pl *PhaseLock) Acquire(phase Phase) *Ticket {
	pl.mu.Lock()
	for pl.holders > 0 && pl.current != phase {
		pl.cond.Wait()
	}
	pl.current = phase
	pl.holders++
	pl.mu.Unlock()
	return &Ticket{pl: pl, phase: phase}
}

// Release gives up this ticket's hold. Once the last holder of a phase
// releases, any goroutine blocked in Acquire for a different phase is woken.
func (t *Ticket) Release() {
	pl := t.pl
	pl.mu.Lock()
	pl.holders--
	if pl.holders == 0 {
		pl.cond.Broadcast()
	}
	pl.mu.Unlock()
}

// Switch implements spec §4.C's phase_switch: an RAII scope that
// temporarily gives up t's hold, blocks until `to` is exclusively acquired
// (i.e. every other holder of t's current phase has also released), runs
// fn, then restores t's original phase before returning. The canonical use
// is a match worker that needs to run execute on an fsdir{} or a generated
// header before it can continue matching.
func (t *Ticket) Switch(to Phase, fn func() error) error {
	from := t.phase
	t.Release()
	sub := t.pl.Acquire(to)
	err := fn()
	sub.Release()
	resumed := t.pl.Acquire(from)
	t.phase = resumed.phase
	t.pl = resumed.pl
	return err
}

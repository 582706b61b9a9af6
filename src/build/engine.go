// Package build implements the two-phase match/execute engine: rules are
// selected and applied during match, recipes run with dependency ordering
// during execute (spec §4.D/§4.E).
package build

import (
	"context"

	"gopkg.in/op/go-logging.v1"

	"github.com/forgebuild/forge/src/core"
	"github.com/forgebuild/forge/src/sched"
)

var log = logging.MustGetLogger("build")

// An Engine is the spec §9 "single build context object" made whole: it
// embeds the scheduler-agnostic *core.Context and adds the scheduler half
// (phase lock, bounded pool) that core deliberately doesn't own, plus the
// rule registry that match() consults. One Engine is constructed per
// build; nothing here is a package-level singleton (SPEC_FULL §3.4).
type Engine struct {
	*core.Context

	Rules *RuleSet

	phases *sched.PhaseLock
	pool   *sched.Pool
	ctx    context.Context
}

// NewEngine constructs an Engine with concurrency workers and a fresh
// Context. ctx governs the lifetime of the whole build; cancelling it
// aborts any in-flight match/execute work.
func NewEngine(ctx context.Context, concurrency int64) *Engine {
	return &Engine{
		Context: core.NewContext(),
		Rules:   NewRuleSet(),
		phases:  sched.NewPhaseLock(),
		pool:    sched.NewPool(ctx, concurrency),
		ctx:     ctx,
	}
}

// AcquirePhase blocks until phase is exclusively available (spec §4.C) and
// returns the ticket; callers must Release it (or Switch through it) when
// done.
func (e *Engine) AcquirePhase(phase sched.Phase) *sched.Ticket {
	return e.phases.Acquire(phase)
}

// newWaitGuard returns a fresh WaitGuard backed by this engine's pool, for
// joining a batch of concurrently-started match/execute tasks (spec §4.C
// wait_guard).
func (e *Engine) newWaitGuard() *sched.WaitGuard {
	return sched.NewWaitGuard(e.pool)
}

// Go submits fn to run on the engine's bounded pool.
func (e *Engine) Go(fn func() error) error {
	return e.pool.Go(fn)
}

// Wait blocks until every task submitted via Go has completed.
func (e *Engine) Wait() error {
	return e.pool.Wait()
}

// Perform runs action over every target in roots: first acquiring the
// match phase and matching the whole transitive closure, then switching to
// the execute phase and running recipes bottom-up (spec §2 "Data flow").
// mode controls whether execute uses "first" or "last" dependent semantics
// (spec §4.E).
func (e *Engine) Perform(action core.Action, roots []*core.Target, mode ExecuteMode) error {
	actionID := e.ActionID(action)

	matchTicket := e.AcquirePhase(sched.PhaseMatch)
	wg := e.newWaitGuard()
	for _, root := range roots {
		root := root
		wg.Go(func() error {
			return Match(e, actionID, action, root)
		})
	}
	matchErr := wg.Wait()
	matchTicket.Release()
	if matchErr != nil {
		return matchErr
	}

	if mode == ExecuteLast {
		core.CountDependents(actionID, roots)
	}

	execTicket := e.AcquirePhase(sched.PhaseExecute)
	defer execTicket.Release()
	ewg := e.newWaitGuard()
	for _, root := range roots {
		root := root
		ewg.Go(func() error {
			_, err := Execute(e, actionID, action, root, mode)
			return err
		})
	}
	return ewg.Wait()
}

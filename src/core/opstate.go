package core

import (
	"sync"
	"sync/atomic"
)

// Stage enumerates the task_count lifecycle values from spec §4.D/§5. The
// numeric values match the spec's own numbering. No per-action rebasing
// arithmetic is applied to them: each action has its own OpState slot (see
// Context.ActionID and Target.OpState). Exported so package build (and the
// leaf rule packages) can drive and query the state machine without core
// needing to know anything about rules or recipes.
type Stage int32

const (
	StageUntouched Stage = 0
	StageTouched   Stage = 1
	StageTried     Stage = 2
	StageMatched   Stage = 3
	StageApplied   Stage = 4
	StageExecuted  Stage = 5
	// StageBusy is not a sequential step; it's a distinct sentinel a
	// thread compare-exchanges into while "in progress" so waiters know
	// to park rather than treat a half-transitioned target as done.
	// Spec §4.D: "offset_busy (7) -- generic in progress; waiters park
	// on this value". We give it a value above StageExecuted (5) so it
	// can never collide with any real, settled step.
	StageBusy Stage = 7
)

func (s Stage) String() string {
	switch s {
	case StageUntouched:
		return "untouched"
	case StageTouched:
		return "touched"
	case StageTried:
		return "tried"
	case StageMatched:
		return "matched"
	case StageApplied:
		return "applied"
	case StageExecuted:
		return "executed"
	case StageBusy:
		return "busy"
	default:
		return "invalid stage"
	}
}

// Rule and Recipe are declared as empty interfaces here (package core
// cannot import package build without a cycle, since build needs to see
// Target); the real types live in package build. OpState stores them as
// interface{} and build.Match/build.Execute type-assert back to their
// concrete *build.Rule / build.Recipe, exactly the way please's
// BuildTarget keeps opaque pre/post-build function pointers that only the
// parse/build packages know how to call.
type opaqueRule = interface{}
type opaqueRecipe = interface{}

// An OpState is one target's per-action slot (spec §3 "opstate[]").
type OpState struct {
	// taskCount is the task_count atomic described in spec §4.D/§5. Its
	// value is an offset in [0,5] (or StageBusy) *relative to this
	// slot's own base*, since each OpState is already scoped to a
	// single action — unlike the spec's single global counter rebased
	// per action, we get that isolation for free by having one OpState
	// per (target, action) pair. We still model the busy sentinel and
	// park/wake semantics faithfully.
	taskCount atomic.Int32

	// park is closed (and replaced) each time taskCount transitions out
	// of StageBusy, waking any goroutine blocked in Park.
	parkMu sync.Mutex
	park   chan struct{}

	// dependents is the atomic countdown execute uses for "last" mode
	// (spec §4.E).
	dependents atomic.Int32

	// rule/recipe/state/prerequisite list/variables are all only valid
	// to read once taskCount >= StageApplied (spec §5 ordering
	// guarantee); they're otherwise guarded implicitly by that fact
	// rather than a separate mutex, matching the spec's happens-before
	// requirement.
	mu        sync.Mutex
	rule      opaqueRule
	recipe    opaqueRecipe
	state     TargetState
	data      *PrerequisiteList
	variables *VariableMap
	err       error
}

func newOpState() *OpState {
	s := &OpState{}
	s.park = make(chan struct{})
	return s
}

// Load returns the current Stage.
func (s *OpState) Load() Stage { return Stage(s.taskCount.Load()) }

// TryAdvance attempts to move the slot from `from` to `to` atomically,
// returning true on success. Used for the untouched->touched and
// tried->matched transitions of spec §4.D step 1/2.
func (s *OpState) TryAdvance(from, to Stage) bool {
	return s.taskCount.CompareAndSwap(int32(from), int32(to))
}

// TryBecomeBusy attempts to move the slot from `from` into StageBusy, the
// "a worker is currently transitioning the target" sentinel (spec §5).
// Returns true if this goroutine is now the one synchronized to the slot.
func (s *OpState) TryBecomeBusy(from Stage) bool {
	return s.taskCount.CompareAndSwap(int32(from), int32(StageBusy))
}

// Publish sets the slot to `to` and wakes any parked waiters. Must only be
// called by the goroutine that is synchronized to the slot (i.e. holds
// StageBusy or is the only writer during initial construction).
func (s *OpState) Publish(to Stage) {
	s.taskCount.Store(int32(to))
	s.parkMu.Lock()
	close(s.park)
	s.park = make(chan struct{})
	s.parkMu.Unlock()
}

// Park blocks the calling goroutine until the slot's value changes away
// from StageBusy, then returns the new value. This is the "parkers" half
// of spec §4.D/§5: a thread that lost the TryBecomeBusy race waits here
// instead of busy-spinning, and participates in work-stealing via the
// caller's sched.Pool while it's logically blocked (see sched.WaitGuard).
func (s *OpState) Park() Stage {
	for {
		if v := s.Load(); v != StageBusy {
			return v
		}
		s.parkMu.Lock()
		ch := s.park
		s.parkMu.Unlock()
		<-ch
	}
}

// AtLeast reports whether the slot's current stage is at or past want,
// treating StageBusy as "not yet" regardless of want (a busy slot is
// mid-transition, so its eventual resting stage is unknown until a Park
// call observes it). Convenience for callers like package build that only
// care about "has apply() finished" rather than the exact stage.
func (s *OpState) AtLeast(want Stage) bool {
	cur := s.Load()
	return cur != StageBusy && cur >= want
}

// Dependents returns the dependents counter, initialized lazily by the
// first caller via InitDependents.
func (s *OpState) Dependents() *atomic.Int32 { return &s.dependents }

// InitDependents sets the initial dependents count. Must be called exactly
// once, before any DecrementDependents call; CountDependents (graph.go)
// calls it once the reverse-dependency count is known.
func (s *OpState) InitDependents(n int) { s.dependents.Store(int32(n)) }

// DecrementDependents atomically decrements and returns the new count, used
// by execute's "last" mode (spec §4.E step 1).
func (s *OpState) DecrementDependents() int32 { return s.dependents.Add(-1) }

// Rule returns the matched rule, set by the match engine when it advances
// the slot to StageMatched.
func (s *OpState) Rule() opaqueRule {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rule
}

// SetRule records the matched rule. Only called by the single goroutine
// synchronized to this slot.
func (s *OpState) SetRule(r opaqueRule) {
	s.mu.Lock()
	s.rule = r
	s.mu.Unlock()
}

// Recipe returns the recipe apply() installed.
func (s *OpState) Recipe() opaqueRecipe {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recipe
}

// SetRecipe records the recipe apply() produced.
func (s *OpState) SetRecipe(r opaqueRecipe) {
	s.mu.Lock()
	s.recipe = r
	s.mu.Unlock()
}

// State returns the target's resolved TargetState for this action.
func (s *OpState) State() TargetState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetState records the resolved state (set by execute, or by match on
// failure).
func (s *OpState) SetState(st TargetState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Err returns the error that caused this slot to fail, if any.
func (s *OpState) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// SetErr records a terminal failure (spec §4.D: "advance to a terminal
// failed state and record the error for propagation").
func (s *OpState) SetErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// Data returns the "side data" prerequisite list installed with SetData
// (spec §4.D "unmatch"). Package build does not use it: MatchPrerequisites
// keeps unmatch()'d prerequisites in the main list with Unmatched set.
func (s *OpState) Data() *PrerequisiteList {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data
}

// SetData installs the side-data prerequisite list.
func (s *OpState) SetData(d *PrerequisiteList) {
	s.mu.Lock()
	s.data = d
	s.mu.Unlock()
}

// Variables returns this slot's rule-specific variable map (spec §3
// "rule-specific variable map"), the innermost layer of the §4.B lookup
// chain.
func (s *OpState) Variables() *VariableMap {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.variables
}

// SetVariables installs the rule-specific variable map.
func (s *OpState) SetVariables(v *VariableMap) {
	s.mu.Lock()
	s.variables = v
	s.mu.Unlock()
}

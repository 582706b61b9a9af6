package build

import (
	"fmt"

	"github.com/forgebuild/forge/src/cli"
	"github.com/forgebuild/forge/src/core"
)

// UnmatchMode controls how MatchPrerequisite treats a prerequisite rule's
// unmatch() outcome (spec §4.D "unmatch").
type UnmatchMode int

const (
	// UnmatchNone requires the prerequisite to fully match normally.
	UnmatchNone UnmatchMode = iota
	// UnmatchSafe requests metadata-only matching: "for libraries, call
	// match_complete(unmatch::safe) so the library is not forced to
	// fully match-before-execute on dependents that only need its
	// metadata (exported preprocessor options, etc.)".
	UnmatchSafe
)

// Match drives target's (action, target) slot through the spec §4.D state
// machine to StageApplied. It always reaches StageApplied, even on
// failure, so parked waiters never hang; a failure is instead recorded via
// OpState.SetErr/SetState(StateFailed) (spec §7: "abort the current action
// ... structured diagnostic") and returned both here and from Err().
func Match(eng *Engine, actionID int, action core.Action, target *core.Target) error {
	op := target.OpState(actionID)

	if !op.TryAdvance(core.StageUntouched, core.StageTouched) {
		// Someone else is already driving (or has driven) this target
		// through match — possibly a diamond-shared prerequisite.
		// Fast-path (spec §4.D step 1) once it reaches StageApplied.
		waitForStage(op, core.StageApplied)
		return op.Err()
	}

	if !op.TryAdvance(core.StageTouched, core.StageTried) {
		panic(fmt.Sprintf("match: %s lost ownership between touched and tried", target.Key))
	}

	rule, err := selectRule(eng, action, target)
	if err != nil {
		return fail(op, err)
	}
	if !op.TryAdvance(core.StageTried, core.StageMatched) {
		panic(fmt.Sprintf("match: %s lost ownership between tried and matched", target.Key))
	}
	op.SetRule(rule)

	recipe, err := rule.Apply(eng, action, target)
	if err != nil {
		return fail(op, err)
	}
	op.SetRecipe(recipe)
	op.Publish(core.StageApplied)
	return nil
}

// fail records err on op and publishes StageApplied anyway: a failed
// target still needs to "complete" match so any parked dependent wakes up
// and observes the error via Err(), rather than hanging forever (spec §4.D
// "On any failure advance to a terminal failed state and record the error
// for propagation").
func fail(op *core.OpState, err error) error {
	op.SetState(core.StateFailed)
	op.SetErr(err)
	op.Publish(core.StageApplied)
	return err
}

// SelectRule exposes selectRule for callers outside this package that need
// to know which rule would claim a target without running match on it —
// the recipe package's byproduct race check (spec §7 supplement 1) probes
// a dynamically-discovered path's target this way before deciding whether
// recording it as a dependency would race with that rule's own recipe.
func SelectRule(eng *Engine, action core.Action, target *core.Target) (Rule, error) {
	return selectRule(eng, action, target)
}

// selectRule walks target's type and its ancestor chain, trying each
// type's rule bucket (already sorted by descending hint specificity, ties
// broken by registration order) and returning the first rule whose Match
// returns true. Spec §4.D step 2: "the first rule to return true is
// selected."
func selectRule(eng *Engine, action core.Action, target *core.Target) (Rule, error) {
	for typ := target.Key.Type; typ != nil; typ = typ.Parent {
		for _, r := range eng.Rules.Candidates(typ, action) {
			ok, err := r.Match(action, target)
			if err != nil {
				return nil, err
			}
			if ok {
				return r, nil
			}
		}
	}
	msg := fmt.Sprintf("no rule matches %s for action %s", target.Key, action)
	msg += cli.PrettyPrintSuggestion(action.String(), eng.Rules.ActionsFor(target.Key.Type), maxActionSuggestionDistance)
	return nil, core.NewUserError("%s", msg).With(target.Key, action.String())
}

// maxActionSuggestionDistance bounds how far an action string can be from
// one that does have a rule registered before selectRule stops suggesting
// it as a likely typo (spec §7 category 1 diagnostics).
const maxActionSuggestionDistance = 3

// MatchPrerequisite matches one prerequisite target for action. mode does
// not change what this function does: both modes run the same match.
// MatchPrerequisites (apply_helpers.go) keeps an UnmatchSafe entry in the
// main prerequisite list with Unmatched set, so ExecutePrerequisites skips
// it and CountDependents does not count it (spec §4.D "unmatch").
func MatchPrerequisite(eng *Engine, actionID int, action core.Action, target *core.Target, mode UnmatchMode) error {
	return Match(eng, actionID, action, target)
}

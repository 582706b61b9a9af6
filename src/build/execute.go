package build

import (
	"context"

	"github.com/forgebuild/forge/src/core"
)

// ExecuteMode selects one of the two dependent-driven recipe scheduling
// policies spec §4.E describes.
type ExecuteMode int

const (
	// ExecuteFirst runs the recipe at the first dependent's turn; other
	// dependents wait on the same OpState.
	ExecuteFirst ExecuteMode = iota
	// ExecuteLast runs the recipe only once every dependent has already
	// reached this target (dependents counted down to zero), maximizing
	// parallelism for e.g. an "update" action (spec §4.E).
	ExecuteLast
)

// Execute drives target's (action, target) slot through the spec §4.E
// execute algorithm and returns its resolved TargetState. Prerequisites
// are expected to already be at StageApplied (match must have completed
// for the whole closure before the first Execute call — see
// Engine.Perform); Execute itself does not recurse into prerequisites
// beyond what ExecutePrerequisites (apply_helpers.go) is asked to do by
// the recipe.
func Execute(eng *Engine, actionID int, action core.Action, target *core.Target, mode ExecuteMode) (core.TargetState, error) {
	op := target.OpState(actionID)

	if mode == ExecuteLast {
		if remaining := op.DecrementDependents(); remaining > 0 {
			// Not the last dependent; wait until whoever is/becomes
			// last publishes the resolved state (spec §4.E step 1).
			waitForStage(op, core.StageExecuted)
			return finalState(op)
		}
	}

	if !op.TryBecomeBusy(core.StageApplied) {
		// Another goroutine got here first (ExecuteFirst: first
		// dependent wins the race; ExecuteLast: a concurrent decrement
		// elsewhere already triggered execution). Wait for the result.
		waitForStage(op, core.StageExecuted)
		return finalState(op)
	}

	if matchErr := op.Err(); matchErr != nil {
		// This target (or a prerequisite match step recorded against
		// it) already failed during match; there is no recipe to run.
		op.Publish(core.StageExecuted)
		return core.StateFailed, matchErr
	}

	recipeVal := op.Recipe()
	if recipeVal == nil {
		op.SetState(core.StateUnchanged)
		op.Publish(core.StageExecuted)
		return core.StateUnchanged, nil
	}
	recipe, ok := recipeVal.(Recipe)
	if !ok {
		err := core.NewUserError("internal: opstate recipe for %s is not a build.Recipe", target.Key)
		op.SetState(core.StateFailed)
		op.SetErr(err)
		op.Publish(core.StageExecuted)
		return core.StateFailed, err
	}

	st, err := runRecipe(eng, recipe, target)
	if err != nil {
		op.SetState(core.StateFailed)
		op.SetErr(err)
		op.Publish(core.StageExecuted)
		return core.StateFailed, err
	}

	if st == core.StateGroup {
		st = groupState(target, actionID)
	}
	op.SetState(st)
	op.Publish(core.StageExecuted)
	return st, nil
}

// runRecipe invokes recipe, converting a panic into an error the way
// please's buildTarget recover()s a rule's panic so one target's bug
// doesn't take the whole scheduler down with it (spec §7 category 3
// "programming errors ... assertion", surfaced here as a recovered error
// rather than a process crash since the scheduler must keep running other
// independent targets).
func runRecipe(eng *Engine, recipe Recipe, target *core.Target) (st core.TargetState, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
			} else {
				err = core.NewUserError("recipe for %s panicked: %v", target.Key, r)
			}
		}
	}()
	return recipe(context.Background(), target)
}

// groupState implements spec §4.E step 3's "special return group": copy
// state (and, by extension, mtime) from the target's explicit group.
func groupState(target *core.Target, actionID int) core.TargetState {
	g := target.Group()
	if g == nil {
		return core.StateUnchanged
	}
	return g.OpState(actionID).State()
}

// finalState reads back the resolved state and any error recorded by
// whichever goroutine actually ran the recipe, for callers that parked.
func finalState(op *core.OpState) (core.TargetState, error) {
	return op.State(), op.Err()
}

// ExecutePrerequisites runs (or, for ExecuteFirst, joins) execute on every
// entry in target's resolved prerequisite list for actionID, honoring the
// Unmatched/Updated flags spec §4.E describes:
//   - entries with Unmatched set are skipped (they contributed only
//     metadata during match, per unmatch::safe);
//   - entries with Updated already set are skipped (idempotent re-walk,
//     e.g. a reverse pass after a straight one);
//   - reverse, if true, walks the list back-to-front; otherwise
//     front-to-back.
//
// The Adhoc flag is not consulted.
//
// Returns the aggregate of every executed prerequisite's error (nil if
// none failed), using core.AggregateErrors the way match's concurrent
// prerequisite matching does (spec §4.D "more than one can fail
// independently" applies equally on the execute side).
func ExecutePrerequisites(eng *Engine, actionID int, action core.Action, target *core.Target, mode ExecuteMode, reverse bool) error {
	pl := target.Prerequisites()
	if pl == nil {
		return nil
	}
	entries := pl.Entries
	wg := eng.newWaitGuard()
	walk := func(i int) {
		e := &entries[i]
		if e.Unmatched || e.Updated {
			return
		}
		prereq := e.Target
		wg.Go(func() error {
			_, err := Execute(eng, actionID, action, prereq, mode)
			return err
		})
		e.Updated = true
	}
	if reverse {
		for i := len(entries) - 1; i >= 0; i-- {
			walk(i)
		}
	} else {
		for i := range entries {
			walk(i)
		}
	}
	return wg.Wait()
}

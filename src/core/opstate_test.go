package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOpStateTryAdvance(t *testing.T) {
	op := newOpState()
	assert.Equal(t, StageUntouched, op.Load())
	assert.True(t, op.TryAdvance(StageUntouched, StageTouched))
	assert.Equal(t, StageTouched, op.Load())
	assert.False(t, op.TryAdvance(StageUntouched, StageTried), "stale from-value must not apply")
}

func TestOpStateBusyThenPublishWakesParkers(t *testing.T) {
	op := newOpState()
	assert.True(t, op.TryBecomeBusy(StageUntouched))
	assert.False(t, op.TryBecomeBusy(StageUntouched), "second caller must lose the race")

	done := make(chan Stage, 1)
	go func() { done <- op.Park() }()

	op.Publish(StageMatched)
	assert.Equal(t, StageMatched, <-done)
}

func TestOpStateParkReturnsImmediatelyIfNotBusy(t *testing.T) {
	op := newOpState()
	op.Publish(StageTouched)
	assert.Equal(t, StageTouched, op.Park())
}

func TestOpStateDependentsCountdown(t *testing.T) {
	op := newOpState()
	op.InitDependents(3)
	assert.EqualValues(t, 2, op.DecrementDependents())
	assert.EqualValues(t, 1, op.DecrementDependents())
	assert.EqualValues(t, 0, op.DecrementDependents())
}

func TestOpStateRuleRecipeAccessors(t *testing.T) {
	op := newOpState()
	op.SetRule("a-rule")
	op.SetRecipe("a-recipe")
	assert.Equal(t, "a-rule", op.Rule())
	assert.Equal(t, "a-recipe", op.Recipe())
}

func TestOpStateStateAndErr(t *testing.T) {
	op := newOpState()
	op.SetState(StateChanged)
	assert.Equal(t, StateChanged, op.State())

	assert.NoError(t, op.Err())
	op.SetErr(assertionError{"boom"})
	assert.Error(t, op.Err())
}

type assertionError struct{ msg string }

func (e assertionError) Error() string { return e.msg }

func TestOpStateDataAndVariables(t *testing.T) {
	op := newOpState()
	assert.Nil(t, op.Data())
	assert.Nil(t, op.Variables())

	pl := &PrerequisiteList{Entries: []PrerequisiteEntry{{}}}
	op.SetData(pl)
	assert.Same(t, pl, op.Data())

	vm := NewVariableMap()
	op.SetVariables(vm)
	assert.Same(t, vm, op.Variables())
}

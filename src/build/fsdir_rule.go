package build

import (
	"context"

	"github.com/forgebuild/forge/src/core"
)

// FsdirRule is the builtin rule for core.TypeFsdir targets (spec §6:
// "fsdir{}: represents a filesystem directory; its update is idempotent
// and may be invoked directly from match without a phase switch because
// directory creation is observation-idempotent"). It matches any fsdir{}
// target unconditionally — there is nothing to select between, since every
// fsdir{} target is handled the same way.
type FsdirRule struct{}

// Name implements Rule.
func (FsdirRule) Name() string { return "fsdir" }

// Hint implements Rule; fsdir has no meaningful specificity tiering since
// it's the only rule ever registered for this type.
func (FsdirRule) Hint() string { return "" }

// Match implements Rule: always true for an fsdir{} target.
func (FsdirRule) Match(action core.Action, target *core.Target) (bool, error) {
	return target.Key.Type.IsA(core.TypeFsdir), nil
}

// Apply implements Rule. Directory creation is cheap and idempotent
// enough that we do it right here during match rather than deferring a
// recipe to the execute phase — mirroring the spec's explicit license to
// invoke fsdir update "directly from match without a phase switch".
// Execute still runs a no-op recipe so the target's lifecycle looks like
// any other's to callers that don't special-case fsdir{}.
func (FsdirRule) Apply(eng *Engine, action core.Action, target *core.Target) (Recipe, error) {
	if err := core.UpdateFsdir(target.Key.Dir); err != nil {
		return nil, err
	}
	return func(ctx context.Context, target *core.Target) (core.TargetState, error) {
		return core.StateUnchanged, nil
	}, nil
}

// RegisterFsdirRule installs FsdirRule for every action named in actions
// on core.TypeFsdir; a build's bootstrap calls this once per Engine since
// directory materialization is action-agnostic (needed the same way for
// update, clean, etc.).
func RegisterFsdirRule(eng *Engine, actions ...core.Action) {
	for _, a := range actions {
		eng.Rules.Register(core.TypeFsdir, a, FsdirRule{})
	}
}

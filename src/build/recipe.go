package build

import (
	"context"

	"github.com/forgebuild/forge/src/core"
)

// A Recipe is the executable action a rule's Apply returns (spec GLOSSARY
// "Recipe: the executable action returned by a rule's apply"). It is a
// plain closure rather than a boxed interface value: spec §9 calls for "a
// type-erased callable holding up to a few machine words inline", which in
// Go a closure already is — rules are expected to capture whatever state
// they need (compiler path, flags, discovered headers) rather than stash
// it on the target's data pad.
//
// Returning core.StateGroup tells execute() to copy state and mtime from
// the target's group instead of trusting this return value (spec §4.E
// step 3 "special return group").
type Recipe func(ctx context.Context, target *core.Target) (core.TargetState, error)

// GroupRecipe is the shared recipe ad-hoc group members typically install
// (spec §4.D: "member recipes are typically group_recipe which simply
// returns the group's state").
func GroupRecipe(ctx context.Context, target *core.Target) (core.TargetState, error) {
	return core.StateGroup, nil
}

// NoopRecipe always reports unchanged without doing anything, for targets
// whose rule determined no action is needed (e.g. an up-to-date file with
// nothing to regenerate).
func NoopRecipe(ctx context.Context, target *core.Target) (core.TargetState, error) {
	return core.StateUnchanged, nil
}

package compile

import (
	"context"

	"github.com/forgebuild/forge/src/build"
	"github.com/forgebuild/forge/src/core"
)

// HeaderRule is the fallback rule for TypeHeader and TypeSource targets
// (spec §4.G enter_header's "unknown extensions default to plain h{}",
// generalized to cover a translation unit's own source file too, since
// step 5's fast-update of the source needs the identical exists-only
// treatment): a file that already exists on disk needs no recipe of its
// own, only an existence check. A project with generated headers
// registers its own TargetType with Parent: TypeHeader and a more
// specific rule; selectRule tries that type's own bucket before ever
// reaching one registered directly on TypeHeader.
type HeaderRule struct{}

// Name implements build.Rule.
func (HeaderRule) Name() string { return "header" }

// Hint implements build.Rule.
func (HeaderRule) Hint() string { return "" }

// Match implements build.Rule: any TypeHeader or TypeSource target.
func (HeaderRule) Match(action core.Action, target *core.Target) (bool, error) {
	return target.Key.Type.IsA(TypeHeader) || target.Key.Type.IsA(TypeSource), nil
}

// Noop implements recipe.NoopRule: an existence-only recipe never writes
// its target, so it never races with a dyndep tool discovering the same
// path as a byproduct.
func (HeaderRule) Noop(target *core.Target) bool { return true }

// Apply implements build.Rule. The returned recipe just confirms the
// header exists; a missing, non-generable header is spec §4.G's "Missing
// header that cannot be generated ⇒ fatal".
func (HeaderRule) Apply(eng *build.Engine, action core.Action, target *core.Target) (build.Recipe, error) {
	path, ok := target.PathState.Path()
	if !ok {
		return nil, core.NewUserError("header target %s has no resolved path", target.Key).With(target.Key, action.String())
	}
	return func(ctx context.Context, target *core.Target) (core.TargetState, error) {
		target.MtimeState.Load(path)
		if !target.MtimeState.Exists() {
			return core.StateFailed, core.NewUserError("missing header: %s", path).With(target.Key, "update")
		}
		return core.StateUnchanged, nil
	}, nil
}

// RegisterHeaderRule installs HeaderRule on eng's RuleSet for action.
func RegisterHeaderRule(eng *build.Engine, action core.Action) {
	eng.Rules.Register(TypeHeader, action, HeaderRule{})
}

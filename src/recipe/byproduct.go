package recipe

import (
	"path/filepath"
	"strings"

	"github.com/forgebuild/forge/src/build"
	"github.com/forgebuild/forge/src/core"
)

// NoopRule is implemented by a build.Rule whose recipe performs no real
// work beyond an existence check (compile.HeaderRule is one). verifyByproduct
// uses it to tell an ordinary, hand-maintained file from a target some
// other rule actually generates.
type NoopRule interface {
	// Noop reports whether this rule's recipe is a no-op for target.
	Noop(target *core.Target) bool
}

// verifyByproduct implements spec §7 supplement 1: when a byproduct
// dyndep file records a path that is itself a declared target with a
// non-noop recipe, that's a race (the ad-hoc recipe body and the build
// graph both think they own writing that file) and must fail the build
// rather than be silently trusted, exactly as build2's
// adhoc-rule-buildscript.cxx's "verify it has noop recipe" check does for
// every dynamic dependency past the ones already listed as static
// prerequisites.
//
// path is assumed absolute and normalized. pts are target's already-
// resolved static prerequisites (spec: "skip if this is one of the static
// prerequisites provided it was updated"); a byproduct entry matching one
// of those is not re-verified.
func verifyByproduct(eng *build.Engine, action core.Action, path string, pts []*core.Target) error {
	for _, pt := range pts {
		if p, ok := pt.PathState.Path(); ok && string(p) == path {
			return nil
		}
	}

	target, found := lookupTarget(eng, path)
	if !found {
		// Not a known target at all: an ordinary file on disk, no race
		// possible.
		return nil
	}

	rule, err := build.SelectRule(eng, action, target)
	if err != nil {
		// No rule claims this target for this action: it has no recipe
		// of its own, so recording it as a dependency is safe.
		return nil
	}
	if nr, ok := rule.(NoopRule); ok && nr.Noop(target) {
		return nil
	}
	return core.NewUserError(
		"byproduct dyndep recorded %s, which is a generated target with its own recipe: likely a race between the two", path,
	).With(target.Key, action.String())
}

// lookupTarget finds an already-inserted target at path without creating
// one, used purely for the byproduct race check (a target that doesn't
// exist yet obviously isn't racing with anything). The key it builds must
// match the convention compile.Rule.headerTarget and resolveTarget use
// (Name is the bare stem, Ext carries the extension separately) so a
// target inserted by either of those is actually found here rather than
// missed under a differently-shaped key.
func lookupTarget(eng *build.Engine, path string) (*core.Target, bool) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	typ := eng.Registry.TypeForExtension(ext)
	dir := core.DirPath(filepath.Dir(path))
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	key := core.NewTargetKey(typ, dir, core.Name(stem)).WithExt(core.PresentExt(ext))
	return eng.Store.Find(key)
}

package compile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/coreos/go-semver/semver"

	"github.com/forgebuild/forge/src/build"
	"github.com/forgebuild/forge/src/core"
	"github.com/forgebuild/forge/src/depdb"
)

// TargetConfig is the per-target configuration a caller (the layer that
// knows which source and libraries back a given obj{} target — outside
// this core's scope, per spec §1's explicit OUT OF SCOPE "loader/graph
// construction front end") supplies to Rule before Apply runs.
type TargetConfig struct {
	// Source is the {c,cxx} translation unit this object is compiled
	// from.
	Source *core.Target
	// Libraries are prerequisite library targets matched with
	// UnmatchSafe (spec §4.G step 2: "for libraries, call
	// match_complete(unmatch::safe) so the library is not forced to
	// fully match").
	Libraries []*core.Target
	// ExtraInputs are additional direct (non-header) inputs fast-updated
	// alongside Source in step 5, e.g. a preprocessed intermediate.
	ExtraInputs []*core.Target
	// Options is the full, ordered option list folded into the options
	// checksum and passed to the compiler: poptions, then coptions, then
	// language-standard flags, per spec §4.G step 3.3. IncludeDirs'
	// -I-style entries are expected to already be present here; Options
	// also feeds PrefixMap construction for resolving -MG paths.
	Options []string
}

// Rule implements build.Rule for core.TypeObj targets: the spec §4.G
// compile rule, the "showpiece" combining invalidation-chain tracking
// (package depdb) with dynamic header discovery (Extractor).
type Rule struct {
	Toolchain Toolchain
	// Binary is the compiler executable to invoke, e.g. "g++" or
	// "cl.exe".
	Binary string
	System  System
	Variant Variant
	// RuleID and Version feed the invalidation chain's first line (spec
	// §4.G step 3.1).
	RuleID  string
	Version semver.Version
	// Config resolves a target's TargetConfig; supplied by the caller
	// assembling the build graph.
	Config func(target *core.Target) (*TargetConfig, error)
	// WorkDir is the directory compiler subprocesses run in.
	WorkDir string
}

// Name implements build.Rule.
func (r *Rule) Name() string { return "compile." + r.Toolchain.Family() }

// Hint implements build.Rule. There is only ever one compile rule per obj
// type in a given Engine, so specificity tiering doesn't matter here.
func (r *Rule) Hint() string { return "" }

// Match implements build.Rule: any TypeObj target, for the "update"
// operation only (spec §4.G's apply is written for `apply(update, obj)`).
func (r *Rule) Match(action core.Action, target *core.Target) (bool, error) {
	return action.Operation == "update" && target.Key.Type.IsA(TypeObj), nil
}

// Apply implements spec §4.G steps 1-8. The expensive dependency-chain
// comparison and header extraction happen here, at apply() time, for
// every obj{} target regardless of whether it turns out to be up to date;
// only the real compiler invocation that produces the object file is
// deferred into the returned Recipe, conditioned on the "update" flag
// these steps computed.
func (r *Rule) Apply(eng *build.Engine, action core.Action, target *core.Target) (build.Recipe, error) {
	cfg, err := r.Config(target)
	if err != nil {
		return nil, err
	}
	if cfg.Source == nil {
		return nil, core.NewUserError("compile rule: %s has no configured source", target.Key).With(target.Key, action.String())
	}

	// Step 1: derive the output path.
	outExt := ObjExtension(r.System, r.Variant)
	outPath := core.Path(filepath.Join(string(target.Key.Dir), string(target.Key.Name)) + "." + outExt)
	target.PathState.SetPath(outPath)

	// Step 2: inject fsdir{dir} and start async match of declared
	// prerequisites.
	if err := core.UpdateFsdir(target.Key.Dir); err != nil {
		return nil, err
	}
	actionID := eng.ActionID(action)
	specs := make([]build.PrerequisiteSpec, 0, 1+len(cfg.Libraries))
	specs = append(specs, build.PrerequisiteSpec{Target: cfg.Source})
	for _, lib := range cfg.Libraries {
		specs = append(specs, build.PrerequisiteSpec{Target: lib, Unmatch: build.UnmatchSafe})
	}
	if _, err := build.MatchPrerequisites(eng, actionID, action, target, specs); err != nil {
		return nil, err
	}

	srcPath, ok := cfg.Source.PathState.Path()
	if !ok {
		return nil, core.NewUserError("compile rule: source for %s has no resolved path", target.Key).With(target.Key, action.String())
	}

	// Step 3: open <obj>.d and write the invalidation chain.
	depdbPath := string(outPath) + ".d"
	db, err := depdb.Open(depdbPath)
	if err != nil {
		return nil, err
	}
	chain := depdb.NewChain(db)
	if err := chain.RuleVersion(r.RuleID, r.Version); err != nil {
		db.Close()
		return nil, err
	}
	compilerSum, err := r.Toolchain.CompilerChecksum(context.Background())
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := chain.CompilerChecksum(compilerSum); err != nil {
		db.Close()
		return nil, err
	}
	if err := chain.OptionsChecksum([]byte(strings.Join(cfg.Options, "\x00"))); err != nil {
		db.Close()
		return nil, err
	}
	if err := chain.Path(string(srcPath)); err != nil {
		db.Close()
		return nil, err
	}

	// Step 4: determine mt / the update flag.
	update := db.Mode() == depdb.ModeWriting
	if !update {
		clean, cerr := depdb.CheckMtime(depdbPath, string(outPath))
		if cerr != nil || !clean {
			update = true
		}
	}

	// Step 5: fast-update the source plus any extra direct inputs.
	inputs := append([]*core.Target{cfg.Source}, cfg.ExtraInputs...)
	for _, in := range inputs {
		changed, uerr := r.updateTarget(eng, actionID, action, in)
		if uerr != nil {
			db.Close()
			return nil, uerr
		}
		if changed {
			update = true
		}
	}

	// Step 6: inject() header extraction.
	prefix := NewPrefixMap(string(target.Key.Dir), cfg.Options)
	resolver := NewHeaderResolver(string(srcPath.Dir()), prefix, NewRealpathCache())
	extractor := NewExtractor(chain, db, r.Toolchain, resolver, func(ctx context.Context, resolved string) (bool, error) {
		return r.updateHeaderPath(eng, actionID, action, resolved)
	}, r.Binary, r.depArgs(cfg), string(srcPath), r.WorkDir)
	hdrChanged, _, err := extractor.Inject(context.Background())
	if err != nil {
		db.Close()
		return nil, err
	}
	if hdrChanged {
		update = true
	}

	// Step 7: close depdb.
	if err := db.Close(); err != nil {
		return nil, err
	}

	// Step 8: cache mt.
	if update {
		target.MtimeState.SetNonexistent()
	} else {
		target.MtimeState.Load(outPath)
	}

	recipeUpdate := update
	srcStr, outStr := string(srcPath), string(outPath)
	opts := append([]string{}, cfg.Options...)
	return func(ctx context.Context, target *core.Target) (core.TargetState, error) {
		if !recipeUpdate {
			return core.StateUnchanged, nil
		}
		args := append(append([]string{}, opts...), "-c", srcStr, "-o", outStr)
		out, err := runOutput(ctx, r.WorkDir, r.Binary, args)
		if err != nil {
			return core.StateFailed, fmt.Errorf("compile %s: %w\n%s", srcStr, err, out)
		}
		// Step 8 already cached timestamp_nonexistent for this target
		// before the recipe ran (update was true); MtimeState.Load would
		// just replay that cached sentinel, so re-stat directly and
		// publish the real mtime now that the object file exists.
		info, statErr := os.Stat(outStr)
		if statErr != nil {
			return core.StateFailed, fmt.Errorf("compile %s: output missing after compile: %w", srcStr, statErr)
		}
		target.MtimeState.Set(info.ModTime())
		return core.StateChanged, nil
	}, nil
}

// depArgs returns the full dependency-extraction invocation for cfg's
// options (spec §4.G step 6's compile-phase compiler spawn).
func (r *Rule) depArgs(cfg *TargetConfig) []string {
	return cfg.Options
}

// updateTarget runs match then execute (ExecuteFirst — a header or source
// fast-update never has more than one caller racing on it concurrently
// within one obj{} target's apply, so there's no dependent count to defer
// to) for target under action, reporting whether it changed.
func (r *Rule) updateTarget(eng *build.Engine, actionID int, action core.Action, target *core.Target) (bool, error) {
	if err := build.Match(eng, actionID, action, target); err != nil {
		return false, err
	}
	st, err := build.Execute(eng, actionID, action, target, build.ExecuteFirst)
	if err != nil {
		return false, err
	}
	return st == core.StateChanged, nil
}

// updateHeaderPath resolves an absolute header path to its target (spec
// §4.G "enter_header"'s type-by-extension lookup), inserting it into the
// store the first time it's seen, then fast-updates it.
func (r *Rule) updateHeaderPath(eng *build.Engine, actionID int, action core.Action, path string) (bool, error) {
	target := r.headerTarget(eng, path)
	return r.updateTarget(eng, actionID, action, target)
}

func (r *Rule) headerTarget(eng *build.Engine, path string) *core.Target {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	typ := eng.Registry.TypeForExtension(ext)
	dir := core.DirPath(filepath.Dir(path))
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	key := core.NewTargetKey(typ, dir, core.Name(stem)).WithExt(core.PresentExt(ext))
	target, _ := eng.Store.Insert(key, true)
	target.PathState.SetPath(core.Path(path))
	return target
}

// RegisterRule installs r on eng's RuleSet for action.
func RegisterRule(eng *build.Engine, action core.Action, r *Rule) {
	eng.Rules.Register(TypeObj, action, r)
}

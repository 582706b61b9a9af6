package recipe

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

// Variant selects which of spec §4.H's two dyndep styles a Rule
// implements.
type Variant int

const (
	// VariantPreamble runs DyndepTool as part of Apply, populating depdb
	// and fast-updating discovered prerequisites before the recipe body
	// ever executes — the same shape as the compile rule's own
	// extraction step, generalized to an arbitrary tool.
	VariantPreamble Variant = iota
	// VariantByproduct lets the recipe body itself produce the
	// dependency file as a side effect; it can only be parsed and
	// verified after the body has actually run.
	VariantByproduct
)

// TargetConfig is the per-target configuration a caller (the layer
// assembling the build graph, outside this core's scope) supplies before
// Apply runs. target.PathState is expected to already carry the output
// path: unlike compile's obj{} family, an ad-hoc recipe output has no
// fixed extension to derive one from, so the caller that named the
// target in the first place is the one that knows its path.
type TargetConfig struct {
	// Body is the recipe's own command.
	Body *Script
	// DyndepTool is the VariantPreamble dependency-extraction command;
	// unused for VariantByproduct. Its combined output is parsed as a
	// make-rule dependency list (parseDepLines).
	DyndepTool *Script
	// ByproductFile is the path Body itself writes its dependency
	// information to (VariantByproduct only).
	ByproductFile string
	// Prerequisites are the static prerequisites known at apply-time.
	Prerequisites []*core.Target
	// DynTarget enables --dyn-target handling (spec §4.H): Body's
	// combined output, one path per non-blank line, is treated as the
	// full set of targets it produced this run.
	DynTarget bool
	// DynTargetType tags every path recorded under DynTarget.
	DynTargetType string
	// ProgramChecksum identifies the recipe interpreter itself (spec §6:
	// "program-checksum"); EnvChecksum folds in the resolved environment
	// ("environment-checksum"). Both feed the invalidation chain exactly
	// like the compile rule's compiler/options checksums do.
	ProgramChecksum []byte
	EnvChecksum     []byte
	// RuleID and Version feed the chain's first line.
	RuleID  string
	Version semver.Version
}

// Rule implements build.Rule for ad-hoc buildscript targets (spec §4.H),
// generalizing package compile's Rule from a fixed compiler invocation to
// an arbitrary user command in either dyndep variant.
type Rule struct {
	Variant Variant
	// Config resolves a target's TargetConfig; supplied by the caller
	// assembling the build graph.
	Config func(target *core.Target) (*TargetConfig, error)
}

// Name implements build.Rule.
func (r *Rule) Name() string {
	if r.Variant == VariantByproduct {
		return "recipe.byproduct"
	}
	return "recipe.preamble"
}

// Hint implements build.Rule.
func (r *Rule) Hint() string { return "" }

// Match implements build.Rule: any TypeOutput target, update operation
// only.
func (r *Rule) Match(action core.Action, target *core.Target) (bool, error) {
	return action.Operation == "update" && target.Key.Type.IsA(TypeOutput), nil
}

// Apply implements spec §4.H. Like compile.Rule.Apply, the invalidation
// chain and static-prerequisite fast-update happen here regardless of
// whether the target turns out to be up to date; only the body's actual
// invocation is deferred into the returned Recipe. VariantByproduct's
// dependency file can only be read after the body runs, so its
// verification and recording happen inside the Recipe closure instead —
// the one point this diverges structurally from compile.Rule.Apply.
func (r *Rule) Apply(eng *build.Engine, action core.Action, target *core.Target) (build.Recipe, error) {
	cfg, err := r.Config(target)
	if err != nil {
		return nil, err
	}
	if cfg.Body == nil {
		return nil, core.NewUserError("recipe rule: %s has no configured body", target.Key).With(target.Key, action.String())
	}
	outPath, ok := target.PathState.Path()
	if !ok {
		return nil, core.NewUserError("recipe rule: %s has no resolved path", target.Key).With(target.Key, action.String())
	}
	outStr := string(outPath)

	if err := core.UpdateFsdir(target.Key.Dir); err != nil {
		return nil, err
	}
	actionID := eng.ActionID(action)
	specs := make([]build.PrerequisiteSpec, 0, len(cfg.Prerequisites))
	for _, p := range cfg.Prerequisites {
		specs = append(specs, build.PrerequisiteSpec{Target: p})
	}
	if _, err := build.MatchPrerequisites(eng, actionID, action, target, specs); err != nil {
		return nil, err
	}

	ruleID := cfg.RuleID
	if ruleID == "" {
		ruleID = "recipe.adhoc"
	}

	depdbPath := outStr + ".d"
	db, err := depdb.Open(depdbPath)
	if err != nil {
		return nil, err
	}
	chain := depdb.NewChain(db)
	if err := chain.RuleVersion(ruleID, cfg.Version); err != nil {
		db.Close()
		return nil, err
	}
	if err := chain.Checksum([]byte(cfg.Body.Command)); err != nil {
		db.Close()
		return nil, err
	}
	if err := chain.Checksum(cfg.ProgramChecksum); err != nil {
		db.Close()
		return nil, err
	}
	if err := chain.Checksum(cfg.EnvChecksum); err != nil {
		db.Close()
		return nil, err
	}

	update := db.Mode() == depdb.ModeWriting
	// The usual depdb-mtime-vs-target check (depdb.CheckMtime) assumes
	// depdb is closed before the target is produced, exactly like
	// compile.Rule: stale metadata is always older than what it
	// describes. VariantByproduct breaks that ordering on purpose — the
	// dependency file can only be parsed after the body has already
	// written the target — so its depdb is necessarily closed *after*
	// the target exists, and the same check would report every build as
	// dirty. Byproduct mode instead relies solely on the chain header
	// match (db.Mode staying ModeReading) plus byproductDepsStale below.
	if !update && r.Variant == VariantPreamble {
		clean, cerr := depdb.CheckMtime(depdbPath, outStr)
		if cerr != nil || !clean {
			update = true
		}
	}

	for _, p := range cfg.Prerequisites {
		changed, uerr := updateTarget(eng, actionID, action, p)
		if uerr != nil {
			db.Close()
			return nil, uerr
		}
		if changed {
			update = true
		}
	}

	if r.Variant == VariantPreamble {
		changed, err := r.runPreambleDyndep(eng, actionID, action, chain, cfg)
		if err != nil {
			db.Close()
			return nil, err
		}
		if changed {
			update = true
		}
	} else if db.Mode() == depdb.ModeReading {
		// Byproduct mode cannot re-invoke the tool without running the
		// whole body, so the cache round only re-checks that every
		// previously recorded dependency still exists and isn't newer
		// than the target (spec §4.H).
		if byproductDepsStale(db, outStr) {
			update = true
		}
	}

	if err := db.Close(); err != nil {
		return nil, err
	}

	var oldDyn []dynTargetLine
	if cfg.DynTarget {
		oldDyn, err = readDynTargets(depdbPath)
		if err != nil {
			return nil, err
		}
	}

	if update {
		target.MtimeState.SetNonexistent()
	} else {
		target.MtimeState.Load(outPath)
	}

	recipeUpdate := update
	body := cfg.Body
	variant := r.Variant
	byproductFile := cfg.ByproductFile
	dynTarget := cfg.DynTarget
	dynTargetType := cfg.DynTargetType
	pts := cfg.Prerequisites
	eng2, action2 := eng, action

	return func(ctx context.Context, target *core.Target) (core.TargetState, error) {
		if !recipeUpdate {
			return core.StateUnchanged, nil
		}
		out, err := runScript(ctx, body)
		if err != nil {
			return core.StateFailed, fmt.Errorf("recipe %s: %w\n%s", outStr, err, out)
		}

		if variant == VariantByproduct {
			if err := recordByproductDeps(eng2, action2, depdbPath, ruleID, cfg.Version, body, cfg, byproductFile, pts); err != nil {
				return core.StateFailed, err
			}
		}

		if dynTarget {
			fresh := parseDynTargetOutput(out, dynTargetType)
			pruneStaleDynTargets(oldDyn, fresh)
			if err := writeDynTargets(depdbPath, fresh); err != nil {
				return core.StateFailed, err
			}
		}

		info, statErr := os.Stat(outStr)
		if statErr != nil {
			return core.StateFailed, fmt.Errorf("recipe %s: output missing after run: %w", outStr, statErr)
		}
		target.MtimeState.Set(info.ModTime())
		return core.StateChanged, nil
	}, nil
}

// runPreambleDyndep runs cfg.DyndepTool, parses its output as a make-rule
// dependency list, records each path on chain, and fast-updates it,
// mirroring compile.Extractor's header-discovery loop generalized to an
// arbitrary tool instead of a compiler's -MF output.
func (r *Rule) runPreambleDyndep(eng *build.Engine, actionID int, action core.Action, chain *depdb.Chain, cfg *TargetConfig) (bool, error) {
	if cfg.DyndepTool == nil {
		return false, nil
	}
	out, err := runScript(context.Background(), cfg.DyndepTool)
	if err != nil {
		return false, fmt.Errorf("dyndep tool failed: %w\n%s", err, out)
	}
	deps, err := parseDepLines(strings.NewReader(out))
	if err != nil {
		return false, err
	}
	changed := false
	for _, d := range deps {
		if err := chain.Path(d); err != nil {
			return false, err
		}
		target := resolveTarget(eng, d)
		upd, err := updateTarget(eng, actionID, action, target)
		if err != nil {
			return false, err
		}
		if upd {
			changed = true
		}
	}
	return changed, nil
}

// byproductDepsStale re-checks a byproduct chain's already-recorded
// dependency paths without re-running the body: each must still exist and
// must not be newer than targetPath.
func byproductDepsStale(db *depdb.Depdb, targetPath string) bool {
	targetInfo, err := os.Stat(targetPath)
	if err != nil {
		return true
	}
	for {
		line, ok := db.NextStored()
		if !ok {
			return false
		}
		info, err := os.Stat(line)
		if err != nil {
			return true
		}
		if info.ModTime().After(targetInfo.ModTime()) {
			return true
		}
		db.Accept(line)
	}
}

// recordByproductDeps re-opens depdbPath after the recipe body has run,
// replays the chain's fixed header (rule id/version, body command,
// program and environment checksums) to reach the same position Apply left off at,
// then parses byproductFile and verifies and records each dependency it
// names (spec §4.H, spec §7 supplement 1).
func recordByproductDeps(eng *build.Engine, action core.Action, depdbPath, ruleID string, version semver.Version, body *Script, cfg *TargetConfig, byproductFile string, pts []*core.Target) error {
	db, err := depdb.Reopen(depdbPath)
	if err != nil {
		return err
	}
	chain := depdb.NewChain(db)
	if err := chain.RuleVersion(ruleID, version); err != nil {
		db.Close()
		return err
	}
	if err := chain.Checksum([]byte(body.Command)); err != nil {
		db.Close()
		return err
	}
	if err := chain.Checksum(cfg.ProgramChecksum); err != nil {
		db.Close()
		return err
	}
	if err := chain.Checksum(cfg.EnvChecksum); err != nil {
		db.Close()
		return err
	}

	f, err := os.Open(byproductFile)
	if err != nil {
		db.Close()
		return err
	}
	deps, perr := parseDepLines(f)
	f.Close()
	if perr != nil {
		db.Close()
		return perr
	}
	for _, d := range deps {
		if verr := verifyByproduct(eng, action, d, pts); verr != nil {
			db.Close()
			return verr
		}
		if err := chain.Path(d); err != nil {
			db.Close()
			return err
		}
	}
	return db.Close()
}

// parseDynTargetOutput treats out's non-blank lines as the dynamic-target
// paths Body produced this run (spec §4.H "--dyn-target").
func parseDynTargetOutput(out, typeName string) []dynTargetLine {
	var lines []dynTargetLine
	for _, raw := range strings.Split(out, "\n") {
		path := strings.TrimSpace(raw)
		if path == "" {
			continue
		}
		lines = append(lines, dynTargetLine{typeName: typeName, path: path})
	}
	return lines
}

// resolveTarget resolves an absolute path discovered via dyndep to its
// target, inserting it into the store the first time it's seen. The key
// shape matches compile.Rule.headerTarget's convention (Name is the bare
// stem, Ext carries the extension separately) so a path both packages
// discover resolves to the same target.
func resolveTarget(eng *build.Engine, path string) *core.Target {
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

// updateTarget runs match then execute for target under action, reporting
// whether it changed.
func updateTarget(eng *build.Engine, actionID int, action core.Action, target *core.Target) (bool, error) {
	if err := build.Match(eng, actionID, action, target); err != nil {
		return false, err
	}
	st, err := build.Execute(eng, actionID, action, target, build.ExecuteFirst)
	if err != nil {
		return false, err
	}
	return st == core.StateChanged, nil
}

// RegisterRule installs r on eng's RuleSet for action.
func RegisterRule(eng *build.Engine, action core.Action, r *Rule) {
	eng.Rules.Register(TypeOutput, action, r)
}

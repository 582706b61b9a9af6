package recipe

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/coreos/go-semver/semver"
	"github.com/stretchr/testify/assert"

	"github.com/forgebuild/forge/src/build"
	"github.com/forgebuild/forge/src/compile"
	"github.com/forgebuild/forge/src/core"
)

func newRecipeTestEngine() *build.Engine {
	eng := build.NewEngine(context.Background(), 4)
	RegisterTypes(eng.Registry)
	compile.RegisterTypes(eng.Registry)
	eng.Rules.Register(compile.TypeHeader, testUpdateAction, compile.HeaderRule{})
	eng.Rules.Register(compile.TypeSource, testUpdateAction, compile.HeaderRule{})
	return eng
}

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	assert.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// fakeRunScript substitutes runScript with a stub dispatching on the
// Script's Command string, so tests can simulate a dyndep tool and a
// recipe body without spawning any real process.
func fakeRunScript(t *testing.T, handlers map[string]func() (string, error)) func() {
	t.Helper()
	orig := runScript
	runScript = func(ctx context.Context, s *Script) (string, error) {
		h, ok := handlers[s.Command]
		if !ok {
			t.Fatalf("unexpected script invocation: %q", s.Command)
		}
		return h()
	}
	return func() { runScript = orig }
}

func TestPreambleRuleFreshBuildRunsDyndepAndBody(t *testing.T) {
	dir := t.TempDir()
	depHeaderPath := filepath.Join(dir, "dep.h")
	writeTestFile(t, depHeaderPath, "content\n")
	outPath := filepath.Join(dir, "out.gen")

	restore := fakeRunScript(t, map[string]func() (string, error){
		"dep-tool": func() (string, error) {
			return "out.gen: " + depHeaderPath + "\n", nil
		},
		"build-tool": func() (string, error) {
			assert.NoError(t, os.WriteFile(outPath, []byte("built\n"), 0o644))
			return "", nil
		},
	})
	defer restore()

	eng := newRecipeTestEngine()
	rule := &Rule{
		Variant: VariantPreamble,
		Config: func(target *core.Target) (*TargetConfig, error) {
			return &TargetConfig{
				Body:       &Script{Command: "build-tool", WorkDir: dir},
				DyndepTool: &Script{Command: "dep-tool", WorkDir: dir},
				RuleID:     "recipe.fake",
				Version:    semver.Version{Major: 1},
			}, nil
		},
	}
	RegisterRule(eng, testUpdateAction, rule)

	outTarget, _ := eng.Store.Insert(core.NewTargetKey(TypeOutput, core.DirPath(dir), core.Name("out.gen")), false)
	outTarget.PathState.SetPath(core.Path(outPath))

	assert.NoError(t, eng.Perform(testUpdateAction, []*core.Target{outTarget}, build.ExecuteFirst))

	op := outTarget.OpState(eng.ActionID(testUpdateAction))
	assert.Equal(t, core.StateChanged, op.State())

	_, statErr := os.Stat(outPath + ".d")
	assert.NoError(t, statErr, "depdb file must be left on disk after a fresh build")
}

func TestPreambleRuleNoOpRebuildSkipsBody(t *testing.T) {
	dir := t.TempDir()
	depHeaderPath := filepath.Join(dir, "dep.h")
	writeTestFile(t, depHeaderPath, "content\n")
	outPath := filepath.Join(dir, "out.gen")

	bodyCalls := 0
	restore := fakeRunScript(t, map[string]func() (string, error){
		"dep-tool": func() (string, error) {
			return "out.gen: " + depHeaderPath + "\n", nil
		},
		"build-tool": func() (string, error) {
			bodyCalls++
			assert.NoError(t, os.WriteFile(outPath, []byte("built\n"), 0o644))
			return "", nil
		},
	})
	defer restore()

	buildOnce := func() *core.Target {
		eng := newRecipeTestEngine()
		rule := &Rule{
			Variant: VariantPreamble,
			Config: func(target *core.Target) (*TargetConfig, error) {
				return &TargetConfig{
					Body:       &Script{Command: "build-tool", WorkDir: dir},
					DyndepTool: &Script{Command: "dep-tool", WorkDir: dir},
					RuleID:     "recipe.fake",
					Version:    semver.Version{Major: 1},
				}, nil
			},
		}
		RegisterRule(eng, testUpdateAction, rule)
		outTarget, _ := eng.Store.Insert(core.NewTargetKey(TypeOutput, core.DirPath(dir), core.Name("out.gen")), false)
		outTarget.PathState.SetPath(core.Path(outPath))
		assert.NoError(t, eng.Perform(testUpdateAction, []*core.Target{outTarget}, build.ExecuteFirst))
		return outTarget
	}

	first := buildOnce()
	assert.Equal(t, core.StateChanged, first.OpState(0).State())
	assert.Equal(t, 1, bodyCalls)

	// Body runs and writes outPath some time after the first Apply closed
	// the depdb (spec §4.H's invalidation-chain ordering mirrors compile's
	// depdb-before-artifact write order for the preamble variant); push
	// outPath's mtime comfortably ahead so CheckMtime's second-granularity
	// comparison isn't ambiguous in a fast test run.
	future := time.Now().Add(24 * time.Hour)
	assert.NoError(t, os.Chtimes(outPath, future, future))

	second := buildOnce()
	assert.Equal(t, core.StateUnchanged, second.OpState(0).State())
	assert.Equal(t, 1, bodyCalls, "a clean rebuild must not re-run the recipe body")
}

func TestByproductRuleFreshBuildThenNoOpRebuild(t *testing.T) {
	dir := t.TempDir()
	plainInput := filepath.Join(dir, "plain.txt")
	writeTestFile(t, plainInput, "untracked input\n")
	outPath := filepath.Join(dir, "out.gen")
	byproductFile := filepath.Join(dir, "out.byp.d")

	bodyCalls := 0
	restore := fakeRunScript(t, map[string]func() (string, error){
		"build-byproduct": func() (string, error) {
			bodyCalls++
			assert.NoError(t, os.WriteFile(outPath, []byte("built\n"), 0o644))
			assert.NoError(t, os.WriteFile(byproductFile, []byte("out.gen: "+plainInput+"\n"), 0o644))
			return "", nil
		},
	})
	defer restore()

	buildOnce := func() *core.Target {
		eng := newRecipeTestEngine()
		rule := &Rule{
			Variant: VariantByproduct,
			Config: func(target *core.Target) (*TargetConfig, error) {
				return &TargetConfig{
					Body:          &Script{Command: "build-byproduct", WorkDir: dir},
					ByproductFile: byproductFile,
					RuleID:        "recipe.fake-byproduct",
					Version:       semver.Version{Major: 1},
				}, nil
			},
		}
		RegisterRule(eng, testUpdateAction, rule)
		outTarget, _ := eng.Store.Insert(core.NewTargetKey(TypeOutput, core.DirPath(dir), core.Name("out.gen")), false)
		outTarget.PathState.SetPath(core.Path(outPath))
		assert.NoError(t, eng.Perform(testUpdateAction, []*core.Target{outTarget}, build.ExecuteFirst))
		return outTarget
	}

	first := buildOnce()
	assert.Equal(t, core.StateChanged, first.OpState(0).State())
	assert.Equal(t, 1, bodyCalls)

	second := buildOnce()
	assert.Equal(t, core.StateUnchanged, second.OpState(0).State(), "a clean byproduct rebuild must not re-run the body")
	assert.Equal(t, 1, bodyCalls, "body must not be invoked again")
}

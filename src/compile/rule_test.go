package compile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/coreos/go-semver/semver"
	"github.com/stretchr/testify/assert"

	"github.com/forgebuild/forge/src/build"
	"github.com/forgebuild/forge/src/core"
)

func newTestEngine() *build.Engine {
	eng := build.NewEngine(context.Background(), 4)
	RegisterTypes(eng.Registry)
	return eng
}

var updateAction = core.Action{MetaOperation: "perform", Operation: "update"}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	assert.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// fakeCompileRunOutput substitutes runOutput with a stub that still writes
// the requested object file when it sees a "-o <path>" pair, so the compile
// Rule's post-compile re-stat (rule.go's Apply step 8 / recipe) has a real
// file to observe, without spawning any real compiler.
func fakeCompileRunOutput(t *testing.T) func() {
	t.Helper()
	orig := runOutput
	runOutput = func(ctx context.Context, dir, name string, args []string) (string, error) {
		for i, a := range args {
			if a == "-o" && i+1 < len(args) {
				if err := os.WriteFile(args[i+1], []byte("object\n"), 0o644); err != nil {
					return "", err
				}
			}
		}
		return "", nil
	}
	return func() { runOutput = orig }
}

func TestCompileRuleFreshBuildCompilesAndCachesMtime(t *testing.T) {
	restore := fakeCompileRunOutput(t)
	defer restore()

	dir := t.TempDir()
	srcPath := filepath.Join(dir, "src.cxx")
	writeFile(t, srcPath, "int main() {}\n")

	eng := newTestEngine()
	eng.Rules.Register(TypeSource, updateAction, HeaderRule{})
	eng.Rules.Register(TypeHeader, updateAction, HeaderRule{})

	srcTarget, _ := eng.Store.Insert(core.NewTargetKey(TypeSource, core.DirPath(dir), core.Name("src")), false)
	srcTarget.PathState.SetPath(core.Path(srcPath))

	tc := &fakeToolchain{responses: [][]string{{}}}
	rule := &Rule{
		Toolchain: tc,
		Binary:    "fake-cc",
		System:    SystemELF,
		Variant:   VariantExe,
		RuleID:    "compile.fake",
		Version:   semver.Version{Major: 1},
		WorkDir:   dir,
		Config: func(target *core.Target) (*TargetConfig, error) {
			return &TargetConfig{Source: srcTarget, Options: []string{"-I."}}, nil
		},
	}
	RegisterRule(eng, updateAction, rule)

	objTarget, _ := eng.Store.Insert(core.NewTargetKey(TypeObj, core.DirPath(dir), core.Name("out")), false)

	err := eng.Perform(updateAction, []*core.Target{objTarget}, build.ExecuteFirst)
	assert.NoError(t, err)

	op := objTarget.OpState(eng.ActionID(updateAction))
	assert.Equal(t, core.StateChanged, op.State())
	path, ok := objTarget.PathState.Path()
	assert.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "out")+".o", string(path))
	assert.True(t, objTarget.MtimeState.Exists(), "the recipe must cache the compiled object's real mtime, not the nonexistent sentinel")

	depdbPath := string(path) + ".d"
	_, statErr := os.Stat(depdbPath)
	assert.NoError(t, statErr, "depdb file must be left on disk after a fresh build")
}

func TestCompileRuleDiscoveredHeaderTargetKeyHasNoDoubleExtension(t *testing.T) {
	restore := fakeCompileRunOutput(t)
	defer restore()

	dir := t.TempDir()
	srcPath := filepath.Join(dir, "src.cxx")
	writeFile(t, srcPath, "#include \"dep.h\"\n")
	depPath := filepath.Join(dir, "dep.h")
	writeFile(t, depPath, "\n")

	eng := newTestEngine()
	eng.Rules.Register(TypeSource, updateAction, HeaderRule{})
	eng.Rules.Register(TypeHeader, updateAction, HeaderRule{})

	srcTarget, _ := eng.Store.Insert(core.NewTargetKey(TypeSource, core.DirPath(dir), core.Name("src")), false)
	srcTarget.PathState.SetPath(core.Path(srcPath))

	tc := &fakeToolchain{responses: [][]string{{"dep.h"}}}
	rule := &Rule{
		Toolchain: tc,
		Binary:    "fake-cc",
		System:    SystemELF,
		Variant:   VariantExe,
		RuleID:    "compile.fake",
		Version:   semver.Version{Major: 1},
		WorkDir:   dir,
		Config: func(target *core.Target) (*TargetConfig, error) {
			return &TargetConfig{Source: srcTarget, Options: []string{"-I."}}, nil
		},
	}
	RegisterRule(eng, updateAction, rule)

	objTarget, _ := eng.Store.Insert(core.NewTargetKey(TypeObj, core.DirPath(dir), core.Name("out")), false)
	assert.NoError(t, eng.Perform(updateAction, []*core.Target{objTarget}, build.ExecuteFirst))

	headerTarget, found := eng.Store.Find(
		core.NewTargetKey(TypeHeader, core.DirPath(dir), core.Name("dep")).WithExt(core.PresentExt("h")),
	)
	assert.True(t, found, "the discovered header must be keyed by its bare stem, not its full basename")
	assert.Equal(t, filepath.Join(dir, "dep")+".h{header}", headerTarget.Key.String())
}

func TestCompileRuleNoOpRebuildSkipsCompiler(t *testing.T) {
	restore := fakeCompileRunOutput(t)
	defer restore()

	dir := t.TempDir()
	srcPath := filepath.Join(dir, "src.cxx")
	writeFile(t, srcPath, "int main() {}\n")
	objPath := filepath.Join(dir, "out.o")
	writeFile(t, objPath, "stale object bytes\n")

	buildOnce := func() *build.Engine {
		eng := newTestEngine()
		eng.Rules.Register(TypeSource, updateAction, HeaderRule{})
		eng.Rules.Register(TypeHeader, updateAction, HeaderRule{})
		srcTarget, _ := eng.Store.Insert(core.NewTargetKey(TypeSource, core.DirPath(dir), core.Name("src")), false)
		srcTarget.PathState.SetPath(core.Path(srcPath))
		tc := &fakeToolchain{responses: [][]string{{}}}
		rule := &Rule{
			Toolchain: tc, Binary: "fake-cc", System: SystemELF, Variant: VariantExe,
			RuleID: "compile.fake", Version: semver.Version{Major: 1}, WorkDir: dir,
			Config: func(target *core.Target) (*TargetConfig, error) {
				return &TargetConfig{Source: srcTarget, Options: []string{"-I."}}, nil
			},
		}
		RegisterRule(eng, updateAction, rule)
		return eng
	}

	eng1 := buildOnce()
	obj1, _ := eng1.Store.Insert(core.NewTargetKey(TypeObj, core.DirPath(dir), core.Name("out")), false)
	assert.NoError(t, eng1.Perform(updateAction, []*core.Target{obj1}, build.ExecuteFirst))

	// Bump the actual object file's mtime ahead of the depdb written during
	// the first pass, simulating a pre-existing, already-built artifact.
	future := time.Now().Add(24 * time.Hour)
	assert.NoError(t, os.Chtimes(objPath, future, future))

	eng2 := buildOnce()
	obj2, _ := eng2.Store.Insert(core.NewTargetKey(TypeObj, core.DirPath(dir), core.Name("out")), false)
	assert.NoError(t, eng2.Perform(updateAction, []*core.Target{obj2}, build.ExecuteFirst))

	op2 := obj2.OpState(eng2.ActionID(updateAction))
	assert.Equal(t, core.StateUnchanged, op2.State(), "a clean rebuild with an unchanged chain must not recompile")
}

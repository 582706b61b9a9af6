// Command forge is a thin demonstration driver for the build engine in
// src/build and src/compile: enough of a CLI to compile a single {c,cxx}
// translation unit, discovering the headers it includes as real
// prerequisites along the way. It is not a build-file parser or project
// loader (SPEC_FULL §1 keeps those explicitly out of scope); the target
// graph it builds is wired up here in Go rather than read from any
// description format.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/coreos/go-semver/semver"
	"gopkg.in/op/go-logging.v1"

	"github.com/forgebuild/forge/src/build"
	"github.com/forgebuild/forge/src/cli"
	"github.com/forgebuild/forge/src/compile"
	"github.com/forgebuild/forge/src/core"
)

var log = logging.MustGetLogger("forge")

var opts struct {
	Usage     string        `usage:"forge builds a single C/C++ translation unit, demonstrating the compile rule's invalidation-chain tracking and dynamic header discovery."`
	Verbosity cli.Verbosity `short:"v" long:"verbosity" description:"Verbosity of output (error, warning, notice, info, debug)" default:"warning"`
	CC        string        `long:"cc" description:"Compiler binary to invoke" default:"cc"`
	Args      struct {
		Source string `positional-arg-name:"source" required:"true" description:"C/C++ source file to compile"`
	} `positional-args:"true" required:"true"`
}

func main() {
	cli.ParseFlagsOrDie("forge", "0.1.0", &opts)
	cli.InitLogging(opts.Verbosity)

	if err := run(); err != nil {
		log.Fatalf("%s", err)
	}
}

func run() error {
	srcPath, err := filepath.Abs(opts.Args.Source)
	if err != nil {
		return fmt.Errorf("resolving source path: %w", err)
	}
	if _, err := os.Stat(srcPath); err != nil {
		return fmt.Errorf("source file: %w", err)
	}

	eng := build.NewEngine(context.Background(), 4)
	compile.RegisterTypes(eng.Registry)

	action := core.Action{MetaOperation: "perform", Operation: "update"}
	eng.Rules.Register(compile.TypeSource, action, compile.HeaderRule{})
	eng.Rules.Register(compile.TypeHeader, action, compile.HeaderRule{})

	dir := filepath.Dir(srcPath)
	base := filepath.Base(srcPath)
	stem := base[:len(base)-len(filepath.Ext(base))]

	srcTarget, _ := eng.Store.Insert(core.NewTargetKey(compile.TypeSource, core.DirPath(dir), core.Name(stem)), false)
	srcTarget.PathState.SetPath(core.Path(srcPath))

	objTarget, _ := eng.Store.Insert(core.NewTargetKey(compile.TypeObj, core.DirPath(dir), core.Name(stem)), false)

	rule := &compile.Rule{
		Toolchain: compile.NewGCCToolchain(opts.CC),
		Binary:    opts.CC,
		System:    compile.SystemELF,
		Variant:   compile.VariantExe,
		RuleID:    "forge.compile",
		Version:   semver.Version{Major: 1},
		WorkDir:   dir,
		Config: func(target *core.Target) (*compile.TargetConfig, error) {
			return &compile.TargetConfig{Source: srcTarget}, nil
		},
	}
	compile.RegisterRule(eng, action, rule)

	if err := eng.Perform(action, []*core.Target{objTarget}, build.ExecuteFirst); err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	outPath, _ := objTarget.PathState.Path()
	op := objTarget.OpState(eng.ActionID(action))
	fmt.Printf("%s: %s\n", outPath, op.State())
	return nil
}

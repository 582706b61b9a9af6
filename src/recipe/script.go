// Package recipe implements spec §4.H's ad-hoc buildscript rule: the
// generalization of the compile rule (package compile) to an arbitrary
// user-supplied command, in both its preamble-dyndep and byproduct-dyndep
// forms.
package recipe

import (
	"context"
	"os/exec"
	"strings"

	"github.com/alessio/shellescape"
	"github.com/google/shlex"
	"gopkg.in/op/go-logging.v1"
)

var log = logging.MustGetLogger("recipe")

// Script is one recipe body or dyndep-tool invocation: a single
// shell-style command line split the way a shell would, without actually
// invoking one (grounded on please's workerCommandAndArgs/build_step.go,
// which shlex.Splits a recorded command string the same way before
// exec'ing it directly).
type Script struct {
	// Command is the unparsed command line, e.g. "gcc -MF out.d -c a.cxx".
	Command string
	// WorkDir is the directory the command runs in.
	WorkDir string
	// Env, if non-nil, replaces the subprocess's inherited environment
	// (spec §5 "process environment ... is never mutated; all child
	// processes receive explicit cwd").
	Env []string
}

// Args splits s.Command into argv.
func (s *Script) Args() ([]string, error) {
	return shlex.Split(s.Command)
}

// Trace renders s.Command the way a shell would echo it back, quoting
// arguments that need it, for --dry-run/trace diagnostics.
func (s *Script) Trace() (string, error) {
	args, err := s.Args()
	if err != nil {
		return "", err
	}
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = shellescape.Quote(a)
	}
	return strings.Join(quoted, " "), nil
}

// runScript is a package-level var so tests can substitute a fake process
// runner, the same seam compile.toolchain.go's runOutput provides.
var runScript = func(ctx context.Context, s *Script) (string, error) {
	args, err := s.Args()
	if err != nil {
		return "", err
	}
	if len(args) == 0 {
		return "", nil
	}
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = s.WorkDir
	if s.Env != nil {
		cmd.Env = s.Env
	}
	out, err := cmd.CombinedOutput()
	return string(out), err
}

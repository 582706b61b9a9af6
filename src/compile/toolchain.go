// Package compile implements the spec §4.G compile rule: compiling one
// {c,cxx} source into an obj{e,a,s} variant while discovering the headers
// it includes so they participate as real prerequisites on later builds.
package compile

import (
	"bufio"
	"context"
	"io"
	"os/exec"

	"gopkg.in/op/go-logging.v1"
)

var log = logging.MustGetLogger("compile")

// Variant is the object-file flavor a compile rule targets, spec §4.G's
// triple of (target-system, obj-variant) mapped down to three cases: a
// plain executable object, a static-library member, or a shared-library
// member (whose extensions differ, e.g. "-fPIC" applies only to shared).
type Variant int

const (
	VariantExe Variant = iota
	VariantStatic
	VariantShared
)

// System is the target system family, spec §4.G's extension table rows.
type System int

const (
	SystemELF System = iota
	SystemDarwin
	SystemMingw
	SystemMSVCWin32
)

// ObjExtension returns the object-file extension for (system, variant),
// spec §4.G's extension table.
func ObjExtension(sys System, variant Variant) string {
	switch sys {
	case SystemMSVCWin32:
		switch variant {
		case VariantStatic:
			return "lib.obj"
		case VariantShared:
			return "dll.obj"
		default:
			return "exe.obj"
		}
	case SystemMingw:
		switch variant {
		case VariantStatic:
			return "a.o"
		case VariantShared:
			return "dll.o"
		default:
			return "exe.o"
		}
	case SystemDarwin:
		switch variant {
		case VariantStatic:
			return "a.o"
		case VariantShared:
			return "dylib.o"
		default:
			return "o"
		}
	default: // ELF and anything else
		switch variant {
		case VariantStatic:
			return "a.o"
		case VariantShared:
			return "so.o"
		default:
			return "o"
		}
	}
}

// A Toolchain abstracts the two dependency-output dialects spec §4.G/§6
// describe (GCC/Clang's make-rule output, MSVC's /showIncludes notes),
// generalized per SPEC_FULL §6's strategy-pattern supplement so a third
// toolchain could be added without touching the extractor in extract.go.
// Grounded on please's own one-package-per-language-backend pattern
// (build/go, build/java share a common Rule shape).
type Toolchain interface {
	// Family is a short identifier for logging/diagnostics, e.g. "gcc" or
	// "msvc".
	Family() string

	// CompilerChecksum returns the bytes that should be digested into
	// the depdb's compiler-identity line (spec §4.G step 3.2): "covers
	// compiler identity and default target".
	CompilerChecksum(ctx context.Context) ([]byte, error)

	// DepArgs returns the extra command-line flags that make the
	// compiler emit preprocessor-only dependency output for src,
	// optionally via an intermediate depfile path (used by the GCC
	// family, which "cannot stream and preprocess simultaneously" per
	// spec §6 and so writes to -MF instead).
	DepArgs(src, depfile string) []string

	// Args returns the full invocation (binary + arguments) for
	// extracting dependency information from src, given the base
	// compile options the rule was configured with.
	Args(src string, baseOpts []string, depfile string) []string

	// ParseDeps parses this toolchain's dependency-output dialect from
	// r, returning every header path it reports, in the order reported.
	ParseDeps(r io.Reader) ([]string, error)

	// MissingHeader inspects a failed run's captured stderr/stdout for a
	// "missing include" diagnostic (spec §6: MSVC's C1083; GCC/Clang
	// report the same idea as a fatal "file not found" on stderr). If
	// found, it returns the quoted path and true so the extractor can
	// treat the failure as a "good error" rather than fatal.
	MissingHeader(output string) (path string, ok bool)
}

// runOutput runs name with args, returning combined stdout+stderr and the
// process error (nil on a zero exit code). Extracted as a var so tests can
// substitute a fake without actually spawning a process.
var runOutput = func(ctx context.Context, dir, name string, args []string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// scanLines is a small helper shared by both dependency parsers: splits r
// into lines without choking on a final line lacking a trailing newline.
func scanLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

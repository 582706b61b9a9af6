package recipe

import (
	"io"

	"github.com/forgebuild/forge/src/compile"
)

// parseDepLines parses a make-rule-style dependency file (spec §6: "the
// body itself produces the dependency file (e.g., gcc -MF)") the same way
// package compile parses a GCC/Clang compiler's `-MF` output. A fresh,
// binary-less GCC toolchain is constructed purely for its ParseDeps
// method; no compiler is ever invoked through it here.
func parseDepLines(r io.Reader) ([]string, error) {
	return compile.NewGCCToolchain("").ParseDeps(r)
}

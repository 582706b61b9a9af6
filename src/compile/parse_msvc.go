package compile

import (
	"context"
	"io"
	"strings"
)

// msvcToolchain implements Toolchain for cl.exe's /showIncludes dialect:
// every included header is echoed to stderr as "Note: including file:
// <indent><path>", interleaved with the compiler's normal diagnostics, so
// unlike GCC there is no separate side-channel file to read (spec §6:
// "tracked via a stateful counter of nested include depth, discarded").
type msvcToolchain struct {
	binary string
}

// NewMSVCToolchain returns a Toolchain driving binary (typically "cl.exe")
// with /showIncludes.
func NewMSVCToolchain(binary string) Toolchain { return &msvcToolchain{binary: binary} }

func (m *msvcToolchain) Family() string { return "msvc" }

func (m *msvcToolchain) DepArgs(src, depfile string) []string {
	// MSVC has no separate dependency-only mode: /showIncludes rides
	// along with the real compile, so there's nothing extra to add here
	// beyond the flag itself (added in Args).
	return nil
}

func (m *msvcToolchain) Args(src string, baseOpts []string, depfile string) []string {
	args := append([]string{}, baseOpts...)
	args = append(args, "/showIncludes", "/c", src)
	return args
}

func (m *msvcToolchain) CompilerChecksum(ctx context.Context) ([]byte, error) {
	out, err := runOutput(ctx, "", m.binary, nil)
	// cl.exe with no arguments prints its banner (including version) to
	// stderr and exits non-zero; that's expected and still useful output.
	_ = err
	return []byte(m.binary + ":" + out), nil
}

const msvcIncludeMarker = "Note: including file:"

// ParseDeps extracts header paths from cl.exe's /showIncludes notes. Each
// note line is prefixed by the marker, then a run of spaces whose count
// encodes nesting depth (irrelevant here — spec §6 says only the resulting
// set of paths matters, not the include tree shape), then the path itself.
func (m *msvcToolchain) ParseDeps(r io.Reader) ([]string, error) {
	lines, err := scanLines(r)
	if err != nil {
		return nil, err
	}
	var deps []string
	for _, line := range lines {
		idx := strings.Index(line, msvcIncludeMarker)
		if idx < 0 {
			continue
		}
		path := strings.TrimSpace(line[idx+len(msvcIncludeMarker):])
		if path != "" {
			deps = append(deps, path)
		}
	}
	return deps, nil
}

// MissingHeader recognizes cl.exe's C1083 "Cannot open include file"
// fatal error (spec §6's MSVC "good error" case).
func (m *msvcToolchain) MissingHeader(output string) (string, bool) {
	for _, line := range strings.Split(output, "\n") {
		if !strings.Contains(line, "C1083") {
			continue
		}
		start := strings.Index(line, "'")
		if start < 0 {
			continue
		}
		end := strings.LastIndex(line, "'")
		if end <= start {
			continue
		}
		return line[start+1 : end], true
	}
	return "", false
}

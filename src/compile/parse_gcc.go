package compile

import (
	"context"
	"io"
	"strings"
)

// gccToolchain implements Toolchain for GCC and Clang, whose -M family of
// flags emit a make-rule fragment ("obj: dep1 dep2 \\\ndep3 ...") on
// stdout or, with -MF, to a side file. Paths are separated by whitespace,
// a trailing `\` continues a line, and the only two escapes are `\ ` for a
// space and `$$` for a dollar sign (see splitMakeDeps).
type gccToolchain struct {
	binary string
}

// NewGCCToolchain returns a Toolchain driving binary (e.g. "g++", "clang++")
// with -M-family dependency output.
func NewGCCToolchain(binary string) Toolchain { return &gccToolchain{binary: binary} }

func (g *gccToolchain) Family() string { return "gcc" }

func (g *gccToolchain) DepArgs(src, depfile string) []string {
	return []string{"-MD", "-MG", "-MQ", "_", "-MF", depfile}
}

func (g *gccToolchain) Args(src string, baseOpts []string, depfile string) []string {
	args := append([]string{}, baseOpts...)
	args = append(args, g.DepArgs(src, depfile)...)
	args = append(args, "-c", src, "-o", "/dev/null")
	return args
}

// CompilerChecksum runs `<binary> -dumpversion -dumpmachine` and digests
// the combined output, giving a checksum that changes whenever the
// compiler is upgraded or the target triple changes (spec §4.G step 3.2).
func (g *gccToolchain) CompilerChecksum(ctx context.Context) ([]byte, error) {
	out, err := runOutput(ctx, "", g.binary, []string{"-dumpversion", "-dumpmachine"})
	if err != nil {
		return nil, err
	}
	return []byte(g.binary + ":" + out), nil
}

// ParseDeps parses GCC/Clang's make-rule dependency output. The grammar is
// deliberately small: everything up to and including the first unescaped
// ':' is the target side and is discarded, then every whitespace-separated
// token is a prerequisite path, with a trailing '\' continuing onto the
// next physical line.
func (g *gccToolchain) ParseDeps(r io.Reader) ([]string, error) {
	lines, err := scanLines(r)
	if err != nil {
		return nil, err
	}
	var joined strings.Builder
	for _, line := range lines {
		trimmed := strings.TrimRight(line, " \t")
		if strings.HasSuffix(trimmed, "\\") {
			joined.WriteString(trimmed[:len(trimmed)-1])
			joined.WriteByte(' ')
		} else {
			joined.WriteString(trimmed)
			joined.WriteByte(' ')
		}
	}
	body := joined.String()
	if idx := strings.IndexByte(body, ':'); idx >= 0 {
		body = body[idx+1:]
	}
	return splitMakeDeps(body), nil
}

// splitMakeDeps tokenizes the prerequisite half of a make-rule line,
// honoring the two escapes spec §4.G names: "\ " for a literal space
// inside a path, and "$$" (doubled dollar, not a backslash escape) for a
// literal dollar sign, matching GNU Make's own variable-reference escape
// that GCC/Clang echo into their dependency output.
func splitMakeDeps(body string) []string {
	var tokens []string
	var cur strings.Builder
	runes := []rune(body)
	for i := 0; i < len(runes); i++ {
		ch := runes[i]
		switch {
		case ch == '\\' && i+1 < len(runes) && runes[i+1] == ' ':
			cur.WriteRune(' ')
			i++
		case ch == '$' && i+1 < len(runes) && runes[i+1] == '$':
			cur.WriteRune('$')
			i++
		case ch == ' ' || ch == '\t':
			if cur.Len() > 0 {
				tokens = append(tokens, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteRune(ch)
		}
	}
	if cur.Len() > 0 {
		tokens = append(tokens, cur.String())
	}
	return tokens
}

// MissingHeader looks for GCC/Clang's fatal "file not found" diagnostic,
// e.g. `foo.cxx:3:10: fatal error: bar.h: No such file or directory`.
func (g *gccToolchain) MissingHeader(output string) (string, bool) {
	for _, line := range strings.Split(output, "\n") {
		idx := strings.Index(line, "fatal error: ")
		if idx < 0 {
			continue
		}
		rest := line[idx+len("fatal error: "):]
		end := strings.Index(rest, ": No such file or directory")
		if end < 0 {
			continue
		}
		return strings.TrimSpace(rest[:end]), true
	}
	return "", false
}

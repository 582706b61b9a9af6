package compile

import (
	"path/filepath"
	"strings"
)

// PrefixMap resolves a relative header path reported by -MG (GCC/Clang's
// "guess, the file might not exist yet" mode) against the same -I search
// order the compiler itself would have used, per spec §4.G's "enter_header"
// step: a generated header that hasn't been built yet still needs to
// resolve to a concrete absolute path so it can become a prerequisite.
type PrefixMap struct {
	dirs []string // in -I search order, already made absolute
}

// NewPrefixMap builds a PrefixMap from the -I-style include directories
// baseOpts contains, resolved against baseDir.
func NewPrefixMap(baseDir string, baseOpts []string) *PrefixMap {
	pm := &PrefixMap{}
	for i := 0; i < len(baseOpts); i++ {
		opt := baseOpts[i]
		var dir string
		switch {
		case opt == "-I" && i+1 < len(baseOpts):
			i++
			dir = baseOpts[i]
		case strings.HasPrefix(opt, "-I") && len(opt) > 2:
			dir = opt[2:]
		case strings.HasPrefix(opt, "/I") && len(opt) > 2:
			dir = opt[2:]
		default:
			continue
		}
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(baseDir, dir)
		}
		pm.dirs = append(pm.dirs, filepath.Clean(dir))
	}
	return pm
}

// Resolve returns rel cleaned if it is already absolute. Otherwise it tries
// rel against the source's own directory (the compiler's implicit "quote"
// search path) first, then against each -I directory in search order, and
// returns the first candidate that exists. If none exists yet (a
// not-yet-generated header, which is exactly the case -MG exists for), it
// returns rel joined to the first -I directory, or to srcDir when there
// are no -I directories.
func (pm *PrefixMap) Resolve(rel, srcDir string, exists func(string) bool) string {
	if filepath.IsAbs(rel) {
		return filepath.Clean(rel)
	}
	if quoted := filepath.Join(srcDir, rel); exists(quoted) {
		return quoted
	}
	for _, dir := range pm.dirs {
		candidate := filepath.Join(dir, rel)
		if exists(candidate) {
			return candidate
		}
	}
	if len(pm.dirs) > 0 {
		return filepath.Join(pm.dirs[0], rel)
	}
	return filepath.Join(srcDir, rel)
}

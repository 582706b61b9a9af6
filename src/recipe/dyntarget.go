package recipe

import (
	"bufio"
	"os"
	"strings"
)

// dynTargetLine is one "--dyn-target" entry: a target-type name and its
// path, space-separated (spec §4.H: "the body may produce targets not
// known at apply-time"), grounded on original_source's read_dyn_targets,
// which splits each dynamic-target line the same way ("type path").
//
// The set is tracked in its own sidecar file next to the depdb rather than
// interleaved into the depdb's own Expect/Accept sequence: the depdb
// chain's cursor-based replay (package depdb) assumes one fixed sequence
// of lines compared in a fixed order, and a second, independently-sized
// section would desynchronize that cursor on every run where the dynamic
// set's length changes. A dedicated file avoids that entirely; it is
// rewritten in full (os.WriteFile, not an atomic rename) each time the
// recipe body runs, regardless of its size.
type dynTargetLine struct {
	typeName string
	path     string
}

func dynTargetsPath(depdbPath string) string { return depdbPath + ".dyntargets" }

func formatDynTarget(typeName, path string) string {
	return typeName + " " + path
}

func parseDynTarget(line string) (dynTargetLine, bool) {
	i := strings.IndexByte(line, ' ')
	if i <= 0 || i+1 == len(line) {
		return dynTargetLine{}, false
	}
	return dynTargetLine{typeName: line[:i], path: line[i+1:]}, true
}

// readDynTargets reads the previously-recorded dynamic-target set, or nil
// if none has been recorded yet (fresh build, or DynTarget just enabled).
func readDynTargets(depdbPath string) ([]dynTargetLine, error) {
	f, err := os.Open(dynTargetsPath(depdbPath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var out []dynTargetLine
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if dt, ok := parseDynTarget(scanner.Text()); ok {
			out = append(out, dt)
		}
	}
	return out, scanner.Err()
}

// writeDynTargets rewrites the dynamic-target sidecar file with the
// current set (spec §4.H: "then the depdb is rewritten").
func writeDynTargets(depdbPath string, lines []dynTargetLine) error {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(formatDynTarget(l.typeName, l.path))
		b.WriteByte('\n')
	}
	return os.WriteFile(dynTargetsPath(depdbPath), []byte(b.String()), 0o644)
}

// pruneStaleDynTargets removes (best-effort) every file in old that isn't
// also present in fresh, per spec §4.H: "files no longer in the new set
// are best-effort removed". Removal failures are logged, not fatal — a
// half-cleaned stale output is a cosmetic problem, not a correctness one,
// since the next run's comparison will simply try again.
func pruneStaleDynTargets(old, fresh []dynTargetLine) {
	keep := make(map[string]bool, len(fresh))
	for _, f := range fresh {
		keep[f.path] = true
	}
	for _, o := range old {
		if keep[o.path] {
			continue
		}
		if err := os.Remove(o.path); err != nil && !os.IsNotExist(err) {
			log.Warning("failed to remove stale dynamic target %s: %s", o.path, err)
		}
	}
}

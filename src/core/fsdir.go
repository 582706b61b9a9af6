package core

import (
	"os"
	"sync"
)

// fsdirCreated deduplicates directory creation across the whole process
// (SPEC_FULL §7 supplement 2, grounded on build2's file.cxx inject_fsdir):
// "creates the full parent directory chain for an output, not just the
// immediate directory, and does so exactly once per process via a
// path-keyed dedup set."
var (
	fsdirMu      sync.Mutex
	fsdirCreated = map[DirPath]bool{}
)

// UpdateFsdir ensures dir (and every ancestor of it) exists on disk,
// exactly once per process per path (spec §6 "fsdir{}: represents a
// filesystem directory; its update is idempotent and may be invoked
// directly from match without a phase switch because directory creation
// is observation-idempotent"). Safe to call concurrently and redundantly;
// only the first caller for a given dir actually touches the filesystem.
func UpdateFsdir(dir DirPath) error {
	fsdirMu.Lock()
	if fsdirCreated[dir] {
		fsdirMu.Unlock()
		return nil
	}
	fsdirCreated[dir] = true
	fsdirMu.Unlock()

	if dir == "" {
		return nil
	}
	return NewSystemError("mkdir", string(dir), os.MkdirAll(string(dir), 0o755))
}

// FsdirRecipe wraps UpdateFsdir(dir) as a no-argument function. It lives
// here (rather than package build) only because core must not depend on
// build. Neither build's fsdir rule nor the compile rule uses it: both
// call UpdateFsdir directly.
func FsdirRecipe(dir DirPath) func() error {
	return func() error { return UpdateFsdir(dir) }
}

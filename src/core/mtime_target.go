package core

import (
	"os"
	"runtime"
	"sync/atomic"
	"time"
)

// timestampNonexistent is the sentinel mtime value meaning "this target
// does not exist on disk" (spec §4.G step 8: "cache mt := timestamp
// nonexistent").
const timestampNonexistent int64 = -1

// timestampUnknown is the sentinel meaning "we deliberately didn't check"
// (spec §3 path_target: "An empty final path is a legal 'unknown location'
// marker (paired with an explicit mtime)").
const timestampUnknown int64 = -2

// PathState implements spec §3's path_target: "an atomic-consistent path:
// empty ('not yet set') transitions to a final value exactly once; further
// assignments must supply the same path."
type PathState struct {
	path atomic.Pointer[Path]
}

// Path returns the resolved path, or ("", false) if not yet set.
func (p *PathState) Path() (Path, bool) {
	if v := p.path.Load(); v != nil {
		return *v, true
	}
	return "", false
}

// SetPath assigns the final path exactly once. A second call with a
// different value panics (programming error per spec §7 category 3); a
// second call with the same value is a harmless no-op, matching concurrent
// rules independently deriving the same output path.
func (p *PathState) SetPath(path Path) {
	if p.path.CompareAndSwap(nil, &path) {
		return
	}
	existing := *p.path.Load()
	if existing != path {
		panic("path_target: conflicting path assignment: " + string(existing) + " vs " + string(path))
	}
}

// MtimeState implements spec §3's mtime_target: "Adds atomic mtime
// representation ... load_mtime() lazily queries the filesystem and
// caches." We store the mtime as a Unix-nanosecond int64 rather than
// chrono/time.Time directly since (as the spec notes for its C++ source)
// an atomic integer is the only representation guaranteed to be lock-free;
// Go's atomic.Int64 gives us that directly.
type MtimeState struct {
	mtime   atomic.Int64
	statted atomic.Bool
}

// NewMtimeState constructs an MtimeState with no cached value yet.
func NewMtimeState() *MtimeState {
	m := &MtimeState{}
	m.mtime.Store(timestampUnknown)
	return m
}

// Cached returns the currently cached mtime without touching the
// filesystem, and whether one has been cached yet.
func (m *MtimeState) Cached() (time.Time, bool) {
	v := m.mtime.Load()
	if v == timestampUnknown {
		return time.Time{}, false
	}
	return fromUnixNano(v), true
}

// Set forces the cached mtime to a specific value (used after a rule
// updates a target to record its new, known-fresh mtime without re-statting
// it — spec §4.G step 8: "cache the observed mtime").
func (m *MtimeState) Set(t time.Time) {
	m.mtime.Store(toUnixNano(t))
}

// SetNonexistent marks the target as known not to exist (spec §4.G step 8
// "update := true ... mt := timestamp_nonexistent").
func (m *MtimeState) SetNonexistent() {
	m.mtime.Store(timestampNonexistent)
}

// Exists reports whether the cached mtime (if any) indicates the target
// exists on disk. Only meaningful after Load or Set has run at least once.
func (m *MtimeState) Exists() bool {
	return m.mtime.Load() != timestampNonexistent
}

// Load lazily queries the filesystem for path's mtime and caches the
// result, returning the cached value on subsequent calls (spec §3
// "load_mtime() lazily queries the filesystem and caches"). Concurrent
// first callers don't each stat the file: the one that wins the
// statted CAS performs it, the rest spin on Cached until it publishes.
func (m *MtimeState) Load(path Path) time.Time {
	if v, ok := m.Cached(); ok {
		return v
	}
	if !m.statted.CompareAndSwap(false, true) {
		for {
			if v, ok := m.Cached(); ok {
				return v
			}
			runtime.Gosched()
		}
	}
	info, err := os.Stat(string(path))
	if err != nil {
		m.SetNonexistent()
		return time.Time{}
	}
	t := info.ModTime()
	m.Set(t)
	return t
}

func toUnixNano(t time.Time) int64 {
	n := t.UnixNano()
	// Guard against colliding with our two sentinels; this only matters
	// for times before 1970 minus a couple nanoseconds, which never
	// occurs for real build artifacts.
	if n == timestampUnknown || n == timestampNonexistent {
		n++
	}
	return n
}

func fromUnixNano(n int64) time.Time {
	return time.Unix(0, n)
}

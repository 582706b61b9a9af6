package core

import "sync"

// reducedKey is a TargetKey with Ext stripped out; it's what actually
// indexes a Store shard, since spec §3 requires hashing (and therefore
// bucket placement) to ignore Ext entirely.
type reducedKey struct {
	typ  *TargetType
	dir  DirPath
	out  DirPath
	name Name
}

func reduce(k TargetKey) reducedKey {
	return reducedKey{typ: k.Type, dir: k.Dir, out: k.Out, name: k.Name}
}

// DefaultShardCount is a reasonable default for Store's internal sharding,
// matching the teacher's cmap.DefaultShardCount: high enough to keep
// per-shard contention low in a build with tens of thousands of targets,
// a power of two so the mask-based shard selection in shardFor stays cheap.
const DefaultShardCount = 1 << 8

// A Store is the concurrent, interned target table (spec §4.A): "Concurrent
// map from target_key to owning target handle (hash table with
// shared/exclusive locking on the table, per-target fine-grained locking
// via the task_count state machine)".
//
// Adapted from please's cmap.Map: sharded locking for the table itself,
// with the per-entry "busy" state handled one level up by OpState rather
// than by the map (our fine-grained lock is the task_count machine, exactly
// as the spec specifies, rather than a lock embedded in the map shard).
type Store struct {
	shards []storeShard
	mask   uint64
}

type storeShard struct {
	mu sync.RWMutex
	m  map[reducedKey]*Target
}

// NewStore constructs a Store with the given shard count, which must be a
// power of two.
func NewStore(shardCount uint64) *Store {
	if shardCount == 0 || shardCount&(shardCount-1) != 0 {
		panic("shard count must be a power of 2")
	}
	s := &Store{shards: make([]storeShard, shardCount), mask: shardCount - 1}
	for i := range s.shards {
		s.shards[i].m = map[reducedKey]*Target{}
	}
	return s
}

func (s *Store) shardFor(k reducedKey) *storeShard {
	h := TargetKey{Type: k.typ, Dir: k.dir, Out: k.out, Name: k.name}.hashBucket()
	return &s.shards[h&s.mask]
}

// Find looks up a target by key, taking only a shared lock (spec §4.A
// "find(key) -> optional<&target> -- shared lock"). If key carries a
// present extension and the stored entry's extension is still
// unspecified, the entry is upgraded in place before being returned (spec
// §3: "the found entry's extension is filled in under the entry's lock").
func (s *Store) Find(key TargetKey) (*Target, bool) {
	shard := s.shardFor(reduce(key))
	shard.mu.RLock()
	t, ok := shard.m[reduce(key)]
	shard.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if key.Ext.IsPresent() {
		s.upgradeExt(t, key.Ext)
	}
	return t, true
}

// upgradeExt performs the one-time extension upgrade described in spec §3,
// synchronized per-target so two concurrent present-extension lookups
// can't race.
func (s *Store) upgradeExt(t *Target, ext Ext) {
	t.opstateMu.Lock()
	defer t.opstateMu.Unlock()
	t.Key.Ext = t.Key.Ext.upgrade(ext)
}

// Insert finds or creates the target for key. The returned bool is true if
// this call created the entry. implied marks a newly-created entry as
// "referenced before any real declaration" (spec §4.A): a caller that later
// encounters the real declaration should clear Target.Implied itself.
//
// Insertion never fails for reasons other than allocation (spec §4.A).
func (s *Store) Insert(key TargetKey, implied bool) (*Target, bool) {
	rk := reduce(key)
	shard := s.shardFor(rk)

	shard.mu.RLock()
	if t, ok := shard.m[rk]; ok {
		shard.mu.RUnlock()
		if key.Ext.IsPresent() {
			s.upgradeExt(t, key.Ext)
		}
		return t, false
	}
	shard.mu.RUnlock()

	shard.mu.Lock()
	defer shard.mu.Unlock()
	if t, ok := shard.m[rk]; ok {
		// Lost the race to another inserter between the RUnlock above
		// and taking the exclusive lock.
		if key.Ext.IsPresent() {
			s.upgradeExt(t, key.Ext)
		}
		return t, false
	}
	t := NewTarget(key)
	if implied {
		t.Implied.Store(true)
	}
	shard.m[rk] = t
	return t, true
}

// All returns every target currently in the store. Only safe to call
// during a serial phase (spec §4.A: "Iteration: only permitted during
// serial phases").
func (s *Store) All() []*Target {
	var out []*Target
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		for _, t := range sh.m {
			out = append(out, t)
		}
		sh.mu.RUnlock()
	}
	return out
}

// Len returns the number of targets currently interned.
func (s *Store) Len() int {
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		n += len(sh.m)
		sh.mu.RUnlock()
	}
	return n
}

// Sweep removes every target for which keep returns false. It is a
// supplement over the teacher (SPEC_FULL §6 "4.A supplement: implied-target
// GC"): please re-execs per invocation so its graph never needs this, but
// a long-lived Context reused across many Perform calls (e.g. a test
// harness or a future watch mode) can accumulate implied targets from
// speculative matches that never panned out. Only callable during the
// load phase, like All.
func (s *Store) Sweep(keep func(*Target) bool) {
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		for rk, t := range sh.m {
			if !keep(t) {
				delete(sh.m, rk)
			}
		}
		sh.mu.Unlock()
	}
}

package core

import (
	"sync"
	"sync/atomic"
)

// TargetState is the per-action state a target can be in (spec §3 opstate
// "state" enum).
type TargetState int32

const (
	StateUnknown TargetState = iota
	StateUnchanged
	StateChanged
	StateFailed
	// StateGroup is the sentinel a group member reports: "copy my state
	// and mtime from my group" (spec §3 "group" and §4.E recipe return).
	StateGroup
)

func (s TargetState) String() string {
	switch s {
	case StateUnchanged:
		return "unchanged"
	case StateChanged:
		return "changed"
	case StateFailed:
		return "failed"
	case StateGroup:
		return "group"
	default:
		return "unknown"
	}
}

// memberLink is one node of a target's ad-hoc group member chain (spec §3
// "member: optional head of an ad-hoc group member chain (singly-linked)").
type memberLink struct {
	target *Target
	next   *memberLink
}

// A Target is a node in the dependency graph: the spec §3 "Target" record.
// Once returned by Store.Insert, a *Target's address is stable for the
// lifetime of its owning Context (spec §3 invariants: "once inserted, a
// target is never moved or destroyed during a build").
type Target struct {
	// Key is this target's identity. Ext may be upgraded exactly once,
	// in place, by Store.upgradeExt; all other fields are immutable
	// after construction.
	Key TargetKey

	// group is the explicit group this target belongs to, if any. nil
	// for ungrouped targets and for groups themselves.
	group atomic.Pointer[Target]

	// memberHead is the head of this target's ad-hoc member chain, if
	// it is itself a group. Written once under memberMu the first time
	// a member is attached (single-producer, like Prerequisites).
	memberMu   sync.Mutex
	memberHead *memberLink

	// Scope is the variable scope this target's variable lookups chain
	// into (spec §4.B: target -> target group -> scope -> ...).
	Scope *Scope

	// Variables is this target's own variable map (spec §3 "variables").
	Variables *VariableMap

	// prerequisites is lazily swapped in once: the first writer wins,
	// matching spec §3 "single-producer: the first writer wins; all
	// subsequent writes are discarded".
	prerequisites atomic.Pointer[PrerequisiteList]

	// opstates holds one OpState per (meta-operation, operation) slot
	// active in the current build batch, indexed by the numeric action
	// id assigned by the Context (spec §4.D task_count offset scheme).
	// Guarded by opstateMu only for the slice-growth path; individual
	// OpState fields have their own atomics.
	opstateMu sync.Mutex
	opstates  []*OpState

	// Implied is true if this target was referenced before any real
	// declaration was seen for it (spec §4.A "insert"). Cleared during
	// load when the real declaration is encountered.
	Implied atomic.Bool

	// PathState and MtimeState implement the path_target/mtime_target
	// spine (spec §3) that every concrete target type inherits,
	// regardless of whether a given rule ever populates them.
	PathState  PathState
	MtimeState *MtimeState
}

// NewTarget constructs a bare target for the given key. Used by Store and
// by tests; rules normally only ever see targets already inserted into a
// Store.
func NewTarget(key TargetKey) *Target {
	return &Target{Key: key, MtimeState: NewMtimeState()}
}

// Group returns this target's explicit group, or nil.
func (t *Target) Group() *Target { return t.group.Load() }

// SetGroup assigns t's explicit group. It is the caller's responsibility to
// also attach t into the group's member chain if the group should iterate
// it (see Target.addMember); SetGroup alone only affects variable/mtime
// inheritance (spec §3: "group and all its members share a base scope").
func (t *Target) SetGroup(g *Target) { t.group.Store(g) }

// addMember attaches member to t's ad-hoc member chain. Spec §3: "Ad-hoc
// groups do not nest; an ad-hoc group may be a member of an explicit group
// but not vice-versa" — callers (the loader, out of this core's scope) are
// expected to enforce that invariant before calling this.
func (t *Target) addMember(member *Target) {
	t.memberMu.Lock()
	defer t.memberMu.Unlock()
	t.memberHead = &memberLink{target: member, next: t.memberHead}
}

// Members returns the current ad-hoc group member chain as a slice, in
// most-recently-added-first order.
func (t *Target) Members() []*Target {
	t.memberMu.Lock()
	defer t.memberMu.Unlock()
	var out []*Target
	for m := t.memberHead; m != nil; m = m.next {
		out = append(out, m.target)
	}
	return out
}

// A PrerequisiteEntry is one entry of an action's resolved prerequisite
// list: a target pointer plus the small data word spec §3 describes ("a
// small bitfield/data word; two bits are stolen for optional marking").
type PrerequisiteEntry struct {
	Target *Target
	// Optional marks a prerequisite whose absence should not be an
	// error (spec §3's "two bits ... for optional marking"; we only
	// need one of the two today, the second is reserved for a future
	// "already updated" marker mirrored from spec §4.E's "data field").
	Optional bool
	// Adhoc marks an ad-hoc (recipe-declared, not rule-matched)
	// prerequisite. build.ExecutePrerequisites does not treat it
	// differently from other entries.
	Adhoc bool
	// Unmatched records that this entry went through unmatch() (spec
	// §4.D): it contributed metadata only and must not be executed or
	// used for mtime comparison.
	Unmatched bool
	// Updated is set once execute has already applied this entry's
	// effect, so repeat walks (reverse then straight, say) don't
	// double-count it (spec §4.E "skipping entries whose data field is
	// set").
	Updated bool
}

// A PrerequisiteList is the per-action resolved prerequisite set a rule's
// apply() populates (spec §3 "prerequisite_targets").
type PrerequisiteList struct {
	Entries []PrerequisiteEntry
}

// Prerequisites returns the currently-installed prerequisite list for this
// target, or nil if apply() hasn't run yet.
func (t *Target) Prerequisites() *PrerequisiteList {
	return t.prerequisites.Load()
}

// SetPrerequisitesOnce installs list as this target's prerequisite list if
// none has been installed yet. Returns the list that ends up installed
// (which may be a different, earlier writer's list) matching spec §3's
// "single-producer: the first writer wins; all subsequent writes are
// discarded".
func (t *Target) SetPrerequisitesOnce(list *PrerequisiteList) *PrerequisiteList {
	if t.prerequisites.CompareAndSwap(nil, list) {
		return list
	}
	return t.prerequisites.Load()
}

// opstate returns (creating if necessary) the OpState slot for the given
// action id. Action ids are small, dense integers assigned by the Context
// when it registers a (meta-operation, operation) pair, so this grows a
// plain slice rather than needing a map.
func (t *Target) opstate(actionID int) *OpState {
	t.opstateMu.Lock()
	defer t.opstateMu.Unlock()
	for len(t.opstates) <= actionID {
		t.opstates = append(t.opstates, nil)
	}
	if t.opstates[actionID] == nil {
		t.opstates[actionID] = newOpState()
	}
	return t.opstates[actionID]
}

// OpState returns the OpState slot for the given action id, exported for
// package build and the leaf rule packages to drive the task_count state
// machine (spec §4.D/§5).
func (t *Target) OpState(actionID int) *OpState { return t.opstate(actionID) }

package core

import (
	"github.com/cespare/xxhash/v2"
)

// A TargetKey is the immutable, hashable 5-tuple identifying a target
// (spec §3): (type, dir, out, name, ext).
//
// Equality and hashing deliberately treat Ext specially: two keys that
// differ only in one having ExtUnspecified and the other ExtPresent are
// considered the same key for lookup purposes, and the hash excludes Ext
// entirely so that "upgrading" a stored entry's extension in place never
// moves it to a different bucket (spec §3: "Hashing deliberately excludes
// ext so this upgrade keeps the bucket stable").
type TargetKey struct {
	Type *TargetType
	Dir  DirPath
	Out  DirPath // empty when the target lives purely in the out-tree
	Name Name
	Ext  Ext
}

// NewTargetKey constructs a key with an unspecified extension, the common
// case when a rule first references a target before any declaration has
// pinned its extension down.
func NewTargetKey(typ *TargetType, dir DirPath, name Name) TargetKey {
	return TargetKey{Type: typ, Dir: dir, Name: name}
}

// WithExt returns a copy of k with the given extension. Callers use this to
// build the key they actually want to look up or insert; Store.upgradeExt
// is what performs the in-place upgrade on the stored entry.
func (k TargetKey) WithExt(ext Ext) TargetKey {
	k.Ext = ext
	return k
}

// WithOut returns a copy of k recording the out-tree directory backing a
// src-tree target, so one source file can back multiple per-configuration
// targets (spec §3).
func (k TargetKey) WithOut(out DirPath) TargetKey {
	k.Out = out
	return k
}

// hashBucket computes the hash used to place k into a Store shard. It
// excludes Ext by construction (only Type/Dir/Out/Name feed the hash).
func (k TargetKey) hashBucket() uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(k.Type.String())
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(string(k.Dir))
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(string(k.Out))
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(string(k.Name))
	return d.Sum64()
}

// equalIgnoringExt reports whether k and other agree on everything but Ext.
// The store's shard map indexes on the same four fields (reducedKey). The
// store does not consult Ext.matches: Store.Find and Store.Insert pass a
// present Ext to Store.upgradeExt, which fills in an unspecified stored Ext
// and panics if the stored Ext is set to something different.
func (k TargetKey) equalIgnoringExt(other TargetKey) bool {
	return k.Type == other.Type && k.Dir == other.Dir && k.Out == other.Out && k.Name == other.Name
}

// String renders a human-readable form for diagnostics, of the rough shape
// "dir/name.ext{type}".
func (k TargetKey) String() string {
	s := string(k.Dir) + "/" + string(k.Name)
	if k.Ext.IsPresent() && k.Ext.Value() != "" {
		s += "." + k.Ext.Value()
	}
	if k.Type != nil {
		s += "{" + k.Type.Name + "}"
	}
	if k.Out != "" {
		s += "@" + string(k.Out)
	}
	return s
}

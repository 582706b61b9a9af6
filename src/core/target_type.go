package core

import "fmt"

// A TargetType is a node in the target-type registry's DAG (spec §3: "Each
// target type has: parent type pointer ... Types form a DAG with target at
// the root; file -> path_target -> mtime_target -> target is the spine").
//
// Types are registered once, at process startup, and referenced by pointer
// thereafter (see TargetKey), mirroring please's single-inheritance
// BuildTarget kind checks (core.BuildTarget.HasLabel-style is-a tests) but
// made explicit as a real type hierarchy rather than string labels, since
// the spec requires a genuine parent pointer.
type TargetType struct {
	// Name is the registered name, e.g. "file", "obje", "fsdir".
	Name string
	// Parent is the type this one derives from, or nil for the root.
	Parent *TargetType
	// SeeThrough, if true, means group members are iterated in place of
	// the group itself wherever this type appears as a prerequisite.
	SeeThrough bool
	// Extension, if set, computes the default extension for a target of
	// this type when none was declared. May be nil.
	Extension func(t *Target) string
	// Pattern, if set, completes a target-type-specific name pattern
	// (e.g. turning "%.o" into a concrete output name). May be nil.
	Pattern func(t *Target, stem string) string
	// Factory constructs a fresh per-target payload for this type. May
	// be nil. Store.Insert does not call it: an inserted target carries
	// only the common Target fields.
	Factory func() interface{}
	// Search is a hook to locate or synthesize a target of this type
	// (e.g. a header target search over configured include
	// directories). May be nil. Nothing in this module calls it.
	Search func(key TargetKey) (TargetKey, bool)
}

// IsA reports whether t is the same type as, or a descendant of, other.
// This is the spec's "single-inheritance is-a checks".
func (t *TargetType) IsA(other *TargetType) bool {
	for cur := t; cur != nil; cur = cur.Parent {
		if cur == other {
			return true
		}
	}
	return false
}

// String implements fmt.Stringer.
func (t *TargetType) String() string {
	if t == nil {
		return "<nil type>"
	}
	return t.Name
}

// The built-in spine of types, spec §3: file -> path_target -> mtime_target
// -> target.
var (
	// TypeTarget is the DAG root; every registered type is-a TypeTarget.
	TypeTarget = &TargetType{Name: "target"}
	// TypePath is a target with a resolvable filesystem path.
	TypePath = &TargetType{Name: "path_target", Parent: TypeTarget}
	// TypeMtime is a path target with an observable modification time.
	TypeMtime = &TargetType{Name: "mtime_target", Parent: TypePath}
	// TypeFile is a concrete, plain file on disk.
	TypeFile = &TargetType{Name: "file", Parent: TypeMtime}
	// TypeGroup is an explicit group target (spec §3 "group").
	TypeGroup = &TargetType{Name: "group", Parent: TypeTarget}
	// TypeFsdir represents a filesystem directory (spec §6 "fsdir{}"):
	// update is idempotent and may run directly from match.
	TypeFsdir = &TargetType{Name: "fsdir", Parent: TypeMtime}
)

// A Registry owns the set of known target types, keyed by name, so a
// Context can look one up when resolving a header's extension (spec §4.G
// "enter_header": "target-type is picked by matching the extension against
// the per-scope extension map").
type Registry struct {
	byName map[string]*TargetType
	byExt  map[string]*TargetType
}

// NewRegistry constructs a Registry seeded with the built-in spine types.
func NewRegistry() *Registry {
	r := &Registry{byName: map[string]*TargetType{}, byExt: map[string]*TargetType{}}
	for _, t := range []*TargetType{TypeTarget, TypePath, TypeMtime, TypeFile, TypeGroup, TypeFsdir} {
		r.byName[t.Name] = t
	}
	return r
}

// Register adds a new target type to the registry, keyed by name and
// (optionally) by the file extensions it should be the default resolution
// for (spec §4.G: "unknown extensions default to plain h{}").
func (r *Registry) Register(t *TargetType, extensions ...string) *TargetType {
	if _, present := r.byName[t.Name]; present {
		panic(fmt.Sprintf("target type %q already registered", t.Name))
	}
	r.byName[t.Name] = t
	for _, ext := range extensions {
		r.byExt[ext] = t
	}
	return t
}

// Lookup finds a registered type by name.
func (r *Registry) Lookup(name string) (*TargetType, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// TypeForExtension resolves a file extension (without the leading dot) to
// its target type, defaulting to TypeFile (the "plain h{}" fallback in
// spec §4.G is a stand-in for "the generic file type" in this core).
func (r *Registry) TypeForExtension(ext string) *TargetType {
	if t, ok := r.byExt[ext]; ok {
		return t
	}
	return TypeFile
}

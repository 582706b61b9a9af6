package core

import "sync"

// Visibility is the spec §4.B visibility enum for a declared Variable.
type Visibility int

const (
	VisibilityGlobal Visibility = iota
	VisibilityProject
	VisibilityScope
	VisibilityTarget
	VisibilityPrerequisite
)

// A Variable is a declared variable slot: its name, declared type (if any),
// visibility, and overridability (spec §4.B).
type Variable struct {
	Name           string
	DeclaredType   ValueType
	Visibility     Visibility
	Overridable    bool
	// alias, if set, is another Variable this one forwards reads/writes
	// to — spec §4.B "an alias ring pointer". We use a simple forwarding
	// pointer rather than a true ring since a variable is never aliased
	// by more than one other in practice; Resolve follows it to a fixed
	// point.
	alias *Variable
}

// Resolve follows the alias chain to the variable that actually owns
// storage.
func (v *Variable) Resolve() *Variable {
	for v.alias != nil {
		v = v.alias
	}
	return v
}

// An override is one entry of a variable's override chain (spec §4.I): a
// replacement value that applies from a given scope depth downward.
type override struct {
	depth int
	value *Cell
	next  *override
}

// A VariableMap is an unordered collection of cells keyed by variable name,
// with an optional override chain layered on top of each. It's the
// concrete storage behind target/group/scope variable maps (spec §4.B) and
// rule-specific opstate variable maps.
type VariableMap struct {
	mu        sync.RWMutex
	cells     map[string]*Cell
	overrides map[string]*override
}

// NewVariableMap constructs an empty map.
func NewVariableMap() *VariableMap {
	return &VariableMap{cells: map[string]*Cell{}}
}

// Set assigns (or replaces) the cell for name. Only legal during the load
// phase for globally-shared maps; per-target maps may be written any time
// before the target reaches StageApplied (spec §5: "variable pool:
// writable only during load; readable lock-free thereafter" applies to the
// shared pools — per-target maps have the narrower window spec §3 implies
// by "per target ... variables").
func (m *VariableMap) Set(name string, v Value) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.cells[name]; ok {
		c.Set(v)
		return
	}
	m.cells[name] = NewCell(v)
}

// Get returns the cell for name without consulting overrides, or nil.
func (m *VariableMap) Get(name string) *Cell {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cells[name]
}

// AddOverride layers a new override value for name, applicable from the
// given scope depth downward (spec §4.I: "a linked list of override
// variables each with a scope depth at which it applies").
func (m *VariableMap) AddOverride(name string, depth int, v Value) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.overrides == nil {
		m.overrides = map[string]*override{}
	}
	m.overrides[name] = &override{depth: depth, value: NewCell(v), next: m.overrides[name]}
}

// Resolve returns the effective cell for name at the given scope depth:
// the most specific (deepest-depth, most-recently-added) override that
// applies at or below depth, falling back to the plain value. This is
// purely a lookup-time concern; it never mutates the underlying maps
// (spec §4.I: "Override resolution is purely a lookup-time concern and
// does not mutate the underlying maps; results are cached per scope" —
// the per-scope cache is Scope.overrideCache, see scope.go).
func (m *VariableMap) Resolve(name string, depth int) (*Cell, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if chain, ok := m.overrides[name]; ok {
		var best *override
		for o := chain; o != nil; o = o.next {
			if o.depth <= depth && (best == nil || o.depth > best.depth) {
				best = o
			}
		}
		if best != nil {
			return best.value, true
		}
	}
	if c, ok := m.cells[name]; ok {
		return c, true
	}
	return nil, false
}

// A VariablePool is a nested namespace of declared Variables, mirroring
// spec §4.B "Variable pools are nested (project-private pool chains to a
// public pool)". Insertion is only MT-safe during load; lookups are
// lock-free reads of an already-settled map thereafter, matching spec §5's
// "variable pool: writable only during load; readable lock-free
// thereafter" — we still take a read lock since Go gives us nothing
// cheaper that's safe against a concurrent writer bug, but no pool is ever
// written to after the owning Context leaves the load phase.
type VariablePool struct {
	parent *VariablePool
	mu     sync.RWMutex
	vars   map[string]*Variable
}

// NewVariablePool constructs a pool chained to parent (nil for the root
// global pool).
func NewVariablePool(parent *VariablePool) *VariablePool {
	return &VariablePool{parent: parent, vars: map[string]*Variable{}}
}

// Declare registers a new Variable in this pool. Panics if name is already
// declared in this exact pool (shadowing a parent pool's declaration is
// fine and intentional).
func (p *VariablePool) Declare(v *Variable) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, present := p.vars[v.Name]; present {
		panic("variable already declared in this pool: " + v.Name)
	}
	p.vars[v.Name] = v
}

// Lookup finds a Variable by name, checking this pool then each ancestor
// in turn (public pool last).
func (p *VariablePool) Lookup(name string) (*Variable, bool) {
	for cur := p; cur != nil; cur = cur.parent {
		cur.mu.RLock()
		v, ok := cur.vars[name]
		cur.mu.RUnlock()
		if ok {
			return v, true
		}
	}
	return nil, false
}

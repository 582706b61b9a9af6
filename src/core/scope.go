package core

import "sync"

// A Scope is a hierarchical namespace for variables, keyed by directory
// (spec GLOSSARY "Scope"). Scopes form a tree rooted at the Context's
// global scope; each directory in the source tree that declares anything
// gets its own Scope chained to its parent directory's.
type Scope struct {
	Parent    *Scope
	Depth     int
	Dir       DirPath
	Variables *VariableMap
	Patterns  PatternSet
	Pool      *VariablePool

	cacheMu       sync.Mutex
	overrideCache map[string]*Cell
}

// NewGlobalScope constructs the root scope of a Context.
func NewGlobalScope(pool *VariablePool) *Scope {
	return &Scope{Variables: NewVariableMap(), Pool: pool}
}

// NewChildScope constructs a scope for dir, chained to parent.
func NewChildScope(parent *Scope, dir DirPath) *Scope {
	return &Scope{
		Parent:    parent,
		Depth:     parent.Depth + 1,
		Dir:       dir,
		Variables: NewVariableMap(),
		Pool:      NewVariablePool(parent.Pool),
	}
}

// lookupInChain walks this scope and its ancestors, consulting override
// resolution and pattern variables at each level, implementing spec §4.B's
// "enclosing scopes up to the global scope, with override resolution
// layered on top" and "during target variable lookup each ancestor scope
// is consulted with the most-specific pattern winning".
func (s *Scope) lookupInChain(name string, forPath string) (*Cell, bool) {
	if c, ok := s.cachedOverride(name); ok {
		return c, true
	}
	for cur := s; cur != nil; cur = cur.Parent {
		if vm := cur.Patterns.Match(forPath); vm != nil {
			if c, ok := vm.Resolve(name, cur.Depth); ok {
				return c, true
			}
		}
		if c, ok := cur.Variables.Resolve(name, cur.Depth); ok {
			s.cacheOverride(name, c)
			return c, true
		}
	}
	return nil, false
}

func (s *Scope) cachedOverride(name string) (*Cell, bool) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	c, ok := s.overrideCache[name]
	return c, ok
}

func (s *Scope) cacheOverride(name string, c *Cell) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if s.overrideCache == nil {
		s.overrideCache = map[string]*Cell{}
	}
	s.overrideCache[name] = c
}

// Lookup implements the full spec §4.B three-layer chain for a target:
// rule-specific (opstate) -> target -> target group -> scope chain.
// actionID selects which OpState slot supplies the rule-specific layer; if
// actionID < 0 that layer is skipped (used for lookups outside of any
// particular action, e.g. during load).
func Lookup(t *Target, actionID int, name string) (Value, bool) {
	if actionID >= 0 {
		if op := t.opstate(actionID); op != nil {
			if vars := op.Variables(); vars != nil {
				if c, ok := vars.Resolve(name, 1<<30); ok {
					return c.Get(), true
				}
			}
		}
	}
	if t.Variables != nil {
		if c, ok := t.Variables.Resolve(name, 1<<30); ok {
			return c.Get(), true
		}
	}
	if g := t.Group(); g != nil {
		if v, ok := Lookup(g, actionID, name); ok {
			return v, ok
		}
	}
	if t.Scope != nil {
		if c, ok := t.Scope.lookupInChain(name, t.Key.Dir.String()); ok {
			return c.Get(), true
		}
	}
	return nil, false
}

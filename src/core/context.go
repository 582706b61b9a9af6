package core

import "github.com/google/uuid"

// A Context is the data half of the spec §9 "single build context object":
// it owns the target store, the variable pool chain, the type registry and
// the cycle detector. The scheduler and phase lock (the other half of that
// single object, per spec §5) live one layer up in package build's Engine,
// which embeds a *Context — see build.NewEngine. Splitting it this way
// keeps package core free of any dependency on the scheduler, the same
// separation please draws between core.BuildState (data) and the build
// package's execution functions.
//
// Nothing here is package-level global state; every test and every
// concurrent forge invocation constructs its own Context (SPEC_FULL §3.4),
// unlike please's core.State singleton.
type Context struct {
	// ID stamps this context for diagnostics so logs from concurrent
	// Contexts (e.g. in a test binary running packages in parallel)
	// don't interleave confusingly (SPEC_FULL §4 domain stack:
	// google/uuid).
	ID uuid.UUID

	Store      *Store
	Registry   *Registry
	Global     *Scope
	Cycles     *CycleDetector

	actionNames []string
	actionIDs   map[string]int
}

// NewContext constructs a fresh, empty build context.
func NewContext() *Context {
	pool := NewVariablePool(nil)
	return &Context{
		ID:        uuid.New(),
		Store:     NewStore(DefaultShardCount),
		Registry:  NewRegistry(),
		Global:    NewGlobalScope(pool),
		Cycles:    NewCycleDetector(),
		actionIDs: map[string]int{},
	}
}

// Action is a (meta-operation, operation) pair (spec GLOSSARY), e.g.
// "perform.update" or "perform.clean".
type Action struct {
	MetaOperation string
	Operation     string
}

// String renders the canonical "meta.op" form used as the action's
// registration key.
func (a Action) String() string { return a.MetaOperation + "." + a.Operation }

// ActionID returns the small, dense integer id for action, registering it
// on first use. OpState slices are indexed by this id (spec §4.D's "offset
// by 5 * (current_operation - 1)" rebasing becomes, in this
// implementation, simply "use a different slice slot per action" — see
// target.go's opstate).
func (c *Context) ActionID(a Action) int {
	key := a.String()
	if id, ok := c.actionIDs[key]; ok {
		return id
	}
	id := len(c.actionNames)
	c.actionNames = append(c.actionNames, key)
	c.actionIDs[key] = id
	return id
}

// ActionName returns the registration key for a previously-registered
// action id, for diagnostics.
func (c *Context) ActionName(id int) string {
	if id < 0 || id >= len(c.actionNames) {
		return "<unknown action>"
	}
	return c.actionNames[id]
}

package core

import (
	"strings"
	"sync"
)

// dependencyChain is a printable path through the graph, used to report a
// detected cycle to the user (spec §7 category 1 "cyclic dependency").
type dependencyChain []TargetKey

func (c dependencyChain) String() string {
	parts := make([]string, len(c))
	for i, k := range c {
		parts[i] = k.String()
	}
	return strings.Join(parts, "\n -> ")
}

// A CycleDetector incrementally tracks declared dependency edges and can
// report whether adding a new edge would close a cycle. Adapted from
// please's core.cycleDetector: same queue-and-recursive-search shape, but
// exposed synchronously (AddDependency here returns an error directly)
// since our match engine already serializes dependency registration behind
// the target's own task_count transition rather than a background queue
// goroutine.
type CycleDetector struct {
	mu   sync.Mutex
	deps map[TargetKey][]TargetKey
}

// NewCycleDetector constructs an empty detector.
func NewCycleDetector() *CycleDetector {
	return &CycleDetector{deps: map[TargetKey][]TargetKey{}}
}

// AddDependency records that from depends on to. If doing so would close a
// cycle, the edge is not recorded and a UserError describing the cycle is
// returned.
func (c *CycleDetector) AddDependency(from, to TargetKey) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reaches(to, from) {
		chain := c.buildCycle([]TargetKey{from, to})
		return NewUserError("dependency cycle detected:\n%s", dependencyChain(chain).String())
	}
	c.deps[from] = append(c.deps[from], to)
	return nil
}

// reaches reports whether there is already a path from `from` to `to` in
// the recorded graph (i.e. adding from->to would close a loop back through
// an existing to-> ... ->from path).
func (c *CycleDetector) reaches(from, to TargetKey) bool {
	if from == to {
		return true
	}
	for _, dep := range c.deps[from] {
		if c.reaches(dep, to) {
			return true
		}
	}
	return false
}

func (c *CycleDetector) buildCycle(chain []TargetKey) []TargetKey {
	head, tail := chain[0], chain[len(chain)-1]
	for _, dep := range c.deps[tail] {
		if dep == head {
			return append(chain, dep)
		}
		if found := c.buildCycle(append(append([]TargetKey{}, chain...), dep)); found != nil {
			return found
		}
	}
	return nil
}

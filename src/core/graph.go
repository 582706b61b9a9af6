package core

// graph.go holds traversal helpers over the prerequisite edges apply() has
// already resolved into each target's PrerequisiteList. It does not store
// any edges itself — Store indexes targets by identity, and
// Target.Prerequisites holds a target's own out-edges, so the only thing
// missing is the reverse direction (dependents) and whole-graph walks,
// which is what this file provides.

// CountDependents walks every target reachable from roots for the given
// action and initializes each reachable target's dependent counter (spec
// §4.E "first"/"last" dependents-countdown execute modes: a target with
// data recipes only becomes eligible to run its own recipe, under "last",
// once every dependent has finished). Must run once, serially, before
// execute begins for actionID — normally right after match finishes.
func CountDependents(actionID int, roots []*Target) {
	counts := map[*Target]int{}
	visited := map[*Target]bool{}
	var walk func(t *Target)
	walk = func(t *Target) {
		if visited[t] {
			return
		}
		visited[t] = true
		pl := t.Prerequisites()
		if pl == nil {
			return
		}
		for _, e := range pl.Entries {
			if e.Unmatched {
				continue
			}
			counts[e.Target]++
			walk(e.Target)
		}
	}
	for _, r := range roots {
		walk(r)
	}
	for t, n := range counts {
		t.OpState(actionID).InitDependents(n)
	}
}

// Reachable returns every target reachable from roots by following every
// prerequisite edge, unmatched ones included, roots included. It has no
// caller outside tests.
func Reachable(roots []*Target) map[*Target]bool {
	visited := map[*Target]bool{}
	var walk func(t *Target)
	walk = func(t *Target) {
		if visited[t] {
			return
		}
		visited[t] = true
		pl := t.Prerequisites()
		if pl == nil {
			return
		}
		for _, e := range pl.Entries {
			walk(e.Target)
		}
	}
	for _, r := range roots {
		walk(r)
	}
	return visited
}

// TopoOrder returns roots' transitive prerequisite closure in dependency-
// first order (every target appears after all of its own prerequisites).
// Execute does not use it; it has no caller outside tests.
func TopoOrder(roots []*Target) []*Target {
	visited := map[*Target]bool{}
	var order []*Target
	var walk func(t *Target)
	walk = func(t *Target) {
		if visited[t] {
			return
		}
		visited[t] = true
		if pl := t.Prerequisites(); pl != nil {
			for _, e := range pl.Entries {
				walk(e.Target)
			}
		}
		order = append(order, t)
	}
	for _, r := range roots {
		walk(r)
	}
	return order
}

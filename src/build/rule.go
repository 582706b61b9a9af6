package build

import (
	"sort"
	"strings"
	"sync"

	"github.com/forgebuild/forge/src/core"
)

// A Rule is a registered (match, apply) pair for a (target-type, action)
// (spec GLOSSARY: "a pair of functions (match, apply) registered for a
// (target-type, action)").
type Rule interface {
	// Name identifies the rule for diagnostics and depdb rule-id lines
	// (SPEC_FULL §3.3: paired with a cli.Version for the depdb
	// invalidation chain).
	Name() string

	// Hint is a dot-separated capability tag (spec §4.D supplement,
	// SPEC_FULL §6 "4.D/4.E supplement"); more segments is more
	// specific. An empty hint sorts last within its bucket.
	Hint() string

	// Match reports whether this rule applies to target for action. The
	// first rule (in hint-specificity, then registration, order) to
	// return true is selected.
	Match(action core.Action, target *core.Target) (bool, error)

	// Apply runs once a rule is selected: it populates the target's
	// prerequisite list and variables and returns the Recipe execute()
	// will eventually run.
	Apply(eng *Engine, action core.Action, target *core.Target) (Recipe, error)
}

// hintSpecificity counts hint's dot-separated segments (spec §6 "4.D/4.E
// supplement": "more dot-separated segments = more specific").
func hintSpecificity(hint string) int {
	if hint == "" {
		return 0
	}
	return strings.Count(hint, ".") + 1
}

// A RuleSet is the per-(TargetType, Action) registry match() consults.
// Registration order is preserved within a hint-specificity bucket (spec
// §4.D: "rules are tried in registration order within a hint bucket").
type RuleSet struct {
	mu    sync.RWMutex
	rules map[bucketKey][]Rule
}

type bucketKey struct {
	typ    *core.TargetType
	action string
}

// NewRuleSet constructs an empty rule registry.
func NewRuleSet() *RuleSet {
	return &RuleSet{rules: map[bucketKey][]Rule{}}
}

// Register adds r as a candidate for targets of type typ (and any type
// that IsA typ) under action. The candidate list is kept sorted by
// descending hint specificity, stable within equal specificity so
// registration order survives as the spec's tie-break.
func (rs *RuleSet) Register(typ *core.TargetType, action core.Action, r Rule) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	key := bucketKey{typ: typ, action: action.String()}
	rs.rules[key] = append(rs.rules[key], r)
	sort.SliceStable(rs.rules[key], func(i, j int) bool {
		return hintSpecificity(rs.rules[key][i].Hint()) > hintSpecificity(rs.rules[key][j].Hint())
	})
}

// Candidates returns the rules registered for exactly typ under action, in
// match-order. It does not itself walk typ's parent chain: match() does
// that, trying the target's own exact type bucket first and then widening
// to each ancestor type in turn, so a more specific type's rules are tried
// before a more general ancestor's.
func (rs *RuleSet) Candidates(typ *core.TargetType, action core.Action) []Rule {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return append([]Rule(nil), rs.rules[bucketKey{typ: typ, action: action.String()}]...)
}

// ActionsFor returns the distinct action strings that have at least one
// rule registered against typ or one of its ancestor types, for "did you
// mean" diagnostics when a target fails to match under the action it was
// actually requested with (selectRule in match.go).
func (rs *RuleSet) ActionsFor(typ *core.TargetType) []string {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	seen := map[string]bool{}
	var out []string
	for t := typ; t != nil; t = t.Parent {
		for k := range rs.rules {
			if k.typ == t && !seen[k.action] {
				seen[k.action] = true
				out = append(out, k.action)
			}
		}
	}
	return out
}

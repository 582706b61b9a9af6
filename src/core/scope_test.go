package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScopeLookupInChainWalksAncestors(t *testing.T) {
	global := NewGlobalScope(NewVariablePool(nil))
	global.Variables.Set("cxx", StringValue("g++"))

	child := NewChildScope(global, NewDirPath("/", "/src"))
	c, ok := child.lookupInChain("cxx", "/src/foo.cxx")
	assert.True(t, ok)
	assert.Equal(t, StringValue("g++"), c.Get())
}

func TestScopeLookupChildShadowsParent(t *testing.T) {
	global := NewGlobalScope(NewVariablePool(nil))
	global.Variables.Set("cxx", StringValue("g++"))

	child := NewChildScope(global, NewDirPath("/", "/src"))
	child.Variables.Set("cxx", StringValue("clang++"))

	c, ok := child.lookupInChain("cxx", "/src/foo.cxx")
	assert.True(t, ok)
	assert.Equal(t, StringValue("clang++"), c.Get())
}

func TestScopePatternMostSpecificWins(t *testing.T) {
	global := NewGlobalScope(NewVariablePool(nil))
	broad := NewVariableMap()
	broad.Set("warn", BoolValue(false))
	narrow := NewVariableMap()
	narrow.Set("warn", BoolValue(true))

	global.Patterns.Add(NewGlobPattern("/src/*", broad))
	global.Patterns.Add(NewGlobPattern("/src/important.cxx", narrow))

	c, ok := global.lookupInChain("warn", "/src/important.cxx")
	assert.True(t, ok)
	assert.Equal(t, BoolValue(true), c.Get())
}

func TestScopeLookupMissingReturnsFalse(t *testing.T) {
	global := NewGlobalScope(NewVariablePool(nil))
	_, ok := global.lookupInChain("nope", "/src/foo.cxx")
	assert.False(t, ok)
}

func TestLookupTargetOwnVariablesWinOverScope(t *testing.T) {
	global := NewGlobalScope(NewVariablePool(nil))
	global.Variables.Set("opt", Int64Value(0))

	tgt := NewTarget(NewTargetKey(TypeFile, NewDirPath("/", "/src"), Name("foo")))
	tgt.Scope = global
	tgt.Variables = NewVariableMap()
	tgt.Variables.Set("opt", Int64Value(2))

	v, ok := Lookup(tgt, -1, "opt")
	assert.True(t, ok)
	assert.Equal(t, Int64Value(2), v)
}

func TestLookupFallsThroughToGroup(t *testing.T) {
	global := NewGlobalScope(NewVariablePool(nil))
	global.Variables.Set("opt", Int64Value(9))

	group := NewTarget(NewTargetKey(TypeGroup, NewDirPath("/", "/src"), Name("lib")))
	group.Scope = global
	group.Variables = NewVariableMap()
	group.Variables.Set("opt", Int64Value(7))

	member := NewTarget(NewTargetKey(TypeFile, NewDirPath("/", "/src"), Name("lib_member")))
	member.SetGroup(group)

	v, ok := Lookup(member, -1, "opt")
	assert.True(t, ok)
	assert.Equal(t, Int64Value(7), v)
}

func TestLookupRuleSpecificOpstateWinsOverTarget(t *testing.T) {
	tgt := NewTarget(NewTargetKey(TypeFile, NewDirPath("/", "/src"), Name("foo")))
	tgt.Variables = NewVariableMap()
	tgt.Variables.Set("opt", Int64Value(1))

	op := tgt.OpState(0)
	ruleVars := NewVariableMap()
	ruleVars.Set("opt", Int64Value(99))
	op.SetVariables(ruleVars)

	v, ok := Lookup(tgt, 0, "opt")
	assert.True(t, ok)
	assert.Equal(t, Int64Value(99), v)
}

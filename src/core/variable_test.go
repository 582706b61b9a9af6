package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVariableMapSetGet(t *testing.T) {
	m := NewVariableMap()
	m.Set("cxx.std", StringValue("c++20"))
	c := m.Get("cxx.std")
	assert.NotNil(t, c)
	assert.Equal(t, StringValue("c++20"), c.Get())
}

func TestVariableMapResolveFallsBackWithoutOverride(t *testing.T) {
	m := NewVariableMap()
	m.Set("warn", BoolValue(true))
	c, ok := m.Resolve("warn", 5)
	assert.True(t, ok)
	assert.Equal(t, BoolValue(true), c.Get())
}

func TestVariableMapOverrideMostSpecificWins(t *testing.T) {
	m := NewVariableMap()
	m.Set("opt", Int64Value(0))
	m.AddOverride("opt", 2, Int64Value(2))
	m.AddOverride("opt", 4, Int64Value(4))

	c, ok := m.Resolve("opt", 10)
	assert.True(t, ok)
	assert.Equal(t, Int64Value(4), c.Get(), "deepest override at or below the lookup depth wins")

	c, ok = m.Resolve("opt", 3)
	assert.True(t, ok)
	assert.Equal(t, Int64Value(2), c.Get(), "the depth-4 override doesn't apply above depth 3")

	c, ok = m.Resolve("opt", 1)
	assert.True(t, ok)
	assert.Equal(t, Int64Value(0), c.Get(), "no override applies this shallow, falls back to the plain value")
}

func TestVariableMapResolveMissing(t *testing.T) {
	m := NewVariableMap()
	_, ok := m.Resolve("nope", 0)
	assert.False(t, ok)
}

func TestVariablePoolDeclareAndLookup(t *testing.T) {
	root := NewVariablePool(nil)
	root.Declare(&Variable{Name: "cxx", DeclaredType: TypeString})

	child := NewVariablePool(root)
	child.Declare(&Variable{Name: "cxx.std", DeclaredType: TypeString})

	v, ok := child.Lookup("cxx")
	assert.True(t, ok, "child pool should see its parent's declarations")
	assert.Equal(t, "cxx", v.Name)

	_, ok = root.Lookup("cxx.std")
	assert.False(t, ok, "parent pool must not see a child's declarations")
}

func TestVariablePoolDeclareDuplicatePanics(t *testing.T) {
	p := NewVariablePool(nil)
	p.Declare(&Variable{Name: "x"})
	assert.Panics(t, func() { p.Declare(&Variable{Name: "x"}) })
}

func TestVariableResolveFollowsAlias(t *testing.T) {
	real := &Variable{Name: "real"}
	alias := &Variable{Name: "alias", alias: real}
	assert.Same(t, real, alias.Resolve())
}

package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextActionIDStableAndDense(t *testing.T) {
	ctx := NewContext()
	update := Action{MetaOperation: "perform", Operation: "update"}
	clean := Action{MetaOperation: "perform", Operation: "clean"}

	id1 := ctx.ActionID(update)
	id2 := ctx.ActionID(clean)
	id1Again := ctx.ActionID(update)

	assert.Equal(t, id1, id1Again)
	assert.NotEqual(t, id1, id2)
	assert.Equal(t, 0, id1)
	assert.Equal(t, 1, id2)
}

func TestContextActionName(t *testing.T) {
	ctx := NewContext()
	a := Action{MetaOperation: "perform", Operation: "update"}
	id := ctx.ActionID(a)
	assert.Equal(t, "perform.update", ctx.ActionName(id))
	assert.Equal(t, "<unknown action>", ctx.ActionName(99))
}

func TestNewContextHasDistinctIDs(t *testing.T) {
	a := NewContext()
	b := NewContext()
	assert.NotEqual(t, a.ID, b.ID)
}

func TestContextStoreAndRegistryUsable(t *testing.T) {
	ctx := NewContext()
	key := NewTargetKey(TypeFile, NewDirPath("/", "/src"), Name("foo"))
	_, created := ctx.Store.Insert(key, false)
	assert.True(t, created)

	_, ok := ctx.Registry.Lookup("file")
	assert.True(t, ok)
}

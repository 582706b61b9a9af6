package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTargetGroupMembership(t *testing.T) {
	group := NewTarget(NewTargetKey(TypeGroup, NewDirPath("/", "/src"), Name("lib")))
	m1 := NewTarget(NewTargetKey(TypeFile, NewDirPath("/", "/src"), Name("m1")))
	m2 := NewTarget(NewTargetKey(TypeFile, NewDirPath("/", "/src"), Name("m2")))

	group.addMember(m1)
	group.addMember(m2)
	m1.SetGroup(group)
	m2.SetGroup(group)

	assert.Same(t, group, m1.Group())
	assert.ElementsMatch(t, []*Target{m1, m2}, group.Members())
}

func TestTargetPrerequisitesFirstWriterWins(t *testing.T) {
	tgt := NewTarget(NewTargetKey(TypeFile, NewDirPath("/", "/src"), Name("foo")))
	first := &PrerequisiteList{Entries: []PrerequisiteEntry{{}}}
	second := &PrerequisiteList{Entries: []PrerequisiteEntry{{}, {}}}

	installed := tgt.SetPrerequisitesOnce(first)
	assert.Same(t, first, installed)

	installed = tgt.SetPrerequisitesOnce(second)
	assert.Same(t, first, installed, "a later writer must not replace the first")
	assert.Same(t, first, tgt.Prerequisites())
}

func TestTargetOpStateLazyGrowth(t *testing.T) {
	tgt := NewTarget(NewTargetKey(TypeFile, NewDirPath("/", "/src"), Name("foo")))
	op5 := tgt.OpState(5)
	assert.NotNil(t, op5)
	assert.Same(t, op5, tgt.OpState(5))
}

func TestTargetStateString(t *testing.T) {
	assert.Equal(t, "unchanged", StateUnchanged.String())
	assert.Equal(t, "changed", StateChanged.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "group", StateGroup.String())
	assert.Equal(t, "unknown", StateUnknown.String())
}

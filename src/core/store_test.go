package core

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStoreInsertFindRoundtrip(t *testing.T) {
	s := NewStore(16)
	key := NewTargetKey(TypeFile, NewDirPath("/", "/src"), Name("foo"))
	t1, created := s.Insert(key, false)
	assert.True(t, created)

	t2, created := s.Insert(key, false)
	assert.False(t, created)
	assert.Same(t, t1, t2)

	found, ok := s.Find(key)
	assert.True(t, ok)
	assert.Same(t, t1, found)
}

func TestStoreFindMissing(t *testing.T) {
	s := NewStore(16)
	_, ok := s.Find(NewTargetKey(TypeFile, NewDirPath("/", "/src"), Name("nope")))
	assert.False(t, ok)
}

func TestStoreExtUpgradeOnFind(t *testing.T) {
	s := NewStore(16)
	unspecified := NewTargetKey(TypeFile, NewDirPath("/", "/src"), Name("foo"))
	tgt, _ := s.Insert(unspecified, false)
	assert.True(t, tgt.Key.Ext.IsUnspecified())

	withExt := unspecified.WithExt(PresentExt("cxx"))
	found, ok := s.Find(withExt)
	assert.True(t, ok)
	assert.Same(t, tgt, found)
	assert.True(t, found.Key.Ext.IsPresent())
	assert.Equal(t, "cxx", found.Key.Ext.Value())
}

func TestStoreInsertMarksImplied(t *testing.T) {
	s := NewStore(16)
	key := NewTargetKey(TypeFile, NewDirPath("/", "/src"), Name("foo"))
	tgt, _ := s.Insert(key, true)
	assert.True(t, tgt.Implied.Load())
}

func TestStoreConcurrentInsertSameKey(t *testing.T) {
	s := NewStore(4)
	key := NewTargetKey(TypeFile, NewDirPath("/", "/src"), Name("shared"))

	var wg sync.WaitGroup
	results := make([]*Target, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			t, _ := s.Insert(key, false)
			results[i] = t
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.Same(t, results[0], r)
	}
	assert.Equal(t, 1, s.Len())
}

func TestStoreAllAndLen(t *testing.T) {
	s := NewStore(16)
	s.Insert(NewTargetKey(TypeFile, NewDirPath("/", "/src"), Name("a")), false)
	s.Insert(NewTargetKey(TypeFile, NewDirPath("/", "/src"), Name("b")), false)
	assert.Equal(t, 2, s.Len())
	assert.Len(t, s.All(), 2)
}

func TestStoreSweepRemovesUnkept(t *testing.T) {
	s := NewStore(16)
	keep, _ := s.Insert(NewTargetKey(TypeFile, NewDirPath("/", "/src"), Name("keep")), false)
	s.Insert(NewTargetKey(TypeFile, NewDirPath("/", "/src"), Name("drop")), false)

	s.Sweep(func(t *Target) bool { return t == keep })

	assert.Equal(t, 1, s.Len())
	_, ok := s.Find(NewTargetKey(TypeFile, NewDirPath("/", "/src"), Name("drop")))
	assert.False(t, ok)
}

func TestNewStorePanicsOnNonPowerOfTwo(t *testing.T) {
	assert.Panics(t, func() { NewStore(3) })
}

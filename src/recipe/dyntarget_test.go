package recipe

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDynTargetsRoundTripThroughSidecarFile(t *testing.T) {
	dir := t.TempDir()
	depdbPath := filepath.Join(dir, "out.d")

	none, err := readDynTargets(depdbPath)
	assert.NoError(t, err)
	assert.Nil(t, none)

	lines := []dynTargetLine{
		{typeName: "file", path: filepath.Join(dir, "a.gen")},
		{typeName: "file", path: filepath.Join(dir, "b.gen")},
	}
	assert.NoError(t, writeDynTargets(depdbPath, lines))

	got, err := readDynTargets(depdbPath)
	assert.NoError(t, err)
	assert.Equal(t, lines, got)
}

func TestPruneStaleDynTargetsRemovesDroppedFilesOnly(t *testing.T) {
	dir := t.TempDir()
	keepPath := filepath.Join(dir, "keep.gen")
	stalePath := filepath.Join(dir, "stale.gen")
	assert.NoError(t, os.WriteFile(keepPath, []byte("keep"), 0o644))
	assert.NoError(t, os.WriteFile(stalePath, []byte("stale"), 0o644))

	old := []dynTargetLine{{typeName: "file", path: keepPath}, {typeName: "file", path: stalePath}}
	fresh := []dynTargetLine{{typeName: "file", path: keepPath}}

	pruneStaleDynTargets(old, fresh)

	_, err := os.Stat(keepPath)
	assert.NoError(t, err)
	_, err = os.Stat(stalePath)
	assert.True(t, os.IsNotExist(err))
}

func TestParseDynTargetRejectsMalformedLine(t *testing.T) {
	_, ok := parseDynTarget("no-space-here")
	assert.False(t, ok)

	dt, ok := parseDynTarget("file /tmp/out.gen")
	assert.True(t, ok)
	assert.Equal(t, "file", dt.typeName)
	assert.Equal(t, "/tmp/out.gen", dt.path)
}

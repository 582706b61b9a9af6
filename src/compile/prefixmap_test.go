package compile

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrefixMapResolvesAgainstIncludeDir(t *testing.T) {
	pm := NewPrefixMap("/proj", []string{"-Igen", "-I", "/proj/third_party"})
	existing := map[string]bool{
		filepath.Join("/proj/gen", "out.h"): true,
	}
	resolved := pm.Resolve("out.h", "/proj/src", func(p string) bool { return existing[p] })
	assert.Equal(t, filepath.Join("/proj/gen", "out.h"), resolved)
}

func TestPrefixMapPrefersQuoteSearchWhenPresent(t *testing.T) {
	pm := NewPrefixMap("/proj", []string{"-Igen"})
	existing := map[string]bool{
		filepath.Join("/proj/src", "local.h"): true,
	}
	resolved := pm.Resolve("local.h", "/proj/src", func(p string) bool { return existing[p] })
	assert.Equal(t, filepath.Join("/proj/src", "local.h"), resolved)
}

func TestPrefixMapFallsBackToFirstDirWhenNotFound(t *testing.T) {
	pm := NewPrefixMap("/proj", []string{"-Igen"})
	resolved := pm.Resolve("not_yet_generated.h", "/proj/src", func(string) bool { return false })
	assert.Equal(t, filepath.Join("/proj/gen", "not_yet_generated.h"), resolved)
}

func TestPrefixMapLeavesAbsolutePathsUntouched(t *testing.T) {
	pm := NewPrefixMap("/proj", nil)
	resolved := pm.Resolve("/usr/include/stdio.h", "/proj/src", func(string) bool { return true })
	assert.Equal(t, "/usr/include/stdio.h", resolved)
}

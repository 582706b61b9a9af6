package compile

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/karrick/godirwalk"
)

// RealpathCache memoizes filepath.EvalSymlinks results keyed by the input
// path, grounded on please's fs.Walk wrapper (src/fs/walk.go) for the
// godirwalk usage pattern. Compile-rule header discovery walks
// symlink-heavy system include trees (spec §4.G's supplement: toolchains
// often expose /usr/include through a chain of version-suffixed symlinks)
// repeatedly across many translation units in one build, so caching the
// resolved form avoids re-resolving the same prefix thousands of times.
type RealpathCache struct {
	mu    sync.Mutex
	cache map[string]string
}

// NewRealpathCache returns an empty cache.
func NewRealpathCache() *RealpathCache {
	return &RealpathCache{cache: map[string]string{}}
}

// Resolve returns path with all symlinks resolved, consulting and then
// populating the cache.
func (c *RealpathCache) Resolve(path string) (string, error) {
	c.mu.Lock()
	if resolved, ok := c.cache[path]; ok {
		c.mu.Unlock()
		return resolved, nil
	}
	c.mu.Unlock()

	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	c.cache[path] = resolved
	c.mu.Unlock()
	return resolved, nil
}

// WarmDir walks dir, recording the realpath of every directory entry it
// finds so later Resolve calls for files under dir are cache hits without
// their own stat round trip. Symlink cycles and permission errors on
// individual entries are skipped rather than aborting the whole walk,
// since a single unreadable system directory shouldn't block extraction
// for every other header under it.
func (c *RealpathCache) WarmDir(dir string) error {
	return godirwalk.Walk(dir, &godirwalk.Options{
		Callback: func(name string, info *godirwalk.Dirent) error {
			if _, err := c.Resolve(name); err != nil {
				return godirwalk.SkipNode
			}
			return nil
		},
		ErrorCallback: func(name string, err error) godirwalk.ErrorAction {
			return godirwalk.SkipNode
		},
		Unsorted: true,
	})
}

// exists reports whether path names a file or directory that currently
// exists, following symlinks. Used by PrefixMap.Resolve.
func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

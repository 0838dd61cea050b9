package fs

import (
	"sync"
	"time"

	"github.com/aretw0/dispensa/pkg/core"
)

// cacheEntry holds the parsed fields of one document file.
type cacheEntry struct {
	Fields       core.Fields
	LastModified time.Time
	Size         int64
}

// cache avoids re-parsing unchanged files every time a collection is
// re-listed. Keys are paths relative to the store root.
type cache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
}

func newCache() *cache {
	return &cache{entries: make(map[string]*cacheEntry)}
}

// Get returns the entry when it matches the file's mtime and size.
func (c *cache) Get(relPath string, mtime time.Time, size int64) (*cacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[relPath]
	if !ok || !entry.LastModified.Equal(mtime) || entry.Size != size {
		return nil, false
	}
	return entry, true
}

// Set updates an entry.
func (c *cache) Set(relPath string, entry *cacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[relPath] = entry
}

// Delete removes a single entry.
func (c *cache) Delete(relPath string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, relPath)
}

// Prune removes the entries under dir that are not in keep.
func (c *cache) Prune(dir string, keep map[string]bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for path := range c.entries {
		if inDir(path, dir) && !keep[path] {
			delete(c.entries, path)
		}
	}
}

// Len returns the number of entries.
func (c *cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

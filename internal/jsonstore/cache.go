package jsonstore

import "sync"

// DefaultCacheEntries bounds the process-wide cache. Each document occupies
// one entry and a deployment only has a handful of documents.
const DefaultCacheEntries = 20

// version identifies one on-disk generation of a document.
type version struct {
	mtime int64
	size  int64
	inode uint64
}

type cacheEntry struct {
	version version
	raw     []byte
	value   any
}

// Cache holds decoded documents keyed by path and on-disk version. When an
// insert would exceed the capacity the whole cache is cleared.
type Cache struct {
	mu      sync.Mutex
	max     int
	entries map[string]cacheEntry
}

// NewCache creates a cache holding at most maxEntries documents.
func NewCache(maxEntries int) *Cache {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &Cache{
		max:     maxEntries,
		entries: make(map[string]cacheEntry, maxEntries),
	}
}

var defaultCache = NewCache(DefaultCacheEntries)

func (c *Cache) get(path string, v version) (cacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[path]
	if !ok || e.version != v {
		return cacheEntry{}, false
	}
	return e, true
}

func (c *Cache) put(path string, e cacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[path]; !exists && len(c.entries) >= c.max {
		clear(c.entries)
	}
	c.entries[path] = e
}

// Invalidate drops the entry for path.
func (c *Cache) Invalidate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, path)
}

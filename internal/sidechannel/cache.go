package sidechannel

import (
	"os"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// fileStamp keys a cached parse. The key changes whenever the file is
// rewritten, so a stale entry is never served; it just ages out.
type fileStamp struct {
	path    string
	modTime int64
	size    int64
}

// Cache memoizes parsed side-channel files by path and modification
// stamp. Safe for concurrent use.
type Cache[V any] struct {
	mu      sync.Mutex
	entries *lru.Cache[fileStamp, V]

	hits   uint64
	misses uint64
}

// NewCache builds a cache holding up to size parses.
func NewCache[V any](size int) (*Cache[V], error) {
	if size <= 0 {
		size = cacheSize
	}
	entries, err := lru.New[fileStamp, V](size)
	if err != nil {
		return nil, err
	}
	return &Cache[V]{entries: entries}, nil
}

// Load returns the cached parse of path, or runs parse and caches the
// result. Parse errors are never cached; the next Load retries.
func (c *Cache[V]) Load(path string, parse func(string) (V, error)) (V, error) {
	var zero V
	info, err := os.Stat(path)
	if err != nil {
		return zero, err
	}
	key := fileStamp{path: path, modTime: info.ModTime().UnixNano(), size: info.Size()}

	c.mu.Lock()
	if v, ok := c.entries.Get(key); ok {
		c.hits++
		c.mu.Unlock()
		return v, nil
	}
	c.misses++
	c.mu.Unlock()

	v, err := parse(path)
	if err != nil {
		return zero, err
	}

	c.mu.Lock()
	c.entries.Add(key, v)
	c.mu.Unlock()
	return v, nil
}

// Stats returns cache performance counters.
func (c *Cache[V]) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	hitRate := float64(0)
	if total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}
	return CacheStats{Hits: c.hits, Misses: c.misses, HitRate: hitRate, Len: c.entries.Len()}
}

// CacheStats holds cache performance counters.
type CacheStats struct {
	Hits    uint64
	Misses  uint64
	HitRate float64
	Len     int
}

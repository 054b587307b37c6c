package types

import (
	"net/url"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v4"
)

// DefaultCacheEntries bounds the response cache when CACHE_MAX_ENTRIES is unset.
const DefaultCacheEntries = 2048

// ResponseCache holds encoded GET responses until the next ingest. Every purge starts a new
// generation; a response computed under an older generation is never kept.
type ResponseCache struct {
	entries    *xsync.Map[string, []byte]
	gen        atomic.Uint64
	maxEntries int
}

// NewResponseCache returns a cache holding at most maxEntries responses. Values below 1
// select DefaultCacheEntries.
func NewResponseCache(maxEntries int) *ResponseCache {
	if maxEntries < 1 {
		maxEntries = DefaultCacheEntries
	}
	return &ResponseCache{entries: xsync.NewMap[string, []byte](), maxEntries: maxEntries}
}

// CacheKey is the path plus the query parameters in sorted order, so parameter order and
// encoding do not produce distinct entries.
func CacheKey(u *url.URL) string {
	q := u.Query().Encode()
	if q == "" {
		return u.Path
	}
	return u.Path + "?" + q
}

// Generation is read before computing a response and handed back to Store.
func (c *ResponseCache) Generation() uint64 {
	return c.gen.Load()
}

func (c *ResponseCache) Load(key string) ([]byte, bool) {
	return c.entries.Load(key)
}

// Store keeps body when no purge happened since gen was read and the cache has room.
// It reports whether the entry was kept.
func (c *ResponseCache) Store(gen uint64, key string, body []byte) bool {
	if c.gen.Load() != gen || c.entries.Size() >= c.maxEntries {
		return false
	}
	c.entries.Store(key, body)
	// a purge that raced the store above may have cleared before it landed
	if c.gen.Load() != gen {
		c.entries.Delete(key)
		return false
	}
	return true
}

// Purge starts a new generation and drops every entry. It returns the number dropped.
func (c *ResponseCache) Purge() int {
	c.gen.Add(1)
	n := c.entries.Size()
	c.entries.Clear()
	return n
}

func (c *ResponseCache) Size() int {
	return c.entries.Size()
}

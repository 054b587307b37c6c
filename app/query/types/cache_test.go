package types

import (
	"fmt"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponseCacheStoreAfterPurgeIsDropped(t *testing.T) {
	c := NewResponseCache(0)
	gen := c.Generation()
	assert.Equal(t, 0, c.Purge())

	assert.False(t, c.Store(gen, "/stats/summary", []byte(`{"stale":true}`)))
	_, ok := c.Load("/stats/summary")
	assert.False(t, ok)

	fresh := c.Generation()
	require.True(t, c.Store(fresh, "/stats/summary", []byte(`{}`)))
	body, ok := c.Load("/stats/summary")
	require.True(t, ok)
	assert.Equal(t, `{}`, string(body))
	assert.Equal(t, 1, c.Purge())
	assert.Equal(t, 0, c.Size())
}

func TestResponseCacheBounded(t *testing.T) {
	c := NewResponseCache(3)
	gen := c.Generation()
	for i := 0; i < 10; i++ {
		c.Store(gen, fmt.Sprintf("/stats/trend?code=%d", i), []byte(`[]`))
	}
	assert.Equal(t, 3, c.Size())

	assert.Equal(t, DefaultCacheEntries, NewResponseCache(-1).maxEntries)
}

func TestCacheKey(t *testing.T) {
	tests := map[string]struct {
		a, b string
		same bool
	}{
		"param order": {a: "/positions?city=a&page=2", b: "/positions?page=2&city=a", same: true},
		"percent encoding": {
			a:    "/positions?city=%E6%AD%A6%E6%B1%89%E5%B8%82",
			b:    "/positions?city=武汉市",
			same: true,
		},
		"no query":       {a: "/stats/summary", b: "/stats/summary?", same: true},
		"distinct value": {a: "/positions?page=1", b: "/positions?page=2", same: false},
		"distinct path":  {a: "/stats/trend", b: "/stats/summary", same: false},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			a, err := url.Parse(tt.a)
			require.NoError(t, err)
			b, err := url.Parse(tt.b)
			require.NoError(t, err)
			assert.Equal(t, tt.same, CacheKey(a) == CacheKey(b))
		})
	}
}

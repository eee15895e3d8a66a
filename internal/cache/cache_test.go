package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntoineDubuc/theodore/internal/model"
)

func newTestCache(t *testing.T, ttl time.Duration) *Cache {
	t.Helper()
	c, err := Open(t.TempDir(), ttl)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func somePages() []model.PageContent {
	return []model.PageContent{
		{URL: "https://acme.test/about", Kind: model.ContentKindCleanedHTML, Body: "about content here"},
		{URL: "https://acme.test/contact", Kind: model.ContentKindCleanedHTML, Body: "contact content here"},
	}
}

func TestCachePutGetRoundtrip(t *testing.T) {
	t.Parallel()
	c := newTestCache(t, time.Hour)

	require.NoError(t, c.Put("https://acme.test", somePages()))

	site, ok, err := c.Get("https://acme.test")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, site.Pages, 2)
	assert.Equal(t, "https://acme.test/about", site.Pages[0].URL)
	assert.False(t, site.CrawledAt.IsZero())
}

func TestCacheKeyNormalization(t *testing.T) {
	t.Parallel()
	c := newTestCache(t, time.Hour)

	require.NoError(t, c.Put("https://ACME.test/", somePages()))

	_, ok, err := c.Get("https://acme.test")
	require.NoError(t, err)
	assert.True(t, ok, "host case and trailing slash are not distinct keys")
}

func TestCacheMiss(t *testing.T) {
	t.Parallel()
	c := newTestCache(t, time.Hour)

	site, ok, err := c.Get("https://never-stored.test")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, site)
}

func TestCacheExpiryIsAMiss(t *testing.T) {
	t.Parallel()
	c := newTestCache(t, 10*time.Millisecond)

	require.NoError(t, c.Put("https://acme.test", somePages()))
	time.Sleep(30 * time.Millisecond)

	_, ok, err := c.Get("https://acme.test")
	require.NoError(t, err)
	assert.False(t, ok, "expired entry is a miss")

	_, ok, err = c.Get("https://acme.test")
	require.NoError(t, err)
	assert.False(t, ok, "expired entry was evicted")
}

func TestCacheInvalidate(t *testing.T) {
	t.Parallel()
	c := newTestCache(t, time.Hour)

	require.NoError(t, c.Put("https://acme.test", somePages()))
	require.NoError(t, c.Invalidate("https://acme.test"))

	_, ok, err := c.Get("https://acme.test")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Invalidate("https://acme.test"), "invalidating a miss is fine")
}

func TestCacheSweep(t *testing.T) {
	t.Parallel()
	c := newTestCache(t, 10*time.Millisecond)

	require.NoError(t, c.Put("https://one.test", somePages()))
	require.NoError(t, c.Put("https://two.test", somePages()))
	time.Sleep(30 * time.Millisecond)
	require.NoError(t, c.Put("https://fresh.test", somePages()))

	// fresh.test is inside its TTL window, the others are past it.
	c.ttl = time.Hour
	require.NoError(t, c.Put("https://keep.test", somePages()))

	n, err := c.Sweep()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 2)

	_, ok, err := c.Get("https://keep.test")
	require.NoError(t, err)
	assert.True(t, ok)
}

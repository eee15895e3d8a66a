// Package cache stores extracted site content in a local Badger
// database so repeat research within the TTL can skip discovery and
// extraction entirely.
package cache

import (
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rotisserie/eris"
	"github.com/timshannon/badgerhold/v4"
	"go.uber.org/zap"

	"github.com/AntoineDubuc/theodore/internal/errs"
	"github.com/AntoineDubuc/theodore/internal/model"
	"github.com/AntoineDubuc/theodore/internal/urlnorm"
)

// Cache is a TTL-bound crawl cache keyed by normalized site URL.
type Cache struct {
	store *badgerhold.Store
	ttl   time.Duration
}

// DefaultTTL applies when no TTL is configured.
const DefaultTTL = 168 * time.Hour

// Open opens (or creates) the cache database at path.
func Open(path string, ttl time.Duration) (*Cache, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	options := badgerhold.DefaultOptions
	options.Options = badger.DefaultOptions(path).WithLogger(nil)

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, eris.Wrap(errs.ErrStorage, "cache: open: "+err.Error())
	}
	return &Cache{store: store, ttl: ttl}, nil
}

func (c *Cache) Close() error {
	return c.store.Close()
}

// Get returns the cached site for the URL, or ok=false on a miss. An
// expired entry counts as a miss and is deleted on the way out.
func (c *Cache) Get(siteURL string) (*model.CachedSite, bool, error) {
	key, err := urlnorm.Normalize(siteURL, nil)
	if err != nil {
		return nil, false, eris.Wrap(err, "cache: normalize key")
	}

	var site model.CachedSite
	err = c.store.Get(key, &site)
	if err == badgerhold.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(errs.ErrStorage, "cache: get: "+err.Error())
	}

	if site.Expired(time.Now().UTC()) {
		if derr := c.store.Delete(key, &model.CachedSite{}); derr != nil && derr != badgerhold.ErrNotFound {
			zap.L().Warn("cache: failed to evict expired entry", zap.String("site", key), zap.Error(derr))
		}
		return nil, false, nil
	}
	return &site, true, nil
}

// Put stores the extracted pages for the site under the configured TTL.
func (c *Cache) Put(siteURL string, pages []model.PageContent) error {
	key, err := urlnorm.Normalize(siteURL, nil)
	if err != nil {
		return eris.Wrap(err, "cache: normalize key")
	}

	now := time.Now().UTC()
	site := model.CachedSite{
		SiteURL:   key,
		Pages:     pages,
		CrawledAt: now,
		ExpiresAt: now.Add(c.ttl),
	}
	if err := c.store.Upsert(key, &site); err != nil {
		return eris.Wrap(errs.ErrStorage, "cache: put: "+err.Error())
	}
	return nil
}

// Invalidate drops the cached entry for the site, if any.
func (c *Cache) Invalidate(siteURL string) error {
	key, err := urlnorm.Normalize(siteURL, nil)
	if err != nil {
		return eris.Wrap(err, "cache: normalize key")
	}
	if err := c.store.Delete(key, &model.CachedSite{}); err != nil && err != badgerhold.ErrNotFound {
		return eris.Wrap(errs.ErrStorage, "cache: invalidate: "+err.Error())
	}
	return nil
}

// Sweep deletes every expired entry and returns how many went.
func (c *Cache) Sweep() (int, error) {
	now := time.Now().UTC()

	var expired []model.CachedSite
	query := badgerhold.Where("ExpiresAt").Lt(now)
	if err := c.store.Find(&expired, query); err != nil {
		return 0, eris.Wrap(errs.ErrStorage, "cache: sweep find: "+err.Error())
	}
	if len(expired) == 0 {
		return 0, nil
	}

	if err := c.store.DeleteMatching(&model.CachedSite{}, query); err != nil {
		return 0, eris.Wrap(errs.ErrStorage, "cache: sweep delete: "+err.Error())
	}

	// Reclaim value-log space from the deleted entries. ErrNoRewrite
	// just means there was nothing worth compacting.
	if err := c.store.Badger().RunValueLogGC(0.5); err != nil && err != badger.ErrNoRewrite {
		zap.L().Warn("cache: value log gc failed", zap.Error(err))
	}

	zap.L().Info("cache: swept expired entries", zap.Int("count", len(expired)))
	return len(expired), nil
}

// Package discovery enumerates a company site's URL surface from three
// sources: robots.txt, sitemaps, and a bounded rendered crawl. The union
// is normalized, same-origin filtered, and capped in BFS order.
package discovery

import (
	"context"
	"net/url"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/AntoineDubuc/theodore/internal/fetcher"
	"github.com/AntoineDubuc/theodore/internal/model"
	"github.com/AntoineDubuc/theodore/internal/urlnorm"
)

// Limits bounds one discovery run. Zero values take the defaults.
type Limits struct {
	MaxDepth        int
	MaxLinksPerPage int
	MaxVisited      int
	WallTime        time.Duration
	MaxURLs         int
}

func (l Limits) withDefaults() Limits {
	if l.MaxDepth <= 0 {
		l.MaxDepth = 3
	}
	if l.MaxLinksPerPage <= 0 {
		l.MaxLinksPerPage = 50
	}
	if l.MaxVisited <= 0 {
		l.MaxVisited = 200
	}
	if l.WallTime <= 0 {
		l.WallTime = 30 * time.Second
	}
	if l.MaxURLs <= 0 {
		l.MaxURLs = 1000
	}
	return l
}

// StaticFetcher is the plain-HTTP path used for robots and sitemaps.
type StaticFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetcher.FetchResult, error)
	Exists(ctx context.Context, rawURL string) bool
}

// Renderer is the headless-browser path used for the recursive crawl.
type Renderer interface {
	Render(ctx context.Context, rawURL string) (*fetcher.FetchResult, error)
}

// Engine unions the three discovery sources for one site.
type Engine struct {
	static StaticFetcher
	render Renderer
}

// New creates a discovery engine. The renderer must be the run's shared
// browser session; the engine never creates browsers of its own.
func New(static StaticFetcher, render Renderer) *Engine {
	return &Engine{static: static, render: render}
}

// setBuilder accumulates normalized, same-origin URLs in arrival order.
// First origin wins for URLs reported by several sources.
type setBuilder struct {
	seed       string
	originHost string
	base       *url.URL
	seen       map[string]bool
	urls       []model.DiscoveredURL
}

func newSetBuilder(seed string, base *url.URL) *setBuilder {
	return &setBuilder{
		seed:       seed,
		originHost: base.Hostname(),
		base:       base,
		seen:       make(map[string]bool),
	}
}

// add normalizes and filters one raw URL. Returns the canonical form
// when the URL entered the set.
func (b *setBuilder) add(raw string, origin model.URLOrigin, depth int) (string, bool) {
	norm, err := urlnorm.Normalize(raw, b.base)
	if err != nil {
		return "", false
	}
	if !urlnorm.Accept(norm, b.originHost) {
		return "", false
	}
	if b.seen[norm] {
		return norm, false
	}
	if norm == b.seed {
		depth = 0
	}
	b.seen[norm] = true
	b.urls = append(b.urls, model.DiscoveredURL{URL: norm, Origin: origin, Depth: depth})
	return norm, true
}

// Discover runs all three sources and returns the unioned set. Individual
// source failures are warnings; discovery fails only when the seed is
// unfetchable, robots and sitemap both fail, and no links were obtained.
func (e *Engine) Discover(ctx context.Context, seedURL string, limits Limits) (*model.DiscoverySet, error) {
	limits = limits.withDefaults()

	seed, err := urlnorm.Normalize(seedURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "discovery: seed url")
	}
	base, err := url.Parse(seed)
	if err != nil {
		return nil, eris.Wrap(err, "discovery: parse seed")
	}

	log := zap.L().With(zap.String("seed", seed))
	builder := newSetBuilder(seed, base)
	set := &model.DiscoverySet{Seed: seed}

	ctx, cancel := context.WithTimeout(ctx, limits.WallTime)
	defer cancel()

	warn := func(msg string, err error) {
		if err != nil {
			msg += ": " + err.Error()
		}
		set.Warnings = append(set.Warnings, msg)
		log.Warn("discovery: " + msg)
	}

	// Static preflight. A blocked homepage is a warning, not a failure;
	// robots and sitemaps still get their turn.
	set.Probe = e.Probe(ctx, seed)
	if set.Probe.Blocked {
		warn("seed appears bot-protected ("+set.Probe.BlockType+")", nil)
	}

	// Source 1: robots.txt. Sitemap directives feed source 2; Disallow
	// paths are added as seeds, they often mark high-value sections.
	robots, robotsErr := e.fetchRobots(ctx, base)
	if robotsErr != nil {
		warn("robots.txt unavailable", robotsErr)
	} else {
		for _, p := range robots.disallowPaths {
			builder.add(p, model.OriginRobots, 1)
		}
	}

	// Source 2: sitemaps, from robots directives plus the conventional
	// locations, with sitemap indexes resolved recursively.
	var sitemapSources []string
	if robots != nil {
		sitemapSources = append(sitemapSources, robots.sitemaps...)
	}
	sitemapCount, sitemapErr := e.collectSitemaps(ctx, base, sitemapSources, builder)
	if sitemapErr != nil {
		warn("sitemap collection failed", sitemapErr)
	}

	// Source 3: bounded rendered crawl from the seed.
	crawled, seedReachable := e.crawl(ctx, seed, base, builder, limits, warn)

	set.URLs = builder.urls
	if !seedReachable && robotsErr != nil && sitemapCount == 0 && crawled == 0 {
		return nil, eris.Wrap(eris.New("discovery: site unreachable and all sources failed"), seed)
	}

	// BFS order: by depth, insertion order within a depth, first MaxURLs.
	sort.SliceStable(set.URLs, func(i, j int) bool {
		return set.URLs[i].Depth < set.URLs[j].Depth
	})
	if len(set.URLs) > limits.MaxURLs {
		set.URLs = set.URLs[:limits.MaxURLs]
	}

	log.Info("discovery: complete",
		zap.Int("urls", len(set.URLs)),
		zap.Int("sitemap_urls", sitemapCount),
		zap.Int("crawled_pages", crawled),
		zap.Int("warnings", len(set.Warnings)),
	)
	return set, nil
}

// baseOf returns scheme://host for a parsed URL.
func baseOf(u *url.URL) string {
	return u.Scheme + "://" + u.Host
}

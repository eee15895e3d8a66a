package discovery

import (
	"context"
	"encoding/xml"
	"net/url"

	"github.com/rotisserie/eris"

	"github.com/AntoineDubuc/theodore/internal/model"
	"github.com/AntoineDubuc/theodore/internal/urlnorm"
)

// conventionalSitemapPaths are tried when robots.txt names no sitemap.
var conventionalSitemapPaths = []string{
	"/sitemap.xml",
	"/sitemap_index.xml",
	"/sitemaps/sitemap.xml",
}

// maxSitemapFetches caps how many sitemap documents one discovery run
// will download, indexes included.
const maxSitemapFetches = 20

// sitemapDoc covers both <urlset> and <sitemapindex> documents; only
// one of URLs and Sitemaps is populated for a given file.
type sitemapDoc struct {
	XMLName  xml.Name     `xml:""`
	URLs     []sitemapLoc `xml:"url"`
	Sitemaps []sitemapLoc `xml:"sitemap"`
}

type sitemapLoc struct {
	Loc string `xml:"loc"`
}

// collectSitemaps resolves every sitemap source, following sitemap
// indexes recursively, and adds each <loc> to the set. Returns how many
// URLs the source contributed; the error reports total source failure.
func (e *Engine) collectSitemaps(ctx context.Context, base *url.URL, fromRobots []string, builder *setBuilder) (int, error) {
	sources := fromRobots
	if len(sources) == 0 {
		// Conventional locations are HEAD-probed first; only the ones
		// present get fetched and parsed.
		for _, p := range conventionalSitemapPaths {
			candidate := baseOf(base) + p
			if e.static.Exists(ctx, candidate) {
				sources = append(sources, candidate)
			}
		}
	}

	fetched := 0
	added := 0
	var lastErr error
	visited := make(map[string]bool)

	var resolve func(sitemapURL string)
	resolve = func(sitemapURL string) {
		if visited[sitemapURL] || fetched >= maxSitemapFetches || ctx.Err() != nil {
			return
		}
		visited[sitemapURL] = true
		fetched++

		doc, err := e.fetchSitemap(ctx, sitemapURL)
		if err != nil {
			lastErr = err
			return
		}

		for _, sm := range doc.Sitemaps {
			if norm, err := urlnorm.Normalize(sm.Loc, base); err == nil {
				resolve(norm)
			}
		}
		for _, entry := range doc.URLs {
			if _, ok := builder.add(entry.Loc, model.OriginSitemap, 1); ok {
				added++
			}
		}
	}

	for _, s := range sources {
		resolve(s)
	}

	if added == 0 && lastErr != nil {
		return 0, lastErr
	}
	return added, nil
}

// fetchSitemap downloads and parses one sitemap document.
func (e *Engine) fetchSitemap(ctx context.Context, sitemapURL string) (*sitemapDoc, error) {
	res, err := e.static.Fetch(ctx, sitemapURL)
	if err != nil {
		return nil, eris.Wrap(err, "discovery: fetch sitemap")
	}
	if !res.OK() {
		return nil, eris.Errorf("discovery: sitemap %s status %d", sitemapURL, res.StatusCode)
	}

	var doc sitemapDoc
	if err := xml.Unmarshal(res.Body, &doc); err != nil {
		return nil, eris.Wrapf(err, "discovery: parse sitemap %s", sitemapURL)
	}
	return &doc, nil
}

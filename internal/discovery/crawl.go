package discovery

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/AntoineDubuc/theodore/internal/fetcher"
	"github.com/AntoineDubuc/theodore/internal/model"
)

// crawlBatchSize is how many pages of one depth render concurrently.
const crawlBatchSize = 5

type crawlItem struct {
	url   string
	depth int
}

// crawl walks the site breadth-first through the shared browser session,
// one depth at a time. Depth, per-page link, and total-visit caps each
// terminate the walk early without error; so does the phase deadline.
// Returns the number of pages visited and whether the seed rendered.
func (e *Engine) crawl(ctx context.Context, seed string, base *url.URL, builder *setBuilder, limits Limits, warn func(string, error)) (visited int, seedReachable bool) {
	// The homepage is always included when reachable.
	seedRes, err := e.render.Render(ctx, seed)
	if err != nil || !seedRes.OK() {
		warn("seed page unreachable", err)
		return 0, false
	}
	if blocked, kind := fetcher.DetectBlock(seedRes); blocked {
		warn("seed page served a "+string(kind)+" block", nil)
	}
	builder.add(seed, model.OriginCrawl, 0)
	visited = 1

	frontier := extractLinks(seedRes.HTML, base, limits.MaxLinksPerPage)
	queue := make([]crawlItem, 0, len(frontier))
	enqueued := map[string]bool{seed: true}
	for _, link := range frontier {
		norm, ok := builder.add(link, model.OriginCrawl, 1)
		if ok && !enqueued[norm] {
			enqueued[norm] = true
			queue = append(queue, crawlItem{url: norm, depth: 1})
		}
	}

	var mu sync.Mutex
	for len(queue) > 0 && visited < limits.MaxVisited && ctx.Err() == nil {
		n := min(crawlBatchSize, len(queue), limits.MaxVisited-visited)
		batch := queue[:n]
		queue = queue[n:]
		visited += len(batch)

		g, gCtx := errgroup.WithContext(ctx)
		g.SetLimit(crawlBatchSize)

		for _, item := range batch {
			if item.depth >= limits.MaxDepth {
				continue
			}
			g.Go(func() error {
				res, err := e.render.Render(gCtx, item.url)
				if err != nil || !res.OK() {
					zap.L().Debug("discovery: crawl page failed",
						zap.String("url", item.url), zap.Error(err))
					return nil
				}
				links := extractLinks(res.HTML, base, limits.MaxLinksPerPage)

				mu.Lock()
				defer mu.Unlock()
				for _, link := range links {
					norm, ok := builder.add(link, model.OriginCrawl, item.depth+1)
					if ok && !enqueued[norm] {
						enqueued[norm] = true
						queue = append(queue, crawlItem{url: norm, depth: item.depth + 1})
					}
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	return visited, true
}

// extractLinks walks a[href] anchors in rendered HTML, resolving against
// base and keeping at most maxLinks candidates. Filtering against the
// origin happens in the set builder; this only drops obvious non-links.
func extractLinks(html string, base *url.URL, maxLinks int) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var links []string
	seen := make(map[string]bool)
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") ||
			strings.HasPrefix(href, "tel:") || strings.HasPrefix(href, "data:") {
			return true
		}
		if seen[href] {
			return true
		}
		seen[href] = true
		links = append(links, href)
		return len(links) < maxLinks
	})
	return links
}

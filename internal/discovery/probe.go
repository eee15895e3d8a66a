package discovery

import (
	"context"
	"net/url"

	"github.com/AntoineDubuc/theodore/internal/fetcher"
	"github.com/AntoineDubuc/theodore/internal/model"
)

// Probe takes a static look at a site before discovery: homepage
// reachability and block status from one GET, robots.txt and sitemap
// presence from HEAD requests.
func (e *Engine) Probe(ctx context.Context, seedURL string) *model.ProbeResult {
	probe := &model.ProbeResult{}

	res, err := e.static.Fetch(ctx, seedURL)
	if err == nil {
		probe.Reachable = res.OK()
		probe.StatusCode = res.StatusCode
		probe.FinalURL = res.FinalURL
		if blocked, kind := fetcher.DetectBlock(res); blocked {
			probe.Blocked = true
			probe.BlockType = string(kind)
		}
	}

	if base, perr := url.Parse(seedURL); perr == nil {
		probe.HasRobots = e.static.Exists(ctx, baseOf(base)+"/robots.txt")
		probe.HasSitemap = e.static.Exists(ctx, baseOf(base)+"/sitemap.xml")
	}
	return probe
}

package discovery

import (
	"context"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/temoto/robotstxt"
)

// robotsInfo is what discovery takes from a robots.txt file: sitemap
// directives to follow and disallowed paths to add as seeds.
type robotsInfo struct {
	sitemaps      []string
	disallowPaths []string
}

// fetchRobots downloads and parses robots.txt for the seed's origin.
// A 404 is not an error; it simply yields no directives.
func (e *Engine) fetchRobots(ctx context.Context, base *url.URL) (*robotsInfo, error) {
	robotsURL := baseOf(base) + "/robots.txt"

	res, err := e.static.Fetch(ctx, robotsURL)
	if err != nil {
		return nil, eris.Wrap(err, "discovery: fetch robots.txt")
	}
	if !res.OK() && res.StatusCode != 404 {
		return nil, eris.Errorf("discovery: robots.txt status %d", res.StatusCode)
	}

	data, err := robotstxt.FromStatusAndBytes(res.StatusCode, res.Body)
	if err != nil {
		return nil, eris.Wrap(err, "discovery: parse robots.txt")
	}

	info := &robotsInfo{
		sitemaps:      data.Sitemaps,
		disallowPaths: scanDisallows(string(res.Body)),
	}
	return info, nil
}

// scanDisallows collects literal Disallow paths. The robotstxt library
// keeps its rules private, and discovery wants the paths themselves, so
// a line scan does the work. Wildcard patterns and the bare root are
// skipped; they name no concrete page.
func scanDisallows(body string) []string {
	var paths []string
	seen := make(map[string]bool)

	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if idx := strings.Index(line, "#"); idx >= 0 {
			line = strings.TrimSpace(line[:idx])
		}
		key, value, found := strings.Cut(line, ":")
		if !found || !strings.EqualFold(strings.TrimSpace(key), "Disallow") {
			continue
		}
		path := strings.TrimSpace(value)
		if path == "" || path == "/" || strings.ContainsAny(path, "*$") {
			continue
		}
		if !strings.HasPrefix(path, "/") {
			continue
		}
		if !seen[path] {
			seen[path] = true
			paths = append(paths, path)
		}
	}
	return paths
}

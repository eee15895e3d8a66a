package model

// URLOrigin tags which discovery source produced a URL.
type URLOrigin string

const (
	OriginRobots  URLOrigin = "robots"
	OriginSitemap URLOrigin = "sitemap"
	OriginCrawl   URLOrigin = "crawl"
)

// DiscoveredURL is one normalized same-origin URL with its provenance.
// Depth is 0 for the homepage and grows with crawl distance.
type DiscoveredURL struct {
	URL    string    `json:"url"`
	Origin URLOrigin `json:"origin"`
	Depth  int       `json:"depth"`
}

// DiscoverySet is the deduplicated URL pool produced by link discovery,
// ordered by depth then insertion. All members are normalized and share
// the seed's registrable host.
type DiscoverySet struct {
	Seed     string          `json:"seed"`
	URLs     []DiscoveredURL `json:"urls"`
	Warnings []string        `json:"warnings,omitempty"`
	Probe    *ProbeResult    `json:"probe,omitempty"`
}

// URLList returns the member URLs in set order.
func (s *DiscoverySet) URLList() []string {
	out := make([]string, len(s.URLs))
	for i, u := range s.URLs {
		out[i] = u.URL
	}
	return out
}

// Len returns the number of discovered URLs.
func (s *DiscoverySet) Len() int {
	return len(s.URLs)
}

// Contains reports whether the set holds the given normalized URL.
func (s *DiscoverySet) Contains(url string) bool {
	for _, u := range s.URLs {
		if u.URL == url {
			return true
		}
	}
	return false
}

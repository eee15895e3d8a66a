// Package fetcher performs single-URL fetches for the research pipeline.
// Static fetches go through net/http with per-host rate limiting; rendered
// fetches go through one shared headless-browser session per run.
package fetcher

import (
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// FetchResult is the outcome of one URL fetch. Static fetches populate
// Body; rendered fetches populate HTML and Text.
type FetchResult struct {
	URL        string
	FinalURL   string
	StatusCode int
	Body       []byte
	HTML       string
	Text       string
	FetchedAt  time.Time
}

// OK reports whether the fetch returned a 2xx response.
func (r *FetchResult) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// checkScheme rejects every scheme except http and https. The guard runs
// regardless of the SSL-verification setting: disabling verification must
// never open file:, javascript:, data: or similar schemes.
func checkScheme(rawURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: parse url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, eris.Errorf("fetcher: refusing scheme %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, eris.New("fetcher: missing host")
	}
	return u, nil
}

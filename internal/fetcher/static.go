package fetcher

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/AntoineDubuc/theodore/internal/errs"
)

// maxStaticBodyBytes caps how much of a static response body is read.
const maxStaticBodyBytes = 2 * 1024 * 1024

// StaticOptions configures the static HTTP fetcher.
type StaticOptions struct {
	UserAgent    string
	Timeout      time.Duration
	SSLVerify    bool
	PerHostRPS   float64
	PerHostBurst int
}

// Static fetches URLs with plain HTTP GETs: browser-like User-Agent,
// per-host token buckets, hard timeout. It never retries; retry policy
// belongs to callers.
type Static struct {
	client *http.Client
	opts   StaticOptions

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewStatic creates a static fetcher with the given options.
func NewStatic(opts StaticOptions) *Static {
	if opts.Timeout == 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "Mozilla/5.0 (compatible; TheodoreBot/1.0)"
	}
	if opts.PerHostRPS <= 0 {
		opts.PerHostRPS = 2
	}
	if opts.PerHostBurst <= 0 {
		opts.PerHostBurst = 4
	}

	transport := &http.Transport{
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,
	}
	if !opts.SSLVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}

	return &Static{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		opts:     opts,
		limiters: make(map[string]*rate.Limiter),
	}
}

// limiterFor returns the token bucket for a host, creating it on first use.
func (f *Static) limiterFor(host string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	lim, ok := f.limiters[host]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(f.opts.PerHostRPS), f.opts.PerHostBurst)
		f.limiters[host] = lim
	}
	return lim
}

// Fetch performs one GET. Any HTTP response, 2xx or not, returns a
// FetchResult with the status and body; only transport errors and
// timeouts return an error.
func (f *Static) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	u, err := checkScheme(rawURL)
	if err != nil {
		return nil, err
	}

	if err := f.limiterFor(u.Hostname()).Wait(ctx); err != nil {
		return nil, eris.Wrap(errs.ErrTimeout, "fetcher: rate limiter wait: "+err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classifyTransportErr(err, rawURL)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxStaticBodyBytes))
	if err != nil {
		return nil, classifyTransportErr(err, rawURL)
	}

	return &FetchResult{
		URL:        rawURL,
		FinalURL:   resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		Body:       body,
		FetchedAt:  time.Now().UTC(),
	}, nil
}

// Exists performs a HEAD probe, falling back to GET for servers that
// reject HEAD. Used to check robots.txt and sitemap locations cheaply.
func (f *Static) Exists(ctx context.Context, rawURL string) bool {
	u, err := checkScheme(rawURL)
	if err != nil {
		return false
	}
	if err := f.limiterFor(u.Hostname()).Wait(ctx); err != nil {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, u.String(), nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	if resp.StatusCode == http.StatusMethodNotAllowed {
		res, err := f.Fetch(ctx, rawURL)
		return err == nil && res.OK()
	}
	return resp.StatusCode == http.StatusOK
}

// classifyTransportErr maps a net/http error onto the pipeline's error
// kinds: context expiry and net timeouts become ErrTimeout, everything
// else ErrNetwork.
func classifyTransportErr(err error, rawURL string) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return eris.Wrap(errs.ErrTimeout, "fetcher: "+rawURL)
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return eris.Wrap(errs.ErrTimeout, "fetcher: "+rawURL)
	}
	return eris.Wrap(errs.ErrNetwork, "fetcher: "+rawURL+": "+err.Error())
}

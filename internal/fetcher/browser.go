package fetcher

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/AntoineDubuc/theodore/internal/errs"
)

// BrowserOptions configures the shared headless-browser session.
type BrowserOptions struct {
	UserAgent   string
	SSLVerify   bool
	PageTimeout time.Duration
	// RenderWait is how long to let JavaScript settle after navigation.
	RenderWait time.Duration
}

// Browser is one shared headless Chrome session. A run creates at most
// one per phase and renders every page through it; per-URL browser
// instantiation is forbidden for performance. Rendering from multiple
// goroutines is safe: each render runs in its own tab context.
type Browser struct {
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	opts          BrowserOptions
}

// expandScript scrolls to the bottom of the page and clicks visible
// "load more" style toggles. Every step is guarded so a hostile page
// cannot break the render.
const expandScript = `(() => {
	try {
		window.scrollTo(0, document.body.scrollHeight);
		const labels = ['load more', 'show more', 'view more', 'see more'];
		const candidates = document.querySelectorAll('button, a, [role="button"]');
		for (const el of candidates) {
			const text = (el.textContent || '').trim().toLowerCase();
			if (labels.some(l => text === l || text.startsWith(l + ' '))) {
				try { el.click(); } catch (e) {}
			}
		}
	} catch (e) {}
	return true;
})()`

// statusProbe reads the navigation response status from the performance
// API; falls back to 200 where the browser does not expose it.
const statusProbe = `window.performance?.getEntriesByType?.('navigation')?.[0]?.responseStatus || 200`

// NewBrowser launches a headless Chrome session and verifies it starts
// by navigating a blank tab. The caller must Close the session when the
// phase ends.
func NewBrowser(ctx context.Context, opts BrowserOptions) (*Browser, error) {
	if opts.PageTimeout == 0 {
		opts.PageTimeout = 20 * time.Second
	}
	if opts.RenderWait == 0 {
		opts.RenderWait = 2 * time.Second
	}

	allocOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if !opts.SSLVerify {
		allocOpts = append(allocOpts, chromedp.Flag("ignore-certificate-errors", true))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Probe with about:blank so a missing Chrome binary fails here, not
	// in the middle of a phase.
	probeCtx, probeCancel := context.WithTimeout(browserCtx, 15*time.Second)
	defer probeCancel()
	if err := chromedp.Run(probeCtx, chromedp.Navigate("about:blank")); err != nil {
		browserCancel()
		allocCancel()
		return nil, eris.Wrap(err, "fetcher: start browser")
	}

	zap.L().Debug("fetcher: browser session started")
	return &Browser{
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		opts:          opts,
	}, nil
}

// Render loads a URL in a fresh tab, waits for the DOM, runs the expand
// script, and returns the post-render HTML plus an extracted-text view.
func (b *Browser) Render(ctx context.Context, rawURL string) (*FetchResult, error) {
	if _, err := checkScheme(rawURL); err != nil {
		return nil, err
	}

	tabCtx, tabCancel := chromedp.NewContext(b.browserCtx)
	defer tabCancel()

	// Honor both the caller's deadline and the hard page timeout.
	runCtx, runCancel := context.WithTimeout(tabCtx, b.opts.PageTimeout)
	defer runCancel()
	stop := propagateCancel(ctx, runCancel)
	defer stop()

	var html string
	var status int
	err := chromedp.Run(runCtx,
		chromedp.Navigate(rawURL),
		chromedp.Sleep(b.opts.RenderWait),
		chromedp.Evaluate(expandScript, nil),
		chromedp.Sleep(500*time.Millisecond),
		chromedp.Evaluate(statusProbe, &status),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return nil, eris.Wrap(errs.ErrTimeout, "fetcher: render "+rawURL)
		}
		if ctx.Err() != nil {
			return nil, eris.Wrap(errs.ErrCancelled, "fetcher: render "+rawURL)
		}
		return nil, eris.Wrap(errs.ErrNetwork, "fetcher: render "+rawURL+": "+err.Error())
	}

	return &FetchResult{
		URL:        rawURL,
		FinalURL:   rawURL,
		StatusCode: status,
		HTML:       html,
		Text:       extractText(html),
		FetchedAt:  time.Now().UTC(),
	}, nil
}

// Close tears down the browser session and its allocator.
func (b *Browser) Close() {
	if b.browserCancel != nil {
		b.browserCancel()
	}
	if b.allocCancel != nil {
		b.allocCancel()
	}
}

// propagateCancel cancels a chromedp run when the caller's context ends.
// Returns a stop function releasing the watcher goroutine.
func propagateCancel(ctx context.Context, cancel context.CancelFunc) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}

// extractText renders the visible text of an HTML document, with script
// and style contents removed and whitespace collapsed.
func extractText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	doc.Find("script, style, noscript").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}

package extractor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntoineDubuc/theodore/internal/errs"
	"github.com/AntoineDubuc/theodore/internal/fetcher"
	"github.com/AntoineDubuc/theodore/internal/model"
)

// fakeRenderer stands in for the shared browser session and records its
// peak concurrency.
type fakeRenderer struct {
	mu       sync.Mutex
	pages    map[string]*fetcher.FetchResult
	errs     map[string]error
	delay    time.Duration
	inflight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeRenderer) Render(ctx context.Context, rawURL string) (*fetcher.FetchResult, error) {
	cur := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		p := f.peak.Load()
		if cur <= p || f.peak.CompareAndSwap(p, cur) {
			break
		}
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.errs[rawURL]; ok {
		return nil, err
	}
	if res, ok := f.pages[rawURL]; ok {
		return res, nil
	}
	return &fetcher.FetchResult{URL: rawURL, StatusCode: 500}, nil
}

func page(url, html string) *fetcher.FetchResult {
	return &fetcher.FetchResult{URL: url, StatusCode: 200, HTML: html, FetchedAt: time.Now().UTC()}
}

const richHTML = `<html><body>
<nav>Home About Contact</nav>
<main><h1>Acme Robotics</h1>
<p>Acme builds autonomous warehouse robots for logistics companies across North America and Europe.</p>
<script>var tracking = true;</script>
<style>.x{color:red}</style>
</main>
<footer>Copyright Acme</footer>
</body></html>`

func TestExtractPreservesInputOrder(t *testing.T) {
	t.Parallel()

	urls := []string{
		"https://acme.test/a",
		"https://acme.test/b",
		"https://acme.test/c",
	}
	render := &fakeRenderer{pages: map[string]*fetcher.FetchResult{
		urls[0]: page(urls[0], richHTML),
		urls[1]: page(urls[1], richHTML),
		urls[2]: page(urls[2], richHTML),
	}}

	pages := New(render, Options{}).Extract(context.Background(), urls)
	require.Len(t, pages, 3)
	for i, p := range pages {
		assert.Equal(t, urls[i], p.URL, "result order must match input order")
		assert.False(t, p.IsEmpty())
	}
}

func TestExtractCleansChrome(t *testing.T) {
	t.Parallel()

	u := "https://acme.test/about"
	render := &fakeRenderer{pages: map[string]*fetcher.FetchResult{u: page(u, richHTML)}}

	pages := New(render, Options{}).Extract(context.Background(), []string{u})
	require.Len(t, pages, 1)
	p := pages[0]

	assert.Equal(t, model.ContentKindCleanedHTML, p.Kind)
	assert.Contains(t, p.Body, "autonomous warehouse robots")
	assert.NotContains(t, p.Body, "<script>")
	assert.NotContains(t, p.Body, "<style>")
	assert.NotContains(t, p.Body, "tracking")
	assert.NotContains(t, p.Body, "Copyright")
}

func TestExtractTruncatesBody(t *testing.T) {
	t.Parallel()

	long := "<html><body><main><p>" + strings.Repeat("robot word ", 3000) + "</p></main></body></html>"
	u := "https://acme.test/long"
	render := &fakeRenderer{pages: map[string]*fetcher.FetchResult{u: page(u, long)}}

	pages := New(render, Options{BodyMaxChars: 10_000}).Extract(context.Background(), []string{u})
	require.Len(t, pages, 1)
	assert.LessOrEqual(t, len(pages[0].Body), 10_000)
}

func TestExtractWordThreshold(t *testing.T) {
	t.Parallel()

	u := "https://acme.test/thin"
	render := &fakeRenderer{pages: map[string]*fetcher.FetchResult{
		u: page(u, "<html><body><main><p>just a few words</p></main></body></html>"),
	}}

	pages := New(render, Options{MinWords: 10}).Extract(context.Background(), []string{u})
	require.Len(t, pages, 1)
	assert.True(t, pages[0].IsEmpty())
	assert.Empty(t, pages[0].Body)
	assert.NotEmpty(t, pages[0].Error)
}

func TestExtractAllFailuresStillReturnsFullList(t *testing.T) {
	t.Parallel()

	urls := []string{"https://acme.test/a", "https://acme.test/b", "https://acme.test/c"}
	render := &fakeRenderer{
		pages: map[string]*fetcher.FetchResult{},
		errs: map[string]error{
			urls[0]: eris.Wrap(errs.ErrTimeout, "slow"),
			urls[1]: eris.Wrap(errs.ErrNetwork, "refused"),
			// urls[2] falls through to a 500.
		},
	}

	pages := New(render, Options{}).Extract(context.Background(), urls)
	require.Len(t, pages, len(urls), "every input url gets an entry")
	for i, p := range pages {
		assert.Equal(t, urls[i], p.URL)
		assert.True(t, p.IsEmpty())
		assert.NotEmpty(t, p.Error)
	}
}

func TestExtractBoundsConcurrency(t *testing.T) {
	t.Parallel()

	var urls []string
	pages := map[string]*fetcher.FetchResult{}
	for i := range 20 {
		u := fmt.Sprintf("https://acme.test/p%d", i)
		urls = append(urls, u)
		pages[u] = page(u, richHTML)
	}
	render := &fakeRenderer{pages: pages, delay: 20 * time.Millisecond}

	New(render, Options{Concurrency: 4}).Extract(context.Background(), urls)
	assert.LessOrEqual(t, render.peak.Load(), int32(4), "semaphore must bound in-flight fetches")
}

func TestContentViewFallbackToText(t *testing.T) {
	t.Parallel()

	// No containers yield text, but the renderer's text view does.
	res := &fetcher.FetchResult{
		URL:        "https://acme.test/x",
		StatusCode: 200,
		HTML:       "<html><body></body></html>",
		Text:       strings.Repeat("rendered text only here ", 5),
	}
	body, kind := contentViews(res, 10)
	assert.Equal(t, model.ContentKindExtractedText, kind)
	assert.Equal(t, res.Text, body)
}

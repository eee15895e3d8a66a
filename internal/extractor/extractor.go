// Package extractor fetches the selected pages through the run's shared
// browser session with bounded concurrency and reduces each one to a
// single cleaned content view.
package extractor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/AntoineDubuc/theodore/internal/fetcher"
	"github.com/AntoineDubuc/theodore/internal/model"
)

// Renderer is the shared browser session pages are fetched through.
type Renderer interface {
	Render(ctx context.Context, rawURL string) (*fetcher.FetchResult, error)
}

// Options tunes one extraction phase.
type Options struct {
	Concurrency  int
	BodyMaxChars int
	MinWords     int
}

func (o Options) withDefaults() Options {
	if o.Concurrency <= 0 {
		o.Concurrency = 10
	}
	if o.BodyMaxChars <= 0 {
		o.BodyMaxChars = 10_000
	}
	if o.MinWords <= 0 {
		o.MinWords = 10
	}
	return o
}

// Extractor turns selected URLs into PageContent values.
type Extractor struct {
	render Renderer
	opts   Options
}

// New creates an extractor over the given browser session.
func New(render Renderer, opts Options) *Extractor {
	return &Extractor{render: render, opts: opts.withDefaults()}
}

// Extract fetches every URL once, concurrency bounded by the semaphore.
// The result has exactly one entry per input URL, in input order; failed
// pages carry content kind empty and an error message. Individual page
// failures never fail the phase.
func (e *Extractor) Extract(ctx context.Context, urls []string) []model.PageContent {
	pages := make([]model.PageContent, len(urls))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Concurrency)

	for i, u := range urls {
		g.Go(func() error {
			pages[i] = e.extractOne(gCtx, u)
			return nil
		})
	}
	_ = g.Wait()

	ok := 0
	for _, p := range pages {
		if !p.IsEmpty() {
			ok++
		}
	}
	zap.L().Info("extractor: phase complete",
		zap.Int("requested", len(urls)),
		zap.Int("extracted", ok),
	)
	return pages
}

// extractOne renders a page and picks the first non-empty content view:
// cleaned HTML, then markdown, then raw extracted text.
func (e *Extractor) extractOne(ctx context.Context, rawURL string) model.PageContent {
	page := model.PageContent{URL: rawURL, FetchedAt: time.Now().UTC()}

	res, err := e.render.Render(ctx, rawURL)
	if err != nil {
		page.Kind = model.ContentKindEmpty
		page.Error = err.Error()
		return page
	}

	page.HTTPStatus = res.StatusCode
	page.FetchedAt = res.FetchedAt
	if !res.OK() {
		page.Kind = model.ContentKindEmpty
		page.Error = fmt.Sprintf("http status %d", res.StatusCode)
		return page
	}

	body, kind := contentViews(res, e.opts.MinWords)
	if kind == model.ContentKindEmpty {
		page.Kind = model.ContentKindEmpty
		page.Error = "no usable content above word threshold"
		return page
	}

	if len(body) > e.opts.BodyMaxChars {
		body = body[:e.opts.BodyMaxChars]
	}
	page.Kind = kind
	page.Body = body
	page.ByteSize = len(res.HTML)
	return page
}

// contentViews tries each view in preference order and returns the first
// one that clears the word threshold.
func contentViews(res *fetcher.FetchResult, minWords int) (string, model.ContentKind) {
	if body := cleanHTML(res.HTML); countWords(body) >= minWords {
		return body, model.ContentKindCleanedHTML
	}
	if body := markdownView(res.HTML, res.URL); countWords(body) >= minWords {
		return body, model.ContentKindMarkdown
	}
	if countWords(res.Text) >= minWords {
		return res.Text, model.ContentKindExtractedText
	}
	return "", model.ContentKindEmpty
}

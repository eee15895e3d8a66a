package aggregator

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntoineDubuc/theodore/internal/errs"
	"github.com/AntoineDubuc/theodore/internal/llm"
	"github.com/AntoineDubuc/theodore/internal/model"
)

type fakeGateway struct {
	res    *llm.Result
	err    error
	system string
	prompt string
}

func (f *fakeGateway) Generate(_ context.Context, system, prompt string, _ llm.Options) (*llm.Result, error) {
	f.system = system
	f.prompt = prompt
	return f.res, f.err
}

func contentPage(url, body string) model.PageContent {
	return model.PageContent{URL: url, Kind: model.ContentKindCleanedHTML, Body: body}
}

func TestBuildCorpusGroupsAndLabels(t *testing.T) {
	t.Parallel()

	pages := []model.PageContent{
		contentPage("https://acme.test", "homepage content"),
		contentPage("https://acme.test/about", "about content"),
		contentPage("https://acme.test/contact", "contact content"),
		{URL: "https://acme.test/broken", Kind: model.ContentKindEmpty, Error: "http status 500"},
	}

	corpus := buildCorpus(pages, 8_000)
	assert.Contains(t, corpus, "=== ABOUT ===")
	assert.Contains(t, corpus, "=== CONTACT ===")
	assert.Contains(t, corpus, "=== GENERAL ===")
	assert.Contains(t, corpus, "about content")
	assert.NotContains(t, corpus, "broken", "empty pages stay out of the corpus")

	// Section order follows the fixed page-type order.
	assert.Less(t, strings.Index(corpus, "=== ABOUT ==="), strings.Index(corpus, "=== CONTACT ==="))
	assert.Less(t, strings.Index(corpus, "=== CONTACT ==="), strings.Index(corpus, "=== GENERAL ==="))
}

func TestBuildCorpusBudgetFavorsDiversity(t *testing.T) {
	t.Parallel()

	pages := []model.PageContent{
		contentPage("https://acme.test/about", strings.Repeat("a", 900)),
		contentPage("https://acme.test/about-team", strings.Repeat("b", 900)),
		contentPage("https://acme.test/contact", strings.Repeat("c", 100)),
	}

	// Budget fits the first about page plus the contact page but not the
	// second about page: each round admits one page per type.
	corpus := buildCorpus(pages, 1_000)
	assert.Contains(t, corpus, "ccc", "first page of every type beats a type's second page")
	assert.NotContains(t, corpus, "bbb")
}

func TestBuildCorpusRespectsBudget(t *testing.T) {
	t.Parallel()

	pages := []model.PageContent{
		contentPage("https://acme.test/about", strings.Repeat("x", 20_000)),
	}
	corpus := buildCorpus(pages, 8_000)
	// Labels and URL headers ride on top of the body budget.
	assert.LessOrEqual(t, len(corpus), 8_000+200)
}

func TestBuildCorpusAllEmpty(t *testing.T) {
	t.Parallel()

	pages := []model.PageContent{
		{URL: "https://acme.test/a", Kind: model.ContentKindEmpty, Error: "timeout"},
	}
	assert.Empty(t, buildCorpus(pages, 8_000))
}

func TestAggregateMergesAnswer(t *testing.T) {
	t.Parallel()

	answer := map[string]any{
		"industry":            "Robotics",
		"business_model":      "B2B",
		"company_description": "Acme builds warehouse robots.",
		"key_services":        []string{"fleet automation", " ", "robot leasing"},
		"founding_year":       "2014",
		"company_stage":       "Growth",
		"tech_sophistication": "quantum",
		"contact_info":        map[string]string{"email": "hello@acme.test"},
		"ai_summary":          "Acme is a growth-stage robotics vendor.",
	}
	raw, err := json.Marshal(answer)
	require.NoError(t, err)

	gw := &fakeGateway{res: &llm.Result{
		Text:  string(raw),
		JSON:  raw,
		Usage: model.TokenUsage{InputTokens: 1200, OutputTokens: 300},
	}}

	res, err := New(gw, Options{}).Aggregate(context.Background(), []model.PageContent{
		contentPage("https://acme.test/about", "Acme builds warehouse robots for logistics."),
	}, "Acme", "https://acme.test")
	require.NoError(t, err)
	require.NotNil(t, res.Record)
	assert.False(t, res.Degraded)

	r := res.Record
	assert.Equal(t, "Robotics", r.Industry)
	assert.Equal(t, "B2B", r.BusinessModel)
	assert.Equal(t, []string{"fleet automation", "robot leasing"}, r.KeyServices, "blank list entries dropped")
	assert.Equal(t, 2014, r.FoundingYear, "numeric strings accepted")
	assert.Equal(t, "growth", r.CompanyStage, "enums lowercased")
	assert.Empty(t, r.TechSophistication, "out-of-vocabulary enums dropped")
	assert.Equal(t, "hello@acme.test", r.ContactInfo.Email)
	assert.True(t, r.HasIntelligence())
	assert.Equal(t, 1200, res.Usage.InputTokens)

	// The prompt carries the corpus and the schema, never raw HTML.
	assert.Contains(t, gw.prompt, "warehouse robots")
	assert.Contains(t, gw.prompt, `"ai_summary"`)
}

func TestAggregateParseFailureDegrades(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{
		res: &llm.Result{Text: "Acme appears to be a robotics company but I cannot produce JSON."},
		err: eris.Wrap(errs.ErrParse, "llm: response is not valid JSON"),
	}

	res, err := New(gw, Options{}).Aggregate(context.Background(), []model.PageContent{
		contentPage("https://acme.test/about", "Acme builds warehouse robots."),
	}, "Acme", "https://acme.test")
	require.NoError(t, err, "parse failure degrades, it does not fail the phase")
	assert.True(t, res.Degraded)
	assert.Contains(t, res.Record.AISummary, "robotics company")
	assert.Empty(t, res.Record.Industry, "structured fields stay at defaults")
	assert.False(t, res.Record.HasIntelligence())
}

func TestAggregateTruncatesRawSummary(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{
		res: &llm.Result{Text: strings.Repeat("w", rawSummaryMaxChars+500)},
		err: eris.Wrap(errs.ErrParse, "llm: response is not valid JSON"),
	}

	res, err := New(gw, Options{}).Aggregate(context.Background(), []model.PageContent{
		contentPage("https://acme.test/about", "content here for the corpus to use"),
	}, "Acme", "https://acme.test")
	require.NoError(t, err)
	assert.Len(t, res.Record.AISummary, rawSummaryMaxChars)
}

func TestAggregateGatewayFailure(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{err: eris.Wrap(errs.ErrTimeout, "llm: call deadline expired")}

	_, err := New(gw, Options{}).Aggregate(context.Background(), []model.PageContent{
		contentPage("https://acme.test/about", "content"),
	}, "Acme", "https://acme.test")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrTimeout))
}

func TestAggregateNoUsableContent(t *testing.T) {
	t.Parallel()

	_, err := New(&fakeGateway{}, Options{}).Aggregate(context.Background(), []model.PageContent{
		{URL: "https://acme.test/a", Kind: model.ContentKindEmpty, Error: "blocked"},
	}, "Acme", "https://acme.test")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrParse))
}

func TestFlexInt(t *testing.T) {
	t.Parallel()

	var v struct {
		Year flexInt `json:"year"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"year": 1987}`), &v))
	assert.Equal(t, flexInt(1987), v.Year)

	require.NoError(t, json.Unmarshal([]byte(`{"year": "2003"}`), &v))
	assert.Equal(t, flexInt(2003), v.Year)

	require.NoError(t, json.Unmarshal([]byte(`{"year": null}`), &v))
	assert.Equal(t, flexInt(0), v.Year)

	require.NoError(t, json.Unmarshal([]byte(`{"year": "unknown"}`), &v))
	assert.Equal(t, flexInt(0), v.Year)
}

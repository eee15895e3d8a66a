package selector

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntoineDubuc/theodore/internal/errs"
	"github.com/AntoineDubuc/theodore/internal/llm"
	"github.com/AntoineDubuc/theodore/internal/model"
)

// fakeGateway returns a scripted result or error.
type fakeGateway struct {
	res *llm.Result
	err error
}

func (f *fakeGateway) Generate(_ context.Context, _, _ string, _ llm.Options) (*llm.Result, error) {
	return f.res, f.err
}

func testSet(urls ...string) *model.DiscoverySet {
	set := &model.DiscoverySet{Seed: "https://acme.test"}
	for _, u := range urls {
		depth := 1
		if u == set.Seed {
			depth = 0
		}
		set.URLs = append(set.URLs, model.DiscoveredURL{URL: u, Origin: model.OriginCrawl, Depth: depth})
	}
	return set
}

func TestSelectEmptySet(t *testing.T) {
	t.Parallel()

	res := New(&fakeGateway{}).Select(context.Background(), &model.DiscoverySet{}, "Acme", 10, Options{})
	assert.Empty(t, res.URLs)
}

func TestSelectLLMOrderPreserved(t *testing.T) {
	t.Parallel()

	set := testSet(
		"https://acme.test",
		"https://acme.test/about",
		"https://acme.test/contact",
		"https://acme.test/blog/post-1",
	)
	gw := &fakeGateway{res: &llm.Result{
		JSON: []byte(`{"urls": ["https://acme.test/contact", "https://acme.test/about", "https://other.test/x"]}`),
	}}

	res := New(gw).Select(context.Background(), set, "Acme", 10, Options{})
	assert.Equal(t, MethodLLM, res.Method)
	assert.NoError(t, res.LLMErr)
	assert.Equal(t, []string{"https://acme.test/contact", "https://acme.test/about"}, res.URLs,
		"model order preserved, foreign urls dropped")
}

func TestSelectLLMCapsAtKTarget(t *testing.T) {
	t.Parallel()

	set := testSet(
		"https://acme.test/a",
		"https://acme.test/b",
		"https://acme.test/c",
	)
	gw := &fakeGateway{res: &llm.Result{
		JSON: []byte(`["https://acme.test/a","https://acme.test/b","https://acme.test/c"]`),
	}}

	res := New(gw).Select(context.Background(), set, "Acme", 2, Options{})
	assert.Len(t, res.URLs, 2)
	for _, u := range res.URLs {
		assert.True(t, set.Contains(u), "selected url must come from the set")
	}
}

func TestSelectFallsBackOnGatewayError(t *testing.T) {
	t.Parallel()

	set := testSet(
		"https://acme.test",
		"https://acme.test/blog/post-1",
		"https://acme.test/contact",
		"https://acme.test/about",
	)
	gw := &fakeGateway{err: eris.Wrap(errs.ErrTimeout, "llm slow")}

	res := New(gw).Select(context.Background(), set, "Acme", 3, Options{Timeout: time.Second})
	assert.Equal(t, MethodHeuristic, res.Method)
	require.Error(t, res.LLMErr)
	require.Len(t, res.URLs, 3)
	assert.Equal(t, "https://acme.test", res.URLs[0], "homepage must rank first")
	assert.Equal(t, "https://acme.test/contact", res.URLs[1])
	assert.Equal(t, "https://acme.test/about", res.URLs[2])
}

func TestSelectFallsBackOnEmptyModelAnswer(t *testing.T) {
	t.Parallel()

	set := testSet("https://acme.test", "https://acme.test/about")
	gw := &fakeGateway{res: &llm.Result{JSON: []byte(`{"urls": []}`)}}

	res := New(gw).Select(context.Background(), set, "Acme", 5, Options{})
	assert.Equal(t, MethodHeuristic, res.Method)
	assert.Error(t, res.LLMErr)
	assert.NotEmpty(t, res.URLs)
}

func TestSelectNilGatewayMatchesHeuristic(t *testing.T) {
	t.Parallel()

	set := testSet(
		"https://acme.test",
		"https://acme.test/x/careers",
		"https://acme.test/news/item",
		"https://acme.test/team",
	)

	viaNil := New(nil).Select(context.Background(), set, "Acme", 4, Options{})
	direct := selectHeuristic(set.URLList(), set.Seed, 4)
	assert.Equal(t, direct, viaNil.URLs, "llm disabled must equal the documented heuristic")
}

func TestHeuristicStableOnTies(t *testing.T) {
	t.Parallel()

	candidates := []string{
		"https://acme.test/alpha",
		"https://acme.test/beta",
		"https://acme.test/gamma",
	}
	got := selectHeuristic(candidates, "https://acme.test", 3)
	assert.Equal(t, candidates, got, "equal scores keep insertion order")
}

func TestScoreURL(t *testing.T) {
	t.Parallel()

	seed := "https://acme.test"
	assert.Equal(t, homepageBonus, scoreURL(seed, seed))
	assert.Equal(t, 10, scoreURL("https://acme.test/contact-us", seed))
	assert.Equal(t, 9, scoreURL("https://acme.test/about", seed))
	assert.Equal(t, 8+7, scoreURL("https://acme.test/team/careers", seed))
	assert.Equal(t, 0, scoreURL("https://acme.test/blog/post", seed))
}

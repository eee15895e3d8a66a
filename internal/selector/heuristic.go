package selector

import (
	"net/url"
	"sort"
	"strings"
)

// keywordWeights score a candidate by path keyword. Ordered by sales
// value: contact pages answer the most qualification questions.
var keywordWeights = []struct {
	keyword string
	weight  int
}{
	{"contact", 10},
	{"about", 9},
	{"team", 8},
	{"leadership", 8},
	{"careers", 7},
	{"company", 6},
	{"services", 5},
	{"products", 5},
	{"history", 4},
	{"our-story", 4},
}

// homepageBonus guarantees the homepage wins when present.
const homepageBonus = 100

// selectHeuristic is the fallback selector: score candidates by path
// keywords and return the top k, stable by insertion order.
func selectHeuristic(candidates []string, seed string, k int) []string {
	type scored struct {
		url   string
		score int
	}

	items := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		items = append(items, scored{url: c, score: scoreURL(c, seed)})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].score > items[j].score
	})

	if k > len(items) {
		k = len(items)
	}
	out := make([]string, 0, k)
	for _, it := range items[:k] {
		out = append(out, it.url)
	}
	return out
}

func scoreURL(rawURL, seed string) int {
	score := 0
	if rawURL == seed {
		score += homepageBonus
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return score
	}
	path := strings.ToLower(u.Path)
	for _, kw := range keywordWeights {
		if strings.Contains(path, kw.keyword) {
			score += kw.weight
		}
	}
	return score
}

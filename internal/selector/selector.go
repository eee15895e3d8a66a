// Package selector picks the most informative subset of discovered URLs
// for extraction. An LLM ranks the candidates; when the call fails, a
// keyword heuristic serves the same contract.
package selector

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/AntoineDubuc/theodore/internal/llm"
	"github.com/AntoineDubuc/theodore/internal/model"
	"github.com/AntoineDubuc/theodore/internal/urlnorm"
)

// Gateway is the slice of the LLM gateway the selector uses.
type Gateway interface {
	Generate(ctx context.Context, system, prompt string, opts llm.Options) (*llm.Result, error)
}

// Options tunes one selection.
type Options struct {
	// MaxCandidates bounds how many URLs go into the prompt.
	MaxCandidates int
	// MaxTargets is the hard cap on the returned list.
	MaxTargets int
	Timeout    time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxCandidates <= 0 {
		o.MaxCandidates = 25
	}
	if o.MaxTargets <= 0 || o.MaxTargets > 50 {
		o.MaxTargets = 50
	}
	if o.Timeout <= 0 {
		o.Timeout = 120 * time.Second
	}
	return o
}

// Result reports which URLs were chosen and how. LLMErr is set when the
// gateway path failed and the heuristic served instead; the phase is
// recorded failed but the run proceeds.
type Result struct {
	URLs   []string
	Method string
	Usage  model.TokenUsage
	LLMErr error
}

const (
	// MethodLLM means the model's ranking was used.
	MethodLLM = "llm"
	// MethodHeuristic means the keyword fallback was used.
	MethodHeuristic = "heuristic"
)

// Selector ranks discovered URLs for extraction value.
type Selector struct {
	gateway Gateway
}

// New creates a selector. A nil gateway always selects heuristically.
func New(gateway Gateway) *Selector {
	return &Selector{gateway: gateway}
}

const selectionSystem = "You are a research assistant choosing which company web pages " +
	"contain the most sales-relevant information. Respond with a single JSON object."

const selectionPromptTmpl = `Company: %s

Below are pages discovered on the company's website, in crawl order.
Pick up to %d pages that are most likely to contain:
contact details and locations, founding year, employee count, leadership,
products and services, partnerships, certifications, and recent news.

Pages:
%s

Return a JSON object of the form {"urls": ["<url>", ...]} listing your
picks in priority order. Use only URLs from the list above.`

// Select chooses up to kTarget URLs from the discovery set. The returned
// list is empty iff the set is empty; any selected URL is a member of
// the set.
func (s *Selector) Select(ctx context.Context, set *model.DiscoverySet, companyName string, kTarget int, opts Options) Result {
	opts = opts.withDefaults()
	if kTarget <= 0 || kTarget > opts.MaxTargets {
		kTarget = opts.MaxTargets
	}
	if set == nil || set.Len() == 0 {
		return Result{Method: MethodHeuristic}
	}

	// Bound the prompt: candidates are the first M in BFS order.
	candidates := set.URLList()
	if len(candidates) > opts.MaxCandidates {
		candidates = candidates[:opts.MaxCandidates]
	}

	if s.gateway == nil {
		return Result{URLs: selectHeuristic(candidates, set.Seed, kTarget), Method: MethodHeuristic}
	}

	picked, usage, err := s.selectLLM(ctx, candidates, companyName, kTarget, opts)
	if err != nil || len(picked) == 0 {
		if err == nil {
			err = fmt.Errorf("selector: model returned no usable urls")
		}
		zap.L().Warn("selector: llm selection failed, using heuristic fallback",
			zap.String("company", companyName),
			zap.Error(err),
		)
		return Result{
			URLs:   selectHeuristic(candidates, set.Seed, kTarget),
			Method: MethodHeuristic,
			Usage:  usage,
			LLMErr: err,
		}
	}
	return Result{URLs: picked, Method: MethodLLM, Usage: usage}
}

// selectLLM asks the gateway to rank the candidates and intersects the
// answer with the candidate set, preserving the model's order.
func (s *Selector) selectLLM(ctx context.Context, candidates []string, companyName string, kTarget int, opts Options) ([]string, model.TokenUsage, error) {
	var list strings.Builder
	for i, u := range candidates {
		fmt.Fprintf(&list, "%d. %s\n", i+1, u)
	}
	prompt := fmt.Sprintf(selectionPromptTmpl, companyName, kTarget, list.String())

	res, err := s.gateway.Generate(ctx, selectionSystem, prompt, llm.Options{
		Timeout:    opts.Timeout,
		ExpectJSON: true,
	})
	if err != nil {
		return nil, model.TokenUsage{}, err
	}

	urls, err := parseSelection(res.JSON)
	if err != nil {
		return nil, res.Usage, err
	}

	allowed := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		allowed[c] = true
	}

	var picked []string
	seen := make(map[string]bool)
	for _, raw := range urls {
		norm, err := urlnorm.Normalize(raw, nil)
		if err != nil || !allowed[norm] || seen[norm] {
			continue
		}
		seen[norm] = true
		picked = append(picked, norm)
		if len(picked) == kTarget {
			break
		}
	}
	return picked, res.Usage, nil
}

// parseSelection accepts {"urls": [...]} or a bare JSON array.
func parseSelection(data []byte) ([]string, error) {
	var wrapped struct {
		URLs []string `json:"urls"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && len(wrapped.URLs) > 0 {
		return wrapped.URLs, nil
	}
	var bare []string
	if err := json.Unmarshal(data, &bare); err == nil {
		return bare, nil
	}
	return nil, fmt.Errorf("selector: response carries no url list")
}

package aggregator

import (
	"fmt"
	"strings"

	"github.com/AntoineDubuc/theodore/internal/model"
)

// aggregateSystem frames the model as an analyst filling a fixed schema.
const aggregateSystem = "You are a sales intelligence analyst. You read a company's website content " +
	"and produce a structured intelligence record as a single JSON object. Only state facts supported " +
	"by the provided content; never invent values. Fields with no supporting evidence keep their " +
	"defaults: \"\" for strings, [] for lists, {} for objects, 0 for numbers, false for booleans."

// fieldSchema enumerates every output field with its type and, where
// constrained, the allowed values. Kept as one block so the prompt and
// the parser cannot drift apart silently.
const fieldSchema = `{
  "industry": "string",
  "business_model": "string (e.g. B2B, B2C, B2B2C)",
  "target_market": "string",
  "company_size": "one of: small | medium | large | enterprise, else \"\"",
  "company_description": "string, 2-3 sentences",
  "value_proposition": "string",
  "key_services": ["list of strings"],
  "competitive_advantages": ["list of strings"],
  "tech_stack": ["list of strings"],
  "pain_points": ["list of strings, problems this company solves for customers"],
  "location": "string, headquarters city/region/country",
  "founding_year": "integer, 0 if unknown",
  "employee_count_range": "string (e.g. 11-50)",
  "company_culture": "string",
  "funding_status": "string",
  "leadership_team": ["list of strings, name - title"],
  "contact_info": {"email": "string", "phone": "string", "address": "string"},
  "social_media": {"platform": "url"},
  "recent_news": ["list of strings"],
  "certifications": ["list of strings"],
  "partnerships": ["list of strings"],
  "awards": ["list of strings"],
  "company_stage": "one of: startup | growth | enterprise, else \"\"",
  "tech_sophistication": "one of: low | medium | high, else \"\"",
  "business_model_type": "one of: saas | services | marketplace | ecommerce | other, else \"\"",
  "geographic_scope": "one of: local | regional | global, else \"\"",
  "decision_maker_type": "one of: technical | business | hybrid, else \"\"",
  "sales_complexity": "one of: simple | moderate | complex, else \"\"",
  "has_job_listings": "boolean",
  "job_listings_count": "integer",
  "ai_summary": "string, 3-5 sentence sales-oriented summary of the company"
}`

const aggregatePromptFmt = `Company: %s
Website: %s

Website content by section:

%s

Produce the intelligence record for this company. Return exactly one JSON object
matching this schema:

%s

Every key must be present. Use the stated defaults for anything the content does
not support.`

// buildPrompt renders the aggregation prompt from an assembled corpus.
func buildPrompt(companyName, seedURL, corpus string) string {
	return fmt.Sprintf(aggregatePromptFmt, companyName, seedURL, corpus, fieldSchema)
}

// sectionLabels maps page types to the headings used in the corpus.
var sectionLabels = map[model.PageType]string{
	model.PageTypeAbout:    "ABOUT",
	model.PageTypeProducts: "PRODUCTS AND SERVICES",
	model.PageTypeTeam:     "TEAM AND LEADERSHIP",
	model.PageTypeCareers:  "CAREERS",
	model.PageTypeContact:  "CONTACT",
	model.PageTypeNews:     "NEWS",
	model.PageTypeMain:     "GENERAL",
}

// buildCorpus groups non-empty pages by inferred type and assembles
// labelled sections under the character budget. Pages are consumed
// round-robin across types so early pages of every type land in the
// corpus before any type's long tail; once the budget runs out the
// remaining pages are dropped, with the last admitted body truncated
// to fit.
func buildCorpus(pages []model.PageContent, budget int) string {
	groups := make(map[model.PageType][]model.PageContent)
	for _, p := range pages {
		if p.IsEmpty() {
			continue
		}
		pt := model.InferPageType(p.URL)
		groups[pt] = append(groups[pt], p)
	}
	if len(groups) == 0 {
		return ""
	}

	sections := make(map[model.PageType]*strings.Builder)
	used := 0
	for round := 0; used < budget; round++ {
		took := false
		for _, pt := range model.AllPageTypes() {
			if round >= len(groups[pt]) {
				continue
			}
			took = true
			if used >= budget {
				break
			}
			p := groups[pt][round]
			body := p.Body
			if used+len(body) > budget {
				body = body[:budget-used]
			}
			used += len(body)

			sec, ok := sections[pt]
			if !ok {
				sec = &strings.Builder{}
				sections[pt] = sec
			}
			fmt.Fprintf(sec, "--- %s ---\n%s\n\n", p.URL, body)
		}
		if !took {
			break
		}
	}

	var out strings.Builder
	for _, pt := range model.AllPageTypes() {
		sec, ok := sections[pt]
		if !ok {
			continue
		}
		fmt.Fprintf(&out, "=== %s ===\n%s", sectionLabels[pt], sec.String())
	}
	return strings.TrimSpace(out.String())
}

// Package aggregator fuses extracted page content into a structured
// company record through one LLM call against a fixed field schema.
package aggregator

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/AntoineDubuc/theodore/internal/errs"
	"github.com/AntoineDubuc/theodore/internal/llm"
	"github.com/AntoineDubuc/theodore/internal/model"
)

// Gateway is the LLM entry point the aggregator prompts through.
type Gateway interface {
	Generate(ctx context.Context, system, prompt string, opts llm.Options) (*llm.Result, error)
}

// Options tunes one aggregation phase.
type Options struct {
	// CorpusBudgetChars caps the total page content sent to the model.
	CorpusBudgetChars int
	Timeout           time.Duration
	MaxTokens         int
}

func (o Options) withDefaults() Options {
	if o.CorpusBudgetChars <= 0 {
		o.CorpusBudgetChars = 8_000
	}
	if o.Timeout <= 0 {
		o.Timeout = 120 * time.Second
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = 4_096
	}
	return o
}

// rawSummaryMaxChars caps the raw response text kept as the summary
// when the structured answer does not parse.
const rawSummaryMaxChars = 4_000

// Result is one aggregation outcome. Degraded is set when the model
// answered but its JSON did not parse: the record then carries only the
// raw text as its summary.
type Result struct {
	Record   *model.CompanyRecord
	Usage    model.TokenUsage
	Degraded bool
}

// Aggregator turns extracted pages into a partial CompanyRecord. The
// coordinator owns identity fields (id, name, website, timestamps);
// the aggregator only fills intelligence fields.
type Aggregator struct {
	gateway Gateway
	opts    Options
}

// New creates an aggregator over the given gateway.
func New(gateway Gateway, opts Options) *Aggregator {
	return &Aggregator{gateway: gateway, opts: opts.withDefaults()}
}

// Aggregate builds the corpus, prompts for the field schema, and merges
// the answer into a fresh record. A gateway failure with no usable text
// fails the phase; a parse failure degrades to a record whose summary
// is the truncated raw answer.
func (a *Aggregator) Aggregate(ctx context.Context, pages []model.PageContent, companyName, seedURL string) (*Result, error) {
	corpus := buildCorpus(pages, a.opts.CorpusBudgetChars)
	if corpus == "" {
		return nil, eris.Wrap(errs.ErrParse, "aggregator: no non-empty pages to aggregate")
	}

	res, err := a.gateway.Generate(ctx, aggregateSystem, buildPrompt(companyName, seedURL, corpus), llm.Options{
		MaxTokens:  a.opts.MaxTokens,
		Timeout:    a.opts.Timeout,
		ExpectJSON: true,
	})

	out := &Result{Record: &model.CompanyRecord{}}
	if res != nil {
		out.Usage = res.Usage
	}

	if err != nil {
		if res == nil || strings.TrimSpace(res.Text) == "" {
			return nil, eris.Wrap(err, "aggregator: llm call failed")
		}
		// The model answered but not in parseable form. Keep the text as
		// the summary and leave every structured field at its default.
		zap.L().Warn("aggregator: response did not parse, degrading to raw summary",
			zap.String("company", companyName),
			zap.Error(err),
		)
		out.Record.AISummary = truncate(strings.TrimSpace(res.Text), rawSummaryMaxChars)
		out.Degraded = true
		return out, nil
	}

	var ext extraction
	if uerr := json.Unmarshal(res.JSON, &ext); uerr != nil {
		zap.L().Warn("aggregator: schema mismatch, degrading to raw summary",
			zap.String("company", companyName),
			zap.Error(uerr),
		)
		out.Record.AISummary = truncate(strings.TrimSpace(res.Text), rawSummaryMaxChars)
		out.Degraded = true
		return out, nil
	}

	ext.mergeInto(out.Record)
	zap.L().Info("aggregator: record built",
		zap.String("company", companyName),
		zap.Bool("has_intelligence", out.Record.HasIntelligence()),
		zap.Int("input_tokens", out.Usage.InputTokens),
		zap.Int("output_tokens", out.Usage.OutputTokens),
	)
	return out, nil
}

// extraction mirrors the prompt's field schema. Numeric fields accept
// both numbers and numeric strings since models emit either.
type extraction struct {
	Industry           string `json:"industry"`
	BusinessModel      string `json:"business_model"`
	TargetMarket       string `json:"target_market"`
	CompanySize        string `json:"company_size"`
	CompanyDescription string `json:"company_description"`
	ValueProposition   string `json:"value_proposition"`

	KeyServices           []string `json:"key_services"`
	CompetitiveAdvantages []string `json:"competitive_advantages"`
	TechStack             []string `json:"tech_stack"`
	PainPoints            []string `json:"pain_points"`

	Location           string  `json:"location"`
	FoundingYear       flexInt `json:"founding_year"`
	EmployeeCountRange string  `json:"employee_count_range"`
	CompanyCulture     string  `json:"company_culture"`
	FundingStatus      string  `json:"funding_status"`

	LeadershipTeam []string          `json:"leadership_team"`
	ContactInfo    model.ContactInfo `json:"contact_info"`
	SocialMedia    map[string]string `json:"social_media"`

	RecentNews     []string `json:"recent_news"`
	Certifications []string `json:"certifications"`
	Partnerships   []string `json:"partnerships"`
	Awards         []string `json:"awards"`

	CompanyStage       string `json:"company_stage"`
	TechSophistication string `json:"tech_sophistication"`
	BusinessModelType  string `json:"business_model_type"`
	GeographicScope    string `json:"geographic_scope"`
	DecisionMakerType  string `json:"decision_maker_type"`
	SalesComplexity    string `json:"sales_complexity"`

	HasJobListings   bool    `json:"has_job_listings"`
	JobListingsCount flexInt `json:"job_listings_count"`

	AISummary string `json:"ai_summary"`
}

// Constrained vocabularies from the field schema. Out-of-vocabulary
// answers are dropped rather than stored.
var (
	companySizeValues        = enumSet("small", "medium", "large", "enterprise")
	companyStageValues       = enumSet("startup", "growth", "enterprise")
	techSophisticationValues = enumSet("low", "medium", "high")
	businessModelTypeValues  = enumSet("saas", "services", "marketplace", "ecommerce", "other")
	geographicScopeValues    = enumSet("local", "regional", "global")
	decisionMakerTypeValues  = enumSet("technical", "business", "hybrid")
	salesComplexityValues    = enumSet("simple", "moderate", "complex")
)

func (e *extraction) mergeInto(r *model.CompanyRecord) {
	r.Industry = strings.TrimSpace(e.Industry)
	r.BusinessModel = strings.TrimSpace(e.BusinessModel)
	r.TargetMarket = strings.TrimSpace(e.TargetMarket)
	r.CompanySize = normalizeEnum(e.CompanySize, companySizeValues)
	r.CompanyDescription = strings.TrimSpace(e.CompanyDescription)
	r.ValueProposition = strings.TrimSpace(e.ValueProposition)

	r.KeyServices = cleanList(e.KeyServices)
	r.CompetitiveAdvantages = cleanList(e.CompetitiveAdvantages)
	r.TechStack = cleanList(e.TechStack)
	r.PainPoints = cleanList(e.PainPoints)

	r.Location = strings.TrimSpace(e.Location)
	r.FoundingYear = int(e.FoundingYear)
	r.EmployeeCountRange = strings.TrimSpace(e.EmployeeCountRange)
	r.CompanyCulture = strings.TrimSpace(e.CompanyCulture)
	r.FundingStatus = strings.TrimSpace(e.FundingStatus)

	r.LeadershipTeam = cleanList(e.LeadershipTeam)
	r.ContactInfo = e.ContactInfo
	r.SocialMedia = e.SocialMedia

	r.RecentNews = cleanList(e.RecentNews)
	r.Certifications = cleanList(e.Certifications)
	r.Partnerships = cleanList(e.Partnerships)
	r.Awards = cleanList(e.Awards)

	r.CompanyStage = normalizeEnum(e.CompanyStage, companyStageValues)
	r.TechSophistication = normalizeEnum(e.TechSophistication, techSophisticationValues)
	r.BusinessModelType = normalizeEnum(e.BusinessModelType, businessModelTypeValues)
	r.GeographicScope = normalizeEnum(e.GeographicScope, geographicScopeValues)
	r.DecisionMakerType = normalizeEnum(e.DecisionMakerType, decisionMakerTypeValues)
	r.SalesComplexity = normalizeEnum(e.SalesComplexity, salesComplexityValues)

	r.HasJobListings = e.HasJobListings
	r.JobListingsCount = int(e.JobListingsCount)

	r.AISummary = strings.TrimSpace(e.AISummary)
}

func enumSet(values ...string) map[string]bool {
	m := make(map[string]bool, len(values))
	for _, v := range values {
		m[v] = true
	}
	return m
}

// normalizeEnum lowercases and keeps only vocabulary members.
func normalizeEnum(v string, allowed map[string]bool) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if allowed[v] {
		return v
	}
	return ""
}

// cleanList trims entries and drops empties; an all-empty list stays nil.
func cleanList(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// flexInt unmarshals from a JSON number, a numeric string, or null.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = flexInt(int(n))
	return nil
}

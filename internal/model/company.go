package model

import "time"

// ScrapeStatus represents the overall outcome of a research run.
type ScrapeStatus string

const (
	ScrapeStatusSuccess ScrapeStatus = "success"
	ScrapeStatusPartial ScrapeStatus = "partial"
	ScrapeStatusFailed  ScrapeStatus = "failed"
)

// Succeeded reports whether the run produced a usable record.
// Partial records are usable; only failed runs are not.
func (s ScrapeStatus) Succeeded() bool {
	return s == ScrapeStatusSuccess || s == ScrapeStatusPartial
}

// RunState represents the coordinator's position in the research state machine.
type RunState string

const (
	RunStateInit        RunState = "init"
	RunStateDiscovering RunState = "discovering"
	RunStateSelecting   RunState = "selecting"
	RunStateExtracting  RunState = "extracting"
	RunStateAggregating RunState = "aggregating"
	RunStatePersisting  RunState = "persisting"
	RunStateDone        RunState = "done"
	RunStateFailed      RunState = "failed"
)

// Terminal reports whether the state ends a run.
func (s RunState) Terminal() bool {
	return s == RunStateDone || s == RunStateFailed
}

// ContactInfo holds the contact fields extracted for a company.
type ContactInfo struct {
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

// CompanyRecord is the structured intelligence artifact produced by a run.
// ID, Name, and Website are always set; everything else is extracted on a
// best-effort basis and defaults to its zero value.
type CompanyRecord struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Website string `json:"website"`

	Industry           string `json:"industry,omitempty"`
	BusinessModel      string `json:"business_model,omitempty"`
	TargetMarket       string `json:"target_market,omitempty"`
	CompanySize        string `json:"company_size,omitempty"`
	CompanyDescription string `json:"company_description,omitempty"`
	ValueProposition   string `json:"value_proposition,omitempty"`

	KeyServices           []string `json:"key_services,omitempty"`
	CompetitiveAdvantages []string `json:"competitive_advantages,omitempty"`
	TechStack             []string `json:"tech_stack,omitempty"`
	PainPoints            []string `json:"pain_points,omitempty"`

	Location           string `json:"location,omitempty"`
	FoundingYear       int    `json:"founding_year,omitempty"`
	EmployeeCountRange string `json:"employee_count_range,omitempty"`
	CompanyCulture     string `json:"company_culture,omitempty"`
	FundingStatus      string `json:"funding_status,omitempty"`

	LeadershipTeam []string          `json:"leadership_team,omitempty"`
	ContactInfo    ContactInfo       `json:"contact_info"`
	SocialMedia    map[string]string `json:"social_media,omitempty"`

	RecentNews     []string `json:"recent_news,omitempty"`
	Certifications []string `json:"certifications,omitempty"`
	Partnerships   []string `json:"partnerships,omitempty"`
	Awards         []string `json:"awards,omitempty"`

	CompanyStage       string `json:"company_stage,omitempty"`
	TechSophistication string `json:"tech_sophistication,omitempty"`
	BusinessModelType  string `json:"business_model_type,omitempty"`
	GeographicScope    string `json:"geographic_scope,omitempty"`
	DecisionMakerType  string `json:"decision_maker_type,omitempty"`
	SalesComplexity    string `json:"sales_complexity,omitempty"`

	HasJobListings   bool `json:"has_job_listings,omitempty"`
	JobListingsCount int  `json:"job_listings_count,omitempty"`

	AISummary       string       `json:"ai_summary,omitempty"`
	PagesCrawled    []string     `json:"pages_crawled,omitempty"`
	CrawlDurationMS int64        `json:"crawl_duration_ms,omitempty"`
	ScrapeStatus    ScrapeStatus `json:"scrape_status"`
	ScrapeError     string       `json:"scrape_error,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	LastUpdated     time.Time    `json:"last_updated"`

	// Embedding is the dense vector for similarity search. Empty when
	// embedding generation failed; the record is stored regardless.
	Embedding []float32 `json:"embedding,omitempty"`
}

// HasIntelligence reports whether the record carries enough structured
// content to count as a success: a non-empty summary plus at least one of
// industry, business model, or description.
func (r *CompanyRecord) HasIntelligence() bool {
	if r.AISummary == "" {
		return false
	}
	return r.Industry != "" || r.BusinessModel != "" || r.CompanyDescription != ""
}

// TokenUsage tracks LLM token consumption and estimated cost.
type TokenUsage struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	Cost         float64 `json:"cost"`
}

// Add merges token usage from another instance.
func (t *TokenUsage) Add(other TokenUsage) {
	t.InputTokens += other.InputTokens
	t.OutputTokens += other.OutputTokens
	t.Cost += other.Cost
}

// Total returns combined input and output tokens.
func (t TokenUsage) Total() int {
	return t.InputTokens + t.OutputTokens
}

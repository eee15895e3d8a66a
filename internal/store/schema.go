package store

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/AntoineDubuc/theodore/internal/model"
)

// MetadataOptions bounds the vector-index metadata projection.
type MetadataOptions struct {
	// BudgetBytes caps the JSON-serialized size of the projection.
	BudgetBytes int
	// SummaryPrefixChars and DescriptionPrefixChars bound the two prose
	// prefixes carried alongside the vector.
	SummaryPrefixChars     int
	DescriptionPrefixChars int
}

func (o MetadataOptions) withDefaults() MetadataOptions {
	if o.BudgetBytes <= 0 {
		o.BudgetBytes = 40 * 1024
	}
	if o.SummaryPrefixChars <= 0 {
		o.SummaryPrefixChars = 1000
	}
	if o.DescriptionPrefixChars <= 0 {
		o.DescriptionPrefixChars = 500
	}
	return o
}

// Metadata keys stored in the vector index. The projector and the
// overlay both read from this table so the two cannot drift.
const (
	metaName               = "name"
	metaWebsite            = "website"
	metaIndustry           = "industry"
	metaBusinessModel      = "business_model"
	metaCompanyStage       = "company_stage"
	metaTechSophistication = "tech_sophistication"
	metaGeographicScope    = "geographic_scope"
	metaBusinessModelType  = "business_model_type"
	metaDecisionMakerType  = "decision_maker_type"
	metaLocation           = "location"
	metaCompanySize        = "company_size"
	metaKeyServices        = "key_services"
	metaTechStack          = "tech_stack"
	metaScrapeStatus       = "scrape_status"
	metaLastUpdated        = "last_updated"
	metaHasDescription     = "has_description"
	metaSummaryPrefix      = "ai_summary"
	metaDescriptionPrefix  = "company_description"
)

// metaFields drives the projection: one entry per metadata key, in a
// fixed order, each reading its value off the record.
var metaFields = []struct {
	key string
	get func(*model.CompanyRecord) string
}{
	{metaName, func(r *model.CompanyRecord) string { return r.Name }},
	{metaWebsite, func(r *model.CompanyRecord) string { return r.Website }},
	{metaIndustry, func(r *model.CompanyRecord) string { return r.Industry }},
	{metaBusinessModel, func(r *model.CompanyRecord) string { return r.BusinessModel }},
	{metaCompanyStage, func(r *model.CompanyRecord) string { return r.CompanyStage }},
	{metaTechSophistication, func(r *model.CompanyRecord) string { return r.TechSophistication }},
	{metaGeographicScope, func(r *model.CompanyRecord) string { return r.GeographicScope }},
	{metaBusinessModelType, func(r *model.CompanyRecord) string { return r.BusinessModelType }},
	{metaDecisionMakerType, func(r *model.CompanyRecord) string { return r.DecisionMakerType }},
	{metaLocation, func(r *model.CompanyRecord) string { return r.Location }},
	{metaCompanySize, func(r *model.CompanyRecord) string { return r.CompanySize }},
	{metaKeyServices, func(r *model.CompanyRecord) string { return strings.Join(r.KeyServices, ",") }},
	{metaTechStack, func(r *model.CompanyRecord) string { return strings.Join(r.TechStack, ",") }},
	{metaScrapeStatus, func(r *model.CompanyRecord) string { return string(r.ScrapeStatus) }},
	{metaLastUpdated, func(r *model.CompanyRecord) string { return r.LastUpdated.UTC().Format(time.RFC3339) }},
	{metaHasDescription, func(r *model.CompanyRecord) string { return strconv.FormatBool(r.CompanyDescription != "") }},
}

// ProjectMetadata builds the bounded metadata carried next to the
// vector. When the serialized projection exceeds the byte budget, the
// long prose fields are truncated in fixed priority: summary prefix
// first, then description prefix, then location, then the joined list
// fields. Required keys are never dropped.
func ProjectMetadata(r *model.CompanyRecord, opts MetadataOptions) map[string]string {
	opts = opts.withDefaults()

	meta := make(map[string]string, len(metaFields)+2)
	for _, f := range metaFields {
		meta[f.key] = f.get(r)
	}
	meta[metaSummaryPrefix] = prefix(r.AISummary, opts.SummaryPrefixChars)
	meta[metaDescriptionPrefix] = prefix(r.CompanyDescription, opts.DescriptionPrefixChars)

	for _, key := range []string{metaSummaryPrefix, metaDescriptionPrefix, metaLocation, metaKeyServices, metaTechStack} {
		over := metadataSize(meta) - opts.BudgetBytes
		if over <= 0 {
			break
		}
		before := len(meta[key])
		keep := before - over
		if keep < 0 {
			keep = 0
		}
		meta[key] = meta[key][:keep]
		zap.L().Warn("store: metadata over budget, truncating",
			zap.String("company", r.Name),
			zap.String("key", key),
			zap.Int("from_chars", before),
			zap.Int("to_chars", keep),
		)
	}
	return meta
}

// OverlayMetadata fills fields the document left empty from the vector
// metadata. Document values always win; the overlay only backfills.
func OverlayMetadata(r *model.CompanyRecord, meta map[string]string) {
	backfill := func(dst *string, key string) {
		if *dst == "" {
			*dst = meta[key]
		}
	}
	backfill(&r.Name, metaName)
	backfill(&r.Website, metaWebsite)
	backfill(&r.Industry, metaIndustry)
	backfill(&r.BusinessModel, metaBusinessModel)
	backfill(&r.CompanyStage, metaCompanyStage)
	backfill(&r.TechSophistication, metaTechSophistication)
	backfill(&r.GeographicScope, metaGeographicScope)
	backfill(&r.BusinessModelType, metaBusinessModelType)
	backfill(&r.DecisionMakerType, metaDecisionMakerType)
	backfill(&r.Location, metaLocation)
	backfill(&r.CompanySize, metaCompanySize)
	backfill(&r.AISummary, metaSummaryPrefix)
	backfill(&r.CompanyDescription, metaDescriptionPrefix)
	if len(r.KeyServices) == 0 {
		r.KeyServices = splitJoined(meta[metaKeyServices])
	}
	if len(r.TechStack) == 0 {
		r.TechStack = splitJoined(meta[metaTechStack])
	}
	if r.ScrapeStatus == "" {
		r.ScrapeStatus = model.ScrapeStatus(meta[metaScrapeStatus])
	}
	if r.LastUpdated.IsZero() {
		if t, err := time.Parse(time.RFC3339, meta[metaLastUpdated]); err == nil {
			r.LastUpdated = t
		}
	}
}

func metadataSize(meta map[string]string) int {
	b, err := json.Marshal(meta)
	if err != nil {
		return 0
	}
	return len(b)
}

// splitJoined reverses the comma-joined list projection.
func splitJoined(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func prefix(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

package store

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntoineDubuc/theodore/internal/model"
)

func metaRecord() *model.CompanyRecord {
	return &model.CompanyRecord{
		ID:                 "id-1",
		Name:               "Acme Robotics",
		Website:            "https://acme.test",
		Industry:           "Robotics",
		BusinessModel:      "B2B",
		CompanyStage:       "growth",
		TechSophistication: "high",
		GeographicScope:    "global",
		BusinessModelType:  "saas",
		DecisionMakerType:  "technical",
		Location:           "Montreal, Canada",
		CompanySize:        "medium",
		KeyServices:        []string{"automation", "integration"},
		TechStack:          []string{"go", "postgres"},
		CompanyDescription: strings.Repeat("d", 800),
		AISummary:          strings.Repeat("s", 2_000),
		ScrapeStatus:       model.ScrapeStatusSuccess,
		LastUpdated:        time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestProjectMetadataRequiredKeys(t *testing.T) {
	t.Parallel()

	meta := ProjectMetadata(metaRecord(), MetadataOptions{})
	for _, key := range []string{
		metaName, metaWebsite, metaIndustry, metaBusinessModel, metaCompanyStage,
		metaTechSophistication, metaGeographicScope, metaBusinessModelType,
		metaDecisionMakerType, metaLocation, metaCompanySize, metaKeyServices,
		metaTechStack, metaScrapeStatus, metaLastUpdated, metaHasDescription,
		metaSummaryPrefix, metaDescriptionPrefix,
	} {
		_, ok := meta[key]
		assert.True(t, ok, "missing required key %q", key)
	}
	assert.Equal(t, "true", meta[metaHasDescription])
	assert.Equal(t, "2026-03-01T12:00:00Z", meta[metaLastUpdated])
}

func TestProjectMetadataPrefixes(t *testing.T) {
	t.Parallel()

	meta := ProjectMetadata(metaRecord(), MetadataOptions{SummaryPrefixChars: 100, DescriptionPrefixChars: 50})
	assert.Len(t, meta[metaSummaryPrefix], 100)
	assert.Len(t, meta[metaDescriptionPrefix], 50)
}

func TestProjectMetadataBudgetTruncationOrder(t *testing.T) {
	t.Parallel()

	r := metaRecord()
	full := ProjectMetadata(r, MetadataOptions{})
	fullSize := metadataSize(full)

	// A budget 400 bytes short of the full projection must shave exactly
	// the summary prefix; the description prefix and location survive.
	meta := ProjectMetadata(r, MetadataOptions{BudgetBytes: fullSize - 400})
	assert.LessOrEqual(t, metadataSize(meta), fullSize-400)
	assert.Len(t, meta[metaSummaryPrefix], 1000-400)
	assert.Len(t, meta[metaDescriptionPrefix], 500)
	assert.Equal(t, "Montreal, Canada", meta[metaLocation])
}

func TestProjectMetadataTinyBudgetKeepsKeys(t *testing.T) {
	t.Parallel()

	meta := ProjectMetadata(metaRecord(), MetadataOptions{BudgetBytes: 1})
	// Prose fields empty out in order; required keys remain present.
	assert.Empty(t, meta[metaSummaryPrefix])
	assert.Empty(t, meta[metaDescriptionPrefix])
	assert.Empty(t, meta[metaLocation])
	assert.Equal(t, "Acme Robotics", meta[metaName])
	assert.Equal(t, "medium", meta[metaCompanySize])
}

func TestProjectMetadataJoinsListFields(t *testing.T) {
	t.Parallel()

	meta := ProjectMetadata(metaRecord(), MetadataOptions{})
	assert.Equal(t, "automation,integration", meta[metaKeyServices])
	assert.Equal(t, "go,postgres", meta[metaTechStack])

	record := &model.CompanyRecord{ID: "id-1", Name: "Acme Robotics"}
	OverlayMetadata(record, meta)
	assert.Equal(t, []string{"automation", "integration"}, record.KeyServices)
	assert.Equal(t, []string{"go", "postgres"}, record.TechStack)
}

func TestOverlayMetadataDocumentWins(t *testing.T) {
	t.Parallel()

	record := &model.CompanyRecord{
		ID:       "id-1",
		Name:     "Acme Robotics",
		Industry: "Robotics",
	}
	OverlayMetadata(record, map[string]string{
		metaIndustry:     "stale industry",
		metaLocation:     "Toronto, Canada",
		metaScrapeStatus: "success",
		metaLastUpdated:  "2026-01-15T08:00:00Z",
	})

	assert.Equal(t, "Robotics", record.Industry, "document value wins")
	assert.Equal(t, "Toronto, Canada", record.Location, "empty fields backfilled")
	assert.Equal(t, model.ScrapeStatusSuccess, record.ScrapeStatus)
	require.False(t, record.LastUpdated.IsZero())
	assert.Equal(t, 2026, record.LastUpdated.Year())
}

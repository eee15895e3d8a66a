package embedding

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntoineDubuc/theodore/internal/errs"
	"github.com/AntoineDubuc/theodore/internal/model"
)

type fakeEmbedder struct {
	vec      []float32
	err      error
	lastText string
}

func (f *fakeEmbedder) Embed(_ context.Context, text string, _ int) ([]float32, error) {
	f.lastText = text
	return f.vec, f.err
}

func fullRecord() *model.CompanyRecord {
	return &model.CompanyRecord{
		Name:               "Acme",
		Website:            "https://acme.test",
		Industry:           "Robotics",
		BusinessModel:      "B2B",
		TargetMarket:       "logistics operators",
		CompanySize:        "medium",
		CompanyDescription: "Acme builds warehouse robots.",
		ValueProposition:   "Cheaper picking",
		KeyServices:        []string{"fleet automation", "robot leasing"},
		TechStack:          []string{"ROS", "Go"},
		Location:           "Montreal, Canada",
		FoundingYear:       2014,
		AISummary:          "Acme is a growth-stage robotics vendor.",
	}
}

func TestCanonicalTextFixedOrder(t *testing.T) {
	t.Parallel()

	text := CanonicalText(fullRecord())
	labels := []string{
		"Company:", "Website:", "Industry:", "Business Model:", "Target Market:",
		"Company Size:", "Description:", "Value Proposition:", "Key Services:",
		"Tech Stack:", "Location:", "Founded:", "Summary:",
	}
	pos := -1
	for _, label := range labels {
		i := strings.Index(text, label)
		require.GreaterOrEqual(t, i, 0, "missing %q", label)
		assert.Greater(t, i, pos, "%q out of order", label)
		pos = i
	}
}

func TestCanonicalTextOmitsAbsentFields(t *testing.T) {
	t.Parallel()

	text := CanonicalText(&model.CompanyRecord{Name: "Acme", Website: "https://acme.test"})
	assert.Equal(t, "Company: Acme\nWebsite: https://acme.test", text)
	assert.NotContains(t, text, "Industry")
	assert.NotContains(t, text, "Founded")
}

func TestCanonicalTextDeterministic(t *testing.T) {
	t.Parallel()

	assert.Equal(t, CanonicalText(fullRecord()), CanonicalText(fullRecord()))
}

func TestEmbedReturnsVector(t *testing.T) {
	t.Parallel()

	vec := make([]float32, 768)
	vec[0] = 0.5
	emb := &fakeEmbedder{vec: vec}

	got, err := NewService(emb, 768).Embed(context.Background(), fullRecord())
	require.NoError(t, err)
	assert.Len(t, got, 768)
	assert.Contains(t, emb.lastText, "Company: Acme")
}

func TestEmbedDimensionMismatch(t *testing.T) {
	t.Parallel()

	emb := &fakeEmbedder{vec: make([]float32, 10)}
	_, err := NewService(emb, 768).Embed(context.Background(), fullRecord())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrProvider))
}

func TestEmbedRejectsNonFinite(t *testing.T) {
	t.Parallel()

	vec := make([]float32, 768)
	vec[3] = float32(math.NaN())
	_, err := NewService(&fakeEmbedder{vec: vec}, 768).Embed(context.Background(), fullRecord())
	require.Error(t, err)
}

func TestEmbedProviderErrorPropagates(t *testing.T) {
	t.Parallel()

	emb := &fakeEmbedder{err: eris.Wrap(errs.ErrNetwork, "gemini down")}
	_, err := NewService(emb, 768).Embed(context.Background(), fullRecord())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrNetwork))
}

func TestEmbedEmptyRecord(t *testing.T) {
	t.Parallel()

	_, err := NewService(&fakeEmbedder{}, 768).Embed(context.Background(), &model.CompanyRecord{})
	require.Error(t, err)
}

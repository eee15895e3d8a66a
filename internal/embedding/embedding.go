// Package embedding renders company records into canonical text and
// turns that text into dense vectors for similarity search.
package embedding

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/AntoineDubuc/theodore/internal/errs"
	"github.com/AntoineDubuc/theodore/internal/model"
)

// Embedder turns text into a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string, dimension int) ([]float32, error)
}

// Service generates record embeddings with one provider and dimension.
type Service struct {
	embedder  Embedder
	dimension int
}

// NewService creates an embedding service. The dimension is fixed for
// the life of the index; changing it requires a re-embed of every record.
func NewService(embedder Embedder, dimension int) *Service {
	if dimension <= 0 {
		dimension = 768
	}
	return &Service{embedder: embedder, dimension: dimension}
}

// Dimension returns the configured vector dimension.
func (s *Service) Dimension() int {
	return s.dimension
}

// Embed renders the record canonically and embeds it. The returned
// vector has exactly the configured dimension with finite entries.
func (s *Service) Embed(ctx context.Context, record *model.CompanyRecord) ([]float32, error) {
	text := CanonicalText(record)
	if text == "" {
		return nil, eris.Wrap(errs.ErrProvider, "embedding: record renders to empty text")
	}

	vec, err := s.embedder.Embed(ctx, text, s.dimension)
	if err != nil {
		return nil, eris.Wrap(err, "embedding: generate vector")
	}
	if len(vec) != s.dimension {
		return nil, eris.Wrapf(errs.ErrProvider, "embedding: got dimension %d, want %d", len(vec), s.dimension)
	}
	for _, v := range vec {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return nil, eris.Wrap(errs.ErrProvider, "embedding: non-finite vector entry")
		}
	}

	zap.L().Debug("embedding: vector generated",
		zap.String("company", record.Name),
		zap.Int("text_chars", len(text)),
		zap.Int("dimension", len(vec)),
	)
	return vec, nil
}

// CanonicalText renders the record as labelled fields in a fixed order.
// Absent fields contribute nothing, so two records with the same content
// always render identically regardless of how they were built.
func CanonicalText(r *model.CompanyRecord) string {
	var b strings.Builder
	field := func(label, value string) {
		if value = strings.TrimSpace(value); value != "" {
			fmt.Fprintf(&b, "%s: %s\n", label, value)
		}
	}

	field("Company", r.Name)
	field("Website", r.Website)
	field("Industry", r.Industry)
	field("Business Model", r.BusinessModel)
	field("Target Market", r.TargetMarket)
	field("Company Size", r.CompanySize)
	field("Description", r.CompanyDescription)
	field("Value Proposition", r.ValueProposition)
	field("Key Services", strings.Join(r.KeyServices, ", "))
	field("Tech Stack", strings.Join(r.TechStack, ", "))
	field("Location", r.Location)
	if r.FoundingYear > 0 {
		field("Founded", fmt.Sprintf("%d", r.FoundingYear))
	}
	field("Summary", r.AISummary)

	return strings.TrimSpace(b.String())
}

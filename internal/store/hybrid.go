package store

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/AntoineDubuc/theodore/internal/errs"
	"github.com/AntoineDubuc/theodore/internal/model"
)

// SimilarityFilters restricts QuerySimilar candidates. String fields
// are equality predicates; CompanySizes is set-membership.
type SimilarityFilters struct {
	Industry           string
	CompanyStage       string
	TechSophistication string
	CompanySizes       []string
}

// Similar is one k-NN hit. Score is in [0,1], higher is more similar.
type Similar struct {
	ID    string
	Name  string
	Score float64
}

// Hybrid pairs the document store with the vector index. Writes are
// sequenced document-first, vector-second; there is no transaction
// across the two, so a vector entry without a document is stale state
// that reads repair by deleting it.
type Hybrid struct {
	docs    DocumentStore
	vectors *VectorIndex
	meta    MetadataOptions
}

// NewHybrid builds the hybrid store over its two backends.
func NewHybrid(docs DocumentStore, vectors *VectorIndex, meta MetadataOptions) *Hybrid {
	return &Hybrid{docs: docs, vectors: vectors, meta: meta.withDefaults()}
}

// Upsert persists the record, resolving its identity first: a set ID is
// reused as-is, otherwise an existing record with the same name
// (case-insensitive) donates its ID, otherwise a fresh UUID is minted.
// The vector upsert is skipped when the record has no embedding.
func (h *Hybrid) Upsert(ctx context.Context, record *model.CompanyRecord) error {
	if record.ID == "" {
		existing, err := h.docs.GetByName(ctx, record.Name)
		if err != nil {
			return eris.Wrap(err, "hybrid: resolve id by name")
		}
		if existing != nil {
			record.ID = existing.ID
		} else {
			record.ID = uuid.New().String()
		}
	}

	if err := h.docs.Put(ctx, record); err != nil {
		return eris.Wrap(err, "hybrid: write document")
	}

	if len(record.Embedding) == 0 {
		zap.L().Warn("hybrid: no embedding, record stored without vector",
			zap.String("id", record.ID),
			zap.String("company", record.Name),
		)
		return nil
	}

	meta := ProjectMetadata(record, h.meta)
	if err := h.vectors.Upsert(ctx, record.ID, record.Embedding, meta); err != nil {
		return eris.Wrap(err, "hybrid: write vector")
	}
	return nil
}

// Get loads the merged view for id: the document, backfilled from
// vector metadata for any fields the document lacks. A vector entry
// with no document is stale and gets deleted on the spot.
func (h *Hybrid) Get(ctx context.Context, id string) (*model.CompanyRecord, error) {
	record, err := h.docs.Get(ctx, id)
	if err != nil {
		return nil, eris.Wrap(err, "hybrid: read document")
	}

	vec, meta, indexed := h.vectors.Get(ctx, id)
	if record == nil {
		if indexed {
			zap.L().Warn("hybrid: vector without document, repairing", zap.String("id", id))
			if derr := h.vectors.Delete(ctx, id); derr != nil {
				zap.L().Error("hybrid: read repair failed", zap.String("id", id), zap.Error(derr))
			}
		}
		return nil, nil
	}

	if indexed {
		OverlayMetadata(record, meta)
		if len(record.Embedding) == 0 {
			record.Embedding = vec
		}
	}
	return record, nil
}

// FindByName resolves a record by exact case-insensitive name match,
// falling back to substring match, through Get so the merged view and
// read-repair apply.
func (h *Hybrid) FindByName(ctx context.Context, name string) (*model.CompanyRecord, error) {
	exact, err := h.docs.GetByName(ctx, name)
	if err != nil {
		return nil, eris.Wrap(err, "hybrid: find by name")
	}
	if exact != nil {
		return h.Get(ctx, exact.ID)
	}

	matches, err := h.docs.SearchByName(ctx, name)
	if err != nil {
		return nil, eris.Wrap(err, "hybrid: search by name")
	}
	if len(matches) == 0 {
		return nil, nil
	}
	return h.Get(ctx, matches[0].ID)
}

// QuerySimilar returns the k nearest neighbours of the record with the
// given id, excluding the record itself, scores descending in [0,1].
func (h *Hybrid) QuerySimilar(ctx context.Context, id string, k int, filters SimilarityFilters) ([]Similar, error) {
	vec, _, indexed := h.vectors.Get(ctx, id)
	if !indexed {
		return nil, eris.Wrapf(errs.ErrStorage, "hybrid: no vector for %s, similarity needs an embedded record", id)
	}

	where := map[string]string{}
	if filters.Industry != "" {
		where[metaIndustry] = filters.Industry
	}
	if filters.CompanyStage != "" {
		where[metaCompanyStage] = filters.CompanyStage
	}
	if filters.TechSophistication != "" {
		where[metaTechSophistication] = filters.TechSophistication
	}
	if len(where) == 0 {
		where = nil
	}

	// One extra result absorbs the query record itself. The size filter
	// runs after the query (the index filters by equality only), so
	// over-fetch to keep k reachable when near neighbours get filtered
	// out. Query clamps to the collection size.
	fetch := k + 1
	if len(filters.CompanySizes) > 0 {
		fetch = k*4 + 1
	}
	results, err := h.vectors.Query(ctx, vec, fetch, where)
	if err != nil {
		return nil, eris.Wrap(err, "hybrid: query similar")
	}

	sizes := map[string]bool{}
	for _, s := range filters.CompanySizes {
		sizes[strings.ToLower(s)] = true
	}

	var out []Similar
	for _, res := range results {
		if res.ID == id {
			continue
		}
		if len(sizes) > 0 && !sizes[strings.ToLower(res.Metadata[metaCompanySize])] {
			continue
		}
		out = append(out, Similar{
			ID:    res.ID,
			Name:  res.Metadata[metaName],
			Score: clampScore(float64(res.Similarity)),
		})
		if len(out) == k {
			break
		}
	}
	return out, nil
}

// Delete removes the record from both stores. Missing entries in
// either store are tolerated.
func (h *Hybrid) Delete(ctx context.Context, id string) error {
	if err := h.docs.Delete(ctx, id); err != nil {
		return eris.Wrap(err, "hybrid: delete document")
	}
	if err := h.vectors.Delete(ctx, id); err != nil {
		return eris.Wrap(err, "hybrid: delete vector")
	}
	return nil
}

// List returns every stored record ordered by name.
func (h *Hybrid) List(ctx context.Context) ([]*model.CompanyRecord, error) {
	return h.docs.List(ctx)
}

// Close closes the document store. The vector index persists per write
// and needs no close.
func (h *Hybrid) Close() error {
	return h.docs.Close()
}

// clampScore maps cosine similarity into [0,1]. Negative similarity
// means "not similar at all" for ranking purposes.
func clampScore(sim float64) float64 {
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}

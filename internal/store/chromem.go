package store

import (
	"context"

	"github.com/philippgille/chromem-go"
	"github.com/rotisserie/eris"

	"github.com/AntoineDubuc/theodore/internal/errs"
)

// VectorIndex wraps a persistent chromem-go collection. Embeddings are
// always supplied externally; the collection's embedding func is a stub
// that fails loudly if anything ever asks it to embed.
type VectorIndex struct {
	db   *chromem.DB
	coll *chromem.Collection
}

// NewVectorIndex opens (or creates) a persistent vector index at path.
func NewVectorIndex(path, collection string) (*VectorIndex, error) {
	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, eris.Wrap(errs.ErrStorage, "vector: open db: "+err.Error())
	}

	coll, err := db.GetOrCreateCollection(collection, nil, rejectEmbedding)
	if err != nil {
		return nil, eris.Wrap(errs.ErrStorage, "vector: open collection: "+err.Error())
	}
	return &VectorIndex{db: db, coll: coll}, nil
}

func rejectEmbedding(context.Context, string) ([]float32, error) {
	return nil, eris.New("vector: index stores external embeddings only")
}

// Upsert writes or replaces the vector entry for id.
func (v *VectorIndex) Upsert(ctx context.Context, id string, vector []float32, meta map[string]string) error {
	err := v.coll.AddDocument(ctx, chromem.Document{
		ID:        id,
		Metadata:  meta,
		Embedding: vector,
		Content:   meta[metaName],
	})
	if err != nil {
		return eris.Wrapf(errs.ErrStorage, "vector: upsert %s: %v", id, err)
	}
	return nil
}

// Get returns the stored vector and metadata for id, with ok=false when
// the id is not indexed.
func (v *VectorIndex) Get(ctx context.Context, id string) ([]float32, map[string]string, bool) {
	doc, err := v.coll.GetByID(ctx, id)
	if err != nil {
		return nil, nil, false
	}
	return doc.Embedding, doc.Metadata, true
}

// Query runs k-NN over the index with optional metadata equality
// filters. k is clamped to the collection size; an empty collection
// returns no results.
func (v *VectorIndex) Query(ctx context.Context, vector []float32, k int, where map[string]string) ([]chromem.Result, error) {
	count := v.coll.Count()
	if count == 0 || k <= 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	results, err := v.coll.QueryEmbedding(ctx, vector, k, where, nil)
	if err != nil {
		return nil, eris.Wrap(errs.ErrStorage, "vector: query: "+err.Error())
	}
	return results, nil
}

// Delete removes the vector entry for id. Missing ids are not an error.
func (v *VectorIndex) Delete(ctx context.Context, id string) error {
	if _, _, ok := v.Get(ctx, id); !ok {
		return nil
	}
	if err := v.coll.Delete(ctx, nil, nil, id); err != nil {
		return eris.Wrapf(errs.ErrStorage, "vector: delete %s: %v", id, err)
	}
	return nil
}

// Count returns the number of indexed vectors.
func (v *VectorIndex) Count() int {
	return v.coll.Count()
}

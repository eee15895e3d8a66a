// Package store persists company records across two backing stores: a
// document store holding the full record and a vector index holding the
// embedding plus a bounded metadata projection. The Hybrid type owns
// the pairing contract; the backends are interchangeable behind
// DocumentStore.
package store

import (
	"context"

	"github.com/AntoineDubuc/theodore/internal/model"
)

// DocumentStore is the full-record side of the hybrid store. Get and
// GetByName return (nil, nil) when no record matches.
type DocumentStore interface {
	// Put writes or replaces the record under record.ID.
	Put(ctx context.Context, record *model.CompanyRecord) error
	Get(ctx context.Context, id string) (*model.CompanyRecord, error)
	// GetByName matches the exact name, case-insensitive.
	GetByName(ctx context.Context, name string) (*model.CompanyRecord, error)
	// SearchByName matches a case-insensitive substring, ordered by name.
	SearchByName(ctx context.Context, fragment string) ([]*model.CompanyRecord, error)
	// List returns all records ordered by name. Intended for CLI listings
	// and small local datasets, not pagination.
	List(ctx context.Context) ([]*model.CompanyRecord, error)
	// Delete removes the record; deleting a missing id is not an error.
	Delete(ctx context.Context, id string) error

	Migrate(ctx context.Context) error
	Close() error
}

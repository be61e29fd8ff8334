package searchindex

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_index.go -package=mocks matchbook/internal/searchindex Index

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no entry exists for the id.
var ErrNotFound = errors.New("index entry not found")

// Entry is the per-record projection stored in a search backend. It has no
// identity of its own: it is regenerated in full from the profile on every
// save and can always be rebuilt from the system of record.
type Entry struct {
	ID     string
	Text   string
	Facets map[string]string
}

// RankedID is a single ranked query hit. Score semantics are
// backend-specific; callers only rely on the result list being pre-sorted
// best-first.
type RankedID struct {
	ID    string
	Score float64
}

// Index is the capability contract shared by the vector and keyword
// backends. The coordinator depends only on this interface; which backend
// serves it is a deployment concern.
type Index interface {
	// Upsert replaces any prior entry with the same id in full.
	Upsert(ctx context.Context, entry Entry) error

	// Delete removes the entry. Deleting an absent id is not an error.
	Delete(ctx context.Context, id string) error

	// Query returns up to limit ids ranked best-first. Facet filters are
	// equality predicates ANDed together.
	Query(ctx context.Context, text string, facets map[string]string, limit int) ([]RankedID, error)

	// Get returns the stored entry for direct lookup and debugging.
	// Not used on the primary read path.
	Get(ctx context.Context, id string) (*Entry, error)
}

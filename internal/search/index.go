// Package search mirrors searchable entities into an external full-text index and answers
// ranked queries against it.
package search

import (
	"context"
	"errors"
)

// ErrNotFound is returned by a Source when the requested row no longer exists.
var ErrNotFound = errors.New("search: source row not found")

// Searchable is implemented by models that are mirrored into the index.
type Searchable interface {
	// SearchTable names the index the entity belongs to. It matches the SQL table name.
	SearchTable() string
	SearchID() int64
	// SearchFields returns the indexed field values keyed by field name.
	SearchFields() map[string]string
}

// Index is a full-text index keyed by table name.
type Index interface {
	// Add inserts or replaces the document for entity.
	Add(ctx context.Context, table string, entity Searchable) error
	// Remove deletes the document with id. Removing a missing document is not an error.
	Remove(ctx context.Context, table string, id int64) error
	// Query returns ids for the 1-based page ordered by relevance and the total match count.
	Query(ctx context.Context, table, expression string, page, perPage int) ([]int64, int, error)
	Ping(ctx context.Context) error
}

// Disabled is used when no search backend is configured.
type Disabled struct{}

func (Disabled) Add(context.Context, string, Searchable) error { return nil }

func (Disabled) Remove(context.Context, string, int64) error { return nil }

func (Disabled) Query(context.Context, string, string, int, int) ([]int64, int, error) {
	return nil, 0, nil
}

func (Disabled) Ping(context.Context) error { return nil }

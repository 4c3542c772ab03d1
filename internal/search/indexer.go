package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Flopsa/digital-doc/internal/unitofwork"
)

// Indexer keeps the index in step with committed changes. Register it on the unit of work.
type Indexer struct {
	index  Index
	logger *slog.Logger
}

func NewIndexer(index Index, logger *slog.Logger) *Indexer {
	return &Indexer{index: index, logger: logger}
}

// AfterCommit upserts added and updated entities and removes deleted ones. Entities that are
// not Searchable are skipped. Every entity is attempted even when an earlier one fails.
func (ix *Indexer) AfterCommit(ctx context.Context, changes unitofwork.ChangeSet) error {
	var errs []error

	upsert := func(objs []interface{}) {
		for _, obj := range objs {
			s, ok := obj.(Searchable)
			if !ok {
				continue
			}
			if err := ix.index.Add(ctx, s.SearchTable(), s); err != nil {
				errs = append(errs, err)
			}
		}
	}
	upsert(changes.Added)
	upsert(changes.Updated)

	for _, obj := range changes.Deleted {
		s, ok := obj.(Searchable)
		if !ok {
			continue
		}
		if err := ix.index.Remove(ctx, s.SearchTable(), s.SearchID()); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("search indexer: %w", errors.Join(errs...))
	}
	return nil
}

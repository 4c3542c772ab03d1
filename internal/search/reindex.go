package search

import (
	"context"
	"fmt"
)

// Source reads the rows of one searchable table from the primary store.
type Source interface {
	Table() string
	// Load returns the row with id or ErrNotFound.
	Load(ctx context.Context, id int64) (Searchable, error)
	Each(ctx context.Context, fn func(Searchable) error) error
}

// Reindex re-adds every row of src to index and returns how many documents were written.
func Reindex(ctx context.Context, index Index, src Source) (int, error) {
	count := 0
	err := src.Each(ctx, func(s Searchable) error {
		if err := index.Add(ctx, src.Table(), s); err != nil {
			return err
		}
		count++
		return nil
	})
	if err != nil {
		return count, fmt.Errorf("reindex %s: %w", src.Table(), err)
	}
	return count, nil
}

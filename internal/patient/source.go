package patient

import (
	"context"
	"errors"

	"github.com/Flopsa/digital-doc/internal/search"
)

// SearchSource exposes the patients table to search.Reindex and the change feed consumer.
type SearchSource struct {
	repo Repository
}

func NewSearchSource(repo Repository) *SearchSource {
	return &SearchSource{repo: repo}
}

func (s *SearchSource) Table() string { return TableName }

func (s *SearchSource) Load(ctx context.Context, id int64) (search.Searchable, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, search.ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func (s *SearchSource) Each(ctx context.Context, fn func(search.Searchable) error) error {
	return s.repo.Each(ctx, func(p *Patient) error {
		return fn(p)
	})
}

package patient

import (
	"context"
	"errors"
	"fmt"

	"github.com/Flopsa/digital-doc/common/pagination"
	"github.com/Flopsa/digital-doc/internal/search"
)

var (
	ErrPatientNotFound = errors.New("patient not found")
	ErrIDNumberExists  = errors.New("id number already exists")
	ErrEmailExists     = errors.New("email already exists")
	ErrInvalidInput    = errors.New("invalid input")
)

type Service interface {
	CreatePatient(ctx context.Context, req CreateRequest) (*Patient, error)
	GetPatient(ctx context.Context, id int64) (*Patient, error)
	ListPatients(ctx context.Context, p pagination.Params) ([]Patient, int, error)
	UpdatePatient(ctx context.Context, id int64, req UpdateRequest) (*Patient, error)
	DeletePatient(ctx context.Context, id int64) error
	// SearchPatients runs expression against the index and returns the matching page in
	// relevance order together with the total number of matches.
	SearchPatients(ctx context.Context, expression string, p pagination.Params) ([]Patient, int, error)
}

type service struct {
	repo  Repository
	index search.Index
}

func NewService(repo Repository, index search.Index) Service {
	return &service{
		repo:  repo,
		index: index,
	}
}

func (s *service) CreatePatient(ctx context.Context, req CreateRequest) (*Patient, error) {
	patient := &Patient{}
	req.apply(patient)

	if err := s.repo.Create(ctx, patient); err != nil {
		return nil, err
	}
	return patient, nil
}

func (s *service) GetPatient(ctx context.Context, id int64) (*Patient, error) {
	if id <= 0 {
		return nil, ErrInvalidInput
	}
	return s.repo.GetByID(ctx, id)
}

func (s *service) ListPatients(ctx context.Context, p pagination.Params) ([]Patient, int, error) {
	return s.repo.List(ctx, p)
}

func (s *service) UpdatePatient(ctx context.Context, id int64, req UpdateRequest) (*Patient, error) {
	patient, err := s.GetPatient(ctx, id)
	if err != nil {
		return nil, err
	}

	CreateRequest(req).apply(patient)

	if err := s.repo.Update(ctx, patient); err != nil {
		return nil, err
	}
	return patient, nil
}

func (s *service) DeletePatient(ctx context.Context, id int64) error {
	if id <= 0 {
		return ErrInvalidInput
	}
	return s.repo.Delete(ctx, id)
}

func (s *service) SearchPatients(ctx context.Context, expression string, p pagination.Params) ([]Patient, int, error) {
	ids, total, err := s.index.Query(ctx, TableName, expression, p.Page, p.PerPage)
	if err != nil {
		return nil, 0, fmt.Errorf("search patients: %w", err)
	}
	if total == 0 {
		return []Patient{}, 0, nil
	}

	patients, err := s.repo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	return patients, total, nil
}

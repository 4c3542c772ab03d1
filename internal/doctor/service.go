package doctor

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrDoctorNotFound           = errors.New("doctor not found")
	ErrEmailExists              = errors.New("email already exists")
	ErrRegistrationNumberExists = errors.New("registration number already exists")
	ErrInvalidInput             = errors.New("invalid input")
)

type Service interface {
	GetDoctor(ctx context.Context, id int64) (*Doctor, error)
	UpdateProfile(ctx context.Context, id int64, req UpdateProfileRequest) (*Doctor, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{
		repo: repo,
	}
}

func (s *service) GetDoctor(ctx context.Context, id int64) (*Doctor, error) {
	if id <= 0 {
		return nil, ErrInvalidInput
	}
	return s.repo.GetByID(ctx, id)
}

func (s *service) UpdateProfile(ctx context.Context, id int64, req UpdateProfileRequest) (*Doctor, error) {
	doctor, err := s.GetDoctor(ctx, id)
	if err != nil {
		return nil, err
	}

	doctor.Name = strings.TrimSpace(req.Name)
	doctor.Email = strings.ToLower(strings.TrimSpace(req.Email))
	doctor.RegistrationNumber = strings.TrimSpace(req.RegistrationNumber)

	if err := s.repo.Update(ctx, doctor); err != nil {
		return nil, err
	}
	return doctor, nil
}

package doctor

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Flopsa/digital-doc/common/metrics"
	"github.com/Flopsa/digital-doc/internal/db"
	"github.com/Flopsa/digital-doc/internal/unitofwork"
)

const table = "doctors"

type Repository interface {
	Create(ctx context.Context, doctor *Doctor) error
	GetByID(ctx context.Context, id int64) (*Doctor, error)
	GetByEmail(ctx context.Context, email string) (*Doctor, error)
	Exists(ctx context.Context, id int64) (bool, error)
	Update(ctx context.Context, doctor *Doctor) error
	UpdatePassword(ctx context.Context, doctor *Doctor) error
}

type repository struct {
	uow     *unitofwork.UnitOfWork
	metrics *metrics.Metrics
}

func NewRepository(uow *unitofwork.UnitOfWork, m *metrics.Metrics) Repository {
	return &repository{
		uow:     uow,
		metrics: m,
	}
}

func (r *repository) Create(ctx context.Context, doctor *Doctor) error {
	start := time.Now()
	err := r.uow.Do(ctx, func(ctx context.Context, tx *unitofwork.Tx) error {
		return tx.Insert(ctx, doctor)
	})

	r.metrics.Database.RecordQuery(ctx, "insert", table, time.Since(start), err)

	return mapError(err)
}

func (r *repository) GetByID(ctx context.Context, id int64) (*Doctor, error) {
	start := time.Now()
	doctor := new(Doctor)
	err := r.uow.DB().NewSelect().Model(doctor).Where("id = ?", id).Scan(ctx)

	r.metrics.Database.RecordQuery(ctx, "select", table, time.Since(start), err)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	return doctor, nil
}

func (r *repository) GetByEmail(ctx context.Context, email string) (*Doctor, error) {
	start := time.Now()
	doctor := new(Doctor)
	err := r.uow.DB().NewSelect().
		Model(doctor).
		Where("email = ?", email).
		Scan(ctx)

	r.metrics.Database.RecordQuery(ctx, "select", table, time.Since(start), err)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	return doctor, nil
}

func (r *repository) Exists(ctx context.Context, id int64) (bool, error) {
	start := time.Now()
	exists, err := r.uow.DB().NewSelect().
		Model((*Doctor)(nil)).
		Where("id = ?", id).
		Exists(ctx)

	r.metrics.Database.RecordQuery(ctx, "select", table, time.Since(start), err)

	return exists, err
}

// Update writes the profile columns. The password hash is only changed by UpdatePassword.
func (r *repository) Update(ctx context.Context, doctor *Doctor) error {
	return r.update(ctx, doctor, "name", "email", "registration_number")
}

func (r *repository) UpdatePassword(ctx context.Context, doctor *Doctor) error {
	return r.update(ctx, doctor, "password_hash")
}

func (r *repository) update(ctx context.Context, doctor *Doctor, columns ...string) error {
	start := time.Now()
	err := r.uow.Do(ctx, func(ctx context.Context, tx *unitofwork.Tx) error {
		return tx.Update(ctx, doctor, columns...)
	})

	r.metrics.Database.RecordQuery(ctx, "update", table, time.Since(start), err)

	return mapError(err)
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrDoctorNotFound
	}
	if constraint, ok := db.UniqueViolation(err); ok {
		switch constraint {
		case "doctors_email_key":
			return ErrEmailExists
		case "doctors_registration_number_key":
			return ErrRegistrationNumberExists
		}
	}
	return err
}

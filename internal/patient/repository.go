package patient

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Flopsa/digital-doc/common/metrics"
	"github.com/Flopsa/digital-doc/common/pagination"
	"github.com/Flopsa/digital-doc/internal/db"
	"github.com/Flopsa/digital-doc/internal/search"
	"github.com/Flopsa/digital-doc/internal/unitofwork"
)

const batchSize = 500

type Repository interface {
	Create(ctx context.Context, patient *Patient) error
	GetByID(ctx context.Context, id int64) (*Patient, error)
	Exists(ctx context.Context, id int64) (bool, error)
	List(ctx context.Context, p pagination.Params) ([]Patient, int, error)
	// GetByIDs returns the patients with ids in the order of ids. Unknown ids are skipped.
	GetByIDs(ctx context.Context, ids []int64) ([]Patient, error)
	Update(ctx context.Context, patient *Patient) error
	Delete(ctx context.Context, id int64) error
	// Each walks every patient in id order.
	Each(ctx context.Context, fn func(*Patient) error) error
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

func (r *repository) Create(ctx context.Context, patient *Patient) error {
	start := time.Now()
	err := r.uow.Do(ctx, func(ctx context.Context, tx *unitofwork.Tx) error {
		return tx.Insert(ctx, patient)
	})

	r.metrics.Database.RecordQuery(ctx, "insert", TableName, time.Since(start), err)

	return mapError(err)
}

func (r *repository) GetByID(ctx context.Context, id int64) (*Patient, error) {
	start := time.Now()
	patient := new(Patient)
	err := r.uow.DB().NewSelect().Model(patient).Where("id = ?", id).Scan(ctx)

	r.metrics.Database.RecordQuery(ctx, "select", TableName, time.Since(start), err)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	return patient, nil
}

func (r *repository) Exists(ctx context.Context, id int64) (bool, error) {
	start := time.Now()
	exists, err := r.uow.DB().NewSelect().
		Model((*Patient)(nil)).
		Where("id = ?", id).
		Exists(ctx)

	r.metrics.Database.RecordQuery(ctx, "select", TableName, time.Since(start), err)

	return exists, err
}

func (r *repository) List(ctx context.Context, p pagination.Params) ([]Patient, int, error) {
	start := time.Now()
	patients := make([]Patient, 0)
	total, err := r.uow.DB().NewSelect().
		Model(&patients).
		Order("last_name ASC", "first_name ASC", "id ASC").
		Limit(p.PerPage).
		Offset(p.Offset()).
		ScanAndCount(ctx)

	r.metrics.Database.RecordQuery(ctx, "select", TableName, time.Since(start), err)

	return patients, total, err
}

func (r *repository) GetByIDs(ctx context.Context, ids []int64) ([]Patient, error) {
	patients := make([]Patient, 0, len(ids))
	if len(ids) == 0 {
		return patients, nil
	}

	start := time.Now()
	q := r.uow.DB().NewSelect().Model(&patients)
	err := search.OrderByIDs(q, ids).Scan(ctx)

	r.metrics.Database.RecordQuery(ctx, "select", TableName, time.Since(start), err)

	return patients, err
}

func (r *repository) Update(ctx context.Context, patient *Patient) error {
	start := time.Now()
	err := r.uow.Do(ctx, func(ctx context.Context, tx *unitofwork.Tx) error {
		return tx.Update(ctx, patient, "first_name", "last_name", "age", "sex", "id_number", "email")
	})

	r.metrics.Database.RecordQuery(ctx, "update", TableName, time.Since(start), err)

	return mapError(err)
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	start := time.Now()
	err := r.uow.Do(ctx, func(ctx context.Context, tx *unitofwork.Tx) error {
		return tx.Delete(ctx, &Patient{ID: id})
	})

	r.metrics.Database.RecordQuery(ctx, "delete", TableName, time.Since(start), err)

	return mapError(err)
}

func (r *repository) Each(ctx context.Context, fn func(*Patient) error) error {
	var lastID int64
	for {
		start := time.Now()
		var batch []Patient
		err := r.uow.DB().NewSelect().
			Model(&batch).
			Where("id > ?", lastID).
			Order("id ASC").
			Limit(batchSize).
			Scan(ctx)

		r.metrics.Database.RecordQuery(ctx, "select", TableName, time.Since(start), err)

		if err != nil {
			return err
		}

		for i := range batch {
			if err := fn(&batch[i]); err != nil {
				return err
			}
		}

		if len(batch) < batchSize {
			return nil
		}
		lastID = batch[len(batch)-1].ID
	}
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrPatientNotFound
	}
	if constraint, ok := db.UniqueViolation(err); ok {
		switch constraint {
		case "patients_id_number_key":
			return ErrIDNumberExists
		case "patients_email_key":
			return ErrEmailExists
		}
	}
	return err
}

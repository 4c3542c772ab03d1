package association

import (
	"context"
	"time"

	"github.com/Flopsa/digital-doc/common/metrics"
	"github.com/Flopsa/digital-doc/common/pagination"
	"github.com/Flopsa/digital-doc/internal/doctor"
	"github.com/Flopsa/digital-doc/internal/patient"
	"github.com/Flopsa/digital-doc/internal/unitofwork"

	"github.com/uptrace/bun"
)

type Repository interface {
	// Add links the pair and reports whether a new row was written.
	Add(ctx context.Context, doctorID, patientID int64) (bool, error)
	// Remove unlinks the pair and reports whether a row was deleted.
	Remove(ctx context.Context, doctorID, patientID int64) (bool, error)
	Exists(ctx context.Context, doctorID, patientID int64) (bool, error)
	PatientsOf(ctx context.Context, doctorID int64, p pagination.Params) ([]patient.Patient, int, error)
	DoctorsOf(ctx context.Context, patientID int64, p pagination.Params) ([]doctor.Doctor, int, error)
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

func (r *repository) Add(ctx context.Context, doctorID, patientID int64) (bool, error) {
	start := time.Now()
	created := false

	err := r.uow.Do(ctx, func(ctx context.Context, tx *unitofwork.Tx) error {
		exists, err := pairQuery(tx.Bun().NewSelect(), doctorID, patientID).Exists(ctx)
		if err != nil || exists {
			return err
		}

		result, err := tx.Bun().NewInsert().
			Model(&DoctorPatient{DoctorID: doctorID, PatientID: patientID}).
			On("CONFLICT (doctor_id, patient_id) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return err
		}
		n, err := result.RowsAffected()
		if err != nil {
			return err
		}
		created = n > 0
		return nil
	})

	r.metrics.Database.RecordQuery(ctx, "insert", table, time.Since(start), err)

	return created, err
}

func (r *repository) Remove(ctx context.Context, doctorID, patientID int64) (bool, error) {
	start := time.Now()
	result, err := r.uow.DB().NewDelete().
		Model((*DoctorPatient)(nil)).
		Where("doctor_id = ?", doctorID).
		Where("patient_id = ?", patientID).
		Exec(ctx)

	r.metrics.Database.RecordQuery(ctx, "delete", table, time.Since(start), err)

	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *repository) Exists(ctx context.Context, doctorID, patientID int64) (bool, error) {
	start := time.Now()
	exists, err := pairQuery(r.uow.DB().NewSelect(), doctorID, patientID).Exists(ctx)

	r.metrics.Database.RecordQuery(ctx, "select", table, time.Since(start), err)

	return exists, err
}

func (r *repository) PatientsOf(ctx context.Context, doctorID int64, p pagination.Params) ([]patient.Patient, int, error) {
	start := time.Now()
	patients := make([]patient.Patient, 0)
	total, err := r.uow.DB().NewSelect().
		Model(&patients).
		Join("JOIN doctors_patients AS dp ON dp.patient_id = p.id").
		Where("dp.doctor_id = ?", doctorID).
		Order("p.last_name ASC", "p.first_name ASC", "p.id ASC").
		Limit(p.PerPage).
		Offset(p.Offset()).
		ScanAndCount(ctx)

	r.metrics.Database.RecordQuery(ctx, "select", table, time.Since(start), err)

	return patients, total, err
}

func (r *repository) DoctorsOf(ctx context.Context, patientID int64, p pagination.Params) ([]doctor.Doctor, int, error) {
	start := time.Now()
	doctors := make([]doctor.Doctor, 0)
	total, err := r.uow.DB().NewSelect().
		Model(&doctors).
		Join("JOIN doctors_patients AS dp ON dp.doctor_id = d.id").
		Where("dp.patient_id = ?", patientID).
		Order("d.name ASC", "d.id ASC").
		Limit(p.PerPage).
		Offset(p.Offset()).
		ScanAndCount(ctx)

	r.metrics.Database.RecordQuery(ctx, "select", table, time.Since(start), err)

	return doctors, total, err
}

func pairQuery(q *bun.SelectQuery, doctorID, patientID int64) *bun.SelectQuery {
	return q.
		Model((*DoctorPatient)(nil)).
		Where("doctor_id = ?", doctorID).
		Where("patient_id = ?", patientID)
}

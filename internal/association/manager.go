// Package association manages the many-to-many links between doctors and patients.
// Every mutation is idempotent: adding an existing link or removing a missing one changes
// nothing and is not an error.
package association

import (
	"context"

	"github.com/Flopsa/digital-doc/common/pagination"
	"github.com/Flopsa/digital-doc/internal/doctor"
	"github.com/Flopsa/digital-doc/internal/metrics"
	"github.com/Flopsa/digital-doc/internal/patient"
)

type Manager interface {
	AddPatient(ctx context.Context, doctorID, patientID int64) error
	RemovePatient(ctx context.Context, doctorID, patientID int64) error
	HasPatient(ctx context.Context, doctorID, patientID int64) (bool, error)
	PatientsOf(ctx context.Context, doctorID int64, p pagination.Params) ([]patient.Patient, int, error)

	AddDoctor(ctx context.Context, patientID, doctorID int64) error
	RemoveDoctor(ctx context.Context, patientID, doctorID int64) error
	HasDoctor(ctx context.Context, patientID, doctorID int64) (bool, error)
	DoctorsOf(ctx context.Context, patientID int64, p pagination.Params) ([]doctor.Doctor, int, error)
}

type manager struct {
	repo     Repository
	doctors  doctor.Repository
	patients patient.Repository
	metrics  *metrics.Metrics
}

func NewManager(repo Repository, doctors doctor.Repository, patients patient.Repository, m *metrics.Metrics) Manager {
	return &manager{
		repo:     repo,
		doctors:  doctors,
		patients: patients,
		metrics:  m,
	}
}

func (m *manager) AddPatient(ctx context.Context, doctorID, patientID int64) error {
	if err := m.requirePair(ctx, doctorID, patientID); err != nil {
		return err
	}

	created, err := m.repo.Add(ctx, doctorID, patientID)
	if err != nil {
		return err
	}
	if created {
		m.metrics.RecordAssociationChange(ctx, "add")
	}
	return nil
}

func (m *manager) RemovePatient(ctx context.Context, doctorID, patientID int64) error {
	removed, err := m.repo.Remove(ctx, doctorID, patientID)
	if err != nil {
		return err
	}
	if removed {
		m.metrics.RecordAssociationChange(ctx, "remove")
	}
	return nil
}

func (m *manager) HasPatient(ctx context.Context, doctorID, patientID int64) (bool, error) {
	if err := m.requirePair(ctx, doctorID, patientID); err != nil {
		return false, err
	}
	return m.repo.Exists(ctx, doctorID, patientID)
}

func (m *manager) PatientsOf(ctx context.Context, doctorID int64, p pagination.Params) ([]patient.Patient, int, error) {
	if err := m.requireDoctor(ctx, doctorID); err != nil {
		return nil, 0, err
	}
	return m.repo.PatientsOf(ctx, doctorID, p)
}

func (m *manager) AddDoctor(ctx context.Context, patientID, doctorID int64) error {
	return m.AddPatient(ctx, doctorID, patientID)
}

func (m *manager) RemoveDoctor(ctx context.Context, patientID, doctorID int64) error {
	return m.RemovePatient(ctx, doctorID, patientID)
}

func (m *manager) HasDoctor(ctx context.Context, patientID, doctorID int64) (bool, error) {
	return m.HasPatient(ctx, doctorID, patientID)
}

func (m *manager) DoctorsOf(ctx context.Context, patientID int64, p pagination.Params) ([]doctor.Doctor, int, error) {
	if err := m.requirePatient(ctx, patientID); err != nil {
		return nil, 0, err
	}
	return m.repo.DoctorsOf(ctx, patientID, p)
}

func (m *manager) requirePair(ctx context.Context, doctorID, patientID int64) error {
	if err := m.requireDoctor(ctx, doctorID); err != nil {
		return err
	}
	return m.requirePatient(ctx, patientID)
}

func (m *manager) requireDoctor(ctx context.Context, id int64) error {
	ok, err := m.doctors.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return doctor.ErrDoctorNotFound
	}
	return nil
}

func (m *manager) requirePatient(ctx context.Context, id int64) error {
	ok, err := m.patients.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return patient.ErrPatientNotFound
	}
	return nil
}

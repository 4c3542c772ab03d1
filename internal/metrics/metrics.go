package metrics

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the clinic's business counters. Infrastructure instruments live in
// common/metrics.
type Metrics struct {
	doctorsRegistered      metric.Int64Counter
	patientsRegistered     metric.Int64Counter
	patientSearches        metric.Int64Counter
	associationChanges     metric.Int64Counter
	passwordResetRequested metric.Int64Counter
	passwordResetCompleted metric.Int64Counter
}

func New(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.doctorsRegistered, err = meter.Int64Counter(
		"clinic.doctors.registered",
		metric.WithDescription("Total number of doctors registered"),
		metric.WithUnit("{doctor}"),
	)
	if err != nil {
		return nil, err
	}

	m.patientsRegistered, err = meter.Int64Counter(
		"clinic.patients.registered",
		metric.WithDescription("Total number of patients registered"),
		metric.WithUnit("{patient}"),
	)
	if err != nil {
		return nil, err
	}

	m.patientSearches, err = meter.Int64Counter(
		"clinic.patients.searches",
		metric.WithDescription("Total number of patient searches"),
		metric.WithUnit("{search}"),
	)
	if err != nil {
		return nil, err
	}

	m.associationChanges, err = meter.Int64Counter(
		"clinic.associations.changes",
		metric.WithDescription("Doctor patient links added or removed"),
		metric.WithUnit("{change}"),
	)
	if err != nil {
		return nil, err
	}

	m.passwordResetRequested, err = meter.Int64Counter(
		"clinic.password_reset.requested",
		metric.WithDescription("Password reset tokens issued"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, err
	}

	m.passwordResetCompleted, err = meter.Int64Counter(
		"clinic.password_reset.completed",
		metric.WithDescription("Passwords changed with a reset token"),
		metric.WithUnit("{reset}"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Metrics) RecordDoctorRegistration(ctx context.Context) {
	if m != nil && m.doctorsRegistered != nil {
		m.doctorsRegistered.Add(ctx, 1)
	}
}

func (m *Metrics) RecordPatientRegistration(ctx context.Context) {
	if m != nil && m.patientsRegistered != nil {
		m.patientsRegistered.Add(ctx, 1)
	}
}

func (m *Metrics) RecordPatientSearch(ctx context.Context, hits int) {
	if m != nil && m.patientSearches != nil {
		m.patientSearches.Add(ctx, 1, metric.WithAttributes(attribute.Bool("empty", hits == 0)))
	}
}

// RecordAssociationChange counts a link mutation; action is "add" or "remove".
func (m *Metrics) RecordAssociationChange(ctx context.Context, action string) {
	if m != nil && m.associationChanges != nil {
		m.associationChanges.Add(ctx, 1, metric.WithAttributes(attribute.String("action", action)))
	}
}

func (m *Metrics) RecordPasswordResetRequested(ctx context.Context) {
	if m != nil && m.passwordResetRequested != nil {
		m.passwordResetRequested.Add(ctx, 1)
	}
}

func (m *Metrics) RecordPasswordResetCompleted(ctx context.Context) {
	if m != nil && m.passwordResetCompleted != nil {
		m.passwordResetCompleted.Add(ctx, 1)
	}
}

// NewMock creates a no-op Metrics instance for testing
func NewMock() *Metrics {
	return &Metrics{}
}

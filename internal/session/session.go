// Package session carries the authenticated doctor through request contexts.
package session

import "context"

type contextKey string

const (
	doctorIDKey contextKey = "doctor_id"
	emailKey    contextKey = "email"
)

func WithDoctor(ctx context.Context, doctorID int64, email string) context.Context {
	ctx = context.WithValue(ctx, doctorIDKey, doctorID)
	return context.WithValue(ctx, emailKey, email)
}

// DoctorID extracts the authenticated doctor id from ctx
func DoctorID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(doctorIDKey).(int64)
	return id, ok
}

func Email(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(emailKey).(string)
	return email, ok
}

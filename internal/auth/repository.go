package auth

import (
	"context"
	"database/sql"
	"time"

	"github.com/Flopsa/digital-doc/common/metrics"

	"github.com/uptrace/bun"
)

const table = "refresh_tokens"

type Repository struct {
	db      *bun.DB
	metrics *metrics.Metrics
}

func NewRepository(db *bun.DB, m *metrics.Metrics) *Repository {
	return &Repository{
		db:      db,
		metrics: m,
	}
}

// CreateRefreshToken stores a new refresh token
func (r *Repository) CreateRefreshToken(ctx context.Context, doctorID int64, token string, expiresAt time.Time) error {
	start := time.Now()
	refreshToken := &RefreshToken{
		DoctorID:  doctorID,
		Token:     token,
		ExpiresAt: expiresAt,
	}

	_, err := r.db.NewInsert().Model(refreshToken).Exec(ctx)

	r.metrics.Database.RecordQuery(ctx, "insert", table, time.Since(start), err)

	return err
}

// ConsumeRefreshToken deletes an unexpired token and returns it. The delete is a single
// statement, so of two concurrent refreshes with the same token only one gets a row back.
func (r *Repository) ConsumeRefreshToken(ctx context.Context, token string) (*RefreshToken, error) {
	start := time.Now()
	refreshToken := &RefreshToken{}
	_, err := r.db.NewDelete().
		Model(refreshToken).
		Where("token = ?", token).
		Where("expires_at > ?", time.Now()).
		Returning("*").
		Exec(ctx, refreshToken)

	r.metrics.Database.RecordQuery(ctx, "delete", table, time.Since(start), err)

	if err != nil {
		return nil, err
	}
	if refreshToken.ID == 0 {
		return nil, sql.ErrNoRows
	}
	return refreshToken, nil
}

func (r *Repository) DeleteRefreshToken(ctx context.Context, token string) error {
	start := time.Now()
	_, err := r.db.NewDelete().
		Model((*RefreshToken)(nil)).
		Where("token = ?", token).
		Exec(ctx)

	r.metrics.Database.RecordQuery(ctx, "delete", table, time.Since(start), err)

	return err
}

// DeleteAllDoctorTokens ends every session of a doctor
func (r *Repository) DeleteAllDoctorTokens(ctx context.Context, doctorID int64) error {
	start := time.Now()
	_, err := r.db.NewDelete().
		Model((*RefreshToken)(nil)).
		Where("doctor_id = ?", doctorID).
		Exec(ctx)

	r.metrics.Database.RecordQuery(ctx, "delete", table, time.Since(start), err)

	return err
}

// DeleteExpiredTokens removes all expired refresh tokens
func (r *Repository) DeleteExpiredTokens(ctx context.Context) (int64, error) {
	start := time.Now()
	result, err := r.db.NewDelete().
		Model((*RefreshToken)(nil)).
		Where("expires_at < ?", time.Now()).
		Exec(ctx)

	r.metrics.Database.RecordQuery(ctx, "delete", table, time.Since(start), err)

	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

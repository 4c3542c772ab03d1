package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/Flopsa/digital-doc/internal/doctor"
	"github.com/Flopsa/digital-doc/internal/metrics"
)

var (
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrInvalidRefreshToken = errors.New("invalid or expired refresh token")
)

// ResetNotifier delivers issued reset tokens to the doctor out of band.
type ResetNotifier interface {
	NotifyPasswordReset(ctx context.Context, event ResetEvent) error
}

type Options struct {
	RefreshTTL time.Duration
	ResetTTL   time.Duration
}

type Service struct {
	authRepo *Repository
	doctors  doctor.Repository
	tokens   *Tokens
	notifier ResetNotifier
	opts     Options
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func NewService(authRepo *Repository, doctors doctor.Repository, tokens *Tokens, notifier ResetNotifier, opts Options, logger *slog.Logger, m *metrics.Metrics) *Service {
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = 7 * 24 * time.Hour
	}
	if opts.ResetTTL <= 0 {
		opts.ResetTTL = DefaultResetTTL
	}
	return &Service{
		authRepo: authRepo,
		doctors:  doctors,
		tokens:   tokens,
		notifier: notifier,
		opts:     opts,
		logger:   logger,
		metrics:  m,
	}
}

// Register creates a new doctor account
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	d := &doctor.Doctor{
		Name:               strings.TrimSpace(req.Name),
		Email:              normalizeEmail(req.Email),
		RegistrationNumber: strings.TrimSpace(req.RegistrationNumber),
	}
	if err := d.SetPassword(req.Password); err != nil {
		return nil, err
	}

	if err := s.doctors.Create(ctx, d); err != nil {
		return nil, err
	}

	s.metrics.RecordDoctorRegistration(ctx)

	return s.generateTokenPair(ctx, d)
}

// Login authenticates a doctor and returns tokens
func (s *Service) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	d, err := s.doctors.GetByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, doctor.ErrDoctorNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !d.CheckPassword(req.Password) {
		return nil, ErrInvalidCredentials
	}

	return s.generateTokenPair(ctx, d)
}

// RefreshAccessToken rotates the refresh token and issues a new access token
func (s *Service) RefreshAccessToken(ctx context.Context, refreshTokenString string) (*AuthResponse, error) {
	refreshToken, err := s.authRepo.ConsumeRefreshToken(ctx, refreshTokenString)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	d, err := s.doctors.GetByID(ctx, refreshToken.DoctorID)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	return s.generateTokenPair(ctx, d)
}

func (s *Service) Logout(ctx context.Context, refreshTokenString string) error {
	return s.authRepo.DeleteRefreshToken(ctx, refreshTokenString)
}

// LogoutAll invalidates all refresh tokens for a doctor
func (s *Service) LogoutAll(ctx context.Context, doctorID int64) error {
	return s.authRepo.DeleteAllDoctorTokens(ctx, doctorID)
}

// GetResetToken issues a password reset token for d. A non-positive expiresIn uses the
// configured default.
func (s *Service) GetResetToken(d *doctor.Doctor, expiresIn time.Duration) (string, time.Time, error) {
	if expiresIn <= 0 {
		expiresIn = s.opts.ResetTTL
	}
	return s.tokens.ResetToken(d.ID, expiresIn)
}

// VerifyResetToken returns the doctor a valid reset token was issued for. Malformed,
// expired and forged tokens, and tokens for deleted doctors, all yield ErrInvalidResetToken.
func (s *Service) VerifyResetToken(ctx context.Context, token string) (*doctor.Doctor, error) {
	id, err := s.tokens.ParseResetToken(token)
	if err != nil {
		return nil, ErrInvalidResetToken
	}

	d, err := s.doctors.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, doctor.ErrDoctorNotFound) {
			return nil, ErrInvalidResetToken
		}
		return nil, err
	}
	return d, nil
}

// RequestPasswordReset issues a token for the doctor registered under email and hands it to
// the notifier. Unknown addresses are not reported to the caller.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	d, err := s.doctors.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, doctor.ErrDoctorNotFound) {
			s.logger.InfoContext(ctx, "password reset requested for unknown email")
			return nil
		}
		return err
	}

	token, expiresAt, err := s.GetResetToken(d, 0)
	if err != nil {
		return err
	}

	s.metrics.RecordPasswordResetRequested(ctx)

	if s.notifier == nil {
		s.logger.WarnContext(ctx, "no reset notifier configured, token dropped", "doctor_id", d.ID)
		return nil
	}

	return s.notifier.NotifyPasswordReset(ctx, ResetEvent{
		DoctorID:  d.ID,
		Email:     d.Email,
		Name:      d.Name,
		Token:     token,
		ExpiresAt: expiresAt,
	})
}

// ResetPassword sets a new password for the doctor the token was issued for and ends all
// of that doctor's sessions.
func (s *Service) ResetPassword(ctx context.Context, token, password string) error {
	d, err := s.VerifyResetToken(ctx, token)
	if err != nil {
		return err
	}

	if err := d.SetPassword(password); err != nil {
		return err
	}
	if err := s.doctors.UpdatePassword(ctx, d); err != nil {
		return err
	}

	s.metrics.RecordPasswordResetCompleted(ctx)

	return s.authRepo.DeleteAllDoctorTokens(ctx, d.ID)
}

// PurgeExpiredTokens deletes refresh tokens past their expiry.
func (s *Service) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	return s.authRepo.DeleteExpiredTokens(ctx)
}

func (s *Service) generateTokenPair(ctx context.Context, d *doctor.Doctor) (*AuthResponse, error) {
	accessToken, err := s.tokens.GenerateAccessToken(d.ID, d.Email)
	if err != nil {
		return nil, err
	}

	refreshToken, err := GenerateRefreshToken()
	if err != nil {
		return nil, err
	}

	expiresAt := time.Now().Add(s.opts.RefreshTTL)
	if err := s.authRepo.CreateRefreshToken(ctx, d.ID, refreshToken, expiresAt); err != nil {
		return nil, err
	}

	return &AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Doctor:       d,
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const DefaultResetTTL = 600 * time.Second

var (
	ErrInvalidAccessToken = errors.New("invalid or expired access token")
	ErrInvalidResetToken  = errors.New("invalid or expired reset token")
)

// AccessClaims are carried by the short-lived session JWT.
type AccessClaims struct {
	DoctorID int64  `json:"doctor_id"`
	Email    string `json:"email"`
	jwt.RegisteredClaims
}

// resetClaims serialize as {"reset_password": <doctor id>, "exp": <unix seconds>}.
type resetClaims struct {
	ResetPassword int64 `json:"reset_password"`
	jwt.RegisteredClaims
}

// Tokens signs and verifies HS256 tokens with one shared secret.
type Tokens struct {
	secret    []byte
	accessTTL time.Duration
	now       func() time.Time
}

func NewTokens(secret string, accessTTL time.Duration) *Tokens {
	return &Tokens{
		secret:    []byte(secret),
		accessTTL: accessTTL,
		now:       time.Now,
	}
}

// WithClock replaces the time source used for issuing and validating tokens.
func (t *Tokens) WithClock(now func() time.Time) *Tokens {
	cp := *t
	cp.now = now
	return &cp
}

func (t *Tokens) AccessTTL() time.Duration {
	return t.accessTTL
}

func (t *Tokens) GenerateAccessToken(doctorID int64, email string) (string, error) {
	now := t.now()
	claims := AccessClaims{
		DoctorID: doctorID,
		Email:    email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.accessTTL)),
		},
	}
	return t.sign(claims)
}

func (t *Tokens) ValidateAccessToken(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if _, err := t.parse(tokenString, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAccessToken, err)
	}
	if claims.DoctorID <= 0 {
		return nil, ErrInvalidAccessToken
	}
	return claims, nil
}

// ResetToken issues a password reset token for doctorID valid for expiresIn.
func (t *Tokens) ResetToken(doctorID int64, expiresIn time.Duration) (string, time.Time, error) {
	if expiresIn <= 0 {
		expiresIn = DefaultResetTTL
	}
	expiresAt := t.now().Add(expiresIn)
	claims := resetClaims{
		ResetPassword: doctorID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := t.sign(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// ParseResetToken returns the doctor id carried by a valid reset token. Every failure,
// whatever its cause, is reported as ErrInvalidResetToken.
func (t *Tokens) ParseResetToken(tokenString string) (int64, error) {
	claims := &resetClaims{}
	if _, err := t.parse(tokenString, claims); err != nil {
		return 0, ErrInvalidResetToken
	}
	if claims.ResetPassword <= 0 {
		return 0, ErrInvalidResetToken
	}
	return claims.ResetPassword, nil
}

func (t *Tokens) sign(claims jwt.Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

func (t *Tokens) parse(tokenString string, claims jwt.Claims) (*jwt.Token, error) {
	return jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (interface{}, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
}

// GenerateRefreshToken returns an opaque random token.
func GenerateRefreshToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

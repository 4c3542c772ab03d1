package auth_test

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/Flopsa/digital-doc/internal/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret-key-for-testing"

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestTokens_ResetToken(t *testing.T) {
	issuedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tokens := auth.NewTokens(secret, 15*time.Minute).WithClock(fixedClock(issuedAt))

	t.Run("claims carry doctor id and expiry", func(t *testing.T) {
		token, expiresAt, err := tokens.ResetToken(42, 10*time.Minute)
		require.NoError(t, err)
		assert.Equal(t, issuedAt.Add(10*time.Minute), expiresAt)

		parts := strings.Split(token, ".")
		require.Len(t, parts, 3)
		payload, err := base64.RawURLEncoding.DecodeString(parts[1])
		require.NoError(t, err)

		var claims map[string]interface{}
		require.NoError(t, json.Unmarshal(payload, &claims))
		assert.Equal(t, float64(42), claims["reset_password"])
		assert.Equal(t, float64(issuedAt.Add(10*time.Minute).Unix()), claims["exp"])
	})

	t.Run("valid token verifies", func(t *testing.T) {
		token, _, err := tokens.ResetToken(42, time.Minute)
		require.NoError(t, err)

		id, err := tokens.ParseResetToken(token)
		require.NoError(t, err)
		assert.Equal(t, int64(42), id)
	})

	t.Run("expired after two seconds", func(t *testing.T) {
		token, _, err := tokens.ResetToken(42, time.Second)
		require.NoError(t, err)

		later := tokens.WithClock(fixedClock(issuedAt.Add(2 * time.Second)))
		_, err = later.ParseResetToken(token)
		assert.ErrorIs(t, err, auth.ErrInvalidResetToken)
	})

	t.Run("default expiry is ten minutes", func(t *testing.T) {
		_, expiresAt, err := tokens.ResetToken(42, 0)
		require.NoError(t, err)
		assert.Equal(t, issuedAt.Add(auth.DefaultResetTTL), expiresAt)
	})

	t.Run("failures collapse to one error", func(t *testing.T) {
		token, _, err := tokens.ResetToken(42, time.Minute)
		require.NoError(t, err)

		other := auth.NewTokens("another-secret", time.Minute).WithClock(fixedClock(issuedAt))
		access, err := tokens.GenerateAccessToken(42, "a@b.c")
		require.NoError(t, err)

		for name, candidate := range map[string]string{
			"malformed":       "not-a-token",
			"empty":           "",
			"wrong signature": token[:len(token)-2] + "xx",
			"access token":    access,
		} {
			t.Run(name, func(t *testing.T) {
				_, err := tokens.ParseResetToken(candidate)
				assert.Equal(t, auth.ErrInvalidResetToken, err)
			})
		}

		_, err = other.ParseResetToken(token)
		assert.Equal(t, auth.ErrInvalidResetToken, err)
	})
}

func TestTokens_AccessToken(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tokens := auth.NewTokens(secret, 15*time.Minute).WithClock(fixedClock(now))

	token, err := tokens.GenerateAccessToken(7, "house@clinic.test")
	require.NoError(t, err)

	claims, err := tokens.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.DoctorID)
	assert.Equal(t, "house@clinic.test", claims.Email)

	expired := tokens.WithClock(fixedClock(now.Add(16 * time.Minute)))
	_, err = expired.ValidateAccessToken(token)
	assert.ErrorIs(t, err, auth.ErrInvalidAccessToken)

	reset, _, err := tokens.ResetToken(7, time.Minute)
	require.NoError(t, err)
	_, err = tokens.ValidateAccessToken(reset)
	assert.ErrorIs(t, err, auth.ErrInvalidAccessToken)
}

func TestGenerateRefreshToken(t *testing.T) {
	a, err := auth.GenerateRefreshToken()
	require.NoError(t, err)
	b, err := auth.GenerateRefreshToken()
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}

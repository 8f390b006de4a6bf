package token_adapter

import (
	"context"
	"testing"
	"time"

	"github.com/brunomacedo1203/taskcollab/internal/core/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	svc, err := NewTokenService("secret")
	require.NoError(t, err)

	token, err := svc.GenerateToken(context.Background(), "u-1", time.Hour)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
}

func TestValidateRejectsBadTokens(t *testing.T) {
	svc, err := NewTokenService("secret")
	require.NoError(t, err)
	other, err := NewTokenService("another-secret")
	require.NoError(t, err)

	foreign, err := other.GenerateToken(context.Background(), "u-1", time.Hour)
	require.NoError(t, err)

	expired, err := svc.GenerateToken(context.Background(), "u-1", -time.Minute)
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "u-1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := map[string]string{
		"wrong secret": foreign,
		"expired":      expired,
		"no subject":   noSubject,
		"alg none":     unsigned,
		"garbage":      "not-a-jwt",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateToken(context.Background(), token)
			require.ErrorIs(t, err, domain.ErrTokenInvalid)
		})
	}

	_, err = svc.ValidateToken(context.Background(), "")
	require.ErrorIs(t, err, domain.ErrTokenMissing)
}

func TestNewTokenServiceRequiresKey(t *testing.T) {
	_, err := NewTokenService("")
	require.Error(t, err)

	svc, err := NewTokenService("secret")
	require.NoError(t, err)
	_, err = svc.GenerateToken(context.Background(), "", time.Hour)
	require.Error(t, err)
}

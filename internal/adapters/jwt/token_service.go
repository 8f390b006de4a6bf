package token_adapter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/brunomacedo1203/taskcollab/internal/contextkeys"
	"github.com/brunomacedo1203/taskcollab/internal/core/domain"
	"github.com/brunomacedo1203/taskcollab/internal/core/port"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "taskcollab"

// TokenService - реализация TokenServicePort для JWT (HS256, общий секрет).
// Один и тот же секрет используют выпуск токенов и их проверка в шлюзе и REST.
type TokenService struct {
	signingKey []byte
	now        func() time.Time
}

var _ port.TokenServicePort = (*TokenService)(nil)

func NewTokenService(signingKey string) (*TokenService, error) {
	if signingKey == "" {
		return nil, fmt.Errorf("JWT signing key cannot be empty")
	}
	return &TokenService{signingKey: []byte(signingKey), now: time.Now}, nil
}

// GenerateToken выпускает access-токен с sub = userID.
func (s *TokenService) GenerateToken(ctx context.Context, userID string, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("subject cannot be empty")
	}
	serviceLogger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"component": "TokenService",
		"method":    "GenerateToken",
		"user_id":   userID,
	})

	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		serviceLogger.Error("Failed to sign token", err, nil)
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	serviceLogger.Debug("Token generated", port.Fields{"ttl": ttl.String()})
	return signed, nil
}

// ValidateToken проверяет подпись, срок действия и наличие sub.
// Любая проблема с токеном - domain.ErrTokenInvalid, пустая строка - domain.ErrTokenMissing.
func (s *TokenService) ValidateToken(ctx context.Context, tokenString string) (*domain.Claims, error) {
	if tokenString == "" {
		return nil, domain.ErrTokenMissing
	}
	serviceLogger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"component": "TokenService",
		"method":    "ValidateToken",
	})

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// Только HMAC (HS256/384/512)
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.signingKey, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			serviceLogger.Warn("Token has expired", port.Fields{"user_id": claims.Subject})
		} else {
			serviceLogger.Warn("Invalid token format or signature", port.Fields{"error": err.Error()})
		}
		return nil, domain.ErrTokenInvalid
	}

	if !token.Valid || claims.Subject == "" {
		serviceLogger.Warn("Token has no subject", nil)
		return nil, domain.ErrTokenInvalid
	}
	return &domain.Claims{UserID: claims.Subject}, nil
}

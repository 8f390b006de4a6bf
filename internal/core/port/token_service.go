package port

import (
	"context"
	"time"

	"github.com/brunomacedo1203/taskcollab/internal/core/domain"
)

// TokenServicePort выпускает и проверяет access-токены с общим секретом.
type TokenServicePort interface {
	GenerateToken(ctx context.Context, userID string, ttl time.Duration) (string, error)
	ValidateToken(ctx context.Context, token string) (*domain.Claims, error)
}

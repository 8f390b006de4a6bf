package rest

import (
	"errors"
	"net/http"
	"strings"

	"github.com/brunomacedo1203/taskcollab/internal/contextkeys"
	"github.com/brunomacedo1203/taskcollab/internal/core/domain"
	"github.com/brunomacedo1203/taskcollab/internal/core/port"
)

// AuthMiddleware проверяет Bearer-токен тем же верификатором, что и WebSocket-шлюз,
// и кладет subject в контекст запроса.
func AuthMiddleware(tokens port.TokenServicePort) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := contextkeys.LoggerFromContext(r.Context())

			token := ""
			parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
			if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
				token = strings.TrimSpace(parts[1])
			}

			claims, err := tokens.ValidateToken(r.Context(), token)
			if err != nil {
				if !errors.Is(err, domain.ErrTokenMissing) && !errors.Is(err, domain.ErrTokenInvalid) {
					logger.Error("Token verification failed", err, nil)
				}
				logger.Warn("Unauthorized request", port.Fields{"reason": err.Error()})
				WriteJSONError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			ctx := contextkeys.ContextWithUserID(r.Context(), claims.UserID)
			ctx = contextkeys.ContextWithLogger(ctx, logger.WithFields(port.Fields{"user_id": claims.UserID}))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

package contextkeys

import "context"

type userIDKeyType struct{}

var userIDKey = userIDKeyType{}

// ContextWithUserID помещает идентификатор аутентифицированного пользователя в контекст
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext возвращает userID и признак его наличия
func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey).(string)
	return userID, ok && userID != ""
}

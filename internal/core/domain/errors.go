package domain

import "errors"

// Ошибки, которые могут вернуть use cases и адаптеры.
var (
	ErrSnapshotNotFound     = errors.New("task participants snapshot not found")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrTokenMissing         = errors.New("jwt token is missing")
	ErrTokenInvalid         = errors.New("invalid jwt token")
)

package domain

// Claims - проверенные данные access-токена.
type Claims struct {
	UserID string
}

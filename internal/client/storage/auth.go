package storage

import (
	"context"
)

// AuthStorage хранит сессию пользователя на стороне клиента
type AuthStorage interface {
	// SaveAuth сохраняет данные аутентификации, заменяя предыдущие
	SaveAuth(ctx context.Context, auth *AuthData) error

	// GetAuth возвращает сохраненные данные.
	// Returns ErrAuthNotFound if no auth data exists
	GetAuth(ctx context.Context) (*AuthData, error)

	// DeleteAuth удаляет сохраненные данные (logout)
	DeleteAuth(ctx context.Context) error

	// IsAuthenticated checks if valid authentication exists (not expired)
	IsAuthenticated(ctx context.Context) (bool, error)
}

// AuthData - сохраненная сессия: bearer-токен и его владелец
type AuthData struct {
	Username  string `json:"username"`
	UserID    string `json:"user_id"`
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}

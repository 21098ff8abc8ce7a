package models

import "time"

// User представляет учетную запись пользователя
type User struct {
	CreatedAt    time.Time `json:"created_at"` // время регистрации
	UpdatedAt    time.Time `json:"updated_at"` // время последней смены пароля
	ID           string    `json:"id"`         // UUID пользователя
	Username     string    `json:"username"`   // уникальный без учета регистра
	PasswordHash string    `json:"-"`          // bcrypt/argon2id хеш, наружу не отдается
}

package validation

import (
	"errors"
	"regexp"
)

// UsernamePattern определяет допустимый формат username
// Только латинские буквы (a-z, A-Z), цифры (0-9), нижнее подчеркивание (_)
// Длина: 2-16 символов
var UsernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{2,16}$`)

// PasswordPattern определяет допустимый формат пароля
// Только латинские буквы и цифры, длина 6-24 символа
var PasswordPattern = regexp.MustCompile(`^[a-zA-Z0-9]{6,24}$`)

const (
	// MinUsernameLen минимальная длина username
	MinUsernameLen = 2
	// MaxUsernameLen максимальная длина username
	MaxUsernameLen = 16
	// MinPasswordLen минимальная длина пароля
	MinPasswordLen = 6
	// MaxPasswordLen максимальная длина пароля
	MaxPasswordLen = 24
)

var (
	// ErrCredentialsRequired возвращается для пустого username или пароля
	ErrCredentialsRequired = errors.New("username and password are required")
	// ErrUsernameFormat возвращается, если username не соответствует UsernamePattern
	ErrUsernameFormat = errors.New("username may only contain letters, digits and underscores, 2-16 characters")
	// ErrPasswordFormat возвращается, если пароль не соответствует PasswordPattern
	ErrPasswordFormat = errors.New("password may only contain letters and digits, 6-24 characters")
)

// ValidateUsername проверяет, что username соответствует требованиям
// Формат: только латинские буквы (a-z, A-Z), цифры (0-9), нижнее подчеркивание (_)
// Длина: 2-16 символов
func ValidateUsername(username string) error {
	if username == "" {
		return ErrCredentialsRequired
	}

	if !UsernamePattern.MatchString(username) {
		return ErrUsernameFormat
	}

	return nil
}

// ValidatePassword проверяет формат пароля: 6-24 латинских буквы или цифры
func ValidatePassword(password string) error {
	if password == "" {
		return ErrCredentialsRequired
	}

	if !PasswordPattern.MatchString(password) {
		return ErrPasswordFormat
	}

	return nil
}

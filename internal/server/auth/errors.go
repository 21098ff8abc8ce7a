package auth

import (
	"errors"
	"fmt"
)

// Kind классифицирует ошибки сервиса для транспортного слоя
type Kind int

const (
	KindUnknown Kind = iota
	// KindValidation - некорректный ввод
	KindValidation
	// KindChallenge - капча отсутствует, истекла или неверна
	KindChallenge
	// KindConflict - имя пользователя занято
	KindConflict
	// KindAuth - неверные учетные данные
	KindAuth
	// KindNotFound - учетная запись не найдена
	KindNotFound
	// KindRateLimit - превышена частота запросов
	KindRateLimit
	// KindPersistence - сбой хранилища, детали не раскрываются клиенту
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindChallenge:
		return "challenge"
	case KindConflict:
		return "conflict"
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not_found"
	case KindRateLimit:
		return "rate_limit"
	case KindPersistence:
		return "persistence"
	default:
		return "unknown"
	}
}

// Error - ошибка сервиса с видом и сообщением для пользователя.
// Err хранит внутреннюю причину и в ответ не попадает
type Error struct {
	Err     error
	Message string
	Kind    Kind
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is сопоставляет ошибку с sentinel того же вида: errors.Is(err, auth.ErrConflict)
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

// Sentinel-значения для errors.Is по виду ошибки
var (
	ErrValidation  = &Error{Kind: KindValidation}
	ErrChallenge   = &Error{Kind: KindChallenge}
	ErrConflict    = &Error{Kind: KindConflict}
	ErrAuth        = &Error{Kind: KindAuth}
	ErrNotFound    = &Error{Kind: KindNotFound}
	ErrRateLimit   = &Error{Kind: KindRateLimit}
	ErrPersistence = &Error{Kind: KindPersistence}
)

// KindOf возвращает вид ошибки или KindUnknown
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func newError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Сообщения для пользователя
const (
	MsgCaptchaRequired     = "captcha is required"
	MsgCaptchaExpired      = "captcha expired, please refresh"
	MsgCaptchaInvalid      = "captcha is incorrect"
	MsgTooManyRequests     = "too many requests, please try again later"
	MsgUsernameTaken       = "username already exists"
	MsgInvalidCredentials  = "invalid username or password"
	MsgPasswordsRequired   = "old and new passwords are required"
	MsgOldPasswordInvalid  = "old password is incorrect"
	MsgUserNotFound        = "user not found"
	MsgInternalServerError = "internal server error"
)

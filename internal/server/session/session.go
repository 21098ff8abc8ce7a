// Package session хранит эфемерное состояние сессии браузера: ожидаемый
// ответ на капчу. Сессия идентифицируется непрозрачным id из подписанной cookie.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultTTL - время жизни сессии по умолчанию
	DefaultTTL = 24 * time.Hour
	// RememberTTL - время жизни сессии при "запомнить меня"
	RememberTTL = 7 * 24 * time.Hour
)

var (
	// ErrNoChallenge возвращается, если у сессии нет активной капчи
	// (не выдавалась, уже использована или сессия истекла)
	ErrNoChallenge = errors.New("no active challenge")
	// ErrUnavailable возвращается, если backend хранилища недоступен
	ErrUnavailable = errors.New("session store unavailable")
)

// Store - хранилище сессий. Операции над одной сессией атомарны
type Store interface {
	// SetChallenge сохраняет ответ для сессии id, перезаписывая предыдущий.
	// Создает сессию, если ее нет. Срок жизни продлевается до now+ttl,
	// но не сокращается
	SetChallenge(ctx context.Context, id, answer string, ttl time.Duration) error

	// TakeChallenge атомарно читает и удаляет ответ.
	// Возвращает ErrNoChallenge, если ответа нет или сессия истекла
	TakeChallenge(ctx context.Context, id string) (string, error)

	// Extend устанавливает срок жизни сессии now+ttl, создавая ее при необходимости
	Extend(ctx context.Context, id string, ttl time.Duration) error

	// Sweep удаляет истекшие сессии и возвращает их количество
	Sweep(ctx context.Context) (int, error)
}

// NewID генерирует новый идентификатор сессии
func NewID() string {
	return uuid.NewString()
}

// record - сессия в памяти и в bbolt
type record struct {
	ExpiresAt time.Time `json:"expires_at"`
	Challenge string    `json:"challenge,omitempty"`
}

func (r *record) expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// extendTo продлевает срок жизни, никогда его не сокращая
func (r *record) extendTo(expiresAt time.Time) {
	if expiresAt.After(r.ExpiresAt) {
		r.ExpiresAt = expiresAt
	}
}

// Package ratelimit ограничивает частоту операций для идентификатора клиента
// (обычно IP адрес) по схеме фиксированного окна.
package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Значения по умолчанию для выдачи капчи
const (
	DefaultLimit  = 30
	DefaultWindow = time.Minute
)

// ErrUnavailable возвращается, если backend лимитера недоступен
var ErrUnavailable = errors.New("rate limiter backend unavailable")

// Limiter проверяет и учитывает запрос для ключа
type Limiter interface {
	// Allow атомарно проверяет лимит и, если он не исчерпан, учитывает запрос.
	// Отклоненный запрос счетчик не увеличивает
	Allow(ctx context.Context, key string) (bool, error)

	// Sweep удаляет записи с истекшим окном и возвращает их количество
	Sweep(ctx context.Context) (int, error)
}

// entry - счетчик запросов в текущем окне
type entry struct {
	expiry time.Time
	count  int
}

// MemoryLimiter хранит счетчики в памяти процесса
type MemoryLimiter struct {
	entries map[string]*entry
	now     func() time.Time
	window  time.Duration
	limit   int
	mu      sync.Mutex
}

// NewMemoryLimiter создает лимитер: не более limit запросов за window
func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		entries: make(map[string]*entry),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

// Allow реализует Limiter
func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	e, ok := l.entries[key]
	if !ok || now.After(e.expiry) {
		// Первое обращение или окно истекло: новое окно
		e = &entry{count: 0, expiry: now.Add(l.window)}
		l.entries[key] = e
	}

	if e.count >= l.limit {
		return false, nil
	}

	e.count++
	return true, nil
}

// Sweep реализует Limiter
func (l *MemoryLimiter) Sweep(_ context.Context) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for key, e := range l.entries {
		if now.After(e.expiry) {
			delete(l.entries, key)
			removed++
		}
	}

	return removed, nil
}

// Len возвращает количество отслеживаемых ключей
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

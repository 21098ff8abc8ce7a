package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// allowScript: GET, сравнение с лимитом, INCR и PEXPIRE на первом запросе окна.
// Выполняется атомарно на стороне Redis
const allowScript = `
local count = tonumber(redis.call("GET", KEYS[1]) or "0")
if count >= tonumber(ARGV[1]) then
  return 0
end
count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 1
`

var allowLua = redis.NewScript(allowScript)

// RedisLimiter хранит счетчики в Redis, что позволяет разделять лимит
// между несколькими экземплярами сервера
type RedisLimiter struct {
	client redis.UniversalClient
	prefix string
	window time.Duration
	limit  int
}

// NewRedisLimiter создает лимитер поверх Redis клиента
func NewRedisLimiter(client redis.UniversalClient, prefix string, limit int, window time.Duration) *RedisLimiter {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisLimiter{
		client: client,
		prefix: prefix,
		limit:  limit,
		window: window,
	}
}

// Allow реализует Limiter
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	res, err := allowLua.Run(ctx, l.client, []string{l.key(key)}, l.limit, l.window.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return res == 1, nil
}

// Sweep ничего не делает: записи удаляет сам Redis по TTL
func (l *RedisLimiter) Sweep(_ context.Context) (int, error) {
	return 0, nil
}

func (l *RedisLimiter) key(key string) string {
	return l.prefix + ":" + key
}

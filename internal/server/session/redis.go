package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// setChallengeScript записывает ответ и продлевает TTL ключа, не сокращая его.
// PTTL возвращает -1 для ключа без TTL (только что созданного)
var setChallengeScript = redis.NewScript(`
redis.call("HSET", KEYS[1], "challenge", ARGV[1])
local ttl = redis.call("PTTL", KEYS[1])
if ttl < tonumber(ARGV[2]) then
  redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 1
`)

// takeChallengeScript атомарно читает и удаляет поле challenge
var takeChallengeScript = redis.NewScript(`
local v = redis.call("HGET", KEYS[1], "challenge")
if not v then
  return false
end
redis.call("HDEL", KEYS[1], "challenge")
return v
`)

// RedisStore хранит сессии в Redis. Каждая сессия - hash с TTL,
// поэтому истечение и очистку выполняет сам Redis
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore создает хранилище сессий поверх клиента Redis
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "session"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(id string) string {
	return s.prefix + ":" + id
}

// SetChallenge реализует Store
func (s *RedisStore) SetChallenge(ctx context.Context, id, answer string, ttl time.Duration) error {
	err := setChallengeScript.Run(ctx, s.client, []string{s.key(id)}, answer, ttl.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// TakeChallenge реализует Store
func (s *RedisStore) TakeChallenge(ctx context.Context, id string) (string, error) {
	answer, err := takeChallengeScript.Run(ctx, s.client, []string{s.key(id)}).Text()
	if errors.Is(err, redis.Nil) {
		return "", ErrNoChallenge
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if answer == "" {
		return "", ErrNoChallenge
	}
	return answer, nil
}

// Extend реализует Store. Поле remember не дает Redis удалить пустой hash
// после того, как капча использована
func (s *RedisStore) Extend(ctx context.Context, id string, ttl time.Duration) error {
	key := s.key(id)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, "remember", "1")
		pipe.PExpire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Sweep реализует Store. Redis удаляет истекшие ключи сам
func (s *RedisStore) Sweep(context.Context) (int, error) {
	return 0, nil
}

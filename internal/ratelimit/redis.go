package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyTTL = 48 * time.Hour

var reserveScript = redis.NewScript(`
local n = tonumber(redis.call('GET', KEYS[1]) or '0')
if n >= tonumber(ARGV[1]) then
	return 0
end
n = redis.call('INCR', KEYS[1])
if n == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 1
`)

var releaseScript = redis.NewScript(`
local n = tonumber(redis.call('GET', KEYS[1]) or '0')
if n > 0 then
	return redis.call('DECR', KEYS[1])
end
return 0
`)

// RedisStore shares quota counters across router processes. Keys expire
// two days after their first reservation.
type RedisStore struct {
	rdb *redis.Client
	max int
}

func NewRedisStore(rdb *redis.Client, maxPerDay int) *RedisStore {
	if maxPerDay <= 0 {
		maxPerDay = DefaultMaxPerDay
	}
	return &RedisStore{rdb: rdb, max: maxPerDay}
}

func (s *RedisStore) Reserve(ctx context.Context, recipient, day string) (bool, error) {
	if s.rdb == nil {
		return false, fmt.Errorf("redis client is nil")
	}

	ok, err := reserveScript.Run(ctx, s.rdb, []string{quotaKey(recipient, day)},
		s.max, keyTTL.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("failed to reserve quota: %w", err)
	}
	return ok == 1, nil
}

func (s *RedisStore) Release(ctx context.Context, recipient, day string) error {
	if s.rdb == nil {
		return fmt.Errorf("redis client is nil")
	}

	if err := releaseScript.Run(ctx, s.rdb, []string{quotaKey(recipient, day)}).Err(); err != nil {
		return fmt.Errorf("failed to release quota: %w", err)
	}
	return nil
}

func (s *RedisStore) Count(ctx context.Context, recipient, day string) (int, error) {
	if s.rdb == nil {
		return 0, fmt.Errorf("redis client is nil")
	}

	n, err := s.rdb.Get(ctx, quotaKey(recipient, day)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get quota count: %w", err)
	}
	return n, nil
}

func quotaKey(recipient, day string) string {
	return fmt.Sprintf("quota:%s:%s", recipient, day)
}

package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "rl:v1:"

// KEYS[1] counter hash; ARGV[1] now (ms); ARGV[2] window (ms).
var incrementLua = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local reset = tonumber(redis.call('HGET', KEYS[1], 'reset'))
local count
if reset == nil or now > reset then
  reset = now + window
  count = 1
  redis.call('HSET', KEYS[1], 'count', 1, 'reset', reset)
else
  count = redis.call('HINCRBY', KEYS[1], 'count', 1)
end
local ttl = reset - now
if ttl < 1 then ttl = 1 end
redis.call('PEXPIRE', KEYS[1], ttl)
return {count, reset}
`)

// RedisStore keeps counters in Redis. Each increment is one script call, so
// concurrent instances share a consistent count.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps a connected client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Increment(ctx context.Context, key string, window time.Duration, now time.Time) (int64, time.Time, error) {
	res, err := incrementLua.Run(ctx, s.client, []string{redisKeyPrefix + key}, now.UnixMilli(), window.Milliseconds()).Slice()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("increment counter: %w", err)
	}
	if len(res) != 2 {
		return 0, time.Time{}, fmt.Errorf("increment counter: unexpected reply %v", res)
	}
	count, ok1 := res[0].(int64)
	reset, ok2 := res[1].(int64)
	if !ok1 || !ok2 {
		return 0, time.Time{}, fmt.Errorf("increment counter: unexpected reply %v", res)
	}
	return count, time.UnixMilli(reset), nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, redisKeyPrefix+key).Err()
}

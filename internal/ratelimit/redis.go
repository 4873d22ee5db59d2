package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "showcase:ratelimit:"

// RedisStore shares counters between instances through Redis.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, opts *redis.Options) (*RedisStore, error) {
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisStoreFromClient(client), nil
}

func NewRedisStoreFromClient(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client, prefix: defaultRedisPrefix}
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// fixedWindowLua resets, checks and increments a window atomically.
var fixedWindowLua = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

local data = redis.call('HMGET', key, 'count', 'start')
local count = tonumber(data[1])
local start = tonumber(data[2])
if count == nil or start == nil or now - start > window then
  count = 0
  start = now
end

local allowed = 0
if count < limit then
  count = count + 1
  allowed = 1
end
redis.call('HSET', key, 'count', count, 'start', start)
redis.call('PEXPIRE', key, window * 2)
return {allowed, count, start}
`)

func (s *RedisStore) Hit(ctx context.Context, key string, now time.Time, window time.Duration, limit int) (Window, bool, error) {
	res, err := fixedWindowLua.Run(ctx, s.client, []string{s.prefix + key},
		now.UnixMilli(), window.Milliseconds(), limit).Result()
	if err != nil {
		return Window{}, false, err
	}
	arr, ok := res.([]interface{})
	if !ok || len(arr) < 3 {
		return Window{}, false, fmt.Errorf("unexpected redis response: %v", res)
	}
	allowed, ok1 := arr[0].(int64)
	count, ok2 := arr[1].(int64)
	start, ok3 := arr[2].(int64)
	if !ok1 || !ok2 || !ok3 {
		return Window{}, false, fmt.Errorf("unexpected redis response: %v", res)
	}
	return Window{Count: int(count), Start: time.UnixMilli(start)}, allowed == 1, nil
}

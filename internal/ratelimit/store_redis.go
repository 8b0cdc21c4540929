package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrScript runs the fixed-window check-and-increment atomically on the
// Redis side. All times are unix milliseconds. Returns
// {allowed, count, window_start_ms}.
const incrScript = `
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

local count = tonumber(redis.call('HGET', KEYS[1], 'count') or '0')
local start = tonumber(redis.call('HGET', KEYS[1], 'start') or '0')

if start == 0 or now - start >= window then
    redis.call('HSET', KEYS[1], 'count', 1, 'start', now)
    redis.call('PEXPIRE', KEYS[1], window)
    return {1, 1, now}
end

if count >= limit then
    return {0, count, start}
end

count = count + 1
redis.call('HSET', KEYS[1], 'count', count)
return {1, count, start}
`

// redisStore shares counters across instances so limits hold for the
// whole deployment rather than per process.
type redisStore struct {
	client *redis.Client
	script *redis.Script
}

// NewRedisStore creates a shared counter store on the given client.
func NewRedisStore(client *redis.Client) Store {
	return &redisStore{
		client: client,
		script: redis.NewScript(incrScript),
	}
}

func (s *redisStore) Incr(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (Slot, bool, error) {
	res, err := s.script.Run(ctx, s.client, []string{key},
		now.UnixMilli(), window.Milliseconds(), limit).Result()
	if err != nil {
		return Slot{}, false, fmt.Errorf("run limiter script: %w", err)
	}

	vals, ok := res.([]interface{})
	if !ok || len(vals) != 3 {
		return Slot{}, false, fmt.Errorf("unexpected limiter script reply: %v", res)
	}

	allowed, _ := vals[0].(int64)
	count, _ := vals[1].(int64)
	startMs, _ := vals[2].(int64)

	return Slot{
		Count:       int(count),
		WindowStart: time.UnixMilli(startMs),
	}, allowed == 1, nil
}

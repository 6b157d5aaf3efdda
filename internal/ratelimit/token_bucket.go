package ratelimit

import (
	"context"
	"errors"
	"math"
	"time"

	redis "github.com/redis/go-redis/v9"
)

var (
	ErrBucketNotConfigured = errors.New("token_bucket_not_configured")
	ErrInvalidBucket       = errors.New("invalid_token_bucket")
)

// takeScript refills the bucket from redis server time, takes one token
// when available and reports how long the caller must wait otherwise.
// Returns {granted, wait_ms}.
const takeScript = `
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])

local t = redis.call("TIME")
local now = (t[1] * 1000) + math.floor(t[2] / 1000)

local state = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(state[1])
local ts = tonumber(state[2])
if tokens == nil then
  tokens = burst
else
  local elapsed = math.max(0, now - ts)
  tokens = math.min(burst, tokens + (elapsed / 1000) * rate)
end

local granted = 0
local wait = 0
if tokens >= 1 then
  granted = 1
  tokens = tokens - 1
else
  wait = math.ceil(((1 - tokens) / rate) * 1000)
end

redis.call("HSET", KEYS[1], "tokens", tostring(tokens), "ts", now)
redis.call("PEXPIRE", KEYS[1], ttl)
return {granted, wait}
`

// TokenBucket is a redis-backed bucket shared by every process using the
// same key.
type TokenBucket struct {
	client *redis.Client
	script *redis.Script
}

func NewTokenBucket(client *redis.Client) *TokenBucket {
	if client == nil {
		return nil
	}
	return &TokenBucket{
		client: client,
		script: redis.NewScript(takeScript),
	}
}

// Take consumes one token. It returns zero when the token was granted,
// otherwise the delay until one will be available.
func (t *TokenBucket) Take(ctx context.Context, key string, rate float64, burst int) (time.Duration, error) {
	if t == nil || t.client == nil {
		return 0, ErrBucketNotConfigured
	}
	if key == "" || rate <= 0 || burst <= 0 {
		return 0, ErrInvalidBucket
	}

	res, err := t.script.Run(ctx, t.client, []string{key},
		rate, burst, bucketTTL(rate, burst).Milliseconds(),
	).Int64Slice()
	if err != nil {
		return 0, err
	}
	if len(res) != 2 {
		return 0, errors.New("unexpected token bucket reply")
	}
	if res[0] == 1 {
		return 0, nil
	}

	wait := time.Duration(res[1]) * time.Millisecond
	if wait <= 0 {
		wait = 100 * time.Millisecond
	}
	return wait, nil
}

// bucketTTL keeps an idle bucket around for twice its full refill time.
func bucketTTL(rate float64, burst int) time.Duration {
	if rate <= 0 || burst <= 0 {
		return time.Second
	}
	seconds := math.Ceil((float64(burst) / rate) * 2)
	if seconds < 1 {
		seconds = 1
	}
	return time.Duration(seconds) * time.Second
}

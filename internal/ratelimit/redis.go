package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter is the distributed-deployment path: the same token-bucket
// contract as InMemoryLimiter, realized with a Lua script executed
// atomically on the Redis side so multiple gateway replicas share one
// rate-limit state. Kept behind the same Bucket interface so
// httpapi.Routes wires whichever backend REDIS_ADDR selects.
type RedisLimiter struct {
	client *redis.Client
	cfg    Config
}

func NewRedis(client *redis.Client, cfg Config) *RedisLimiter {
	return &RedisLimiter{client: client, cfg: cfg}
}

// tokenBucketScript implements the same refill arithmetic as the
// in-memory bucket, but atomically within Redis via EVAL so concurrent
// gateway instances never race on the same key.
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local refill_rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local data = redis.call("HMGET", key, "tokens", "last_refill")
local tokens = tonumber(data[1])
local last_refill = tonumber(data[2])
if tokens == nil then
  tokens = capacity
  last_refill = now
end

local elapsed = math.max(0, now - last_refill)
tokens = math.min(capacity, tokens + elapsed * refill_rate)

local allowed = 0
if tokens >= 1.0 then
  allowed = 1
  tokens = tokens - 1.0
end

redis.call("HMSET", key, "tokens", tokens, "last_refill", now)
redis.call("EXPIRE", key, 3600)

return {allowed, tokens}
`)

// Allow mirrors InMemoryLimiter.Allow's signature, computing nextToken and
// fullReset client-side from the returned remaining-token count since the
// script only needs to return the authoritative allow/tokens pair.
func (rl *RedisLimiter) Allow(key string) (bool, int, time.Time, time.Time) {
	refillRate := float64(rl.cfg.MaxRequests) / rl.cfg.Window.Seconds()
	now := time.Now()

	res, err := tokenBucketScript.Run(context.Background(), rl.client,
		[]string{"ratelimit:" + key},
		float64(rl.cfg.Burst), refillRate, float64(now.Unix()),
	).Result()
	if err != nil {
		// Fail open: a Redis outage must not take down the gateway's
		// request path entirely.
		return true, rl.cfg.Burst, now, now
	}

	vals, ok := res.([]any)
	if !ok || len(vals) != 2 {
		return true, rl.cfg.Burst, now, now
	}
	allowed := vals[0].(int64) == 1

	// Redis converts a Lua number reply to an integer (truncating the
	// fractional tokens), so the count normally arrives as int64.
	remaining := 0
	switch v := vals[1].(type) {
	case int64:
		remaining = int(v)
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			remaining = int(f)
		}
	}

	tokensNeeded := float64(rl.cfg.Burst) - float64(remaining)
	fullReset := now.Add(time.Duration(tokensNeeded/refillRate) * time.Second)
	nextToken := now
	if !allowed {
		nextToken = now.Add(time.Duration(1.0/refillRate) * time.Second)
	}
	return allowed, remaining, nextToken, fullReset
}

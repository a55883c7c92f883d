// Package ratelimiter enforces the per-user fan-out budget with a Redis
// sliding window so the count stays correct across service instances.
package ratelimiter

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/brandlens/brandlens/internal/domain"
)

// luaSlidingWindow trims entries older than the window, counts the rest and
// admits the request by adding a member only when the count is under the
// limit. Runs atomically on the Redis side.
//
// KEYS[1] window zset, ARGV[1] now (unix micros), ARGV[2] window micros,
// ARGV[3] limit, ARGV[4] member id.
// Returns { allowed, oldest_in_window_micros }.
const luaSlidingWindow = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call("ZREMRANGEBYSCORE", key, 0, now - window)

local count = redis.call("ZCARD", key)
if count >= limit then
  local oldest = redis.call("ZRANGE", key, 0, 0, "WITHSCORES")
  local score = now
  if oldest[2] ~= nil then
    score = tonumber(oldest[2])
  end
  return { 0, score }
end

redis.call("ZADD", key, now, ARGV[4])
redis.call("PEXPIRE", key, math.ceil(window / 1000))
return { 1, 0 }
`

// RedisLimiter implements domain.RateLimiter with a sliding window of
// timestamps per user. On Redis failure it fails open: a broken limiter
// should degrade accounting, not take queries down.
type RedisLimiter struct {
	rdb    *redis.Client
	script *redis.Script
	limit  int
	window time.Duration
	logger *slog.Logger
}

func NewRedisLimiter(rdb *redis.Client, limit int, window time.Duration, logger *slog.Logger) *RedisLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisLimiter{
		rdb:    rdb,
		script: redis.NewScript(luaSlidingWindow),
		limit:  limit,
		window: window,
		logger: logger,
	}
}

var _ domain.RateLimiter = (*RedisLimiter)(nil)

// Allow reports whether userID may start another fan-out now. When denied,
// retryAfter is the time until the oldest request in the window expires.
func (l *RedisLimiter) Allow(ctx domain.Context, userID string) (bool, time.Duration, error) {
	if l == nil || l.rdb == nil || l.limit <= 0 {
		return true, 0, nil
	}

	now := time.Now()
	key := "ratelimit:queries:" + userID
	member := fmt.Sprintf("%d", now.UnixNano())

	res, err := l.script.Run(ctx, l.rdb, []string{key},
		now.UnixMicro(), l.window.Microseconds(), l.limit, member).Result()
	if err != nil {
		l.logger.Error("rate limiter script failed, failing open",
			slog.String("user_id", userID), slog.Any("error", err))
		return true, 0, nil
	}

	vals, ok := res.([]interface{})
	if !ok || len(vals) < 2 {
		l.logger.Error("rate limiter unexpected script result",
			slog.String("user_id", userID), slog.Any("result", res))
		return true, 0, nil
	}

	allowed, _ := vals[0].(int64)
	if allowed == 1 {
		return true, 0, nil
	}

	oldest, _ := vals[1].(int64)
	retryAfter := time.Duration(oldest)*time.Microsecond + l.window - time.Duration(now.UnixMicro())*time.Microsecond
	if retryAfter < 0 {
		retryAfter = 0
	}
	return false, retryAfter, nil
}

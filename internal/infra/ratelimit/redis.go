package ratelimit

import (
	"context"
	"errors"
	"strconv"
	"time"

	"addrproof/internal/domain"

	"github.com/redis/go-redis/v9"
)

// redisLimiter counts hits in clock-aligned windows, one counter per route
// scope, caller and window start:
//
//	addrproof:rl:<scope>:<caller>:<window start ms>
//
// Replicas sharing a Redis agree on window boundaries without reading TTLs.
type redisLimiter struct {
	client redis.Scripter
	now    func() time.Time
}

// KEYS[1] bucket, ARGV[1] window end in unix ms.
var redisAllowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIREAT", KEYS[1], ARGV[1])
end
return current
`)

func NewRedisLimiter(addr, password string, db int, now func() time.Time) (domain.RateLimiter, error) {
	if addr == "" {
		return nil, errors.New("redis addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewRedisLimiterWithClient(client, now), nil
}

func NewRedisLimiterWithClient(client redis.Scripter, now func() time.Time) domain.RateLimiter {
	if now == nil {
		now = time.Now
	}
	return &redisLimiter{client: client, now: now}
}

func redisBucket(scope, caller string, windowStart int64) string {
	return domain.RateLimitKey(scope, caller) + ":" + strconv.FormatInt(windowStart, 10)
}

func (r *redisLimiter) Allow(ctx context.Context, scope, caller string, limit int, window time.Duration) (domain.RateLimitDecision, error) {
	if limit <= 0 {
		return domain.RateLimitDecision{Allowed: true, Limit: limit, Remaining: limit}, nil
	}
	windowMillis := window.Milliseconds()
	if windowMillis <= 0 {
		windowMillis = 1000
	}
	start := r.now().UnixMilli() / windowMillis * windowMillis
	end := start + windowMillis

	result, err := redisAllowScript.Run(ctx, r.client, []string{redisBucket(scope, caller, start)}, end).Result()
	if err != nil {
		return domain.RateLimitDecision{}, err
	}
	current, ok := result.(int64)
	if !ok {
		return domain.RateLimitDecision{}, errors.New("invalid redis counter response")
	}
	remaining := limit - int(current)
	if remaining < 0 {
		remaining = 0
	}
	return domain.RateLimitDecision{
		Allowed:   current <= int64(limit),
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   time.UnixMilli(end).UTC(),
	}, nil
}

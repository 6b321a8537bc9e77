package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// countingScripter answers the allow script with a per-key counter.
type countingScripter struct {
	redis.Scripter
	counts map[string]int64
	args   [][]any
}

func (s *countingScripter) EvalSha(ctx context.Context, _ string, keys []string, args ...any) *redis.Cmd {
	s.counts[keys[0]]++
	s.args = append(s.args, args)
	cmd := redis.NewCmd(ctx)
	cmd.SetVal(s.counts[keys[0]])
	return cmd
}

func TestRedisLimiter_AlignedWindowPerScope(t *testing.T) {
	clock := &stepClock{now: time.Date(2026, 3, 1, 9, 30, 20, 0, time.UTC)}
	client := &countingScripter{counts: map[string]int64{}}
	limiter := NewRedisLimiterWithClient(client, clock.Now)
	ctx := context.Background()

	windowStart := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	windowEnd := windowStart.Add(time.Minute)

	d, err := limiter.Allow(ctx, "bundles:verify", "ip:10.0.0.1", 1, time.Minute)
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if !d.Allowed || d.Remaining != 0 || !d.ResetAt.Equal(windowEnd) {
		t.Fatalf("unexpected first decision %+v", d)
	}
	bucket := redisBucket("bundles:verify", "ip:10.0.0.1", windowStart.UnixMilli())
	if client.counts[bucket] != 1 {
		t.Fatalf("expected hit on %s, got %v", bucket, client.counts)
	}
	if got := client.args[0][0]; got != windowEnd.UnixMilli() {
		t.Fatalf("expected expiry at window end, got %v", got)
	}

	if d, _ := limiter.Allow(ctx, "bundles:verify", "ip:10.0.0.1", 1, time.Minute); d.Allowed {
		t.Fatalf("expected second hit limited, got %+v", d)
	}
	if d, _ := limiter.Allow(ctx, "bundles:verifyBatch", "ip:10.0.0.1", 1, time.Minute); !d.Allowed {
		t.Fatalf("expected batch scope to have its own bucket, got %+v", d)
	}

	clock.now = windowEnd
	if d, _ := limiter.Allow(ctx, "bundles:verify", "ip:10.0.0.1", 1, time.Minute); !d.Allowed {
		t.Fatalf("expected next window to start fresh, got %+v", d)
	}
}

func TestRedisLimiter_Unlimited(t *testing.T) {
	client := &countingScripter{counts: map[string]int64{}}
	limiter := NewRedisLimiterWithClient(client, nil)
	d, err := limiter.Allow(context.Background(), "bundles:verify", "ip:10.0.0.1", 0, time.Minute)
	if err != nil || !d.Allowed {
		t.Fatalf("expected unlimited allow, got %+v %v", d, err)
	}
	if len(client.counts) != 0 {
		t.Fatal("unlimited requests must not touch redis")
	}
}

package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stepClock struct {
	now time.Time
}

func (c *stepClock) Now() time.Time { return c.now }

func TestMemoryLimiter_FixedWindow(t *testing.T) {
	clock := &stepClock{now: time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)}
	limiter := NewMemoryLimiter(MemoryLimiterConfig{Now: clock.Now})

	for i := 0; i < 3; i++ {
		d, err := limiter.Allow(context.Background(), "verify", "rp-1", 3, time.Minute)
		if err != nil {
			t.Fatalf("allow: %v", err)
		}
		if !d.Allowed || d.Remaining != 2-i {
			t.Fatalf("request %d: unexpected decision %+v", i, d)
		}
	}
	d, err := limiter.Allow(context.Background(), "verify", "rp-1", 3, time.Minute)
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if d.Allowed {
		t.Fatal("expected fourth request to be limited")
	}
	if !d.ResetAt.Equal(clock.now.Add(time.Minute)) {
		t.Fatalf("unexpected reset %v", d.ResetAt)
	}

	clock.now = clock.now.Add(time.Minute)
	d, err = limiter.Allow(context.Background(), "verify", "rp-1", 3, time.Minute)
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if !d.Allowed || d.Remaining != 2 {
		t.Fatalf("expected new window, got %+v", d)
	}
}

func TestMemoryLimiter_KeysAreIndependent(t *testing.T) {
	limiter := NewMemoryLimiter(MemoryLimiterConfig{})
	ctx := context.Background()
	if d, _ := limiter.Allow(ctx, "verify", "a", 1, time.Minute); !d.Allowed {
		t.Fatal("expected a allowed")
	}
	if d, _ := limiter.Allow(ctx, "verify", "b", 1, time.Minute); !d.Allowed {
		t.Fatal("expected b allowed")
	}
	if d, _ := limiter.Allow(ctx, "verify", "a", 1, time.Minute); d.Allowed {
		t.Fatal("expected a limited")
	}
}

func TestMemoryLimiter_Capacity(t *testing.T) {
	clock := &stepClock{now: time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)}
	limiter := NewMemoryLimiter(MemoryLimiterConfig{Now: clock.Now, MaxKeys: 2})
	ctx := context.Background()
	_, _ = limiter.Allow(ctx, "verify", "a", 5, time.Second)
	_, _ = limiter.Allow(ctx, "verify", "b", 5, time.Second)
	if _, err := limiter.Allow(ctx, "verify", "c", 5, time.Second); !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("expected capacity error, got %v", err)
	}

	clock.now = clock.now.Add(2 * time.Second)
	if _, err := limiter.Allow(ctx, "verify", "c", 5, time.Second); err != nil {
		t.Fatalf("expected expired windows to be collected, got %v", err)
	}
}

func TestMemoryLimiter_Unlimited(t *testing.T) {
	limiter := NewMemoryLimiter(MemoryLimiterConfig{})
	d, err := limiter.Allow(context.Background(), "verify", "a", 0, time.Minute)
	if err != nil || !d.Allowed {
		t.Fatalf("expected unlimited allow, got %+v %v", d, err)
	}
}

func TestMemoryLimiter_ScopesAreIndependent(t *testing.T) {
	limiter := NewMemoryLimiter(MemoryLimiterConfig{})
	ctx := context.Background()
	if d, _ := limiter.Allow(ctx, "bundles:verify", "ip:10.0.0.1", 1, time.Minute); !d.Allowed {
		t.Fatal("expected verify allowed")
	}
	if d, _ := limiter.Allow(ctx, "bundles:verifyBatch", "ip:10.0.0.1", 1, time.Minute); !d.Allowed {
		t.Fatal("expected batch to use its own bucket")
	}
	if d, _ := limiter.Allow(ctx, "bundles:verify", "ip:10.0.0.1", 1, time.Minute); d.Allowed {
		t.Fatal("expected verify limited")
	}
}

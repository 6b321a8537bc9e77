package domain

import (
	"context"
	"time"
)

type RateLimitDecision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RateLimiter counts one hit against the bucket of caller on the route
// named by scope.
type RateLimiter interface {
	Allow(ctx context.Context, scope, caller string, limit int, window time.Duration) (RateLimitDecision, error)
}

// RateLimitKey scopes a limiter bucket to an endpoint and a caller.
func RateLimitKey(scope, caller string) string {
	return "addrproof:rl:" + scope + ":" + caller
}

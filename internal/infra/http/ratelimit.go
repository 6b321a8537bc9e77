package http

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"

	"addrproof/internal/domain"

	"github.com/gin-gonic/gin"
)

const (
	routeBundlesVerify      = "bundles:verify"
	routeBundlesVerifyBatch = "bundles:verifyBatch"
)

// relyingPartyHeader names the caller for per-subject buckets.
const relyingPartyHeader = "X-Relying-Party"

func (s *Server) enforceRateLimit(c *gin.Context, routeID string) bool {
	if s.rateLimiter == nil || s.rateLimitRequests <= 0 {
		return true
	}
	caller := "ip:" + c.ClientIP()
	if subject := strings.TrimSpace(c.GetHeader(relyingPartyHeader)); s.rateLimitWithSubject && subject != "" {
		if s.rateLimitSubjectMax <= 0 || len(subject) <= s.rateLimitSubjectMax {
			if s.rateLimitSubjectHash {
				sum := sha256.Sum256([]byte(subject))
				caller = caller + ":subject_hash:" + hex.EncodeToString(sum[:])
			} else {
				caller = caller + ":subject:" + subject
			}
		}
	}

	decision, err := s.rateLimiter.Allow(c.Request.Context(), routeID, caller, s.rateLimitRequests, s.rateLimitWindow)
	if err != nil {
		if s.rateLimitFailClosed {
			s.metrics.IncrementRateLimited(routeID)
			writeErrorCode(c, http.StatusTooManyRequests, "RATE_LIMIT_UNAVAILABLE", "rate limiter unavailable")
			return false
		}
		return true
	}
	writeRateLimitHeaders(c, decision, s.now())
	if !decision.Allowed {
		s.metrics.IncrementRateLimited(routeID)
		writeErrorCode(c, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded")
		return false
	}
	return true
}

func writeRateLimitHeaders(c *gin.Context, decision domain.RateLimitDecision, now time.Time) {
	if decision.Limit > 0 {
		c.Header("RateLimit-Limit", strconv.Itoa(decision.Limit))
	}
	if decision.Remaining >= 0 {
		c.Header("RateLimit-Remaining", strconv.Itoa(decision.Remaining))
	}
	if !decision.ResetAt.IsZero() {
		c.Header("RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))
		if !decision.Allowed {
			retryAfter := int64(decision.ResetAt.Sub(now).Seconds())
			if retryAfter < 0 {
				retryAfter = 0
			}
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
		}
	}
}

package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/hughes7370/fundconnectv3-sub001/internal/store"
)

// RateLimit defines limits for an endpoint pattern.
type RateLimit struct {
	Requests int
	Window   time.Duration
	KeyFunc  func(r *http.Request) string
}

// RateLimiter implements fixed-window rate limiting on Redis counters.
// When Redis is not configured the limiter is a no-op.
type RateLimiter struct {
	redis  *store.RedisStore
	logger zerolog.Logger
	limits map[string]RateLimit
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(redis *store.RedisStore, logger zerolog.Logger) *RateLimiter {
	return &RateLimiter{
		redis:  redis,
		logger: logger,
		limits: map[string]RateLimit{
			"POST /auth/register":            {10, time.Hour, ipKey},
			"POST /auth/login":               {20, time.Minute, ipKey},
			"POST /auth/resend-verification": {5, time.Hour, userKey},
			"POST /conversations":            {30, time.Minute, userKey},
			"POST /interests":                {60, time.Minute, userKey},
			"POST /funds":                    {20, time.Hour, userKey},
		},
	}
}

func ipKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

// userKey keys on the session token when present, falling back to IP for
// unauthenticated callers. The token is a bearer secret, so only a digest
// of it goes into the Redis keyspace.
func userKey(r *http.Request) string {
	if token := extractToken(r); token != "" {
		sum := sha256.Sum256([]byte(token))
		return "token:" + hex.EncodeToString(sum[:16])
	}
	return ipKey(r)
}

func (rl *RateLimiter) limitFor(r *http.Request) (RateLimit, bool) {
	limit, ok := rl.limits[r.Method+" "+r.URL.Path]
	return limit, ok
}

// Middleware enforces the configured limits.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.redis == nil {
			next.ServeHTTP(w, r)
			return
		}

		limit, ok := rl.limitFor(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		subject := fmt.Sprintf("%s %s:%s", r.Method, r.URL.Path, limit.KeyFunc(r))

		allowed, err := rl.redis.CheckRateLimit(r.Context(), subject, limit.Requests)
		if err != nil {
			// Fail open: a Redis hiccup should not take the API down.
			rl.logger.Warn().Err(err).Msg("rate limit check failed")
			next.ServeHTTP(w, r)
			return
		}
		if !allowed {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(limit.Window.Seconds())))
			jsonError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		if err := rl.redis.IncrementRateLimit(r.Context(), subject, limit.Window); err != nil {
			rl.logger.Warn().Err(err).Msg("rate limit increment failed")
		}

		next.ServeHTTP(w, r)
	})
}

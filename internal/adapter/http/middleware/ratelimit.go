package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	redisStore "cryptosim/internal/adapter/storage/redis"
	"cryptosim/pkg/apperror"
	"cryptosim/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RateLimitStore counts requests per key and window.
type RateLimitStore interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (*redisStore.RateLimitResult, error)
}

// RateLimitRule defines a rate limit for an endpoint group.
type RateLimitRule struct {
	Limit  int64
	Window time.Duration
}

// Endpoint groups.
const (
	GroupAuthLogin    = "auth_login"
	GroupAuthRegister = "auth_register"
	GroupAuthRefresh  = "auth_refresh"
	GroupTransfer     = "transfer"
	GroupMining       = "mining"
	GroupWrite        = "write"
	GroupRead         = "read"
)

// DefaultRateLimitRules returns the per-group limits.
func DefaultRateLimitRules() map[string]RateLimitRule {
	return map[string]RateLimitRule{
		GroupAuthLogin:    {Limit: 10, Window: time.Minute},
		GroupAuthRegister: {Limit: 5, Window: time.Hour},
		GroupAuthRefresh:  {Limit: 30, Window: time.Minute},
		GroupTransfer:     {Limit: 30, Window: time.Minute},
		GroupMining:       {Limit: 20, Window: time.Minute},
		GroupWrite:        {Limit: 60, Window: time.Minute},
		GroupRead:         {Limit: 120, Window: time.Minute},
	}
}

// RateLimiter creates a rate-limiting middleware for a given endpoint group.
// Redis failures let the request through.
func RateLimiter(store RateLimitStore, group string, rule RateLimitRule, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("%s:%s", extractIdentifier(c), group)

		result, err := store.Allow(c.Request.Context(), key, rule.Limit, rule.Window)
		if err != nil {
			log.Warn().Err(err).Str("group", group).Msg("rate limit check failed, allowing request (degraded mode)")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt, 10))

		if !result.Allowed {
			retryAfter := result.ResetAt - time.Now().Unix()
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
			response.AbortError(c, apperror.ErrRateLimitExceeded())
			return
		}

		c.Next()
	}
}

// extractIdentifier keys authenticated callers by user and everyone else by
// client IP.
func extractIdentifier(c *gin.Context) string {
	if p, ok := Principal(c); ok {
		return "user:" + p.UserID.String()
	}
	return "ip:" + c.ClientIP()
}

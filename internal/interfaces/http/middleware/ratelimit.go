package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sermon-search-api/internal/config"
	redisinfra "sermon-search-api/internal/infrastructure/persistence/redis"
)

// RateLimit enforces the redis-backed sliding window per client IP.
// A limiter failure lets the request through rather than taking the
// API down with it.
func RateLimit(cfg config.RateLimitConfig, limiter *redisinfra.RateLimiter) gin.HandlerFunc {
	if !cfg.Enabled || limiter == nil {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		key := redisinfra.BuildRateLimitKey(c.ClientIP())

		allowed, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			c.Next()
			return
		}

		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":     429,
				"message":  "rate limit exceeded",
				"trace_id": c.GetString("trace_id"),
			})
			return
		}

		c.Next()
	}
}

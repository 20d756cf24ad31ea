package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"github.com/findtime/findtime/pkg/findtime/logging"
)

// KeyPrefix namespaces the per-client counters in Redis
const KeyPrefix = "ratelimit:"

// Middleware limits each client IP to max requests per fixed window. The
// counter lives in Redis; when Redis cannot be reached requests are let
// through and a warning is logged.
func Middleware(client *redis.Client, max int, window time.Duration) gin.HandlerFunc {
	if client == nil {
		panic("ratelimit: redis client is required")
	}
	if max <= 0 || window <= 0 {
		panic("ratelimit: max and window must be positive")
	}
	limit := strconv.Itoa(max)

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		key := KeyPrefix + c.ClientIP()

		pipe := client.Pipeline()
		incr := pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, window)
		if _, err := pipe.Exec(ctx); err != nil {
			logging.Entry(c).WithError(err).WithField("key", key).Warn("rate limiter unavailable, allowing request")
			c.Next()
			return
		}

		count := incr.Val()
		remaining := int64(max) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", limit)
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > int64(max) {
			c.Header("Retry-After", strconv.Itoa(int(window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			return
		}
		c.Next()
	}
}

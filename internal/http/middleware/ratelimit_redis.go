package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"tasksync/internal/logger"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
)

var redisClient *redis.Client

// InitRedisRateLimiter initializes a shared Redis client used by the middleware.
// Provide addr (host:port), password and db index. If connection fails, redisClient remains nil
// and the middleware falls back to the in-process limiter.
func InitRedisRateLimiter(addr, password string, db int) bool {
	if addr == "" {
		return false
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unavailable, using in-process rate limiter", "addr", addr, "error", err)
		_ = client.Close()
		return false
	}
	redisClient = client
	return true
}

// CloseRedisRateLimiter releases the shared client.
func CloseRedisRateLimiter() {
	if redisClient != nil {
		_ = redisClient.Close()
		redisClient = nil
	}
}

// RateLimit is a fixed-window limiter keyed by client IP.
// key format: rl:<window_seconds>:<ip>
func RateLimit(maxRequests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit(c, "rl", c.ClientIP(), c.FullPath(), maxRequests, window)
	}
}

// UserRateLimit limits per authenticated user rather than per IP.
// Requires JWT middleware to run before this.
// key format: user_rl:<window_seconds>:<user_id>
func UserRateLimit(maxRequests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := c.Get("user_id")
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		id, ok := userID.(int64)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid user"})
			return
		}
		limit(c, "user_rl", strconv.FormatInt(id, 10), "user:"+c.FullPath(), maxRequests, window)
	}
}

func limit(c *gin.Context, prefix, ident, endpoint string, maxRequests int, window time.Duration) {
	key := prefix + ":" + strconv.FormatInt(int64(window.Seconds()), 10) + ":" + ident

	val, err := hit(c.Request.Context(), key, window)
	if err != nil {
		// on Redis error, fail-open (allow) but set header
		c.Header("X-RateLimit-Error", "redis-error")
		c.Next()
		return
	}

	c.Header("X-RateLimit-Limit", strconv.Itoa(maxRequests))
	c.Header("X-RateLimit-Remaining", strconv.FormatInt(max(0, int64(maxRequests)-val), 10))

	if val > int64(maxRequests) {
		RLBlocked.WithLabelValues(endpoint).Inc()
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":       "rate limit exceeded",
			"retry_after": int(window.Seconds()),
		})
		return
	}

	RLRequests.WithLabelValues(endpoint).Inc()
	c.Next()
}

func hit(ctx context.Context, key string, window time.Duration) (int64, error) {
	if redisClient == nil {
		return local.incr(key, window), nil
	}

	val, err := redisClient.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if val == 1 {
		// first increment, set expiry
		redisClient.Expire(ctx, key, window)
	}
	return val, nil
}

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// RedisPinger exposes the limiter's Redis connection to health checks.
// It returns nil while the in-process limiter is in use.
func RedisPinger() interface{ Ping(context.Context) error } {
	if redisClient == nil {
		return nil
	}
	return redisPinger{client: redisClient}
}

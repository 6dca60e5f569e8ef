// internal/middleware/rate_limit.go
package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/keymint/keymint-backend/internal/metrics"
)

// RateLimiter gates a route group by client address. With a Redis client it
// runs a fixed-window counter shared across processes; without one it falls
// back to a per-process token bucket, which is only correct for single
// instance deployments.
type RateLimiter struct {
	rdb    *redis.Client
	scope  string
	limit  int
	window time.Duration

	visitors map[string]*visitor
	mtx      sync.Mutex
	done     chan struct{}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewRateLimiter(rdb *redis.Client, scope string, perWindow int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		rdb:      rdb,
		scope:    scope,
		limit:    perWindow,
		window:   window,
		visitors: make(map[string]*visitor),
		done:     make(chan struct{}),
	}

	if rdb == nil {
		go rl.cleanupVisitors()
	}

	return rl
}

// Stop ends the fallback limiter's cleanup goroutine.
func (rl *RateLimiter) Stop() {
	close(rl.done)
}

func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		allowed := true
		if rl.rdb != nil {
			allowed = rl.allowShared(c, ip)
		} else {
			allowed = rl.getVisitor(ip).Allow()
		}

		if !allowed {
			metrics.RecordRateLimited(rl.scope)
			c.JSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"message": "Too many requests. Please try again later.",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// allowShared bumps the fixed-window counter in Redis. The key embeds the
// window start so stale windows expire on their own. On Redis failure the
// request is allowed: availability over strictness.
func (rl *RateLimiter) allowShared(c *gin.Context, ip string) bool {
	windowStart := time.Now().Unix() / int64(rl.window.Seconds())
	key := fmt.Sprintf("ratelimit:%s:%s:%d", rl.scope, ip, windowStart)

	pipe := rl.rdb.Pipeline()
	incr := pipe.Incr(c.Request.Context(), key)
	pipe.Expire(c.Request.Context(), key, rl.window)
	if _, err := pipe.Exec(c.Request.Context()); err != nil {
		logrus.WithError(err).Warn("rate limit counter unavailable, allowing request")
		return true
	}

	return incr.Val() <= int64(rl.limit)
}

func (rl *RateLimiter) cleanupVisitors() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.mtx.Lock()
			for ip, v := range rl.visitors {
				if time.Since(v.lastSeen) > 3*time.Minute {
					delete(rl.visitors, ip)
				}
			}
			rl.mtx.Unlock()
		}
	}
}

func (rl *RateLimiter) getVisitor(ip string) *rate.Limiter {
	rl.mtx.Lock()
	defer rl.mtx.Unlock()

	v, exists := rl.visitors[ip]
	if !exists {
		limiter := rate.NewLimiter(rate.Limit(float64(rl.limit)/rl.window.Seconds()), rl.limit)
		rl.visitors[ip] = &visitor{limiter, time.Now()}
		return limiter
	}

	v.lastSeen = time.Now()
	return v.limiter
}

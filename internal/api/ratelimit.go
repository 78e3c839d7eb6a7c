package api

import (
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// ──────────────────────────────────────────────────────────────────────
// Per-IP Token Bucket Rate Limiter
//
// Each IP gets its own rate.Limiter with a configurable refill rate and
// burst. When the bucket is empty the request receives HTTP 429 with a
// Retry-After header indicating when to try again.
//
// A background goroutine drops limiters that have been idle for more than
// cleanupIdleDuration so transient IPs do not accumulate.
// ──────────────────────────────────────────────────────────────────────

const cleanupIdleDuration = 10 * time.Minute

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter holds per-IP state.
type RateLimiter struct {
	limit      rate.Limit
	burst      int
	ratePerMin int
	mu         sync.Mutex
	limiters   map[string]*ipLimiter
	done       chan struct{}
	stopOnce   sync.Once
}

// NewRateLimiter creates a rate limiter allowing `ratePerMin` requests per
// minute per IP, with a burst capacity of `burst` requests.
func NewRateLimiter(ratePerMin, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	rl := &RateLimiter{
		limit:      rate.Limit(float64(ratePerMin) / 60.0),
		burst:      burst,
		ratePerMin: ratePerMin,
		limiters:   make(map[string]*ipLimiter),
		done:       make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Stop ends the cleanup goroutine.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
}

func (rl *RateLimiter) get(ip string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	l, ok := rl.limiters[ip]
	if !ok {
		l = &ipLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[ip] = l
	}
	l.lastSeen = now
	return l.limiter
}

func (rl *RateLimiter) allow(ip string) (bool, time.Duration) {
	now := time.Now()
	r := rl.get(ip, now).ReserveN(now, 1)
	if !r.OK() {
		return false, time.Duration(math.MaxInt64)
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// Middleware returns a Gin handler that enforces the rate limit.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		allowed, retryAfter := rl.allow(ip)
		if !allowed {
			c.Header("Retry-After", fmt.Sprintf("%d", int(math.Ceil(retryAfter.Seconds()))))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":      "Rate limit exceeded",
				"retryAfter": retryAfter.String(),
				"limit":      fmt.Sprintf("%d requests/minute per IP", rl.ratePerMin),
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// cleanupLoop removes stale IP limiters every cleanupIdleDuration.
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(cleanupIdleDuration)
	defer ticker.Stop()
	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
		}
		cutoff := time.Now().Add(-cleanupIdleDuration)
		rl.mu.Lock()
		for ip, l := range rl.limiters {
			if l.lastSeen.Before(cutoff) {
				delete(rl.limiters, ip)
			}
		}
		rl.mu.Unlock()
	}
}

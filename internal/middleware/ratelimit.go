package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/charlesng35/veloigp/pkg/errors"
	"github.com/charlesng35/veloigp/pkg/response"
)

// RateLimiter counts requests per (clientIP, route) within a fixed window.
// It is process-local.
type RateLimiter struct {
	max    int
	window time.Duration
	now    func() time.Time

	mu   sync.Mutex
	data map[string]*rateCounter
}

type rateCounter struct {
	count     int
	windowEnd time.Time
}

// NewRateLimiter builds a limiter; non-positive limits disable it.
func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		max:    maxRequests,
		window: window,
		now:    time.Now,
		data:   make(map[string]*rateCounter),
	}
}

// Allow increments the counter for key and reports whether the request fits
// in the window together with the remaining budget and reset delay.
func (l *RateLimiter) Allow(key string) (bool, int, time.Duration) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	ct, ok := l.data[key]
	if !ok || now.After(ct.windowEnd) {
		ct = &rateCounter{windowEnd: now.Add(l.window)}
		l.data[key] = ct
	}
	ct.count++
	return ct.count <= l.max, max(0, l.max-ct.count), ct.windowEnd.Sub(now)
}

// Sweep drops counters whose window ended.
func (l *RateLimiter) Sweep() int {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for k, v := range l.data {
		if now.After(v.windowEnd) {
			delete(l.data, k)
			removed++
		}
	}
	return removed
}

// Middleware enforces the limiter on every request.
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l.max <= 0 || l.window <= 0 {
			c.Next()
			return
		}

		allowed, remaining, resetIn := l.Allow(c.ClientIP() + "|" + c.FullPath())

		c.Header("X-RateLimit-Limit", strconv.Itoa(l.max))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.Itoa(int(resetIn.Seconds())))

		if !allowed {
			response.Error(c, apperrors.ErrRateLimit)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RateLimit is a shorthand for NewRateLimiter(...).Middleware().
func RateLimit(maxRequests int, window time.Duration) gin.HandlerFunc {
	return NewRateLimiter(maxRequests, window).Middleware()
}

package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/notihub/notihub/internal/apperrors"
)

// RateLimiter is a simple token bucket rate limiter, the same algorithm the
// reference bot middleware used per-chat-id, generalized here to any string key.
type RateLimiter struct {
	tokens     int
	maxTokens  int
	lastRefill time.Time
	refillRate time.Duration
	mu         sync.Mutex
}

func NewRateLimiter(maxTokens int, refillRate time.Duration) *RateLimiter {
	return &RateLimiter{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		lastRefill: time.Now(),
		refillRate: refillRate,
	}
}

// Allow reports whether a request is allowed right now, refilling tokens
// based on elapsed time since the last refill.
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(rl.lastRefill)
	if elapsed >= rl.refillRate {
		tokensToAdd := int(elapsed / rl.refillRate)
		rl.tokens = min(rl.maxTokens, rl.tokens+tokensToAdd)
		rl.lastRefill = now
	}

	if rl.tokens > 0 {
		rl.tokens--
		return true
	}
	return false
}

// RateLimitMiddleware keeps one RateLimiter per caller (the JWT subject, or
// the remote IP for unauthenticated/service routes).
type RateLimitMiddleware struct {
	limiters   map[string]*RateLimiter
	mu         sync.RWMutex
	maxTokens  int
	refillRate time.Duration
}

func NewRateLimitMiddleware(maxTokens int, refillRate time.Duration) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiters:   make(map[string]*RateLimiter),
		maxTokens:  maxTokens,
		refillRate: refillRate,
	}
}

// Handler returns the gin middleware function.
func (m *RateLimitMiddleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if caller, ok := CallerFromContext(c); ok && caller.Subject != "" {
			key = caller.Subject
		}

		if !m.getLimiter(key).Allow() {
			err := apperrors.NewRateLimitedError(m.refillRate)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, err)
			return
		}
		c.Next()
	}
}

func (m *RateLimitMiddleware) getLimiter(key string) *RateLimiter {
	m.mu.RLock()
	limiter, exists := m.limiters[key]
	m.mu.RUnlock()

	if !exists {
		m.mu.Lock()
		if limiter, exists = m.limiters[key]; !exists {
			limiter = NewRateLimiter(m.maxTokens, m.refillRate)
			m.limiters[key] = limiter
		}
		m.mu.Unlock()
	}
	return limiter
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

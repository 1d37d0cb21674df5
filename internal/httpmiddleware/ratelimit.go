package httpmiddleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimiter throttles requests per client IP with a refilling token
// budget. State is in-process only, so limits apply per instance.
type RateLimiter struct {
	perMinute float64
	burst     float64
	now       func() time.Time

	mu      sync.Mutex
	clients map[string]*clientBudget
}

type clientBudget struct {
	tokens float64
	seen   time.Time
}

// NewRateLimiter allows perMinute requests per client IP, with bursts up to
// the same size.
func NewRateLimiter(perMinute int) *RateLimiter {
	return &RateLimiter{
		perMinute: float64(perMinute),
		burst:     float64(perMinute),
		now:       time.Now,
		clients:   make(map[string]*clientBudget),
	}
}

// Middleware rejects over-budget requests with 429.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}
		if !rl.take(ip) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}

func (rl *RateLimiter) take(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.clients[ip]
	if !ok {
		b = &clientBudget{tokens: rl.burst}
		rl.clients[ip] = b
	} else {
		b.tokens += now.Sub(b.seen).Minutes() * rl.perMinute
		if b.tokens > rl.burst {
			b.tokens = rl.burst
		}
	}
	b.seen = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

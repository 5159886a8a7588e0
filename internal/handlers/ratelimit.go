package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

const maxTrackedClients = 10000

// ipLimiter hands out one token bucket per client IP. A non-positive
// per-minute budget disables limiting. Buckets idle for longer than it takes
// them to refill are dropped, and so are the least recently seen ones once
// maxTrackedClients is reached.
type ipLimiter struct {
	mu       sync.Mutex
	limiters *expirable.LRU[string, *rate.Limiter]
	every    rate.Limit
	burst    int
}

func newIPLimiter(perMinute int) *ipLimiter {
	return newIPLimiterSized(perMinute, maxTrackedClients, time.Minute)
}

func newIPLimiterSized(perMinute, size int, idle time.Duration) *ipLimiter {
	if perMinute <= 0 {
		return &ipLimiter{}
	}
	return &ipLimiter{
		limiters: expirable.NewLRU[string, *rate.Limiter](size, nil, idle),
		every:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
	}
}

func (l *ipLimiter) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters.Get(ip)
	if !ok {
		lim = rate.NewLimiter(l.every, l.burst)
	}
	// Add resets the idle timer.
	l.limiters.Add(ip, lim)
	return lim
}

func (l *ipLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l.burst == 0 {
			c.Next()
			return
		}
		if !l.get(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests, please slow down"})
			return
		}
		c.Next()
	}
}

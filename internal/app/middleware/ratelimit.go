package middleware

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-tourbook/internal/app/domain/auth"
)

// RateLimiter is a per-client sliding window. Clients are keyed by the
// authenticated user id, falling back to the remote IP.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientWindow
	logger  *zap.Logger
	now     func() time.Time

	maxRequests int
	window      time.Duration
	lastSweep   time.Time
}

type clientWindow struct {
	requests []time.Time
	lastSeen time.Time
}

func NewRateLimiter(logger *zap.Logger, maxRequests int, window time.Duration) *RateLimiter {
	if maxRequests < 1 {
		maxRequests = 1
	}
	return &RateLimiter{
		clients:     make(map[string]*clientWindow),
		logger:      logger,
		now:         time.Now,
		maxRequests: maxRequests,
		window:      window,
	}
}

func clientID(c *gin.Context) string {
	if id, ok := auth.UserIDFromContext(c); ok {
		return "user:" + id.String()
	}
	return "ip:" + c.ClientIP()
}

// sweep drops clients idle for two windows. Callers hold rl.mu.
func (rl *RateLimiter) sweep(now time.Time) {
	if now.Sub(rl.lastSweep) < rl.window*2 {
		return
	}
	for id, cw := range rl.clients {
		if now.Sub(cw.lastSeen) > rl.window*2 {
			delete(rl.clients, id)
		}
	}
	rl.lastSweep = now
}

// Allow records the request and reports whether it fits in the window, plus
// how long the client should wait when it does not.
func (rl *RateLimiter) Allow(id string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.sweep(now)

	cw, ok := rl.clients[id]
	if !ok {
		cw = &clientWindow{requests: make([]time.Time, 0, rl.maxRequests)}
		rl.clients[id] = cw
	}
	cw.lastSeen = now

	cutoff := now.Add(-rl.window)
	valid := cw.requests[:0]
	for _, t := range cw.requests {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	cw.requests = valid

	if len(cw.requests) >= rl.maxRequests {
		return false, cw.requests[0].Add(rl.window).Sub(now)
	}
	cw.requests = append(cw.requests, now)
	return true, 0
}

// RateLimitMiddleware answers 429 once a client exceeds the limit.
func RateLimitMiddleware(rl *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := clientID(c)
		ok, retryAfter := rl.Allow(id)
		if !ok {
			rl.logger.Warn("Rate limit exceeded",
				zap.String("client_id", id),
				zap.String("path", c.FullPath()),
				zap.Int("max_requests", rl.maxRequests),
				zap.Duration("window", rl.window))
			secs := int(math.Ceil(retryAfter.Seconds()))
			c.Header("Retry-After", strconv.Itoa(secs))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": fmt.Sprintf("rate limit exceeded, retry in %ds", secs),
			})
			return
		}
		c.Next()
	}
}

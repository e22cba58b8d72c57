package main

import (
	"strings"
	"sync"
	"time"

	rl "github.com/bsm/ratelimit"
)

// ClientRateLimiter enforces a per-client query rate limit at the
// server front-end, adapted from the teacher's per-question
// QueryCache rate limiting into a standalone per-client limiter (there
// being no answer cache to hang it off of here).
type ClientRateLimiter struct {
	mu    sync.Mutex
	byIP  map[string]*rl.RateLimiter
	limit int
}

// NewClientRateLimiter returns a limiter allowing up to limit queries
// per second per client IP. A limit of 0 disables rate limiting.
func NewClientRateLimiter(limit int) *ClientRateLimiter {
	return &ClientRateLimiter{byIP: make(map[string]*rl.RateLimiter), limit: limit}
}

// Allow reports whether a query from clientIP is within its rate
// limit, creating that client's limiter on first use.
func (c *ClientRateLimiter) Allow(clientIP string) bool {
	if c.limit <= 0 {
		return true
	}

	key := strings.ToLower(clientIP)

	c.mu.Lock()
	limiter, ok := c.byIP[key]
	if !ok {
		limiter = rl.New(c.limit, time.Second)
		c.byIP[key] = limiter
	}
	c.mu.Unlock()

	return !limiter.Limit()
}

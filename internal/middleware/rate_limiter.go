package middleware

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter controls how frequently a caller may perform an action.
type RateLimiter interface {
	Allow(key string) bool
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ipRateLimiter keeps a token bucket per key, typically a scope:IP pair from
// the HTTP layer. Idle entries are collected after ttl so the map does not
// grow with every address that ever hit the service.
type ipRateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*client
	limit    rate.Limit
	burst    int
	ttl      time.Duration
	now      func() time.Time
}

// NewIPRateLimiter allows up to requests events per window for each key, with
// extra burst capacity on top. Non-positive arguments fall back to safe
// minimums rather than panicking.
func NewIPRateLimiter(requests int, window time.Duration, burst int, ttl time.Duration) RateLimiter {
	if requests <= 0 {
		requests = 1
	}
	if window <= 0 {
		window = time.Second
	}
	if burst <= 0 {
		burst = 1
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &ipRateLimiter{
		visitors: make(map[string]*client),
		limit:    rate.Every(window / time.Duration(requests)),
		burst:    burst,
		ttl:      ttl,
		now:      time.Now,
	}
}

func (l *ipRateLimiter) Allow(key string) bool {
	if key == "" {
		key = "unknown"
	}

	now := l.now()

	l.mu.Lock()
	c, ok := l.visitors[key]
	if !ok {
		c = &client{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[key] = c
	}
	c.lastSeen = now
	l.collectLocked(now)
	l.mu.Unlock()

	return c.limiter.Allow()
}

func (l *ipRateLimiter) collectLocked(now time.Time) {
	for key, c := range l.visitors {
		if now.Sub(c.lastSeen) > l.ttl {
			delete(l.visitors, key)
		}
	}
}

// WithNowFunc overrides the time source, for tests.
func (l *ipRateLimiter) WithNowFunc(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

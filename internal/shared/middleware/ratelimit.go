package middleware

import (
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Idle callers are swept once the map crosses the threshold, so memory stays
// bounded without a background goroutine to manage.
const (
	sweepThreshold = 1024
	idleExpiry     = 10 * time.Minute
)

type callerLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter enforces a per-caller request budget. Callers are keyed by
// authenticated user ID when available, otherwise by remote address.
type RateLimiter struct {
	mu        sync.Mutex
	callers   map[string]*callerLimiter
	perMinute int
}

func NewRateLimiter(perMinute int) *RateLimiter {
	return &RateLimiter{
		callers:   make(map[string]*callerLimiter),
		perMinute: perMinute,
	}
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if len(rl.callers) >= sweepThreshold {
		rl.sweepLocked(time.Now().Add(-idleExpiry))
	}

	c, ok := rl.callers[key]
	if !ok {
		c = &callerLimiter{
			limiter: rate.NewLimiter(rate.Limit(float64(rl.perMinute)/60.0), rl.perMinute),
		}
		rl.callers[key] = c
	}
	c.lastSeen = time.Now()
	return c.limiter
}

// sweepLocked drops callers not seen since cutoff. Dropping an active
// caller is harmless: they restart with a full bucket. Caller holds rl.mu.
func (rl *RateLimiter) sweepLocked(cutoff time.Time) {
	for key, c := range rl.callers {
		if c.lastSeen.Before(cutoff) {
			delete(rl.callers, key)
		}
	}
}

// Allow reports whether the caller identified by key may proceed.
func (rl *RateLimiter) Allow(key string) bool {
	return rl.limiter(key).Allow()
}

// Middleware rejects requests over the budget with 429.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := callerKey(r)
		if !rl.Allow(key) {
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func callerKey(r *http.Request) string {
	if userID, ok := UserID(r.Context()); ok {
		return fmt.Sprintf("user:%d", userID)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

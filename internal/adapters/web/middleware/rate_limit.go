package middleware

import (
	"net/http"
	"sync"
	"time"
)

// RateLimiter enforces a per-client sliding window. The login endpoint
// sits behind it to slow credential guessing.
type RateLimiter struct {
	mu     sync.Mutex
	hits   map[string][]time.Time
	limit  int
	window time.Duration

	now func() time.Time
}

// NewRateLimiter allows at most limit requests per client within window.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		hits:   make(map[string][]time.Time),
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Allow records a hit for the client and reports whether it fits the
// window. Stale entries for the client are dropped on each call, so no
// background sweeper is needed.
func (rl *RateLimiter) Allow(client string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.window)
	kept := rl.hits[client][:0]
	for _, t := range rl.hits[client] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) >= rl.limit {
		rl.hits[client] = kept
		return false
	}
	rl.hits[client] = append(kept, rl.now())
	return true
}

// RateLimitMiddleware rejects over-limit requests with 429, keyed by
// remote address.
func RateLimitMiddleware(limiter *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(r.RemoteAddr) {
				http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

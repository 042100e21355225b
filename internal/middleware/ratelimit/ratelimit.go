// Package ratelimit implements a fixed-window limiter keyed by an arbitrary
// string (client IP for HTTP routes, sender id for chat commands).
package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"
)

type Limiter struct {
	mu      sync.Mutex
	clients map[string]*window
	now     func() time.Time

	limit  int
	period time.Duration
}

type window struct {
	start time.Time
	count int
}

// Config holds rate limiter configuration
type Config struct {
	// Limit is the number of events allowed per Period. Zero or less disables limiting.
	Limit  int
	Period time.Duration
}

func NewLimiter(config Config) *Limiter {
	if config.Period <= 0 {
		config.Period = time.Minute
	}
	return &Limiter{
		clients: make(map[string]*window),
		now:     time.Now,
		limit:   config.Limit,
		period:  config.Period,
	}
}

// Allow records one event for key and reports whether it is within the limit.
func (rl *Limiter) Allow(key string) bool {
	if rl.limit <= 0 {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w, ok := rl.clients[key]
	if !ok || now.Sub(w.start) >= rl.period {
		rl.clients[key] = &window{start: now, count: 1}
		return true
	}

	w.count++
	return w.count <= rl.limit
}

// Cleanup forgets keys whose window ended, returning how many were removed.
func (rl *Limiter) Cleanup() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	removed := 0
	for key, w := range rl.clients {
		if now.Sub(w.start) >= rl.period {
			delete(rl.clients, key)
			removed++
		}
	}
	return removed
}

// ActiveClients returns the number of currently tracked keys
func (rl *Limiter) ActiveClients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// Run calls Cleanup every interval until ctx ends.
func (rl *Limiter) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			rl.Cleanup()
		}
	}
}

// Middleware rejects requests over the limit with 429.
func (rl *Limiter) Middleware(extractKey func(*http.Request) string) func(http.Handler) http.Handler {
	retryAfter := strconv.Itoa(int(rl.period.Seconds()))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.Allow(extractKey(r)) {
				w.Header().Set("Retry-After", retryAfter)
				http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

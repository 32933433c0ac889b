package common

import (
	"log"
	"strconv"
	"sync"
	"time"
)

// RateLimiter tracks request-weight usage reported by the exchange.
type RateLimiter struct {
	mu       sync.RWMutex
	used     int
	limit    int
	windowAt time.Time
	window   time.Duration
	warned80 bool
}

// NewRateLimiter creates a tracker for a weight budget over a window
// (1200/min for Binance spot).
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{limit: limit, window: window, windowAt: time.Now()}
}

// UpdateFromHeader records the used weight from the venue's response header.
func (rl *RateLimiter) UpdateFromHeader(headerValue string) {
	if headerValue == "" {
		return
	}
	weight, err := strconv.Atoi(headerValue)
	if err != nil {
		return
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if time.Since(rl.windowAt) >= rl.window {
		rl.used = 0
		rl.windowAt = time.Now()
		rl.warned80 = false
	}
	rl.used = weight

	pct := float64(rl.used) / float64(rl.limit) * 100
	switch {
	case pct >= 95:
		log.Printf("ratelimit: critical %d/%d (%.1f%%), approaching ban threshold", rl.used, rl.limit, pct)
	case pct >= 80 && !rl.warned80:
		log.Printf("ratelimit: warning %d/%d (%.1f%%)", rl.used, rl.limit, pct)
		rl.warned80 = true
	}
}

// Usage returns the current weight usage within the active window.
func (rl *RateLimiter) Usage() (used, limit int, pct float64) {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	if time.Since(rl.windowAt) >= rl.window {
		return 0, rl.limit, 0
	}
	return rl.used, rl.limit, float64(rl.used) / float64(rl.limit) * 100
}

// ShouldDelay reports whether the next request should back off.
func (rl *RateLimiter) ShouldDelay() bool {
	_, _, pct := rl.Usage()
	return pct >= 90
}

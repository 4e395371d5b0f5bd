package router

import (
	"sync"
	"time"
)

// RateLimiter caps inbound events per connection in a one-minute window.
type RateLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	clients map[string]*clientLimit
	now     func() time.Time
}

type clientLimit struct {
	count       int
	windowStart time.Time
}

// NewRateLimiter allows limit events per minute per connection. A limit
// of zero or less disables limiting.
func NewRateLimiter(limit int) *RateLimiter {
	return &RateLimiter{
		limit:   limit,
		window:  time.Minute,
		clients: make(map[string]*clientLimit),
		now:     time.Now,
	}
}

// Allow counts one event for connID and reports whether it fits.
func (rl *RateLimiter) Allow(connID string) bool {
	if rl.limit <= 0 {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	c, ok := rl.clients[connID]
	if !ok || now.Sub(c.windowStart) >= rl.window {
		rl.clients[connID] = &clientLimit{count: 1, windowStart: now}
		return true
	}
	if c.count >= rl.limit {
		return false
	}
	c.count++
	return true
}

// Forget drops connID's window.
func (rl *RateLimiter) Forget(connID string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.clients, connID)
}

// Cleanup removes windows idle for five minutes or more.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for id, c := range rl.clients {
		if now.Sub(c.windowStart) > 5*rl.window {
			delete(rl.clients, id)
		}
	}
}

// Tracked reports how many connections currently hold a window.
func (rl *RateLimiter) Tracked() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config interface for rate limiting configuration
type Config interface {
	GetDisableRateLimit() bool
	GetRateLimitRPS() float64
	GetRateLimitBurst() int
}

// RateLimitResult contains the result of a rate limit check
type RateLimitResult struct {
	ShouldBlock   bool
	RemainingTime time.Duration
	Reason        string
}

type clientEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ClientLimiter keeps one token bucket per client so a single phone uploading in a
// loop cannot starve the OCR engine for everyone else
type ClientLimiter struct {
	cfg     Config
	mu      sync.Mutex
	clients map[string]*clientEntry
	now     func() time.Time
}

// NewClientLimiter creates a per-client limiter
func NewClientLimiter(cfg Config) *ClientLimiter {
	return &ClientLimiter{
		cfg:     cfg,
		clients: make(map[string]*clientEntry),
		now:     time.Now,
	}
}

// Check consumes one token for client, or reports how long until one is available
func (l *ClientLimiter) Check(client string) RateLimitResult {
	if l.cfg.GetDisableRateLimit() {
		return RateLimitResult{
			ShouldBlock: false,
			Reason:      "rate_limiting_disabled",
		}
	}

	now := l.now()
	limiter := l.limiterFor(client, now)

	reservation := limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return RateLimitResult{
			ShouldBlock: true,
			Reason:      "burst_exceeded",
		}
	}

	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return RateLimitResult{
			ShouldBlock:   true,
			RemainingTime: delay,
			Reason:        "rate_limit_active",
		}
	}

	return RateLimitResult{
		ShouldBlock: false,
		Reason:      "rate_limit_passed",
	}
}

func (l *ClientLimiter) limiterFor(client string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.clients[client]
	if !ok {
		entry = &clientEntry{
			limiter: rate.NewLimiter(rate.Limit(l.cfg.GetRateLimitRPS()), l.cfg.GetRateLimitBurst()),
		}
		l.clients[client] = entry
	}
	entry.lastSeen = now
	return entry.limiter
}

// Prune forgets clients not seen within idle and returns how many were removed
func (l *ClientLimiter) Prune(idle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-idle)
	removed := 0
	for client, entry := range l.clients {
		if entry.lastSeen.Before(cutoff) {
			delete(l.clients, client)
			removed++
		}
	}
	return removed
}

// Size returns the number of tracked clients
func (l *ClientLimiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

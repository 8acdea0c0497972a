package webhook

import (
	"sync"
	"time"
)

// rateLimitWindow is the fixed accounting window for per-client limits.
const rateLimitWindow = time.Minute

// RateLimiter bounds validation attempts per client key per time window.
// State is provider-scoped: each validator owns its limiter, so one
// provider's traffic cannot exhaust another's quota.
type RateLimiter interface {
	// Allow accounts one attempt for key and reports whether it is within
	// the window's budget.
	Allow(key string) (bool, error)
}

type rateWindow struct {
	start time.Time
	count int
}

// fixedWindowLimiter is a mutex-guarded fixed-window counter. Windows reset
// when they elapse; stale keys are swept lazily so memory stays bounded
// under sustained traffic.
type fixedWindowLimiter struct {
	mu        sync.Mutex
	limit     int
	windows   map[string]*rateWindow
	lastSweep time.Time
	clock     func() time.Time
}

// NewFixedWindowLimiter creates an in-process limiter allowing limit
// requests per client key per minute.
func NewFixedWindowLimiter(limit int) RateLimiter {
	return newFixedWindowLimiter(limit, time.Now)
}

func newFixedWindowLimiter(limit int, clock func() time.Time) *fixedWindowLimiter {
	return &fixedWindowLimiter{
		limit:     limit,
		windows:   make(map[string]*rateWindow),
		lastSweep: clock(),
		clock:     clock,
	}
}

func (l *fixedWindowLimiter) Allow(key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if now.Sub(l.lastSweep) >= rateLimitWindow {
		l.sweep(now)
	}

	w, exists := l.windows[key]
	if !exists || now.Sub(w.start) >= rateLimitWindow {
		l.windows[key] = &rateWindow{start: now, count: 1}
		return true, nil
	}

	w.count++
	return w.count <= l.limit, nil
}

func (l *fixedWindowLimiter) sweep(now time.Time) {
	cutoff := now.Add(-rateLimitWindow)
	for key, w := range l.windows {
		if w.start.Before(cutoff) {
			delete(l.windows, key)
		}
	}
	l.lastSweep = now
}

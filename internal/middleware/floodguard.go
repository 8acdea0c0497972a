package middleware

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// FloodGuard is a server-wide token-bucket limiter keyed per remote IP. It
// sheds abusive traffic before any provider validation work happens; the
// per-provider fixed-window accounting stays with the validators.
type FloodGuard struct {
	mu          sync.Mutex
	limiters    map[string]*floodEntry
	rps         rate.Limit
	burst       int
	lastCleanup time.Time
}

type floodEntry struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

const floodCleanupPeriod = 10 * time.Minute

// NewFloodGuard creates a flood guard allowing rps requests per second with
// the given burst per remote IP.
func NewFloodGuard(rps, burst int) *FloodGuard {
	return &FloodGuard{
		limiters:    make(map[string]*floodEntry),
		rps:         rate.Limit(rps),
		burst:       burst,
		lastCleanup: time.Now(),
	}
}

// Middleware rejects requests over the per-IP budget with 429.
func (g *FloodGuard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.allow(clientIP(r)) {
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (g *FloodGuard) allow(ip string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	if now.Sub(g.lastCleanup) > floodCleanupPeriod {
		g.cleanup(now)
	}

	entry, exists := g.limiters[ip]
	if !exists {
		entry = &floodEntry{limiter: rate.NewLimiter(g.rps, g.burst)}
		g.limiters[ip] = entry
	}
	entry.lastUsed = now

	return entry.limiter.Allow()
}

func (g *FloodGuard) cleanup(now time.Time) {
	cutoff := now.Add(-floodCleanupPeriod)
	for ip, entry := range g.limiters {
		if entry.lastUsed.Before(cutoff) {
			delete(g.limiters, ip)
		}
	}
	g.lastCleanup = now
}

// clientIP resolves the caller's address from forwarding headers, falling
// back to the connection's remote address.
func clientIP(r *http.Request) string {
	ip := r.Header.Get("X-Forwarded-For")
	if idx := strings.Index(ip, ","); idx >= 0 {
		ip = ip[:idx]
	}
	ip = strings.TrimSpace(ip)
	if ip == "" {
		ip = r.Header.Get("X-Real-IP")
	}
	if ip == "" {
		ip = r.RemoteAddr
	}
	return ip
}

package webhook

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// ReplayGuard detects exact re-submission of a previously accepted request.
type ReplayGuard interface {
	// FirstSeen records fingerprint and reports whether this is its first
	// appearance within the retention window.
	FirstSeen(fingerprint string) (bool, error)
}

// fingerprint derives the deterministic replay key for a request. Reusing
// the signature instead of re-hashing the body alone is deliberate: an
// attacker who can forge a fresh signature for identical content has
// already broken the crypto.
func fingerprint(providerID, signature, body string) string {
	h := sha256.New()
	h.Write([]byte(providerID))
	h.Write([]byte("|"))
	h.Write([]byte(signature))
	h.Write([]byte("|"))
	h.Write([]byte(body))
	return hex.EncodeToString(h.Sum(nil))
}

// memoryReplayGuard is a mutex-guarded TTL map with lazy sweeping. Memory
// stays bounded by the number of distinct requests per retention window;
// anything older could not pass timestamp validation anyway.
type memoryReplayGuard struct {
	mu         sync.Mutex
	entries    map[string]time.Time
	ttl        time.Duration
	lastSweep  time.Time
	sweepEvery time.Duration
	clock      func() time.Time
}

// NewMemoryReplayGuard creates an in-process replay guard retaining
// fingerprints for ttl.
func NewMemoryReplayGuard(ttl time.Duration) ReplayGuard {
	return newMemoryReplayGuard(ttl, time.Now)
}

func newMemoryReplayGuard(ttl time.Duration, clock func() time.Time) *memoryReplayGuard {
	if ttl <= 0 {
		ttl = 2 * DefaultTolerance
	}

	return &memoryReplayGuard{
		entries:    make(map[string]time.Time),
		ttl:        ttl,
		lastSweep:  clock(),
		sweepEvery: time.Minute,
		clock:      clock,
	}
}

func (g *memoryReplayGuard) FirstSeen(fp string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock()
	if now.Sub(g.lastSweep) >= g.sweepEvery {
		g.sweep(now)
	}

	if firstSeenAt, exists := g.entries[fp]; exists {
		if now.Sub(firstSeenAt) <= g.ttl {
			return false, nil
		}
		// Expired entry; treat as unseen.
	}

	g.entries[fp] = now
	return true, nil
}

func (g *memoryReplayGuard) sweep(now time.Time) {
	cutoff := now.Add(-g.ttl)
	for fp, firstSeenAt := range g.entries {
		if firstSeenAt.Before(cutoff) {
			delete(g.entries, fp)
		}
	}
	g.lastSweep = now
}

package webhook

import (
	"context"
	"time"

	"webhook-gatekeeper/internal/common/errors"
)

// Store is the minimal backend surface the distributed guards need. It is
// satisfied by the redis client so deployments spanning several ingress
// instances share replay and rate-limit state.
type Store interface {
	// RegisterFingerprint atomically records a fingerprint with a TTL and
	// reports whether it was newly inserted.
	RegisterFingerprint(ctx context.Context, fingerprint string, ttl time.Duration) (bool, error)

	// IncrementWindow increments the fixed-window counter for key,
	// starting a window with the given length on first increment, and
	// returns the new count.
	IncrementWindow(ctx context.Context, key string, window time.Duration) (int, error)
}

const storeOpTimeout = 5 * time.Second

// distributedReplayGuard keys fingerprints into the shared store under a
// per-provider prefix. The store's TTL handling replaces local sweeping.
type distributedReplayGuard struct {
	store  Store
	prefix string
	ttl    time.Duration
}

// NewDistributedReplayGuard creates a replay guard backed by a shared store.
func NewDistributedReplayGuard(store Store, providerID string, ttl time.Duration) (ReplayGuard, error) {
	if store == nil {
		return nil, errors.ConfigError("store is required for distributed replay guard")
	}

	if ttl <= 0 {
		ttl = 2 * DefaultTolerance
	}

	return &distributedReplayGuard{
		store:  store,
		prefix: "replay:" + providerID + ":",
		ttl:    ttl,
	}, nil
}

func (g *distributedReplayGuard) FirstSeen(fp string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), storeOpTimeout)
	defer cancel()

	inserted, err := g.store.RegisterFingerprint(ctx, g.prefix+fp, g.ttl)
	if err != nil {
		return false, errors.ConnectionError("replay store lookup failed", err)
	}

	return inserted, nil
}

// distributedRateLimiter counts attempts in the shared store using one
// fixed window per client key.
type distributedRateLimiter struct {
	store  Store
	prefix string
	limit  int
}

// NewDistributedRateLimiter creates a fixed-window limiter backed by a
// shared store, allowing limit requests per client key per minute.
func NewDistributedRateLimiter(store Store, providerID string, limit int) (RateLimiter, error) {
	if store == nil {
		return nil, errors.ConfigError("store is required for distributed rate limiter")
	}

	return &distributedRateLimiter{
		store:  store,
		prefix: "rate:" + providerID + ":",
		limit:  limit,
	}, nil
}

func (l *distributedRateLimiter) Allow(key string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), storeOpTimeout)
	defer cancel()

	count, err := l.store.IncrementWindow(ctx, l.prefix+key, rateLimitWindow)
	if err != nil {
		return false, errors.ConnectionError("rate limit store update failed", err)
	}

	return count <= l.limit, nil
}

// Package webhook decides whether an inbound HTTP callback claiming to
// originate from a configured external provider is authentic, fresh, not a
// replay, and within the caller's allowed request rate.
//
// The package is the only authority on webhook authenticity: it owns the
// per-provider signature schemes, the clock-skew rule, the replay
// fingerprint cache, and the per-client rate accounting. It never parses
// payload semantics and never performs blocking I/O on the in-memory path;
// every call is synchronous end-to-end.
//
// Failures are never raised as Go errors across the public boundary. Every
// outcome is a Result whose Err string comes from a fixed vocabulary:
// "Missing signature", "Missing timestamp", "Timestamp outside tolerance",
// "Invalid <Provider> signature", "replay attack detected" and
// "Rate limit exceeded".
package webhook

import (
	"time"

	"webhook-gatekeeper/internal/common/errors"
	"webhook-gatekeeper/internal/common/logging"
)

// Validator is the single public entry point for one provider. It composes
// the leaf components; none of them know about each other, and the
// validator is the only place with ordering logic.
type Validator struct {
	cfg     ProviderConfig
	signer  signer
	replays ReplayGuard
	limiter RateLimiter
	logger  logging.Logger
	clock   func() time.Time
}

// New creates a validator with in-process replay and rate-limit state.
func New(cfg ProviderConfig, logger logging.Logger) (*Validator, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return newValidator(
		cfg,
		NewMemoryReplayGuard(2*cfg.Tolerance),
		NewFixedWindowLimiter(cfg.MaxRequestsPerMinute),
		logger,
	)
}

// NewWithStore creates a validator whose replay and rate-limit state lives
// in a shared store, so several ingress instances agree on duplicates and
// quotas.
func NewWithStore(cfg ProviderConfig, store Store, logger logging.Logger) (*Validator, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	replays, err := NewDistributedReplayGuard(store, cfg.ProviderID, 2*cfg.Tolerance)
	if err != nil {
		return nil, err
	}

	limiter, err := NewDistributedRateLimiter(store, cfg.ProviderID, cfg.MaxRequestsPerMinute)
	if err != nil {
		return nil, err
	}

	return newValidator(cfg, replays, limiter, logger)
}

func newValidator(cfg ProviderConfig, replays ReplayGuard, limiter RateLimiter, logger logging.Logger) (*Validator, error) {
	s := signerFor(cfg.Scheme)
	if s == nil {
		return nil, errors.ValidationError("unsupported signature scheme: " + string(cfg.Scheme))
	}

	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	return &Validator{
		cfg:     cfg,
		signer:  s,
		replays: replays,
		limiter: limiter,
		logger:  logger.WithFields(logging.String("provider", cfg.ProviderID)),
		clock:   time.Now,
	}, nil
}

// Provider returns the provider id this validator is configured for.
func (v *Validator) Provider() string {
	return v.cfg.ProviderID
}

// Validate runs the full check sequence against req and returns the
// decision. Checks short-circuit on first failure; Metadata reflects only
// what was actually evaluated.
func (v *Validator) Validate(req *Request) Result {
	var md Metadata

	sigHeader := req.Header(v.cfg.SignatureHeader)
	if sigHeader == "" {
		v.logger.Debug("Rejected webhook without signature header",
			logging.String("header", v.cfg.SignatureHeader),
		)
		return failure(MsgMissingSignature, md)
	}

	ts, hasTimestamp, err := v.signer.timestamp(req, &v.cfg, sigHeader)
	if err != nil {
		v.logger.Debug("Rejected webhook with unusable timestamp", logging.Err(err))
		return failure(err.Error(), md)
	}

	if hasTimestamp {
		if err := checkFreshness(v.clock(), ts, v.cfg.Tolerance); err != nil {
			v.logger.Debug("Rejected stale webhook",
				logging.Int64("timestamp", ts),
				logging.Duration("tolerance", v.cfg.Tolerance),
			)
			return failure(err.Error(), md)
		}
	}

	if err := v.signer.verify(req, &v.cfg, sigHeader); err != nil {
		v.logger.Warn("Rejected webhook with invalid signature",
			logging.String("scheme", string(v.cfg.Scheme)),
		)
		return failure(err.Error(), md)
	}
	md.SignatureValid = true

	// Replay runs only after the signature is proven valid, so replay
	// rejections cannot be used to probe for valid signatures blindly.
	first, err := v.replays.FirstSeen(fingerprint(v.cfg.ProviderID, sigHeader, req.Body))
	if err != nil {
		// Backend trouble must not turn valid traffic away; the request
		// proceeds without replay protection and the metadata says so.
		v.logger.Error("Replay guard unavailable, continuing without it", err)
	} else if !first {
		v.logger.Warn("Rejected replayed webhook")
		return failure(MsgReplayDetected, md)
	} else {
		md.ReplayProtected = true
	}

	clientKey := ClientKey(req)
	allowed, err := v.limiter.Allow(clientKey)
	if err != nil {
		v.logger.Error("Rate limiter unavailable, continuing without it", err)
	} else if !allowed {
		md.RateLimited = true
		v.logger.Warn("Rejected webhook over rate limit",
			logging.String("client", clientKey),
			logging.Int("limit", v.cfg.MaxRequestsPerMinute),
		)
		return failure(MsgRateLimited, md)
	}

	return Result{Valid: true, Metadata: md}
}

// Registry holds one validator per configured provider. It is immutable
// after construction and safe for concurrent use.
type Registry struct {
	validators map[string]*Validator
}

// NewRegistry builds validators for every provider config. A nil store
// selects the in-process replay and rate-limit state.
func NewRegistry(cfgs []ProviderConfig, store Store, logger logging.Logger) (*Registry, error) {
	validators := make(map[string]*Validator, len(cfgs))

	for _, cfg := range cfgs {
		var (
			v   *Validator
			err error
		)
		if store != nil {
			v, err = NewWithStore(cfg, store, logger)
		} else {
			v, err = New(cfg, logger)
		}
		if err != nil {
			return nil, err
		}
		validators[v.Provider()] = v
	}

	return &Registry{validators: validators}, nil
}

// Get returns the validator for providerID.
func (r *Registry) Get(providerID string) (*Validator, bool) {
	v, ok := r.validators[providerID]
	return v, ok
}

// Providers lists the configured provider ids.
func (r *Registry) Providers() []string {
	ids := make([]string, 0, len(r.validators))
	for id := range r.validators {
		ids = append(ids, id)
	}
	return ids
}

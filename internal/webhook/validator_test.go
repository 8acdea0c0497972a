package webhook

import (
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webhook-gatekeeper/internal/common/logging"
	goredis "webhook-gatekeeper/internal/redis"
)

func quietLogger(t *testing.T) logging.Logger {
	t.Helper()
	logger, err := logging.NewZapLogger(logging.LogConfig{Level: logging.ErrorLevel, Output: io.Discard})
	require.NoError(t, err)
	return logger
}

func stripeConfig() ProviderConfig {
	cfg := ProviderConfig{
		ProviderID:           "stripe",
		Secret:               []byte("whsec_test"),
		SignatureHeader:      "Stripe-Signature",
		Scheme:               SchemeStripeV1,
		MaxRequestsPerMinute: 100,
	}
	cfg.SetDefaults()
	return cfg
}

func genericConfig() ProviderConfig {
	cfg := ProviderConfig{
		ProviderID:           "generic",
		Secret:               []byte("shared_secret"),
		SignatureHeader:      "X-Webhook-Signature",
		TimestampHeader:      "X-Webhook-Timestamp",
		Scheme:               SchemeHMACSHA256Hex,
		MaxRequestsPerMinute: 100,
	}
	cfg.SetDefaults()
	return cfg
}

func twilioConfig() ProviderConfig {
	cfg := ProviderConfig{
		ProviderID:           "twilio",
		Secret:               []byte("auth_token"),
		SignatureHeader:      "X-Twilio-Signature",
		Scheme:               SchemeHMACSHA1Base64,
		MaxRequestsPerMinute: 100,
	}
	cfg.SetDefaults()
	return cfg
}

// newTestValidator assembles a validator with in-memory state driven by a
// controllable clock.
func newTestValidator(t *testing.T, cfg ProviderConfig, clock *fakeClock) *Validator {
	t.Helper()
	require.NoError(t, cfg.Validate())

	v, err := newValidator(
		cfg,
		newMemoryReplayGuard(2*cfg.Tolerance, clock.Now),
		newFixedWindowLimiter(cfg.MaxRequestsPerMinute, clock.Now),
		quietLogger(t),
	)
	require.NoError(t, err)
	v.clock = clock.Now
	return v
}

func stripeRequest(clock *fakeClock, body string) *Request {
	return &Request{
		Body:   body,
		Method: "POST",
		URL:    "https://example.com/webhook/stripe",
		Headers: map[string]string{
			"Stripe-Signature": stripeHeader([]byte("whsec_test"), body, clock.Now().Unix()),
		},
	}
}

func TestValidateStripeHappyPath(t *testing.T) {
	clock := newFakeClock()
	v := newTestValidator(t, stripeConfig(), clock)

	res := v.Validate(stripeRequest(clock, `{"id":"evt_1"}`))

	assert.True(t, res.Valid)
	assert.Empty(t, res.Err)
	assert.Equal(t, Metadata{SignatureValid: true, ReplayProtected: true, RateLimited: false}, res.Metadata)
}

func TestValidateMissingSignature(t *testing.T) {
	clock := newFakeClock()
	v := newTestValidator(t, stripeConfig(), clock)

	res := v.Validate(&Request{Body: "{}", Headers: map[string]string{}})

	assert.False(t, res.Valid)
	assert.Equal(t, MsgMissingSignature, res.Err)
	assert.Equal(t, Metadata{}, res.Metadata, "nothing was checked")
}

func TestValidateMissingTimestamp(t *testing.T) {
	clock := newFakeClock()
	cfg := genericConfig()
	v := newTestValidator(t, cfg, clock)

	body := `{"event":"ping"}`
	req := &Request{
		Body: body,
		Headers: map[string]string{
			"X-Webhook-Signature": hmacSHA256Hex(cfg.Secret, body),
		},
	}

	res := v.Validate(req)
	assert.False(t, res.Valid)
	assert.Equal(t, MsgMissingTimestamp, res.Err)
	assert.False(t, res.Metadata.SignatureValid, "timestamp is checked before the signature")
}

func TestValidateTimestampTolerance(t *testing.T) {
	clock := newFakeClock()
	cfg := stripeConfig()
	v := newTestValidator(t, cfg, clock)
	body := `{"id":"evt_2"}`

	sign := func(age time.Duration) *Request {
		ts := clock.Now().Add(-age).Unix()
		return &Request{
			Body: body,
			Headers: map[string]string{
				"Stripe-Signature": stripeHeader(cfg.Secret, body, ts),
			},
		}
	}

	t.Run("exactly at tolerance is accepted", func(t *testing.T) {
		res := v.Validate(sign(cfg.Tolerance))
		assert.True(t, res.Valid, res.Err)
	})

	t.Run("one second past tolerance is rejected", func(t *testing.T) {
		res := v.Validate(sign(cfg.Tolerance + time.Second))
		assert.False(t, res.Valid)
		assert.Equal(t, MsgStaleTimestamp, res.Err)
		assert.False(t, res.Metadata.SignatureValid)
	})

	t.Run("future-dated past tolerance is rejected", func(t *testing.T) {
		res := v.Validate(sign(-(cfg.Tolerance + time.Second)))
		assert.False(t, res.Valid)
		assert.Equal(t, MsgStaleTimestamp, res.Err)
	})
}

func TestValidateSignatureMismatch(t *testing.T) {
	clock := newFakeClock()
	v := newTestValidator(t, stripeConfig(), clock)

	body := `{"id":"evt_3"}`
	req := stripeRequest(clock, body)
	req.Headers["Stripe-Signature"] = fmt.Sprintf("t=%d,v1=%s", clock.Now().Unix(), hmacSHA256Hex([]byte("forged"), body))

	res := v.Validate(req)
	assert.False(t, res.Valid)
	assert.Equal(t, "Invalid Stripe signature", res.Err)
	assert.False(t, res.Metadata.SignatureValid)
	assert.False(t, res.Metadata.ReplayProtected, "replay guard never ran")
}

func TestValidateReplay(t *testing.T) {
	clock := newFakeClock()
	v := newTestValidator(t, stripeConfig(), clock)

	req := stripeRequest(clock, `{"id":"evt_replay"}`)

	first := v.Validate(req)
	assert.True(t, first.Valid)

	second := v.Validate(req)
	assert.False(t, second.Valid)
	assert.Contains(t, second.Err, "replay attack")
	assert.True(t, second.Metadata.SignatureValid, "the signature is still cryptographically valid")
	assert.False(t, second.Metadata.ReplayProtected)
}

func TestValidateTwilioNoTimestamp(t *testing.T) {
	clock := newFakeClock()
	cfg := twilioConfig()
	v := newTestValidator(t, cfg, clock)

	url := "https://example.com/webhook/twilio"
	body := "CallSid=CA999"
	req := &Request{
		Body:   body,
		Method: "POST",
		URL:    url,
		Headers: map[string]string{
			"X-Twilio-Signature": hmacSHA1B64(cfg.Secret, url+body),
		},
	}

	first := v.Validate(req)
	assert.True(t, first.Valid, first.Err)

	// No timestamp header exists for this scheme; replay detection is the
	// only freshness control, and it must fire on exact resubmission.
	second := v.Validate(req)
	assert.False(t, second.Valid)
	assert.Contains(t, second.Err, "replay attack")
}

func TestValidateRateLimit(t *testing.T) {
	clock := newFakeClock()
	cfg := stripeConfig()
	cfg.MaxRequestsPerMinute = 2
	v := newTestValidator(t, cfg, clock)

	send := func(i int) Result {
		req := stripeRequest(clock, fmt.Sprintf(`{"id":"evt_rate_%d"}`, i))
		req.Headers["X-Forwarded-For"] = "203.0.113.9"
		return v.Validate(req)
	}

	assert.True(t, send(1).Valid)
	assert.True(t, send(2).Valid)

	third := send(3)
	assert.False(t, third.Valid)
	assert.Equal(t, MsgRateLimited, third.Err)
	assert.True(t, third.Metadata.RateLimited)
	assert.True(t, third.Metadata.SignatureValid, "rate limiting fires even for valid requests")

	// A different client key has its own budget.
	req := stripeRequest(clock, `{"id":"evt_rate_other"}`)
	req.Headers["X-Forwarded-For"] = "198.51.100.7"
	assert.True(t, v.Validate(req).Valid)

	// The window elapses and the original client may send again.
	clock.Advance(time.Minute)
	assert.True(t, send(4).Valid)
}

func TestValidateDistributedStores(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client, err := goredis.NewClient(&goredis.Config{Address: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()

	cfg := stripeConfig()
	cfg.MaxRequestsPerMinute = 2
	v, err := NewWithStore(cfg, client, quietLogger(t))
	require.NoError(t, err)

	clock := newFakeClock()
	clock.now = time.Now()
	v.clock = clock.Now

	req := stripeRequest(clock, `{"id":"evt_dist"}`)
	first := v.Validate(req)
	assert.True(t, first.Valid, first.Err)

	second := v.Validate(req)
	assert.False(t, second.Valid)
	assert.Contains(t, second.Err, "replay attack")

	// Distinct bodies hit the shared rate window instead.
	req2 := stripeRequest(clock, `{"id":"evt_dist_2"}`)
	assert.True(t, v.Validate(req2).Valid)

	req3 := stripeRequest(clock, `{"id":"evt_dist_3"}`)
	third := v.Validate(req3)
	assert.False(t, third.Valid)
	assert.Equal(t, MsgRateLimited, third.Err)
	assert.True(t, third.Metadata.RateLimited)
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(ProviderConfig{ProviderID: "stripe"}, nil)
	assert.Error(t, err, "missing secret must fail construction")

	cfg := stripeConfig()
	cfg.Scheme = "rot13"
	_, err = New(cfg, nil)
	assert.Error(t, err)
}

func TestRegistry(t *testing.T) {
	cfgs := []ProviderConfig{stripeConfig(), twilioConfig()}

	reg, err := NewRegistry(cfgs, nil, quietLogger(t))
	require.NoError(t, err)

	v, ok := reg.Get("stripe")
	assert.True(t, ok)
	assert.Equal(t, "stripe", v.Provider())

	_, ok = reg.Get("github")
	assert.False(t, ok)

	assert.ElementsMatch(t, []string{"stripe", "twilio"}, reg.Providers())
}

func TestRegistryProviderScopedLimits(t *testing.T) {
	clock := newFakeClock()

	stripeCfg := stripeConfig()
	stripeCfg.MaxRequestsPerMinute = 1
	twilioCfg := twilioConfig()

	reg, err := NewRegistry([]ProviderConfig{stripeCfg, twilioCfg}, nil, quietLogger(t))
	require.NoError(t, err)

	sv, _ := reg.Get("stripe")
	sv.clock = clock.Now
	tv, _ := reg.Get("twilio")
	tv.clock = clock.Now

	req := stripeRequest(clock, `{"id":"evt_scope"}`)
	req.Headers["X-Forwarded-For"] = "203.0.113.9"
	assert.True(t, sv.Validate(req).Valid)

	req2 := stripeRequest(clock, `{"id":"evt_scope_2"}`)
	req2.Headers["X-Forwarded-For"] = "203.0.113.9"
	assert.Equal(t, MsgRateLimited, sv.Validate(req2).Err)

	// The same client still has full budget against another provider.
	url := "https://example.com/webhook/twilio"
	body := "CallSid=CA1"
	treq := &Request{
		Body: body,
		URL:  url,
		Headers: map[string]string{
			"X-Twilio-Signature": hmacSHA1B64(twilioCfg.Secret, url+body),
			"X-Forwarded-For":    "203.0.113.9",
		},
	}
	assert.True(t, tv.Validate(treq).Valid)
}

package webhook

import (
	"strings"
	"time"

	"webhook-gatekeeper/internal/common/errors"
)

// Scheme identifies how a provider signs its webhook callbacks.
type Scheme string

const (
	// SchemeStripeV1 is the Stripe-style signature: the header carries
	// "t=<unix>,v1=<hex>" and the signed payload is "<t>.<body>".
	SchemeStripeV1 Scheme = "stripe-v1"

	// SchemeHMACSHA256Hex is a hex HMAC-SHA256 over the raw body, with an
	// optional "sha256=" prefix and a separate timestamp header.
	SchemeHMACSHA256Hex Scheme = "hmac-sha256-hex"

	// SchemeHMACSHA1Base64 is a base64 HMAC-SHA1 over the full request URL
	// concatenated with the raw body. The scheme carries no timestamp;
	// freshness relies entirely on the replay guard.
	SchemeHMACSHA1Base64 Scheme = "hmac-sha1-base64"
)

// DefaultTolerance is the allowed clock skew when a provider does not
// configure its own.
const DefaultTolerance = 300 * time.Second

// ProviderConfig holds the verification parameters for one provider.
// It is immutable after construction; multiple validators may share one
// instance read-only.
type ProviderConfig struct {
	// ProviderID keys the configuration, e.g. "stripe" or "twilio".
	ProviderID string `json:"provider_id"`

	// DisplayName appears in signature error messages. Defaults to the
	// title-cased provider id.
	DisplayName string `json:"display_name"`

	// Secret is the shared signing secret.
	Secret []byte `json:"-"`

	// SignatureHeader is the HTTP header carrying the signature.
	SignatureHeader string `json:"signature_header"`

	// TimestampHeader carries the freshness timestamp for schemes that
	// take one from a separate header. Ignored for SchemeStripeV1 (the
	// timestamp is embedded) and SchemeHMACSHA1Base64 (none exists).
	TimestampHeader string `json:"timestamp_header"`

	// Tolerance is the maximum accepted clock skew.
	Tolerance time.Duration `json:"tolerance"`

	// MaxRequestsPerMinute caps validation attempts per client key.
	MaxRequestsPerMinute int `json:"max_requests_per_minute"`

	// Scheme selects the signature strategy.
	Scheme Scheme `json:"scheme"`
}

// SetDefaults applies default values to the configuration.
func (c *ProviderConfig) SetDefaults() {
	if c.DisplayName == "" && c.ProviderID != "" {
		c.DisplayName = strings.ToUpper(c.ProviderID[:1]) + c.ProviderID[1:]
	}

	if c.Tolerance <= 0 {
		c.Tolerance = DefaultTolerance
	}

	if c.MaxRequestsPerMinute <= 0 {
		c.MaxRequestsPerMinute = 60
	}
}

// Validate checks that the configuration can back a validator.
func (c *ProviderConfig) Validate() error {
	if c.ProviderID == "" {
		return errors.ValidationError("provider id is required")
	}

	if len(c.Secret) == 0 {
		return errors.ConfigError("signing secret is required for provider " + c.ProviderID)
	}

	if c.SignatureHeader == "" {
		return errors.ValidationError("signature header is required for provider " + c.ProviderID)
	}

	switch c.Scheme {
	case SchemeStripeV1, SchemeHMACSHA1Base64:
		// Timestamp is embedded or absent; no separate header needed.
	case SchemeHMACSHA256Hex:
		if c.TimestampHeader == "" {
			return errors.ValidationError("timestamp header is required for provider " + c.ProviderID)
		}
	default:
		return errors.ValidationError("unsupported signature scheme: " + string(c.Scheme))
	}

	return nil
}

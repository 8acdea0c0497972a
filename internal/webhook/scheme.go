package webhook

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Fixed error vocabulary surfaced through Result.Err. Callers match on
// these strings, so they are part of the public contract.
const (
	MsgMissingSignature = "Missing signature"
	MsgMissingTimestamp = "Missing timestamp"
	MsgStaleTimestamp   = "Timestamp outside tolerance"
	MsgReplayDetected   = "replay attack detected"
	MsgRateLimited      = "Rate limit exceeded"
)

func errInvalidSignature(displayName string) error {
	return fmt.Errorf("Invalid %s signature", displayName)
}

// signer implements one signature scheme. Implementations are stateless;
// all per-provider parameters come from the ProviderConfig.
type signer interface {
	// timestamp extracts the freshness timestamp carried by the request.
	// ok reports whether the scheme carries a timestamp at all. A non-nil
	// error already uses the fixed vocabulary.
	timestamp(r *Request, cfg *ProviderConfig, sigHeader string) (ts int64, ok bool, err error)

	// verify compares the supplied signature against the expected one
	// using constant-time comparison.
	verify(r *Request, cfg *ProviderConfig, sigHeader string) error
}

func signerFor(scheme Scheme) signer {
	switch scheme {
	case SchemeStripeV1:
		return stripeV1Signer{}
	case SchemeHMACSHA256Hex:
		return hmacSHA256HexSigner{}
	case SchemeHMACSHA1Base64:
		return hmacSHA1Base64Signer{}
	default:
		return nil
	}
}

// stripeV1Signer verifies "t=<unix>,v1=<hex>[,v0=<hex>...]" headers.
// The expected signature is hex(HMAC-SHA256(secret, "<t>.<body>")) and the
// embedded t doubles as the freshness timestamp.
type stripeV1Signer struct{}

// parseStripeHeader pulls the t and first v1 components out of the header.
// Unknown components (v0, future versions) are ignored.
func parseStripeHeader(header string) (t, v1 string, ok bool) {
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			t = kv[1]
		case "v1":
			if v1 == "" {
				v1 = kv[1]
			}
		}
	}
	return t, v1, t != "" && v1 != ""
}

func (stripeV1Signer) timestamp(_ *Request, cfg *ProviderConfig, sigHeader string) (int64, bool, error) {
	t, _, ok := parseStripeHeader(sigHeader)
	if !ok {
		// Malformed header syntax normalizes to a signature failure.
		return 0, true, errInvalidSignature(cfg.DisplayName)
	}

	ts, err := strconv.ParseInt(t, 10, 64)
	if err != nil {
		return 0, true, errInvalidSignature(cfg.DisplayName)
	}

	return ts, true, nil
}

func (stripeV1Signer) verify(r *Request, cfg *ProviderConfig, sigHeader string) error {
	t, v1, ok := parseStripeHeader(sigHeader)
	if !ok {
		return errInvalidSignature(cfg.DisplayName)
	}

	mac := hmac.New(sha256.New, cfg.Secret)
	mac.Write([]byte(t))
	mac.Write([]byte("."))
	mac.Write([]byte(r.Body))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(strings.ToLower(v1)), []byte(expected)) {
		return errInvalidSignature(cfg.DisplayName)
	}

	return nil
}

// hmacSHA256HexSigner verifies hex(HMAC-SHA256(secret, body)) signatures,
// optionally prefixed "sha256=". Freshness comes from a separate header.
type hmacSHA256HexSigner struct{}

func (hmacSHA256HexSigner) timestamp(r *Request, cfg *ProviderConfig, _ string) (int64, bool, error) {
	value := r.Header(cfg.TimestampHeader)
	if value == "" {
		return 0, true, errors.New(MsgMissingTimestamp)
	}

	ts, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		// Present but unusable; treat like a timestamp that cannot be fresh.
		return 0, true, errors.New(MsgStaleTimestamp)
	}

	return ts, true, nil
}

func (hmacSHA256HexSigner) verify(r *Request, cfg *ProviderConfig, sigHeader string) error {
	provided := strings.TrimPrefix(sigHeader, "sha256=")

	mac := hmac.New(sha256.New, cfg.Secret)
	mac.Write([]byte(r.Body))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(strings.ToLower(provided)), []byte(expected)) {
		return errInvalidSignature(cfg.DisplayName)
	}

	return nil
}

// hmacSHA1Base64Signer verifies base64(HMAC-SHA1(secret, url+body))
// signatures. The full request URL is part of the signed payload and the
// scheme has no timestamp header.
type hmacSHA1Base64Signer struct{}

func (hmacSHA1Base64Signer) timestamp(*Request, *ProviderConfig, string) (int64, bool, error) {
	return 0, false, nil
}

func (hmacSHA1Base64Signer) verify(r *Request, cfg *ProviderConfig, sigHeader string) error {
	mac := hmac.New(sha1.New, cfg.Secret)
	mac.Write([]byte(r.URL))
	mac.Write([]byte(r.Body))
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(sigHeader), []byte(expected)) {
		return errInvalidSignature(cfg.DisplayName)
	}

	return nil
}

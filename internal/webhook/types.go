package webhook

import (
	"strings"
)

// Request describes an inbound webhook call as seen by the HTTP layer.
// The body is treated as an opaque blob; this package never parses it.
// A Request is never mutated during validation.
type Request struct {
	Body    string            `json:"body"`
	Headers map[string]string `json:"headers"`
	Method  string            `json:"method"`
	URL     string            `json:"url"`
}

// Header returns the value for name using case-insensitive lookup,
// since callers do not guarantee HTTP header casing.
func (r *Request) Header(name string) string {
	if v, ok := r.Headers[name]; ok {
		return v
	}
	for k, v := range r.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// Metadata records which checks a validation attempt actually passed.
type Metadata struct {
	SignatureValid  bool `json:"signatureValid"`
	ReplayProtected bool `json:"replayProtected"`
	RateLimited     bool `json:"rateLimited"`
}

// Result is the sole contract surfaced to callers. Failures are reported
// through the Err string, never as Go errors or panics.
type Result struct {
	Valid    bool     `json:"isValid"`
	Err      string   `json:"error,omitempty"`
	Metadata Metadata `json:"metadata"`
}

func failure(msg string, md Metadata) Result {
	return Result{Valid: false, Err: msg, Metadata: md}
}

// ClientKey derives the rate-limiting key for a request from the
// forwarded-for header, falling back to a constant when absent.
// Multi-hop values use the first (client) entry.
func ClientKey(r *Request) string {
	forwarded := r.Header("X-Forwarded-For")
	if forwarded == "" {
		return "unknown"
	}
	if idx := strings.Index(forwarded, ","); idx >= 0 {
		forwarded = forwarded[:idx]
	}
	key := strings.TrimSpace(forwarded)
	if key == "" {
		return "unknown"
	}
	return key
}

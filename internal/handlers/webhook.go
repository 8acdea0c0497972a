package handlers

import (
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"webhook-gatekeeper/internal/common/logging"
	"webhook-gatekeeper/internal/metrics"
	"webhook-gatekeeper/internal/webhook"
)

// maxBodyBytes caps inbound payloads; webhook bodies past this size are
// rejected before any signature work.
const maxBodyBytes = 1 << 20

// HandleWebhook authenticates an inbound webhook callback for the provider
// named in the path and answers with the validation verdict. Accepted
// requests are acknowledged with the result envelope; the payload itself is
// handed to downstream consumers out of band.
func (h *Handlers) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	provider := mux.Vars(r)["provider"]

	validator, ok := h.registry.Get(provider)
	if !ok {
		h.logger.Warn("Webhook for unknown provider", logging.String("provider", provider))
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown provider"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		h.logger.Error("Failed to read webhook body", err, logging.String("provider", provider))
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read request body"})
		return
	}
	if len(body) > maxBodyBytes {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "request body too large"})
		return
	}

	req := &webhook.Request{
		Body:    string(body),
		Headers: flattenHeaders(r.Header),
		Method:  r.Method,
		URL:     fullRequestURL(r),
	}

	result := validator.Validate(req)
	if h.metrics != nil {
		h.metrics.Observe(provider, outcomeFor(result))
	}

	writeJSON(w, statusFor(result), result)
}

// flattenHeaders keeps the first value per header, which is all the
// signature schemes consume.
func flattenHeaders(header http.Header) map[string]string {
	flat := make(map[string]string, len(header))
	for name, values := range header {
		if len(values) > 0 {
			flat[name] = values[0]
		}
	}
	return flat
}

// fullRequestURL reconstructs the externally visible URL, honoring the
// proxy's forwarded protocol. Telephony-style signatures include this URL
// in the signed payload, so it must match what the provider dialed.
func fullRequestURL(r *http.Request) string {
	proto := r.Header.Get("X-Forwarded-Proto")
	if proto == "" {
		if r.TLS != nil {
			proto = "https"
		} else {
			proto = "http"
		}
	}
	return proto + "://" + r.Host + r.RequestURI
}

func statusFor(result webhook.Result) int {
	switch {
	case result.Valid:
		return http.StatusOK
	case strings.Contains(strings.ToLower(result.Err), "replay attack"):
		return http.StatusConflict
	case result.Metadata.RateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusUnauthorized
	}
}

func outcomeFor(result webhook.Result) string {
	switch {
	case result.Valid:
		return metrics.OutcomeAccepted
	case result.Err == webhook.MsgMissingSignature:
		return metrics.OutcomeMissingSignature
	case result.Err == webhook.MsgMissingTimestamp:
		return metrics.OutcomeMissingTimestamp
	case result.Err == webhook.MsgStaleTimestamp:
		return metrics.OutcomeStaleTimestamp
	case result.Err == webhook.MsgRateLimited:
		return metrics.OutcomeRateLimited
	case strings.Contains(strings.ToLower(result.Err), "replay attack"):
		return metrics.OutcomeReplay
	default:
		return metrics.OutcomeInvalidSignature
	}
}

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"forex-academy/internal/domain"
	"forex-academy/internal/infra/logging"
)

const (
	maxJSONBody    = 1 << 16
	maxWebhookBody = 1 << 16
)

type errorBody struct {
	Error   string `json:"error"`
	TraceID string `json:"traceId,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError is the only place domain errors become HTTP statuses. Messages for
// 5xx stay generic; the cause goes to the log.
func writeError(w http.ResponseWriter, r *http.Request, logger *zerolog.Logger, err error) {
	code, msg := http.StatusInternalServerError, "internal error"
	forged := false
	switch {
	case errors.Is(err, domain.ErrSignatureInvalid):
		// The body never names the check that failed.
		code, msg, forged = http.StatusInternalServerError, "webhook rejected", true
	case errors.Is(err, domain.ErrInvalidAmount):
		code, msg = http.StatusBadRequest, "invalid amount for this program"
	case errors.Is(err, domain.ErrUnknownProgram):
		code, msg = http.StatusBadRequest, "unknown program"
	case errors.Is(err, domain.ErrUnknownRail):
		code, msg = http.StatusBadRequest, "unknown payment method"
	case errors.Is(err, domain.ErrInvalidTxHash):
		code, msg = http.StatusBadRequest, "malformed transaction hash"
	case errors.Is(err, domain.ErrInvalidPhone):
		code, msg = http.StatusBadRequest, "malformed phone number"
	case errors.Is(err, domain.ErrInvalidInput):
		code, msg = http.StatusBadRequest, "invalid request"
	case errors.Is(err, domain.ErrInvalidArgument):
		code, msg = http.StatusUnprocessableEntity, "invalid request"
	case errors.Is(err, domain.ErrWrongRail):
		code, msg = http.StatusUnprocessableEntity, "not supported for this payment method"
	case errors.Is(err, domain.ErrUnauthorized):
		code, msg = http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, domain.ErrForbidden):
		code, msg = http.StatusForbidden, "forbidden"
	case errors.Is(err, domain.ErrNotFound):
		code, msg = http.StatusNotFound, "not found"
	case errors.Is(err, domain.ErrIntentTerminal):
		code, msg = http.StatusConflict, "payment already finalized"
	case errors.Is(err, domain.ErrAlreadyExists):
		code, msg = http.StatusConflict, "already requested"
	case errors.Is(err, domain.ErrUpstreamRail):
		code, msg = http.StatusBadGateway, "payment provider unavailable"
	}

	l := logging.With(r.Context(), logger)
	body := errorBody{Error: msg}
	switch {
	case forged:
		l.Warn().Err(err).Str("path", r.URL.Path).Str("remote", r.RemoteAddr).Msg("webhook signature rejected")
	case code >= 500:
		l.Error().Err(err).Str("path", r.URL.Path).Int("status", code).Msg("request failed")
		// Lets support find the log line for a failed checkout.
		body.TraceID = logging.TraceIDFrom(r.Context())
	default:
		l.Debug().Err(err).Str("path", r.URL.Path).Int("status", code).Msg("request rejected")
	}
	writeJSON(w, code, body)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return domain.ErrInvalidInput
	}
	return nil
}

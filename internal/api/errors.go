package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/fuomag9/uptimed/internal/engine"
)

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrMonitorNotFound),
		errors.Is(err, engine.ErrSlugNotFound),
		errors.Is(err, engine.ErrIncidentNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrInvalidProtocol),
		errors.Is(err, engine.ErrInvalidTarget),
		errors.Is(err, engine.ErrIntervalTooShort),
		errors.Is(err, engine.ErrInvalidStatusPage),
		errors.Is(err, engine.ErrInvalidStatus),
		errors.Is(err, engine.ErrNotPushMonitor):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrQuotaExceeded),
		errors.Is(err, engine.ErrStatusPageQuotaExceeded):
		return http.StatusPaymentRequired
	case errors.Is(err, engine.ErrSlugTaken):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError reports err to the client. Internal errors are logged and
// replaced by a generic message.
func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		log.Error("request failed", zap.Error(err))
		http.Error(w, "Internal server error", code)
		return
	}
	http.Error(w, err.Error(), code)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// PushService records heartbeats sent by push monitors
type PushService interface {
	RecordPush(ctx context.Context, id string) (bool, error)
}

// HandlePush records a push heartbeat. "recorded" is false while the
// monitor is paused or in maintenance.
func HandlePush(svc PushService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		recorded, err := svc.RecordPush(r.Context(), id)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "recorded": recorded})
	}
}

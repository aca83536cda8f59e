package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/fuomag9/uptimed/internal/models"
)

// IncidentService is the engine surface used by the incident handlers
type IncidentService interface {
	GetIncidents(ctx context.Context, monitorID string, openOnly bool) ([]models.Incident, error)
	GetIncident(ctx context.Context, id string) (*models.Incident, error)
	ResolveIncident(ctx context.Context, id string) (bool, error)
}

// HandleGetIncidents lists incidents newest first. Query: monitor, open.
func HandleGetIncidents(svc IncidentService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		openOnly, _ := strconv.ParseBool(r.URL.Query().Get("open"))

		incidents, err := svc.GetIncidents(r.Context(), r.URL.Query().Get("monitor"), openOnly)
		if err != nil {
			writeError(w, log, err)
			return
		}
		if incidents == nil {
			incidents = []models.Incident{}
		}
		writeJSON(w, http.StatusOK, incidents)
	}
}

// HandleResolveIncident resolves an open incident. Resolving twice is not an
// error; "resolved" reports whether this call closed it.
func HandleResolveIncident(svc IncidentService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if _, err := svc.GetIncident(r.Context(), id); err != nil {
			writeError(w, log, err)
			return
		}

		resolved, err := svc.ResolveIncident(r.Context(), id)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"id": id, "resolved": resolved})
	}
}

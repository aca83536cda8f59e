package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/fuomag9/uptimed/internal/engine"
	"github.com/fuomag9/uptimed/internal/models"
)

// MonitorService is the engine surface used by the monitor handlers
type MonitorService interface {
	AddMonitor(ctx context.Context, spec engine.MonitorSpec) (string, error)
	GetMonitor(ctx context.Context, id string) (*models.Monitor, error)
	ListMonitors(ctx context.Context) ([]models.Monitor, error)
	SetMonitorStatus(ctx context.Context, id, status string) error
	RunCheck(ctx context.Context, id string) (bool, error)
	GetHeartbeatHistory(ctx context.Context, id string, limit int) ([]models.Heartbeat, error)
}

// CreateMonitorRequest is the body of POST /api/monitors
type CreateMonitorRequest struct {
	Name      string   `json:"name"`
	Type      string   `json:"type"`
	Target    string   `json:"target"`
	IntervalS int      `json:"interval_s"`
	TimeoutS  int      `json:"timeout_s"`
	Retries   *int     `json:"retries"`
	Tags      []string `json:"tags"`
}

// HandleGetMonitors returns all monitors
func HandleGetMonitors(svc MonitorService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		monitors, err := svc.ListMonitors(r.Context())
		if err != nil {
			writeError(w, log, err)
			return
		}
		if monitors == nil {
			monitors = []models.Monitor{}
		}
		writeJSON(w, http.StatusOK, monitors)
	}
}

// HandleGetMonitor returns a single monitor by ID
func HandleGetMonitor(svc MonitorService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mon, err := svc.GetMonitor(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, mon)
	}
}

// HandleCreateMonitor creates a new monitor
func HandleCreateMonitor(svc MonitorService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateMonitorRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		id, err := svc.AddMonitor(r.Context(), engine.MonitorSpec{
			Name:      req.Name,
			Kind:      req.Type,
			Target:    req.Target,
			IntervalS: req.IntervalS,
			TimeoutS:  req.TimeoutS,
			Retries:   req.Retries,
			Tags:      req.Tags,
		})
		if err != nil {
			writeError(w, log, err)
			return
		}

		mon, err := svc.GetMonitor(r.Context(), id)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, mon)
	}
}

// HandleCheckMonitor runs a check immediately
func HandleCheckMonitor(svc MonitorService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		ok, err := svc.RunCheck(r.Context(), id)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"id": id, "ok": ok})
	}
}

// HandleSetMonitorStatus pauses, resumes or puts a monitor into maintenance
func HandleSetMonitorStatus(svc MonitorService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Status string `json:"status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		id := chi.URLParam(r, "id")
		if err := svc.SetMonitorStatus(r.Context(), id, req.Status); err != nil {
			writeError(w, log, err)
			return
		}

		mon, err := svc.GetMonitor(r.Context(), id)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, mon)
	}
}

// HandleGetHeartbeats returns recent heartbeats, oldest first
func HandleGetHeartbeats(svc MonitorService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := queryInt(r, "limit", engine.DefaultHistoryLimit)
		if limit > 1000 {
			limit = 1000
		}

		heartbeats, err := svc.GetHeartbeatHistory(r.Context(), chi.URLParam(r, "id"), limit)
		if err != nil {
			writeError(w, log, err)
			return
		}
		if heartbeats == nil {
			heartbeats = []models.Heartbeat{}
		}
		writeJSON(w, http.StatusOK, heartbeats)
	}
}

// queryInt parses a positive integer query parameter, falling back to def.
func queryInt(r *http.Request, key string, def int) int {
	if v, err := strconv.Atoi(r.URL.Query().Get(key)); err == nil && v > 0 {
		return v
	}
	return def
}

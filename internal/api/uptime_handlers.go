package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/fuomag9/uptimed/internal/engine"
	"github.com/fuomag9/uptimed/internal/uptime"
)

// UptimeService is the engine surface used by the uptime handlers
type UptimeService interface {
	GetUptimePercent(ctx context.Context, id string, days int) (float64, error)
	GetResponseTimeAvg(ctx context.Context, id string, hours int) (float64, error)
	GetUptimeStats(ctx context.Context, id string, period time.Duration) (*uptime.UptimeStats, error)
}

// UptimeResponse is returned by GET /api/monitors/{id}/uptime
type UptimeResponse struct {
	MonitorID         string  `json:"monitor_id"`
	Days              int     `json:"days"`
	UptimePercent     float64 `json:"uptime_percent"`
	Hours             int     `json:"hours"`
	AvgResponseTimeMs float64 `json:"avg_response_time_ms"`
}

var periods = map[string]time.Duration{
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
	"90d": 90 * 24 * time.Hour,
}

// HandleGetMonitorUptime returns uptime and average latency for a monitor
func HandleGetMonitorUptime(svc UptimeService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		days := queryInt(r, "days", engine.DefaultUptimeDays)
		hours := queryInt(r, "hours", engine.DefaultLatencyHours)

		pct, err := svc.GetUptimePercent(r.Context(), id, days)
		if err != nil {
			writeError(w, log, err)
			return
		}
		avg, err := svc.GetResponseTimeAvg(r.Context(), id, hours)
		if err != nil {
			writeError(w, log, err)
			return
		}

		writeJSON(w, http.StatusOK, UptimeResponse{
			MonitorID:         id,
			Days:              days,
			UptimePercent:     pct,
			Hours:             hours,
			AvgResponseTimeMs: avg,
		})
	}
}

// HandleGetMonitorStats returns heartbeat counts for one of the fixed periods
// (24h, 7d, 30d, 90d; default 24h).
func HandleGetMonitorStats(svc UptimeService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		period, ok := periods[r.URL.Query().Get("period")]
		if !ok {
			period = periods["24h"]
		}

		stats, err := svc.GetUptimeStats(r.Context(), chi.URLParam(r, "id"), period)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fuomag9/uptimed/internal/engine"
	"github.com/fuomag9/uptimed/internal/models"
)

// Metrics exports check results in Prometheus format. It is registered as an
// engine observer.
type Metrics struct {
	registry  *prometheus.Registry
	checks    *prometheus.CounterVec
	up        *prometheus.GaugeVec
	latency   *prometheus.GaugeVec
	incidents *prometheus.CounterVec
}

// NewMetrics creates the collectors on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uptime_checks_total",
			Help: "Recorded checks by monitor type and result.",
		}, []string{"monitor_type", "status"}),
		up: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "uptime_monitor_up",
			Help: "Monitor status (1 = up, 0 = down).",
		}, []string{"monitor_id", "monitor_name", "monitor_type"}),
		latency: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "uptime_monitor_response_time_ms",
			Help: "Latency of the last successful check in milliseconds.",
		}, []string{"monitor_id", "monitor_name", "monitor_type"}),
		incidents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uptime_incidents_total",
			Help: "Incidents opened and resolved.",
		}, []string{"event"}),
	}

	m.registry.MustRegister(
		m.checks, m.up, m.latency, m.incidents,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// CheckRecorded updates the collectors for one recorded check.
func (m *Metrics) CheckRecorded(event engine.CheckEvent) {
	mon := event.Monitor
	m.checks.WithLabelValues(mon.Type, event.Heartbeat.Status).Inc()

	up := 0.0
	if event.Heartbeat.Status == models.StatusUp {
		up = 1
	}
	m.up.WithLabelValues(mon.ID, mon.Name, mon.Type).Set(up)
	if event.Heartbeat.ResponseTimeMs != nil {
		m.latency.WithLabelValues(mon.ID, mon.Name, mon.Type).Set(*event.Heartbeat.ResponseTimeMs)
	}

	if event.Opened != nil {
		m.incidents.WithLabelValues("opened").Inc()
	}
	if event.Resolved != nil {
		m.incidents.WithLabelValues("resolved").Inc()
	}
}

// Handler serves the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

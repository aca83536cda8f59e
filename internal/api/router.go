package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fuomag9/uptimed/internal/config"
)

// Service is everything the HTTP API needs from the engine
type Service interface {
	MonitorService
	UptimeService
	IncidentService
	StatusPageService
	PushService
}

// Push heartbeats per monitor: one per second sustained, bursts of 10.
const (
	pushRate  = rate.Limit(1)
	pushBurst = 10
)

// Deps are the collaborators of the router. Hub and Metrics are optional.
type Deps struct {
	Service Service
	Hub     http.Handler
	Metrics *Metrics
	Health  func() error
	Logger  *zap.Logger
}

// NewRouter creates a new HTTP router
func NewRouter(cfg *config.Config, deps Deps) http.Handler {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	svc := deps.Service

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(SecurityHeadersMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		// Push endpoints authenticate by monitor id.
		pushLimiter := NewRateLimiter(pushRate, pushBurst)
		r.With(RateLimitMiddleware(pushLimiter, func(r *http.Request) string {
			return chi.URLParam(r, "id")
		})).Group(func(r chi.Router) {
			r.Get("/push/{id}", HandlePush(svc, log))
			r.Post("/push/{id}", HandlePush(svc, log))
		})

		r.Group(func(r chi.Router) {
			r.Use(TokenAuthMiddleware(cfg.APIToken))
			r.Use(middleware.Timeout(60 * time.Second))

			r.Get("/monitors", HandleGetMonitors(svc, log))
			r.Post("/monitors", HandleCreateMonitor(svc, log))
			r.Get("/monitors/{id}", HandleGetMonitor(svc, log))
			r.Post("/monitors/{id}/check", HandleCheckMonitor(svc, log))
			r.Put("/monitors/{id}/status", HandleSetMonitorStatus(svc, log))
			r.Get("/monitors/{id}/heartbeats", HandleGetHeartbeats(svc, log))
			r.Get("/monitors/{id}/uptime", HandleGetMonitorUptime(svc, log))
			r.Get("/monitors/{id}/stats", HandleGetMonitorStats(svc, log))

			r.Get("/incidents", HandleGetIncidents(svc, log))
			r.Post("/incidents/{id}/resolve", HandleResolveIncident(svc, log))

			r.Get("/status-pages", HandleGetStatusPages(svc, log))
			r.Put("/status-pages/{slug}", HandlePutStatusPage(svc, log))
		})
	})

	// Public status page endpoint (no auth required)
	r.Get("/status/{slug}", HandleGetPublicStatusPage(svc, log))

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	if deps.Hub != nil {
		r.Method(http.MethodGet, "/ws", deps.Hub)
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if deps.Health != nil {
			if err := deps.Health(); err != nil {
				log.Warn("health check failed", zap.Error(err))
				http.Error(w, "database unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return r
}

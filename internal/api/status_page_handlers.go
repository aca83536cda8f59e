package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/fuomag9/uptimed/internal/engine"
	"github.com/fuomag9/uptimed/internal/models"
)

// StatusPageService is the engine surface used by the status page handlers
type StatusPageService interface {
	ListStatusPages(ctx context.Context) ([]models.StatusPage, error)
	ApplyStatusPage(ctx context.Context, spec engine.StatusPageSpec) (string, bool, error)
	GetStatusPage(ctx context.Context, slug string) (*models.StatusPageWithMonitors, error)
}

// HandleGetStatusPages returns all status pages
func HandleGetStatusPages(svc StatusPageService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pages, err := svc.ListStatusPages(r.Context())
		if err != nil {
			writeError(w, log, err)
			return
		}
		if pages == nil {
			pages = []models.StatusPage{}
		}
		writeJSON(w, http.StatusOK, pages)
	}
}

// HandlePutStatusPage creates or updates the status page named by slug
func HandlePutStatusPage(svc StatusPageService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var spec engine.StatusPageSpec
		if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		spec.Slug = chi.URLParam(r, "slug")

		id, created, err := svc.ApplyStatusPage(r.Context(), spec)
		if err != nil {
			writeError(w, log, err)
			return
		}

		code := http.StatusOK
		if created {
			code = http.StatusCreated
		}
		writeJSON(w, code, map[string]interface{}{"id": id, "slug": spec.Slug, "created": created})
	}
}

// HandleGetPublicStatusPage returns a status page with live monitor summaries
func HandleGetPublicStatusPage(svc StatusPageService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := svc.GetStatusPage(r.Context(), chi.URLParam(r, "slug"))
		if err != nil {
			writeError(w, log, err)
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=30")
		writeJSON(w, http.StatusOK, page)
	}
}

package engine

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/fuomag9/uptimed/internal/models"
	"github.com/fuomag9/uptimed/internal/store"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// StatusPageSpec describes a status page to create or update.
type StatusPageSpec struct {
	Name        string   `yaml:"name" json:"name"`
	Slug        string   `yaml:"slug" json:"slug"`
	MonitorIDs  []string `yaml:"monitors" json:"monitors"`
	Description string   `yaml:"description" json:"description"`
	LogoURL     string   `yaml:"logo_url" json:"logo_url"`
	Theme       string   `yaml:"theme" json:"theme"`
}

func (e *Engine) validateStatusPage(ctx context.Context, spec *StatusPageSpec) error {
	spec.Name = strings.TrimSpace(spec.Name)
	if spec.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidStatusPage)
	}
	if !slugPattern.MatchString(spec.Slug) {
		return fmt.Errorf("%w: slug %q must be lowercase letters, digits and dashes", ErrInvalidStatusPage, spec.Slug)
	}
	switch spec.Theme {
	case "":
		spec.Theme = models.ThemeLight
	case models.ThemeLight, models.ThemeDark:
	default:
		return fmt.Errorf("%w: theme must be light or dark", ErrInvalidStatusPage)
	}

	if spec.MonitorIDs == nil {
		spec.MonitorIDs = []string{}
	}
	found, err := e.store.GetMonitorsByIDs(ctx, spec.MonitorIDs)
	if err != nil {
		return err
	}
	for _, id := range spec.MonitorIDs {
		if _, ok := found[id]; !ok {
			return fmt.Errorf("%w: %s", ErrMonitorNotFound, id)
		}
	}
	return nil
}

// CreateStatusPage creates a status page within the plan's page quota. It returns the new id.
func (e *Engine) CreateStatusPage(ctx context.Context, spec StatusPageSpec) (string, error) {
	if err := e.validateStatusPage(ctx, &spec); err != nil {
		return "", err
	}

	plan := e.plans.Current()

	e.admission.Lock()
	defer e.admission.Unlock()

	count, err := e.store.CountStatusPages(ctx)
	if err != nil {
		return "", err
	}
	if !plan.AllowsStatusPages(count) {
		return "", fmt.Errorf("%w: plan %s allows %d status pages",
			ErrStatusPageQuotaExceeded, plan.Name, plan.Quota.MaxStatusPages)
	}

	page := &models.StatusPage{
		ID:          newID(),
		Name:        spec.Name,
		Slug:        spec.Slug,
		MonitorIDs:  spec.MonitorIDs,
		Description: spec.Description,
		LogoURL:     spec.LogoURL,
		Theme:       spec.Theme,
	}
	if err := e.store.CreateStatusPage(ctx, page); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return "", fmt.Errorf("%w: %s", ErrSlugTaken, spec.Slug)
		}
		return "", err
	}

	e.log.Info("status page created", zap.String("slug", page.Slug), zap.Int("monitors", len(page.MonitorIDs)))
	return page.ID, nil
}

// ApplyStatusPage updates the page with spec.Slug, or creates it when absent.
func (e *Engine) ApplyStatusPage(ctx context.Context, spec StatusPageSpec) (id string, created bool, err error) {
	existing, err := e.store.GetStatusPageBySlug(ctx, spec.Slug)
	if errors.Is(err, models.ErrNotFound) {
		id, err := e.CreateStatusPage(ctx, spec)
		return id, err == nil, err
	}
	if err != nil {
		return "", false, err
	}

	if err := e.validateStatusPage(ctx, &spec); err != nil {
		return "", false, err
	}

	existing.Name = spec.Name
	existing.MonitorIDs = spec.MonitorIDs
	existing.Description = spec.Description
	existing.LogoURL = spec.LogoURL
	existing.Theme = spec.Theme
	if err := e.store.UpdateStatusPage(ctx, existing); err != nil {
		return "", false, err
	}

	e.log.Info("status page updated", zap.String("slug", existing.Slug))
	return existing.ID, false, nil
}

// ListStatusPages returns every status page.
func (e *Engine) ListStatusPages(ctx context.Context) ([]models.StatusPage, error) {
	return e.store.ListStatusPages(ctx)
}

// GetStatusPage resolves a status page and the current state of its
// monitors, in page order. Monitors that no longer exist are left out.
func (e *Engine) GetStatusPage(ctx context.Context, slug string) (*models.StatusPageWithMonitors, error) {
	page, err := e.store.GetStatusPageBySlug(ctx, slug)
	if errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSlugNotFound, slug)
	}
	if err != nil {
		return nil, err
	}

	monitors, err := e.store.GetMonitorsByIDs(ctx, page.MonitorIDs)
	if err != nil {
		return nil, err
	}

	result := &models.StatusPageWithMonitors{
		StatusPage: *page,
		Monitors:   make([]models.MonitorSummary, 0, len(page.MonitorIDs)),
	}
	for _, id := range page.MonitorIDs {
		m, ok := monitors[id]
		if !ok {
			continue
		}

		uptime24h, err := e.calc.UptimePercent(ctx, id, 1)
		if err != nil {
			return nil, err
		}
		uptime30d, err := e.calc.UptimePercent(ctx, id, 30)
		if err != nil {
			return nil, err
		}

		result.Monitors = append(result.Monitors, models.MonitorSummary{
			ID:             m.ID,
			Name:           m.Name,
			Type:           m.Type,
			Status:         m.Status,
			ResponseTimeMs: m.ResponseTimeMs,
			LastCheck:      m.LastCheck,
			UpSince:        m.UpSince,
			Uptime24h:      uptime24h,
			Uptime30d:      uptime30d,
		})
	}
	return result, nil
}

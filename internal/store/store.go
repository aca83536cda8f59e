// Package store persists monitors, heartbeats, incidents and status pages.
// It holds no business rules; state transitions are decided by the engine.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/fuomag9/uptimed/internal/models"
)

// ErrDuplicate is returned when a unique attribute is already taken.
var ErrDuplicate = errors.New("duplicate record")

// Store is the gorm-backed persistence layer.
type Store struct {
	db *gorm.DB
}

// New wraps an open, migrated database.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *gorm.DB {
	return s.db
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.ErrNotFound
	}
	return err
}

// CreateMonitor inserts a monitor row.
func (s *Store) CreateMonitor(ctx context.Context, m *models.Monitor) error {
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("Store.CreateMonitor: %w", err)
	}
	return nil
}

// CountMonitors counts every monitor regardless of status.
func (s *Store) CountMonitors(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Monitor{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("Store.CountMonitors: %w", err)
	}
	return count, nil
}

// GetMonitor loads a monitor by id.
func (s *Store) GetMonitor(ctx context.Context, id string) (*models.Monitor, error) {
	var m models.Monitor
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, fmt.Errorf("Store.GetMonitor: %w", notFound(err))
	}
	return &m, nil
}

// ListMonitors returns every monitor in creation order.
func (s *Store) ListMonitors(ctx context.Context) ([]models.Monitor, error) {
	var monitors []models.Monitor
	if err := s.db.WithContext(ctx).Order("created_at ASC, id ASC").Find(&monitors).Error; err != nil {
		return nil, fmt.Errorf("Store.ListMonitors: %w", err)
	}
	return monitors, nil
}

// GetMonitorsByIDs returns the monitors with the given ids keyed by id.
// Unknown ids are absent from the result.
func (s *Store) GetMonitorsByIDs(ctx context.Context, ids []string) (map[string]models.Monitor, error) {
	result := make(map[string]models.Monitor, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var monitors []models.Monitor
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&monitors).Error; err != nil {
		return nil, fmt.Errorf("Store.GetMonitorsByIDs: %w", err)
	}
	for _, m := range monitors {
		result[m.ID] = m
	}
	return result, nil
}

// SetMonitorStatus writes an administrative status. up_since is cleared
// because the monitor leaves the up state.
func (s *Store) SetMonitorStatus(ctx context.Context, id, status string) error {
	result := s.db.WithContext(ctx).Table("monitors").Where("id = ?", id).Updates(map[string]interface{}{
		"status":   status,
		"up_since": nil,
	})
	if result.Error != nil {
		return fmt.Errorf("Store.SetMonitorStatus: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("Store.SetMonitorStatus: %w", models.ErrNotFound)
	}
	return nil
}

// TouchMonitor records a check that observed nothing new: only last_check
// moves, no heartbeat is written.
func (s *Store) TouchMonitor(ctx context.Context, id string, at models.Timestamp) error {
	result := s.db.WithContext(ctx).Table("monitors").Where("id = ?", id).Update("last_check", at)
	if result.Error != nil {
		return fmt.Errorf("Store.TouchMonitor: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("Store.TouchMonitor: %w", models.ErrNotFound)
	}
	return nil
}

// CheckWrite is everything one check execution persists.
type CheckWrite struct {
	Heartbeat models.Heartbeat
	// Updates is applied to the monitor row.
	Updates map[string]interface{}
	// Open, when set, is inserted unless the monitor already has an open incident.
	Open *models.Incident
	// ResolveAt, when set, resolves the monitor's open incident.
	ResolveAt *time.Time
}

// CheckResult reports the rows touched by ApplyCheck.
type CheckResult struct {
	Heartbeat models.Heartbeat
	Opened    *models.Incident
	Resolved  *models.Incident
}

// ApplyCheck persists a heartbeat, the monitor update and any incident
// transition in a single transaction.
func (s *Store) ApplyCheck(ctx context.Context, monitorID string, w CheckWrite) (*CheckResult, error) {
	res := &CheckResult{}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		hb := w.Heartbeat
		hb.MonitorID = monitorID
		if err := tx.Create(&hb).Error; err != nil {
			return err
		}
		res.Heartbeat = hb

		if len(w.Updates) > 0 {
			result := tx.Table("monitors").Where("id = ?", monitorID).Updates(w.Updates)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return models.ErrNotFound
			}
		}

		if w.ResolveAt != nil {
			open, err := openIncident(tx, monitorID)
			if err != nil {
				return err
			}
			if open != nil {
				resolved, err := resolve(tx, open, *w.ResolveAt)
				if err != nil {
					return err
				}
				res.Resolved = resolved
			}
		}

		if w.Open != nil {
			open, err := openIncident(tx, monitorID)
			if err != nil {
				return err
			}
			if open == nil {
				inc := *w.Open
				inc.MonitorID = monitorID
				if err := tx.Create(&inc).Error; err != nil {
					return err
				}
				res.Opened = &inc
			}
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("Store.ApplyCheck: %w", err)
	}
	return res, nil
}

func openIncident(tx *gorm.DB, monitorID string) (*models.Incident, error) {
	var incidents []models.Incident
	err := tx.Where("monitor_id = ? AND resolved_at IS NULL", monitorID).
		Order("started_at DESC").Limit(1).Find(&incidents).Error
	if err != nil {
		return nil, err
	}
	if len(incidents) == 0 {
		return nil, nil
	}
	return &incidents[0], nil
}

// resolve closes inc at the given time. It returns nil when the incident was
// already resolved by someone else.
func resolve(tx *gorm.DB, inc *models.Incident, at time.Time) (*models.Incident, error) {
	resolvedAt := models.NewTimestamp(at)
	duration := int64(resolvedAt.Sub(inc.StartedAt.Time) / time.Second)
	if duration < 0 {
		duration = 0
	}

	result := tx.Table("incidents").
		Where("id = ? AND resolved_at IS NULL", inc.ID).
		Updates(map[string]interface{}{
			"resolved_at": resolvedAt,
			"duration_s":  duration,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}

	resolved := *inc
	resolved.ResolvedAt = &resolvedAt
	resolved.DurationS = &duration
	return &resolved, nil
}

// GetOpenIncident returns the monitor's open incident, or nil.
func (s *Store) GetOpenIncident(ctx context.Context, monitorID string) (*models.Incident, error) {
	inc, err := openIncident(s.db.WithContext(ctx), monitorID)
	if err != nil {
		return nil, fmt.Errorf("Store.GetOpenIncident: %w", err)
	}
	return inc, nil
}

// GetIncident loads an incident by id.
func (s *Store) GetIncident(ctx context.Context, id string) (*models.Incident, error) {
	var inc models.Incident
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&inc).Error; err != nil {
		return nil, fmt.Errorf("Store.GetIncident: %w", notFound(err))
	}
	return &inc, nil
}

// ListIncidents returns incidents newest first.
func (s *Store) ListIncidents(ctx context.Context, filter models.IncidentFilter) ([]models.Incident, error) {
	query := s.db.WithContext(ctx)
	if filter.MonitorID != "" {
		query = query.Where("monitor_id = ?", filter.MonitorID)
	}
	if filter.OpenOnly {
		query = query.Where("resolved_at IS NULL")
	}

	var incidents []models.Incident
	if err := query.Order("started_at DESC, id ASC").Find(&incidents).Error; err != nil {
		return nil, fmt.Errorf("Store.ListIncidents: %w", err)
	}
	return incidents, nil
}

// ResolveIncident resolves an open incident at the given time. It reports
// false when the incident is missing or already resolved.
func (s *Store) ResolveIncident(ctx context.Context, id string, at time.Time) (bool, error) {
	var resolved *models.Incident
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var incidents []models.Incident
		if err := tx.Where("id = ?", id).Limit(1).Find(&incidents).Error; err != nil {
			return err
		}
		if len(incidents) == 0 || !incidents[0].IsOpen() {
			return nil
		}
		var err error
		resolved, err = resolve(tx, &incidents[0], at)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("Store.ResolveIncident: %w", err)
	}
	return resolved != nil, nil
}

// PendingNotifications returns open incidents that have not been announced.
func (s *Store) PendingNotifications(ctx context.Context) ([]models.Incident, error) {
	var incidents []models.Incident
	err := s.db.WithContext(ctx).
		Where("notified = ? AND resolved_at IS NULL", false).
		Order("started_at ASC").
		Find(&incidents).Error
	if err != nil {
		return nil, fmt.Errorf("Store.PendingNotifications: %w", err)
	}
	return incidents, nil
}

// MarkIncidentNotified flips the notified flag.
func (s *Store) MarkIncidentNotified(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Table("incidents").Where("id = ?", id).Update("notified", true)
	if result.Error != nil {
		return fmt.Errorf("Store.MarkIncidentNotified: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("Store.MarkIncidentNotified: %w", models.ErrNotFound)
	}
	return nil
}

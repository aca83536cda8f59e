package store

import (
	"context"
	"fmt"
	"time"

	"github.com/fuomag9/uptimed/internal/models"
)

const statsQuery = `
SELECT
	COUNT(*) AS total,
	COALESCE(SUM(CASE WHEN status = 'up' THEN 1 ELSE 0 END), 0) AS up,
	COALESCE(SUM(CASE WHEN status = 'up' AND response_time_ms IS NOT NULL THEN response_time_ms ELSE 0 END), 0) AS latency_sum,
	COALESCE(SUM(CASE WHEN status = 'up' AND response_time_ms IS NOT NULL THEN 1 ELSE 0 END), 0) AS latency_count
FROM heartbeats
WHERE monitor_id = ? AND "timestamp" >= ?`

// HeartbeatStats aggregates the heartbeats recorded for a monitor since the given time.
func (s *Store) HeartbeatStats(ctx context.Context, monitorID string, since time.Time) (models.HeartbeatStats, error) {
	var stats models.HeartbeatStats
	err := s.db.WithContext(ctx).Raw(statsQuery, monitorID, models.FormatTime(since)).Scan(&stats).Error
	if err != nil {
		return models.HeartbeatStats{}, fmt.Errorf("Store.HeartbeatStats: %w", err)
	}
	return stats, nil
}

// RecentHeartbeats returns the most recent limit heartbeats, oldest first.
func (s *Store) RecentHeartbeats(ctx context.Context, monitorID string, limit int) ([]models.Heartbeat, error) {
	var heartbeats []models.Heartbeat
	err := s.db.WithContext(ctx).
		Where("monitor_id = ?", monitorID).
		Order("id DESC").
		Limit(limit).
		Find(&heartbeats).Error
	if err != nil {
		return nil, fmt.Errorf("Store.RecentHeartbeats: %w", err)
	}

	for i, j := 0, len(heartbeats)-1; i < j; i, j = i+1, j-1 {
		heartbeats[i], heartbeats[j] = heartbeats[j], heartbeats[i]
	}
	return heartbeats, nil
}

// LastHeartbeatAt returns the time of the newest heartbeat with the given
// status, or nil when there is none.
func (s *Store) LastHeartbeatAt(ctx context.Context, monitorID, status string) (*time.Time, error) {
	var heartbeats []models.Heartbeat
	err := s.db.WithContext(ctx).
		Where("monitor_id = ? AND status = ?", monitorID, status).
		Order("id DESC").
		Limit(1).
		Find(&heartbeats).Error
	if err != nil {
		return nil, fmt.Errorf("Store.LastHeartbeatAt: %w", err)
	}
	if len(heartbeats) == 0 {
		return nil, nil
	}
	t := heartbeats[0].Timestamp.Time
	return &t, nil
}

// PruneHeartbeats deletes heartbeats older than before and returns how many
// rows were removed.
func (s *Store) PruneHeartbeats(ctx context.Context, before time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where(`"timestamp" < ?`, models.FormatTime(before)).
		Delete(&models.Heartbeat{})
	if result.Error != nil {
		return 0, fmt.Errorf("Store.PruneHeartbeats: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Vacuum reclaims free space. On postgres it also refreshes planner statistics.
func (s *Store) Vacuum(ctx context.Context) error {
	stmt := "VACUUM"
	if s.db.Dialector.Name() == "postgres" {
		stmt = "VACUUM ANALYZE"
	}
	if err := s.db.WithContext(ctx).Exec(stmt).Error; err != nil {
		return fmt.Errorf("Store.Vacuum: %w", err)
	}
	return nil
}

package uptime

import (
	"context"
	"time"

	"github.com/fuomag9/uptimed/internal/models"
)

// StatsSource aggregates a monitor's heartbeats since a point in time.
type StatsSource interface {
	HeartbeatStats(ctx context.Context, monitorID string, since time.Time) (models.HeartbeatStats, error)
}

// Calculator calculates uptime statistics for monitors
type Calculator struct {
	source StatsSource
	now    func() time.Time
}

// NewCalculator creates a new uptime calculator. now supplies the end of every window.
func NewCalculator(source StatsSource, now func() time.Time) *Calculator {
	if now == nil {
		now = time.Now
	}
	return &Calculator{source: source, now: now}
}

// UptimeStats represents uptime statistics for a monitor
type UptimeStats struct {
	MonitorID        string    `json:"monitor_id"`
	UptimePercentage float64   `json:"uptime_percentage"`
	TotalChecks      int64     `json:"total_checks"`
	UpChecks         int64     `json:"up_checks"`
	DownChecks       int64     `json:"down_checks"`
	AverageLatencyMs float64   `json:"average_latency_ms"`
	Since            time.Time `json:"since"`
}

// Percent returns 100 × up / total, or 0 when there are no heartbeats.
func Percent(stats models.HeartbeatStats) float64 {
	if stats.Total == 0 {
		return 0.0
	}
	return float64(stats.Up) / float64(stats.Total) * 100
}

// AverageLatency returns the mean latency of up heartbeats that carry one,
// or 0 when there are none.
func AverageLatency(stats models.HeartbeatStats) float64 {
	if stats.LatencyCount == 0 {
		return 0.0
	}
	return stats.LatencySum / float64(stats.LatencyCount)
}

// UptimePercent calculates uptime over the trailing days.
func (c *Calculator) UptimePercent(ctx context.Context, monitorID string, days int) (float64, error) {
	stats, err := c.source.HeartbeatStats(ctx, monitorID, c.now().Add(-time.Duration(days)*24*time.Hour))
	if err != nil {
		return 0, err
	}
	return Percent(stats), nil
}

// AverageResponseTime calculates the mean latency over the trailing hours.
func (c *Calculator) AverageResponseTime(ctx context.Context, monitorID string, hours int) (float64, error) {
	stats, err := c.source.HeartbeatStats(ctx, monitorID, c.now().Add(-time.Duration(hours)*time.Hour))
	if err != nil {
		return 0, err
	}
	return AverageLatency(stats), nil
}

// CalculateUptimeForPeriod summarizes the trailing period.
func (c *Calculator) CalculateUptimeForPeriod(ctx context.Context, monitorID string, period time.Duration) (*UptimeStats, error) {
	since := c.now().Add(-period)
	stats, err := c.source.HeartbeatStats(ctx, monitorID, since)
	if err != nil {
		return nil, err
	}

	return &UptimeStats{
		MonitorID:        monitorID,
		UptimePercentage: Percent(stats),
		TotalChecks:      stats.Total,
		UpChecks:         stats.Up,
		DownChecks:       stats.Total - stats.Up,
		AverageLatencyMs: AverageLatency(stats),
		Since:            since.UTC(),
	}, nil
}

package uptime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fuomag9/uptimed/internal/models"
)

type mockSource struct {
	mock.Mock
}

func (m *mockSource) HeartbeatStats(ctx context.Context, monitorID string, since time.Time) (models.HeartbeatStats, error) {
	args := m.Called(ctx, monitorID, since)
	return args.Get(0).(models.HeartbeatStats), args.Error(1)
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 0.0, Percent(models.HeartbeatStats{}))
	assert.Equal(t, 100.0, Percent(models.HeartbeatStats{Total: 4, Up: 4}))
	assert.InDelta(t, 70.0, Percent(models.HeartbeatStats{Total: 10, Up: 7}), 1e-9)
	assert.Equal(t, 0.0, Percent(models.HeartbeatStats{Total: 3}))
}

func TestAverageLatency(t *testing.T) {
	assert.Equal(t, 0.0, AverageLatency(models.HeartbeatStats{Total: 5}))
	assert.InDelta(t, 20.0, AverageLatency(models.HeartbeatStats{LatencySum: 60, LatencyCount: 3}), 1e-9)
}

func TestCalculatorWindows(t *testing.T) {
	now := time.Date(2026, 4, 10, 8, 0, 0, 0, time.UTC)
	src := &mockSource{}
	c := NewCalculator(src, func() time.Time { return now })
	ctx := context.Background()

	src.On("HeartbeatStats", ctx, "m1", now.Add(-30*24*time.Hour)).
		Return(models.HeartbeatStats{Total: 10, Up: 7}, nil).Once()
	pct, err := c.UptimePercent(ctx, "m1", 30)
	require.NoError(t, err)
	assert.InDelta(t, 70.0, pct, 1e-9)

	src.On("HeartbeatStats", ctx, "m1", now.Add(-24*time.Hour)).
		Return(models.HeartbeatStats{Total: 2, Up: 2, LatencySum: 30, LatencyCount: 2}, nil).Once()
	avg, err := c.AverageResponseTime(ctx, "m1", 24)
	require.NoError(t, err)
	assert.InDelta(t, 15.0, avg, 1e-9)

	src.On("HeartbeatStats", ctx, "m1", now.Add(-time.Hour)).
		Return(models.HeartbeatStats{Total: 4, Up: 3, LatencySum: 9, LatencyCount: 3}, nil).Once()
	stats, err := c.CalculateUptimeForPeriod(ctx, "m1", time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.DownChecks)
	assert.InDelta(t, 75.0, stats.UptimePercentage, 1e-9)
	assert.InDelta(t, 3.0, stats.AverageLatencyMs, 1e-9)

	src.AssertExpectations(t)
}

func TestCalculatorPropagatesErrors(t *testing.T) {
	src := &mockSource{}
	src.On("HeartbeatStats", mock.Anything, "m1", mock.Anything).Return(models.HeartbeatStats{}, errors.New("boom"))

	_, err := NewCalculator(src, nil).UptimePercent(context.Background(), "m1", 1)
	assert.Error(t, err)
}

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fuomag9/uptimed/internal/models"
	"github.com/fuomag9/uptimed/internal/store"
	"github.com/fuomag9/uptimed/internal/store/storetest"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func newMonitor(id string) *models.Monitor {
	return &models.Monitor{
		ID:        id,
		Name:      "api " + id,
		Type:      models.KindHTTP,
		Target:    "https://example.com",
		IntervalS: 60,
		TimeoutS:  10,
		Status:    models.StatusUnknown,
		Tags:      []string{"prod"},
		CreatedAt: models.NewTimestamp(t0),
	}
}

func TestMonitorRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)

	require.NoError(t, s.CreateMonitor(ctx, newMonitor("m1")))

	got, err := s.GetMonitor(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "api m1", got.Name)
	assert.Equal(t, []string{"prod"}, got.Tags)
	assert.Equal(t, models.StatusUnknown, got.Status)
	assert.Nil(t, got.UpSince)
	assert.Nil(t, got.LastCheck)
	assert.True(t, got.CreatedAt.Equal(t0))

	count, err := s.CountMonitors(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	_, err = s.GetMonitor(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestSetMonitorStatus(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	require.NoError(t, s.CreateMonitor(ctx, newMonitor("m1")))

	require.NoError(t, s.SetMonitorStatus(ctx, "m1", models.StatusPaused))
	got, err := s.GetMonitor(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaused, got.Status)

	assert.ErrorIs(t, s.SetMonitorStatus(ctx, "missing", models.StatusPaused), models.ErrNotFound)
}

func TestTouchMonitor(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	require.NoError(t, s.CreateMonitor(ctx, newMonitor("m1")))

	at := models.NewTimestamp(time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC))
	require.NoError(t, s.TouchMonitor(ctx, "m1", at))

	got, err := s.GetMonitor(ctx, "m1")
	require.NoError(t, err)
	require.NotNil(t, got.LastCheck)
	assert.True(t, got.LastCheck.Equal(at.Time))

	beats, err := s.RecentHeartbeats(ctx, "m1", 10)
	require.NoError(t, err)
	assert.Empty(t, beats)

	assert.ErrorIs(t, s.TouchMonitor(ctx, "missing", at), models.ErrNotFound)
}

func TestApplyCheckOpensAndResolvesIncident(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	require.NoError(t, s.CreateMonitor(ctx, newMonitor("m1")))

	down := t0.Add(time.Minute)
	res, err := s.ApplyCheck(ctx, "m1", store.CheckWrite{
		Heartbeat: models.Heartbeat{Timestamp: models.NewTimestamp(down), Status: models.StatusDown},
		Updates:   map[string]interface{}{"status": models.StatusDown, "last_check": models.NewTimestamp(down)},
		Open:      &models.Incident{ID: "i1", StartedAt: models.NewTimestamp(down), Cause: "timeout"},
	})
	require.NoError(t, err)
	require.NotNil(t, res.Opened)
	assert.NotZero(t, res.Heartbeat.ID)

	// A second open request must not create another incident.
	res, err = s.ApplyCheck(ctx, "m1", store.CheckWrite{
		Heartbeat: models.Heartbeat{Timestamp: models.NewTimestamp(down.Add(time.Minute)), Status: models.StatusDown},
		Open:      &models.Incident{ID: "i2", StartedAt: models.NewTimestamp(down.Add(time.Minute))},
	})
	require.NoError(t, err)
	assert.Nil(t, res.Opened)

	open, err := s.GetOpenIncident(ctx, "m1")
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, "i1", open.ID)
	assert.Equal(t, "timeout", open.Cause)

	up := down.Add(90 * time.Second)
	res, err = s.ApplyCheck(ctx, "m1", store.CheckWrite{
		Heartbeat: models.Heartbeat{Timestamp: models.NewTimestamp(up), Status: models.StatusUp, ResponseTimeMs: ptr(12.5)},
		Updates:   map[string]interface{}{"status": models.StatusUp, "up_since": models.NewTimestamp(up)},
		ResolveAt: &up,
	})
	require.NoError(t, err)
	require.NotNil(t, res.Resolved)
	assert.EqualValues(t, 90, *res.Resolved.DurationS)

	inc, err := s.GetIncident(ctx, "i1")
	require.NoError(t, err)
	require.NotNil(t, inc.ResolvedAt)
	assert.True(t, inc.ResolvedAt.Equal(up))
	assert.EqualValues(t, 90, *inc.DurationS)

	m, err := s.GetMonitor(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusUp, m.Status)
	require.NotNil(t, m.UpSince)
	assert.True(t, m.UpSince.Equal(up))
}

func TestApplyCheckUnknownMonitorRollsBack(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	require.NoError(t, s.CreateMonitor(ctx, newMonitor("m1")))

	_, err := s.ApplyCheck(ctx, "ghost", store.CheckWrite{
		Heartbeat: models.Heartbeat{Timestamp: models.NewTimestamp(t0), Status: models.StatusUp},
		Updates:   map[string]interface{}{"status": models.StatusUp},
	})
	require.Error(t, err)

	hbs, err := s.RecentHeartbeats(ctx, "ghost", 10)
	require.NoError(t, err)
	assert.Empty(t, hbs)
}

func TestResolveIncidentIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	require.NoError(t, s.CreateMonitor(ctx, newMonitor("m1")))
	_, err := s.ApplyCheck(ctx, "m1", store.CheckWrite{
		Heartbeat: models.Heartbeat{Timestamp: models.NewTimestamp(t0), Status: models.StatusDown},
		Open:      &models.Incident{ID: "i1", StartedAt: models.NewTimestamp(t0)},
	})
	require.NoError(t, err)

	ok, err := s.ResolveIncident(ctx, "i1", t0.Add(5*time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.ResolveIncident(ctx, "i1", t0.Add(10*time.Minute))
	require.NoError(t, err)
	assert.False(t, ok)

	inc, err := s.GetIncident(ctx, "i1")
	require.NoError(t, err)
	assert.EqualValues(t, 300, *inc.DurationS)

	ok, err = s.ResolveIncident(ctx, "missing", t0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListIncidentsAndNotifications(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	require.NoError(t, s.CreateMonitor(ctx, newMonitor("m1")))
	require.NoError(t, s.CreateMonitor(ctx, newMonitor("m2")))

	for i, id := range []string{"m1", "m2"} {
		at := t0.Add(time.Duration(i) * time.Minute)
		_, err := s.ApplyCheck(ctx, id, store.CheckWrite{
			Heartbeat: models.Heartbeat{Timestamp: models.NewTimestamp(at), Status: models.StatusDown},
			Open:      &models.Incident{ID: "i-" + id, StartedAt: models.NewTimestamp(at)},
		})
		require.NoError(t, err)
	}

	all, err := s.ListIncidents(ctx, models.IncidentFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "i-m2", all[0].ID)

	byMonitor, err := s.ListIncidents(ctx, models.IncidentFilter{MonitorID: "m1"})
	require.NoError(t, err)
	require.Len(t, byMonitor, 1)

	pending, err := s.PendingNotifications(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	require.NoError(t, s.MarkIncidentNotified(ctx, "i-m1"))
	_, err = s.ResolveIncident(ctx, "i-m2", t0.Add(time.Hour))
	require.NoError(t, err)

	pending, err = s.PendingNotifications(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	open, err := s.ListIncidents(ctx, models.IncidentFilter{OpenOnly: true})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "i-m1", open[0].ID)
	assert.True(t, open[0].Notified)
}

func TestHeartbeatQueries(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	require.NoError(t, s.CreateMonitor(ctx, newMonitor("m1")))

	statuses := []string{"up", "up", "down", "up", "down"}
	for i, status := range statuses {
		hb := models.Heartbeat{Timestamp: models.NewTimestamp(t0.Add(time.Duration(i) * time.Hour)), Status: status}
		if status == models.StatusUp {
			hb.ResponseTimeMs = ptr(float64(10 * (i + 1)))
		}
		_, err := s.ApplyCheck(ctx, "m1", store.CheckWrite{Heartbeat: hb})
		require.NoError(t, err)
	}

	stats, err := s.HeartbeatStats(ctx, "m1", t0)
	require.NoError(t, err)
	assert.EqualValues(t, 5, stats.Total)
	assert.EqualValues(t, 3, stats.Up)
	assert.EqualValues(t, 3, stats.LatencyCount)
	assert.InDelta(t, 10+20+40, stats.LatencySum, 0.001)

	stats, err = s.HeartbeatStats(ctx, "m1", t0.Add(150*time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.Total)
	assert.EqualValues(t, 1, stats.Up)

	recent, err := s.RecentHeartbeats(ctx, "m1", 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, []string{"down", "up", "down"}, []string{recent[0].Status, recent[1].Status, recent[2].Status})
	assert.True(t, recent[0].Timestamp.Before(recent[2].Timestamp.Time))

	last, err := s.LastHeartbeatAt(ctx, "m1", models.StatusUp)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.True(t, last.Equal(t0.Add(3*time.Hour)))

	none, err := s.LastHeartbeatAt(ctx, "m1", "nope")
	require.NoError(t, err)
	assert.Nil(t, none)

	pruned, err := s.PruneHeartbeats(ctx, t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 2, pruned)

	stats, err = s.HeartbeatStats(ctx, "m1", t0)
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.Total)

	require.NoError(t, s.Vacuum(ctx))
}

func TestStatusPages(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	require.NoError(t, s.CreateMonitor(ctx, newMonitor("m1")))

	page := &models.StatusPage{ID: "p1", Name: "Public", Slug: "public", MonitorIDs: []string{"m1", "gone"}, Theme: models.ThemeDark}
	require.NoError(t, s.CreateStatusPage(ctx, page))

	dup := &models.StatusPage{ID: "p2", Name: "Other", Slug: "public", Theme: models.ThemeLight}
	assert.ErrorIs(t, s.CreateStatusPage(ctx, dup), store.ErrDuplicate)

	got, err := s.GetStatusPageBySlug(ctx, "public")
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "gone"}, got.MonitorIDs)
	assert.Equal(t, models.ThemeDark, got.Theme)

	got.Description = "All systems"
	require.NoError(t, s.UpdateStatusPage(ctx, got))
	got, err = s.GetStatusPageBySlug(ctx, "public")
	require.NoError(t, err)
	assert.Equal(t, "All systems", got.Description)

	count, err := s.CountStatusPages(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	_, err = s.GetStatusPageBySlug(ctx, "nope")
	assert.ErrorIs(t, err, models.ErrNotFound)

	monitors, err := s.GetMonitorsByIDs(ctx, got.MonitorIDs)
	require.NoError(t, err)
	assert.Len(t, monitors, 1)
	assert.Contains(t, monitors, "m1")
}

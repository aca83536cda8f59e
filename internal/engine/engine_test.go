package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fuomag9/uptimed/internal/billing"
	"github.com/fuomag9/uptimed/internal/models"
	"github.com/fuomag9/uptimed/internal/monitor"
	"github.com/fuomag9/uptimed/internal/store"
	"github.com/fuomag9/uptimed/internal/store/storetest"
)

type mockChecker struct {
	mock.Mock
	kind string
}

func (m *mockChecker) Name() string { return m.kind }

func (m *mockChecker) Check(ctx context.Context, mon *models.Monitor) monitor.Outcome {
	args := m.Called(ctx, mon.ID)
	return args.Get(0).(monitor.Outcome)
}

func (m *mockChecker) Validate(mon *models.Monitor) error { return nil }

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	engine  *Engine
	store   *store.Store
	checker *mockChecker
	clock   *clock
	gate    *billing.Gate
}

func newFixture(t *testing.T, plan billing.Plan) *fixture {
	t.Helper()

	s := storetest.New(t)
	clk := &clock{t: time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)}
	checker := &mockChecker{kind: models.KindHTTP}
	registry := monitor.NewRegistry(
		checker,
		monitor.NewPushChecker(s).WithClock(clk.Now),
	)
	gate := billing.NewGate(plan)

	e := New(s, monitor.NewExecutor(registry), gate, Options{
		Defaults: Defaults{IntervalS: 60, TimeoutS: 10, Retries: 3},
		Workers:  4,
		Logger:   zap.NewNop(),
		Now:      clk.Now,
	})

	return &fixture{engine: e, store: s, checker: checker, clock: clk, gate: gate}
}

func (f *fixture) addHTTP(t *testing.T, name string) string {
	t.Helper()
	id, err := f.engine.AddMonitor(context.Background(), MonitorSpec{
		Name: name, Kind: models.KindHTTP, Target: "https://" + name + ".example.com", IntervalS: 300,
	})
	require.NoError(t, err)
	return id
}

func up(ms float64) monitor.Outcome {
	return monitor.Outcome{OK: true, LatencyMs: &ms}
}

func down(cause string) monitor.Outcome {
	return monitor.Failure(cause)
}

func TestAddMonitor(t *testing.T) {
	f := newFixture(t, billing.Free)
	ctx := context.Background()

	id, err := f.engine.AddMonitor(ctx, MonitorSpec{
		Name: "api", Kind: models.KindHTTP, Target: "https://api.example.com", IntervalS: 300, Tags: []string{"prod"},
	})
	require.NoError(t, err)
	assert.Len(t, id, 8)

	m, err := f.engine.GetMonitor(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusUnknown, m.Status)
	assert.Nil(t, m.UpSince)
	assert.Nil(t, m.LastCheck)
	assert.Equal(t, 10, m.TimeoutS)
	assert.Equal(t, []string{"prod"}, m.Tags)
	assert.True(t, m.CreatedAt.Equal(f.clock.Now()))
}

func TestAddMonitorRetries(t *testing.T) {
	f := newFixture(t, billing.Business)
	ctx := context.Background()

	zero, two, negative := 0, 2, -1
	tests := []struct {
		name    string
		retries *int
		want    int
	}{
		{name: "unset uses configured default", retries: nil, want: 3},
		{name: "explicit zero", retries: &zero, want: 0},
		{name: "explicit value", retries: &two, want: 2},
		{name: "negative uses configured default", retries: &negative, want: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := f.engine.AddMonitor(ctx, MonitorSpec{
				Name: "a", Kind: models.KindHTTP, Target: "https://a.example.com", Retries: tt.retries,
			})
			require.NoError(t, err)
			m, err := f.engine.GetMonitor(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.Retries)
		})
	}
}

func TestAddMonitorRejections(t *testing.T) {
	f := newFixture(t, billing.Free)
	ctx := context.Background()

	_, err := f.engine.AddMonitor(ctx, MonitorSpec{Name: "x", Kind: "smtp", Target: "mail", IntervalS: 300})
	assert.ErrorIs(t, err, ErrInvalidProtocol)

	_, err = f.engine.AddMonitor(ctx, MonitorSpec{Name: "x", Kind: models.KindHTTP, Target: "https://x", IntervalS: 60})
	assert.ErrorIs(t, err, ErrIntervalTooShort)

	_, err = f.engine.AddMonitor(ctx, MonitorSpec{Name: "x", Kind: models.KindHTTP, Target: "https://x", IntervalS: -5})
	assert.ErrorIs(t, err, ErrIntervalTooShort)

	count, err := f.store.CountMonitors(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestAddMonitorDefaultIntervalHonoursPlanMinimum(t *testing.T) {
	f := newFixture(t, billing.Free)
	ctx := context.Background()

	id, err := f.engine.AddMonitor(ctx, MonitorSpec{Name: "x", Kind: models.KindHTTP, Target: "https://x"})
	require.NoError(t, err)
	m, err := f.engine.GetMonitor(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 300, m.IntervalS)

	f.gate.Set(billing.Business)
	id, err = f.engine.AddMonitor(ctx, MonitorSpec{Name: "y", Kind: models.KindHTTP, Target: "https://y"})
	require.NoError(t, err)
	m, err = f.engine.GetMonitor(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 60, m.IntervalS)
}

func TestFreePlanQuota(t *testing.T) {
	f := newFixture(t, billing.Free)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		f.addHTTP(t, "site")
	}

	_, err := f.engine.AddMonitor(ctx, MonitorSpec{Name: "sixth", Kind: models.KindHTTP, Target: "https://x", IntervalS: 300})
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	count, err := f.store.CountMonitors(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 5, count)

	// Upgrading lifts the limit for new admissions.
	f.gate.Set(billing.Pro)
	f.addHTTP(t, "sixth")
}

func TestConcurrentAdmissionRespectsQuota(t *testing.T) {
	f := newFixture(t, billing.Free)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.AddMonitor(ctx, MonitorSpec{Name: "c", Kind: models.KindHTTP, Target: "https://c", IntervalS: 300})
			if err == nil {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, created)
}

func TestIncidentLifecycle(t *testing.T) {
	f := newFixture(t, billing.Free)
	ctx := context.Background()
	id := f.addHTTP(t, "api")

	f.checker.On("Check", mock.Anything, id).Return(down("HTTP 503")).Once()
	failedAt := f.clock.Now()
	ok, err := f.engine.RunCheck(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)

	m, err := f.engine.GetMonitor(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDown, m.Status)
	assert.Nil(t, m.UpSince)
	require.NotNil(t, m.LastCheck)

	open, err := f.engine.GetIncidents(ctx, id, true)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.True(t, open[0].StartedAt.Equal(failedAt))
	assert.Equal(t, "HTTP 503", open[0].Cause)
	assert.False(t, open[0].Notified)

	// Further failures keep the first incident and its cause.
	f.clock.Advance(30 * time.Second)
	f.checker.On("Check", mock.Anything, id).Return(down("timeout")).Once()
	_, err = f.engine.RunCheck(ctx, id)
	require.NoError(t, err)

	open, err = f.engine.GetIncidents(ctx, id, true)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "HTTP 503", open[0].Cause)

	f.clock.Advance(60 * time.Second)
	recoveredAt := f.clock.Now()
	f.checker.On("Check", mock.Anything, id).Return(up(42)).Once()
	ok, err = f.engine.RunCheck(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)

	m, err = f.engine.GetMonitor(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusUp, m.Status)
	require.NotNil(t, m.UpSince)
	assert.True(t, m.UpSince.Equal(recoveredAt))
	require.NotNil(t, m.ResponseTimeMs)
	assert.Equal(t, 42.0, *m.ResponseTimeMs)

	all, err := f.engine.GetIncidents(ctx, id, false)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.NotNil(t, all[0].ResolvedAt)
	require.NotNil(t, all[0].DurationS)
	assert.EqualValues(t, 90, *all[0].DurationS)
	assert.EqualValues(t, all[0].ResolvedAt.Sub(all[0].StartedAt.Time)/time.Second, *all[0].DurationS)

	history, err := f.engine.GetHeartbeatHistory(ctx, id, 10)
	require.NoError(t, err)
	assert.Len(t, history, 3)

	f.checker.AssertExpectations(t)
}

func TestUpSinceSurvivesConsecutiveSuccesses(t *testing.T) {
	f := newFixture(t, billing.Free)
	ctx := context.Background()
	id := f.addHTTP(t, "api")

	f.checker.On("Check", mock.Anything, id).Return(up(10))
	first := f.clock.Now()
	_, err := f.engine.RunCheck(ctx, id)
	require.NoError(t, err)

	f.clock.Advance(5 * time.Minute)
	_, err = f.engine.RunCheck(ctx, id)
	require.NoError(t, err)

	m, err := f.engine.GetMonitor(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, m.UpSince)
	assert.True(t, m.UpSince.Equal(first))
	assert.True(t, m.LastCheck.Equal(f.clock.Now()))

	incidents, err := f.engine.GetIncidents(ctx, id, false)
	require.NoError(t, err)
	assert.Empty(t, incidents)
}

func TestAtMostOneOpenIncidentAcrossSequences(t *testing.T) {
	f := newFixture(t, billing.Free)
	ctx := context.Background()
	id := f.addHTTP(t, "api")

	sequence := []bool{false, false, true, false, true, true, false, false, false, true, false}
	for _, ok := range sequence {
		outcome := up(5)
		if !ok {
			outcome = down("refused")
		}
		f.checker.On("Check", mock.Anything, id).Return(outcome).Once()
		_, err := f.engine.RunCheck(ctx, id)
		require.NoError(t, err)
		f.clock.Advance(time.Minute)

		open, err := f.engine.GetIncidents(ctx, id, true)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(open), 1)
	}

	all, err := f.engine.GetIncidents(ctx, id, false)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestCertExpiryKeptWhenProbeReportsNone(t *testing.T) {
	f := newFixture(t, billing.Free)
	ctx := context.Background()
	id := f.addHTTP(t, "api")

	days := 42
	withCert := up(20)
	withCert.CertExpiryDays = &days
	f.checker.On("Check", mock.Anything, id).Return(withCert).Once()
	f.checker.On("Check", mock.Anything, id).Return(down("connection reset")).Once()

	ok, err := f.engine.RunCheck(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)

	f.clock.Advance(5 * time.Minute)
	ok, err = f.engine.RunCheck(ctx, id)
	require.NoError(t, err)
	require.False(t, ok)

	m, err := f.engine.GetMonitor(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDown, m.Status)
	require.NotNil(t, m.CertExpiryDays)
	assert.Equal(t, 42, *m.CertExpiryDays)
	require.NotNil(t, m.LastCheck)
	assert.True(t, m.LastCheck.Equal(f.clock.Now()))
}

func TestCheckTimeoutIsRecordedAsFailure(t *testing.T) {
	f := newFixture(t, billing.Business)
	ctx := context.Background()

	id, err := f.engine.AddMonitor(ctx, MonitorSpec{Name: "slow", Kind: models.KindHTTP, Target: "https://slow", IntervalS: 60, TimeoutS: 1})
	require.NoError(t, err)

	f.checker.On("Check", mock.Anything, id).Run(func(args mock.Arguments) {
		<-args.Get(0).(context.Context).Done()
	}).Return(down("context deadline exceeded")).Once()

	ok, err := f.engine.RunCheck(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)

	open, err := f.engine.GetIncidents(ctx, id, true)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, monitor.TimeoutCause, open[0].Cause)

	history, err := f.engine.GetHeartbeatHistory(ctx, id, 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestRunCheckMissingMonitor(t *testing.T) {
	f := newFixture(t, billing.Free)
	_, err := f.engine.RunCheck(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrMonitorNotFound)
}

func TestPausedMonitorIsNotProbed(t *testing.T) {
	f := newFixture(t, billing.Free)
	ctx := context.Background()
	id := f.addHTTP(t, "api")

	f.checker.On("Check", mock.Anything, id).Return(up(12)).Once()
	_, err := f.engine.RunCheck(ctx, id)
	require.NoError(t, err)

	require.NoError(t, f.engine.SetMonitorStatus(ctx, id, AdminPaused))
	m, err := f.engine.GetMonitor(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaused, m.Status)
	assert.Nil(t, m.UpSince)

	ok, err := f.engine.RunCheck(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok, "last known state is returned")

	history, err := f.engine.GetHeartbeatHistory(ctx, id, 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	require.NoError(t, f.engine.SetMonitorStatus(ctx, id, AdminActive))
	m, err = f.engine.GetMonitor(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusUnknown, m.Status)

	assert.ErrorIs(t, f.engine.SetMonitorStatus(ctx, id, "deleted"), ErrInvalidStatus)
	assert.ErrorIs(t, f.engine.SetMonitorStatus(ctx, "nope", AdminPaused), ErrMonitorNotFound)

	f.checker.AssertNumberOfCalls(t, "Check", 1)
}

func TestRunAllChecksSkipsAdministrativeMonitors(t *testing.T) {
	f := newFixture(t, billing.Pro)
	ctx := context.Background()

	a := f.addHTTP(t, "a")
	b := f.addHTTP(t, "b")
	c := f.addHTTP(t, "c")
	d := f.addHTTP(t, "d")
	require.NoError(t, f.engine.SetMonitorStatus(ctx, c, AdminPaused))
	require.NoError(t, f.engine.SetMonitorStatus(ctx, d, AdminMaintenance))

	f.checker.On("Check", mock.Anything, a).Return(up(3))
	f.checker.On("Check", mock.Anything, b).Return(down("refused"))

	results, err := f.engine.RunAllChecks(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{a: true, b: false}, results)
}

func TestRunChecksReportsStructuralErrors(t *testing.T) {
	f := newFixture(t, billing.Pro)
	ctx := context.Background()

	a := f.addHTTP(t, "a")
	f.checker.On("Check", mock.Anything, a).Return(up(3))

	results, err := f.engine.RunChecks(ctx, []string{a, "ghost"})
	assert.ErrorIs(t, err, ErrMonitorNotFound)
	assert.Equal(t, map[string]bool{a: true}, results)
}

func TestDueMonitors(t *testing.T) {
	f := newFixture(t, billing.Pro)
	ctx := context.Background()

	fresh := f.addHTTP(t, "fresh")
	checked := f.addHTTP(t, "checked")
	paused := f.addHTTP(t, "paused")
	require.NoError(t, f.engine.SetMonitorStatus(ctx, paused, AdminPaused))

	f.checker.On("Check", mock.Anything, checked).Return(up(1))
	_, err := f.engine.RunCheck(ctx, checked)
	require.NoError(t, err)

	ids := func(ms []models.Monitor) []string {
		out := make([]string, 0, len(ms))
		for _, m := range ms {
			out = append(out, m.ID)
		}
		return out
	}

	due, err := f.engine.DueMonitors(ctx, f.clock.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, []string{fresh}, ids(due))

	due, err = f.engine.DueMonitors(ctx, f.clock.Now().Add(300*time.Second))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{fresh, checked}, ids(due))
}

func TestAggregation(t *testing.T) {
	f := newFixture(t, billing.Free)
	ctx := context.Background()
	id := f.addHTTP(t, "api")

	pct, err := f.engine.GetUptimePercent(ctx, id, 30)
	require.NoError(t, err)
	assert.Equal(t, 0.0, pct)

	avg, err := f.engine.GetResponseTimeAvg(ctx, id, 24)
	require.NoError(t, err)
	assert.Equal(t, 0.0, avg)

	for i := 0; i < 10; i++ {
		outcome := up(float64(10 * (i + 1)))
		if i >= 7 {
			outcome = down("refused")
		}
		f.checker.On("Check", mock.Anything, id).Return(outcome).Once()
		_, err := f.engine.RunCheck(ctx, id)
		require.NoError(t, err)
		f.clock.Advance(time.Minute)
	}

	pct, err = f.engine.GetUptimePercent(ctx, id, 30)
	require.NoError(t, err)
	assert.InDelta(t, 70.0, pct, 1e-9)

	avg, err = f.engine.GetResponseTimeAvg(ctx, id, 24)
	require.NoError(t, err)
	assert.InDelta(t, 40.0, avg, 1e-9)

	// Outside the window nothing counts.
	f.clock.Advance(31 * 24 * time.Hour)
	pct, err = f.engine.GetUptimePercent(ctx, id, 30)
	require.NoError(t, err)
	assert.Equal(t, 0.0, pct)

	_, err = f.engine.GetUptimePercent(ctx, "nope", 30)
	assert.ErrorIs(t, err, ErrMonitorNotFound)
}

func TestAllUpIsHundredPercent(t *testing.T) {
	f := newFixture(t, billing.Free)
	ctx := context.Background()
	id := f.addHTTP(t, "api")

	f.checker.On("Check", mock.Anything, id).Return(up(1))
	for i := 0; i < 4; i++ {
		_, err := f.engine.RunCheck(ctx, id)
		require.NoError(t, err)
		f.clock.Advance(time.Minute)
	}

	pct, err := f.engine.GetUptimePercent(ctx, id, 1)
	require.NoError(t, err)
	assert.Equal(t, 100.0, pct)
}

func TestHeartbeatHistoryIsOldestFirst(t *testing.T) {
	f := newFixture(t, billing.Free)
	ctx := context.Background()
	id := f.addHTTP(t, "api")

	latencies := []float64{1, 2, 3, 4, 5} // A..E
	for _, l := range latencies {
		f.checker.On("Check", mock.Anything, id).Return(up(l)).Once()
		_, err := f.engine.RunCheck(ctx, id)
		require.NoError(t, err)
		f.clock.Advance(time.Second)
	}

	history, err := f.engine.GetHeartbeatHistory(ctx, id, 3)
	require.NoError(t, err)
	require.Len(t, history, 3)
	for i, want := range []float64{3, 4, 5} {
		require.NotNil(t, history[i].ResponseTimeMs)
		assert.Equal(t, want, *history[i].ResponseTimeMs)
	}
}

func TestResolveIncidentTwice(t *testing.T) {
	f := newFixture(t, billing.Free)
	ctx := context.Background()
	id := f.addHTTP(t, "api")

	f.checker.On("Check", mock.Anything, id).Return(down("refused")).Once()
	_, err := f.engine.RunCheck(ctx, id)
	require.NoError(t, err)

	open, err := f.engine.GetIncidents(ctx, id, true)
	require.NoError(t, err)
	require.Len(t, open, 1)
	incID := open[0].ID

	f.clock.Advance(2 * time.Minute)
	ok, err := f.engine.ResolveIncident(ctx, incID)
	require.NoError(t, err)
	assert.True(t, ok)

	f.clock.Advance(time.Hour)
	ok, err = f.engine.ResolveIncident(ctx, incID)
	require.NoError(t, err)
	assert.False(t, ok)

	inc, err := f.engine.GetIncident(ctx, incID)
	require.NoError(t, err)
	assert.EqualValues(t, 120, *inc.DurationS)

	ok, err = f.engine.ResolveIncident(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPushMonitor(t *testing.T) {
	f := newFixture(t, billing.Business)
	ctx := context.Background()

	id, err := f.engine.AddMonitor(ctx, MonitorSpec{Name: "cron", Kind: models.KindPush, Target: "nightly-backup", IntervalS: 60})
	require.NoError(t, err)
	httpID := f.addHTTP(t, "api")

	// Never pushed, still in its grace window: not up yet, nothing recorded.
	ok, err := f.engine.RunCheck(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)
	m, err := f.engine.GetMonitor(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusUnknown, m.Status)

	_, err = f.engine.RecordPush(ctx, httpID)
	assert.ErrorIs(t, err, ErrNotPushMonitor)

	recorded, err := f.engine.RecordPush(ctx, id)
	require.NoError(t, err)
	assert.True(t, recorded)

	m, err = f.engine.GetMonitor(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusUp, m.Status)

	// Within the window the scheduled check records nothing but still counts
	// as a check, so the monitor is not due again until its next interval.
	f.clock.Advance(90 * time.Second)
	ok, err = f.engine.RunCheck(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)
	history, err := f.engine.GetHeartbeatHistory(ctx, id, 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	due, err := f.engine.DueMonitors(ctx, f.clock.Now().Add(30*time.Second))
	require.NoError(t, err)
	for _, d := range due {
		assert.NotEqual(t, id, d.ID)
	}
	due, err = f.engine.DueMonitors(ctx, f.clock.Now().Add(60*time.Second))
	require.NoError(t, err)
	var dueIDs []string
	for _, d := range due {
		dueIDs = append(dueIDs, d.ID)
	}
	assert.Contains(t, dueIDs, id)

	f.clock.Advance(60 * time.Second)
	ok, err = f.engine.RunCheck(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)

	open, err := f.engine.GetIncidents(ctx, id, true)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "no push received within 120s", open[0].Cause)

	// The next push resolves the incident.
	f.clock.Advance(10 * time.Second)
	_, err = f.engine.RecordPush(ctx, id)
	require.NoError(t, err)
	open, err = f.engine.GetIncidents(ctx, id, true)
	require.NoError(t, err)
	assert.Empty(t, open)

	require.NoError(t, f.engine.SetMonitorStatus(ctx, id, AdminMaintenance))
	recorded, err = f.engine.RecordPush(ctx, id)
	require.NoError(t, err)
	assert.False(t, recorded)
}

type recordingObserver struct {
	mu     sync.Mutex
	events []CheckEvent
}

func (r *recordingObserver) CheckRecorded(event CheckEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func TestObserversAndNotifications(t *testing.T) {
	f := newFixture(t, billing.Free)
	ctx := context.Background()
	id := f.addHTTP(t, "api")

	obs := &recordingObserver{}
	f.engine.AddObserver(obs)

	f.checker.On("Check", mock.Anything, id).Return(down("refused")).Once()
	_, err := f.engine.RunCheck(ctx, id)
	require.NoError(t, err)

	require.Len(t, obs.events, 1)
	event := obs.events[0]
	assert.Equal(t, models.StatusDown, event.Monitor.Status)
	assert.Equal(t, models.StatusDown, event.Heartbeat.Status)
	require.NotNil(t, event.Opened)
	assert.Nil(t, event.Resolved)

	pending, err := f.engine.PendingNotifications(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, event.Opened.ID, pending[0].ID)

	require.NoError(t, f.engine.MarkIncidentNotified(ctx, pending[0].ID))
	pending, err = f.engine.PendingNotifications(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	assert.ErrorIs(t, f.engine.MarkIncidentNotified(ctx, "missing"), ErrIncidentNotFound)
}

func TestKeyedMutexReleasesEntries(t *testing.T) {
	k := newKeyedMutex()
	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("m1")
			counter++
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
	assert.Zero(t, k.size())
}

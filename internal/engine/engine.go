// Package engine owns the monitoring state machine: monitor admission, check
// execution, incident detection and resolution, aggregation and status page
// assembly. All state lives in the Store; the engine re-reads what it needs on
// every operation.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fuomag9/uptimed/internal/billing"
	"github.com/fuomag9/uptimed/internal/models"
	"github.com/fuomag9/uptimed/internal/monitor"
	"github.com/fuomag9/uptimed/internal/store"
	"github.com/fuomag9/uptimed/internal/uptime"
)

const (
	DefaultUptimeDays   = 30
	DefaultLatencyHours = 24
	DefaultHistoryLimit = 100
)

// Store is the persistence the engine depends on.
type Store interface {
	CreateMonitor(ctx context.Context, m *models.Monitor) error
	CountMonitors(ctx context.Context) (int64, error)
	GetMonitor(ctx context.Context, id string) (*models.Monitor, error)
	ListMonitors(ctx context.Context) ([]models.Monitor, error)
	GetMonitorsByIDs(ctx context.Context, ids []string) (map[string]models.Monitor, error)
	SetMonitorStatus(ctx context.Context, id, status string) error
	TouchMonitor(ctx context.Context, id string, at models.Timestamp) error
	ApplyCheck(ctx context.Context, monitorID string, w store.CheckWrite) (*store.CheckResult, error)

	GetIncident(ctx context.Context, id string) (*models.Incident, error)
	ListIncidents(ctx context.Context, filter models.IncidentFilter) ([]models.Incident, error)
	ResolveIncident(ctx context.Context, id string, at time.Time) (bool, error)
	PendingNotifications(ctx context.Context) ([]models.Incident, error)
	MarkIncidentNotified(ctx context.Context, id string) error

	HeartbeatStats(ctx context.Context, monitorID string, since time.Time) (models.HeartbeatStats, error)
	RecentHeartbeats(ctx context.Context, monitorID string, limit int) ([]models.Heartbeat, error)

	CreateStatusPage(ctx context.Context, page *models.StatusPage) error
	UpdateStatusPage(ctx context.Context, page *models.StatusPage) error
	CountStatusPages(ctx context.Context) (int64, error)
	GetStatusPageBySlug(ctx context.Context, slug string) (*models.StatusPage, error)
	ListStatusPages(ctx context.Context) ([]models.StatusPage, error)
}

// PlanSource supplies the active plan at admission time.
type PlanSource interface {
	Current() billing.Plan
}

// CheckEvent describes one recorded check.
type CheckEvent struct {
	Monitor   models.Monitor
	Heartbeat models.Heartbeat
	Opened    *models.Incident
	Resolved  *models.Incident
	Cause     string
}

// Observer is notified after every recorded check. Implementations must not block.
type Observer interface {
	CheckRecorded(event CheckEvent)
}

// Defaults are applied to monitors created without explicit values.
type Defaults struct {
	IntervalS int
	TimeoutS  int
	Retries   int
}

// Options configures an Engine.
type Options struct {
	Defaults Defaults
	// Workers bounds concurrent checks in RunChecks.
	Workers int
	Logger  *zap.Logger
	Now     func() time.Time
}

// Engine is safe for concurrent use.
type Engine struct {
	store    Store
	executor *monitor.Executor
	plans    PlanSource
	calc     *uptime.Calculator
	defaults Defaults
	workers  int
	log      *zap.Logger
	now      func() time.Time

	locks     *keyedMutex
	admission sync.Mutex

	obsMu     sync.RWMutex
	observers []Observer
}

// New creates an engine.
func New(s Store, executor *monitor.Executor, plans PlanSource, opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Workers <= 0 {
		opts.Workers = 16
	}
	if opts.Defaults.IntervalS <= 0 {
		opts.Defaults.IntervalS = 60
	}
	if opts.Defaults.TimeoutS <= 0 {
		opts.Defaults.TimeoutS = 10
	}

	e := &Engine{
		store:    s,
		executor: executor,
		plans:    plans,
		defaults: opts.Defaults,
		workers:  opts.Workers,
		log:      opts.Logger,
		locks:    newKeyedMutex(),
	}
	// Stored timestamps have microsecond precision.
	e.now = func() time.Time { return opts.Now().UTC().Truncate(time.Microsecond) }
	e.calc = uptime.NewCalculator(s, e.now)
	return e
}

// AddObserver registers o for check events.
func (e *Engine) AddObserver(o Observer) {
	e.obsMu.Lock()
	defer e.obsMu.Unlock()
	e.observers = append(e.observers, o)
}

// Plan returns the active plan.
func (e *Engine) Plan() billing.Plan {
	return e.plans.Current()
}

func newID() string {
	return uuid.New().String()[:8]
}

// MonitorSpec describes a monitor to create. Zero IntervalS and TimeoutS and
// a nil Retries select the configured defaults.
type MonitorSpec struct {
	Name      string
	Kind      string
	Target    string
	IntervalS int
	TimeoutS  int
	Retries   *int
	Tags      []string
}

// AddMonitor validates spec against the active plan and inserts a monitor in
// status unknown. It returns the new id.
func (e *Engine) AddMonitor(ctx context.Context, spec MonitorSpec) (string, error) {
	if !models.IsValidKind(spec.Kind) {
		return "", fmt.Errorf("%w: %q", ErrInvalidProtocol, spec.Kind)
	}

	plan := e.plans.Current()

	interval := spec.IntervalS
	if interval == 0 {
		interval = max(e.defaults.IntervalS, plan.Quota.MinIntervalS)
	}
	if interval <= 0 || !plan.AllowsInterval(interval) {
		return "", fmt.Errorf("%w: %ds, plan %s requires at least %ds",
			ErrIntervalTooShort, interval, plan.Name, plan.Quota.MinIntervalS)
	}

	timeout := spec.TimeoutS
	if timeout <= 0 {
		timeout = e.defaults.TimeoutS
	}
	retries := e.defaults.Retries
	if spec.Retries != nil && *spec.Retries >= 0 {
		retries = *spec.Retries
	}
	tags := spec.Tags
	if tags == nil {
		tags = []string{}
	}

	m := &models.Monitor{
		ID:        newID(),
		Name:      spec.Name,
		Type:      spec.Kind,
		Target:    spec.Target,
		IntervalS: interval,
		TimeoutS:  timeout,
		Retries:   retries,
		Status:    models.StatusUnknown,
		Tags:      tags,
		CreatedAt: models.NewTimestamp(e.now()),
	}

	if err := e.executor.Validate(m); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}

	e.admission.Lock()
	defer e.admission.Unlock()

	count, err := e.store.CountMonitors(ctx)
	if err != nil {
		return "", err
	}
	if !plan.AllowsMonitors(count) {
		return "", fmt.Errorf("%w: plan %s allows %d monitors", ErrQuotaExceeded, plan.Name, plan.Quota.MaxMonitors)
	}

	if err := e.store.CreateMonitor(ctx, m); err != nil {
		return "", err
	}

	e.log.Info("monitor added",
		zap.String("monitor_id", m.ID),
		zap.String("name", m.Name),
		zap.String("type", m.Type),
		zap.Int("interval_s", m.IntervalS))

	return m.ID, nil
}

func (e *Engine) getMonitor(ctx context.Context, id string) (*models.Monitor, error) {
	m, err := e.store.GetMonitor(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrMonitorNotFound, id)
	}
	return m, err
}

// GetMonitor returns the current state of a monitor.
func (e *Engine) GetMonitor(ctx context.Context, id string) (*models.Monitor, error) {
	return e.getMonitor(ctx, id)
}

// ListMonitors returns every monitor in creation order.
func (e *Engine) ListMonitors(ctx context.Context) ([]models.Monitor, error) {
	return e.store.ListMonitors(ctx)
}

// Status values accepted by SetMonitorStatus.
const (
	AdminPaused      = models.StatusPaused
	AdminMaintenance = models.StatusMaintenance
	AdminActive      = "active"
)

// SetMonitorStatus pauses, puts into maintenance, or reactivates a monitor.
// Reactivated monitors return to unknown so the next check re-enters the
// state machine.
func (e *Engine) SetMonitorStatus(ctx context.Context, id, status string) error {
	var target string
	switch status {
	case AdminPaused, AdminMaintenance:
		target = status
	case AdminActive:
		target = models.StatusUnknown
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	unlock := e.locks.Lock(id)
	defer unlock()

	m, err := e.getMonitor(ctx, id)
	if err != nil {
		return err
	}
	if status == AdminActive && !models.IsAdministrative(m.Status) {
		return nil
	}

	if err := e.store.SetMonitorStatus(ctx, id, target); err != nil {
		return err
	}

	e.log.Info("monitor status changed",
		zap.String("monitor_id", id),
		zap.String("from", m.Status),
		zap.String("to", target))
	return nil
}

// DueMonitors returns active monitors whose next check is due at now.
func (e *Engine) DueMonitors(ctx context.Context, now time.Time) ([]models.Monitor, error) {
	monitors, err := e.store.ListMonitors(ctx)
	if err != nil {
		return nil, err
	}

	due := make([]models.Monitor, 0, len(monitors))
	for _, m := range monitors {
		if models.IsAdministrative(m.Status) {
			continue
		}
		if m.LastCheck == nil || !m.LastCheck.Add(time.Duration(m.IntervalS)*time.Second).After(now) {
			due = append(due, m)
		}
	}
	return due, nil
}

// RunCheck probes one monitor and records the outcome. It returns whether the
// monitor is up. Probe failures are recorded, never returned; only
// structural errors are.
func (e *Engine) RunCheck(ctx context.Context, id string) (bool, error) {
	ok, _, err := e.runCheck(ctx, id)
	return ok, err
}

func (e *Engine) runCheck(ctx context.Context, id string) (ok, skipped bool, err error) {
	unlock := e.locks.Lock(id)
	defer unlock()

	m, err := e.getMonitor(ctx, id)
	if err != nil {
		return false, false, err
	}

	if models.IsAdministrative(m.Status) {
		last, err := e.store.RecentHeartbeats(ctx, id, 1)
		if err != nil {
			return false, true, err
		}
		return len(last) == 1 && last[0].Status == models.StatusUp, true, nil
	}

	outcome, err := e.executor.Run(ctx, m)
	if err != nil {
		return false, false, err
	}
	// Nothing new was observed: stamp last_check so the monitor is not due
	// again until its next interval, and report the state it is already in.
	if outcome.Passive {
		if err := e.store.TouchMonitor(ctx, id, models.NewTimestamp(e.now())); err != nil {
			return false, false, err
		}
		return m.IsUp(), false, nil
	}

	if err := e.record(ctx, m, outcome); err != nil {
		return false, false, err
	}
	return outcome.OK, false, nil
}

// record persists one outcome and applies the status transition. The caller
// holds the monitor's lock.
func (e *Engine) record(ctx context.Context, m *models.Monitor, outcome monitor.Outcome) error {
	now := e.now()
	ts := models.NewTimestamp(now)

	hbStatus := models.StatusDown
	if outcome.OK {
		hbStatus = models.StatusUp
	}

	w := store.CheckWrite{
		Heartbeat: models.Heartbeat{
			Timestamp:      ts,
			Status:         hbStatus,
			ResponseTimeMs: outcome.LatencyMs,
		},
		Updates: map[string]interface{}{
			"last_check":       ts,
			"response_time_ms": outcome.LatencyMs,
		},
	}
	if outcome.CertExpiryDays != nil {
		w.Updates["cert_expiry_days"] = *outcome.CertExpiryDays
	}

	updated := *m
	updated.LastCheck = &ts
	updated.ResponseTimeMs = outcome.LatencyMs
	if outcome.CertExpiryDays != nil {
		updated.CertExpiryDays = outcome.CertExpiryDays
	}

	cause := outcome.Error
	switch {
	case outcome.OK && m.Status != models.StatusUp:
		w.Updates["status"] = models.StatusUp
		w.Updates["up_since"] = ts
		w.ResolveAt = &now
		updated.Status = models.StatusUp
		updated.UpSince = &ts
	case !outcome.OK && m.Status != models.StatusDown:
		if cause == "" {
			cause = "check failed"
		}
		w.Updates["status"] = models.StatusDown
		w.Updates["up_since"] = nil
		w.Open = &models.Incident{
			ID:        newID(),
			StartedAt: ts,
			Cause:     cause,
		}
		updated.Status = models.StatusDown
		updated.UpSince = nil
	}

	res, err := e.store.ApplyCheck(ctx, m.ID, w)
	if err != nil {
		return err
	}

	fields := []zap.Field{
		zap.String("monitor_id", m.ID),
		zap.String("name", m.Name),
		zap.String("status", hbStatus),
	}
	if outcome.LatencyMs != nil {
		fields = append(fields, zap.Float64("response_time_ms", *outcome.LatencyMs))
	}
	if !outcome.OK {
		fields = append(fields, zap.String("error", outcome.Error))
	}
	e.log.Debug("check recorded", fields...)

	if res.Opened != nil {
		e.log.Warn("incident opened",
			zap.String("monitor_id", m.ID),
			zap.String("incident_id", res.Opened.ID),
			zap.String("cause", res.Opened.Cause))
	}
	if res.Resolved != nil {
		e.log.Info("incident resolved",
			zap.String("monitor_id", m.ID),
			zap.String("incident_id", res.Resolved.ID),
			zap.Int64p("duration_s", res.Resolved.DurationS))
	}

	e.notify(CheckEvent{
		Monitor:   updated,
		Heartbeat: res.Heartbeat,
		Opened:    res.Opened,
		Resolved:  res.Resolved,
		Cause:     outcome.Error,
	})
	return nil
}

func (e *Engine) notify(event CheckEvent) {
	e.obsMu.RLock()
	defer e.obsMu.RUnlock()
	for _, o := range e.observers {
		o.CheckRecorded(event)
	}
}

// RecordPush records a heartbeat received from a push monitor. Paused and
// maintenance monitors ignore pushes; recorded reports whether it was applied.
func (e *Engine) RecordPush(ctx context.Context, id string) (recorded bool, err error) {
	unlock := e.locks.Lock(id)
	defer unlock()

	m, err := e.getMonitor(ctx, id)
	if err != nil {
		return false, err
	}
	if m.Type != models.KindPush {
		return false, fmt.Errorf("%w: %s is %s", ErrNotPushMonitor, id, m.Type)
	}
	if models.IsAdministrative(m.Status) {
		return false, nil
	}

	if err := e.record(ctx, m, monitor.Outcome{OK: true}); err != nil {
		return false, err
	}
	return true, nil
}

// RunAllChecks checks every monitor that is not paused or in maintenance.
func (e *Engine) RunAllChecks(ctx context.Context) (map[string]bool, error) {
	monitors, err := e.store.ListMonitors(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(monitors))
	for _, m := range monitors {
		if !models.IsAdministrative(m.Status) {
			ids = append(ids, m.ID)
		}
	}
	return e.RunChecks(ctx, ids)
}

// RunChecks checks the given monitors concurrently, bounded by the worker
// limit. A failing monitor does not affect the others; their errors are
// joined into the returned error. Monitors skipped for being paused or in
// maintenance are omitted from the result.
func (e *Engine) RunChecks(ctx context.Context, ids []string) (map[string]bool, error) {
	var (
		mu      sync.Mutex
		results = make(map[string]bool, len(ids))
		errs    []error
	)

	var g errgroup.Group
	g.SetLimit(e.workers)

	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		id := id
		g.Go(func() error {
			ok, skipped, err := e.runCheck(ctx, id)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				e.log.Error("check failed", zap.String("monitor_id", id), zap.Error(err))
				errs = append(errs, fmt.Errorf("monitor %s: %w", id, err))
			case !skipped:
				results[id] = ok
			}
			return nil
		})
	}
	_ = g.Wait()

	return results, errors.Join(errs...)
}

// GetUptimePercent returns 100 × up / total over the trailing days, 0 with no heartbeats.
func (e *Engine) GetUptimePercent(ctx context.Context, id string, days int) (float64, error) {
	if days <= 0 {
		days = DefaultUptimeDays
	}
	if _, err := e.getMonitor(ctx, id); err != nil {
		return 0, err
	}
	return e.calc.UptimePercent(ctx, id, days)
}

// GetResponseTimeAvg returns the mean latency of up heartbeats over the trailing hours.
func (e *Engine) GetResponseTimeAvg(ctx context.Context, id string, hours int) (float64, error) {
	if hours <= 0 {
		hours = DefaultLatencyHours
	}
	if _, err := e.getMonitor(ctx, id); err != nil {
		return 0, err
	}
	return e.calc.AverageResponseTime(ctx, id, hours)
}

// GetUptimeStats summarizes the trailing period.
func (e *Engine) GetUptimeStats(ctx context.Context, id string, period time.Duration) (*uptime.UptimeStats, error) {
	if _, err := e.getMonitor(ctx, id); err != nil {
		return nil, err
	}
	return e.calc.CalculateUptimeForPeriod(ctx, id, period)
}

// GetHeartbeatHistory returns the most recent heartbeats, oldest first.
func (e *Engine) GetHeartbeatHistory(ctx context.Context, id string, limit int) ([]models.Heartbeat, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if _, err := e.getMonitor(ctx, id); err != nil {
		return nil, err
	}
	return e.store.RecentHeartbeats(ctx, id, limit)
}

// GetIncidents lists incidents newest first, optionally for one monitor or
// only the open ones.
func (e *Engine) GetIncidents(ctx context.Context, monitorID string, openOnly bool) ([]models.Incident, error) {
	return e.store.ListIncidents(ctx, models.IncidentFilter{MonitorID: monitorID, OpenOnly: openOnly})
}

// GetIncident returns one incident.
func (e *Engine) GetIncident(ctx context.Context, id string) (*models.Incident, error) {
	inc, err := e.store.GetIncident(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrIncidentNotFound, id)
	}
	return inc, err
}

// ResolveIncident resolves an open incident now. It returns false when the
// incident is missing or already resolved.
func (e *Engine) ResolveIncident(ctx context.Context, id string) (bool, error) {
	ok, err := e.store.ResolveIncident(ctx, id, e.now())
	if err != nil {
		return false, err
	}
	if ok {
		e.log.Info("incident resolved manually", zap.String("incident_id", id))
	}
	return ok, nil
}

// PendingNotifications returns open incidents not yet announced.
func (e *Engine) PendingNotifications(ctx context.Context) ([]models.Incident, error) {
	return e.store.PendingNotifications(ctx)
}

// MarkIncidentNotified records that an incident has been announced.
func (e *Engine) MarkIncidentNotified(ctx context.Context, id string) error {
	err := e.store.MarkIncidentNotified(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrIncidentNotFound, id)
	}
	return err
}

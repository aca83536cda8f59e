package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fuomag9/uptimed/internal/logger"
	"github.com/fuomag9/uptimed/internal/models"
)

// CheckRunner selects and runs the monitors that are due.
type CheckRunner interface {
	DueMonitors(ctx context.Context, now time.Time) ([]models.Monitor, error)
	RunChecks(ctx context.Context, ids []string) (map[string]bool, error)
}

// Sweeper delivers pending incident notifications.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// Maintainer performs storage housekeeping.
type Maintainer interface {
	PruneHeartbeats(ctx context.Context, before time.Time) (int64, error)
	Vacuum(ctx context.Context) error
}

// Options configures a Scheduler.
type Options struct {
	Tick time.Duration
	// RetentionDays enables the daily heartbeat cleanup when positive.
	RetentionDays int
	Logger        *zap.Logger
	Now           func() time.Time
}

// Scheduler manages background jobs
type Scheduler struct {
	cron    *cron.Cron
	checks  CheckRunner
	sweeper Sweeper
	maint   Maintainer
	opts    Options
	log     *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler creates a new job scheduler. sweeper and maint may be nil.
func NewScheduler(checks CheckRunner, sweeper Sweeper, maint Maintainer, opts Options) *Scheduler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Tick <= 0 {
		opts.Tick = 5 * time.Second
	}

	cl := logger.NewCronLogger(opts.Logger)
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		checks:  checks,
		sweeper: sweeper,
		maint:   maint,
		opts:    opts,
		log:     opts.Logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start registers the jobs and starts the scheduler
func (s *Scheduler) Start() error {
	// Due checks and the notification sweep
	s.cron.Schedule(cron.Every(s.opts.Tick), cron.FuncJob(func() {
		if _, err := s.RunOnce(s.ctx); err != nil {
			s.log.Error("scheduled run failed", zap.Error(err))
		}
	}))

	if s.maint != nil {
		if s.opts.RetentionDays > 0 {
			// Cleanup old heartbeats daily at 3:14 AM
			if _, err := s.cron.AddFunc("14 3 * * *", s.cleanupOldHeartbeats); err != nil {
				return fmt.Errorf("failed to schedule heartbeat cleanup: %w", err)
			}
		}

		// Vacuum database weekly at 2:30 AM on Sunday
		if _, err := s.cron.AddFunc("30 2 * * 0", s.vacuumDatabase); err != nil {
			return fmt.Errorf("failed to schedule vacuum: %w", err)
		}
	}

	s.cron.Start()
	s.log.Info("job scheduler started", zap.Duration("tick", s.opts.Tick))
	return nil
}

// Stop stops the scheduler and waits for running jobs to finish. In-flight
// checks see their context cancelled.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.log.Info("job scheduler stopped")
}

// RunOnce checks every due monitor and then sweeps notifications. It returns
// the number of monitors checked.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	due, err := s.checks.DueMonitors(ctx, s.opts.Now())
	if err != nil {
		return 0, err
	}

	var checkErr error
	if len(due) > 0 {
		ids := make([]string, len(due))
		for i, m := range due {
			ids[i] = m.ID
		}
		// Per-monitor failures are logged; the sweep still runs.
		_, checkErr = s.checks.RunChecks(ctx, ids)
		if checkErr != nil {
			s.log.Warn("some checks failed", zap.Error(checkErr))
		}
	}

	if s.sweeper != nil {
		sent, err := s.sweeper.Sweep(ctx)
		if err != nil {
			s.log.Error("notification sweep failed", zap.Error(err))
		} else if sent > 0 {
			s.log.Info("incident notifications sent", zap.Int("count", sent))
		}
	}

	return len(due), checkErr
}

// cleanupOldHeartbeats removes heartbeats past the retention window
func (s *Scheduler) cleanupOldHeartbeats() {
	before := s.opts.Now().AddDate(0, 0, -s.opts.RetentionDays)
	n, err := s.maint.PruneHeartbeats(s.ctx, before)
	if err != nil {
		s.log.Error("failed to cleanup old heartbeats", zap.Error(err))
		return
	}
	s.log.Info("cleaned up old heartbeats", zap.Int64("count", n))
}

func (s *Scheduler) vacuumDatabase() {
	if err := s.maint.Vacuum(s.ctx); err != nil {
		s.log.Error("failed to vacuum database", zap.Error(err))
		return
	}
	s.log.Info("database vacuum completed")
}

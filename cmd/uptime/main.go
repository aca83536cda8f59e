package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fuomag9/uptimed/internal/billing"
	"github.com/fuomag9/uptimed/internal/config"
	"github.com/fuomag9/uptimed/internal/database"
	"github.com/fuomag9/uptimed/internal/engine"
	"github.com/fuomag9/uptimed/internal/logger"
	"github.com/fuomag9/uptimed/internal/monitor"
	"github.com/fuomag9/uptimed/internal/notification"
	"github.com/fuomag9/uptimed/internal/store"
)

// rootOptions are the global flags.
type rootOptions struct {
	dbPath     string
	plan       string
	configFile string
	debug      bool
}

// app holds everything a command needs. It is built lazily by each command.
type app struct {
	cfg        *config.Config
	log        *zap.Logger
	db         *gorm.DB
	store      *store.Store
	engine     *engine.Engine
	dispatcher *notification.Dispatcher
}

func newApp(opts *rootOptions, server bool) (*app, error) {
	if opts.configFile != "" {
		os.Setenv("UPTIME_CONFIG", opts.configFile)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if opts.dbPath != "" {
		cfg.Database.Type = "sqlite"
		cfg.Database.Path = opts.dbPath
	}
	if opts.plan != "" {
		cfg.Plan = opts.plan
	}
	switch {
	case opts.debug:
		cfg.LogLevel = "debug"
	case !server && os.Getenv("LOG_LEVEL") == "":
		// Keep one-shot command output readable.
		cfg.LogLevel = "warn"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	plan, err := billing.ParsePlan(cfg.Plan)
	if err != nil {
		return nil, err
	}

	log := logger.New(cfg.LogLevel)

	if err := database.RunMigrations(cfg.Database); err != nil {
		return nil, errors.Wrap(err, "failed to run migrations")
	}
	db, err := database.Connect(cfg.Database, log)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}

	s := store.New(db)
	registry := monitor.NewDefaultRegistry(monitor.Options{
		AllowPrivateIPs: cfg.AllowPrivateIPs,
		PingPrivileged:  cfg.PingPrivileged,
	}, s)

	eng := engine.New(s, monitor.NewExecutor(registry), billing.NewGate(plan), engine.Options{
		Defaults: engine.Defaults{
			IntervalS: cfg.Defaults.IntervalS,
			TimeoutS:  cfg.Defaults.TimeoutS,
			Retries:   cfg.Defaults.Retries,
		},
		Workers: cfg.Workers,
		Logger:  log,
	})

	dispatcher := notification.NewDispatcher(eng, log, cfg.AppURL, notification.FromConfig(cfg.Notify)...)
	eng.AddObserver(dispatcher)

	return &app{
		cfg:        cfg,
		log:        log,
		db:         db,
		store:      s,
		engine:     eng,
		dispatcher: dispatcher,
	}, nil
}

// Close waits for background notifications and releases the database.
func (a *app) Close() {
	a.dispatcher.Wait()
	if err := database.Close(a.db); err != nil {
		a.log.Warn("failed to close database", zap.Error(err))
	}
	_ = a.log.Sync()
}

// run builds the app, runs fn and tears the app down again.
func run(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, a *app) error) error {
	a, err := newApp(opts, false)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(cmd.Context(), a)
}

// NewRootCommand creates the uptime command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "uptime",
		Short:         "Self-hosted uptime monitoring",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.dbPath, "db", "", "SQLite database path (overrides UPTIME_DB_PATH)")
	cmd.PersistentFlags().StringVar(&opts.plan, "plan", "", "Plan: free, pro, business or custom:N (overrides UPTIME_PLAN)")
	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "YAML configuration file")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging.")

	cmd.AddCommand(
		newAddCommand(opts),
		newCheckAllCommand(opts),
		newStatusCommand(opts),
		newCheckCommand(opts),
		newPushCommand(opts),
		newAdminStatusCommand(opts, "pause", engine.AdminPaused, "Pause a monitor"),
		newAdminStatusCommand(opts, "resume", engine.AdminActive, "Resume a paused monitor"),
		newAdminStatusCommand(opts, "maintenance", engine.AdminMaintenance, "Put a monitor into maintenance"),
		newIncidentsCommand(opts),
		newResolveCommand(opts),
		newUptimeCommand(opts),
		newHistoryCommand(opts),
		newPageCommand(opts),
		newPlansCommand(),
		newServeCommand(opts),
	)

	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

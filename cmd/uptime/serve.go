package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fuomag9/uptimed/internal/api"
	"github.com/fuomag9/uptimed/internal/jobs"
	"github.com/fuomag9/uptimed/internal/websocket"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler and the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts, true)
			if err != nil {
				return err
			}
			defer a.Close()
			return serve(cmd.Context(), a)
		},
	}
}

func serve(ctx context.Context, a *app) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	hub := websocket.NewHub(a.cfg.APIToken, a.cfg.CORSOrigins, a.log)
	go hub.Run(ctx)
	a.engine.AddObserver(hub)

	metrics := api.NewMetrics()
	a.engine.AddObserver(metrics)

	scheduler := jobs.NewScheduler(a.engine, a.dispatcher, a.store, jobs.Options{
		Tick:          a.cfg.Tick,
		RetentionDays: a.cfg.RetentionDays,
		Logger:        a.log,
	})
	if err := scheduler.Start(); err != nil {
		return errors.Wrap(err, "failed to start scheduler")
	}
	defer scheduler.Stop()

	router := api.NewRouter(a.cfg, api.Deps{
		Service: a.engine,
		Hub:     http.HandlerFunc(hub.HandleWebSocket),
		Metrics: metrics,
		Health: func() error {
			sqlDB, err := a.db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Ping()
		},
		Logger: a.log,
	})

	// No WriteTimeout: websocket connections are long lived.
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("server starting",
			zap.Int("port", a.cfg.Port),
			zap.String("plan", a.engine.Plan().Name))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return errors.Wrap(err, "server failed")
		}
		return nil
	case <-ctx.Done():
	}

	a.log.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "server forced to shutdown")
	}

	a.log.Info("server exited")
	return nil
}

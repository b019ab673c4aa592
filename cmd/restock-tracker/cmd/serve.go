package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humaecho"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/donaldgifford/restock-tracker/api/openapi"
	"github.com/donaldgifford/restock-tracker/internal/api/handlers"
	mw "github.com/donaldgifford/restock-tracker/internal/api/middleware"
	"github.com/donaldgifford/restock-tracker/internal/scheduler"
	"github.com/donaldgifford/restock-tracker/internal/source"
	"github.com/donaldgifford/restock-tracker/internal/telemetry"
	"github.com/donaldgifford/restock-tracker/pkg/logger"
)

const maintenanceJob = "maintenance"

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server and the source checkers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, closer := logger.NewFromOptions(logger.Options{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	defer closer.Close()
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Tracing, Version, log)
	if err != nil {
		return fmt.Errorf("setting up tracing: %w", err)
	}
	defer func() {
		tctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(tctx); err != nil {
			log.Warn("flushing traces", "error", err)
		}
	}()

	a, err := newApp(cfg, log, appOptions{})
	if err != nil {
		return err
	}

	sched, err := newScheduler(a)
	if err != nil {
		return err
	}

	e := newServer(a, sched)
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           e,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("starting server", "addr", addr, "version", Version)
		if err := e.StartServer(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			log.Error("server error", "error", err)
		}
	}

	if stuck := sched.Stop(cfg.Schedule.ShutdownTimeout); len(stuck) > 0 {
		log.Warn("exiting with jobs still running", "jobs", stuck)
	}

	sctx, cancel := context.WithTimeout(context.Background(), cfg.Schedule.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}

	log.Info("server stopped")
	return nil
}

// newScheduler registers one checker per source and the maintenance job.
func newScheduler(a *app) (*scheduler.Scheduler, error) {
	sched := scheduler.New(
		scheduler.WithMinInterval(a.cfg.Schedule.MinInterval),
		scheduler.WithLogger(a.log),
	)

	for i, src := range a.sources {
		sc := &a.cfg.Sources[i]
		err := sched.AddChecker(scheduler.Checker{
			Name:     sc.Name,
			Interval: sc.Interval,
			Run:      checkFunc(a, src),
		})
		if err != nil {
			return nil, fmt.Errorf("registering checker %s: %w", sc.Name, err)
		}
	}

	if spec := a.cfg.Schedule.Maintenance; spec != "" {
		retention := a.cfg.Notifications.StatsRetention
		err := sched.AddJob(maintenanceJob, spec, func(context.Context) error {
			pruned, err := a.gateway.PruneStats(retention)
			if err != nil {
				return fmt.Errorf("pruning sms stats: %w", err)
			}
			a.log.Info("maintenance complete", "sms_days_pruned", pruned)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("registering maintenance job: %w", err)
		}
	}
	return sched, nil
}

func checkFunc(a *app, src source.Source) scheduler.Func {
	return func(ctx context.Context) error {
		_, err := a.engine.RunCheck(ctx, src)
		return err
	}
}

// newServer builds the Echo server with operational routes and the Huma API.
func newServer(a *app, sched *scheduler.Scheduler) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(mw.RequestLog(a.log))
	e.Use(mw.Tracing())
	e.Use(mw.Metrics())
	e.Use(mw.Recovery(a.log))

	health := handlers.NewHealthHandler(a.states)
	e.GET("/healthz", health.Healthz)
	e.GET("/readyz", health.Readyz)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	humaCfg := huma.DefaultConfig("restock-tracker", Version)
	humaCfg.Info.Description = "Product availability, change history and SMS usage."
	api := humaecho.New(e, humaCfg)

	handlers.RegisterProductRoutes(api, handlers.NewProductsHandler(a.states, a.catalog))
	handlers.RegisterHistoryRoutes(api, handlers.NewHistoryHandler(a.history))
	handlers.RegisterSMSRoutes(api, handlers.NewSMSHandler(a.gateway))
	handlers.RegisterJobRoutes(api, handlers.NewJobsHandler(sched))
	openapi.RegisterRoutes(e, api)

	return e
}

package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fleetrun/fleetrun/config"
	"github.com/fleetrun/fleetrun/internal/executor"
	"github.com/fleetrun/fleetrun/internal/health"
	"github.com/fleetrun/fleetrun/internal/infrastructure/postgres"
	ctxlog "github.com/fleetrun/fleetrun/internal/log"
	"github.com/fleetrun/fleetrun/internal/metrics"
	"github.com/fleetrun/fleetrun/internal/runner"
	"github.com/fleetrun/fleetrun/internal/scheduler"
	httptransport "github.com/fleetrun/fleetrun/internal/transport/http"
	"github.com/fleetrun/fleetrun/internal/vault"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		stop()
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	if err := postgres.Migrate(pool); err != nil {
		stop()
		log.Fatalf("migrate: %v", err)
	}
	logger.Info("db connected and migrated")

	v, err := vault.New(cfg.EncryptionKey, logger)
	if err != nil {
		stop()
		log.Fatalf("vault: %v", err)
	}

	templates := postgres.NewTemplateRepository(pool)
	hosts := postgres.NewHostRepository(pool)
	credentials := postgres.NewCredentialRepository(pool, v)
	scheduledJobs := postgres.NewScheduledJobRepository(pool)
	adHocJobs := postgres.NewAdHocJobRepository(pool)
	hostLogs := postgres.NewHostLogRepository(pool)
	settings := postgres.NewSettingsRepository(pool)

	metrics.Register()
	metrics.ProcessStartTime.SetToCurrentTime()
	checker := health.NewChecker(pool, logger, prometheus.DefaultRegisterer)

	exec := executor.New(hostLogs, logger)
	jobRunner := runner.New(templates, credentials, hosts, adHocJobs, hostLogs, exec, logger)

	sched := scheduler.New(scheduledJobs, hostLogs, settings, jobRunner, logger)
	if err := sched.Start(ctx); err != nil {
		stop()
		log.Fatalf("scheduler start: %v", err)
	}
	retentionInterval := time.Duration(cfg.RetentionPollIntervalSec) * time.Second
	go sched.StartRetentionLoop(ctx, retentionInterval)

	adminSrv := &http.Server{
		Addr:    ":" + cfg.AdminPort,
		Handler: httptransport.NewRouter(checker),
	}
	metricsSrv := metrics.NewServer(":" + cfg.MetricsPort)

	go func() {
		logger.Info("admin server started", "port", cfg.AdminPort)
		if err := adminSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("admin server", "error", err)
		}
	}()

	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()
	logger.Info("shutting down...")

	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := adminSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("admin server shutdown", "error", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}

	logger.Info("orchestratord shut down")
}

func newLogger(env string, level slog.Level) *slog.Logger {
	var inner slog.Handler
	if env == "local" {
		inner = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	} else {
		inner = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}
	return slog.New(ctxlog.NewContextHandler(inner))
}

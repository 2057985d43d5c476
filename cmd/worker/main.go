package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/catintel/catintel/internal/app"
	jobmetrics "github.com/catintel/catintel/internal/jobs"
	"github.com/catintel/catintel/internal/platform/cache"
	"github.com/catintel/catintel/internal/platform/db"
	"github.com/catintel/catintel/internal/tracking"
	"github.com/catintel/catintel/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	trackingService := tracking.NewService(
		tracking.NewPGRepository(pool),
		tracking.NewCache(redisClient, cfg.CacheTTL),
		tracking.Options{
			Method:         cfg.Method(),
			VelocityWindow: cfg.VelocityWindow,
			ReviewRate:     cfg.ReviewRate,
			Logger:         logger,
		},
	)

	metrics := jobmetrics.NewMetrics(nil)
	refreshJob := jobs.NewRefreshEstimatesJob(trackingService, logger, metrics)
	warmupJob := jobs.NewRollupWarmupJob(trackingService, logger, metrics)

	refreshTask, err := jobs.NewRefreshEstimatesTask(jobs.RefreshEstimatesPayload{})
	if err != nil {
		logger.Error("build refresh task", slog.Any("error", err))
		os.Exit(1)
	}
	warmupTask, err := jobs.NewRollupWarmupTask(jobs.RollupWarmupPayload{})
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}

	redisOpts, err := jobs.RedisClientOpt(cfg.RedisAddr)
	if err != nil {
		logger.Error("redis options", slog.Any("error", err))
		os.Exit(1)
	}

	var cron []jobs.CronRegistration
	if cfg.RefreshCron != "" {
		cron = append(cron,
			jobs.CronRegistration{Spec: cfg.RefreshCron, Task: refreshTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			jobs.CronRegistration{Spec: cfg.RefreshCron, Task: warmupTask, Options: []asynq.Option{asynq.MaxRetry(1), asynq.ProcessIn(5 * time.Minute)}},
		)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   redisOpts,
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskRefreshEstimates, Handler: refreshJob.Handle},
			{Type: jobs.TaskRollupWarmup, Handler: warmupJob.Handle},
		},
		Cron: cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	metricsServer := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("serving worker metrics", slog.String("addr", cfg.WorkerMetricsAddr))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("worker metrics server", slog.Any("error", err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("starting worker", slog.String("estimator", string(cfg.Method())), slog.String("refresh_cron", cfg.RefreshCron))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}

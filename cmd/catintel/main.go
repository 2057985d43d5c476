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

	"github.com/catintel/catintel/internal/app"
	"github.com/catintel/catintel/internal/market"
	markethttp "github.com/catintel/catintel/internal/market/http"
	"github.com/catintel/catintel/internal/observability"
	"github.com/catintel/catintel/internal/platform/cache"
	"github.com/catintel/catintel/internal/platform/db"
	"github.com/catintel/catintel/internal/tracking"
	trackinghttp "github.com/catintel/catintel/internal/tracking/http"
	"github.com/catintel/catintel/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	if cfg.RunMigrations {
		version, err := db.Migrate(cfg.PGDSN, tracking.Migrations, tracking.MigrationsDir)
		if err != nil {
			logger.Error("run migrations", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("schema migrated", slog.Uint64("version", uint64(version)))
	}

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, rollups will not be cached", slog.Any("error", err))
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	trackingCache := tracking.NewCache(redisClient, cfg.CacheTTL)
	if err := trackingCache.ListenForInvalidation(ctx, ""); err != nil {
		logger.Warn("cache invalidation listener", slog.Any("error", err))
	}
	trackingService := tracking.NewService(tracking.NewPGRepository(dbpool), trackingCache, tracking.Options{
		Method:         cfg.Method(),
		VelocityWindow: cfg.VelocityWindow,
		ReviewRate:     cfg.ReviewRate,
		Logger:         logger,
	})

	marketService, err := market.Load(cfg.WeightsFile, market.Options{
		Shards:            cfg.AggregateShards,
		ParallelThreshold: cfg.ParallelThreshold,
		Logger:            logger,
		Recorder:          metrics,
	})
	if err != nil {
		logger.Error("load weights", slog.String("path", cfg.WeightsFile), slog.Any("error", err))
		os.Exit(1)
	}

	redisOpts, err := jobs.RedisClientOpt(cfg.RedisAddr)
	if err != nil {
		logger.Error("redis options", slog.Any("error", err))
		os.Exit(1)
	}
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	readiness := map[string]app.ReadinessCheck{
		"postgres": dbpool.Ping,
	}
	if redisClient != nil {
		readiness["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		MarketHandler:   markethttp.NewHandler(logger, marketService),
		TrackingHandler: trackinghttp.NewHandler(logger, trackingService),
		JobHandler:      jobs.NewHandler(inspector, logger),
		Metrics:         metrics,
		Readiness:       readiness,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("estimator", string(cfg.Method())))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lukasortiz/taskpay-backend/internal/ledger"
	"github.com/lukasortiz/taskpay-backend/internal/webhooks"
	"github.com/lukasortiz/taskpay-backend/internal/webhooks/reconciler"
	"github.com/lukasortiz/taskpay-backend/internal/worker"
	"github.com/lukasortiz/taskpay-backend/pkg/config"
	"github.com/lukasortiz/taskpay-backend/pkg/db"
	"github.com/lukasortiz/taskpay-backend/pkg/logger"
	"github.com/lukasortiz/taskpay-backend/pkg/metrics"
	"github.com/lukasortiz/taskpay-backend/pkg/migrate"
	"github.com/lukasortiz/taskpay-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "reconciler"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "reconciler",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	ledgerService, err := ledger.NewService(ledger.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}
	reconcilerRepo := reconciler.NewRepository(dbClient.DB())

	registry := reconciler.NewRegistry()
	registry.Register(reconciler.ProviderGateway, reconciler.NewGatewayHandler(reconcilerRepo, ledgerService, cfg.Payouts.Delay()))
	registry.Register(reconciler.ProviderEscrow, reconciler.NewEscrowHandler(reconcilerRepo, ledgerService))

	processor, err := reconciler.NewService(reconciler.Params{
		Tx:          dbClient,
		Repo:        webhooks.NewRepository(dbClient.DB()),
		Registry:    registry,
		MaxAttempts: cfg.Webhooks.MaxAttempts,
		Logger:      logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reconciler service", err)
		os.Exit(1)
	}

	lock, err := worker.NewRedisLock(redisClient, redisClient.LockKey("reconciler"), lockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create reconciler lock", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reconcilerMetrics := metrics.NewReconcilerMetrics(reg)

	service, err := NewService(ServiceParams{
		Logger:       logg,
		Processor:    processor,
		Lock:         lock,
		Metrics:      reconcilerMetrics,
		PollInterval: cfg.Webhooks.PollInterval,
		BatchSize:    cfg.Webhooks.BatchSize,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reconciler runner", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env": cfg.App.Env,
		"job": jobName,
	})

	if addr := os.Getenv("TASKPAY_METRICS_ADDR"); addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logg.Error(ctx, "metrics server stopped unexpectedly", err)
			}
		}()
		logg.Info(logg.WithField(ctx, "metrics_addr", addr), "metrics endpoint exposed")
	}

	logg.Info(ctx, "starting webhook reconciler")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "webhook reconciler stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "webhook reconciler shutting down gracefully")
}

package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/terra-sneakers/terra-backend/internal/cron"
	"github.com/terra-sneakers/terra-backend/internal/ledgerexport"
	"github.com/terra-sneakers/terra-backend/internal/wiring"
	"github.com/terra-sneakers/terra-backend/pkg/bigquery"
	"github.com/terra-sneakers/terra-backend/pkg/config"
	"github.com/terra-sneakers/terra-backend/pkg/db"
	"github.com/terra-sneakers/terra-backend/pkg/logger"
	"github.com/terra-sneakers/terra-backend/pkg/metrics"
	"github.com/terra-sneakers/terra-backend/pkg/migrate"
	"github.com/terra-sneakers/terra-backend/pkg/outbox"
	"github.com/terra-sneakers/terra-backend/pkg/redis"
)

func main() {
	once := flag.Bool("once", false, "run every job a single time and exit")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
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

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	services, err := wiring.Build(wiring.Params{
		Config:     cfg,
		Logger:     logg,
		DB:         dbClient,
		Registerer: prometheus.DefaultRegisterer,
		Source:     "cron-worker",
	})
	if err != nil {
		logg.Error(context.Background(), "failed to build services", err)
		os.Exit(1)
	}

	var exporter *ledgerexport.Service
	if cfg.BigQuery.Dataset != "" {
		bqClient, err := bigquery.NewClient(context.Background(), cfg.GCP, cfg.BigQuery, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap bigquery", err)
			os.Exit(1)
		}
		defer func() {
			if err := bqClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing bigquery client", err)
			}
		}()
		exporter, err = buildExporter(cfg, logg, bqClient, redisClient, services)
		if err != nil {
			logg.Error(context.Background(), "failed to build movement exporter", err)
			os.Exit(1)
		}
	}

	registry, err := buildRegistry(cfg, logg, dbClient, services, exporter)
	if err != nil {
		logg.Error(context.Background(), "failed to register cron jobs", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, lockKey(redisClient, cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":          cfg.App.Env,
		"service_kind": cfg.Service.Kind,
	})

	if *once {
		logg.Info(ctx, "running cron jobs once")
		if err := service.RunOnce(ctx); err != nil {
			logg.Error(ctx, "cron jobs failed", err)
			os.Exit(1)
		}
		return
	}

	logg.Info(ctx, "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildExporter(cfg *config.Config, logg *logger.Logger, bqClient *bigquery.Client, redisClient *redis.Client, services *wiring.Services) (*ledgerexport.Service, error) {
	writer, err := ledgerexport.NewWriter(bqClient, bqClient.Table(), ledgerexport.RetryPolicy{})
	if err != nil {
		return nil, err
	}
	return ledgerexport.NewService(ledgerexport.ServiceParams{
		Logger:       logg,
		Source:       services.Ledger,
		Writer:       writer,
		Store:        redisClient,
		WatermarkKey: redisClient.WatermarkKey("movement-export:" + bqClient.Table()),
		BatchSize:    cfg.BigQuery.ExportBatch,
	})
}

func buildRegistry(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, services *wiring.Services, exporter *ledgerexport.Service) (*cron.Registry, error) {
	expiry, err := cron.NewReservationExpiryJob(cron.ReservationExpiryJobParams{
		Logger:  logg,
		Sweeper: services.Reservations,
	})
	if err != nil {
		return nil, err
	}
	reconcile, err := cron.NewLedgerReconcileJob(cron.LedgerReconcileJobParams{
		Logger:     logg,
		Reconciler: services.Reconcile,
	})
	if err != nil {
		return nil, err
	}
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outbox.NewRepository(dbClient.DB()),
		Retention:  cfg.Cron.OutboxRetention,
	})
	if err != nil {
		return nil, err
	}
	registry, err := cron.NewRegistry(expiry, reconcile, retention)
	if err != nil {
		return nil, err
	}
	if exporter != nil {
		export, err := cron.NewMovementExportJob(cron.MovementExportJobParams{Logger: logg, Exporter: exporter})
		if err != nil {
			return nil, err
		}
		if err := registry.Register(export); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func lockKey(client *redis.Client, env string) string {
	if env == "" {
		env = "local"
	}
	return client.LockKey("cron-worker:" + env)
}

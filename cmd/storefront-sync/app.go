package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/storefront-sync/internal/application/integration"
	"github.com/erp/storefront-sync/internal/infrastructure/cache"
	"github.com/erp/storefront-sync/internal/infrastructure/config"
	"github.com/erp/storefront-sync/internal/infrastructure/logger"
	"github.com/erp/storefront-sync/internal/infrastructure/persistence"
	"github.com/erp/storefront-sync/internal/infrastructure/scheduler"
	"github.com/erp/storefront-sync/internal/infrastructure/storefront"
	"github.com/erp/storefront-sync/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// app holds every long-lived component of the process
type app struct {
	cfg       *config.Config
	log       *zap.Logger
	db        *persistence.Database
	lock      cache.OrderLockCloser
	runner    *integration.SyncRunner
	scheduler *scheduler.SyncScheduler
	syncLogs  *persistence.GormSyncLogRepository

	tracer *telemetry.TracerProvider
	meter  *telemetry.MeterProvider
	logs   *telemetry.LoggerProvider
}

func newApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	baseLog, err := logger.New(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	}, cfg.App.Name)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}

	a := &app{cfg: cfg, log: baseLog}
	if err := a.initTelemetry(ctx); err != nil {
		a.close(ctx)
		return nil, err
	}
	if err := a.initComponents(ctx); err != nil {
		a.close(ctx)
		return nil, err
	}
	return a, nil
}

func (a *app) initTelemetry(ctx context.Context) error {
	tcfg := telemetry.Config{
		Enabled:           a.cfg.Telemetry.Enabled,
		CollectorEndpoint: a.cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     a.cfg.Telemetry.SamplingRatio,
		ServiceName:       a.cfg.Telemetry.ServiceName,
		Insecure:          a.cfg.Telemetry.Insecure,
		ExportInterval:    a.cfg.Telemetry.ExportInterval,
	}

	var err error
	if a.tracer, err = telemetry.NewTracerProvider(ctx, tcfg, a.log); err != nil {
		return fmt.Errorf("initialize tracing: %w", err)
	}
	if a.meter, err = telemetry.NewMeterProvider(ctx, tcfg, a.log); err != nil {
		return fmt.Errorf("initialize metrics: %w", err)
	}
	if a.logs, err = telemetry.NewLoggerProvider(ctx, tcfg, a.log); err != nil {
		return fmt.Errorf("initialize log export: %w", err)
	}
	a.log = a.logs.Bridge(a.log, zapcore.InfoLevel)
	return nil
}

func (a *app) initComponents(ctx context.Context) error {
	cfg := a.cfg

	if cfg.Database.Driver == "postgres" && cfg.Database.AutoMigrate {
		if err := migrateSchema(&cfg.Database, a.log); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
	}

	db, err := persistence.NewDatabase(&cfg.Database, cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled, a.log)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	a.db = db
	a.log.Info("Database connected", zap.String("driver", cfg.Database.Driver))

	client, err := storefront.NewClient(storefront.Config{
		BaseURL:      cfg.Storefront.BaseURL,
		APIVersion:   cfg.Storefront.APIVersion,
		AccessToken:  cfg.Storefront.AccessToken,
		PageSize:     cfg.Storefront.PageSize,
		Timeout:      cfg.Storefront.Timeout,
		MaxBodyBytes: cfg.Storefront.MaxBodyBytes,
	}, a.log.Named("storefront"))
	if err != nil {
		return fmt.Errorf("create storefront client: %w", err)
	}

	masterData := persistence.NewGormMasterDataRepository(db.DB, a.log)
	documents := persistence.NewGormDocumentStore(db.DB)
	a.syncLogs = persistence.NewGormSyncLogRepository(db.DB)

	itemCache, err := cache.NewLRUItemCodeCache(cfg.Sync.ItemCacheSize)
	if err != nil {
		return err
	}
	items := integration.NewCachedItemCodeResolver(integration.NewLookupItemCodeResolver(masterData), itemCache)

	validator := integration.NewOrderValidator(masterData, masterData, client, a.log.Named("validator"))
	pipeline := integration.NewDocumentSyncPipeline(documents, masterData, items, a.log.Named("pipeline"))
	a.runner = integration.NewSyncRunner(client, validator, pipeline, a.syncLogs, a.log.Named("runner"))
	a.runner.SetConcurrency(cfg.Sync.Concurrency)
	a.runner.SetCompanyOverride(cfg.Sync.CompanyOverride)

	syncMetrics, err := telemetry.NewSyncMetrics(a.meter.Meter("storefront-sync"))
	if err != nil {
		return fmt.Errorf("create sync metrics: %w", err)
	}
	a.runner.SetSyncMetrics(syncMetrics)

	if cfg.Redis.Enabled || cfg.Sync.Concurrency > 1 {
		lock, err := cache.NewOrderLockFactory(cfg.Redis, cache.WithLogger(a.log)).CreateLock(ctx)
		if err != nil {
			return err
		}
		a.lock = lock
		a.runner.SetOrderLock(lock, cfg.Sync.LockTTL)
	}

	a.scheduler, err = scheduler.NewSyncScheduler(scheduler.Config{
		Interval:      cfg.Scheduler.Interval,
		JobTimeout:    cfg.Scheduler.JobTimeout,
		RetryAttempts: cfg.Scheduler.RetryAttempts,
		RetryDelay:    cfg.Scheduler.RetryDelay,
		MaxRetryDelay: cfg.Scheduler.MaxRetryDelay,
		HistorySize:   cfg.Scheduler.HistorySize,
	}, a.runner, cfg.Sync.Settings(), a.log.Named("scheduler"))
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	return nil
}

// close releases resources in reverse order of creation
func (a *app) close(ctx context.Context) {
	var errs []error
	if a.lock != nil {
		errs = append(errs, a.lock.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	if a.logs != nil {
		errs = append(errs, a.logs.Shutdown(ctx))
	}
	if a.meter != nil {
		errs = append(errs, a.meter.Shutdown(ctx))
	}
	if a.tracer != nil {
		errs = append(errs, a.tracer.Shutdown(ctx))
	}
	if err := errors.Join(errs...); err != nil {
		a.log.Warn("Error during shutdown", zap.Error(err))
	}
	_ = a.log.Sync()
}

package persistence

import (
	"errors"
	"fmt"
	"time"

	"github.com/erp/storefront-sync/internal/domain/shared"
	"github.com/erp/storefront-sync/internal/infrastructure/config"
	"github.com/erp/storefront-sync/internal/infrastructure/logger"
	"github.com/erp/storefront-sync/internal/infrastructure/persistence/models"
	"github.com/erp/storefront-sync/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Database holds the database connection and provides methods for database operations
type Database struct {
	DB *gorm.DB
}

// Options configures Open
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	LogLevel        gormlogger.LogLevel
	SlowThreshold   time.Duration
	Tracing         telemetry.DBTracingConfig
	PrepareStmt     bool
	// AutoMigrate creates or updates the sync tables on open
	AutoMigrate bool
}

// NewDatabase opens the database described by cfg. SQLite schemas are
// created here; postgres schemas are owned by the migration package.
func NewDatabase(cfg *config.DatabaseConfig, tracingEnabled bool, zapLogger *zap.Logger) (*Database, error) {
	dialector, system, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}
	maxOpen := cfg.MaxOpenConns
	if system == "sqlite" {
		// one writer; also keeps ":memory:" to a single database
		maxOpen = 1
	}
	return Open(dialector, Options{
		MaxOpenConns:    maxOpen,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		LogLevel:        logger.MapGormLogLevel(cfg.LogLevel),
		SlowThreshold:   cfg.SlowThreshold,
		Tracing: telemetry.DBTracingConfig{
			Enabled:         tracingEnabled,
			DBSystem:        system,
			SlowQueryThresh: cfg.SlowThreshold,
		},
		PrepareStmt: system == "postgresql",
		AutoMigrate: system == "sqlite" && cfg.AutoMigrate,
	}, zapLogger)
}

func dialectorFor(cfg *config.DatabaseConfig) (gorm.Dialector, string, error) {
	switch cfg.Driver {
	case "postgres", "":
		return postgres.Open(cfg.DSN()), "postgresql", nil
	case "sqlite":
		return sqlite.Open(cfg.Path), "sqlite", nil
	}
	return nil, "", fmt.Errorf("unsupported database driver %q", cfg.Driver)
}

// Open connects through an explicit dialector. Duplicate-key errors are
// translated to gorm.ErrDuplicatedKey so that repositories can map them.
func Open(dialector gorm.Dialector, opts Options, zapLogger *zap.Logger) (*Database, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 logger.NewGormLogger(zapLogger, opts.LogLevel, opts.SlowThreshold),
		SkipDefaultTransaction: true,
		PrepareStmt:            opts.PrepareStmt,
		TranslateError:         true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := telemetry.RegisterDBTracing(db, opts.Tracing, zapLogger); err != nil {
		return nil, fmt.Errorf("failed to register database tracing: %w", err)
	}

	d := &Database{DB: db}
	if opts.AutoMigrate {
		if err := d.Migrate(); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Migrate creates or updates every sync table
func (d *Database) Migrate() error {
	if err := d.DB.AutoMigrate(models.AllModels()...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// Ping checks if the database connection is alive
func (d *Database) Ping() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Ping()
}

// Stats returns database connection pool statistics
func (d *Database) Stats() (ConnectionStats, error) {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return ConnectionStats{}, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	stats := sqlDB.Stats()
	return ConnectionStats{
		MaxOpenConnections: stats.MaxOpenConnections,
		OpenConnections:    stats.OpenConnections,
		InUse:              stats.InUse,
		Idle:               stats.Idle,
		WaitCount:          stats.WaitCount,
		WaitDuration:       stats.WaitDuration,
	}, nil
}

// ConnectionStats holds database connection pool statistics
type ConnectionStats struct {
	MaxOpenConnections int
	OpenConnections    int
	InUse              int
	Idle               int
	WaitCount          int64
	WaitDuration       time.Duration
}

// translateError maps gorm sentinel errors onto the shared domain errors
func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return shared.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return shared.ErrAlreadyExists
	}
	return err
}

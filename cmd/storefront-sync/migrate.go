package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/erp/storefront-sync/internal/infrastructure/config"
	"github.com/erp/storefront-sync/internal/infrastructure/logger"
	"github.com/erp/storefront-sync/internal/infrastructure/migration"
	"go.uber.org/zap"
)

// migrateSchema applies pending postgres migrations
func migrateSchema(cfg *config.DatabaseConfig, log *zap.Logger) error {
	m, err := migration.New(cfg.DSN(), log.Named("migrate"))
	if err != nil {
		return err
	}
	defer m.Close()
	return m.Up()
}

// runMigrate handles "migrate up|down|steps N|version|force N"
func runMigrate(configPath string, args []string) int {
	if len(args) == 0 {
		usage()
		return exitError
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "storefront-sync:", err)
		return exitError
	}
	if cfg.Database.Driver == "sqlite" {
		fmt.Fprintln(os.Stderr, "storefront-sync: migrations apply to postgres only; sqlite uses auto_migrate")
		return exitError
	}
	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output}, cfg.App.Name)
	if err != nil {
		fmt.Fprintln(os.Stderr, "storefront-sync:", err)
		return exitError
	}
	defer func() { _ = log.Sync() }()

	m, err := migration.New(cfg.Database.DSN(), log.Named("migrate"))
	if err != nil {
		log.Error("Failed to open migrations", zap.Error(err))
		return exitError
	}
	defer m.Close()

	switch args[0] {
	case "up":
		err = m.Up()
	case "down":
		err = m.Steps(-1)
	case "steps", "force":
		if len(args) != 2 {
			usage()
			return exitError
		}
		n, convErr := strconv.Atoi(args[1])
		if convErr != nil {
			fmt.Fprintf(os.Stderr, "storefront-sync: invalid number %q\n", args[1])
			return exitError
		}
		if args[0] == "steps" {
			err = m.Steps(n)
		} else {
			err = m.Force(n)
		}
	case "version":
		v, dirty, vErr := m.Version()
		if vErr == nil {
			fmt.Printf("version %d (dirty: %t)\n", v, dirty)
		}
		err = vErr
	default:
		fmt.Fprintf(os.Stderr, "storefront-sync: unknown migrate command %q\n", args[0])
		usage()
		return exitError
	}

	if err != nil {
		log.Error("Migration failed", zap.Error(err))
		return exitError
	}
	return exitOK
}

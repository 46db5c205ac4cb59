// Command storefront-sync copies storefront orders into the ERP document
// chain. "run" performs one pass and exits; "serve" runs the scheduler and
// the HTTP API until interrupted.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/erp/storefront-sync/internal/domain/integration"
	"github.com/erp/storefront-sync/internal/infrastructure/scheduler"
	"github.com/erp/storefront-sync/internal/interfaces/http/handler"
	"github.com/erp/storefront-sync/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

// Exit codes
const (
	exitOK            = 0
	exitError         = 1
	exitUpstreamFatal = 2
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	os.Exit(run(os.Args[1:]))
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: storefront-sync [-config path] <command>

Commands:
  run     sync all storefront orders once and exit
  serve   run the periodic scheduler and the HTTP API
  migrate up | down | steps N | version | force N
          manage the postgres schema
`)
}

func run(args []string) int {
	fs := flag.NewFlagSet("storefront-sync", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to config.toml (default: ./config.toml)")
	fs.Usage = usage
	if err := fs.Parse(args); err != nil {
		return exitError
	}
	if fs.NArg() == 0 {
		usage()
		return exitError
	}
	if fs.Arg(0) == "migrate" {
		return runMigrate(*configPath, fs.Args()[1:])
	}
	if fs.NArg() != 1 {
		usage()
		return exitError
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, *configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "storefront-sync:", err)
		return exitError
	}
	defer a.close(context.WithoutCancel(ctx))

	switch cmd := fs.Arg(0); cmd {
	case "run":
		return a.runOnce(ctx)
	case "serve":
		return a.serve(ctx)
	default:
		fmt.Fprintf(os.Stderr, "storefront-sync: unknown command %q\n", cmd)
		usage()
		return exitError
	}
}

// runOnce performs one sync pass, retries included
func (a *app) runOnce(ctx context.Context) int {
	run, err := a.scheduler.RunNow(ctx, scheduler.TriggerManual)
	if integration.IsUpstreamFatal(err) {
		a.log.Error("Storefront refused the sync run", zap.Error(err))
		return exitUpstreamFatal
	}
	if err != nil {
		a.log.Error("Sync run failed", zap.Error(err))
		return exitError
	}
	a.log.Info("Sync run finished",
		zap.String("run_id", run.ID.String()),
		zap.String("status", string(run.Status)),
		zap.Int("success_count", run.SuccessCount),
		zap.Int("skipped_count", run.SkippedCount),
		zap.Int("failed_count", run.FailedCount),
	)
	return exitOK
}

// serve runs the scheduler and the HTTP API until ctx is cancelled
func (a *app) serve(ctx context.Context) int {
	mode := gin.ReleaseMode
	if a.cfg.App.Env == "development" {
		mode = gin.DebugMode
	}
	engine := router.NewEngine(router.EngineConfig{
		ServiceName:    a.cfg.Telemetry.ServiceName,
		Mode:           mode,
		TracingEnabled: a.cfg.Telemetry.Enabled,
		TracerProvider: otel.GetTracerProvider(),
		Meter:          a.meter.Meter("http.server"),
	}, a.log)

	var state handler.SchedulerState
	if a.cfg.Scheduler.Enabled {
		state = a.scheduler
	}
	router.NewRouter(engine).
		Register(handler.NewSyncHandler(a.scheduler, a.syncLogs)).
		RegisterRoot(handler.NewSystemHandler(a.db, state, version)).
		Setup()

	srv := &http.Server{
		Addr:         ":" + a.cfg.HTTP.Port,
		Handler:      engine,
		ReadTimeout:  a.cfg.HTTP.ReadTimeout,
		WriteTimeout: a.cfg.HTTP.WriteTimeout,
		IdleTimeout:  a.cfg.HTTP.IdleTimeout,
	}

	if a.cfg.Scheduler.Enabled {
		if err := a.scheduler.Start(ctx); err != nil {
			a.log.Error("Failed to start scheduler", zap.Error(err))
			return exitError
		}
	} else {
		a.log.Info("Scheduler disabled, runs are triggered through the API only")
	}

	serverErr := make(chan error, 1)
	go func() {
		a.log.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	code := exitOK
	select {
	case <-ctx.Done():
		a.log.Info("Shutting down")
	case err := <-serverErr:
		if err != nil {
			a.log.Error("HTTP server failed", zap.Error(err))
			code = exitError
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("HTTP server shutdown failed", zap.Error(err))
	}
	if err := a.scheduler.Stop(shutdownCtx); err != nil {
		a.log.Error("Scheduler shutdown failed", zap.Error(err))
	}
	return code
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dynview/internal/api"
	"dynview/pkg/config"
	"dynview/pkg/core"
	"dynview/pkg/db"
	"dynview/pkg/db/maintenance"
	"dynview/pkg/event"
	"dynview/pkg/host/mockhost"
	"dynview/pkg/logging"
	"dynview/pkg/notify"
	"dynview/pkg/probe"
	"dynview/pkg/store"
	"dynview/pkg/version"
	"dynview/pkg/viewdistance"
)

const (
	defaultConfigPath   = "configs/dynview.yaml"
	defaultEnvPath      = ".env"
	notificationBuffer  = 256
	maintenanceInterval = 24 * time.Hour
)

var (
	initConfig = flag.Bool("init-config", false, "Generate default config file and exit")
	configPath = flag.String("config", defaultConfigPath, "Path to the config file")
)

func main() {
	flag.Parse()

	if *initConfig {
		if err := config.GenerateDefault(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Config file generated: %s\n", *configPath)
		return
	}

	if err := run(context.Background(), *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL ERROR: Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	appCfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.ApplyEnv(appCfg, defaultEnvPath); err != nil {
		return fmt.Errorf("failed to apply environment: %w", err)
	}

	cleanupLogs, err := logging.Init(&appCfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()

	slog.Info("dynview Started", "version", version.Version)

	dbConn, st, err := initDB(appCfg)
	if err != nil {
		return err
	}
	defer dbConn.Close()

	if err := maintenance.Run(ctx, st, appCfg.DB.Retention.Std()); err != nil {
		slog.Error("Maintenance tasks failed", "error", err)
	}
	go maintenance.Schedule(ctx, st, appCfg.DB.Retention.Std(), maintenanceInterval)

	hub := notify.NewHub(st, notificationBuffer)
	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		hub.Run(ctx)
	}()

	sched := core.NewScheduler(appCfg.Ticker.TickInterval.Std())
	bus := event.NewBus()
	registry := mockhost.New(appCfg.Mock, sched, bus)

	ctrl, err := viewdistance.New(appCfg, registry, sched.Meter(), sched, bus,
		viewdistance.WithNotifier(hub))
	if err != nil {
		return fmt.Errorf("failed to create controller: %w", err)
	}

	if err := verifyStartup(ctx, dbConn, sched.Meter()); err != nil {
		return err
	}

	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		sched.Start(ctx)
	}()

	if err := sched.Call(ctx, func() {
		ctrl.Start()
		if appCfg.Mock.Enabled {
			registry.Start()
		}
	}); err != nil {
		return fmt.Errorf("failed to start controller: %w", err)
	}

	vdH := api.NewViewDistanceHandler(sched, ctrl, registry, sched.Meter().Averages)
	notesH := api.NewNotificationHandler(st, hub)
	srv := api.NewServer(appCfg.Server.Address, vdH, notesH)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	serverErr := runServerLifecycle(ctx, srv, quit)

	// Tear down on the tick goroutine before stopping it.
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	if err := sched.Call(stopCtx, func() {
		registry.Stop()
		ctrl.Destroy()
	}); err != nil {
		slog.Warn("Controller teardown skipped", "error", err)
	}

	cancel()
	<-schedDone
	<-hubDone
	slog.Info("dynview stopped")
	return serverErr
}

func initDB(appCfg *config.Config) (*db.DB, store.Store, error) {
	dbConn, err := db.Init(appCfg.DB.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return dbConn, store.NewSQLiteStore(dbConn), nil
}

func verifyStartup(ctx context.Context, dbConn *db.DB, meter *core.TPSMeter) error {
	probes := []probe.Probe{
		probe.Database(dbConn),
		probe.Metric(meter),
	}
	results := probe.Run(ctx, probes)
	if err := probe.AnalyzeResults(results); err != nil {
		return fmt.Errorf("startup checks failed: %w", err)
	}
	return nil
}

func runServerLifecycle(ctx context.Context, srv *http.Server, quit chan os.Signal) error {
	slog.Info("Starting server", "addr", srv.Addr)
	serverErrors := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()
	select {
	case <-quit:
		slog.Info("Shutting down server...")
	case <-ctx.Done():
		slog.Info("Context cancelled, shutting down...")
	case err := <-serverErrors:
		return fmt.Errorf("server failed: %w", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

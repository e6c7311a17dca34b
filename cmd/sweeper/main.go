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

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/feral-file/lt-indexer/internal/adapter"
	"github.com/feral-file/lt-indexer/internal/config"
	"github.com/feral-file/lt-indexer/internal/logger"
	"github.com/feral-file/lt-indexer/internal/metrics"
	"github.com/feral-file/lt-indexer/internal/store"
	"github.com/feral-file/lt-indexer/internal/sweeper"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

func main() {
	flag.Parse()

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadSweeperConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize logger with sentry integration
	err = logger.Initialize(logger.Config{
		Debug:           cfg.Debug,
		SentryDSN:       cfg.SentryDSN,
		Environment:     cfg.Environment,
		Service:         "sweeper",
		BreadcrumbLevel: zapcore.InfoLevel,
		Tags: map[string]string{
			"service": "sweeper",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting Sweeper")

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{})
	if err != nil {
		logger.FatalCtx(ctx, "Failed to connect to database", zap.Error(err), zap.String("host", cfg.Database.Host))
	}

	// Replays only read, so they can run on the replica
	if readDSN := cfg.Database.ReadDSN(); readDSN != "" {
		if err := store.RegisterReadReplica(db, readDSN); err != nil {
			logger.FatalCtx(ctx, "Failed to register read replica", zap.Error(err))
		}
	}

	// Configure connection pool
	if err := store.ConfigureConnectionPool(db, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime, cfg.Database.ConnMaxIdleTime); err != nil {
		logger.FatalCtx(ctx, "Failed to configure connection pool", zap.Error(err))
	}
	logger.InfoCtx(ctx, "Connected to database",
		zap.Int("max_open_conns", cfg.Database.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.Database.MaxIdleConns),
	)

	// Initialize store
	dataStore := store.NewPGStore(db)

	reconciliationSweeper := sweeper.NewReconciliationSweeper(sweeper.ReconciliationSweeperConfig{
		Interval:       cfg.Reconciliation.Interval,
		Tolerance:      cfg.Reconciliation.Tolerance,
		BatchSize:      cfg.Reconciliation.BatchSize,
		WorkerPoolSize: cfg.Reconciliation.PoolSize,
		RunOnStart:     cfg.Reconciliation.RunOnStart,
	}, dataStore, adapter.NewClock(), adapter.NewJSON())

	if last, err := sweeper.LastResult(ctx, dataStore, adapter.NewJSON()); err != nil {
		logger.WarnCtx(ctx, "Failed to read last reconciliation result", zap.Error(err))
	} else if last != nil {
		logger.InfoCtx(ctx, "Last reconciliation",
			zap.Time("finished_at", last.FinishedAt),
			zap.Int64("balances", last.Balances),
			zap.Int64("drifted", last.Drifted),
		)
	}

	errChan := make(chan error, 2)

	metricsServer := metrics.NewServer(cfg.MetricsAddr)
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	// Start the sweeper in a goroutine
	go func() {
		if err := reconciliationSweeper.Start(ctx); err != nil {
			errChan <- err
		}
	}()

	// Wait for interrupt signal or error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errChan:
		logger.ErrorCtx(ctx, err)
	}

	// Give the sweeper time to finish the current user
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := reconciliationSweeper.Stop(shutdownCtx); err != nil {
		logger.ErrorCtx(shutdownCtx, err)
	}
	cancel()

	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.WarnCtx(shutdownCtx, "Failed to shut down metrics server", zap.Error(err))
	}

	logger.InfoCtx(shutdownCtx, "Sweeper stopped")
}

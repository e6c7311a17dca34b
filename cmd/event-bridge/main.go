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
	"github.com/feral-file/lt-indexer/internal/block"
	"github.com/feral-file/lt-indexer/internal/bridge"
	"github.com/feral-file/lt-indexer/internal/cache"
	"github.com/feral-file/lt-indexer/internal/config"
	"github.com/feral-file/lt-indexer/internal/logger"
	"github.com/feral-file/lt-indexer/internal/metrics"
	"github.com/feral-file/lt-indexer/internal/processor"
	"github.com/feral-file/lt-indexer/internal/providers/ethereum"
	"github.com/feral-file/lt-indexer/internal/ratelimit"
	"github.com/feral-file/lt-indexer/internal/store"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

func main() {
	flag.Parse()

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadEventBridgeConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize logger with sentry integration
	err = logger.Initialize(logger.Config{
		Debug:           cfg.Debug,
		SentryDSN:       cfg.SentryDSN,
		Environment:     cfg.Environment,
		Service:         "event-bridge",
		BreadcrumbLevel: zapcore.InfoLevel,
		Tags: map[string]string{
			"service": "event-bridge",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting Event Bridge")

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{})
	if err != nil {
		logger.FatalCtx(ctx, "Failed to connect to database", zap.Error(err), zap.String("host", cfg.Database.Host))
	}
	if err := store.ConfigureConnectionPool(db, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime, cfg.Database.ConnMaxIdleTime); err != nil {
		logger.FatalCtx(ctx, "Failed to configure connection pool", zap.Error(err))
	}
	logger.InfoCtx(ctx, "Connected to database")

	// Initialize store
	dataStore := store.NewPGStore(db)

	// Initialize adapters
	clockAdapter := adapter.NewClock()
	jsonAdapter := adapter.NewJSON()
	natsJS := adapter.NewNatsJetStream()

	// Redis holds the exchange rate cache read by the API and backs the RPC rate limiter
	var (
		redisClient adapter.RedisClient
		rateCache   processor.RateCache
	)
	if cfg.Redis.Addr != "" {
		redisClient = adapter.NewRedisClient(adapter.RedisOptions{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			ClientName: "lt-event-bridge",
		})
		defer func() { _ = redisClient.Close() }()
		if err := adapter.PingRedis(ctx, redisClient, 5*time.Second); err != nil {
			logger.WarnCtx(ctx, "Redis is unreachable, exchange rates will be cached once it recovers", zap.Error(err))
		}
		rateCache = cache.NewRateCache(redisClient.Cmdable(), cfg.Redis.KeyPrefix, cfg.Redis.RateTTL)
	} else {
		logger.WarnCtx(ctx, "Redis not configured, exchange rates are served from the database only")
	}

	var limiter ratelimit.Limiter
	if cfg.RateLimit.RequestsPerSecond > 0 {
		limiter, err = ratelimit.NewLimiter("ethereum-rpc", cfg.RateLimit, redisClient, clockAdapter)
		if err != nil {
			logger.FatalCtx(ctx, "Failed to create rate limiter", zap.Error(err))
		}
	}

	// The processor reads token metadata and exchange rates over RPC
	ethDialer := adapter.NewEthClientDialer()
	adapterEthClient, err := ethDialer.Dial(ctx, cfg.Ethereum.RPCURL)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to dial Ethereum RPC", zap.Error(err))
	}
	defer adapterEthClient.Close()

	blockProvider := block.NewBlockProvider(
		ethereum.NewBlockFetcher(adapterEthClient, limiter),
		block.Config{
			TTL:         cfg.Ethereum.BlockHeadTTL,
			StaleWindow: cfg.Ethereum.BlockHeadStaleWindow,
		},
		clockAdapter,
	)
	ethereumClient, err := ethereum.NewClient(ethereum.Config{
		ChainID:     cfg.Ethereum.ChainID,
		Protocol:    cfg.Protocol,
		CallRetries: cfg.Ethereum.CallRetries,
	}, adapterEthClient, blockProvider, limiter)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to create Ethereum client", zap.Error(err))
	}

	eventProcessor := processor.NewProcessor(
		processor.Config{FactoryAddress: cfg.Protocol.FactoryAddress},
		dataStore,
		ethereumClient,
		rateCache,
		clockAdapter,
	)

	// Create bridge
	eventBridge, err := bridge.NewBridge(
		bridge.Config{
			URL:            cfg.NATS.URL,
			StreamName:     cfg.NATS.StreamName,
			SubjectPrefix:  cfg.NATS.SubjectPrefix,
			ConsumerName:   cfg.NATS.ConsumerName,
			MaxReconnects:  cfg.NATS.MaxReconnects,
			ReconnectWait:  cfg.NATS.ReconnectWait,
			ConnectionName: cfg.NATS.ConnectionName,
			AckWaitTimeout: cfg.NATS.AckWait,
			MaxDeliver:     cfg.NATS.MaxDeliver,
			NakDelay:       cfg.NATS.NakDelay,
		},
		natsJS,
		eventProcessor,
		jsonAdapter,
	)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to create event bridge", zap.Error(err))
	}
	defer eventBridge.Close()
	logger.InfoCtx(ctx, "Event bridge created", zap.String("stream", cfg.NATS.StreamName), zap.String("consumer", cfg.NATS.ConsumerName))

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Channel for bridge and metrics server errors
	errCh := make(chan error, 2)

	metricsServer := metrics.NewServer(cfg.MetricsAddr)
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	// Start the bridge
	go func() {
		if err := eventBridge.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or error
	select {
	case sig := <-sigCh:
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	case err := <-errCh:
		logger.ErrorCtx(ctx, err, zap.String("component", "bridge"))
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Failed to shut down metrics server", zap.Error(err))
	}

	logger.Info("Event Bridge stopped")
}

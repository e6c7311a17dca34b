package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
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
	"github.com/feral-file/lt-indexer/internal/config"
	"github.com/feral-file/lt-indexer/internal/emitter"
	"github.com/feral-file/lt-indexer/internal/logger"
	"github.com/feral-file/lt-indexer/internal/providers/ethereum"
	"github.com/feral-file/lt-indexer/internal/providers/jetstream"
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
	cfg, err := config.LoadEthereumEmitterConfig(*configFile, *envPath)
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
		Service:         "ethereum-event-emitter",
		BreadcrumbLevel: zapcore.InfoLevel,
		Tags: map[string]string{
			"service": "ethereum-event-emitter",
			"chain":   string(cfg.Ethereum.ChainID),
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting Ethereum Event Emitter")

	// Connect to database (block cursor only)
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{})
	if err != nil {
		logger.FatalCtx(ctx, "Failed to connect to database", zap.Error(err), zap.String("host", cfg.Database.Host))
	}
	logger.InfoCtx(ctx, "Connected to database")

	// Initialize store
	dataStore := store.NewPGStore(db)

	// Initialize adapters
	clockAdapter := adapter.NewClock()
	jsonAdapter := adapter.NewJSON()
	natsJS := adapter.NewNatsJetStream()

	// Redis backs the distributed RPC rate limiter when configured
	var redisClient adapter.RedisClient
	if cfg.Redis.Addr != "" {
		redisClient = adapter.NewRedisClient(adapter.RedisOptions{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			ClientName: "lt-ethereum-event-emitter",
		})
		defer func() { _ = redisClient.Close() }()
		if err := adapter.PingRedis(ctx, redisClient, 5*time.Second); err != nil {
			logger.WarnCtx(ctx, "Redis is unreachable, rate limiting falls back to local", zap.Error(err))
		}
	}

	var limiter ratelimit.Limiter
	if cfg.RateLimit.RequestsPerSecond > 0 {
		limiter, err = ratelimit.NewLimiter("ethereum-rpc", cfg.RateLimit, redisClient, clockAdapter)
		if err != nil {
			logger.FatalCtx(ctx, "Failed to create rate limiter", zap.Error(err))
		}
	}

	// Initialize ethereum client
	ethDialer := adapter.NewEthClientDialer()
	adapterEthClient, err := ethDialer.Dial(ctx, cfg.Ethereum.WebSocketURL)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to dial Ethereum WebSocket", zap.Error(err))
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
		LogPageSize: cfg.Ethereum.LogPageSize,
		CallRetries: cfg.Ethereum.CallRetries,
	}, adapterEthClient, blockProvider, limiter)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to create Ethereum client", zap.Error(err))
	}

	// Leveraged tokens created before the saved cursor are not replayed, so
	// register every one created since the protocol was deployed
	if err := ethereumClient.LoadInstruments(ctx); err != nil {
		logger.FatalCtx(ctx, "Failed to load leveraged tokens", zap.Error(err))
	}

	// Initialize NATS publisher
	natsPublisher, err := jetstream.NewPublisher(
		ctx,
		jetstream.Config{
			URL:            cfg.NATS.URL,
			StreamName:     cfg.NATS.StreamName,
			SubjectPrefix:  cfg.NATS.SubjectPrefix,
			MaxReconnects:  cfg.NATS.MaxReconnects,
			ReconnectWait:  cfg.NATS.ReconnectWait,
			ConnectionName: cfg.NATS.ConnectionName,
		}, natsJS, jsonAdapter)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to create NATS publisher", zap.Error(err), zap.String("url", cfg.NATS.URL))
	}
	defer natsPublisher.Close()
	logger.InfoCtx(ctx, "Connected to NATS JetStream")

	// Initialize Ethereum subscriber
	ethSubscriber := ethereum.NewSubscriber(ethereum.SubscriberConfig{
		ChainID:    cfg.Ethereum.ChainID,
		BlockTicks: cfg.Emitter.BlockTicks,
	}, ethereumClient, blockProvider)
	defer ethSubscriber.Close()

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	eventEmitter := emitter.NewEmitter(
		ethSubscriber,
		natsPublisher,
		dataStore,
		emitter.Config{
			ChainID:         cfg.Ethereum.ChainID,
			StartBlock:      cfg.Ethereum.StartBlock,
			CursorSaveFreq:  cfg.Emitter.CursorSaveFreq,
			CursorSaveDelay: cfg.Emitter.CursorSaveDelay,
		},
		clockAdapter,
	)
	defer eventEmitter.Close()

	// Channel for emitter errors
	errCh := make(chan error, 1)

	// Start the emitter
	go func() {
		if err := eventEmitter.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or error
	select {
	case sig := <-sigCh:
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	case err := <-errCh:
		logger.ErrorCtx(ctx, err, zap.String("component", "emitter"))
		cancel()
	}

	// Give some time for graceful shutdown
	time.Sleep(time.Second)

	// Use non-context logger for final shutdown message since context is already canceled
	logger.Info("Ethereum Event Emitter stopped")
}

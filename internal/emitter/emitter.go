package emitter

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/feral-file/lt-indexer/internal/adapter"
	"github.com/feral-file/lt-indexer/internal/domain"
	"github.com/feral-file/lt-indexer/internal/logger"
	"github.com/feral-file/lt-indexer/internal/messaging"
	"github.com/feral-file/lt-indexer/internal/metrics"
	"github.com/feral-file/lt-indexer/internal/store"
)

// Config holds the configuration for the event emitter
type Config struct {
	ChainID domain.Chain
	// StartBlock is used when no cursor has been saved yet
	StartBlock      uint64
	CursorSaveFreq  uint64        // Save cursor every N blocks
	CursorSaveDelay time.Duration // Or save cursor every N seconds
}

// Emitter defines the interface for the event emitter
type Emitter interface {
	// Run starts the event emitter
	Run(ctx context.Context) error
	// Close closes the emitter and cleans up resources
	Close()
}

// emitter reads ledger events from the chain and publishes them to NATS
type emitter struct {
	subscriber messaging.Subscriber
	publisher  messaging.Publisher
	store      store.CursorStore
	config     Config
	clock      adapter.Clock
}

// NewEmitter creates a new event emitter
func NewEmitter(
	sub messaging.Subscriber,
	pub messaging.Publisher,
	st store.CursorStore,
	cfg Config,
	clock adapter.Clock,
) Emitter {
	return &emitter{
		subscriber: sub,
		publisher:  pub,
		store:      st,
		config:     cfg,
		clock:      clock,
	}
}

// startBlock resolves where to resume: after the saved cursor, else the
// configured start block, else the chain head
func (e *emitter) startBlock(ctx context.Context) (uint64, error) {
	chain := string(e.config.ChainID)

	cursor, err := e.store.GetBlockCursor(ctx, chain)
	if err != nil {
		return 0, fmt.Errorf("failed to get block cursor: %w", err)
	}
	if cursor > 0 {
		logger.InfoCtx(ctx, "Resuming from last published block",
			zap.String("chain", chain),
			zap.Uint64("block", cursor+1))
		return cursor + 1, nil
	}

	if e.config.StartBlock > 0 {
		logger.InfoCtx(ctx, "Starting from configured block",
			zap.String("chain", chain),
			zap.Uint64("block", e.config.StartBlock))
		return e.config.StartBlock, nil
	}

	latest, err := e.subscriber.GetLatestBlock(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get latest block number: %w", err)
	}
	logger.WarnCtx(ctx, "No cursor or start block, starting from the chain head",
		zap.String("chain", chain),
		zap.Uint64("block", latest))
	return latest, nil
}

// Run publishes events until the subscription fails or ctx is done.
//
// The cursor records the last block whose events were all published. An event
// at block N proves every log of the blocks below N was delivered, since the
// subscriber delivers logs in order. Block ticks do not move the cursor.
func (e *emitter) Run(ctx context.Context) error {
	start, err := e.startBlock(ctx)
	if err != nil {
		return err
	}

	chain := string(e.config.ChainID)
	var savedBlock uint64
	if start > 0 {
		savedBlock = start - 1
	}
	lastSaveTime := e.clock.Now()

	handler := func(event *domain.LedgerEvent) error {
		if err := e.publisher.PublishEvent(ctx, event); err != nil {
			return fmt.Errorf("failed to publish event %s: %w", event.ID(), err)
		}
		metrics.EventsPublished.WithLabelValues(string(event.EventType)).Inc()
		metrics.EmitterBlock.Set(float64(event.BlockNumber))

		if event.EventType == domain.EventTypeBlockTick || event.BlockNumber == 0 {
			return nil
		}

		complete := event.BlockNumber - 1
		if complete <= savedBlock {
			return nil
		}
		if complete-savedBlock < e.config.CursorSaveFreq && e.clock.Since(lastSaveTime) < e.config.CursorSaveDelay {
			return nil
		}

		if err := e.store.SetBlockCursor(ctx, chain, complete); err != nil {
			// Publishing is idempotent, a stale cursor only replays events
			logger.ErrorCtx(ctx, err,
				zap.String("message", "Failed to save block cursor"),
				zap.Uint64("block", complete))
			return nil
		}
		savedBlock = complete
		lastSaveTime = e.clock.Now()
		logger.DebugCtx(ctx, "Saved block cursor", zap.String("chain", chain), zap.Uint64("block", complete))
		return nil
	}

	logger.InfoCtx(ctx, "Starting event subscription", zap.String("chain", chain), zap.Uint64("from_block", start))
	return e.subscriber.SubscribeEvents(ctx, start, handler)
}

// Close closes the emitter and cleans up resources
func (e *emitter) Close() {
	e.subscriber.Close()
	e.publisher.Close()
}

package ethereum

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/feral-file/lt-indexer/internal/block"
	"github.com/feral-file/lt-indexer/internal/domain"
	"github.com/feral-file/lt-indexer/internal/logger"
	"github.com/feral-file/lt-indexer/internal/messaging"
)

// catchUpWindow is the number of blocks replayed per FilterLogs round during catch-up
const catchUpWindow = 50_000

// SubscriberConfig holds the configuration of the log subscriber
type SubscriberConfig struct {
	ChainID domain.Chain
	// BlockTicks emits a block_tick event for every new head
	BlockTicks bool
}

type ethSubscriber struct {
	client EthereumClient
	blocks block.BlockProvider
	config SubscriberConfig
}

// NewSubscriber creates a subscriber that replays historical protocol logs and then follows the chain
func NewSubscriber(cfg SubscriberConfig, client EthereumClient, blocks block.BlockProvider) messaging.Subscriber {
	return &ethSubscriber{
		client: client,
		blocks: blocks,
		config: cfg,
	}
}

// SubscribeEvents delivers protocol events from fromBlock onwards. The live
// subscription is opened before catching up so no block falls between the two.
// A new leveraged token widens the log filter, so the subscription is rebuilt
// from its creation block.
func (s *ethSubscriber) SubscribeEvents(ctx context.Context, fromBlock uint64, handler messaging.EventHandler) error {
	next := fromBlock
	for {
		restart, err := s.run(ctx, next, handler)
		if err != nil {
			return err
		}
		logger.InfoCtx(ctx, "Rebuilding log subscription for new leveraged token",
			zap.Uint64("from_block", restart))
		next = restart
	}
}

// run returns the block to restart from when a new instrument was registered
func (s *ethSubscriber) run(ctx context.Context, fromBlock uint64, handler messaging.EventHandler) (uint64, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	logs := make(chan types.Log, 1024)
	sub, err := s.client.SubscribeFilterLogs(ctx, s.client.LogQuery(fromBlock, nil), logs)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to subscribe to filter logs: %w", domain.ErrSubscriptionFailed, err)
	}
	defer func() {
		sub.Unsubscribe()
		logger.InfoCtx(ctx, "Unsubscribed from protocol logs")
	}()

	var (
		heads   chan *types.Header
		headErr <-chan error
	)
	if s.config.BlockTicks {
		heads = make(chan *types.Header, 64)
		headSub, err := s.client.SubscribeNewHead(ctx, heads)
		if err != nil {
			return 0, fmt.Errorf("%w: failed to subscribe to new heads: %w", domain.ErrSubscriptionFailed, err)
		}
		defer headSub.Unsubscribe()
		headErr = headSub.Err()
	}

	next, restart, err := s.catchUp(ctx, fromBlock, handler)
	if err != nil {
		return 0, err
	}
	if restart != nil {
		return *restart, nil
	}

	logger.InfoCtx(ctx, "Following new blocks", zap.Uint64("from_block", next))

	for {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()

		case err := <-sub.Err():
			return 0, fmt.Errorf("%w: %w", domain.ErrSubscriptionFailed, err)

		case err := <-headErr:
			return 0, fmt.Errorf("%w: %w", domain.ErrSubscriptionFailed, err)

		case vLog := <-logs:
			// Blocks below next were already replayed during catch-up
			if vLog.BlockNumber < next {
				continue
			}
			restart, err := s.deliver(ctx, []types.Log{vLog}, handler)
			if err != nil {
				return 0, err
			}
			if restart != nil {
				return *restart, nil
			}

		case header := <-heads:
			number := header.Number.Uint64()
			timestamp := headerTime(header)
			s.blocks.ObserveHead(number, timestamp)
			if number < next {
				continue
			}
			if err := handler(s.tick(header)); err != nil {
				return 0, err
			}
		}
	}
}

// catchUp replays logs from fromBlock to the chain head. It returns the first
// block not yet replayed, or the block to restart from when a new instrument appeared.
func (s *ethSubscriber) catchUp(ctx context.Context, fromBlock uint64, handler messaging.EventHandler) (uint64, *uint64, error) {
	from := fromBlock
	var head *types.Header

	for {
		latest, err := s.client.HeaderByNumber(ctx, nil)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to get latest block: %w", err)
		}
		head = latest
		headNumber := head.Number.Uint64()
		s.blocks.ObserveHead(headNumber, headerTime(head))

		if from > headNumber {
			break
		}

		for from <= headNumber {
			to := min(from+catchUpWindow-1, headNumber)

			logs, err := s.client.FilterLogs(ctx, s.client.LogQuery(from, &to))
			if err != nil {
				return 0, nil, fmt.Errorf("failed to replay logs %d-%d: %w", from, to, err)
			}

			logger.InfoCtx(ctx, "Replayed block range",
				zap.Uint64("from_block", from),
				zap.Uint64("to_block", to),
				zap.Int("logs", len(logs)))

			restart, err := s.deliver(ctx, logs, handler)
			if err != nil {
				return 0, nil, err
			}
			if restart != nil {
				return 0, restart, nil
			}
			from = to + 1
		}
	}

	// Refresh exchange rates once at the head instead of for every replayed block
	if s.config.BlockTicks && from > fromBlock {
		if err := handler(s.tick(head)); err != nil {
			return 0, nil, err
		}
	}

	return from, nil, nil
}

// deliver decodes and hands logs to the handler in order. Malformed logs are
// logged and skipped; any other error stops delivery.
func (s *ethSubscriber) deliver(ctx context.Context, logs []types.Log, handler messaging.EventHandler) (*uint64, error) {
	for _, vLog := range logs {
		event, err := s.client.ParseEventLog(ctx, vLog)
		if err != nil {
			if errors.Is(err, context.Canceled) || !domain.IsFatal(err) {
				return nil, err
			}
			logger.ErrorCtx(ctx, err,
				zap.String("message", "Skipping malformed log"),
				zap.String("tx_hash", vLog.TxHash.Hex()),
				zap.Uint("log_index", vLog.Index))
			continue
		}
		if event == nil {
			continue
		}

		if err := handler(event); err != nil {
			return nil, fmt.Errorf("failed to handle event %s: %w", event.ID(), err)
		}

		if event.EventType == domain.EventTypeInstrumentCreated && s.client.RegisterInstrument(event.Instrument) {
			logger.InfoCtx(ctx, "Tracking new leveraged token",
				zap.String("instrument", event.Instrument),
				zap.Uint64("block_number", event.BlockNumber))
			restart := event.BlockNumber
			return &restart, nil
		}
	}
	return nil, nil
}

func (s *ethSubscriber) tick(header *types.Header) *domain.LedgerEvent {
	hash := header.Hash().Hex()
	return &domain.LedgerEvent{
		Chain:       s.config.ChainID,
		EventType:   domain.EventTypeBlockTick,
		BlockNumber: header.Number.Uint64(),
		BlockHash:   &hash,
		Timestamp:   headerTime(header),
	}
}

func headerTime(header *types.Header) time.Time {
	return time.Unix(int64(header.Time), 0).UTC() //nolint:gosec,G115
}

// GetLatestBlock returns the latest block number
func (s *ethSubscriber) GetLatestBlock(ctx context.Context) (uint64, error) {
	return s.blocks.GetLatestBlock(ctx)
}

// Close closes the connection
func (s *ethSubscriber) Close() {
	if s.client == nil {
		return
	}

	s.client.Close()
	logger.Info("Ethereum WebSocket connection closed")
}

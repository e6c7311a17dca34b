// Package processor applies ledger events to the persisted position, user and protocol state.
package processor

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/feral-file/lt-indexer/internal/adapter"
	"github.com/feral-file/lt-indexer/internal/domain"
	"github.com/feral-file/lt-indexer/internal/logger"
	"github.com/feral-file/lt-indexer/internal/store"
	"github.com/feral-file/lt-indexer/internal/store/schema"
)

//go:generate mockgen -source=processor.go -destination=../mocks/processor.go -package=mocks -mock_names=Processor=MockProcessor,ContractReader=MockContractReader,RateCache=MockRateCache

// Config holds the protocol settings the handlers depend on
type Config struct {
	// FactoryAddress is the leveraged token factory. Mints it performs itself are ignored.
	FactoryAddress string
}

// ContractReader reads protocol state from the chain
type ContractReader interface {
	// TokenMetadata reads symbol, name and decimals of a leveraged token
	TokenMetadata(ctx context.Context, token string) (*domain.TokenMetadata, error)
	// ExchangeRates reads the exchange rate of every leveraged token at a block
	ExchangeRates(ctx context.Context, blockNumber uint64) ([]domain.ExchangeRate, error)
}

// RateCache receives exchange rates after they are committed
type RateCache interface {
	SetExchangeRates(ctx context.Context, blockNumber uint64, rates map[string]string) error
}

// Processor applies ledger events
type Processor interface {
	// Process applies one event. Applying an event that was already applied is a no-op.
	// Errors for which domain.IsFatal is true must not be retried.
	Process(ctx context.Context, event *domain.LedgerEvent) error
}

type processor struct {
	config Config
	store  store.Store
	reader ContractReader
	cache  RateCache
	clock  adapter.Clock
}

// NewProcessor creates a processor. cache may be nil.
func NewProcessor(cfg Config, st store.Store, reader ContractReader, cache RateCache, clock adapter.Clock) Processor {
	return &processor{
		config: cfg,
		store:  st,
		reader: reader,
		cache:  cache,
		clock:  clock,
	}
}

// prefetched holds chain reads made before the transaction opens
type prefetched struct {
	metadata *domain.TokenMetadata
	rates    map[string]string
}

func (p *processor) Process(ctx context.Context, event *domain.LedgerEvent) error {
	if event == nil || !event.Valid() {
		return domain.Fatal(fmt.Errorf("%w: %s", domain.ErrInvalidEvent, describe(event)))
	}

	e := normalize(event)
	id := e.ID()

	fingerprint, payload, err := e.Fingerprint()
	if err != nil {
		return domain.Fatal(err)
	}

	// Skip the chain reads when the event is a known duplicate
	existing, err := p.store.GetProcessedEvent(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to check processed event: %w", err)
	}
	if existing != nil {
		return checkDuplicate(existing, fingerprint, id)
	}

	pre, err := p.prefetch(ctx, e)
	if err != nil {
		return err
	}

	applied := false
	err = p.store.WithTx(ctx, func(tx store.Store) error {
		inserted, err := tx.MarkEventProcessed(ctx, &schema.ProcessedEvent{
			ID:          id,
			EventType:   string(e.EventType),
			BlockNumber: e.BlockNumber,
			Fingerprint: fingerprint,
			Payload:     datatypes.JSON(payload),
			ProcessedAt: p.clock.Now(),
		})
		if err != nil {
			return fmt.Errorf("failed to mark event processed: %w", err)
		}
		if !inserted {
			existing, err := tx.GetProcessedEvent(ctx, id)
			if err != nil {
				return fmt.Errorf("failed to check processed event: %w", err)
			}
			if existing == nil {
				return fmt.Errorf("processed event %s vanished", id)
			}
			return checkDuplicate(existing, fingerprint, id)
		}

		applied = true
		return p.apply(ctx, tx, e, pre)
	})
	if err != nil {
		return err
	}
	if !applied {
		return nil
	}

	if e.EventType == domain.EventTypeBlockTick && p.cache != nil && len(pre.rates) > 0 {
		// The database is the source of truth; a cache miss falls back to it
		if err := p.cache.SetExchangeRates(ctx, e.BlockNumber, pre.rates); err != nil {
			logger.WarnCtx(ctx, "Failed to cache exchange rates",
				zap.Error(err), zap.Uint64("block_number", e.BlockNumber))
		}
	}

	logger.DebugCtx(ctx, "Applied ledger event",
		zap.String("id", id),
		zap.String("event_type", string(e.EventType)),
		zap.Uint64("block_number", e.BlockNumber))
	return nil
}

func checkDuplicate(existing *schema.ProcessedEvent, fingerprint, id string) error {
	if existing.Fingerprint != fingerprint {
		return domain.Fatal(fmt.Errorf("%w: %s was processed with fingerprint %s, got %s",
			domain.ErrEventConflict, id, existing.Fingerprint, fingerprint))
	}
	logger.Debug("Skipping already processed event", zap.String("id", id))
	return nil
}

func (p *processor) prefetch(ctx context.Context, e *domain.LedgerEvent) (*prefetched, error) {
	pre := &prefetched{}

	switch e.EventType {
	case domain.EventTypeInstrumentCreated:
		metadata, err := p.reader.TokenMetadata(ctx, e.Instrument)
		if err != nil {
			return nil, fmt.Errorf("failed to read token metadata of %s: %w", e.Instrument, err)
		}
		pre.metadata = metadata

	case domain.EventTypeBlockTick:
		rates, err := p.reader.ExchangeRates(ctx, e.BlockNumber)
		if err != nil {
			return nil, fmt.Errorf("failed to read exchange rates at block %d: %w", e.BlockNumber, err)
		}
		pre.rates = make(map[string]string, len(rates))
		for _, r := range rates {
			if r.Rate == nil {
				continue
			}
			pre.rates[domain.NormalizeAddress(r.Instrument)] = r.Rate.String()
		}
	}

	return pre, nil
}

func (p *processor) apply(ctx context.Context, tx store.Store, e *domain.LedgerEvent, pre *prefetched) error {
	switch e.EventType {
	case domain.EventTypeInstrumentCreated:
		return p.handleInstrumentCreated(ctx, tx, e, pre.metadata)
	case domain.EventTypeMint:
		return p.handleMint(ctx, tx, e)
	case domain.EventTypeRedeem:
		return p.handleRedeem(ctx, tx, e)
	case domain.EventTypePrepareRedeem:
		return p.handlePrepareRedeem(ctx, tx, e)
	case domain.EventTypeExecuteRedeem:
		return p.handleExecuteRedeem(ctx, tx, e)
	case domain.EventTypeCancelRedeem:
		return p.handleCancelRedeem(ctx, tx, e)
	case domain.EventTypeTransfer:
		return p.handleTransfer(ctx, tx, e)
	case domain.EventTypeMintPausedSet:
		return p.handleMintPausedSet(ctx, tx, e)
	case domain.EventTypeBlockTick:
		return p.handleBlockTick(ctx, tx, e, pre.rates)
	case domain.EventTypeAddReferrer:
		return p.handleAddReferrer(ctx, tx, e)
	case domain.EventTypeJoinWithReferral:
		return p.handleJoinWithReferral(ctx, tx, e)
	case domain.EventTypeClaimRebate:
		return p.handleClaimRebate(ctx, tx, e)
	case domain.EventTypeDonateRebate:
		return p.handleDonateRebate(ctx, tx, e)
	case domain.EventTypeGovernanceUpdated:
		return p.handleGovernanceUpdated(ctx, tx, e)
	default:
		return domain.Fatal(fmt.Errorf("%w: unknown event type %s", domain.ErrInvalidEvent, e.EventType))
	}
}

// normalize returns a copy of the event with every address in checksum form
func normalize(event *domain.LedgerEvent) *domain.LedgerEvent {
	e := *event
	e.ContractAddress = domain.NormalizeAddress(e.ContractAddress)
	e.Instrument = domain.NormalizeAddress(e.Instrument)
	e.FromAddress = domain.NormalizeAddress(e.FromAddress)
	e.ToAddress = domain.NormalizeAddress(e.ToAddress)
	return &e
}

func describe(event *domain.LedgerEvent) string {
	if event == nil {
		return "nil event"
	}
	return fmt.Sprintf("%s %s", event.EventType, event.ID())
}

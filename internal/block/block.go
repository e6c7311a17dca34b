package block

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/feral-file/lt-indexer/internal/adapter"
	"github.com/feral-file/lt-indexer/internal/logger"
)

// defaultMaxTimestamps bounds the timestamp cache when Config.MaxTimestamps is unset
const defaultMaxTimestamps = 4096

// head is the last observed chain head
type head struct {
	number    uint64
	fetchedAt time.Time
}

// BlockProvider gives cached access to the chain head and to block timestamps.
// Event decoding asks for the timestamp of every log's block, and consecutive
// logs mostly share a block, so the cache saves most of those RPC calls.
//
//go:generate mockgen -source=block.go -destination=../mocks/block.go -package=mocks -mock_names=BlockProvider=MockBlockProvider,BlockFetcher=MockBlockFetcher
type BlockProvider interface {
	// GetLatestBlock returns the latest block number, potentially from cache
	GetLatestBlock(ctx context.Context) (uint64, error)

	// GetBlockTimestamp returns the timestamp of a block, potentially from cache
	GetBlockTimestamp(ctx context.Context, blockNumber uint64) (time.Time, error)

	// ObserveHead records a head delivered by a subscription so that the next
	// GetLatestBlock call does not need an RPC round trip
	ObserveHead(blockNumber uint64, timestamp time.Time)
}

// BlockFetcher reads block information from the chain
type BlockFetcher interface {
	// FetchLatestBlock fetches the latest block number
	FetchLatestBlock(ctx context.Context) (uint64, error)

	// FetchBlockTimestamp fetches the timestamp of a block
	FetchBlockTimestamp(ctx context.Context, blockNumber uint64) (time.Time, error)
}

// Config holds configuration for the BlockProvider
type Config struct {
	// TTL is how long the head is served from cache
	TTL time.Duration

	// StaleWindow is how long a cached head is still served when a fetch fails
	StaleWindow time.Duration

	// MaxTimestamps bounds the number of cached block timestamps.
	// The oldest blocks are evicted first.
	MaxTimestamps int
}

type blockProvider struct {
	fetcher BlockFetcher
	config  Config
	clock   adapter.Clock
	group   singleflight.Group

	mu         sync.RWMutex
	head       *head
	timestamps map[uint64]time.Time
	highest    uint64
}

// NewBlockProvider creates a BlockProvider backed by fetcher
func NewBlockProvider(fetcher BlockFetcher, config Config, clock adapter.Clock) BlockProvider {
	if config.MaxTimestamps <= 0 {
		config.MaxTimestamps = defaultMaxTimestamps
	}
	return &blockProvider{
		fetcher:    fetcher,
		config:     config,
		clock:      clock,
		timestamps: make(map[uint64]time.Time),
	}
}

func (p *blockProvider) GetLatestBlock(ctx context.Context) (uint64, error) {
	p.mu.RLock()
	cached := p.head
	p.mu.RUnlock()

	now := p.clock.Now()
	if cached != nil && now.Sub(cached.fetchedAt) < p.config.TTL {
		return cached.number, nil
	}

	v, err, _ := p.group.Do("head", func() (interface{}, error) {
		return p.fetcher.FetchLatestBlock(ctx)
	})
	if err != nil {
		if cached != nil && now.Sub(cached.fetchedAt) < p.config.StaleWindow {
			logger.WarnCtx(ctx, "Serving stale block head",
				zap.Uint64("block_number", cached.number),
				zap.Error(err))
			return cached.number, nil
		}
		return 0, fmt.Errorf("failed to fetch latest block and no valid cache available: %w", err)
	}

	number := v.(uint64)
	p.mu.Lock()
	if p.head == nil || number >= p.head.number {
		p.head = &head{number: number, fetchedAt: now}
	}
	p.mu.Unlock()

	return number, nil
}

func (p *blockProvider) GetBlockTimestamp(ctx context.Context, blockNumber uint64) (time.Time, error) {
	p.mu.RLock()
	ts, ok := p.timestamps[blockNumber]
	p.mu.RUnlock()
	if ok {
		return ts, nil
	}

	v, err, _ := p.group.Do(strconv.FormatUint(blockNumber, 10), func() (interface{}, error) {
		return p.fetcher.FetchBlockTimestamp(ctx, blockNumber)
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to fetch timestamp of block %d: %w", blockNumber, err)
	}

	ts = v.(time.Time)
	p.mu.Lock()
	p.storeTimestamp(blockNumber, ts)
	p.mu.Unlock()

	return ts, nil
}

func (p *blockProvider) ObserveHead(blockNumber uint64, timestamp time.Time) {
	now := p.clock.Now()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.head == nil || blockNumber >= p.head.number {
		p.head = &head{number: blockNumber, fetchedAt: now}
	}
	if !timestamp.IsZero() {
		p.storeTimestamp(blockNumber, timestamp)
	}
}

// storeTimestamp must be called with mu held
func (p *blockProvider) storeTimestamp(blockNumber uint64, ts time.Time) {
	p.timestamps[blockNumber] = ts
	if blockNumber > p.highest {
		p.highest = blockNumber
	}
	if len(p.timestamps) <= p.config.MaxTimestamps {
		return
	}

	// Keep the most recent MaxTimestamps/2 blocks. Block numbers below the
	// cutoff are rarely asked for again once the subscription has moved past them.
	keep := uint64(p.config.MaxTimestamps / 2) //nolint:gosec,G115
	var cutoff uint64
	if p.highest > keep {
		cutoff = p.highest - keep
	}
	for n := range p.timestamps {
		if n < cutoff {
			delete(p.timestamps, n)
		}
	}
}

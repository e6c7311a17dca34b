package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/core/types"

	"github.com/feral-file/lt-indexer/internal/adapter"
	"github.com/feral-file/lt-indexer/internal/block"
	"github.com/feral-file/lt-indexer/internal/ratelimit"
)

// blockFetcher implements block.BlockFetcher with header lookups, which are
// cheaper than full blocks on HyperEVM nodes
type blockFetcher struct {
	client  adapter.EthClient
	limiter ratelimit.Limiter
}

// NewBlockFetcher creates a block.BlockFetcher. limiter may be nil.
func NewBlockFetcher(client adapter.EthClient, limiter ratelimit.Limiter) block.BlockFetcher {
	return &blockFetcher{client: client, limiter: limiter}
}

func (f *blockFetcher) header(ctx context.Context, number *big.Int) (*types.Header, error) {
	return ratelimit.Do(ctx, f.limiter, func(ctx context.Context) (*types.Header, error) {
		return f.client.HeaderByNumber(ctx, number)
	})
}

func (f *blockFetcher) FetchLatestBlock(ctx context.Context) (uint64, error) {
	header, err := f.header(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to get latest block: %w", err)
	}
	return header.Number.Uint64(), nil
}

func (f *blockFetcher) FetchBlockTimestamp(ctx context.Context, blockNumber uint64) (time.Time, error) {
	header, err := f.header(ctx, new(big.Int).SetUint64(blockNumber))
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get block %d: %w", blockNumber, err)
	}
	return time.Unix(int64(header.Time), 0).UTC(), nil //nolint:gosec,G115
}

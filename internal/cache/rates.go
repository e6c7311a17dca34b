// Package cache keeps the latest exchange rates in Redis for the query API.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const blockField = "_block"

// setRates writes the rates only when they are not older than the cached ones.
// KEYS[1] hash, ARGV[1] block, ARGV[2] ttl in ms, ARGV[3..] field/value pairs.
var setRates = redis.NewScript(`
local current = tonumber(redis.call('HGET', KEYS[1], '_block') or '-1')
if current > tonumber(ARGV[1]) then
	return 0
end
redis.call('DEL', KEYS[1])
redis.call('HSET', KEYS[1], '_block', ARGV[1], unpack(ARGV, 3))
if tonumber(ARGV[2]) > 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 1
`)

// Rates is a snapshot of the exchange rates at a block. Rates are base-10
// strings scaled by 10^18, keyed by leveraged token address.
type Rates struct {
	BlockNumber uint64
	Rates       map[string]string
}

// RateCache stores the latest exchange rates
//
//go:generate mockgen -source=rates.go -destination=../mocks/rate_cache.go -package=mocks -mock_names=RateCache=MockExchangeRateCache
type RateCache interface {
	// SetExchangeRates replaces the cached rates unless newer ones are cached
	SetExchangeRates(ctx context.Context, blockNumber uint64, rates map[string]string) error
	// GetExchangeRates returns the cached rates, nil when nothing is cached
	GetExchangeRates(ctx context.Context) (*Rates, error)
}

type redisRateCache struct {
	client redis.Cmdable
	key    string
	ttl    time.Duration
}

// NewRateCache creates a cache stored in one Redis hash under keyPrefix.
// A zero ttl keeps the rates until overwritten.
func NewRateCache(client redis.Cmdable, keyPrefix string, ttl time.Duration) RateCache {
	return &redisRateCache{
		client: client,
		key:    keyPrefix + "exchange_rates",
		ttl:    ttl,
	}
}

func (c *redisRateCache) SetExchangeRates(ctx context.Context, blockNumber uint64, rates map[string]string) error {
	args := make([]interface{}, 0, 2+2*len(rates))
	args = append(args, blockNumber, c.ttl.Milliseconds())
	for address, rate := range rates {
		args = append(args, address, rate)
	}

	if err := setRates.Run(ctx, c.client, []string{c.key}, args...).Err(); err != nil {
		return fmt.Errorf("failed to cache exchange rates: %w", err)
	}
	return nil
}

func (c *redisRateCache) GetExchangeRates(ctx context.Context) (*Rates, error) {
	values, err := c.client.HGetAll(ctx, c.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read exchange rates: %w", err)
	}
	if len(values) == 0 {
		return nil, nil
	}

	block, err := strconv.ParseUint(values[blockField], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid cached block number %q: %w", values[blockField], err)
	}
	delete(values, blockField)

	return &Rates{BlockNumber: block, Rates: values}, nil
}

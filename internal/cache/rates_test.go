package cache_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/feral-file/lt-indexer/internal/adapter"
	"github.com/feral-file/lt-indexer/internal/cache"
)

var redisClient adapter.RedisClient

// TestMain starts a Redis container, or uses TEST_REDIS_ADDR when set
func TestMain(m *testing.M) {
	ctx := context.Background()

	addr := os.Getenv("TEST_REDIS_ADDR")
	var container testcontainers.Container
	if addr == "" {
		var err error
		container, err = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        "redis:7-alpine",
				ExposedPorts: []string{"6379/tcp"},
				WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
			},
			Started: true,
		})
		if err != nil {
			fmt.Printf("Failed to start Redis container: %v\n", err)
			os.Exit(1)
		}

		endpoint, err := container.Endpoint(ctx, "")
		if err != nil {
			fmt.Printf("Failed to get Redis endpoint: %v\n", err)
			_ = container.Terminate(ctx)
			os.Exit(1)
		}
		addr = endpoint
	}

	redisClient = adapter.NewRedisClient(adapter.RedisOptions{Addr: addr})
	code := m.Run()

	_ = redisClient.Close()
	if container != nil {
		if err := container.Terminate(ctx); err != nil {
			fmt.Printf("Failed to terminate Redis container: %v\n", err)
		}
	}
	os.Exit(code)
}

func newCache(t *testing.T, ttl time.Duration) cache.RateCache {
	t.Helper()
	prefix := fmt.Sprintf("test:%s:", t.Name())
	t.Cleanup(func() {
		redisClient.Cmdable().Del(context.Background(), prefix+"exchange_rates")
	})
	return cache.NewRateCache(redisClient.Cmdable(), prefix, ttl)
}

const (
	btc = "0x7B430c5842ce7dBa29b910c018369FA2Fa0ac2e3"
	eth = "0x5555555555555555555555555555555555555555"
)

func TestRateCache_Empty(t *testing.T) {
	c := newCache(t, 0)

	rates, err := c.GetExchangeRates(context.Background())
	require.NoError(t, err)
	assert.Nil(t, rates)
}

func TestRateCache_SetAndGet(t *testing.T) {
	ctx := context.Background()
	c := newCache(t, 0)

	require.NoError(t, c.SetExchangeRates(ctx, 100, map[string]string{
		btc: "1300000000000000000",
		eth: "700000000000000000",
	}))

	rates, err := c.GetExchangeRates(ctx)
	require.NoError(t, err)
	assert.Equal(t, &cache.Rates{
		BlockNumber: 100,
		Rates: map[string]string{
			btc: "1300000000000000000",
			eth: "700000000000000000",
		},
	}, rates)
}

func TestRateCache_NewerBlockReplaces(t *testing.T) {
	ctx := context.Background()
	c := newCache(t, 0)

	require.NoError(t, c.SetExchangeRates(ctx, 100, map[string]string{btc: "1", eth: "2"}))
	require.NoError(t, c.SetExchangeRates(ctx, 101, map[string]string{btc: "3"}))

	rates, err := c.GetExchangeRates(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(101), rates.BlockNumber)
	assert.Equal(t, map[string]string{btc: "3"}, rates.Rates)
}

func TestRateCache_OlderBlockIgnored(t *testing.T) {
	ctx := context.Background()
	c := newCache(t, 0)

	require.NoError(t, c.SetExchangeRates(ctx, 200, map[string]string{btc: "5"}))
	require.NoError(t, c.SetExchangeRates(ctx, 150, map[string]string{btc: "4"}))

	rates, err := c.GetExchangeRates(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(200), rates.BlockNumber)
	assert.Equal(t, "5", rates.Rates[btc])
}

func TestRateCache_TTL(t *testing.T) {
	ctx := context.Background()
	c := newCache(t, time.Minute)

	require.NoError(t, c.SetExchangeRates(ctx, 1, map[string]string{btc: "1"}))

	ttl, err := redisClient.Cmdable().PTTL(ctx, fmt.Sprintf("test:%s:exchange_rates", t.Name())).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 50*time.Second)
}

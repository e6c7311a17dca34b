package adapter

import (
	"context"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
)

// RedisClient is the Redis connection shared by the exchange rate cache and the RPC limiter
//
//go:generate mockgen -source=redis.go -destination=../mocks/redis.go -package=mocks -mock_names=RedisClient=MockRedisClient,RedisRateLimiter=MockRedisRateLimiter
type RedisClient interface {
	Ping(ctx context.Context) *redis.StatusCmd

	// Cmdable exposes the command set for data access
	Cmdable() redis.Cmdable

	// NewRateLimiter creates a GCRA limiter sharing this connection
	NewRateLimiter() RedisRateLimiter

	Close() error
}

// RedisOptions configures a RedisClient. ClientName shows up in CLIENT LIST
// so connections of each service can be told apart.
type RedisOptions struct {
	Addr         string
	Password     string
	DB           int
	ClientName   string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

const defaultRedisTimeout = 3 * time.Second

type redisClient struct {
	client *redis.Client
}

// NewRedisClient creates a lazily connected client, zero timeouts fall back to 3s
func NewRedisClient(opts RedisOptions) RedisClient {
	return &redisClient{
		client: redis.NewClient(&redis.Options{
			Addr:         opts.Addr,
			Password:     opts.Password,
			DB:           opts.DB,
			ClientName:   opts.ClientName,
			DialTimeout:  orDefault(opts.DialTimeout, defaultRedisTimeout),
			ReadTimeout:  orDefault(opts.ReadTimeout, defaultRedisTimeout),
			WriteTimeout: orDefault(opts.WriteTimeout, defaultRedisTimeout),
		}),
	}
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

// PingRedis checks reachability, giving up after timeout
func PingRedis(ctx context.Context, rc RedisClient, timeout time.Duration) error {
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return rc.Ping(pingCtx).Err()
}

func (r *redisClient) Ping(ctx context.Context) *redis.StatusCmd {
	return r.client.Ping(ctx)
}

func (r *redisClient) Cmdable() redis.Cmdable {
	return r.client
}

func (r *redisClient) NewRateLimiter() RedisRateLimiter {
	return redis_rate.NewLimiter(r.client)
}

func (r *redisClient) Close() error {
	return r.client.Close()
}

// RedisRateLimiter is satisfied by *redis_rate.Limiter
type RedisRateLimiter interface {
	Allow(ctx context.Context, key string, limit redis_rate.Limit) (*redis_rate.Result, error)
}

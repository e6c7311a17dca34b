// Package ratelimit throttles RPC calls across every indexer process sharing a Redis instance.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/feral-file/lt-indexer/internal/adapter"
	"github.com/feral-file/lt-indexer/internal/config"
	"github.com/feral-file/lt-indexer/internal/logger"
)

// healthCheckInterval is how often an unavailable Redis is probed again
const healthCheckInterval = 10 * time.Second

// ErrRedisUnavailable is returned when the distributed limiter fails and the local fallback is disabled
var ErrRedisUnavailable = errors.New("redis rate limiter unavailable")

// Limiter blocks until a call to a provider is allowed
//
//go:generate mockgen -source=limiter.go -destination=../mocks/ratelimit.go -package=mocks -mock_names=Limiter=MockLimiter
type Limiter interface {
	// Wait blocks until a token is acquired or ctx is done
	Wait(ctx context.Context) error
}

type limiter struct {
	name   string
	config config.RateLimitConfig
	redis  adapter.RedisClient
	clock  adapter.Clock

	distributed adapter.RedisRateLimiter
	// local serves requests while Redis is down
	local *rate.Limiter
	// preFilter keeps a single process from hammering Redis
	preFilter *rate.Limiter

	redisAvailable atomic.Bool
	mu             sync.Mutex
	lastProbe      time.Time
}

// NewLimiter creates a limiter for one provider. rc may be nil, in which case
// only the local limiter is used.
func NewLimiter(name string, cfg config.RateLimitConfig, rc adapter.RedisClient, clock adapter.Clock) (Limiter, error) {
	if cfg.RequestsPerSecond <= 0 {
		return nil, fmt.Errorf("rate limit for %s: requests_per_second must be positive", name)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = cfg.RequestsPerSecond
	}
	if cfg.LocalFallbackMultiplier <= 0 {
		cfg.LocalFallbackMultiplier = 0.5
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "lt:indexer:limiter:"
	}

	l := &limiter{
		name:      name,
		config:    cfg,
		redis:     rc,
		clock:     clock,
		local:     rate.NewLimiter(rate.Limit(max(float64(cfg.RequestsPerSecond)*cfg.LocalFallbackMultiplier, 1.0)), cfg.Burst),
		preFilter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		lastProbe: clock.Now(),
	}

	if rc == nil {
		if !cfg.EnableLocalFallback {
			return nil, fmt.Errorf("rate limit for %s: redis is required when local fallback is disabled", name)
		}
		return l, nil
	}

	l.distributed = rc.NewRateLimiter()

	if err := adapter.PingRedis(context.Background(), rc, 5*time.Second); err != nil {
		if !cfg.EnableLocalFallback {
			return nil, fmt.Errorf("%w: %w", ErrRedisUnavailable, err)
		}
		logger.Warn("Redis unavailable, using local rate limiter", zap.String("provider", name), zap.Error(err))
	} else {
		l.redisAvailable.Store(true)
	}

	return l, nil
}

// Do waits for a token and then calls fn. A nil limiter calls fn directly.
func Do[T any](ctx context.Context, l Limiter, fn func(ctx context.Context) (T, error)) (T, error) {
	if l != nil {
		if err := l.Wait(ctx); err != nil {
			var zero T
			return zero, err
		}
	}
	return fn(ctx)
}

func (l *limiter) Wait(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if !l.redisAvailable.Load() {
			l.probeRedis(ctx)
		}

		if !l.redisAvailable.Load() {
			if !l.config.EnableLocalFallback {
				return ErrRedisUnavailable
			}
			return l.local.Wait(ctx)
		}

		allowed, retryAfter, err := l.tryDistributed(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.markUnavailable()
			if !l.config.EnableLocalFallback {
				return fmt.Errorf("%w: %w", ErrRedisUnavailable, err)
			}
			logger.Warn("Redis rate limiter failed, falling back to local",
				zap.String("provider", l.name), zap.Error(err))
			continue
		}
		if allowed {
			return nil
		}

		// Spread retries over 50-150% of the advertised wait
		jitter := time.Duration(float64(retryAfter) * (0.5 + rand.Float64())) //nolint:gosec,G404
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.clock.After(jitter):
		}
	}
}

func (l *limiter) tryDistributed(ctx context.Context) (bool, time.Duration, error) {
	if err := l.preFilter.Wait(ctx); err != nil {
		return false, 0, err
	}

	res, err := l.distributed.Allow(ctx, l.config.KeyPrefix+l.name, redis_rate.PerSecond(l.config.RequestsPerSecond))
	if err != nil {
		return false, 0, err
	}
	if res.Allowed == 0 {
		logger.Debug("Rate limit reached, waiting",
			zap.String("provider", l.name),
			zap.Duration("retry_after", res.RetryAfter))
		retryAfter := res.RetryAfter
		if retryAfter <= 0 {
			retryAfter = 100 * time.Millisecond
		}
		return false, retryAfter, nil
	}
	return true, 0, nil
}

func (l *limiter) markUnavailable() {
	l.mu.Lock()
	l.lastProbe = l.clock.Now()
	l.mu.Unlock()
	l.redisAvailable.Store(false)
}

// probeRedis pings Redis at most once per health check interval
func (l *limiter) probeRedis(ctx context.Context) {
	if l.redis == nil {
		return
	}

	l.mu.Lock()
	if l.clock.Since(l.lastProbe) < healthCheckInterval {
		l.mu.Unlock()
		return
	}
	l.lastProbe = l.clock.Now()
	l.mu.Unlock()

	if err := adapter.PingRedis(ctx, l.redis, 2*time.Second); err != nil {
		return
	}

	l.redisAvailable.Store(true)
	logger.Info("Redis rate limiter restored", zap.String("provider", l.name))
}

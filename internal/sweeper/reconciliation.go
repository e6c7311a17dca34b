package sweeper

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/cenkalti/backoff/v4"
	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/feral-file/lt-indexer/internal/adapter"
	"github.com/feral-file/lt-indexer/internal/fixedpoint"
	"github.com/feral-file/lt-indexer/internal/logger"
	"github.com/feral-file/lt-indexer/internal/metrics"
	"github.com/feral-file/lt-indexer/internal/reconcile"
	"github.com/feral-file/lt-indexer/internal/store"
)

const (
	// LAST_RUN_KEY is the key-value entry holding the summary of the latest sweep
	LAST_RUN_KEY = "reconciliation:last_run"

	DEFAULT_SWEEP_INTERVAL = 15 * time.Minute
	DEFAULT_BATCH_SIZE     = 500
	DEFAULT_POOL_SIZE      = 8
)

// ReconciliationSweeperConfig holds configuration for the reconciliation sweeper
type ReconciliationSweeperConfig struct {
	Interval       time.Duration // Time between two sweeps
	Tolerance      int64         // Accepted drift in base asset units (6 decimals)
	BatchSize      int           // Balances fetched per page
	WorkerPoolSize int           // Users replayed concurrently
	RunOnStart     bool          // Sweep once as soon as the scheduler starts
}

// SweepResult summarizes one reconciliation sweep
type SweepResult struct {
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration"`
	Users      int64         `json:"users"`
	Balances   int64         `json:"balances"`
	Drifted    int64         `json:"drifted"`
	Failed     int64         `json:"failed"`
}

// ReconciliationSweeper periodically replays the history of every user holding
// a position and reports positions whose stored cost basis or realized profit
// drifted from the replay.
type ReconciliationSweeper struct {
	config    ReconciliationSweeperConfig
	tolerance *big.Int
	store     store.Store
	clock     adapter.Clock
	json      adapter.JSON
	running   atomic.Bool
	stopChan  chan struct{}
	stoppedCh chan struct{}
}

var _ Sweeper = (*ReconciliationSweeper)(nil)

// NewReconciliationSweeper creates a new reconciliation sweeper
func NewReconciliationSweeper(config ReconciliationSweeperConfig, st store.Store, clock adapter.Clock, jsonAdapter adapter.JSON) *ReconciliationSweeper {
	if config.Interval <= 0 {
		config.Interval = DEFAULT_SWEEP_INTERVAL
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DEFAULT_BATCH_SIZE
	}
	if config.WorkerPoolSize <= 0 {
		config.WorkerPoolSize = DEFAULT_POOL_SIZE
	}
	return &ReconciliationSweeper{
		config:    config,
		tolerance: big.NewInt(config.Tolerance),
		store:     st,
		clock:     clock,
		json:      jsonAdapter,
		stopChan:  make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Name returns the sweeper's name
func (s *ReconciliationSweeper) Name() string {
	return "reconciliation-sweeper"
}

// Start schedules a sweep every interval and blocks until the context is
// canceled or Stop is called
func (s *ReconciliationSweeper) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("sweeper already running")
	}
	defer func() {
		s.running.Store(false)
		close(s.stoppedCh)
	}()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	options := []gocron.JobOption{
		gocron.WithName(s.Name()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	}
	if s.config.RunOnStart {
		options = append(options, gocron.WithStartAt(gocron.WithStartImmediately()))
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(s.config.Interval),
		gocron.NewTask(func() { s.run(runCtx) }),
		options...,
	)
	if err != nil {
		_ = scheduler.Shutdown()
		return fmt.Errorf("failed to schedule reconciliation: %w", err)
	}

	logger.InfoCtx(ctx, "Starting reconciliation sweeper",
		zap.Duration("interval", s.config.Interval),
		zap.Int64("tolerance", s.config.Tolerance),
		zap.Int("batch_size", s.config.BatchSize),
		zap.Int("worker_pool_size", s.config.WorkerPoolSize),
	)
	scheduler.Start()

	select {
	case <-ctx.Done():
		logger.InfoCtx(ctx, "Reconciliation sweeper stopping due to context cancellation", zap.Error(ctx.Err()))
	case <-s.stopChan:
		logger.InfoCtx(ctx, "Reconciliation sweeper stop requested")
	}

	// Abort an in-flight sweep, then wait for it to return
	cancel()
	if err := scheduler.Shutdown(); err != nil {
		logger.WarnCtx(ctx, "Failed to shut down reconciliation scheduler", zap.Error(err))
	}
	return nil
}

// Stop gracefully stops the sweeper with timeout support
func (s *ReconciliationSweeper) Stop(ctx context.Context) error {
	if !s.running.Load() {
		return nil
	}

	logger.InfoCtx(ctx, "Stopping reconciliation sweeper")
	select {
	case <-s.stopChan:
	default:
		close(s.stopChan)
	}

	select {
	case <-s.stoppedCh:
		logger.InfoCtx(ctx, "Reconciliation sweeper stopped gracefully")
		return nil
	case <-ctx.Done():
		logger.WarnCtx(ctx, "Reconciliation sweeper stop interrupted by context timeout")
		return ctx.Err()
	}
}

func (s *ReconciliationSweeper) run(ctx context.Context) {
	result, err := s.Sweep(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		metrics.ReconciliationRuns.WithLabelValues("failure").Inc()
		logger.ErrorCtx(ctx, err)
		return
	}
	metrics.ReconciliationRuns.WithLabelValues("success").Inc()
	metrics.ReconciliationDuration.Observe(result.Duration.Seconds())
}

// Sweep replays every user holding a position once. Balances are walked in
// (user, leveraged token) order so each user is submitted once even when their
// balances span two pages.
func (s *ReconciliationSweeper) Sweep(ctx context.Context) (*SweepResult, error) {
	startTime := s.clock.Now()
	logger.InfoCtx(ctx, "Starting reconciliation sweep")

	pool := pond.NewPool(
		s.config.WorkerPoolSize,
		pond.WithQueueSize(s.config.BatchSize),
		pond.WithContext(ctx),
	)

	var users, balances, drifted, failed atomic.Int64
	filter := store.BalanceFilter{Limit: s.config.BatchSize}
	lastUser := ""
	for {
		page, err := s.store.ListBalances(ctx, filter)
		if err != nil {
			pool.StopAndWait()
			return nil, fmt.Errorf("failed to list balances: %w", err)
		}

		for i := range page {
			user := page[i].UserAddress
			if user == lastUser {
				continue
			}
			lastUser = user
			users.Add(1)
			pool.Submit(func() {
				s.checkUser(ctx, user, &balances, &drifted, &failed)
			})
		}

		if len(page) < s.config.BatchSize {
			break
		}
		last := page[len(page)-1]
		filter.AfterUser = last.UserAddress
		filter.AfterLeveragedToken = last.LeveragedToken
	}
	pool.StopAndWait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	finishedAt := s.clock.Now()
	result := &SweepResult{
		StartedAt:  startTime,
		FinishedAt: finishedAt,
		Duration:   finishedAt.Sub(startTime),
		Users:      users.Load(),
		Balances:   balances.Load(),
		Drifted:    drifted.Load(),
		Failed:     failed.Load(),
	}

	logger.InfoCtx(ctx, "Reconciliation sweep completed",
		zap.Duration("duration", result.Duration),
		zap.Int64("users", result.Users),
		zap.Int64("balances", result.Balances),
		zap.Int64("drifted", result.Drifted),
		zap.Int64("failed", result.Failed),
	)

	if err := s.saveResultWithRetry(ctx, result); err != nil {
		logger.ErrorCtx(ctx, fmt.Errorf("failed to save reconciliation result: %w", err))
	}

	return result, nil
}

// checkUser replays one user and records every position beyond tolerance
func (s *ReconciliationSweeper) checkUser(ctx context.Context, user string, balances, drifted, failed *atomic.Int64) {
	drifts, err := reconcile.CheckUser(ctx, s.store, user)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			failed.Add(1)
			logger.ErrorCtx(ctx, fmt.Errorf("failed to reconcile user: %w", err), zap.String("user", user))
		}
		return
	}

	for i := range drifts {
		d := &drifts[i]
		balances.Add(1)
		metrics.ReconciliationBalances.Inc()

		if !d.Exceeds(s.tolerance) {
			continue
		}
		drifted.Add(1)
		if d.CostDrift().Cmp(s.tolerance) > 0 {
			metrics.ReconciliationDrift.WithLabelValues("purchase_cost").Inc()
		}
		if d.RealizedDrift().Cmp(s.tolerance) > 0 {
			metrics.ReconciliationDrift.WithLabelValues("realized_profit").Inc()
		}

		logger.WarnCtx(ctx, "Position drifted from replay",
			zap.String("user", user),
			zap.String("leveraged_token", d.LeveragedToken),
			zap.String("replay_cost", fixedpoint.FormatUnits(d.ReplayCost, fixedpoint.BaseDecimals)),
			zap.String("stored_cost", fixedpoint.FormatUnits(d.StoredCost, fixedpoint.BaseDecimals)),
			zap.String("replay_realized", fixedpoint.FormatUnits(d.ReplayRealized, fixedpoint.BaseDecimals)),
			zap.String("stored_realized", fixedpoint.FormatUnits(d.StoredRealized, fixedpoint.BaseDecimals)),
		)
	}
}

// saveResultWithRetry stores the sweep summary with exponential backoff
func (s *ReconciliationSweeper) saveResultWithRetry(ctx context.Context, result *SweepResult) error {
	value, err := s.json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 5 * time.Minute

	var attemptCount int
	notifyOnError := func(err error, duration time.Duration) {
		attemptCount++
		logger.WarnCtx(ctx, "Saving reconciliation result failed, retrying",
			zap.Error(err),
			zap.Int("attempt", attemptCount),
			zap.Duration("next_retry_in", duration),
		)
	}

	return backoff.RetryNotify(func() error {
		return s.store.SetKeyValue(ctx, LAST_RUN_KEY, string(value))
	}, backoff.WithContext(b, ctx), notifyOnError)
}

// LastResult reads the summary of the latest sweep, nil when none ran yet
func LastResult(ctx context.Context, st store.CursorStore, jsonAdapter adapter.JSON) (*SweepResult, error) {
	value, err := st.GetKeyValue(ctx, LAST_RUN_KEY)
	if err != nil {
		return nil, fmt.Errorf("failed to get last reconciliation result: %w", err)
	}
	if value == "" {
		return nil, nil
	}

	var result SweepResult
	if err := jsonAdapter.Unmarshal([]byte(value), &result); err != nil {
		return nil, fmt.Errorf("failed to parse last reconciliation result: %w", err)
	}
	return &result, nil
}

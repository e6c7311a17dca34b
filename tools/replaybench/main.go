// Command replaybench measures how fast position histories can be replayed
// from the ledger database and how many balance rows drift from their replay.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/feral-file/lt-indexer/internal/config"
	"github.com/feral-file/lt-indexer/internal/reconcile"
	"github.com/feral-file/lt-indexer/internal/store"
)

const (
	defaultPageSize    = 1000
	defaultConcurrency = 4
	maxConcurrency     = 32
)

type Config struct {
	ConfigFile  string
	EnvPath     string
	MaxUsers    int   // Maximum users to replay (0 = all)
	Concurrency int   // Users replayed at once
	Tolerance   int64 // Accepted drift in base asset units
	OutputFile  string
	Debug       bool
}

func main() {
	cfg := parseFlags()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\n\nReceived interrupt signal, shutting down...")
		cancel()
	}()

	config.ChdirRepoRoot()
	sweeperCfg, err := config.LoadSweeperConfig(cfg.ConfigFile, cfg.EnvPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	db, err := gorm.Open(postgres.Open(sweeperCfg.Database.DSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		fmt.Printf("Error connecting to database: %v\n", err)
		os.Exit(1)
	}
	if err := store.ConfigureConnectionPool(db, cfg.Concurrency*2, cfg.Concurrency, time.Hour, 10*time.Minute); err != nil {
		fmt.Printf("Error configuring connection pool: %v\n", err)
		os.Exit(1)
	}
	st := store.NewPGStore(db)

	fmt.Printf("Connected to %s:%d/%s\n", sweeperCfg.Database.Host, sweeperCfg.Database.Port, sweeperCfg.Database.DBName)
	fmt.Printf("\nCollecting users...\n")

	users, err := collectUsers(ctx, st, cfg.MaxUsers)
	if err != nil {
		fmt.Printf("Error collecting users: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Replaying %d users with %d workers\n", len(users), cfg.Concurrency)

	stats := runReplays(ctx, st, users, cfg)

	title := "BENCHMARK RESULTS"
	if ctx.Err() != nil {
		title = "INTERRUPTED - PARTIAL RESULTS"
	}
	fmt.Println("\n\n" + strings.Repeat("=", 80))
	fmt.Println(title)
	fmt.Println(strings.Repeat("=", 80))
	printStats(stats)

	if cfg.OutputFile != "" {
		if err := writeMarkdownReport(cfg.OutputFile, stats); err != nil {
			fmt.Printf("\n⚠️  Warning: Failed to write markdown file: %v\n", err)
		} else {
			fmt.Printf("\n✓ Report written to: %s\n", cfg.OutputFile)
		}
	}
}

func parseFlags() *Config {
	cfg := &Config{}

	flag.StringVar(&cfg.ConfigFile, "config", "", "Path to configuration file")
	flag.StringVar(&cfg.EnvPath, "env", "config/", "Path to environment files")
	flag.IntVar(&cfg.MaxUsers, "max-users", 0, "Maximum users to replay (0 = all)")
	flag.IntVar(&cfg.Concurrency, "concurrency", defaultConcurrency, "Number of concurrent replays")
	flag.Int64Var(&cfg.Tolerance, "tolerance", 1, "Accepted drift in base asset units (6 decimals)")
	flag.StringVar(&cfg.OutputFile, "output", "", "Output markdown file path (optional)")
	flag.BoolVar(&cfg.Debug, "debug", false, "Print every drifted position")

	flag.Parse()

	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.Concurrency > maxConcurrency {
		cfg.Concurrency = maxConcurrency
	}
	if cfg.Tolerance < 0 {
		cfg.Tolerance = 0
	}

	return cfg
}

// collectUsers walks the balance table in (user, token) order and returns each
// user once
func collectUsers(ctx context.Context, st store.Store, maxUsers int) ([]string, error) {
	var users []string
	filter := store.BalanceFilter{Limit: defaultPageSize}
	for {
		page, err := st.ListBalances(ctx, filter)
		if err != nil {
			return nil, err
		}
		for _, b := range page {
			if len(users) > 0 && users[len(users)-1] == b.UserAddress {
				continue
			}
			users = append(users, b.UserAddress)
			if maxUsers > 0 && len(users) >= maxUsers {
				return users, nil
			}
		}
		if len(page) < filter.Limit {
			return users, nil
		}
		last := page[len(page)-1]
		filter.AfterUser = last.UserAddress
		filter.AfterLeveragedToken = last.LeveragedToken
	}
}

// runReplays loads and replays every user, timing the database and the cost
// engine separately
func runReplays(ctx context.Context, st store.Store, users []string, cfg *Config) *ReplayStats {
	stats := newReplayStats(time.Now())
	tolerance := big.NewInt(cfg.Tolerance)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Concurrency)

	for i, user := range users {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			sample := replayUser(gctx, st, user, tolerance)

			mu.Lock()
			stats.add(sample)
			done := stats.Users
			mu.Unlock()

			if cfg.Debug {
				for _, d := range sample.Drifted {
					fmt.Printf("\n  drift %s %s cost %s/%s realized %s/%s",
						d.User, d.LeveragedToken, d.ReplayCost, d.StoredCost, d.ReplayRealized, d.StoredRealized)
				}
			} else if (i+1)%100 == 0 || done == len(users) {
				fmt.Printf("\r⏳ Replaying... (%d/%d users, elapsed: %s)    ", done, len(users), formatDuration(time.Since(stats.StartTime)))
			}
			return nil
		})
	}
	_ = g.Wait()

	stats.finish(time.Now())
	return stats
}

func replayUser(ctx context.Context, st store.Store, user string, tolerance *big.Int) UserSample {
	sample := UserSample{User: user}

	loadStart := time.Now()
	balances, err := st.ListBalancesByUser(ctx, user)
	if err != nil {
		sample.Err = err
		return sample
	}
	history, err := reconcile.LoadHistory(ctx, st, user)
	sample.LoadTime = time.Since(loadStart)
	if err != nil {
		sample.Err = err
		return sample
	}
	sample.Events = len(history.Trades) + len(history.Transfers)

	replayStart := time.Now()
	for i := range balances {
		drift, err := history.Compare(&balances[i])
		if err != nil {
			sample.Err = err
			break
		}
		sample.Positions++
		if drift.Exceeds(tolerance) {
			sample.Drifted = append(sample.Drifted, *drift)
		}
	}
	sample.ReplayTime = time.Since(replayStart)
	return sample
}

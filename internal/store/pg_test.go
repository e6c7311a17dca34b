package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	pgdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// ledgerTables are truncated between tests, children first
var ledgerTables = []string{
	"processed_events",
	"pending_redemptions",
	"transfers",
	"trades",
	"balances",
	"users",
	"leveraged_tokens",
	"global_storage",
	"key_value_store",
}

var (
	pgOnce      sync.Once
	pgDB        *gorm.DB
	pgErr       error
	pgContainer *postgres.PostgresContainer
)

func TestMain(m *testing.M) {
	code := m.Run()
	if pgContainer != nil {
		if err := pgContainer.Terminate(context.Background()); err != nil {
			fmt.Printf("Failed to terminate PostgreSQL container: %v\n", err)
		}
	}
	os.Exit(code)
}

// testDSN points at TEST_DB_HOST when set, otherwise at a throwaway container
func testDSN(ctx context.Context) (string, error) {
	if host := os.Getenv("TEST_DB_HOST"); host != "" {
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			host,
			envOr("TEST_DB_PORT", "5432"),
			envOr("TEST_DB_USER", "postgres"),
			envOr("TEST_DB_PASSWORD", "postgres"),
			envOr("TEST_DB_NAME", "lt_indexer_test"),
		), nil
	}

	var err error
	pgContainer, err = postgres.Run(ctx,
		"postgres:18-alpine",
		postgres.WithDatabase("lt_indexer_test"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		return "", fmt.Errorf("failed to start postgres container: %w", err)
	}
	return pgContainer.ConnectionString(ctx, "sslmode=disable")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// openTestDB connects once per package run and applies db/init_pg_db.sql
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	pgOnce.Do(func() {
		ctx := context.Background()
		dsn, err := testDSN(ctx)
		if err != nil {
			pgErr = err
			return
		}

		db, err := gorm.Open(pgdriver.Open(dsn), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
		if err != nil {
			pgErr = fmt.Errorf("failed to connect: %w", err)
			return
		}
		if err := ConfigureConnectionPool(db, 10, 5, time.Minute, time.Minute); err != nil {
			pgErr = err
			return
		}

		schemaSQL, err := os.ReadFile(filepath.Join("..", "..", "db", "init_pg_db.sql")) //nolint:gosec,G304
		if err != nil {
			pgErr = fmt.Errorf("failed to read schema: %w", err)
			return
		}
		if err := db.Exec(string(schemaSQL)).Error; err != nil {
			pgErr = fmt.Errorf("failed to apply schema: %w", err)
			return
		}
		pgDB = db
	})
	require.NoError(t, pgErr)
	return pgDB
}

func truncateLedger(t *testing.T, db *gorm.DB) {
	t.Helper()
	err := db.Exec("TRUNCATE " + strings.Join(ledgerTables, ", ") + " RESTART IDENTITY CASCADE").Error
	require.NoError(t, err)
}

// TestPostgreSQLStore runs the shared store suite against PostgreSQL
func TestPostgreSQLStore(t *testing.T) {
	if testing.Short() {
		t.Skip("postgres store tests need docker or TEST_DB_HOST")
	}
	db := openTestDB(t)

	RunStoreTests(t,
		func(t *testing.T) Store {
			truncateLedger(t, db)
			return NewPGStore(db)
		},
		func(t *testing.T) {
			truncateLedger(t, db)
		},
	)
}

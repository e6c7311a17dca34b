package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/plugin/dbresolver"

	"github.com/feral-file/lt-indexer/internal/domain"
	"github.com/feral-file/lt-indexer/internal/store/schema"
)

type pgStore struct {
	db *gorm.DB
}

func hasDBResolver(db *gorm.DB) bool {
	return db != nil && db.Callback().Query().Get("gorm:db_resolver") != nil
}

// NewPGStore creates a new PostgreSQL store instance
func NewPGStore(db *gorm.DB) Store {
	return &pgStore{db: db}
}

// RegisterReadReplica routes read queries of db to the replica at readDSN.
// Writes, transactions and locking reads stay on the primary.
func RegisterReadReplica(db *gorm.DB, readDSN string) error {
	err := db.Use(dbresolver.Register(dbresolver.Config{
		Replicas: []gorm.Dialector{postgres.Open(readDSN)},
		Policy:   dbresolver.RandomPolicy{},
	}))
	if err != nil {
		return fmt.Errorf("failed to register read replica: %w", err)
	}
	return nil
}

// ConfigureConnectionPool configures the connection pool settings for a GORM database connection.
// Zero values fall back to NormalizeConnectionPoolSettings defaults.
func ConfigureConnectionPool(db *gorm.DB, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime =
		NormalizeConnectionPoolSettings(maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime)

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	return nil
}

// NormalizeConnectionPoolSettings applies defaults and clamps pool settings into safe values.
//
// Defaults (when zero):
//   - MaxOpenConns: 20
//   - MaxIdleConns: 5
//   - ConnMaxLifetime: 5 minutes
//   - ConnMaxIdleTime: 10 minutes
func NormalizeConnectionPoolSettings(maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) (int, int, time.Duration, time.Duration) {
	if maxOpenConns == 0 {
		maxOpenConns = 20
	}
	if maxIdleConns == 0 {
		maxIdleConns = 5
	}
	if connMaxLifetime == 0 {
		connMaxLifetime = 5 * time.Minute
	}
	if connMaxIdleTime == 0 {
		connMaxIdleTime = 10 * time.Minute
	}

	if maxIdleConns > maxOpenConns {
		maxIdleConns = maxOpenConns
	}

	return maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime
}

// first loads a single row into dest. A row missing on a read replica is
// retried on the primary to absorb replication lag.
func (s *pgStore) first(ctx context.Context, dest any, query string, args ...any) (bool, error) {
	err := s.db.WithContext(ctx).Where(query, args...).First(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) && hasDBResolver(s.db) {
		err = s.db.WithContext(ctx).Clauses(dbresolver.Write).Where(query, args...).First(dest).Error
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// lockAndUpdate selects a row FOR UPDATE, applies fn and saves it, all in one transaction
func lockAndUpdate[T any](ctx context.Context, db *gorm.DB, notFound error, fn func(*T) error, query string, args ...any) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row T
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where(query, args...).First(&row).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound
			}
			return fmt.Errorf("failed to lock row: %w", err)
		}

		if err := fn(&row); err != nil {
			return err
		}

		if err := tx.Save(&row).Error; err != nil {
			return fmt.Errorf("failed to save row: %w", err)
		}
		return nil
	})
}

// WithTx runs fn inside a transaction
func (s *pgStore) WithTx(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&pgStore{db: tx})
	})
}

// MarkEventProcessed records an event as applied
func (s *pgStore) MarkEventProcessed(ctx context.Context, event *schema.ProcessedEvent) (bool, error) {
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(event)
	if result.Error != nil {
		return false, fmt.Errorf("failed to mark event processed: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// GetProcessedEvent retrieves a processed event marker by id
func (s *pgStore) GetProcessedEvent(ctx context.Context, id string) (*schema.ProcessedEvent, error) {
	var event schema.ProcessedEvent
	found, err := s.first(ctx, &event, "id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("failed to get processed event: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &event, nil
}

// CreateLeveragedToken inserts a leveraged token, ignoring duplicates
func (s *pgStore) CreateLeveragedToken(ctx context.Context, token *schema.LeveragedToken) (bool, error) {
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "address"}}, DoNothing: true}).
		Create(token)
	if result.Error != nil {
		return false, fmt.Errorf("failed to create leveraged token: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// GetLeveragedToken retrieves a leveraged token by address
func (s *pgStore) GetLeveragedToken(ctx context.Context, address string) (*schema.LeveragedToken, error) {
	var token schema.LeveragedToken
	found, err := s.first(ctx, &token, "address = ?", address)
	if err != nil {
		return nil, fmt.Errorf("failed to get leveraged token: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &token, nil
}

// ListLeveragedTokens retrieves every leveraged token ordered by creation
func (s *pgStore) ListLeveragedTokens(ctx context.Context) ([]schema.LeveragedToken, error) {
	var tokens []schema.LeveragedToken
	err := s.db.WithContext(ctx).Order("created_block ASC, address ASC").Find(&tokens).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list leveraged tokens: %w", err)
	}
	return tokens, nil
}

// UpdateLeveragedToken atomically applies fn to a leveraged token
func (s *pgStore) UpdateLeveragedToken(ctx context.Context, address string, fn func(*schema.LeveragedToken) error) error {
	return lockAndUpdate(ctx, s.db, domain.ErrInstrumentNotFound, fn, "address = ?", address)
}

// SetExchangeRates overwrites the exchange rate of known leveraged tokens
func (s *pgStore) SetExchangeRates(ctx context.Context, rates map[string]string) (int, error) {
	if len(rates) == 0 {
		return 0, nil
	}

	updated := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for address, rate := range rates {
			result := tx.Model(&schema.LeveragedToken{}).
				Where("address = ?", address).
				Updates(map[string]any{"exchange_rate": rate, "updated_at": time.Now()})
			if result.Error != nil {
				return fmt.Errorf("failed to set exchange rate for %s: %w", address, result.Error)
			}
			updated += int(result.RowsAffected)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}

// EnsureUser inserts an empty user row if none exists
func (s *pgStore) EnsureUser(ctx context.Context, address string) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "address"}}, DoNothing: true}).
		Create(schema.NewUser(address)).Error
	if err != nil {
		return fmt.Errorf("failed to ensure user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by address
func (s *pgStore) GetUser(ctx context.Context, address string) (*schema.User, error) {
	var user schema.User
	found, err := s.first(ctx, &user, "address = ?", address)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &user, nil
}

// GetUserByReferralCode retrieves the user that registered a referral code
func (s *pgStore) GetUserByReferralCode(ctx context.Context, code string) (*schema.User, error) {
	var user schema.User
	found, err := s.first(ctx, &user, "referral_code = ?", code)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by referral code: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &user, nil
}

// UpdateUser atomically applies fn to a user
func (s *pgStore) UpdateUser(ctx context.Context, address string, fn func(*schema.User) error) error {
	return lockAndUpdate(ctx, s.db, domain.ErrUserNotFound, fn, "address = ?", address)
}

// ListUsers retrieves users ordered by address
func (s *pgStore) ListUsers(ctx context.Context, filter UserFilter) ([]schema.User, error) {
	query := s.db.WithContext(ctx).Model(&schema.User{})
	if filter.AfterAddress != "" {
		query = query.Where("address > ?", filter.AfterAddress)
	}
	if filter.ReferrersOnly {
		query = query.Where("referral_code IS NOT NULL")
	}
	if filter.ReferrerAddress != "" {
		query = query.Where("referrer_address = ?", filter.ReferrerAddress)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var users []schema.User
	if err := query.Order("address ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// EnsureBalance inserts an empty balance row if none exists
func (s *pgStore) EnsureBalance(ctx context.Context, user, leveragedToken string) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_address"}, {Name: "leveraged_token"}},
			DoNothing: true,
		}).
		Create(schema.NewBalance(user, leveragedToken)).Error
	if err != nil {
		return fmt.Errorf("failed to ensure balance: %w", err)
	}
	return nil
}

// GetBalance retrieves the balance of a user in a leveraged token
func (s *pgStore) GetBalance(ctx context.Context, user, leveragedToken string) (*schema.Balance, error) {
	var balance schema.Balance
	found, err := s.first(ctx, &balance, "user_address = ? AND leveraged_token = ?", user, leveragedToken)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &balance, nil
}

// UpdateBalance atomically applies fn to a balance
func (s *pgStore) UpdateBalance(ctx context.Context, user, leveragedToken string, fn func(*schema.Balance) error) error {
	return lockAndUpdate(ctx, s.db, domain.ErrBalanceNotFound, fn,
		"user_address = ? AND leveraged_token = ?", user, leveragedToken)
}

// ListBalancesByUser retrieves every balance of a user
func (s *pgStore) ListBalancesByUser(ctx context.Context, user string) ([]schema.Balance, error) {
	var balances []schema.Balance
	err := s.db.WithContext(ctx).
		Where("user_address = ?", user).
		Order("leveraged_token ASC").
		Find(&balances).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list balances for user: %w", err)
	}
	return balances, nil
}

// ListBalances retrieves balances ordered by (user, leveraged token)
func (s *pgStore) ListBalances(ctx context.Context, filter BalanceFilter) ([]schema.Balance, error) {
	query := s.db.WithContext(ctx).Model(&schema.Balance{})
	if filter.AfterUser != "" {
		query = query.Where("(user_address, leveraged_token) > (?, ?)", filter.AfterUser, filter.AfterLeveragedToken)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var balances []schema.Balance
	if err := query.Order("user_address ASC, leveraged_token ASC").Find(&balances).Error; err != nil {
		return nil, fmt.Errorf("failed to list balances: %w", err)
	}
	return balances, nil
}

// CreateTrade inserts a trade, ignoring duplicates
func (s *pgStore) CreateTrade(ctx context.Context, trade *schema.Trade) (bool, error) {
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(trade)
	if result.Error != nil {
		return false, fmt.Errorf("failed to create trade: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// GetTrade retrieves a trade by id
func (s *pgStore) GetTrade(ctx context.Context, id string) (*schema.Trade, error) {
	var trade schema.Trade
	found, err := s.first(ctx, &trade, "id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("failed to get trade: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &trade, nil
}

// ListTrades retrieves trades matching the filter
func (s *pgStore) ListTrades(ctx context.Context, filter TradeFilter) ([]schema.Trade, error) {
	query := s.db.WithContext(ctx).Model(&schema.Trade{})

	if filter.User != "" {
		query = query.Where("((trades.is_buy AND trades.recipient = ?) OR (NOT trades.is_buy AND trades.sender = ?))",
			filter.User, filter.User)
	}
	if filter.LeveragedToken != "" {
		query = query.Where("trades.leveraged_token = ?", filter.LeveragedToken)
	}
	if filter.TargetAsset != "" {
		query = query.Joins("JOIN leveraged_tokens ON leveraged_tokens.address = trades.leveraged_token").
			Where("leveraged_tokens.target_asset = ?", filter.TargetAsset)
	}

	// Walking forward in descending order, or backward in ascending order,
	// moves towards smaller keys.
	towardsSmaller := filter.Desc != filter.Backward
	if filter.Cursor != nil {
		op := ">"
		if towardsSmaller {
			op = "<"
		}
		query = query.Where(fmt.Sprintf("(trades.timestamp, trades.id) %s (?, ?)", op),
			filter.Cursor.Timestamp, filter.Cursor.ID)
	}
	if towardsSmaller {
		query = query.Order("trades.timestamp DESC, trades.id DESC")
	} else {
		query = query.Order("trades.timestamp ASC, trades.id ASC")
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var trades []schema.Trade
	if err := query.Select("trades.*").Find(&trades).Error; err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}

	if filter.Backward {
		reverseTrades(trades)
	}
	return trades, nil
}

func reverseTrades(trades []schema.Trade) {
	for i, j := 0, len(trades)-1; i < j; i, j = i+1, j-1 {
		trades[i], trades[j] = trades[j], trades[i]
	}
}

// CreateTransfer inserts a transfer, ignoring duplicates
func (s *pgStore) CreateTransfer(ctx context.Context, transfer *schema.Transfer) (bool, error) {
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(transfer)
	if result.Error != nil {
		return false, fmt.Errorf("failed to create transfer: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// ListTransfers retrieves transfers matching the filter, oldest first
func (s *pgStore) ListTransfers(ctx context.Context, filter TransferFilter) ([]schema.Transfer, error) {
	query := s.db.WithContext(ctx).Model(&schema.Transfer{})
	if filter.User != "" {
		query = query.Where("(sender = ? OR recipient = ?)", filter.User, filter.User)
	}
	if filter.LeveragedToken != "" {
		query = query.Where("leveraged_token = ?", filter.LeveragedToken)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var transfers []schema.Transfer
	if err := query.Order("timestamp ASC, block_number ASC, log_index ASC").Find(&transfers).Error; err != nil {
		return nil, fmt.Errorf("failed to list transfers: %w", err)
	}
	return transfers, nil
}

// GetPendingRedemption retrieves the outstanding redemption of a user in a leveraged token
func (s *pgStore) GetPendingRedemption(ctx context.Context, user, leveragedToken string) (*schema.PendingRedemption, error) {
	var pending schema.PendingRedemption
	found, err := s.first(ctx, &pending, "user_address = ? AND leveraged_token = ?", user, leveragedToken)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending redemption: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &pending, nil
}

// CreatePendingRedemption inserts a pending redemption
func (s *pgStore) CreatePendingRedemption(ctx context.Context, pending *schema.PendingRedemption) error {
	if err := s.db.WithContext(ctx).Create(pending).Error; err != nil {
		return fmt.Errorf("failed to create pending redemption: %w", err)
	}
	return nil
}

// UpdatePendingRedemption atomically applies fn to a pending redemption
func (s *pgStore) UpdatePendingRedemption(ctx context.Context, user, leveragedToken string, fn func(*schema.PendingRedemption) error) error {
	return lockAndUpdate(ctx, s.db, domain.ErrPendingRedemptionNotFound, fn,
		"user_address = ? AND leveraged_token = ?", user, leveragedToken)
}

// DeletePendingRedemption removes a pending redemption
func (s *pgStore) DeletePendingRedemption(ctx context.Context, user, leveragedToken string) error {
	err := s.db.WithContext(ctx).
		Where("user_address = ? AND leveraged_token = ?", user, leveragedToken).
		Delete(&schema.PendingRedemption{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete pending redemption: %w", err)
	}
	return nil
}

// GetGlobalStorage retrieves the protocol parameters
func (s *pgStore) GetGlobalStorage(ctx context.Context) (*schema.GlobalStorage, error) {
	var gs schema.GlobalStorage
	found, err := s.first(ctx, &gs, "id = ?", domain.GlobalStorageID)
	if err != nil {
		return nil, fmt.Errorf("failed to get global storage: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &gs, nil
}

// UpdateGlobalStorage ensures the singleton row exists and atomically applies fn to it
func (s *pgStore) UpdateGlobalStorage(ctx context.Context, fn func(*schema.GlobalStorage) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
			Create(schema.NewGlobalStorage(domain.GlobalStorageID)).Error
		if err != nil {
			return fmt.Errorf("failed to ensure global storage: %w", err)
		}
		return lockAndUpdate(ctx, tx, gorm.ErrRecordNotFound, fn, "id = ?", domain.GlobalStorageID)
	})
}

// GetProtocolStats aggregates trading activity across all leveraged tokens
func (s *pgStore) GetProtocolStats(ctx context.Context) (*ProtocolStats, error) {
	var stats ProtocolStats
	err := s.db.WithContext(ctx).Raw(`
		SELECT
			COALESCE(SUM(t.base_asset_amount), 0)::text AS margin_volume,
			COALESCE(SUM(div(t.base_asset_amount * l.target_leverage, 1000000000000000000)), 0)::text AS notional_volume,
			COUNT(*) AS total_trades,
			COUNT(DISTINCT CASE WHEN t.is_buy THEN t.recipient ELSE t.sender END) AS unique_users
		FROM trades t
		JOIN leveraged_tokens l ON l.address = t.leveraged_token`).
		Scan(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate trades: %w", err)
	}

	var tokens struct {
		LeveragedTokens int64
		SupportedAssets int64
	}
	err = s.db.WithContext(ctx).Raw(`
		SELECT COUNT(*) AS leveraged_tokens, COUNT(DISTINCT market_id) AS supported_assets
		FROM leveraged_tokens`).
		Scan(&tokens).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate leveraged tokens: %w", err)
	}
	stats.LeveragedTokens = tokens.LeveragedTokens
	stats.SupportedAssets = tokens.SupportedAssets

	return &stats, nil
}

// GetDailyVolumes aggregates trading volume per UTC day, oldest first
func (s *pgStore) GetDailyVolumes(ctx context.Context) ([]DailyVolume, error) {
	var volumes []DailyVolume
	err := s.db.WithContext(ctx).Raw(`
		SELECT
			date_trunc('day', t.timestamp AT TIME ZONE 'UTC') AS day,
			SUM(t.base_asset_amount)::text AS margin_volume,
			SUM(div(t.base_asset_amount * l.target_leverage, 1000000000000000000))::text AS notional_volume,
			COUNT(*) AS trades
		FROM trades t
		JOIN leveraged_tokens l ON l.address = t.leveraged_token
		GROUP BY 1
		ORDER BY 1 ASC`).
		Scan(&volumes).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate daily volumes: %w", err)
	}

	for i := range volumes {
		volumes[i].Day = time.Date(volumes[i].Day.Year(), volumes[i].Day.Month(), volumes[i].Day.Day(), 0, 0, 0, 0, time.UTC)
	}
	return volumes, nil
}

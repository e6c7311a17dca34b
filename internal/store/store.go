package store

import (
	"context"
	"time"

	"github.com/feral-file/lt-indexer/internal/store/schema"
)

//go:generate mockgen -source=store.go -destination=../mocks/store.go -package=mocks -mock_names=Store=MockStore

// Store defines the interface for database operations.
//
// Addresses are expected in checksummed form. Get methods return (nil, nil)
// when the row does not exist; Update methods return the matching domain
// not-found error instead, so that handlers never apply a delta to a
// defaulted row.
type Store interface {
	CursorStore

	// WithTx runs fn inside a database transaction. The Store passed to fn is bound
	// to the transaction; any error returned by fn rolls every write back.
	WithTx(ctx context.Context, fn func(tx Store) error) error

	// MarkEventProcessed records an event as applied. It returns false when the
	// event id was already recorded.
	MarkEventProcessed(ctx context.Context, event *schema.ProcessedEvent) (bool, error)
	// GetProcessedEvent retrieves a processed event marker by id
	GetProcessedEvent(ctx context.Context, id string) (*schema.ProcessedEvent, error)

	// CreateLeveragedToken inserts a leveraged token, ignoring duplicates. It returns false for duplicates.
	CreateLeveragedToken(ctx context.Context, token *schema.LeveragedToken) (bool, error)
	// GetLeveragedToken retrieves a leveraged token by address
	GetLeveragedToken(ctx context.Context, address string) (*schema.LeveragedToken, error)
	// ListLeveragedTokens retrieves every leveraged token ordered by creation
	ListLeveragedTokens(ctx context.Context) ([]schema.LeveragedToken, error)
	// UpdateLeveragedToken atomically applies fn to a leveraged token
	UpdateLeveragedToken(ctx context.Context, address string, fn func(*schema.LeveragedToken) error) error
	// SetExchangeRates overwrites the exchange rate of known leveraged tokens and
	// returns how many rows were updated. Unknown addresses are ignored.
	SetExchangeRates(ctx context.Context, rates map[string]string) (int, error)

	// EnsureUser inserts an empty user row if none exists
	EnsureUser(ctx context.Context, address string) error
	// GetUser retrieves a user by address
	GetUser(ctx context.Context, address string) (*schema.User, error)
	// GetUserByReferralCode retrieves the user that registered a referral code
	GetUserByReferralCode(ctx context.Context, code string) (*schema.User, error)
	// UpdateUser atomically applies fn to a user
	UpdateUser(ctx context.Context, address string, fn func(*schema.User) error) error
	// ListUsers retrieves users ordered by address
	ListUsers(ctx context.Context, filter UserFilter) ([]schema.User, error)

	// EnsureBalance inserts an empty balance row if none exists
	EnsureBalance(ctx context.Context, user, leveragedToken string) error
	// GetBalance retrieves the balance of a user in a leveraged token
	GetBalance(ctx context.Context, user, leveragedToken string) (*schema.Balance, error)
	// UpdateBalance atomically applies fn to a balance
	UpdateBalance(ctx context.Context, user, leveragedToken string, fn func(*schema.Balance) error) error
	// ListBalancesByUser retrieves every balance of a user
	ListBalancesByUser(ctx context.Context, user string) ([]schema.Balance, error)
	// ListBalances retrieves balances ordered by (user, leveraged token)
	ListBalances(ctx context.Context, filter BalanceFilter) ([]schema.Balance, error)

	// CreateTrade inserts a trade, ignoring duplicates. It returns false for duplicates.
	CreateTrade(ctx context.Context, trade *schema.Trade) (bool, error)
	// GetTrade retrieves a trade by id
	GetTrade(ctx context.Context, id string) (*schema.Trade, error)
	// ListTrades retrieves trades matching the filter
	ListTrades(ctx context.Context, filter TradeFilter) ([]schema.Trade, error)

	// CreateTransfer inserts a transfer, ignoring duplicates. It returns false for duplicates.
	CreateTransfer(ctx context.Context, transfer *schema.Transfer) (bool, error)
	// ListTransfers retrieves transfers matching the filter, oldest first
	ListTransfers(ctx context.Context, filter TransferFilter) ([]schema.Transfer, error)

	// GetPendingRedemption retrieves the outstanding redemption of a user in a leveraged token
	GetPendingRedemption(ctx context.Context, user, leveragedToken string) (*schema.PendingRedemption, error)
	// CreatePendingRedemption inserts a pending redemption
	CreatePendingRedemption(ctx context.Context, pending *schema.PendingRedemption) error
	// UpdatePendingRedemption atomically applies fn to a pending redemption
	UpdatePendingRedemption(ctx context.Context, user, leveragedToken string, fn func(*schema.PendingRedemption) error) error
	// DeletePendingRedemption removes a pending redemption
	DeletePendingRedemption(ctx context.Context, user, leveragedToken string) error

	// GetGlobalStorage retrieves the protocol parameters
	GetGlobalStorage(ctx context.Context) (*schema.GlobalStorage, error)
	// UpdateGlobalStorage ensures the singleton row exists and atomically applies fn to it
	UpdateGlobalStorage(ctx context.Context, fn func(*schema.GlobalStorage) error) error

	// GetProtocolStats aggregates trading activity across all leveraged tokens
	GetProtocolStats(ctx context.Context) (*ProtocolStats, error)
	// GetDailyVolumes aggregates trading volume per UTC day, oldest first
	GetDailyVolumes(ctx context.Context) ([]DailyVolume, error)
}

// UserFilter selects users for listing
type UserFilter struct {
	// AfterAddress returns users strictly after this address
	AfterAddress string
	// ReferrersOnly returns only users that registered a referral code
	ReferrersOnly bool
	// ReferrerAddress returns only users that joined under this referrer
	ReferrerAddress string
	// Limit caps the number of rows, zero means no limit
	Limit int
}

// BalanceFilter selects balances for listing, keyset-paginated on (user, leveraged token)
type BalanceFilter struct {
	AfterUser           string
	AfterLeveragedToken string
	Limit               int
}

// TradeCursor identifies a position in the (timestamp, id) ordering of trades
type TradeCursor struct {
	Timestamp time.Time
	ID        string
}

// TradeFilter selects trades for listing
type TradeFilter struct {
	// User returns trades that change the position of this user: mints
	// received and redemptions of owned tokens
	User string
	// LeveragedToken restricts to one instrument
	LeveragedToken string
	// TargetAsset restricts to instruments on one underlying asset
	TargetAsset string
	// Cursor returns rows strictly beyond this position
	Cursor *TradeCursor
	// Backward walks from the cursor towards the start of the ordering.
	// Results are still returned in the requested order.
	Backward bool
	// Desc orders newest first
	Desc bool
	// Limit caps the number of rows, zero means no limit
	Limit int
}

// TransferFilter selects transfers for listing
type TransferFilter struct {
	// User returns transfers sent or received by this user
	User           string
	LeveragedToken string
	Limit          int
}

// ProtocolStats aggregates trading activity. Amounts are base-10 strings with 6 decimals.
type ProtocolStats struct {
	MarginVolume    string
	NotionalVolume  string
	TotalTrades     int64
	UniqueUsers     int64
	LeveragedTokens int64
	SupportedAssets int64
}

// DailyVolume is the trading volume of one UTC day. Amounts are base-10 strings with 6 decimals.
type DailyVolume struct {
	Day            time.Time
	MarginVolume   string
	NotionalVolume string
	Trades         int64
}

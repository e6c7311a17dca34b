package schema

import "time"

// User represents the users table - per-address trading and referral aggregates.
// Volumes, profits and rebates are base-asset amounts scaled by 10^6.
type User struct {
	// Address is the checksummed user address
	Address string `gorm:"column:address;primaryKey;type:text"`
	// TradeCount is the number of mints and redemptions
	TradeCount int64 `gorm:"column:trade_count;not null;default:0"`
	// MintVolumeNominal is the base amount paid in by mints
	MintVolumeNominal string `gorm:"column:mint_volume_nominal;not null;type:numeric(78,0);default:0"`
	// RedeemVolumeNominal is the base amount paid out by redemptions
	RedeemVolumeNominal string `gorm:"column:redeem_volume_nominal;not null;type:numeric(78,0);default:0"`
	// TotalVolumeNominal is MintVolumeNominal + RedeemVolumeNominal
	TotalVolumeNominal string `gorm:"column:total_volume_nominal;not null;type:numeric(78,0);default:0"`
	// MintVolumeNotional is the leveraged exposure opened by mints
	MintVolumeNotional string `gorm:"column:mint_volume_notional;not null;type:numeric(78,0);default:0"`
	// RedeemVolumeNotional is the leveraged exposure closed by redemptions
	RedeemVolumeNotional string `gorm:"column:redeem_volume_notional;not null;type:numeric(78,0);default:0"`
	// TotalVolumeNotional is MintVolumeNotional + RedeemVolumeNotional
	TotalVolumeNotional string `gorm:"column:total_volume_notional;not null;type:numeric(78,0);default:0"`
	// LastTradeTimestamp is the block time of the latest mint or redemption
	LastTradeTimestamp *time.Time `gorm:"column:last_trade_timestamp;type:timestamptz"`
	// RealizedProfit is the cumulative realized profit across instruments (signed)
	RealizedProfit string `gorm:"column:realized_profit;not null;type:numeric(78,0);default:0"`
	// ReferralCode is the code this user registered as a referrer
	ReferralCode *string `gorm:"column:referral_code;type:text;uniqueIndex"`
	// ReferrerCode is the code this user joined with
	ReferrerCode *string `gorm:"column:referrer_code;type:text"`
	// ReferrerAddress is the referrer this user joined under
	ReferrerAddress *string `gorm:"column:referrer_address;type:text;index"`
	// ReferredUserCount is the number of users that joined with this user's code
	ReferredUserCount int64 `gorm:"column:referred_user_count;not null;default:0"`
	// TotalRebates is ReferrerRebates + RefereeRebates
	TotalRebates string `gorm:"column:total_rebates;not null;type:numeric(78,0);default:0"`
	// ReferrerRebates are rebates earned as a referrer
	ReferrerRebates string `gorm:"column:referrer_rebates;not null;type:numeric(78,0);default:0"`
	// RefereeRebates are rebates earned as a referee
	RefereeRebates string `gorm:"column:referee_rebates;not null;type:numeric(78,0);default:0"`
	// ClaimedRebates are rebates already claimed
	ClaimedRebates string `gorm:"column:claimed_rebates;not null;type:numeric(78,0);default:0"`
	// CreatedAt is the timestamp when this user was first seen
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
	// UpdatedAt is the timestamp of the last row update
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the User model
func (User) TableName() string {
	return "users"
}

// NewUser returns a user row with every aggregate at zero
func NewUser(address string) *User {
	return &User{
		Address:              address,
		MintVolumeNominal:    "0",
		RedeemVolumeNominal:  "0",
		TotalVolumeNominal:   "0",
		MintVolumeNotional:   "0",
		RedeemVolumeNotional: "0",
		TotalVolumeNotional:  "0",
		RealizedProfit:       "0",
		TotalRebates:         "0",
		ReferrerRebates:      "0",
		RefereeRebates:       "0",
		ClaimedRebates:       "0",
	}
}

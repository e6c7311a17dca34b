package schema

import "time"

// Trade represents the trades table - one row per mint or redemption, never mutated
type Trade struct {
	// ID is the name-based UUID of (tx hash, log index)
	ID string `gorm:"column:id;primaryKey;type:uuid"`
	// IsBuy is true for mints and false for redemptions
	IsBuy bool `gorm:"column:is_buy;not null"`
	// LeveragedToken is the instrument address
	LeveragedToken string `gorm:"column:leveraged_token;not null;type:text;index"`
	// Sender is the minter, or the owner of the redeemed tokens
	Sender string `gorm:"column:sender;not null;type:text;index"`
	// Recipient receives the minted tokens, or the redeemed base asset
	Recipient string `gorm:"column:recipient;not null;type:text;index"`
	// BaseAssetAmount is the base amount paid or received (6 decimals)
	BaseAssetAmount string `gorm:"column:base_asset_amount;not null;type:numeric(78,0)"`
	// LeveragedTokenAmount is the token amount minted or burned (18 decimals)
	LeveragedTokenAmount string `gorm:"column:leveraged_token_amount;not null;type:numeric(78,0)"`
	// ProfitAmount is the realized profit of a redemption (6 decimals, signed)
	ProfitAmount *string `gorm:"column:profit_amount;type:numeric(78,0)"`
	// ProfitPercent is ProfitAmount over the cost basis of the redeemed tokens (18 decimals, signed)
	ProfitPercent *string `gorm:"column:profit_percent;type:numeric(78,0)"`
	// OriginTxHash is the transaction that prepared a two-phase redemption
	OriginTxHash *string `gorm:"column:origin_tx_hash;type:text"`
	// TxHash is the transaction that emitted the event
	TxHash string `gorm:"column:tx_hash;not null;type:text"`
	// LogIndex is the position of the event in its block
	LogIndex uint64 `gorm:"column:log_index;not null"`
	// BlockNumber is the block that included the event
	BlockNumber uint64 `gorm:"column:block_number;not null"`
	// Timestamp is the block time
	Timestamp time.Time `gorm:"column:timestamp;not null;type:timestamptz;index"`
}

// TableName specifies the table name for the Trade model
func (Trade) TableName() string {
	return "trades"
}

package schema

import "time"

// LeveragedToken represents the leveraged_tokens table - one row per instrument created by the factory
type LeveragedToken struct {
	// Address is the checksummed contract address of the leveraged token
	Address string `gorm:"column:address;primaryKey;type:text"`
	// Creator is the address that called the factory
	Creator string `gorm:"column:creator;not null;type:text"`
	// MarketID identifies the perpetual market backing the token
	MarketID uint32 `gorm:"column:market_id;not null;index"`
	// TargetLeverage is the leverage target scaled by 10^18
	TargetLeverage string `gorm:"column:target_leverage;not null;type:numeric(78,0)"`
	// IsLong is true for long tokens, false for short tokens
	IsLong bool `gorm:"column:is_long;not null"`
	// Symbol is the ERC-20 symbol read from the contract
	Symbol string `gorm:"column:symbol;not null;type:text"`
	// Name is the ERC-20 name read from the contract
	Name string `gorm:"column:name;not null;type:text"`
	// Decimals is the ERC-20 decimals read from the contract
	Decimals uint8 `gorm:"column:decimals;not null"`
	// TargetAsset is the underlying asset derived from the name (e.g. "BTC")
	TargetAsset string `gorm:"column:target_asset;not null;type:text;index"`
	// MintPaused indicates whether minting is paused on this token
	MintPaused bool `gorm:"column:mint_paused;not null;default:false"`
	// ExchangeRate is the latest base-asset value of one token scaled by 10^18
	ExchangeRate string `gorm:"column:exchange_rate;not null;type:numeric(78,0);default:0"`
	// TotalSupply is the outstanding supply scaled by 10^18
	TotalSupply string `gorm:"column:total_supply;not null;type:numeric(78,0);default:0"`
	// CreatedBlock is the block in which the token was created
	CreatedBlock uint64 `gorm:"column:created_block;not null"`
	// CreatedTxHash is the creation transaction hash
	CreatedTxHash string `gorm:"column:created_tx_hash;not null;type:text"`
	// CreatedAt is the block timestamp of the creation
	CreatedAt time.Time `gorm:"column:created_at;not null;type:timestamptz"`
	// UpdatedAt is the timestamp of the last row update
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the LeveragedToken model
func (LeveragedToken) TableName() string {
	return "leveraged_tokens"
}

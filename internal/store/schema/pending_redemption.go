package schema

import "time"

// PendingRedemption represents the pending_redemptions table - tokens locked by a
// prepared redemption that has not yet been executed or cancelled
type PendingRedemption struct {
	UserAddress    string `gorm:"column:user_address;primaryKey;type:text"`
	LeveragedToken string `gorm:"column:leveraged_token;primaryKey;type:text"`
	// LTAmount is the amount still awaiting execution (18 decimals)
	LTAmount string `gorm:"column:lt_amount;not null;type:numeric(78,0)"`
	// OriginTxHash is the first prepare transaction of this redemption
	OriginTxHash string `gorm:"column:origin_tx_hash;not null;type:text"`
	// LastTxHash is the latest prepare transaction merged into this redemption
	LastTxHash string `gorm:"column:last_tx_hash;not null;type:text"`
	// PreparedAt is the block time of the first prepare
	PreparedAt time.Time `gorm:"column:prepared_at;not null;type:timestamptz"`
	UpdatedAt  time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the PendingRedemption model
func (PendingRedemption) TableName() string {
	return "pending_redemptions"
}

package schema

import "time"

// GlobalStorage represents the global_storage table - the singleton row of protocol parameters
type GlobalStorage struct {
	ID                   int       `gorm:"column:id;primaryKey"`
	Owner                *string   `gorm:"column:owner;type:text"`
	AllMintsPaused       bool      `gorm:"column:all_mints_paused;not null;default:false"`
	MinTransactionSize   string    `gorm:"column:min_transaction_size;not null;type:numeric(78,0);default:0"`
	MinLockAmount        string    `gorm:"column:min_lock_amount;not null;type:numeric(78,0);default:0"`
	RedemptionFee        string    `gorm:"column:redemption_fee;not null;type:numeric(78,0);default:0"`
	ExecuteRedemptionFee string    `gorm:"column:execute_redemption_fee;not null;type:numeric(78,0);default:0"`
	StreamingFee         string    `gorm:"column:streaming_fee;not null;type:numeric(78,0);default:0"`
	TreasuryFeeShare     string    `gorm:"column:treasury_fee_share;not null;type:numeric(78,0);default:0"`
	ReferrerRebate       string    `gorm:"column:referrer_rebate;not null;type:numeric(78,0);default:0"`
	RefereeRebate        string    `gorm:"column:referee_rebate;not null;type:numeric(78,0);default:0"`
	UpdatedAt            time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the GlobalStorage model
func (GlobalStorage) TableName() string {
	return "global_storage"
}

// NewGlobalStorage returns the singleton row with every parameter at zero
func NewGlobalStorage(id int) *GlobalStorage {
	return &GlobalStorage{
		ID:                   id,
		MinTransactionSize:   "0",
		MinLockAmount:        "0",
		RedemptionFee:        "0",
		ExecuteRedemptionFee: "0",
		StreamingFee:         "0",
		TreasuryFeeShare:     "0",
		ReferrerRebate:       "0",
		RefereeRebate:        "0",
	}
}

package schema

import (
	"time"
)

// Balance represents the balances table - the position of one user in one leveraged token.
// TotalBalance always equals LiquidBalance + CreditBalance.
type Balance struct {
	// UserAddress is the owner of the position
	UserAddress string `gorm:"column:user_address;primaryKey;type:text"`
	// LeveragedToken is the instrument address
	LeveragedToken string `gorm:"column:leveraged_token;primaryKey;type:text;index"`
	// LiquidBalance is the freely transferable amount (18 decimals)
	LiquidBalance string `gorm:"column:liquid_balance;not null;type:numeric(78,0);default:0"`
	// CreditBalance is the amount locked in a prepared redemption (18 decimals)
	CreditBalance string `gorm:"column:credit_balance;not null;type:numeric(78,0);default:0"`
	// TotalBalance is the liquid plus credit amount (18 decimals)
	TotalBalance string `gorm:"column:total_balance;not null;type:numeric(78,0);default:0"`
	// PurchaseCost is the cost basis of TotalBalance in base asset (6 decimals)
	PurchaseCost string `gorm:"column:purchase_cost;not null;type:numeric(78,0);default:0"`
	// RealizedProfit is the cumulative realized profit of this position (6 decimals, signed)
	RealizedProfit string `gorm:"column:realized_profit;not null;type:numeric(78,0);default:0"`
	// LastActivity is the block time of the latest event touching this position
	LastActivity *time.Time `gorm:"column:last_activity;type:timestamptz"`
	// CreatedAt is the timestamp when this balance was created
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
	// UpdatedAt is the timestamp when this balance was last updated
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the Balance model
func (Balance) TableName() string {
	return "balances"
}

// NewBalance returns an empty position
func NewBalance(user, leveragedToken string) *Balance {
	return &Balance{
		UserAddress:    user,
		LeveragedToken: leveragedToken,
		LiquidBalance:  "0",
		CreditBalance:  "0",
		TotalBalance:   "0",
		PurchaseCost:   "0",
		RealizedProfit: "0",
	}
}

package schema

import "time"

// Transfer represents the transfers table - token movements between two non-zero addresses
type Transfer struct {
	// ID is the name-based UUID of (tx hash, log index)
	ID             string `gorm:"column:id;primaryKey;type:uuid"`
	LeveragedToken string `gorm:"column:leveraged_token;not null;type:text;index"`
	Sender         string `gorm:"column:sender;not null;type:text;index"`
	Recipient      string `gorm:"column:recipient;not null;type:text;index"`
	// Amount is the token amount (18 decimals)
	Amount      string    `gorm:"column:amount;not null;type:numeric(78,0)"`
	TxHash      string    `gorm:"column:tx_hash;not null;type:text"`
	LogIndex    uint64    `gorm:"column:log_index;not null"`
	BlockNumber uint64    `gorm:"column:block_number;not null"`
	Timestamp   time.Time `gorm:"column:timestamp;not null;type:timestamptz"`
}

// TableName specifies the table name for the Transfer model
func (Transfer) TableName() string {
	return "transfers"
}

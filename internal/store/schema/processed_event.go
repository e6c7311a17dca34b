package schema

import (
	"time"

	"gorm.io/datatypes"
)

// ProcessedEvent represents the processed_events table - written in the same
// transaction as an event's effects so that redelivery is a no-op
type ProcessedEvent struct {
	// ID is "<tx hash>:<log index>", or "block:<n>" for block ticks
	ID string `gorm:"column:id;primaryKey;type:text"`
	// EventType is the ledger event type
	EventType string `gorm:"column:event_type;not null;type:text"`
	// BlockNumber is the block that included the event
	BlockNumber uint64 `gorm:"column:block_number;not null;index"`
	// Fingerprint is the SHA-256 of the canonical JSON payload
	Fingerprint string `gorm:"column:fingerprint;not null;type:text"`
	// Payload is the canonical JSON payload
	Payload datatypes.JSON `gorm:"column:payload;not null;type:jsonb"`
	// ProcessedAt is when the event was applied
	ProcessedAt time.Time `gorm:"column:processed_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the ProcessedEvent model
func (ProcessedEvent) TableName() string {
	return "processed_events"
}

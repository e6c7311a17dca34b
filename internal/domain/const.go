package domain

import "github.com/google/uuid"

const (
	// ZeroAddress is the EVM zero address, used as counterparty for mint and burn transfers
	ZeroAddress = "0x0000000000000000000000000000000000000000"

	// GlobalStorageID is the primary key of the singleton protocol parameters row
	GlobalStorageID = 1

	// MaxPageSize is the largest page any list query returns
	MaxPageSize = 100
)

// ledgerNamespace namespaces the name-based UUIDs derived from (tx hash, log index)
var ledgerNamespace = uuid.MustParse("6f0c9a52-3d1e-4b8a-9f57-2c4e1d7b8a90")

package dto

import (
	"time"

	"github.com/feral-file/lt-indexer/internal/store/schema"
)

// InstrumentResponse represents a leveraged token
type InstrumentResponse struct {
	Address        string    `json:"address"`
	Creator        string    `json:"creator"`
	MarketID       uint32    `json:"marketId"`
	TargetLeverage string    `json:"targetLeverage"`
	IsLong         bool      `json:"isLong"`
	Symbol         string    `json:"symbol"`
	Name           string    `json:"name"`
	Decimals       uint8     `json:"decimals"`
	Asset          string    `json:"asset"`
	MintPaused     bool      `json:"mintPaused"`
	ExchangeRate   string    `json:"exchangeRate"`
	TotalSupply    string    `json:"totalSupply"`
	CreatedBlock   uint64    `json:"createdBlock"`
	CreatedTxHash  string    `json:"createdTxHash"`
	CreatedAt      time.Time `json:"createdAt"`
}

// MapInstrumentToDTO maps a leveraged token row to its response
func MapInstrumentToDTO(t *schema.LeveragedToken) *InstrumentResponse {
	return &InstrumentResponse{
		Address:        t.Address,
		Creator:        t.Creator,
		MarketID:       t.MarketID,
		TargetLeverage: formatTokens(t.TargetLeverage),
		IsLong:         t.IsLong,
		Symbol:         t.Symbol,
		Name:           t.Name,
		Decimals:       t.Decimals,
		Asset:          t.TargetAsset,
		MintPaused:     t.MintPaused,
		ExchangeRate:   formatTokens(t.ExchangeRate),
		TotalSupply:    formatTokens(t.TotalSupply),
		CreatedBlock:   t.CreatedBlock,
		CreatedTxHash:  t.CreatedTxHash,
		CreatedAt:      t.CreatedAt,
	}
}

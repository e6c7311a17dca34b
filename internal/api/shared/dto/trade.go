package dto

import (
	"github.com/feral-file/lt-indexer/internal/fixedpoint"
	"github.com/feral-file/lt-indexer/internal/store/schema"
)

// TradeResponse represents a mint or redemption
type TradeResponse struct {
	ID                   string  `json:"id"`
	IsBuy                bool    `json:"isBuy"`
	LeveragedToken       string  `json:"leveragedToken"`
	Sender               string  `json:"sender"`
	Recipient            string  `json:"recipient"`
	BaseAssetAmount      string  `json:"baseAssetAmount"`
	LeveragedTokenAmount string  `json:"leveragedTokenAmount"`
	ProfitAmount         *string `json:"profitAmount"`
	ProfitPercent        *string `json:"profitPercent"`
	OriginTxHash         *string `json:"originTxHash,omitempty"`
	TxHash               string  `json:"txHash"`
	BlockNumber          uint64  `json:"blockNumber"`
	LogIndex             uint64  `json:"logIndex"`
	Timestamp            int64   `json:"timestamp"`
}

// PageInfo describes the position of a page in a cursor-paginated listing
type PageInfo struct {
	StartCursor     *string `json:"startCursor"`
	EndCursor       *string `json:"endCursor"`
	HasPreviousPage bool    `json:"hasPreviousPage"`
	HasNextPage     bool    `json:"hasNextPage"`
}

// TradePageResponse is a page of trades
type TradePageResponse struct {
	Items    []TradeResponse `json:"items"`
	PageInfo PageInfo        `json:"pageInfo"`
}

// MapTradeToDTO maps a trade row to its response
func MapTradeToDTO(t *schema.Trade) *TradeResponse {
	return &TradeResponse{
		ID:                   t.ID,
		IsBuy:                t.IsBuy,
		LeveragedToken:       t.LeveragedToken,
		Sender:               t.Sender,
		Recipient:            t.Recipient,
		BaseAssetAmount:      formatBase(t.BaseAssetAmount),
		LeveragedTokenAmount: formatTokens(t.LeveragedTokenAmount),
		ProfitAmount:         formatOptional(t.ProfitAmount, fixedpoint.BaseDecimals),
		ProfitPercent:        formatOptional(t.ProfitPercent, fixedpoint.Decimals),
		OriginTxHash:         t.OriginTxHash,
		TxHash:               t.TxHash,
		BlockNumber:          t.BlockNumber,
		LogIndex:             t.LogIndex,
		Timestamp:            t.Timestamp.UnixMilli(),
	}
}

// MapTradesToDTO maps trade rows to responses
func MapTradesToDTO(trades []schema.Trade) []TradeResponse {
	items := make([]TradeResponse, len(trades))
	for i := range trades {
		items[i] = *MapTradeToDTO(&trades[i])
	}
	return items
}

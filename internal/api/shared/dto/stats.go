package dto

import (
	"github.com/feral-file/lt-indexer/internal/store/schema"
)

// StatsResponse aggregates protocol activity. Amounts are base asset decimal strings.
type StatsResponse struct {
	MarginVolume     string  `json:"marginVolume"`
	NotionalVolume   string  `json:"notionalVolume"`
	AverageLeverage  float64 `json:"averageLeverage"`
	SupportedAssets  int64   `json:"supportedAssets"`
	LeveragedTokens  int64   `json:"leveragedTokens"`
	UniqueUsers      int64   `json:"uniqueUsers"`
	TotalValueLocked string  `json:"totalValueLocked"`
	OpenInterest     string  `json:"openInterest"`
	TotalTrades      int64   `json:"totalTrades"`
}

// VolumePoint is the cumulative notional volume at the start of a UTC day
type VolumePoint struct {
	Timestamp        int64  `json:"timestamp"`
	CumulativeVolume string `json:"cumulativeVolume"`
}

// GlobalStorageResponse represents the protocol parameters as raw on-chain values
type GlobalStorageResponse struct {
	Owner                *string `json:"owner"`
	AllMintsPaused       bool    `json:"allMintsPaused"`
	MinTransactionSize   string  `json:"minTransactionSize"`
	MinLockAmount        string  `json:"minLockAmount"`
	RedemptionFee        string  `json:"redemptionFee"`
	ExecuteRedemptionFee string  `json:"executeRedemptionFee"`
	StreamingFee         string  `json:"streamingFee"`
	TreasuryFeeShare     string  `json:"treasuryFeeShare"`
	ReferrerRebate       string  `json:"referrerRebate"`
	RefereeRebate        string  `json:"refereeRebate"`
}

// MapGlobalStorageToDTO maps the protocol parameter row to its response
func MapGlobalStorageToDTO(g *schema.GlobalStorage) *GlobalStorageResponse {
	return &GlobalStorageResponse{
		Owner:                g.Owner,
		AllMintsPaused:       g.AllMintsPaused,
		MinTransactionSize:   g.MinTransactionSize,
		MinLockAmount:        g.MinLockAmount,
		RedemptionFee:        g.RedemptionFee,
		ExecuteRedemptionFee: g.ExecuteRedemptionFee,
		StreamingFee:         g.StreamingFee,
		TreasuryFeeShare:     g.TreasuryFeeShare,
		ReferrerRebate:       g.ReferrerRebate,
		RefereeRebate:        g.RefereeRebate,
	}
}

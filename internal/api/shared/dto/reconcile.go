package dto

import (
	"math/big"

	"github.com/feral-file/lt-indexer/internal/fixedpoint"
	"github.com/feral-file/lt-indexer/internal/reconcile"
)

// DriftResponse compares the replayed and stored figures of a position
type DriftResponse struct {
	LeveragedToken string `json:"leveragedToken"`
	ReplayCost     string `json:"replayCost"`
	StoredCost     string `json:"storedCost"`
	ReplayRealized string `json:"replayRealized"`
	StoredRealized string `json:"storedRealized"`
	CostDrift      string `json:"costDrift"`
	RealizedDrift  string `json:"realizedDrift"`
	Drifted        bool   `json:"drifted"`
}

// ReconcileResponse lists the drift of every position of a user
type ReconcileResponse struct {
	User      string          `json:"user"`
	Tolerance string          `json:"tolerance"`
	Positions []DriftResponse `json:"positions"`
}

// MapDriftsToDTO maps drifts to a response, flagging those beyond tolerance (6 decimals)
func MapDriftsToDTO(user string, drifts []reconcile.Drift, tolerance *big.Int) *ReconcileResponse {
	positions := make([]DriftResponse, len(drifts))
	for i := range drifts {
		d := &drifts[i]
		positions[i] = DriftResponse{
			LeveragedToken: d.LeveragedToken,
			ReplayCost:     fixedpoint.FormatUnits(d.ReplayCost, fixedpoint.BaseDecimals),
			StoredCost:     fixedpoint.FormatUnits(d.StoredCost, fixedpoint.BaseDecimals),
			ReplayRealized: fixedpoint.FormatUnits(d.ReplayRealized, fixedpoint.BaseDecimals),
			StoredRealized: fixedpoint.FormatUnits(d.StoredRealized, fixedpoint.BaseDecimals),
			CostDrift:      fixedpoint.FormatUnits(d.CostDrift(), fixedpoint.BaseDecimals),
			RealizedDrift:  fixedpoint.FormatUnits(d.RealizedDrift(), fixedpoint.BaseDecimals),
			Drifted:        d.Exceeds(tolerance),
		}
	}
	return &ReconcileResponse{
		User:      user,
		Tolerance: fixedpoint.FormatUnits(tolerance, fixedpoint.BaseDecimals),
		Positions: positions,
	}
}

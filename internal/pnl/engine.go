package pnl

import (
	"fmt"
	"math/big"

	"github.com/feral-file/lt-indexer/internal/fixedpoint"
)

// Result is the outcome of replaying a position history
type Result struct {
	// Cost is the cost basis of the remaining position (6 decimals)
	Cost *big.Int
	// Realized is the cumulative realized profit (6 decimals, signed)
	Realized *big.Int
	// Amount is the remaining leveraged token amount (18 decimals)
	Amount *big.Int
	// AverageCost is the average base price per token (6 decimals per whole token)
	AverageCost *big.Int
}

// CostAndRealized replays actions with weighted average cost accounting.
// The actions must already be ordered, see NormalizeActions.
//
// Mints and incoming transfers add to the position and reset the average cost.
// Redemptions reduce the position at the current average cost and realize the
// difference between the redemption price and that average. Outgoing transfers
// shrink cost and amount proportionally without realizing anything.
func CostAndRealized(actions []Action) (*Result, error) {
	scale := fixedpoint.Scale()
	totalCost := new(big.Int)
	totalAmount := new(big.Int)
	averageCost := new(big.Int)
	realized := new(big.Int)

	for i, action := range actions {
		switch action.Type {
		case ActionTransferOut:
			if totalAmount.Sign() <= 0 {
				continue
			}
			fraction, err := fixedpoint.Div(action.LTAmount, totalAmount)
			if err != nil {
				return nil, fmt.Errorf("action %d: %w", i, err)
			}
			remaining := new(big.Int).Sub(scale, fraction)
			totalCost = fixedpoint.Mul(totalCost, remaining)
			totalAmount = fixedpoint.Mul(totalAmount, remaining)

		case ActionMint, ActionTransferIn:
			totalCost.Add(totalCost, action.BaseAmount)
			totalAmount.Add(totalAmount, action.LTAmount)
			if totalAmount.Sign() > 0 {
				avg, err := fixedpoint.Div(totalCost, totalAmount)
				if err != nil {
					return nil, fmt.Errorf("action %d: %w", i, err)
				}
				averageCost = avg
			} else {
				averageCost = new(big.Int)
			}

		case ActionRedeem:
			if action.LTAmount.Sign() == 0 {
				continue
			}
			totalAmount.Sub(totalAmount, action.LTAmount)
			totalCost = fixedpoint.Mul(totalAmount, averageCost)

			price, err := fixedpoint.Div(action.BaseAmount, action.LTAmount)
			if err != nil {
				return nil, fmt.Errorf("action %d: %w", i, err)
			}
			diff := new(big.Int).Sub(price, averageCost)
			realized.Add(realized, fixedpoint.Mul(diff, action.LTAmount))

		default:
			return nil, fmt.Errorf("action %d: unknown action type %q", i, action.Type)
		}
	}

	return &Result{
		Cost:        fixedpoint.Mul(totalAmount, averageCost),
		Realized:    realized,
		Amount:      totalAmount,
		AverageCost: averageCost,
	}, nil
}

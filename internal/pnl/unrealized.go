package pnl

import (
	"math/big"

	"github.com/feral-file/lt-indexer/internal/fixedpoint"
)

// Unrealized returns the mark-to-market profit of a position, scaled by 10^18:
// totalBalance valued at exchangeRate minus the purchase cost (6 decimals).
func Unrealized(totalBalance, exchangeRate, purchaseCost *big.Int) *big.Int {
	value := fixedpoint.Mul(totalBalance, exchangeRate)
	cost := fixedpoint.ConvertDecimals(purchaseCost, fixedpoint.BaseDecimals, fixedpoint.Decimals)
	return value.Sub(value, cost)
}

// UnrealizedPercent returns unrealized (18 decimals) over purchaseCost (6 decimals)
// as a ratio scaled by 10^18. A position without cost yields zero.
func UnrealizedPercent(unrealized, purchaseCost *big.Int) *big.Int {
	cost := fixedpoint.ConvertDecimals(purchaseCost, fixedpoint.BaseDecimals, fixedpoint.Decimals)
	if cost.Sign() == 0 {
		return new(big.Int)
	}
	ratio, _ := fixedpoint.Div(unrealized, cost)
	return ratio
}

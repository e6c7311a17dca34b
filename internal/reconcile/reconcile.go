// Package reconcile replays position histories and compares them with the
// incrementally maintained balance rows.
package reconcile

import (
	"context"
	"fmt"
	"math/big"

	"github.com/feral-file/lt-indexer/internal/fixedpoint"
	"github.com/feral-file/lt-indexer/internal/pnl"
	"github.com/feral-file/lt-indexer/internal/store"
	"github.com/feral-file/lt-indexer/internal/store/schema"
)

// Drift compares the replayed and stored figures of one position.
// Amounts are base asset units (6 decimals).
type Drift struct {
	User           string
	LeveragedToken string
	ReplayCost     *big.Int
	StoredCost     *big.Int
	ReplayRealized *big.Int
	StoredRealized *big.Int
}

// CostDrift returns |replay - stored| of the purchase cost
func (d *Drift) CostDrift() *big.Int {
	return absDiff(d.ReplayCost, d.StoredCost)
}

// RealizedDrift returns |replay - stored| of the realized profit
func (d *Drift) RealizedDrift() *big.Int {
	return absDiff(d.ReplayRealized, d.StoredRealized)
}

// Exceeds reports whether either figure drifted by more than tolerance
func (d *Drift) Exceeds(tolerance *big.Int) bool {
	return d.CostDrift().Cmp(tolerance) > 0 || d.RealizedDrift().Cmp(tolerance) > 0
}

func absDiff(a, b *big.Int) *big.Int {
	d := new(big.Int).Sub(a, b)
	return d.Abs(d)
}

// History is the full trade and transfer history of one user
type History struct {
	User      string
	Trades    []schema.Trade
	Transfers []schema.Transfer
}

// LoadHistory reads every trade and transfer touching user
func LoadHistory(ctx context.Context, st store.Store, user string) (*History, error) {
	trades, err := st.ListTrades(ctx, store.TradeFilter{User: user})
	if err != nil {
		return nil, fmt.Errorf("failed to list trades of %s: %w", user, err)
	}
	transfers, err := st.ListTransfers(ctx, store.TransferFilter{User: user})
	if err != nil {
		return nil, fmt.Errorf("failed to list transfers of %s: %w", user, err)
	}
	return &History{User: user, Trades: trades, Transfers: transfers}, nil
}

// LeveragedTokens returns the instruments appearing in the history, in order of first appearance
func (h *History) LeveragedTokens() []string {
	seen := make(map[string]struct{})
	var tokens []string
	add := func(address string) {
		if _, ok := seen[address]; ok {
			return
		}
		seen[address] = struct{}{}
		tokens = append(tokens, address)
	}
	for i := range h.Trades {
		add(h.Trades[i].LeveragedToken)
	}
	for i := range h.Transfers {
		add(h.Transfers[i].LeveragedToken)
	}
	return tokens
}

// Replay runs the cost engine over the history of one instrument
func (h *History) Replay(leveragedToken string) (*pnl.Result, error) {
	actions, err := pnl.NormalizeActions(h.User, leveragedToken, h.Trades, h.Transfers)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize actions of %s in %s: %w", h.User, leveragedToken, err)
	}
	result, err := pnl.CostAndRealized(actions)
	if err != nil {
		return nil, fmt.Errorf("failed to replay %s in %s: %w", h.User, leveragedToken, err)
	}
	return result, nil
}

// Compare replays the history behind a balance row and returns the drift
func (h *History) Compare(balance *schema.Balance) (*Drift, error) {
	result, err := h.Replay(balance.LeveragedToken)
	if err != nil {
		return nil, err
	}
	storedCost, err := fixedpoint.ParseInt(balance.PurchaseCost)
	if err != nil {
		return nil, err
	}
	storedRealized, err := fixedpoint.ParseInt(balance.RealizedProfit)
	if err != nil {
		return nil, err
	}
	return &Drift{
		User:           balance.UserAddress,
		LeveragedToken: balance.LeveragedToken,
		ReplayCost:     result.Cost,
		StoredCost:     storedCost,
		ReplayRealized: result.Realized,
		StoredRealized: storedRealized,
	}, nil
}

// CheckUser compares every balance of user with its replayed history
func CheckUser(ctx context.Context, st store.Store, user string) ([]Drift, error) {
	balances, err := st.ListBalancesByUser(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to list balances of %s: %w", user, err)
	}
	if len(balances) == 0 {
		return nil, nil
	}

	history, err := LoadHistory(ctx, st, user)
	if err != nil {
		return nil, err
	}

	drifts := make([]Drift, 0, len(balances))
	for i := range balances {
		drift, err := history.Compare(&balances[i])
		if err != nil {
			return nil, err
		}
		drifts = append(drifts, *drift)
	}
	return drifts, nil
}

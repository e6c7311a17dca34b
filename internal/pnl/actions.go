// Package pnl derives cost basis and profit and loss from a user's trade and transfer history.
package pnl

import (
	"math/big"
	"sort"
	"time"

	"github.com/feral-file/lt-indexer/internal/domain"
	"github.com/feral-file/lt-indexer/internal/fixedpoint"
	"github.com/feral-file/lt-indexer/internal/store/schema"
)

// ActionType is the kind of position change replayed by the engine
type ActionType string

const (
	ActionMint        ActionType = "MINT"
	ActionRedeem      ActionType = "REDEEM"
	ActionTransferIn  ActionType = "TRANSFER_IN"
	ActionTransferOut ActionType = "TRANSFER_OUT"
)

// Action is one position change of a single user in a single leveraged token
type Action struct {
	Type ActionType
	// BaseAmount is the base asset paid or received (6 decimals), zero for transfers
	BaseAmount *big.Int
	// LTAmount is the leveraged token amount (18 decimals)
	LTAmount *big.Int

	Timestamp   time.Time
	BlockNumber uint64
	LogIndex    uint64
	ID          string
}

// TradeBelongsTo reports whether a trade changes the position of user.
// Mints belong to the recipient of the tokens, redemptions to the owner of the burned tokens.
func TradeBelongsTo(t *schema.Trade, user string) bool {
	if t.IsBuy {
		return domain.AddressMatch(t.Recipient, user)
	}
	return domain.AddressMatch(t.Sender, user)
}

// NormalizeActions converts the trades and transfers of one (user, leveraged token)
// into actions ordered by timestamp, block number, log index and id.
//
// Transfers are ignored when they have no economic effect on the user: self
// transfers, zero amounts, mint and burn legs to the zero address, and legs
// whose counterparty is the leveraged token contract itself.
func NormalizeActions(user, leveragedToken string, trades []schema.Trade, transfers []schema.Transfer) ([]Action, error) {
	actions := make([]Action, 0, len(trades)+len(transfers))

	for i := range trades {
		t := &trades[i]
		if !domain.AddressMatch(t.LeveragedToken, leveragedToken) || !TradeBelongsTo(t, user) {
			continue
		}
		base, err := fixedpoint.ParseInt(t.BaseAssetAmount)
		if err != nil {
			return nil, err
		}
		amount, err := fixedpoint.ParseInt(t.LeveragedTokenAmount)
		if err != nil {
			return nil, err
		}

		actionType := ActionRedeem
		if t.IsBuy {
			actionType = ActionMint
		}
		actions = append(actions, Action{
			Type:        actionType,
			BaseAmount:  base,
			LTAmount:    amount,
			Timestamp:   t.Timestamp,
			BlockNumber: t.BlockNumber,
			LogIndex:    t.LogIndex,
			ID:          t.ID,
		})
	}

	for i := range transfers {
		t := &transfers[i]
		if !domain.AddressMatch(t.LeveragedToken, leveragedToken) || excludedTransfer(t) {
			continue
		}
		amount, err := fixedpoint.ParseInt(t.Amount)
		if err != nil {
			return nil, err
		}
		if amount.Sign() == 0 {
			continue
		}

		var actionType ActionType
		switch {
		case domain.AddressMatch(t.Sender, user):
			actionType = ActionTransferOut
		case domain.AddressMatch(t.Recipient, user):
			actionType = ActionTransferIn
		default:
			continue
		}
		actions = append(actions, Action{
			Type:        actionType,
			BaseAmount:  new(big.Int),
			LTAmount:    amount,
			Timestamp:   t.Timestamp,
			BlockNumber: t.BlockNumber,
			LogIndex:    t.LogIndex,
			ID:          t.ID,
		})
	}

	SortActions(actions)
	return actions, nil
}

// SortActions orders actions deterministically
func SortActions(actions []Action) {
	sort.SliceStable(actions, func(i, j int) bool {
		a, b := actions[i], actions[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		if a.BlockNumber != b.BlockNumber {
			return a.BlockNumber < b.BlockNumber
		}
		if a.LogIndex != b.LogIndex {
			return a.LogIndex < b.LogIndex
		}
		return a.ID < b.ID
	})
}

func excludedTransfer(t *schema.Transfer) bool {
	return domain.AddressMatch(t.Sender, t.Recipient) ||
		domain.IsZeroAddress(t.Sender) ||
		domain.IsZeroAddress(t.Recipient) ||
		domain.AddressMatch(t.Sender, t.LeveragedToken) ||
		domain.AddressMatch(t.Recipient, t.LeveragedToken)
}

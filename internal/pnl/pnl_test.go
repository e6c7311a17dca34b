package pnl

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/lt-indexer/internal/domain"
	"github.com/feral-file/lt-indexer/internal/fixedpoint"
	"github.com/feral-file/lt-indexer/internal/store/schema"
)

const (
	user       = "0x1111111111111111111111111111111111111111"
	other      = "0x2222222222222222222222222222222222222222"
	instrument = "0x7B430c5842ce7dBa29b910c018369FA2Fa0ac2e3"
)

func base(v string) *big.Int   { return fixedpoint.MustParseUnits(v, 6) }
func tokens(v string) *big.Int { return fixedpoint.MustParseUnits(v, 18) }

func action(t ActionType, baseAmount, ltAmount *big.Int, order int) Action {
	return Action{
		Type:       t,
		BaseAmount: baseAmount,
		LTAmount:   ltAmount,
		Timestamp:  time.Unix(int64(order), 0),
	}
}

func TestCostAndRealized(t *testing.T) {
	tests := []struct {
		name         string
		actions      []Action
		wantCost     string
		wantRealized string
	}{
		{
			name: "simple mint and redeem",
			actions: []Action{
				action(ActionMint, base("1000"), tokens("100"), 1),
				action(ActionRedeem, base("1200"), tokens("100"), 2),
			},
			wantCost:     "0",
			wantRealized: base("200").String(),
		},
		{
			name: "partial redemption",
			actions: []Action{
				action(ActionMint, base("1000"), tokens("100"), 1),
				action(ActionRedeem, base("600"), tokens("50"), 2),
			},
			wantCost:     base("500").String(),
			wantRealized: base("100").String(),
		},
		{
			name: "two stepped redemptions",
			actions: []Action{
				action(ActionMint, base("1000"), tokens("100"), 1),
				action(ActionRedeem, base("600"), tokens("50"), 2),
				action(ActionRedeem, base("600"), tokens("50"), 3),
			},
			wantCost:     "0",
			wantRealized: base("200").String(),
		},
		{
			name: "multiple mints",
			actions: []Action{
				action(ActionMint, base("1000"), tokens("100"), 1),
				action(ActionMint, base("1500"), tokens("100"), 2),
			},
			wantCost:     base("2500").String(),
			wantRealized: "0",
		},
		{
			name: "transfer out halves the position",
			actions: []Action{
				action(ActionMint, base("1000"), tokens("100"), 1),
				action(ActionTransferOut, new(big.Int), tokens("50"), 2),
			},
			wantCost:     base("500").String(),
			wantRealized: "0",
		},
		{
			name: "transfer in adds tokens at zero cost",
			actions: []Action{
				action(ActionMint, base("1000"), tokens("100"), 1),
				action(ActionTransferIn, new(big.Int), tokens("100"), 2),
			},
			wantCost:     base("1000").String(),
			wantRealized: "0",
		},
		{
			name: "transfer out of empty position is skipped",
			actions: []Action{
				action(ActionTransferOut, new(big.Int), tokens("10"), 1),
				action(ActionMint, base("100"), tokens("10"), 2),
			},
			wantCost:     base("100").String(),
			wantRealized: "0",
		},
		{
			name: "zero amount redemption is skipped",
			actions: []Action{
				action(ActionMint, base("100"), tokens("10"), 1),
				action(ActionRedeem, base("5"), new(big.Int), 2),
			},
			wantCost:     base("100").String(),
			wantRealized: "0",
		},
		{
			name: "complex sequence with 6 decimal base amounts",
			actions: []Action{
				action(ActionMint, base("100"), tokens("57.253224453563575"), 1),
				action(ActionRedeem, base("19.922026"), tokens("10"), 2),
				action(ActionRedeem, base("40.918635"), tokens("20"), 3),
				action(ActionMint, base("59.928056"), tokens("32.7505554836724"), 4),
				action(ActionRedeem, base("115.510346"), tokens("60.003779937235976"), 5),
			},
			wantCost:     "0",
			wantRealized: "16422962",
		},
		{
			name:         "empty history",
			actions:      nil,
			wantCost:     "0",
			wantRealized: "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := CostAndRealized(tt.actions)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCost, result.Cost.String())
			assert.Equal(t, tt.wantRealized, result.Realized.String())
		})
	}
}

func TestCostAndRealized_ComplexSequenceFullPrecision(t *testing.T) {
	// Base amounts expressed with 18 decimals keep the full precision of the
	// reference figures.
	actions := []Action{
		action(ActionMint, tokens("100"), tokens("57.253224453563575"), 1),
		action(ActionRedeem, tokens("19.922026"), tokens("10"), 2),
		action(ActionRedeem, tokens("40.918635"), tokens("20"), 3),
		action(ActionMint, tokens("59.928056"), tokens("32.7505554836724"), 4),
		action(ActionRedeem, tokens("115.510346"), tokens("60.003779937235976"), 5),
	}

	result, err := CostAndRealized(actions)
	require.NoError(t, err)
	assert.InDelta(t, 16.4229510054, fixedpoint.ToFloat64(result.Realized, 18), 1e-5)
	assert.InDelta(t, 0, fixedpoint.ToFloat64(result.Cost, 18), 1e-12)
}

func TestCostAndRealized_Deterministic(t *testing.T) {
	actions := []Action{
		action(ActionMint, base("100"), tokens("57.253224453563575"), 1),
		action(ActionRedeem, base("19.922026"), tokens("10"), 2),
		action(ActionTransferOut, new(big.Int), tokens("7"), 3),
		action(ActionMint, base("59.928056"), tokens("32.7505554836724"), 4),
	}

	first, err := CostAndRealized(actions)
	require.NoError(t, err)
	second, err := CostAndRealized(actions)
	require.NoError(t, err)

	assert.Equal(t, first.Cost.String(), second.Cost.String())
	assert.Equal(t, first.Realized.String(), second.Realized.String())
	assert.Equal(t, base("100").String(), actions[0].BaseAmount.String(), "inputs must not be mutated")
}

func TestCostAndRealized_UnknownAction(t *testing.T) {
	_, err := CostAndRealized([]Action{action(ActionType("BOGUS"), base("1"), tokens("1"), 1)})
	assert.Error(t, err)
}

func TestNormalizeActions(t *testing.T) {
	ts := func(sec int64) time.Time { return time.Unix(sec, 0).UTC() }

	trades := []schema.Trade{
		{ID: "t2", IsBuy: false, LeveragedToken: instrument, Sender: user, Recipient: other, BaseAssetAmount: "600000000", LeveragedTokenAmount: tokens("50").String(), Timestamp: ts(20), BlockNumber: 2, LogIndex: 1},
		{ID: "t1", IsBuy: true, LeveragedToken: instrument, Sender: other, Recipient: user, BaseAssetAmount: "1000000000", LeveragedTokenAmount: tokens("100").String(), Timestamp: ts(10), BlockNumber: 1, LogIndex: 4},
		// mint to someone else
		{ID: "t3", IsBuy: true, LeveragedToken: instrument, Sender: user, Recipient: other, BaseAssetAmount: "1", LeveragedTokenAmount: "1", Timestamp: ts(30), BlockNumber: 3},
		// other instrument
		{ID: "t4", IsBuy: true, LeveragedToken: other, Sender: user, Recipient: user, BaseAssetAmount: "1", LeveragedTokenAmount: "1", Timestamp: ts(30), BlockNumber: 3},
	}
	transfers := []schema.Transfer{
		{ID: "x1", LeveragedToken: instrument, Sender: user, Recipient: other, Amount: tokens("10").String(), Timestamp: ts(20), BlockNumber: 2, LogIndex: 0},
		{ID: "x2", LeveragedToken: instrument, Sender: other, Recipient: user, Amount: tokens("5").String(), Timestamp: ts(40), BlockNumber: 4},
		{ID: "x3", LeveragedToken: instrument, Sender: user, Recipient: user, Amount: "7", Timestamp: ts(41), BlockNumber: 4},
		{ID: "x4", LeveragedToken: instrument, Sender: domain.ZeroAddress, Recipient: user, Amount: "7", Timestamp: ts(42), BlockNumber: 4},
		{ID: "x5", LeveragedToken: instrument, Sender: user, Recipient: instrument, Amount: "7", Timestamp: ts(43), BlockNumber: 4},
		{ID: "x6", LeveragedToken: instrument, Sender: other, Recipient: user, Amount: "0", Timestamp: ts(44), BlockNumber: 4},
	}

	actions, err := NormalizeActions(user, instrument, trades, transfers)
	require.NoError(t, err)
	require.Len(t, actions, 4)

	assert.Equal(t, ActionMint, actions[0].Type)
	assert.Equal(t, "t1", actions[0].ID)
	// same timestamp and block: log index decides
	assert.Equal(t, ActionTransferOut, actions[1].Type)
	assert.Equal(t, ActionRedeem, actions[2].Type)
	assert.Equal(t, ActionTransferIn, actions[3].Type)
	assert.Equal(t, "0", actions[3].BaseAmount.String())

	result, err := CostAndRealized(actions)
	require.NoError(t, err)
	// 100 minted for 1000, 10 sent away (cost 900 for 90), 50 redeemed for 600 at avg 10,
	// then 5 received for free: 45 tokens at a truncated average of 8.888888
	assert.Equal(t, base("100").String(), result.Realized.String())
	assert.Equal(t, "399999960", result.Cost.String())
	assert.Equal(t, tokens("45").String(), result.Amount.String())
}

func TestNormalizeActions_CaseInsensitiveUser(t *testing.T) {
	trades := []schema.Trade{
		{ID: "t1", IsBuy: true, LeveragedToken: instrument, Sender: other, Recipient: "0x1111111111111111111111111111111111111111", BaseAssetAmount: "1", LeveragedTokenAmount: "1", Timestamp: time.Unix(1, 0)},
	}
	actions, err := NormalizeActions("0X1111111111111111111111111111111111111111", "0x7b430c5842ce7dba29b910c018369fa2fa0ac2e3", trades, nil)
	require.NoError(t, err)
	assert.Len(t, actions, 1)
}

func TestNormalizeActions_InvalidAmount(t *testing.T) {
	trades := []schema.Trade{
		{ID: "t1", IsBuy: true, LeveragedToken: instrument, Recipient: user, BaseAssetAmount: "abc", LeveragedTokenAmount: "1"},
	}
	_, err := NormalizeActions(user, instrument, trades, nil)
	assert.ErrorIs(t, err, fixedpoint.ErrInvalidNumber)
}

func TestUnrealized(t *testing.T) {
	balance := tokens("50")
	rate := tokens("13")
	cost := base("500")

	unrealized := Unrealized(balance, rate, cost)
	assert.Equal(t, tokens("150").String(), unrealized.String())

	percent := UnrealizedPercent(unrealized, cost)
	assert.Equal(t, tokens("0.3").String(), percent.String())

	assert.Equal(t, "0", UnrealizedPercent(unrealized, new(big.Int)).String())

	loss := Unrealized(balance, tokens("9"), cost)
	assert.Equal(t, tokens("-50").String(), loss.String())
}

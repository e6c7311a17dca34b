package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/lt-indexer/internal/fixedpoint"
)

const (
	testInstrument = "0x7B430c5842ce7dBa29b910c018369FA2Fa0ac2e3"
	testUser       = "0x1111111111111111111111111111111111111111"
	testOther      = "0x2222222222222222222222222222222222222222"
	testTxHash     = "0xabc0000000000000000000000000000000000000000000000000000000000001"
)

func TestIsValidChain(t *testing.T) {
	tests := []struct {
		name     string
		chain    Chain
		expected bool
	}{
		{name: "hyperevm mainnet", chain: ChainHyperEVMMainnet, expected: true},
		{name: "hyperevm testnet", chain: ChainHyperEVMTestnet, expected: true},
		{name: "ethereum mainnet", chain: ChainEthereumMainnet, expected: true},
		{name: "empty", chain: Chain(""), expected: false},
		{name: "unknown", chain: Chain("tezos:mainnet"), expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsValidChain(tt.chain))
		})
	}
}

func baseEvent(eventType EventType) LedgerEvent {
	return LedgerEvent{
		Chain:           ChainHyperEVMMainnet,
		EventType:       eventType,
		ContractAddress: testInstrument,
		Instrument:      testInstrument,
		TxHash:          testTxHash,
		LogIndex:        3,
		BlockNumber:     100,
		Timestamp:       time.Unix(1_700_000_000, 0).UTC(),
	}
}

func TestLedgerEvent_Valid(t *testing.T) {
	paused := true

	tests := []struct {
		name     string
		mutate   func(e *LedgerEvent)
		expected bool
	}{
		{
			name: "valid mint",
			mutate: func(e *LedgerEvent) {
				e.EventType = EventTypeMint
				e.FromAddress = testUser
				e.ToAddress = testUser
				e.BaseAmount = "1000000000"
				e.LTAmount = "100000000000000000000"
			},
			expected: true,
		},
		{
			name: "mint without amount",
			mutate: func(e *LedgerEvent) {
				e.EventType = EventTypeMint
				e.FromAddress = testUser
				e.ToAddress = testUser
				e.LTAmount = "1"
			},
			expected: false,
		},
		{
			name: "mint with negative amount",
			mutate: func(e *LedgerEvent) {
				e.EventType = EventTypeMint
				e.FromAddress = testUser
				e.ToAddress = testUser
				e.BaseAmount = "-1"
				e.LTAmount = "1"
			},
			expected: false,
		},
		{
			name: "valid transfer to zero address",
			mutate: func(e *LedgerEvent) {
				e.EventType = EventTypeTransfer
				e.FromAddress = testUser
				e.ToAddress = ZeroAddress
				e.LTAmount = "5"
			},
			expected: true,
		},
		{
			name: "transfer with malformed address",
			mutate: func(e *LedgerEvent) {
				e.EventType = EventTypeTransfer
				e.FromAddress = "0x123"
				e.ToAddress = testOther
				e.LTAmount = "5"
			},
			expected: false,
		},
		{
			name: "valid execute redeem",
			mutate: func(e *LedgerEvent) {
				e.EventType = EventTypeExecuteRedeem
				e.FromAddress = testUser
				e.LTAmount = "5"
				e.BaseAmount = "7"
			},
			expected: true,
		},
		{
			name: "valid instrument created",
			mutate: func(e *LedgerEvent) {
				e.EventType = EventTypeInstrumentCreated
				e.FromAddress = testUser
				e.TargetLeverage = "3000000000000000000"
				e.MarketID = 4
				e.IsLong = true
			},
			expected: true,
		},
		{
			name: "mint paused without flag",
			mutate: func(e *LedgerEvent) {
				e.EventType = EventTypeMintPausedSet
			},
			expected: false,
		},
		{
			name: "join with referral",
			mutate: func(e *LedgerEvent) {
				e.EventType = EventTypeJoinWithReferral
				e.FromAddress = testUser
				e.ToAddress = testOther
				e.ReferralCode = "ALPHA"
			},
			expected: true,
		},
		{
			name: "governance all mints paused",
			mutate: func(e *LedgerEvent) {
				e.EventType = EventTypeGovernanceUpdated
				e.Parameter = GovernanceAllMintsPaused
				e.Paused = &paused
			},
			expected: true,
		},
		{
			name: "governance unknown parameter",
			mutate: func(e *LedgerEvent) {
				e.EventType = EventTypeGovernanceUpdated
				e.Parameter = GovernanceParam("nope")
				e.Value = "1"
			},
			expected: false,
		},
		{
			name: "block tick without tx hash",
			mutate: func(e *LedgerEvent) {
				e.EventType = EventTypeBlockTick
				e.TxHash = ""
			},
			expected: true,
		},
		{
			name: "missing timestamp",
			mutate: func(e *LedgerEvent) {
				e.EventType = EventTypeBlockTick
				e.Timestamp = time.Time{}
			},
			expected: false,
		},
		{
			name: "unknown event type",
			mutate: func(e *LedgerEvent) {
				e.EventType = EventType("approval")
			},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := baseEvent("")
			tt.mutate(&e)
			assert.Equal(t, tt.expected, e.Valid())
		})
	}
}

func TestLedgerEvent_ID(t *testing.T) {
	e := baseEvent(EventTypeTransfer)
	assert.Equal(t, testTxHash+":3", e.ID())

	tick := baseEvent(EventTypeBlockTick)
	tick.TxHash = ""
	assert.Equal(t, "block:100", tick.ID())
}

func TestDeterministicID(t *testing.T) {
	a := DeterministicID(testTxHash, 1)
	b := DeterministicID(testTxHash, 1)
	c := DeterministicID(testTxHash, 2)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 36)

	upper := DeterministicID("0xABC0000000000000000000000000000000000000000000000000000000000001", 1)
	assert.Equal(t, a, upper, "hash case must not change the id")

	e := baseEvent(EventTypeMint)
	assert.Equal(t, DeterministicID(testTxHash, 3), e.RowID())
}

func TestLedgerEvent_Fingerprint(t *testing.T) {
	e1 := baseEvent(EventTypeMint)
	e1.BaseAmount = "10"
	e2 := e1

	h1, canonical, err := e1.Fingerprint()
	require.NoError(t, err)
	h2, _, err := e2.Fingerprint()
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Contains(t, string(canonical), `"base_amount":"10"`)

	e2.BaseAmount = "11"
	h3, _, err := e2.Fingerprint()
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}

func TestTargetAsset(t *testing.T) {
	assert.Equal(t, "BTC", TargetAsset("BTC 3x Long"))
	assert.Equal(t, "ETH", TargetAsset("  ETH  5x Short"))
	assert.Equal(t, "", TargetAsset(""))
}

func TestAddressHelpers(t *testing.T) {
	assert.True(t, AddressMatch(testInstrument, "0x7b430c5842ce7dba29b910c018369fa2fa0ac2e3"))
	assert.False(t, AddressMatch(testUser, testOther))

	assert.True(t, IsZeroAddress(""))
	assert.True(t, IsZeroAddress(ZeroAddress))
	assert.False(t, IsZeroAddress(testUser))

	assert.Equal(t, testInstrument, NormalizeAddress("0x7b430c5842ce7dba29b910c018369fa2fa0ac2e3"))
	assert.Equal(t, "not-an-address", NormalizeAddress("not-an-address"))

	addrs := NormalizeAddresses([]string{"0x7b430c5842ce7dba29b910c018369fa2fa0ac2e3"})
	assert.Equal(t, []string{testInstrument}, addrs)
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "nil", err: nil, expected: false},
		{name: "plain error", err: errors.New("connection reset"), expected: false},
		{name: "explicit fatal", err: Fatal(errors.New("boom")), expected: true},
		{name: "wrapped sentinel", err: fmt.Errorf("apply redeem: %w", ErrBalanceNotFound), expected: true},
		{name: "division by zero", err: fmt.Errorf("price: %w", fixedpoint.ErrDivisionByZero), expected: true},
		{name: "pending redemption", err: ErrPendingRedemptionNotFound, expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsFatal(tt.err))
		})
	}

	assert.Nil(t, Fatal(nil))
	assert.ErrorIs(t, Fatal(ErrUserNotFound), ErrUserNotFound)
}

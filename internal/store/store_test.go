package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/feral-file/lt-indexer/internal/domain"
	"github.com/feral-file/lt-indexer/internal/store/schema"
)

const (
	testAlice   = "0x1111111111111111111111111111111111111111"
	testBob     = "0x2222222222222222222222222222222222222222"
	testCarol   = "0x3333333333333333333333333333333333333333"
	testTokenA  = "0x7B430c5842ce7dBa29b910c018369FA2Fa0ac2e3"
	testTokenB  = "0x9a1d41E7c9A3e1e0A6C4cF2a3C8e5C9b0C1d2E3f"
	testTxHash  = "0xabc0000000000000000000000000000000000000000000000000000000000001"
	leverage2x  = "2000000000000000000"
	leverage10x = "10000000000000000000"
)

// =============================================================================
// Test Data Builders
// =============================================================================

func buildTestLeveragedToken(address string, marketID uint32, leverage string, asset string) *schema.LeveragedToken {
	return &schema.LeveragedToken{
		Address:        address,
		Creator:        testCarol,
		MarketID:       marketID,
		TargetLeverage: leverage,
		IsLong:         true,
		Symbol:         asset + "2L",
		Name:           asset + " 2x Long",
		Decimals:       18,
		TargetAsset:    asset,
		ExchangeRate:   "0",
		TotalSupply:    "0",
		CreatedBlock:   100,
		CreatedTxHash:  testTxHash,
		CreatedAt:      time.Unix(1_700_000_000, 0).UTC(),
	}
}

func buildTestTrade(id string, isBuy bool, token, sender, recipient, baseAmount, ltAmount string, ts time.Time) *schema.Trade {
	return &schema.Trade{
		ID:                   id,
		IsBuy:                isBuy,
		LeveragedToken:       token,
		Sender:               sender,
		Recipient:            recipient,
		BaseAssetAmount:      baseAmount,
		LeveragedTokenAmount: ltAmount,
		TxHash:               testTxHash,
		BlockNumber:          uint64(ts.Unix()),
		Timestamp:            ts,
	}
}

func tradeID(n int) string {
	return domain.DeterministicID(testTxHash, uint64(n))
}

// =============================================================================
// Tests
// =============================================================================

func testProcessedEvents(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("marks an event once", func(t *testing.T) {
		event := &schema.ProcessedEvent{
			ID:          testTxHash + ":1",
			EventType:   "mint",
			BlockNumber: 10,
			Fingerprint: "f1",
			Payload:     datatypes.JSON(`{"event_type":"mint"}`),
		}
		inserted, err := store.MarkEventProcessed(ctx, event)
		require.NoError(t, err)
		assert.True(t, inserted)

		inserted, err = store.MarkEventProcessed(ctx, event)
		require.NoError(t, err)
		assert.False(t, inserted)

		got, err := store.GetProcessedEvent(ctx, event.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "f1", got.Fingerprint)
		assert.Equal(t, uint64(10), got.BlockNumber)
	})

	t.Run("unknown event returns nil", func(t *testing.T) {
		got, err := store.GetProcessedEvent(ctx, "missing")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func testLeveragedTokens(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("create is idempotent", func(t *testing.T) {
		created, err := store.CreateLeveragedToken(ctx, buildTestLeveragedToken(testTokenA, 1, leverage2x, "BTC"))
		require.NoError(t, err)
		assert.True(t, created)

		created, err = store.CreateLeveragedToken(ctx, buildTestLeveragedToken(testTokenA, 9, leverage10x, "ETH"))
		require.NoError(t, err)
		assert.False(t, created)

		token, err := store.GetLeveragedToken(ctx, testTokenA)
		require.NoError(t, err)
		require.NotNil(t, token)
		assert.Equal(t, uint32(1), token.MarketID)
		assert.Equal(t, "BTC", token.TargetAsset)
		assert.Equal(t, leverage2x, token.TargetLeverage)
	})

	t.Run("update applies the closure", func(t *testing.T) {
		err := store.UpdateLeveragedToken(ctx, testTokenA, func(token *schema.LeveragedToken) error {
			token.MintPaused = true
			token.TotalSupply = "42"
			return nil
		})
		require.NoError(t, err)

		token, err := store.GetLeveragedToken(ctx, testTokenA)
		require.NoError(t, err)
		assert.True(t, token.MintPaused)
		assert.Equal(t, "42", token.TotalSupply)
	})

	t.Run("update of unknown token fails", func(t *testing.T) {
		err := store.UpdateLeveragedToken(ctx, testBob, func(*schema.LeveragedToken) error { return nil })
		assert.ErrorIs(t, err, domain.ErrInstrumentNotFound)
	})

	t.Run("update closure error leaves the row untouched", func(t *testing.T) {
		boom := errors.New("boom")
		err := store.UpdateLeveragedToken(ctx, testTokenA, func(token *schema.LeveragedToken) error {
			token.TotalSupply = "999"
			return boom
		})
		assert.ErrorIs(t, err, boom)

		token, err := store.GetLeveragedToken(ctx, testTokenA)
		require.NoError(t, err)
		assert.Equal(t, "42", token.TotalSupply)
	})

	t.Run("exchange rates skip unknown tokens", func(t *testing.T) {
		second := buildTestLeveragedToken(testTokenB, 2, leverage10x, "ETH")
		second.CreatedBlock = 200
		_, err := store.CreateLeveragedToken(ctx, second)
		require.NoError(t, err)

		updated, err := store.SetExchangeRates(ctx, map[string]string{
			testTokenA: "13000000000000000000",
			testTokenB: "7000000000000000000",
			testBob:    "1",
		})
		require.NoError(t, err)
		assert.Equal(t, 2, updated)

		tokens, err := store.ListLeveragedTokens(ctx)
		require.NoError(t, err)
		require.Len(t, tokens, 2)
		assert.Equal(t, testTokenA, tokens[0].Address)
		assert.Equal(t, "13000000000000000000", tokens[0].ExchangeRate)
		assert.Equal(t, "7000000000000000000", tokens[1].ExchangeRate)
	})
}

func testUsers(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("ensure creates zeroed user once", func(t *testing.T) {
		require.NoError(t, store.EnsureUser(ctx, testAlice))
		require.NoError(t, store.UpdateUser(ctx, testAlice, func(u *schema.User) error {
			u.TradeCount = 3
			return nil
		}))
		require.NoError(t, store.EnsureUser(ctx, testAlice))

		user, err := store.GetUser(ctx, testAlice)
		require.NoError(t, err)
		require.NotNil(t, user)
		assert.Equal(t, int64(3), user.TradeCount)
		assert.Equal(t, "0", user.RealizedProfit)
		assert.Nil(t, user.ReferralCode)
	})

	t.Run("update of unknown user fails", func(t *testing.T) {
		err := store.UpdateUser(ctx, testCarol, func(*schema.User) error { return nil })
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
	})

	t.Run("referral lookups", func(t *testing.T) {
		code := "ALPHA"
		require.NoError(t, store.UpdateUser(ctx, testAlice, func(u *schema.User) error {
			u.ReferralCode = &code
			return nil
		}))
		require.NoError(t, store.EnsureUser(ctx, testBob))
		require.NoError(t, store.UpdateUser(ctx, testBob, func(u *schema.User) error {
			referrer := testAlice
			u.ReferrerAddress = &referrer
			u.ReferrerCode = &code
			return nil
		}))

		referrer, err := store.GetUserByReferralCode(ctx, "ALPHA")
		require.NoError(t, err)
		require.NotNil(t, referrer)
		assert.Equal(t, testAlice, referrer.Address)

		missing, err := store.GetUserByReferralCode(ctx, "NOPE")
		require.NoError(t, err)
		assert.Nil(t, missing)

		referrers, err := store.ListUsers(ctx, UserFilter{ReferrersOnly: true})
		require.NoError(t, err)
		require.Len(t, referrers, 1)
		assert.Equal(t, testAlice, referrers[0].Address)

		referees, err := store.ListUsers(ctx, UserFilter{ReferrerAddress: testAlice})
		require.NoError(t, err)
		require.Len(t, referees, 1)
		assert.Equal(t, testBob, referees[0].Address)
	})

	t.Run("list paginates by address", func(t *testing.T) {
		require.NoError(t, store.EnsureUser(ctx, testCarol))

		page, err := store.ListUsers(ctx, UserFilter{Limit: 2})
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, testAlice, page[0].Address)
		assert.Equal(t, testBob, page[1].Address)

		page, err = store.ListUsers(ctx, UserFilter{AfterAddress: page[1].Address, Limit: 2})
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, testCarol, page[0].Address)
	})
}

func testBalances(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("ensure and update", func(t *testing.T) {
		require.NoError(t, store.EnsureBalance(ctx, testAlice, testTokenA))
		require.NoError(t, store.UpdateBalance(ctx, testAlice, testTokenA, func(b *schema.Balance) error {
			b.LiquidBalance = "70"
			b.CreditBalance = "30"
			b.TotalBalance = "100"
			b.PurchaseCost = "1000"
			return nil
		}))
		require.NoError(t, store.EnsureBalance(ctx, testAlice, testTokenA))

		balance, err := store.GetBalance(ctx, testAlice, testTokenA)
		require.NoError(t, err)
		require.NotNil(t, balance)
		assert.Equal(t, "70", balance.LiquidBalance)
		assert.Equal(t, "30", balance.CreditBalance)
		assert.Equal(t, "100", balance.TotalBalance)
		assert.Equal(t, "1000", balance.PurchaseCost)
		assert.Equal(t, "0", balance.RealizedProfit)
	})

	t.Run("missing balance", func(t *testing.T) {
		balance, err := store.GetBalance(ctx, testBob, testTokenA)
		require.NoError(t, err)
		assert.Nil(t, balance)

		err = store.UpdateBalance(ctx, testBob, testTokenA, func(*schema.Balance) error { return nil })
		assert.ErrorIs(t, err, domain.ErrBalanceNotFound)
	})

	t.Run("negative realized profit round trips", func(t *testing.T) {
		require.NoError(t, store.UpdateBalance(ctx, testAlice, testTokenA, func(b *schema.Balance) error {
			b.RealizedProfit = "-1792"
			return nil
		}))
		balance, err := store.GetBalance(ctx, testAlice, testTokenA)
		require.NoError(t, err)
		assert.Equal(t, "-1792", balance.RealizedProfit)
	})

	t.Run("list by user and keyset listing", func(t *testing.T) {
		require.NoError(t, store.EnsureBalance(ctx, testAlice, testTokenB))
		require.NoError(t, store.EnsureBalance(ctx, testBob, testTokenA))

		mine, err := store.ListBalancesByUser(ctx, testAlice)
		require.NoError(t, err)
		require.Len(t, mine, 2)
		assert.Equal(t, testTokenA, mine[0].LeveragedToken)
		assert.Equal(t, testTokenB, mine[1].LeveragedToken)

		page, err := store.ListBalances(ctx, BalanceFilter{Limit: 2})
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, testAlice, page[1].UserAddress)

		page, err = store.ListBalances(ctx, BalanceFilter{
			AfterUser:           page[1].UserAddress,
			AfterLeveragedToken: page[1].LeveragedToken,
			Limit:               2,
		})
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, testBob, page[0].UserAddress)
	})
}

func testTrades(t *testing.T, store Store) {
	ctx := context.Background()
	base := time.Date(2023, 11, 14, 1, 0, 0, 0, time.UTC)

	_, err := store.CreateLeveragedToken(ctx, buildTestLeveragedToken(testTokenA, 1, leverage2x, "BTC"))
	require.NoError(t, err)
	_, err = store.CreateLeveragedToken(ctx, buildTestLeveragedToken(testTokenB, 2, leverage10x, "ETH"))
	require.NoError(t, err)

	trades := []*schema.Trade{
		buildTestTrade(tradeID(1), true, testTokenA, testBob, testAlice, "1000000000", "100", base),
		buildTestTrade(tradeID(2), false, testTokenA, testAlice, testAlice, "600000000", "50", base.Add(time.Hour)),
		buildTestTrade(tradeID(3), true, testTokenB, testBob, testBob, "100000000", "10", base.Add(2*time.Hour)),
		buildTestTrade(tradeID(4), true, testTokenA, testAlice, testBob, "50000000", "5", base.Add(26*time.Hour)),
	}

	t.Run("create is idempotent", func(t *testing.T) {
		for _, trade := range trades {
			created, err := store.CreateTrade(ctx, trade)
			require.NoError(t, err)
			assert.True(t, created)
		}
		created, err := store.CreateTrade(ctx, trades[0])
		require.NoError(t, err)
		assert.False(t, created)

		got, err := store.GetTrade(ctx, trades[1].ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.False(t, got.IsBuy)
		assert.Equal(t, "600000000", got.BaseAssetAmount)
		assert.True(t, got.Timestamp.Equal(trades[1].Timestamp))
	})

	t.Run("filter by user follows position ownership", func(t *testing.T) {
		got, err := store.ListTrades(ctx, TradeFilter{User: testAlice})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, trades[0].ID, got[0].ID)
		assert.Equal(t, trades[1].ID, got[1].ID)

		got, err = store.ListTrades(ctx, TradeFilter{User: testBob})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, trades[2].ID, got[0].ID)
		assert.Equal(t, trades[3].ID, got[1].ID)
	})

	t.Run("filter by instrument and target asset", func(t *testing.T) {
		got, err := store.ListTrades(ctx, TradeFilter{LeveragedToken: testTokenB})
		require.NoError(t, err)
		require.Len(t, got, 1)

		got, err = store.ListTrades(ctx, TradeFilter{TargetAsset: "BTC"})
		require.NoError(t, err)
		assert.Len(t, got, 3)
	})

	t.Run("cursor pagination in both directions", func(t *testing.T) {
		page, err := store.ListTrades(ctx, TradeFilter{Desc: true, Limit: 2})
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, trades[3].ID, page[0].ID)
		assert.Equal(t, trades[2].ID, page[1].ID)

		next, err := store.ListTrades(ctx, TradeFilter{
			Desc:   true,
			Limit:  2,
			Cursor: &TradeCursor{Timestamp: page[1].Timestamp, ID: page[1].ID},
		})
		require.NoError(t, err)
		require.Len(t, next, 2)
		assert.Equal(t, trades[1].ID, next[0].ID)
		assert.Equal(t, trades[0].ID, next[1].ID)

		prev, err := store.ListTrades(ctx, TradeFilter{
			Desc:     true,
			Backward: true,
			Limit:    2,
			Cursor:   &TradeCursor{Timestamp: next[0].Timestamp, ID: next[0].ID},
		})
		require.NoError(t, err)
		require.Len(t, prev, 2)
		assert.Equal(t, trades[3].ID, prev[0].ID)
		assert.Equal(t, trades[2].ID, prev[1].ID)

		asc, err := store.ListTrades(ctx, TradeFilter{
			Limit:  10,
			Cursor: &TradeCursor{Timestamp: trades[1].Timestamp, ID: trades[1].ID},
		})
		require.NoError(t, err)
		require.Len(t, asc, 2)
		assert.Equal(t, trades[2].ID, asc[0].ID)
	})

	t.Run("protocol stats", func(t *testing.T) {
		stats, err := store.GetProtocolStats(ctx)
		require.NoError(t, err)
		assert.Equal(t, "1750000000", stats.MarginVolume)
		// 1650 at 2x plus 100 at 10x
		assert.Equal(t, "4300000000", stats.NotionalVolume)
		assert.Equal(t, int64(4), stats.TotalTrades)
		assert.Equal(t, int64(2), stats.UniqueUsers)
		assert.Equal(t, int64(2), stats.LeveragedTokens)
		assert.Equal(t, int64(2), stats.SupportedAssets)
	})

	t.Run("daily volumes", func(t *testing.T) {
		volumes, err := store.GetDailyVolumes(ctx)
		require.NoError(t, err)
		require.Len(t, volumes, 2)
		assert.Equal(t, time.Date(2023, 11, 14, 0, 0, 0, 0, time.UTC), volumes[0].Day)
		assert.Equal(t, "1700000000", volumes[0].MarginVolume)
		assert.Equal(t, int64(3), volumes[0].Trades)
		assert.Equal(t, "50000000", volumes[1].MarginVolume)
		assert.Equal(t, "100000000", volumes[1].NotionalVolume)
	})
}

func testTransfers(t *testing.T, store Store) {
	ctx := context.Background()
	base := time.Unix(1_700_000_000, 0).UTC()

	transfers := []*schema.Transfer{
		{ID: tradeID(10), LeveragedToken: testTokenA, Sender: testAlice, Recipient: testBob, Amount: "10", TxHash: testTxHash, LogIndex: 10, BlockNumber: 5, Timestamp: base.Add(time.Minute)},
		{ID: tradeID(11), LeveragedToken: testTokenA, Sender: testBob, Recipient: testCarol, Amount: "3", TxHash: testTxHash, LogIndex: 11, BlockNumber: 5, Timestamp: base},
		{ID: tradeID(12), LeveragedToken: testTokenB, Sender: testCarol, Recipient: testAlice, Amount: "7", TxHash: testTxHash, LogIndex: 12, BlockNumber: 6, Timestamp: base.Add(time.Hour)},
	}
	for _, transfer := range transfers {
		created, err := store.CreateTransfer(ctx, transfer)
		require.NoError(t, err)
		assert.True(t, created)
	}
	created, err := store.CreateTransfer(ctx, transfers[0])
	require.NoError(t, err)
	assert.False(t, created)

	got, err := store.ListTransfers(ctx, TransferFilter{User: testBob})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, transfers[1].ID, got[0].ID)
	assert.Equal(t, transfers[0].ID, got[1].ID)

	got, err = store.ListTransfers(ctx, TransferFilter{User: testAlice, LeveragedToken: testTokenB})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "7", got[0].Amount)
}

func testPendingRedemptions(t *testing.T, store Store) {
	ctx := context.Background()
	preparedAt := time.Unix(1_700_000_000, 0).UTC()

	got, err := store.GetPendingRedemption(ctx, testAlice, testTokenA)
	require.NoError(t, err)
	assert.Nil(t, got)

	err = store.UpdatePendingRedemption(ctx, testAlice, testTokenA, func(*schema.PendingRedemption) error { return nil })
	assert.ErrorIs(t, err, domain.ErrPendingRedemptionNotFound)

	require.NoError(t, store.CreatePendingRedemption(ctx, &schema.PendingRedemption{
		UserAddress:    testAlice,
		LeveragedToken: testTokenA,
		LTAmount:       "30",
		OriginTxHash:   testTxHash,
		LastTxHash:     testTxHash,
		PreparedAt:     preparedAt,
	}))

	require.NoError(t, store.UpdatePendingRedemption(ctx, testAlice, testTokenA, func(p *schema.PendingRedemption) error {
		p.LTAmount = "45"
		p.LastTxHash = "0xdef"
		return nil
	}))

	got, err = store.GetPendingRedemption(ctx, testAlice, testTokenA)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "45", got.LTAmount)
	assert.Equal(t, testTxHash, got.OriginTxHash)
	assert.Equal(t, "0xdef", got.LastTxHash)
	assert.True(t, got.PreparedAt.Equal(preparedAt))

	require.NoError(t, store.DeletePendingRedemption(ctx, testAlice, testTokenA))
	got, err = store.GetPendingRedemption(ctx, testAlice, testTokenA)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func testGlobalStorage(t *testing.T, store Store) {
	ctx := context.Background()

	got, err := store.GetGlobalStorage(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	owner := testCarol
	require.NoError(t, store.UpdateGlobalStorage(ctx, func(g *schema.GlobalStorage) error {
		g.Owner = &owner
		g.RedemptionFee = "1000000000000000"
		return nil
	}))
	require.NoError(t, store.UpdateGlobalStorage(ctx, func(g *schema.GlobalStorage) error {
		g.AllMintsPaused = true
		return nil
	}))

	got, err = store.GetGlobalStorage(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.GlobalStorageID, got.ID)
	require.NotNil(t, got.Owner)
	assert.Equal(t, testCarol, *got.Owner)
	assert.Equal(t, "1000000000000000", got.RedemptionFee)
	assert.True(t, got.AllMintsPaused)
	assert.Equal(t, "0", got.StreamingFee)
}

func testWithTx(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("commit keeps every write", func(t *testing.T) {
		err := store.WithTx(ctx, func(tx Store) error {
			if err := tx.EnsureUser(ctx, testAlice); err != nil {
				return err
			}
			return tx.EnsureBalance(ctx, testAlice, testTokenA)
		})
		require.NoError(t, err)

		user, err := store.GetUser(ctx, testAlice)
		require.NoError(t, err)
		assert.NotNil(t, user)
	})

	t.Run("error rolls every write back", func(t *testing.T) {
		boom := errors.New("boom")
		err := store.WithTx(ctx, func(tx Store) error {
			if err := tx.EnsureUser(ctx, testBob); err != nil {
				return err
			}
			if _, err := tx.MarkEventProcessed(ctx, &schema.ProcessedEvent{
				ID:          "rolled-back",
				EventType:   "mint",
				Fingerprint: "x",
				Payload:     datatypes.JSON(`{}`),
			}); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		user, err := store.GetUser(ctx, testBob)
		require.NoError(t, err)
		assert.Nil(t, user)

		event, err := store.GetProcessedEvent(ctx, "rolled-back")
		require.NoError(t, err)
		assert.Nil(t, event)
	})
}

func testBlockCursor(t *testing.T, store Store) {
	ctx := context.Background()

	cursor, err := store.GetBlockCursor(ctx, string(domain.ChainHyperEVMMainnet))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), cursor)

	require.NoError(t, store.SetBlockCursor(ctx, string(domain.ChainHyperEVMMainnet), 12345))
	require.NoError(t, store.SetBlockCursor(ctx, string(domain.ChainHyperEVMMainnet), 12346))

	cursor, err = store.GetBlockCursor(ctx, string(domain.ChainHyperEVMMainnet))
	require.NoError(t, err)
	assert.Equal(t, uint64(12346), cursor)
}

func testKeyValueStore(t *testing.T, store Store) {
	ctx := context.Background()

	value, err := store.GetKeyValue(ctx, "sweeper:last_run")
	require.NoError(t, err)
	assert.Empty(t, value)

	require.NoError(t, store.SetKeyValue(ctx, "sweeper:last_run", "2026-01-01T00:00:00Z"))
	value, err = store.GetKeyValue(ctx, "sweeper:last_run")
	require.NoError(t, err)
	assert.Equal(t, "2026-01-01T00:00:00Z", value)
}

// RunStoreTests runs every store test against the given implementation
func RunStoreTests(t *testing.T, initDB func(t *testing.T) Store, cleanupDB func(t *testing.T)) {
	tests := []struct {
		name string
		fn   func(*testing.T, Store)
	}{
		{"ProcessedEvents", testProcessedEvents},
		{"LeveragedTokens", testLeveragedTokens},
		{"Users", testUsers},
		{"Balances", testBalances},
		{"Trades", testTrades},
		{"Transfers", testTransfers},
		{"PendingRedemptions", testPendingRedemptions},
		{"GlobalStorage", testGlobalStorage},
		{"WithTx", testWithTx},
		{"BlockCursor", testBlockCursor},
		{"KeyValueStore", testKeyValueStore},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := initDB(t)
			defer cleanupDB(t)
			tt.fn(t, store)
		})
	}
}

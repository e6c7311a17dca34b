package processor

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"github.com/feral-file/lt-indexer/internal/domain"
	"github.com/feral-file/lt-indexer/internal/fixedpoint"
	"github.com/feral-file/lt-indexer/internal/logger"
	"github.com/feral-file/lt-indexer/internal/store"
	"github.com/feral-file/lt-indexer/internal/store/schema"
)

func (p *processor) handleInstrumentCreated(ctx context.Context, tx store.Store, e *domain.LedgerEvent, metadata *domain.TokenMetadata) error {
	if metadata == nil {
		return fmt.Errorf("missing token metadata for %s", e.Instrument)
	}

	created, err := tx.CreateLeveragedToken(ctx, &schema.LeveragedToken{
		Address:        e.Instrument,
		Creator:        e.FromAddress,
		MarketID:       e.MarketID,
		TargetLeverage: e.TargetLeverage,
		IsLong:         e.IsLong,
		Symbol:         metadata.Symbol,
		Name:           metadata.Name,
		Decimals:       metadata.Decimals,
		TargetAsset:    domain.TargetAsset(metadata.Name),
		ExchangeRate:   "0",
		TotalSupply:    "0",
		CreatedBlock:   e.BlockNumber,
		CreatedTxHash:  e.TxHash,
		CreatedAt:      e.Timestamp,
	})
	if err != nil {
		return err
	}
	if !created {
		logger.WarnCtx(ctx, "Leveraged token already exists", zap.String("address", e.Instrument))
		return nil
	}

	logger.InfoCtx(ctx, "Leveraged token created",
		zap.String("address", e.Instrument),
		zap.String("symbol", metadata.Symbol),
		zap.Uint32("market_id", e.MarketID))
	return nil
}

func (p *processor) handleMint(ctx context.Context, tx store.Store, e *domain.LedgerEvent) error {
	if p.config.FactoryAddress != "" && domain.AddressMatch(e.FromAddress, p.config.FactoryAddress) {
		logger.DebugCtx(ctx, "Ignoring factory mint", zap.String("tx_hash", e.TxHash))
		return nil
	}

	token, err := requireToken(ctx, tx, e.Instrument)
	if err != nil {
		return err
	}
	baseAmount, ltAmount, err := amounts(e)
	if err != nil {
		return err
	}
	leverage, err := fixedpoint.ParseInt(token.TargetLeverage)
	if err != nil {
		return err
	}

	if _, err := tx.CreateTrade(ctx, &schema.Trade{
		ID:                   e.RowID(),
		IsBuy:                true,
		LeveragedToken:       e.Instrument,
		Sender:               e.FromAddress,
		Recipient:            e.ToAddress,
		BaseAssetAmount:      baseAmount.String(),
		LeveragedTokenAmount: ltAmount.String(),
		TxHash:               e.TxHash,
		LogIndex:             e.LogIndex,
		BlockNumber:          e.BlockNumber,
		Timestamp:            e.Timestamp,
	}); err != nil {
		return err
	}

	if err := ensurePosition(ctx, tx, e.ToAddress, e.Instrument); err != nil {
		return err
	}

	err = tx.UpdateBalance(ctx, e.ToAddress, e.Instrument, func(b *schema.Balance) error {
		if err := credit(b, ltAmount); err != nil {
			return err
		}
		purchaseCost, err := add(b.PurchaseCost, baseAmount)
		if err != nil {
			return err
		}
		b.PurchaseCost = purchaseCost
		b.LastActivity = timePtr(e.Timestamp)
		return nil
	})
	if err != nil {
		return err
	}

	if err := recordTrade(ctx, tx, e.ToAddress, true, baseAmount, leverage, nil, e.Timestamp); err != nil {
		return err
	}

	return changeSupply(ctx, tx, e.Instrument, ltAmount)
}

func (p *processor) handleRedeem(ctx context.Context, tx store.Store, e *domain.LedgerEvent) error {
	baseAmount, ltAmount, err := amounts(e)
	if err != nil {
		return err
	}
	if ltAmount.Sign() == 0 || baseAmount.Sign() == 0 {
		logger.DebugCtx(ctx, "Skipping degenerate redemption", zap.String("tx_hash", e.TxHash))
		return nil
	}

	token, err := requireToken(ctx, tx, e.Instrument)
	if err != nil {
		return err
	}

	var profit, percent *big.Int
	err = tx.UpdateBalance(ctx, e.FromAddress, e.Instrument, func(b *schema.Balance) error {
		profit, percent, err = realize(b, baseAmount, ltAmount)
		if err != nil {
			return err
		}
		if err := debitLiquid(b, ltAmount); err != nil {
			return err
		}
		b.LastActivity = timePtr(e.Timestamp)
		return nil
	})
	if err != nil {
		return err
	}

	return p.settleRedemption(ctx, tx, e, token, e.FromAddress, e.ToAddress, nil, baseAmount, ltAmount, profit, percent)
}

func (p *processor) handlePrepareRedeem(ctx context.Context, tx store.Store, e *domain.LedgerEvent) error {
	ltAmount, err := fixedpoint.ParseInt(e.LTAmount)
	if err != nil {
		return err
	}

	if err := ensurePosition(ctx, tx, e.FromAddress, e.Instrument); err != nil {
		return err
	}

	err = tx.UpdateBalance(ctx, e.FromAddress, e.Instrument, func(b *schema.Balance) error {
		creditBalance, err := add(b.CreditBalance, ltAmount)
		if err != nil {
			return err
		}
		total, err := add(b.TotalBalance, ltAmount)
		if err != nil {
			return err
		}
		b.CreditBalance = creditBalance
		b.TotalBalance = total
		b.LastActivity = timePtr(e.Timestamp)
		return nil
	})
	if err != nil {
		return err
	}

	pending, err := tx.GetPendingRedemption(ctx, e.FromAddress, e.Instrument)
	if err != nil {
		return err
	}
	if pending == nil {
		return tx.CreatePendingRedemption(ctx, &schema.PendingRedemption{
			UserAddress:    e.FromAddress,
			LeveragedToken: e.Instrument,
			LTAmount:       ltAmount.String(),
			OriginTxHash:   e.TxHash,
			LastTxHash:     e.TxHash,
			PreparedAt:     e.Timestamp,
		})
	}

	logger.InfoCtx(ctx, "Merging prepared redemption into outstanding one",
		zap.String("user", e.FromAddress),
		zap.String("leveraged_token", e.Instrument),
		zap.String("origin_tx_hash", pending.OriginTxHash))

	return tx.UpdatePendingRedemption(ctx, e.FromAddress, e.Instrument, func(pr *schema.PendingRedemption) error {
		outstanding, err := add(pr.LTAmount, ltAmount)
		if err != nil {
			return err
		}
		pr.LTAmount = outstanding
		pr.LastTxHash = e.TxHash
		return nil
	})
}

func (p *processor) handleExecuteRedeem(ctx context.Context, tx store.Store, e *domain.LedgerEvent) error {
	baseAmount, ltAmount, err := amounts(e)
	if err != nil {
		return err
	}
	if ltAmount.Sign() == 0 || baseAmount.Sign() == 0 {
		logger.DebugCtx(ctx, "Skipping degenerate redemption", zap.String("tx_hash", e.TxHash))
		return nil
	}

	token, err := requireToken(ctx, tx, e.Instrument)
	if err != nil {
		return err
	}

	pending, err := tx.GetPendingRedemption(ctx, e.FromAddress, e.Instrument)
	if err != nil {
		return err
	}
	if pending == nil {
		return domain.Fatal(fmt.Errorf("%w: %s in %s", domain.ErrPendingRedemptionNotFound, e.FromAddress, e.Instrument))
	}
	originTxHash := pending.OriginTxHash

	var profit, percent *big.Int
	err = tx.UpdateBalance(ctx, e.FromAddress, e.Instrument, func(b *schema.Balance) error {
		profit, percent, err = realize(b, baseAmount, ltAmount)
		if err != nil {
			return err
		}
		if err := debitCredit(b, ltAmount); err != nil {
			return err
		}
		b.LastActivity = timePtr(e.Timestamp)
		return nil
	})
	if err != nil {
		return err
	}

	if err := reducePending(ctx, tx, e.FromAddress, e.Instrument, ltAmount); err != nil {
		return err
	}

	recipient := e.ToAddress
	if recipient == "" {
		recipient = e.FromAddress
	}
	return p.settleRedemption(ctx, tx, e, token, e.FromAddress, recipient, &originTxHash, baseAmount, ltAmount, profit, percent)
}

func (p *processor) handleCancelRedeem(ctx context.Context, tx store.Store, e *domain.LedgerEvent) error {
	amount, err := fixedpoint.ParseInt(e.LTAmount)
	if err != nil {
		return err
	}

	err = tx.UpdateBalance(ctx, e.FromAddress, e.Instrument, func(b *schema.Balance) error {
		if err := debitCredit(b, amount); err != nil {
			return err
		}
		b.LastActivity = timePtr(e.Timestamp)
		return nil
	})
	if err != nil {
		return err
	}

	pending, err := tx.GetPendingRedemption(ctx, e.FromAddress, e.Instrument)
	if err != nil {
		return err
	}
	if pending == nil {
		return nil
	}
	return reducePending(ctx, tx, e.FromAddress, e.Instrument, amount)
}

// handleTransfer moves liquid balance between two holders. Mint and burn legs
// (a zero address on either side) are left to the mint and redeem handlers, and
// the leveraged token contract itself never holds a position.
func (p *processor) handleTransfer(ctx context.Context, tx store.Store, e *domain.LedgerEvent) error {
	amount, err := fixedpoint.ParseInt(e.LTAmount)
	if err != nil {
		return err
	}
	if amount.Sign() == 0 || domain.AddressMatch(e.FromAddress, e.ToAddress) {
		return nil
	}
	if domain.IsZeroAddress(e.FromAddress) || domain.IsZeroAddress(e.ToAddress) {
		return nil
	}

	if _, err := tx.CreateTransfer(ctx, &schema.Transfer{
		ID:             e.RowID(),
		LeveragedToken: e.Instrument,
		Sender:         e.FromAddress,
		Recipient:      e.ToAddress,
		Amount:         amount.String(),
		TxHash:         e.TxHash,
		LogIndex:       e.LogIndex,
		BlockNumber:    e.BlockNumber,
		Timestamp:      e.Timestamp,
	}); err != nil {
		return err
	}

	if !domain.AddressMatch(e.FromAddress, e.Instrument) {
		if err := ensurePosition(ctx, tx, e.FromAddress, e.Instrument); err != nil {
			return err
		}
		err := tx.UpdateBalance(ctx, e.FromAddress, e.Instrument, func(b *schema.Balance) error {
			if err := debitLiquid(b, amount); err != nil {
				return err
			}
			b.LastActivity = timePtr(e.Timestamp)
			return nil
		})
		if err != nil {
			return err
		}
	}

	if !domain.AddressMatch(e.ToAddress, e.Instrument) {
		if err := ensurePosition(ctx, tx, e.ToAddress, e.Instrument); err != nil {
			return err
		}
		err := tx.UpdateBalance(ctx, e.ToAddress, e.Instrument, func(b *schema.Balance) error {
			if err := credit(b, amount); err != nil {
				return err
			}
			b.LastActivity = timePtr(e.Timestamp)
			return nil
		})
		if err != nil {
			return err
		}
	}

	return nil
}

func (p *processor) handleMintPausedSet(ctx context.Context, tx store.Store, e *domain.LedgerEvent) error {
	return tx.UpdateLeveragedToken(ctx, e.Instrument, func(t *schema.LeveragedToken) error {
		t.MintPaused = *e.Paused
		return nil
	})
}

func (p *processor) handleBlockTick(ctx context.Context, tx store.Store, e *domain.LedgerEvent, rates map[string]string) error {
	if len(rates) == 0 {
		return nil
	}
	updated, err := tx.SetExchangeRates(ctx, rates)
	if err != nil {
		return err
	}
	if updated < len(rates) {
		logger.DebugCtx(ctx, "Exchange rates returned for unknown leveraged tokens",
			zap.Uint64("block_number", e.BlockNumber),
			zap.Int("rates", len(rates)),
			zap.Int("updated", updated))
	}
	return nil
}

// settleRedemption records the trade of a redemption and rolls it into the user and supply aggregates
func (p *processor) settleRedemption(
	ctx context.Context,
	tx store.Store,
	e *domain.LedgerEvent,
	token *schema.LeveragedToken,
	owner, recipient string,
	originTxHash *string,
	baseAmount, ltAmount, profit, percent *big.Int,
) error {
	leverage, err := fixedpoint.ParseInt(token.TargetLeverage)
	if err != nil {
		return err
	}

	profitAmount := profit.String()
	profitPercent := percent.String()
	if _, err := tx.CreateTrade(ctx, &schema.Trade{
		ID:                   e.RowID(),
		IsBuy:                false,
		LeveragedToken:       e.Instrument,
		Sender:               owner,
		Recipient:            recipient,
		BaseAssetAmount:      baseAmount.String(),
		LeveragedTokenAmount: ltAmount.String(),
		ProfitAmount:         &profitAmount,
		ProfitPercent:        &profitPercent,
		OriginTxHash:         originTxHash,
		TxHash:               e.TxHash,
		LogIndex:             e.LogIndex,
		BlockNumber:          e.BlockNumber,
		Timestamp:            e.Timestamp,
	}); err != nil {
		return err
	}

	if err := tx.EnsureUser(ctx, owner); err != nil {
		return err
	}
	if err := recordTrade(ctx, tx, owner, false, baseAmount, leverage, profit, e.Timestamp); err != nil {
		return err
	}

	return changeSupply(ctx, tx, e.Instrument, new(big.Int).Neg(ltAmount))
}

// realize computes the profit of redeeming ltAmount for baseAmount at the
// position's average purchase price and writes down the cost basis of what
// remains. The balance must still include the redeemed tokens.
func realize(b *schema.Balance, baseAmount, ltAmount *big.Int) (*big.Int, *big.Int, error) {
	before, err := fixedpoint.ParseInt(b.TotalBalance)
	if err != nil {
		return nil, nil, err
	}
	if before.Sign() <= 0 {
		return nil, nil, domain.Fatal(fmt.Errorf("%w: %s holds %s of %s",
			domain.ErrInsufficientBalance, b.UserAddress, b.TotalBalance, b.LeveragedToken))
	}
	purchaseCost, err := fixedpoint.ParseInt(b.PurchaseCost)
	if err != nil {
		return nil, nil, err
	}
	realized, err := fixedpoint.ParseInt(b.RealizedProfit)
	if err != nil {
		return nil, nil, err
	}

	purchasePrice, err := fixedpoint.Div(purchaseCost, before)
	if err != nil {
		return nil, nil, err
	}
	currentPrice, err := fixedpoint.Div(baseAmount, ltAmount)
	if err != nil {
		return nil, nil, err
	}
	profit := fixedpoint.Mul(new(big.Int).Sub(currentPrice, purchasePrice), ltAmount)

	percent := new(big.Int)
	if basis := fixedpoint.Mul(purchasePrice, ltAmount); basis.Sign() != 0 {
		percent, err = fixedpoint.Div(profit, basis)
		if err != nil {
			return nil, nil, err
		}
	}

	remaining := new(big.Int).Sub(before, ltAmount)
	if remaining.Sign() < 0 {
		remaining.SetInt64(0)
	}
	b.PurchaseCost = fixedpoint.Mul(remaining, purchasePrice).String()
	b.RealizedProfit = realized.Add(realized, profit).String()

	return profit, percent, nil
}

// recordTrade rolls one trade into the user's volume aggregates
func recordTrade(ctx context.Context, tx store.Store, user string, isBuy bool, baseAmount, leverage, profit *big.Int, ts time.Time) error {
	notional := fixedpoint.Mul(baseAmount, leverage)

	return tx.UpdateUser(ctx, user, func(u *schema.User) error {
		var err error
		u.TradeCount++
		if isBuy {
			if u.MintVolumeNominal, err = add(u.MintVolumeNominal, baseAmount); err != nil {
				return err
			}
			if u.MintVolumeNotional, err = add(u.MintVolumeNotional, notional); err != nil {
				return err
			}
		} else {
			if u.RedeemVolumeNominal, err = add(u.RedeemVolumeNominal, baseAmount); err != nil {
				return err
			}
			if u.RedeemVolumeNotional, err = add(u.RedeemVolumeNotional, notional); err != nil {
				return err
			}
		}
		if u.TotalVolumeNominal, err = add(u.TotalVolumeNominal, baseAmount); err != nil {
			return err
		}
		if u.TotalVolumeNotional, err = add(u.TotalVolumeNotional, notional); err != nil {
			return err
		}
		if profit != nil {
			if u.RealizedProfit, err = add(u.RealizedProfit, profit); err != nil {
				return err
			}
		}
		u.LastTradeTimestamp = timePtr(ts)
		return nil
	})
}

func reducePending(ctx context.Context, tx store.Store, user, token string, amount *big.Int) error {
	drained := false
	err := tx.UpdatePendingRedemption(ctx, user, token, func(pr *schema.PendingRedemption) error {
		outstanding, err := add(pr.LTAmount, new(big.Int).Neg(amount))
		if err != nil {
			return err
		}
		pr.LTAmount = outstanding
		drained = outstanding == "0" || outstanding[0] == '-'
		return nil
	})
	if err != nil {
		return err
	}
	if drained {
		return tx.DeletePendingRedemption(ctx, user, token)
	}
	return nil
}

func changeSupply(ctx context.Context, tx store.Store, token string, delta *big.Int) error {
	return tx.UpdateLeveragedToken(ctx, token, func(t *schema.LeveragedToken) error {
		supply, err := add(t.TotalSupply, delta)
		if err != nil {
			return err
		}
		t.TotalSupply = supply
		return nil
	})
}

func requireToken(ctx context.Context, tx store.Store, address string) (*schema.LeveragedToken, error) {
	token, err := tx.GetLeveragedToken(ctx, address)
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, domain.Fatal(fmt.Errorf("%w: %s", domain.ErrInstrumentNotFound, address))
	}
	return token, nil
}

func ensurePosition(ctx context.Context, tx store.Store, user, token string) error {
	if err := tx.EnsureUser(ctx, user); err != nil {
		return err
	}
	return tx.EnsureBalance(ctx, user, token)
}

func amounts(e *domain.LedgerEvent) (*big.Int, *big.Int, error) {
	baseAmount, err := fixedpoint.ParseInt(e.BaseAmount)
	if err != nil {
		return nil, nil, err
	}
	ltAmount, err := fixedpoint.ParseInt(e.LTAmount)
	if err != nil {
		return nil, nil, err
	}
	return baseAmount, ltAmount, nil
}

// credit adds to the liquid and total balance
func credit(b *schema.Balance, amount *big.Int) error {
	liquid, err := add(b.LiquidBalance, amount)
	if err != nil {
		return err
	}
	total, err := add(b.TotalBalance, amount)
	if err != nil {
		return err
	}
	b.LiquidBalance = liquid
	b.TotalBalance = total
	return nil
}

// debitLiquid removes from the liquid and total balance
func debitLiquid(b *schema.Balance, amount *big.Int) error {
	return credit(b, new(big.Int).Neg(amount))
}

// debitCredit removes from the locked and total balance
func debitCredit(b *schema.Balance, amount *big.Int) error {
	neg := new(big.Int).Neg(amount)
	creditBalance, err := add(b.CreditBalance, neg)
	if err != nil {
		return err
	}
	total, err := add(b.TotalBalance, neg)
	if err != nil {
		return err
	}
	b.CreditBalance = creditBalance
	b.TotalBalance = total
	return nil
}

// add returns the decimal string of a + delta
func add(a string, delta *big.Int) (string, error) {
	v, err := fixedpoint.ParseInt(a)
	if err != nil {
		return "", err
	}
	return v.Add(v, delta).String(), nil
}

func timePtr(t time.Time) *time.Time {
	return &t
}

package processor

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/feral-file/lt-indexer/internal/domain"
	"github.com/feral-file/lt-indexer/internal/fixedpoint"
	"github.com/feral-file/lt-indexer/internal/logger"
	"github.com/feral-file/lt-indexer/internal/store"
	"github.com/feral-file/lt-indexer/internal/store/schema"
)

func (p *processor) handleAddReferrer(ctx context.Context, tx store.Store, e *domain.LedgerEvent) error {
	if err := tx.EnsureUser(ctx, e.FromAddress); err != nil {
		return err
	}
	code := e.ReferralCode
	return tx.UpdateUser(ctx, e.FromAddress, func(u *schema.User) error {
		u.ReferralCode = &code
		return nil
	})
}

func (p *processor) handleJoinWithReferral(ctx context.Context, tx store.Store, e *domain.LedgerEvent) error {
	referee, referrer := e.FromAddress, e.ToAddress

	if err := tx.EnsureUser(ctx, referee); err != nil {
		return err
	}
	if err := tx.EnsureUser(ctx, referrer); err != nil {
		return err
	}

	code := e.ReferralCode
	err := tx.UpdateUser(ctx, referee, func(u *schema.User) error {
		if u.ReferrerAddress != nil {
			logger.WarnCtx(ctx, "Referee joined again, replacing referrer",
				zap.String("referee", referee),
				zap.String("previous_referrer", *u.ReferrerAddress),
				zap.String("referrer", referrer))
		}
		u.ReferrerCode = &code
		u.ReferrerAddress = &referrer
		return nil
	})
	if err != nil {
		return err
	}

	return tx.UpdateUser(ctx, referrer, func(u *schema.User) error {
		u.ReferredUserCount++
		return nil
	})
}

func (p *processor) handleClaimRebate(ctx context.Context, tx store.Store, e *domain.LedgerEvent) error {
	rebate, err := fixedpoint.ParseInt(e.BaseAmount)
	if err != nil {
		return err
	}
	if err := tx.EnsureUser(ctx, e.FromAddress); err != nil {
		return err
	}
	return tx.UpdateUser(ctx, e.FromAddress, func(u *schema.User) error {
		claimed, err := add(u.ClaimedRebates, rebate)
		if err != nil {
			return err
		}
		u.ClaimedRebates = claimed
		return nil
	})
}

func (p *processor) handleDonateRebate(ctx context.Context, tx store.Store, e *domain.LedgerEvent) error {
	refereeRebate, err := fixedpoint.ParseInt(e.RefereeRebate)
	if err != nil {
		return err
	}
	referrerRebate, err := fixedpoint.ParseInt(e.ReferrerRebate)
	if err != nil {
		return err
	}

	referee, err := tx.GetUser(ctx, e.FromAddress)
	if err != nil {
		return err
	}
	if referee == nil {
		return domain.Fatal(fmt.Errorf("%w: referee %s", domain.ErrUserNotFound, e.FromAddress))
	}

	if refereeRebate.Sign() > 0 {
		err := tx.UpdateUser(ctx, referee.Address, func(u *schema.User) error {
			var err error
			if u.RefereeRebates, err = add(u.RefereeRebates, refereeRebate); err != nil {
				return err
			}
			u.TotalRebates, err = add(u.TotalRebates, refereeRebate)
			return err
		})
		if err != nil {
			return err
		}
	}

	if referrerRebate.Sign() > 0 {
		if referee.ReferrerAddress == nil {
			return domain.Fatal(fmt.Errorf("%w: referee %s has no referrer", domain.ErrReferrerNotFound, referee.Address))
		}
		err := tx.UpdateUser(ctx, *referee.ReferrerAddress, func(u *schema.User) error {
			var err error
			if u.ReferrerRebates, err = add(u.ReferrerRebates, referrerRebate); err != nil {
				return err
			}
			u.TotalRebates, err = add(u.TotalRebates, referrerRebate)
			return err
		})
		if err != nil {
			return err
		}
	}

	return nil
}

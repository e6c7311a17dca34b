package processor

import (
	"context"
	"fmt"

	"github.com/feral-file/lt-indexer/internal/domain"
	"github.com/feral-file/lt-indexer/internal/store"
	"github.com/feral-file/lt-indexer/internal/store/schema"
)

func (p *processor) handleGovernanceUpdated(ctx context.Context, tx store.Store, e *domain.LedgerEvent) error {
	return tx.UpdateGlobalStorage(ctx, func(g *schema.GlobalStorage) error {
		switch e.Parameter {
		case domain.GovernanceOwner:
			owner := e.ToAddress
			g.Owner = &owner
		case domain.GovernanceAllMintsPaused:
			g.AllMintsPaused = *e.Paused
		case domain.GovernanceMinTransactionSize:
			g.MinTransactionSize = e.Value
		case domain.GovernanceMinLockAmount:
			g.MinLockAmount = e.Value
		case domain.GovernanceRedemptionFee:
			g.RedemptionFee = e.Value
		case domain.GovernanceExecuteRedemptionFee:
			g.ExecuteRedemptionFee = e.Value
		case domain.GovernanceStreamingFee:
			g.StreamingFee = e.Value
		case domain.GovernanceTreasuryFeeShare:
			g.TreasuryFeeShare = e.Value
		case domain.GovernanceReferrerRebate:
			g.ReferrerRebate = e.Value
		case domain.GovernanceRefereeRebate:
			g.RefereeRebate = e.Value
		default:
			return domain.Fatal(fmt.Errorf("%w: unknown governance parameter %q", domain.ErrInvalidEvent, e.Parameter))
		}
		return nil
	})
}

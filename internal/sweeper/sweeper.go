// Package sweeper runs periodic background checks over the ledger tables.
package sweeper

import (
	"context"
)

// Sweeper is a scheduled job owned by cmd/sweeper.
// Start blocks until ctx is done or Stop is called; Stop waits for the
// running pass to finish or for its own ctx to expire.
type Sweeper interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Name() string
}

var _ Sweeper = (*ReconciliationSweeper)(nil)

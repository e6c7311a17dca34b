package messaging

import (
	"context"

	"github.com/feral-file/lt-indexer/internal/domain"
)

// EventHandler is called for every decoded ledger event, in (block, log index) order.
// An error stops the subscription.
type EventHandler func(event *domain.LedgerEvent) error

// Subscriber delivers ledger events from the chain
//
//go:generate mockgen -source=subscriber.go -destination=../mocks/subscriber.go -package=mocks -mock_names=Subscriber=MockSubscriber
type Subscriber interface {
	// SubscribeEvents replays events from fromBlock up to the chain head and then
	// follows new blocks until ctx is done or an error occurs
	SubscribeEvents(ctx context.Context, fromBlock uint64, handler EventHandler) error

	// GetLatestBlock returns the latest block number
	GetLatestBlock(ctx context.Context) (uint64, error)

	// Close closes the connection and cleans up resources
	Close()
}

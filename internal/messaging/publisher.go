package messaging

import (
	"context"

	"github.com/feral-file/lt-indexer/internal/domain"
)

// Publisher publishes ledger events to the message broker
//
//go:generate mockgen -source=publisher.go -destination=../mocks/publisher.go -package=mocks -mock_names=Publisher=MockPublisher
type Publisher interface {
	// PublishEvent publishes a ledger event. Publishing the same event twice
	// must not produce two messages.
	PublishEvent(ctx context.Context, event *domain.LedgerEvent) error
	// Close closes the connection
	Close()
}

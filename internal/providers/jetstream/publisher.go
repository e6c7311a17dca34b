package jetstream

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/feral-file/lt-indexer/internal/adapter"
	"github.com/feral-file/lt-indexer/internal/domain"
	"github.com/feral-file/lt-indexer/internal/logger"
	"github.com/feral-file/lt-indexer/internal/messaging"
)

const (
	defaultDuplicateWindow = 2 * time.Minute
	defaultPublishRetries  = 5
)

// Config holds the configuration for NATS JetStream connection
type Config struct {
	URL            string
	StreamName     string
	SubjectPrefix  string
	MaxReconnects  int
	ReconnectWait  time.Duration
	ConnectionName string
	// DuplicateWindow is how long the stream remembers message ids for deduplication
	DuplicateWindow time.Duration
	PublishRetries  uint64
}

// ConnectOptions returns the NATS options shared by the publisher and the bridge
func ConnectOptions(name string, maxReconnects int, reconnectWait time.Duration) []nats.Option {
	return []nats.Option{
		nats.Name(name),
		nats.MaxReconnects(maxReconnects),
		nats.ReconnectWait(reconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Error(err, zap.String("message", "Disconnected from NATS"))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("Reconnected to NATS", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection closed")
		}),
	}
}

// StreamConfig returns the configuration of the ledger event stream
func StreamConfig(name, subjectPrefix string, duplicateWindow time.Duration) jetstream.StreamConfig {
	if duplicateWindow == 0 {
		duplicateWindow = defaultDuplicateWindow
	}
	return jetstream.StreamConfig{
		Name:       name,
		Subjects:   []string{subjectPrefix + ".>"},
		Storage:    jetstream.FileStorage,
		Retention:  jetstream.LimitsPolicy,
		Duplicates: duplicateWindow,
	}
}

// Subject returns the subject a ledger event is published on: <prefix>.<chain>.<event_type>
func Subject(prefix string, event *domain.LedgerEvent) string {
	return fmt.Sprintf("%s.%s.%s", prefix, event.Chain, event.EventType)
}

type publisher struct {
	nc     adapter.NatsConn
	js     adapter.JetStream
	json   adapter.JSON
	config Config
}

// NewPublisher connects to NATS and declares the ledger stream
func NewPublisher(ctx context.Context, cfg Config, natsJS adapter.NatsJetStream, jsonAdapter adapter.JSON) (messaging.Publisher, error) {
	if cfg.PublishRetries == 0 {
		cfg.PublishRetries = defaultPublishRetries
	}

	nc, js, err := natsJS.Connect(cfg.URL, ConnectOptions(cfg.ConnectionName, cfg.MaxReconnects, cfg.ReconnectWait)...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS and create JetStream: %w", err)
	}

	err = js.CreateOrUpdateStream(ctx, StreamConfig(cfg.StreamName, cfg.SubjectPrefix, cfg.DuplicateWindow))
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create stream %s: %w", cfg.StreamName, err)
	}

	return &publisher{
		nc:     nc,
		js:     js,
		json:   jsonAdapter,
		config: cfg,
	}, nil
}

// PublishEvent publishes a ledger event. The event id is sent as the message
// id, so a republished event within the duplicate window is dropped by the server.
func (p *publisher) PublishEvent(ctx context.Context, event *domain.LedgerEvent) error {
	data, err := p.json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	subject := Subject(p.config.SubjectPrefix, event)
	id := event.ID()

	op := func() (*jetstream.PubAck, error) {
		return p.js.Publish(ctx, subject, data,
			jetstream.WithMsgID(id),
			jetstream.WithExpectStream(p.config.StreamName))
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), p.config.PublishRetries), ctx)
	ack, err := backoff.RetryNotifyWithData(op, b, func(err error, wait time.Duration) {
		logger.WarnCtx(ctx, "Failed to publish event, retrying",
			zap.String("event_id", id),
			zap.Duration("wait", wait),
			zap.Error(err))
	})
	if err != nil {
		return fmt.Errorf("failed to publish event %s: %w", id, err)
	}

	if ack != nil && ack.Duplicate {
		logger.DebugCtx(ctx, "Event already published", zap.String("event_id", id))
	}

	return nil
}

// Close drains and closes the NATS connection
func (p *publisher) Close() {
	if p.nc == nil {
		return
	}

	if err := p.nc.Drain(); err != nil {
		logger.Error(err, zap.String("message", "Failed to drain NATS connection"))
		p.nc.Close()
	}
}

package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/feral-file/lt-indexer/internal/adapter"
	"github.com/feral-file/lt-indexer/internal/domain"
	"github.com/feral-file/lt-indexer/internal/logger"
	"github.com/feral-file/lt-indexer/internal/metrics"
	"github.com/feral-file/lt-indexer/internal/processor"
	ltjetstream "github.com/feral-file/lt-indexer/internal/providers/jetstream"
)

// Config holds the configuration for the event bridge
type Config struct {
	URL            string
	StreamName     string
	SubjectPrefix  string
	ConsumerName   string
	MaxReconnects  int
	ReconnectWait  time.Duration
	ConnectionName string
	AckWaitTimeout time.Duration
	// MaxDeliver caps redeliveries, -1 retries forever
	MaxDeliver int
	// NakDelay is the wait before a message that failed transiently is redelivered
	NakDelay time.Duration
}

// Bridge defines the interface for the event bridge
type Bridge interface {
	// Run consumes ledger events until ctx is done
	Run(ctx context.Context) error
	// Close closes the bridge and cleans up resources
	Close()
}

type bridge struct {
	nc        adapter.NatsConn
	js        adapter.JetStream
	processor processor.Processor
	json      adapter.JSON
	config    Config
}

// NewBridge connects to NATS. Events are handed to the processor one at a time.
func NewBridge(
	cfg Config,
	natsJS adapter.NatsJetStream,
	proc processor.Processor,
	jsonAdapter adapter.JSON,
) (Bridge, error) {
	if cfg.MaxDeliver == 0 {
		cfg.MaxDeliver = -1
	}

	nc, js, err := natsJS.Connect(cfg.URL, ltjetstream.ConnectOptions(cfg.ConnectionName, cfg.MaxReconnects, cfg.ReconnectWait)...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS and create JetStream: %w", err)
	}

	return &bridge{
		nc:        nc,
		js:        js,
		processor: proc,
		json:      jsonAdapter,
		config:    cfg,
	}, nil
}

// consumerConfig allows a single unacknowledged message so events are applied in stream order
func (b *bridge) consumerConfig() jetstream.ConsumerConfig {
	return jetstream.ConsumerConfig{
		Durable:       b.config.ConsumerName,
		DeliverPolicy: jetstream.DeliverAllPolicy,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       b.config.AckWaitTimeout,
		MaxDeliver:    b.config.MaxDeliver,
		MaxAckPending: 1,
		FilterSubject: b.config.SubjectPrefix + ".>",
	}
}

// Run starts the event bridge
func (b *bridge) Run(ctx context.Context) error {
	logger.InfoCtx(ctx, "Starting event bridge",
		zap.String("stream", b.config.StreamName),
		zap.String("consumer", b.config.ConsumerName))

	if err := b.js.CreateOrUpdateStream(ctx, ltjetstream.StreamConfig(b.config.StreamName, b.config.SubjectPrefix, 0)); err != nil {
		return fmt.Errorf("failed to create stream %s: %w", b.config.StreamName, err)
	}

	consumer, err := b.js.CreateOrUpdateConsumer(ctx, b.config.StreamName, b.consumerConfig())
	if err != nil {
		return fmt.Errorf("failed to create/update consumer: %w", err)
	}

	info, err := consumer.Info(ctx)
	if err != nil {
		return fmt.Errorf("failed to get consumer info: %w", err)
	}
	logger.InfoCtx(ctx, "Consumer created/retrieved",
		zap.String("consumer", info.Name),
		zap.Uint64("pending", info.NumPending))

	msgChan := make(chan adapter.Message, 1)
	sub, err := consumer.Consume(func(msg adapter.Message) {
		select {
		case msgChan <- msg:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	defer sub.Stop()

	logger.InfoCtx(ctx, "Started consuming messages")

	for {
		select {
		case <-ctx.Done():
			logger.InfoCtx(ctx, "Shutting down event bridge")
			return ctx.Err()
		case msg := <-msgChan:
			b.handleMessage(ctx, msg)
		}
	}
}

// handleMessage applies one message and acknowledges it according to the outcome:
// Ack on success, Term for malformed or fatal events, Nak for anything else.
func (b *bridge) handleMessage(ctx context.Context, msg adapter.Message) {
	var delivered uint64
	if metadata, err := msg.Metadata(); err == nil {
		delivered = metadata.NumDelivered
	}

	var event domain.LedgerEvent
	if err := b.json.Unmarshal(msg.Data(), &event); err != nil {
		logger.ErrorCtx(ctx, err,
			zap.String("message", "Failed to unmarshal event"),
			zap.String("subject", msg.Subject()))
		metrics.EventsProcessed.WithLabelValues("unknown", "terminated").Inc()
		b.term(ctx, msg)
		return
	}

	eventType := string(event.EventType)
	fields := []zap.Field{
		zap.String("event_id", event.ID()),
		zap.String("event_type", eventType),
		zap.Uint64("block_number", event.BlockNumber),
		zap.Uint64("delivery_count", delivered),
	}
	logger.DebugCtx(ctx, "Received event", fields...)

	start := time.Now()
	err := b.processor.Process(ctx, &event)
	metrics.ProcessingDuration.WithLabelValues(eventType).Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		metrics.EventsProcessed.WithLabelValues(eventType, "applied").Inc()
		metrics.ProcessedBlock.Set(float64(event.BlockNumber))
		if err := msg.Ack(); err != nil {
			logger.ErrorCtx(ctx, err, zap.String("message", "Failed to ACK message"))
		}

	case domain.IsFatal(err):
		logger.ErrorCtx(ctx, err, append(fields, zap.String("message", "Dropping event that cannot be applied"))...)
		metrics.EventsProcessed.WithLabelValues(eventType, "terminated").Inc()
		b.term(ctx, msg)

	default:
		metrics.EventsProcessed.WithLabelValues(eventType, "retried").Inc()
		if errors.Is(err, context.Canceled) {
			// Shutting down, redeliver right away to the next consumer
			if err := msg.Nak(); err != nil {
				logger.ErrorCtx(ctx, err, zap.String("message", "Failed to NAK message"))
			}
			return
		}
		logger.WarnCtx(ctx, "Failed to apply event, retrying",
			append(fields, zap.Error(err), zap.Duration("delay", b.config.NakDelay))...)
		if err := msg.NakWithDelay(b.config.NakDelay); err != nil {
			logger.ErrorCtx(ctx, err, zap.String("message", "Failed to NAK message"))
		}
	}
}

func (b *bridge) term(ctx context.Context, msg adapter.Message) {
	if err := msg.Term(); err != nil {
		logger.ErrorCtx(ctx, err, zap.String("message", "Failed to terminate message"))
	}
}

// Close closes the bridge and cleans up resources
func (b *bridge) Close() {
	if b.nc == nil {
		return
	}

	b.nc.Close()
}

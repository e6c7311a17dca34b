package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/lt-indexer/internal/adapter"
	"github.com/feral-file/lt-indexer/internal/domain"
	"github.com/feral-file/lt-indexer/internal/logger"
	"github.com/feral-file/lt-indexer/internal/mocks"
)

func TestMain(m *testing.M) {
	err := logger.Initialize(logger.Config{
		Debug: false,
	})
	if err != nil {
		panic(err)
	}

	code := m.Run()
	os.Exit(code)
}

// testBridgeMocks contains all the mocks needed for testing the bridge
type testBridgeMocks struct {
	ctrl      *gomock.Controller
	natsJS    *mocks.MockNatsJetStream
	natsConn  *mocks.MockNatsConn
	jetStream *mocks.MockJetStream
	processor *mocks.MockProcessor
}

func setupTestBridge(t *testing.T) *testBridgeMocks {
	ctrl := gomock.NewController(t)

	return &testBridgeMocks{
		ctrl:      ctrl,
		natsJS:    mocks.NewMockNatsJetStream(ctrl),
		natsConn:  mocks.NewMockNatsConn(ctrl),
		jetStream: mocks.NewMockJetStream(ctrl),
		processor: mocks.NewMockProcessor(ctrl),
	}
}

func testConfig() Config {
	return Config{
		URL:            "nats://localhost:4222",
		StreamName:     "LEDGER_EVENTS",
		SubjectPrefix:  "ledger",
		ConsumerName:   "event-bridge",
		MaxReconnects:  10,
		ReconnectWait:  time.Second,
		ConnectionName: "test-bridge",
		AckWaitTimeout: 30 * time.Second,
		NakDelay:       5 * time.Second,
	}
}

func newTestBridge(t *testing.T, tm *testBridgeMocks) *bridge {
	t.Helper()
	tm.natsJS.EXPECT().Connect("nats://localhost:4222", gomock.Any()).Return(tm.natsConn, tm.jetStream, nil)

	b, err := NewBridge(testConfig(), tm.natsJS, tm.processor, adapter.NewJSON())
	require.NoError(t, err)
	return b.(*bridge)
}

func ledgerEvent(block uint64) *domain.LedgerEvent {
	return &domain.LedgerEvent{
		Chain:       domain.ChainHyperEVMMainnet,
		EventType:   domain.EventTypeTransfer,
		Instrument:  "0x7B430c5842ce7dBa29b910c018369FA2Fa0ac2e3",
		TxHash:      fmt.Sprintf("0x%064x", block),
		BlockNumber: block,
		Timestamp:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		FromAddress: "0x1111111111111111111111111111111111111111",
		ToAddress:   "0x2222222222222222222222222222222222222222",
		LTAmount:    "1000000000000000000",
	}
}

// message builds a mocked JetStream message carrying event
func message(t *testing.T, ctrl *gomock.Controller, event *domain.LedgerEvent) *mocks.MockJetStreamMessage {
	t.Helper()
	data, err := json.Marshal(event)
	require.NoError(t, err)

	msg := mocks.NewMockJetStreamMessage(ctrl)
	msg.EXPECT().Data().Return(data).AnyTimes()
	msg.EXPECT().Subject().Return("ledger.eip155:999.transfer").AnyTimes()
	msg.EXPECT().Metadata().Return(&jetstream.MsgMetadata{NumDelivered: 1}, nil).AnyTimes()
	return msg
}

func TestNewBridge_ConnectError(t *testing.T) {
	tm := setupTestBridge(t)
	tm.natsJS.EXPECT().Connect(gomock.Any(), gomock.Any()).Return(nil, nil, assert.AnError)

	b, err := NewBridge(testConfig(), tm.natsJS, tm.processor, adapter.NewJSON())
	assert.Nil(t, b)
	assert.ErrorContains(t, err, "failed to connect to NATS")
}

func TestConsumerConfig(t *testing.T) {
	tm := setupTestBridge(t)
	b := newTestBridge(t, tm)

	assert.Equal(t, jetstream.ConsumerConfig{
		Durable:       "event-bridge",
		DeliverPolicy: jetstream.DeliverAllPolicy,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       30 * time.Second,
		MaxDeliver:    -1,
		MaxAckPending: 1,
		FilterSubject: "ledger.>",
	}, b.consumerConfig())
}

func TestHandleMessage(t *testing.T) {
	tests := []struct {
		name    string
		process error
		expect  func(msg *mocks.MockJetStreamMessage)
	}{
		{
			name:    "applied event is acknowledged",
			process: nil,
			expect:  func(msg *mocks.MockJetStreamMessage) { msg.EXPECT().Ack().Return(nil) },
		},
		{
			name:    "fatal error terminates",
			process: domain.Fatal(domain.ErrBalanceNotFound),
			expect:  func(msg *mocks.MockJetStreamMessage) { msg.EXPECT().Term().Return(nil) },
		},
		{
			name:    "transient error is redelivered later",
			process: errors.New("connection refused"),
			expect: func(msg *mocks.MockJetStreamMessage) {
				msg.EXPECT().NakWithDelay(5 * time.Second).Return(nil)
			},
		},
		{
			name:    "shutdown redelivers right away",
			process: fmt.Errorf("failed to begin transaction: %w", context.Canceled),
			expect:  func(msg *mocks.MockJetStreamMessage) { msg.EXPECT().Nak().Return(nil) },
		},
		{
			name:    "ack failure is only logged",
			process: nil,
			expect:  func(msg *mocks.MockJetStreamMessage) { msg.EXPECT().Ack().Return(assert.AnError) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tm := setupTestBridge(t)
			b := newTestBridge(t, tm)

			event := ledgerEvent(100)
			msg := message(t, tm.ctrl, event)
			tm.processor.EXPECT().Process(gomock.Any(), event).Return(tt.process)
			tt.expect(msg)

			b.handleMessage(context.Background(), msg)
		})
	}
}

func TestHandleMessage_MalformedPayload(t *testing.T) {
	tm := setupTestBridge(t)
	b := newTestBridge(t, tm)

	msg := mocks.NewMockJetStreamMessage(tm.ctrl)
	msg.EXPECT().Metadata().Return(nil, errors.New("not a jetstream message"))
	msg.EXPECT().Data().Return([]byte("{not json"))
	msg.EXPECT().Subject().Return("ledger.eip155:999.mint")
	msg.EXPECT().Term().Return(nil)

	b.handleMessage(context.Background(), msg)
}

func TestRun_ProcessesSequentially(t *testing.T) {
	tm := setupTestBridge(t)
	b := newTestBridge(t, tm)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumer := mocks.NewMockNatsConsumer(tm.ctrl)
	consumeCtx := mocks.NewMockConsumeContext(tm.ctrl)

	tm.jetStream.EXPECT().CreateOrUpdateStream(gomock.Any(), gomock.Any()).Return(nil)
	tm.jetStream.EXPECT().CreateOrUpdateConsumer(gomock.Any(), "LEDGER_EVENTS", b.consumerConfig()).Return(consumer, nil)
	consumer.EXPECT().Info(gomock.Any()).Return(&jetstream.ConsumerInfo{Name: "event-bridge"}, nil)

	first, second := ledgerEvent(100), ledgerEvent(101)
	firstMsg, secondMsg := message(t, tm.ctrl, first), message(t, tm.ctrl, second)

	consumer.EXPECT().Consume(gomock.Any()).
		DoAndReturn(func(handler adapter.MessageHandler, _ ...jetstream.PullConsumeOpt) (adapter.ConsumeContext, error) {
			go func() {
				handler(firstMsg)
				handler(secondMsg)
			}()
			return consumeCtx, nil
		})
	consumeCtx.EXPECT().Stop()

	gomock.InOrder(
		tm.processor.EXPECT().Process(gomock.Any(), first).Return(nil),
		firstMsg.EXPECT().Ack().Return(nil),
		tm.processor.EXPECT().Process(gomock.Any(), second).Return(nil),
		secondMsg.EXPECT().Ack().DoAndReturn(func() error {
			cancel()
			return nil
		}),
	)

	err := b.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_SetupErrors(t *testing.T) {
	t.Run("stream", func(t *testing.T) {
		tm := setupTestBridge(t)
		b := newTestBridge(t, tm)
		tm.jetStream.EXPECT().CreateOrUpdateStream(gomock.Any(), gomock.Any()).Return(assert.AnError)

		assert.ErrorContains(t, b.Run(context.Background()), "failed to create stream")
	})

	t.Run("consumer", func(t *testing.T) {
		tm := setupTestBridge(t)
		b := newTestBridge(t, tm)
		tm.jetStream.EXPECT().CreateOrUpdateStream(gomock.Any(), gomock.Any()).Return(nil)
		tm.jetStream.EXPECT().CreateOrUpdateConsumer(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, assert.AnError)

		assert.ErrorContains(t, b.Run(context.Background()), "failed to create/update consumer")
	})
}

func TestClose(t *testing.T) {
	tm := setupTestBridge(t)
	b := newTestBridge(t, tm)
	tm.natsConn.EXPECT().Close()

	b.Close()
}

package jetstream_test

import (
	"context"
	"encoding/json"
	"errors"
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
	ltjetstream "github.com/feral-file/lt-indexer/internal/providers/jetstream"
)

func TestMain(m *testing.M) {
	if err := logger.Initialize(logger.Config{Debug: false}); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type testPublisherMocks struct {
	natsJS    *mocks.MockNatsJetStream
	natsConn  *mocks.MockNatsConn
	jetStream *mocks.MockJetStream
}

func setupTestPublisher(t *testing.T) *testPublisherMocks {
	ctrl := gomock.NewController(t)
	return &testPublisherMocks{
		natsJS:    mocks.NewMockNatsJetStream(ctrl),
		natsConn:  mocks.NewMockNatsConn(ctrl),
		jetStream: mocks.NewMockJetStream(ctrl),
	}
}

func testConfig() ltjetstream.Config {
	return ltjetstream.Config{
		URL:            "nats://localhost:4222",
		StreamName:     "LEDGER_EVENTS",
		SubjectPrefix:  "ledger",
		MaxReconnects:  3,
		ReconnectWait:  time.Second,
		ConnectionName: "test-emitter",
		PublishRetries: 2,
	}
}

func mintEvent() *domain.LedgerEvent {
	return &domain.LedgerEvent{
		Chain:       domain.ChainHyperEVMMainnet,
		EventType:   domain.EventTypeMint,
		Instrument:  "0x7B430c5842ce7dBa29b910c018369FA2Fa0ac2e3",
		TxHash:      "0xABC",
		LogIndex:    4,
		BlockNumber: 100,
		Timestamp:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		FromAddress: "0x1111111111111111111111111111111111111111",
		ToAddress:   "0x1111111111111111111111111111111111111111",
		BaseAmount:  "1000000000",
		LTAmount:    "100000000000000000000",
	}
}

func connect(t *testing.T, tm *testPublisherMocks) {
	t.Helper()
	tm.natsJS.EXPECT().Connect("nats://localhost:4222", gomock.Any()).Return(tm.natsConn, tm.jetStream, nil)
	tm.jetStream.EXPECT().CreateOrUpdateStream(gomock.Any(), jetstream.StreamConfig{
		Name:       "LEDGER_EVENTS",
		Subjects:   []string{"ledger.>"},
		Storage:    jetstream.FileStorage,
		Retention:  jetstream.LimitsPolicy,
		Duplicates: 2 * time.Minute,
	}).Return(nil)
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "ledger.eip155:999.mint", ltjetstream.Subject("ledger", mintEvent()))
}

func TestNewPublisher(t *testing.T) {
	t.Run("connect error", func(t *testing.T) {
		tm := setupTestPublisher(t)
		tm.natsJS.EXPECT().Connect(gomock.Any(), gomock.Any()).Return(nil, nil, assert.AnError)

		p, err := ltjetstream.NewPublisher(context.Background(), testConfig(), tm.natsJS, adapter.NewJSON())
		assert.Nil(t, p)
		assert.ErrorContains(t, err, "failed to connect to NATS")
	})

	t.Run("stream error closes the connection", func(t *testing.T) {
		tm := setupTestPublisher(t)
		tm.natsJS.EXPECT().Connect(gomock.Any(), gomock.Any()).Return(tm.natsConn, tm.jetStream, nil)
		tm.jetStream.EXPECT().CreateOrUpdateStream(gomock.Any(), gomock.Any()).Return(assert.AnError)
		tm.natsConn.EXPECT().Close()

		p, err := ltjetstream.NewPublisher(context.Background(), testConfig(), tm.natsJS, adapter.NewJSON())
		assert.Nil(t, p)
		assert.ErrorContains(t, err, "failed to create stream LEDGER_EVENTS")
	})
}

func TestPublishEvent(t *testing.T) {
	tm := setupTestPublisher(t)
	connect(t, tm)

	p, err := ltjetstream.NewPublisher(context.Background(), testConfig(), tm.natsJS, adapter.NewJSON())
	require.NoError(t, err)

	event := mintEvent()
	tm.jetStream.EXPECT().
		Publish(gomock.Any(), "ledger.eip155:999.mint", gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
			var decoded domain.LedgerEvent
			require.NoError(t, json.Unmarshal(data, &decoded))
			assert.Equal(t, *event, decoded)
			assert.Len(t, opts, 2)
			return &jetstream.PubAck{Stream: "LEDGER_EVENTS", Sequence: 1}, nil
		})

	require.NoError(t, p.PublishEvent(context.Background(), event))
}

func TestPublishEvent_Retries(t *testing.T) {
	tm := setupTestPublisher(t)
	connect(t, tm)

	p, err := ltjetstream.NewPublisher(context.Background(), testConfig(), tm.natsJS, adapter.NewJSON())
	require.NoError(t, err)

	gomock.InOrder(
		tm.jetStream.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, errors.New("nats: timeout")),
		tm.jetStream.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(&jetstream.PubAck{Duplicate: true}, nil),
	)

	require.NoError(t, p.PublishEvent(context.Background(), mintEvent()))
}

func TestPublishEvent_GivesUp(t *testing.T) {
	tm := setupTestPublisher(t)
	connect(t, tm)

	p, err := ltjetstream.NewPublisher(context.Background(), testConfig(), tm.natsJS, adapter.NewJSON())
	require.NoError(t, err)

	tm.jetStream.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, errors.New("nats: no responders")).Times(3)

	err = p.PublishEvent(context.Background(), mintEvent())
	assert.ErrorContains(t, err, "failed to publish event 0xabc:4")
}

func TestClose(t *testing.T) {
	tm := setupTestPublisher(t)
	connect(t, tm)

	p, err := ltjetstream.NewPublisher(context.Background(), testConfig(), tm.natsJS, adapter.NewJSON())
	require.NoError(t, err)

	tm.natsConn.EXPECT().Drain().Return(assert.AnError)
	tm.natsConn.EXPECT().Close()
	p.Close()
}

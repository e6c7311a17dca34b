package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/lt-indexer/internal/domain"
	"github.com/feral-file/lt-indexer/internal/mocks"
)

type fakeSubscription struct {
	errCh chan error
}

func newFakeSubscription() *fakeSubscription {
	return &fakeSubscription{errCh: make(chan error, 1)}
}

func (s *fakeSubscription) Unsubscribe()      {}
func (s *fakeSubscription) Err() <-chan error { return s.errCh }

func header(number uint64) *types.Header {
	return &types.Header{Number: new(big.Int).SetUint64(number), Time: 1_700_000_000 + number}
}

func eventAt(eventType domain.EventType, number uint64) *domain.LedgerEvent {
	return &domain.LedgerEvent{
		Chain:       domain.ChainHyperEVMMainnet,
		EventType:   eventType,
		Instrument:  tokenAddr.Hex(),
		TxHash:      common.BigToHash(new(big.Int).SetUint64(number)).Hex(),
		BlockNumber: number,
	}
}

type testSubscriberMocks struct {
	client *mocks.MockEthereumClient
	blocks *mocks.MockBlockProvider
}

func setupTestSubscriber(t *testing.T, ticks bool) (*testSubscriberMocks, *ethSubscriber) {
	ctrl := gomock.NewController(t)
	tm := &testSubscriberMocks{
		client: mocks.NewMockEthereumClient(ctrl),
		blocks: mocks.NewMockBlockProvider(ctrl),
	}
	tm.client.EXPECT().LogQuery(gomock.Any(), gomock.Any()).
		DoAndReturn(func(from uint64, to *uint64) ethereum.FilterQuery {
			query := ethereum.FilterQuery{FromBlock: new(big.Int).SetUint64(from)}
			if to != nil {
				query.ToBlock = new(big.Int).SetUint64(*to)
			}
			return query
		}).AnyTimes()
	tm.blocks.EXPECT().ObserveHead(gomock.Any(), gomock.Any()).AnyTimes()

	sub := NewSubscriber(SubscriberConfig{
		ChainID:    domain.ChainHyperEVMMainnet,
		BlockTicks: ticks,
	}, tm.client, tm.blocks).(*ethSubscriber)
	return tm, sub
}

// parseByBlock decodes each log into a mint at the log's block
func parseByBlock(_ context.Context, vLog types.Log) (*domain.LedgerEvent, error) {
	return eventAt(domain.EventTypeMint, vLog.BlockNumber), nil
}

func TestSubscribeEvents_ReplaysThenFollows(t *testing.T) {
	tm, sub := setupTestSubscriber(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tm.client.EXPECT().SubscribeFilterLogs(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
			// Block 104 arrives live but was already replayed
			ch <- types.Log{BlockNumber: 104}
			ch <- types.Log{BlockNumber: 107}
			return newFakeSubscription(), nil
		})
	tm.client.EXPECT().HeaderByNumber(gomock.Any(), gomock.Nil()).Return(header(105), nil).Times(2)
	tm.client.EXPECT().FilterLogs(gomock.Any(), gomock.Any()).
		Return([]types.Log{{BlockNumber: 101}, {BlockNumber: 104}}, nil)
	tm.client.EXPECT().ParseEventLog(gomock.Any(), gomock.Any()).DoAndReturn(parseByBlock).Times(3)

	var blocks []uint64
	err := sub.SubscribeEvents(ctx, 100, func(event *domain.LedgerEvent) error {
		blocks = append(blocks, event.BlockNumber)
		if len(blocks) == 3 {
			cancel()
		}
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []uint64{101, 104, 107}, blocks)
}

func TestSubscribeEvents_BlockTicks(t *testing.T) {
	tm, sub := setupTestSubscriber(t, true)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tm.client.EXPECT().SubscribeFilterLogs(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(newFakeSubscription(), nil)
	tm.client.EXPECT().SubscribeNewHead(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, ch chan<- *types.Header) (ethereum.Subscription, error) {
			ch <- header(105)
			ch <- header(106)
			return newFakeSubscription(), nil
		})
	tm.client.EXPECT().HeaderByNumber(gomock.Any(), gomock.Nil()).Return(header(105), nil).Times(2)
	tm.client.EXPECT().FilterLogs(gomock.Any(), gomock.Any()).Return(nil, nil)

	var ticks []*domain.LedgerEvent
	err := sub.SubscribeEvents(ctx, 100, func(event *domain.LedgerEvent) error {
		ticks = append(ticks, event)
		if len(ticks) == 2 {
			cancel()
		}
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, ticks, 2)
	for i, number := range []uint64{105, 106} {
		assert.Equal(t, domain.EventTypeBlockTick, ticks[i].EventType)
		assert.Equal(t, number, ticks[i].BlockNumber)
		assert.Equal(t, time.Unix(int64(1_700_000_000+number), 0).UTC(), ticks[i].Timestamp)
		assert.True(t, ticks[i].Valid())
		assert.Equal(t, fmt.Sprintf("block:%d", number), ticks[i].ID())
	}
}

func TestSubscribeEvents_RebuildsForNewInstrument(t *testing.T) {
	tm, sub := setupTestSubscriber(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	created := types.Log{BlockNumber: 102, Index: 0}
	minted := types.Log{BlockNumber: 103, Index: 0}
	mintedNew := types.Log{BlockNumber: 104, Index: 0}

	creation := eventAt(domain.EventTypeInstrumentCreated, 102)
	creation.Instrument = newTokenAddr.Hex()

	tm.client.EXPECT().SubscribeFilterLogs(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(newFakeSubscription(), nil).Times(2)
	tm.client.EXPECT().HeaderByNumber(gomock.Any(), gomock.Nil()).Return(header(105), nil).AnyTimes()
	gomock.InOrder(
		tm.client.EXPECT().FilterLogs(gomock.Any(), gomock.Any()).Return([]types.Log{created, minted}, nil),
		// The rebuilt subscription replays from the creation block
		tm.client.EXPECT().FilterLogs(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
				assert.Equal(t, uint64(102), q.FromBlock.Uint64())
				return []types.Log{created, minted, mintedNew}, nil
			}),
	)
	tm.client.EXPECT().ParseEventLog(gomock.Any(), created).Return(creation, nil).Times(2)
	tm.client.EXPECT().ParseEventLog(gomock.Any(), minted).DoAndReturn(parseByBlock)
	tm.client.EXPECT().ParseEventLog(gomock.Any(), mintedNew).DoAndReturn(parseByBlock)
	gomock.InOrder(
		tm.client.EXPECT().RegisterInstrument(newTokenAddr.Hex()).Return(true),
		tm.client.EXPECT().RegisterInstrument(newTokenAddr.Hex()).Return(false),
	)

	var seen []domain.EventType
	err := sub.SubscribeEvents(ctx, 100, func(event *domain.LedgerEvent) error {
		seen = append(seen, event.EventType)
		if event.BlockNumber == 104 {
			cancel()
		}
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []domain.EventType{
		domain.EventTypeInstrumentCreated,
		domain.EventTypeInstrumentCreated,
		domain.EventTypeMint,
		domain.EventTypeMint,
	}, seen)
}

func TestSubscribeEvents_SkipsMalformedLogs(t *testing.T) {
	tm, sub := setupTestSubscriber(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tm.client.EXPECT().SubscribeFilterLogs(gomock.Any(), gomock.Any(), gomock.Any()).Return(newFakeSubscription(), nil)
	tm.client.EXPECT().HeaderByNumber(gomock.Any(), gomock.Nil()).Return(header(105), nil).AnyTimes()
	tm.client.EXPECT().FilterLogs(gomock.Any(), gomock.Any()).
		Return([]types.Log{{BlockNumber: 101}, {BlockNumber: 102}}, nil)
	tm.client.EXPECT().ParseEventLog(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, vLog types.Log) (*domain.LedgerEvent, error) {
			if vLog.BlockNumber == 101 {
				return nil, domain.Fatal(errors.New("bad data"))
			}
			return parseByBlock(ctx, vLog)
		}).Times(2)

	var blocks []uint64
	err := sub.SubscribeEvents(ctx, 100, func(event *domain.LedgerEvent) error {
		blocks = append(blocks, event.BlockNumber)
		cancel()
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []uint64{102}, blocks)
}

func TestSubscribeEvents_Errors(t *testing.T) {
	t.Run("subscribe failure", func(t *testing.T) {
		tm, sub := setupTestSubscriber(t, false)
		tm.client.EXPECT().SubscribeFilterLogs(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, errors.New("dial failed"))

		err := sub.SubscribeEvents(context.Background(), 100, func(*domain.LedgerEvent) error { return nil })
		assert.ErrorIs(t, err, domain.ErrSubscriptionFailed)
	})

	t.Run("transient decode failure stops delivery", func(t *testing.T) {
		tm, sub := setupTestSubscriber(t, false)
		tm.client.EXPECT().SubscribeFilterLogs(gomock.Any(), gomock.Any(), gomock.Any()).Return(newFakeSubscription(), nil)
		tm.client.EXPECT().HeaderByNumber(gomock.Any(), gomock.Nil()).Return(header(105), nil)
		tm.client.EXPECT().FilterLogs(gomock.Any(), gomock.Any()).Return([]types.Log{{BlockNumber: 101}}, nil)
		tm.client.EXPECT().ParseEventLog(gomock.Any(), gomock.Any()).Return(nil, errors.New("timestamp unavailable"))

		err := sub.SubscribeEvents(context.Background(), 100, func(*domain.LedgerEvent) error { return nil })
		assert.ErrorContains(t, err, "timestamp unavailable")
	})

	t.Run("handler failure stops delivery", func(t *testing.T) {
		tm, sub := setupTestSubscriber(t, false)
		tm.client.EXPECT().SubscribeFilterLogs(gomock.Any(), gomock.Any(), gomock.Any()).Return(newFakeSubscription(), nil)
		tm.client.EXPECT().HeaderByNumber(gomock.Any(), gomock.Nil()).Return(header(105), nil)
		tm.client.EXPECT().FilterLogs(gomock.Any(), gomock.Any()).Return([]types.Log{{BlockNumber: 101}}, nil)
		tm.client.EXPECT().ParseEventLog(gomock.Any(), gomock.Any()).DoAndReturn(parseByBlock)

		err := sub.SubscribeEvents(context.Background(), 100, func(*domain.LedgerEvent) error {
			return errors.New("publish failed")
		})
		assert.ErrorContains(t, err, "publish failed")
	})

	t.Run("subscription dropped", func(t *testing.T) {
		tm, sub := setupTestSubscriber(t, false)
		logSub := newFakeSubscription()
		logSub.errCh <- errors.New("websocket closed")
		tm.client.EXPECT().SubscribeFilterLogs(gomock.Any(), gomock.Any(), gomock.Any()).Return(logSub, nil)
		tm.client.EXPECT().HeaderByNumber(gomock.Any(), gomock.Nil()).Return(header(99), nil)

		err := sub.SubscribeEvents(context.Background(), 100, func(*domain.LedgerEvent) error { return nil })
		assert.ErrorIs(t, err, domain.ErrSubscriptionFailed)
	})
}

func TestSubscriber_GetLatestBlock(t *testing.T) {
	tm, sub := setupTestSubscriber(t, false)
	tm.blocks.EXPECT().GetLatestBlock(gomock.Any()).Return(uint64(42), nil)

	latest, err := sub.GetLatestBlock(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(42), latest)
}

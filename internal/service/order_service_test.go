package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradedesk/internal/bus"
	"tradedesk/internal/domain"
	"tradedesk/internal/ledger"
)

// tradeStoreStub records inserted trade entries.
type tradeStoreStub struct {
	mu        sync.Mutex
	inserted  []domain.TradeEntry
	insertErr error
}

func (s *tradeStoreStub) Insert(_ context.Context, trade domain.TradeEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserted = append(s.inserted, trade)
	return s.insertErr
}

func (s *tradeStoreStub) Recent(context.Context, int) ([]domain.TradeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.TradeEntry(nil), s.inserted...), nil
}

func newOrderFixture(gw domain.OrderGateway, trades domain.TradeStore) (*OrderService, *ledger.Ledger, *bus.Memory) {
	l := ledger.New(gw, discardLogger())
	b := bus.NewMemory()
	svc := NewOrderService(gw, l, trades, b, discardLogger())
	return svc, l, b
}

func orderID(id int64) *int64 { return &id }

func TestSubmitRejectsInvalidOrders(t *testing.T) {
	gw := &gatewayStub{}
	svc, _, _ := newOrderFixture(gw, nil)
	ctx := context.Background()

	_, err := svc.Submit(ctx, domain.Order{Price: 100, Quantity: 1, Side: "Hold"})
	assert.Error(t, err)

	_, err = svc.Submit(ctx, domain.Order{Price: 100, Quantity: 0, Side: domain.SideBuy})
	assert.Error(t, err)

	assert.Empty(t, gw.submitted, "invalid orders must never reach the gateway")
}

func TestSubmitRecordsResult(t *testing.T) {
	gw := &gatewayStub{submitRes: domain.FillResult{
		OrderID:      orderID(9),
		Fills:        []domain.Fill{{Price: 100, Quantity: 2}},
		FilledQty:    2,
		RemainingQty: 3,
	}}
	svc, l, _ := newOrderFixture(gw, nil)

	result, err := svc.Submit(context.Background(), domain.Order{
		Price: 100, Quantity: 5, Side: domain.SideBuy, SubmitterID: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.FilledQty)

	assert.Len(t, l.Trades(), 1)
	positions := l.Positions()
	require.Len(t, positions, 1)
	assert.Equal(t, int64(9), positions[0].OrderID)
	assert.Equal(t, int64(5), positions[0].OriginalQty)
}

func TestSubmitGatewayErrorPassesThrough(t *testing.T) {
	gwErr := errors.New("gateway: exchange rejected order")
	gw := &gatewayStub{submitErr: gwErr}
	svc, l, _ := newOrderFixture(gw, nil)

	_, err := svc.Submit(context.Background(), domain.Order{
		Price: 100, Quantity: 5, Side: domain.SideBuy,
	})

	// The gateway error is surfaced verbatim and nothing is recorded.
	assert.ErrorIs(t, err, gwErr)
	assert.Empty(t, l.Trades())
	assert.Empty(t, l.Positions())
}

func TestRecordPersistsAndPublishes(t *testing.T) {
	store := &tradeStoreStub{}
	svc, _, b := newOrderFixture(&gatewayStub{}, store)
	ctx := context.Background()

	tradesCh, err := b.Subscribe(ctx, "trades")
	require.NoError(t, err)
	positionsCh, err := b.Subscribe(ctx, "positions")
	require.NoError(t, err)

	svc.Record(ctx, domain.FillResult{
		OrderID:      orderID(4),
		Fills:        []domain.Fill{{Price: 101, Quantity: 2}},
		FilledQty:    2,
		RemainingQty: 8,
	}, 101, domain.SideSell)

	store.mu.Lock()
	require.Len(t, store.inserted, 1)
	assert.Equal(t, 101.0, store.inserted[0].Price)
	assert.Equal(t, domain.SideSell, store.inserted[0].Side)
	store.mu.Unlock()

	select {
	case raw := <-tradesCh:
		var evt map[string]any
		require.NoError(t, json.Unmarshal(raw, &evt))
		assert.Equal(t, "trade", evt["event"])
		assert.Equal(t, 101.0, evt["price"])
	case <-time.After(time.Second):
		t.Fatal("no trade event published")
	}

	select {
	case raw := <-positionsCh:
		var evt map[string]any
		require.NoError(t, json.Unmarshal(raw, &evt))
		assert.Equal(t, "position_opened", evt["event"])
		assert.Equal(t, float64(4), evt["order_id"])
	case <-time.After(time.Second):
		t.Fatal("no position event published")
	}
}

func TestRecordSurvivesPersistenceFailure(t *testing.T) {
	store := &tradeStoreStub{insertErr: errors.New("db down")}
	svc, l, _ := newOrderFixture(&gatewayStub{}, store)

	svc.Record(context.Background(), domain.FillResult{
		Fills:     []domain.Fill{{Price: 100, Quantity: 1}},
		FilledQty: 1,
	}, 100, domain.SideBuy)

	// The in-memory tape is the source of truth; persistence is best effort.
	assert.Len(t, l.Trades(), 1)
}

func TestClosePositionPublishesEvent(t *testing.T) {
	gw := &gatewayStub{cancelRes: domain.CancelResult{FilledQty: 2, AveragePrice: 100.5}}
	svc, l, b := newOrderFixture(gw, nil)
	ctx := context.Background()

	svc.Record(ctx, domain.FillResult{OrderID: orderID(4), RemainingQty: 8}, 101, domain.SideBuy)

	positionsCh, err := b.Subscribe(ctx, "positions")
	require.NoError(t, err)

	res, err := svc.ClosePosition(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.FilledQty)
	assert.Empty(t, l.Positions())

	select {
	case raw := <-positionsCh:
		var evt map[string]any
		require.NoError(t, json.Unmarshal(raw, &evt))
		assert.Equal(t, "position_closed", evt["event"])
		assert.Equal(t, 100.5, evt["avg_price"])
	case <-time.After(time.Second):
		t.Fatal("no position event published")
	}
}

func TestClosePositionFailedCancel(t *testing.T) {
	gw := &gatewayStub{cancelErr: errors.New("order not found")}
	svc, l, _ := newOrderFixture(gw, nil)
	ctx := context.Background()

	svc.Record(ctx, domain.FillResult{OrderID: orderID(4), RemainingQty: 8}, 101, domain.SideBuy)

	_, err := svc.ClosePosition(ctx, 4)
	require.Error(t, err)
	assert.Len(t, l.Positions(), 1)
}

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradedesk/internal/book"
	"tradedesk/internal/bot"
	"tradedesk/internal/candle"
	"tradedesk/internal/domain"
	"tradedesk/internal/ledger"
)

// feedStub implements FeedStatus.
type feedStub struct{ connected bool }

func (f feedStub) Connected() bool { return f.connected }

// orderServiceStub implements OrderService with canned responses.
type orderServiceStub struct {
	submitRes domain.FillResult
	submitErr error
	closeRes  domain.CancelResult
	closeErr  error
	closedID  int64
}

func (s *orderServiceStub) Submit(_ context.Context, order domain.Order) (domain.FillResult, error) {
	return s.submitRes, s.submitErr
}

func (s *orderServiceStub) ClosePosition(_ context.Context, orderID int64) (domain.CancelResult, error) {
	s.closedID = orderID
	return s.closeRes, s.closeErr
}

// nopGateway satisfies domain.OrderGateway for components that never call it
// in these tests.
type nopGateway struct{}

func (nopGateway) Submit(context.Context, domain.Order) (domain.FillResult, error) {
	return domain.FillResult{}, nil
}
func (nopGateway) Cancel(context.Context, int64) (domain.CancelResult, error) {
	return domain.CancelResult{}, nil
}
func (nopGateway) GetDepth(context.Context) (domain.DepthSnapshot, error) {
	return domain.DepthSnapshot{}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealthCheck(t *testing.T) {
	h := NewHealthHandler(feedStub{connected: true})

	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "tradedesk", body["service"])
	assert.Equal(t, true, body["feed_connected"])
}

func TestGetDepth(t *testing.T) {
	store := book.NewStore()
	store.Apply(domain.DepthSnapshot{
		Bids:      []domain.PriceLevel{{Price: 98, Quantity: 3}, {Price: 99, Quantity: 2}},
		Asks:      []domain.PriceLevel{{Price: 101, Quantity: 4}},
		Sequence:  12,
		Timestamp: time.Now(),
	})
	h := NewMarketHandler(store, candle.NewAggregator(time.Second, 0), feedStub{connected: true})

	rec := httptest.NewRecorder()
	h.GetDepth(rec, httptest.NewRequest(http.MethodGet, "/api/depth", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(12), body["sequence"])
	assert.Equal(t, 99.0, body["best_bid"])
	assert.Equal(t, 101.0, body["best_ask"])
	assert.Equal(t, 2.0, body["spread"])
	assert.Equal(t, 100.0, body["mid"])
	assert.Equal(t, true, body["connected"])

	bids := body["bids"].([]any)
	require.Len(t, bids, 2)
	top := bids[0].(map[string]any)
	assert.Equal(t, 99.0, top["price"])
	assert.Equal(t, float64(2), top["total"])
}

func TestGetDepthEmptyBook(t *testing.T) {
	h := NewMarketHandler(book.NewStore(), candle.NewAggregator(time.Second, 0), feedStub{})

	rec := httptest.NewRecorder()
	h.GetDepth(rec, httptest.NewRequest(http.MethodGet, "/api/depth", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Nil(t, body["best_bid"])
	assert.Nil(t, body["best_ask"])
	assert.Nil(t, body["spread"])
	assert.Nil(t, body["mid"])
}

func TestGetCandles(t *testing.T) {
	agg := candle.NewAggregator(time.Second, 0)
	base := time.Unix(1_700_000_000, 0).UTC()
	agg.Record(100, base)
	agg.Record(105, base.Add(500*time.Millisecond))
	agg.Record(103, base.Add(1200*time.Millisecond))

	h := NewMarketHandler(book.NewStore(), agg, feedStub{})

	rec := httptest.NewRecorder()
	h.GetCandles(rec, httptest.NewRequest(http.MethodGet, "/api/candles", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(1000), body["interval_ms"])

	candles := body["candles"].([]any)
	require.Len(t, candles, 2)
	first := candles[0].(map[string]any)
	assert.Equal(t, 100.0, first["open"])
	assert.Equal(t, 105.0, first["close"])
}

func TestPlaceOrder(t *testing.T) {
	id := int64(7)
	svc := &orderServiceStub{submitRes: domain.FillResult{
		OrderID:      &id,
		Fills:        []domain.Fill{{Price: 100, Quantity: 2, MakerOrderID: 3}},
		FilledQty:    2,
		RemainingQty: 8,
	}}
	h := NewOrderHandler(svc, discardLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/orders",
		strings.NewReader(`{"price": 100, "qty": 10, "side": "Buy", "submitter_id": 1}`))
	rec := httptest.NewRecorder()
	h.PlaceOrder(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(7), body["order_id"])
	assert.Equal(t, float64(2), body["filled_qty"])
	assert.Equal(t, float64(8), body["remaining_qty"])
	fills := body["fills"].([]any)
	require.Len(t, fills, 1)
}

func TestPlaceOrderValidation(t *testing.T) {
	h := NewOrderHandler(&orderServiceStub{}, discardLogger())

	cases := []struct {
		name string
		body string
	}{
		{"bad json", `{`},
		{"bad side", `{"price": 100, "qty": 10, "side": "Hold"}`},
		{"zero qty", `{"price": 100, "qty": 0, "side": "Buy"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			h.PlaceOrder(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestPlaceOrderGatewayError(t *testing.T) {
	svc := &orderServiceStub{
		submitErr: fmt.Errorf("%w: price out of range", domain.ErrGateway),
	}
	h := NewOrderHandler(svc, discardLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/orders",
		strings.NewReader(`{"price": 100, "qty": 10, "side": "Buy"}`))
	rec := httptest.NewRecorder()
	h.PlaceOrder(rec, req)

	require.Equal(t, http.StatusBadGateway, rec.Code)
	body := decodeBody(t, rec)
	assert.Contains(t, body["error"], "price out of range")
}

func TestClosePosition(t *testing.T) {
	svc := &orderServiceStub{closeRes: domain.CancelResult{FilledQty: 3, AveragePrice: 99.5}}
	h := NewOrderHandler(svc, discardLogger())

	mux := http.NewServeMux()
	mux.HandleFunc("DELETE /api/orders/{id}", h.ClosePosition)

	req := httptest.NewRequest(http.MethodDelete, "/api/orders/42", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(42), svc.closedID)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(3), body["filled_qty"])
	assert.Equal(t, 99.5, body["average_price"])
}

func TestClosePositionBadID(t *testing.T) {
	h := NewOrderHandler(&orderServiceStub{}, discardLogger())

	mux := http.NewServeMux()
	mux.HandleFunc("DELETE /api/orders/{id}", h.ClosePosition)

	req := httptest.NewRequest(http.MethodDelete, "/api/orders/abc", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClosePositionFailedCancel(t *testing.T) {
	svc := &orderServiceStub{closeErr: errors.New("ledger: close position 42: order not found")}
	h := NewOrderHandler(svc, discardLogger())

	mux := http.NewServeMux()
	mux.HandleFunc("DELETE /api/orders/{id}", h.ClosePosition)

	req := httptest.NewRequest(http.MethodDelete, "/api/orders/42", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestListPositionsAndTrades(t *testing.T) {
	l := ledger.New(nopGateway{}, discardLogger())
	id := int64(5)
	l.RecordResult(domain.FillResult{
		OrderID:      &id,
		Fills:        []domain.Fill{{Price: 100, Quantity: 2}},
		FilledQty:    2,
		RemainingQty: 3,
	}, 100, domain.SideBuy)

	h := NewLedgerHandler(l)

	rec := httptest.NewRecorder()
	h.ListPositions(rec, httptest.NewRequest(http.MethodGet, "/api/positions", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	positions := decodeBody(t, rec)["positions"].([]any)
	require.Len(t, positions, 1)
	p := positions[0].(map[string]any)
	assert.Equal(t, float64(5), p["order_id"])
	assert.Equal(t, float64(5), p["original_qty"])

	rec = httptest.NewRecorder()
	h.ListTrades(rec, httptest.NewRequest(http.MethodGet, "/api/trades", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	trades := decodeBody(t, rec)["trades"].([]any)
	require.Len(t, trades, 1)
}

func TestListTradesLimit(t *testing.T) {
	l := ledger.New(nopGateway{}, discardLogger())
	for i := 0; i < 30; i++ {
		l.RecordResult(domain.FillResult{
			Fills:     []domain.Fill{{Price: float64(i), Quantity: 1}},
			FilledQty: 1,
		}, float64(i), domain.SideBuy)
	}

	h := NewLedgerHandler(l)

	rec := httptest.NewRecorder()
	h.ListTrades(rec, httptest.NewRequest(http.MethodGet, "/api/trades?limit=10", nil))
	trades := decodeBody(t, rec)["trades"].([]any)
	assert.Len(t, trades, 10)

	// Newest first.
	first := trades[0].(map[string]any)
	assert.Equal(t, float64(29), first["price"])
}

func newStoppedBot() *bot.Engine {
	return bot.NewEngine(nopGateway{}, bot.Config{
		MinPrice: 90, MaxPrice: 110, MinQty: 1, MaxQty: 20,
		Interval: time.Hour, SubmitterID: 100,
	}, nil, discardLogger())
}

func TestBotStatus(t *testing.T) {
	h := NewBotHandler(newStoppedBot())

	rec := httptest.NewRecorder()
	h.Status(rec, httptest.NewRequest(http.MethodGet, "/api/bot", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["running"])
	assert.Equal(t, float64(0), body["order_count"])
	cfg := body["config"].(map[string]any)
	assert.Equal(t, 90.0, cfg["min_price"])
	assert.Equal(t, float64(3600000), cfg["interval_ms"])
}

func TestBotStartStopReset(t *testing.T) {
	engine := newStoppedBot()
	h := NewBotHandler(engine)

	rec := httptest.NewRecorder()
	h.Start(rec, httptest.NewRequest(http.MethodPost, "/api/bot/start", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, engine.Running())

	rec = httptest.NewRecorder()
	h.Stop(rec, httptest.NewRequest(http.MethodPost, "/api/bot/stop", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, engine.Running())

	// Let the submission fired at Start drain before zeroing the counter.
	time.Sleep(50 * time.Millisecond)

	rec = httptest.NewRecorder()
	h.Reset(rec, httptest.NewRequest(http.MethodPost, "/api/bot/reset", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(0), engine.OrderCount())
}

// countingGateway tallies submissions; a generation loop tied to a dead
// request context shows up here as a counter stuck at one.
type countingGateway struct {
	mu    sync.Mutex
	count int
}

func (g *countingGateway) Submit(context.Context, domain.Order) (domain.FillResult, error) {
	g.mu.Lock()
	g.count++
	g.mu.Unlock()
	return domain.FillResult{}, nil
}
func (g *countingGateway) Cancel(context.Context, int64) (domain.CancelResult, error) {
	return domain.CancelResult{}, nil
}
func (g *countingGateway) GetDepth(context.Context) (domain.DepthSnapshot, error) {
	return domain.DepthSnapshot{}, nil
}

func (g *countingGateway) submissions() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.count
}

func TestBotStartOutlivesRequest(t *testing.T) {
	gw := &countingGateway{}
	engine := bot.NewEngine(gw, bot.Config{
		MinPrice: 90, MaxPrice: 110, MinQty: 1, MaxQty: 20,
		Interval: 20 * time.Millisecond, SubmitterID: 100,
	}, nil, discardLogger())
	defer engine.Stop()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/bot/start", NewBotHandler(engine).Start)
	server := httptest.NewServer(mux)
	defer server.Close()

	// A real served request, so its context is cancelled as soon as the
	// handler returns. Generation must keep going regardless.
	resp, err := http.Post(server.URL+"/api/bot/start", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Eventually(t, func() bool { return gw.submissions() >= 3 },
		2*time.Second, 10*time.Millisecond)
	assert.True(t, engine.Running())
}

func TestBotUpdateConfig(t *testing.T) {
	engine := newStoppedBot()
	h := NewBotHandler(engine)

	req := httptest.NewRequest(http.MethodPut, "/api/bot/config",
		strings.NewReader(`{"min_price": 50, "max_price": 150, "min_qty": 2, "max_qty": 10, "interval_ms": 500}`))
	rec := httptest.NewRecorder()
	h.UpdateConfig(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	cfg := engine.Config()
	assert.Equal(t, 50.0, cfg.MinPrice)
	assert.Equal(t, 500*time.Millisecond, cfg.Interval)
	// SubmitterID is not part of the wire config and must survive updates.
	assert.Equal(t, int64(100), cfg.SubmitterID)
}

func TestBotUpdateConfigWhileRunning(t *testing.T) {
	engine := newStoppedBot()
	engine.Start()
	defer engine.Stop()

	h := NewBotHandler(engine)

	req := httptest.NewRequest(http.MethodPut, "/api/bot/config",
		strings.NewReader(`{"min_price": 50, "max_price": 150, "min_qty": 2, "max_qty": 10, "interval_ms": 500}`))
	rec := httptest.NewRecorder()
	h.UpdateConfig(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestBotUpdateConfigInvalid(t *testing.T) {
	h := NewBotHandler(newStoppedBot())

	req := httptest.NewRequest(http.MethodPut, "/api/bot/config",
		strings.NewReader(`{"min_price": 150, "max_price": 50, "min_qty": 1, "max_qty": 10, "interval_ms": 500}`))
	rec := httptest.NewRecorder()
	h.UpdateConfig(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

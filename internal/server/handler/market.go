package handler

import (
	"net/http"

	"tradedesk/internal/book"
	"tradedesk/internal/candle"
	"tradedesk/internal/domain"
)

// MarketHandler serves derived market-data views: the cumulative depth view
// and the candle series.
type MarketHandler struct {
	store   *book.Store
	candles *candle.Aggregator
	feed    FeedStatus
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(store *book.Store, candles *candle.Aggregator, feed FeedStatus) *MarketHandler {
	return &MarketHandler{
		store:   store,
		candles: candles,
		feed:    feed,
	}
}

// depthLevelJSON is one row of the cumulative depth view on the wire.
type depthLevelJSON struct {
	Price float64 `json:"price"`
	Qty   int64   `json:"qty"`
	Total int64   `json:"total"`
}

func toDepthLevelsJSON(levels []domain.DepthLevel) []depthLevelJSON {
	out := make([]depthLevelJSON, 0, len(levels))
	for _, lvl := range levels {
		out = append(out, depthLevelJSON{Price: lvl.Price, Qty: lvl.Quantity, Total: lvl.Total})
	}
	return out
}

// depthResponse is the /api/depth payload.
type depthResponse struct {
	Bids      []depthLevelJSON `json:"bids"`
	Asks      []depthLevelJSON `json:"asks"`
	BestBid   *float64         `json:"best_bid"`
	BestAsk   *float64         `json:"best_ask"`
	Spread    *float64         `json:"spread"`
	Mid       *float64         `json:"mid"`
	Sequence  int64            `json:"sequence"`
	Connected bool             `json:"connected"`
}

// GetDepth returns the cumulative depth-of-market view with derived best
// prices. Absent sides yield null best/spread/mid fields.
// GET /api/depth
func (h *MarketHandler) GetDepth(w http.ResponseWriter, r *http.Request) {
	resp := depthResponse{
		Bids:      toDepthLevelsJSON(h.store.CumulativeBids()),
		Asks:      toDepthLevelsJSON(h.store.CumulativeAsks()),
		Connected: h.feed.Connected(),
	}
	if snap, ok := h.store.Snapshot(); ok {
		resp.Sequence = snap.Sequence
	}
	if bid, ok := h.store.BestBid(); ok {
		resp.BestBid = &bid
	}
	if ask, ok := h.store.BestAsk(); ok {
		resp.BestAsk = &ask
	}
	if spread, ok := h.store.Spread(); ok {
		resp.Spread = &spread
	}
	if mid, ok := h.store.Mid(); ok {
		resp.Mid = &mid
	}

	writeJSON(w, http.StatusOK, resp)
}

// candleJSON is one candle in the /api/candles payload.
type candleJSON struct {
	Time  int64   `json:"time"`
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

// GetCandles returns the closed candle history followed by the current
// candle.
// GET /api/candles
func (h *MarketHandler) GetCandles(w http.ResponseWriter, r *http.Request) {
	all := h.candles.All()
	out := make([]candleJSON, 0, len(all))
	for _, c := range all {
		out = append(out, candleJSON{
			Time:  c.BucketStart.UnixMilli(),
			Open:  c.Open,
			High:  c.High,
			Low:   c.Low,
			Close: c.Close,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"interval_ms": h.candles.Interval().Milliseconds(),
		"candles":     out,
	})
}

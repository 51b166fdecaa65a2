package exchange

import (
	"fmt"
	"strconv"
	"time"

	"tradedesk/internal/domain"
)

// DepthMessage is the wire shape of the order book, both in the REST /depth
// response and inside the push envelope. Levels are [price, quantity] pairs
// and lastUpdateId is the backend's monotonic counter, encoded as a string.
type DepthMessage struct {
	Bids         [][2]int64 `json:"bids"`
	Asks         [][2]int64 `json:"asks"`
	LastUpdateID string     `json:"lastUpdateId"`
}

// PushEnvelope is the outer frame of every feed message. Data stays raw until
// the type is recognized.
type PushEnvelope struct {
	Type string       `json:"type"`
	Data DepthMessage `json:"data"`
}

// OrderRequest is the POST /order payload.
type OrderRequest struct {
	Price  float64 `json:"price"`
	Qty    int64   `json:"qty"`
	UserID int64   `json:"user_id"`
	Side   string  `json:"side"`
}

// FillMessage is one fill inside a FillResponse.
type FillMessage struct {
	Price        float64 `json:"price"`
	Qty          int64   `json:"qty"`
	MakerOrderID int64   `json:"maker_order_id"`
}

// FillResponse is the POST /order response. OrderID is null when the order
// filled completely.
type FillResponse struct {
	OrderID      *int64        `json:"order_id"`
	Fills        []FillMessage `json:"fills"`
	FilledQty    int64         `json:"filled_qty"`
	RemainingQty int64         `json:"remaining_qty"`
}

// CancelRequest is the DELETE /order payload.
type CancelRequest struct {
	OrderID string `json:"order_id"`
}

// CancelResponse is the DELETE /order response.
type CancelResponse struct {
	FilledQty    int64   `json:"filled_qty"`
	AveragePrice float64 `json:"average_price"`
}

// APIError is the backend's error payload on non-success responses.
type APIError struct {
	Error string `json:"error"`
}

// ToDomainSnapshot converts a wire depth message into a domain snapshot.
// It fails only when the sequence counter is unparseable.
func (m *DepthMessage) ToDomainSnapshot(now time.Time) (domain.DepthSnapshot, error) {
	seq, err := strconv.ParseInt(m.LastUpdateID, 10, 64)
	if err != nil {
		return domain.DepthSnapshot{}, fmt.Errorf("exchange: parse lastUpdateId %q: %w", m.LastUpdateID, err)
	}

	snap := domain.DepthSnapshot{
		Bids:      make([]domain.PriceLevel, 0, len(m.Bids)),
		Asks:      make([]domain.PriceLevel, 0, len(m.Asks)),
		Sequence:  seq,
		Timestamp: now,
	}
	for _, lvl := range m.Bids {
		snap.Bids = append(snap.Bids, domain.PriceLevel{Price: float64(lvl[0]), Quantity: lvl[1]})
	}
	for _, lvl := range m.Asks {
		snap.Asks = append(snap.Asks, domain.PriceLevel{Price: float64(lvl[0]), Quantity: lvl[1]})
	}
	return snap, nil
}

// ToDomainFillResult converts a wire fill response into a domain result.
func (r *FillResponse) ToDomainFillResult() domain.FillResult {
	res := domain.FillResult{
		OrderID:      r.OrderID,
		Fills:        make([]domain.Fill, 0, len(r.Fills)),
		FilledQty:    r.FilledQty,
		RemainingQty: r.RemainingQty,
	}
	for _, f := range r.Fills {
		res.Fills = append(res.Fills, domain.Fill{
			Price:        f.Price,
			Quantity:     f.Qty,
			MakerOrderID: f.MakerOrderID,
		})
	}
	return res
}

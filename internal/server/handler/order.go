package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"tradedesk/internal/domain"
)

// OrderService defines what the order handler needs from the write path.
type OrderService interface {
	Submit(ctx context.Context, order domain.Order) (domain.FillResult, error)
	ClosePosition(ctx context.Context, orderID int64) (domain.CancelResult, error)
}

// OrderHandler serves order submission and position closing.
type OrderHandler struct {
	orders OrderService
	logger *slog.Logger
}

// NewOrderHandler creates an OrderHandler.
func NewOrderHandler(orders OrderService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{
		orders: orders,
		logger: logger,
	}
}

// placeOrderRequest is the POST /api/orders body.
type placeOrderRequest struct {
	Price       float64 `json:"price"`
	Quantity    int64   `json:"qty"`
	Side        string  `json:"side"`
	SubmitterID int64   `json:"submitter_id"`
}

// fillJSON mirrors domain.Fill for responses.
type fillJSON struct {
	Price        float64 `json:"price"`
	Qty          int64   `json:"qty"`
	MakerOrderID int64   `json:"maker_order_id"`
}

// fillResultJSON mirrors domain.FillResult for responses.
type fillResultJSON struct {
	OrderID      *int64     `json:"order_id"`
	Fills        []fillJSON `json:"fills"`
	FilledQty    int64      `json:"filled_qty"`
	RemainingQty int64      `json:"remaining_qty"`
}

func toFillResultJSON(res domain.FillResult) fillResultJSON {
	out := fillResultJSON{
		OrderID:      res.OrderID,
		Fills:        make([]fillJSON, 0, len(res.Fills)),
		FilledQty:    res.FilledQty,
		RemainingQty: res.RemainingQty,
	}
	for _, f := range res.Fills {
		out.Fills = append(out.Fills, fillJSON{
			Price:        f.Price,
			Qty:          f.Quantity,
			MakerOrderID: f.MakerOrderID,
		})
	}
	return out
}

// PlaceOrder submits a human order through the gateway. Gateway failures are
// surfaced with the backend's message so the UI can show it inline.
// POST /api/orders
func (h *OrderHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	side := domain.Side(req.Side)
	if !side.Valid() {
		writeError(w, http.StatusBadRequest, "side must be Buy or Sell")
		return
	}
	if req.Quantity <= 0 {
		writeError(w, http.StatusBadRequest, "qty must be positive")
		return
	}

	result, err := h.orders.Submit(r.Context(), domain.Order{
		Price:       req.Price,
		Quantity:    req.Quantity,
		Side:        side,
		SubmitterID: req.SubmitterID,
	})
	if err != nil {
		h.logger.WarnContext(r.Context(), "handler: place order failed",
			slog.String("error", err.Error()),
		)
		if errors.Is(err, domain.ErrGateway) {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, toFillResultJSON(result))
}

// ClosePosition cancels the resting order behind a position. A failed cancel
// leaves the position untouched.
// DELETE /api/orders/{id}
func (h *OrderHandler) ClosePosition(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	result, err := h.orders.ClosePosition(r.Context(), orderID)
	if err != nil {
		h.logger.WarnContext(r.Context(), "handler: close position failed",
			slog.Int64("order_id", orderID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"filled_qty":    result.FilledQty,
		"average_price": result.AveragePrice,
	})
}

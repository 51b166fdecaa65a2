package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"tradedesk/internal/domain"
	"tradedesk/internal/ledger"
)

// OrderService is the write path shared by the human submission flow and the
// bot: it submits through the gateway, folds results into the ledger,
// publishes ledger events, and best-effort persists the tape.
type OrderService struct {
	gateway domain.OrderGateway
	ledger  *ledger.Ledger
	trades  domain.TradeStore // nil when persistence is disabled
	bus     domain.SignalBus
	logger  *slog.Logger
}

// NewOrderService creates an OrderService. trades may be nil.
func NewOrderService(
	gateway domain.OrderGateway,
	ledger *ledger.Ledger,
	trades domain.TradeStore,
	bus domain.SignalBus,
	logger *slog.Logger,
) *OrderService {
	return &OrderService{
		gateway: gateway,
		ledger:  ledger,
		trades:  trades,
		bus:     bus,
		logger:  logger.With(slog.String("component", "order_service")),
	}
}

// Submit validates and submits one order, then records its result. The
// gateway error is returned verbatim for the caller to surface; no retry
// happens here.
func (s *OrderService) Submit(ctx context.Context, order domain.Order) (domain.FillResult, error) {
	if !order.Side.Valid() {
		return domain.FillResult{}, fmt.Errorf("order_service: unknown side %q", order.Side)
	}
	if order.Quantity <= 0 {
		return domain.FillResult{}, fmt.Errorf("order_service: quantity must be positive, got %d", order.Quantity)
	}

	reqID := uuid.NewString()
	result, err := s.gateway.Submit(ctx, order)
	if err != nil {
		s.logger.WarnContext(ctx, "order submission failed",
			slog.String("request_id", reqID),
			slog.Float64("price", order.Price),
			slog.Int64("qty", order.Quantity),
			slog.String("side", string(order.Side)),
			slog.String("error", err.Error()),
		)
		return domain.FillResult{}, err
	}

	s.logger.InfoContext(ctx, "order submitted",
		slog.String("request_id", reqID),
		slog.Float64("price", order.Price),
		slog.Int64("qty", order.Quantity),
		slog.String("side", string(order.Side)),
		slog.Int64("filled", result.FilledQty),
		slog.Int64("remaining", result.RemainingQty),
	)

	s.Record(ctx, result, order.Price, order.Side)
	return result, nil
}

// Record folds an already-obtained fill result into the ledger and fans the
// outcome out to the bus and the audit store. The bot's result callback lands
// here, including results that complete after the bot stops.
func (s *OrderService) Record(ctx context.Context, result domain.FillResult, price float64, side domain.Side) {
	s.ledger.RecordResult(result, price, side)

	now := time.Now()
	for _, fill := range result.Fills {
		entry := domain.TradeEntry{
			Price:     fill.Price,
			Quantity:  fill.Quantity,
			Side:      side,
			Timestamp: now,
		}
		if s.trades != nil {
			if err := s.trades.Insert(ctx, entry); err != nil {
				s.logger.Warn("trade persistence failed", slog.String("error", err.Error()))
			}
		}
		evt, _ := json.Marshal(map[string]any{
			"event":     "trade",
			"price":     entry.Price,
			"qty":       entry.Quantity,
			"side":      string(side),
			"timestamp": now.Format(time.RFC3339Nano),
		})
		if err := s.bus.Publish(ctx, "trades", evt); err != nil {
			s.logger.Warn("publish trade failed", slog.String("error", err.Error()))
		}
	}

	if result.OrderID != nil && result.RemainingQty > 0 {
		evt, _ := json.Marshal(map[string]any{
			"event":     "position_opened",
			"order_id":  *result.OrderID,
			"side":      string(side),
			"price":     price,
			"remaining": result.RemainingQty,
		})
		if err := s.bus.Publish(ctx, "positions", evt); err != nil {
			s.logger.Warn("publish position failed", slog.String("error", err.Error()))
		}
	}
}

// ClosePosition cancels the resting order behind a position. The position
// survives a failed cancel.
func (s *OrderService) ClosePosition(ctx context.Context, orderID int64) (domain.CancelResult, error) {
	result, err := s.ledger.ClosePosition(ctx, orderID)
	if err != nil {
		return domain.CancelResult{}, err
	}

	evt, _ := json.Marshal(map[string]any{
		"event":      "position_closed",
		"order_id":   orderID,
		"filled_qty": result.FilledQty,
		"avg_price":  result.AveragePrice,
	})
	if err := s.bus.Publish(ctx, "positions", evt); err != nil {
		s.logger.Warn("publish position failed", slog.String("error", err.Error()))
	}
	return result, nil
}

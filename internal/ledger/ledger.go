// Package ledger reconciles order-submission results into a trade tape and a
// list of resting positions.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tradedesk/internal/domain"
)

// maxTapeEntries caps the in-memory trade tape; the oldest entries are
// evicted first.
const maxTapeEntries = 100

// Ledger is a pure sink for fill results plus the side-channel metadata
// (price, side) the caller supplies. It has no view of live depth or the bot;
// both the human and bot order paths feed it.
type Ledger struct {
	gateway domain.OrderGateway
	logger  *slog.Logger

	mu        sync.Mutex
	tape      []domain.TradeEntry
	positions []domain.Position
	now       func() time.Time
}

// New creates an empty Ledger. The gateway is used only by ClosePosition.
func New(gateway domain.OrderGateway, logger *slog.Logger) *Ledger {
	return &Ledger{
		gateway: gateway,
		logger:  logger.With(slog.String("component", "ledger")),
		now:     time.Now,
	}
}

// RecordResult folds one submission result into the tape and position list.
// Each fill becomes a tape entry; a resting remainder becomes an open
// position sized at the originally submitted quantity.
func (l *Ledger) RecordResult(result domain.FillResult, price float64, side domain.Side) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for _, fill := range result.Fills {
		l.tape = append([]domain.TradeEntry{{
			Price:     fill.Price,
			Quantity:  fill.Quantity,
			Side:      side,
			Timestamp: now,
		}}, l.tape...)
	}
	if len(l.tape) > maxTapeEntries {
		l.tape = l.tape[:maxTapeEntries]
	}

	if result.OrderID != nil && result.RemainingQty > 0 {
		l.positions = append([]domain.Position{{
			OrderID:      *result.OrderID,
			Side:         side,
			Price:        price,
			OriginalQty:  result.FilledQty + result.RemainingQty,
			FilledQty:    result.FilledQty,
			RemainingQty: result.RemainingQty,
			CreatedAt:    now,
		}}, l.positions...)
	}
}

// ClosePosition cancels the resting order behind a position and removes the
// position only when the cancel succeeds. A failed cancel leaves the position
// intact and returns the gateway's error.
func (l *Ledger) ClosePosition(ctx context.Context, orderID int64) (domain.CancelResult, error) {
	res, err := l.gateway.Cancel(ctx, orderID)
	if err != nil {
		l.logger.WarnContext(ctx, "close position failed",
			slog.Int64("order_id", orderID),
			slog.String("error", err.Error()),
		)
		return domain.CancelResult{}, fmt.Errorf("ledger: close position %d: %w", orderID, err)
	}

	l.mu.Lock()
	for i, p := range l.positions {
		if p.OrderID == orderID {
			l.positions = append(l.positions[:i], l.positions[i+1:]...)
			break
		}
	}
	l.mu.Unlock()

	return res, nil
}

// Positions returns a copy of the open positions, newest first.
func (l *Ledger) Positions() []domain.Position {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.Position, len(l.positions))
	copy(out, l.positions)
	return out
}

// Trades returns a copy of the trade tape, newest first.
func (l *Ledger) Trades() []domain.TradeEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.TradeEntry, len(l.tape))
	copy(out, l.tape)
	return out
}

// Reset clears the tape and position list.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tape = nil
	l.positions = nil
}

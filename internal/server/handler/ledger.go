package handler

import (
	"net/http"

	"tradedesk/internal/ledger"
)

// LedgerHandler serves the trade tape and open position list.
type LedgerHandler struct {
	ledger *ledger.Ledger
}

// NewLedgerHandler creates a LedgerHandler.
func NewLedgerHandler(l *ledger.Ledger) *LedgerHandler {
	return &LedgerHandler{ledger: l}
}

// ListPositions returns the open positions, newest first.
// GET /api/positions
func (h *LedgerHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	positions := h.ledger.Positions()
	out := make([]map[string]any, 0, len(positions))
	for _, p := range positions {
		out = append(out, map[string]any{
			"order_id":      p.OrderID,
			"side":          string(p.Side),
			"price":         p.Price,
			"original_qty":  p.OriginalQty,
			"filled_qty":    p.FilledQty,
			"remaining_qty": p.RemainingQty,
			"created_at":    p.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"positions": out})
}

// ListTrades returns the most recent trade-tape entries, newest first.
// GET /api/trades?limit=50
func (h *LedgerHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 50, 100)

	trades := h.ledger.Trades()
	if len(trades) > limit {
		trades = trades[:limit]
	}
	out := make([]map[string]any, 0, len(trades))
	for _, t := range trades {
		out = append(out, map[string]any{
			"price":     t.Price,
			"qty":       t.Quantity,
			"side":      string(t.Side),
			"timestamp": t.Timestamp,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"trades": out})
}

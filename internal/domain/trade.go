package domain

import "time"

// TradeEntry is one row of the trade tape, derived from a single fill.
type TradeEntry struct {
	Price     float64
	Quantity  int64
	Side      Side
	Timestamp time.Time
}

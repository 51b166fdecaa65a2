package domain

import "time"

// Position is a resting order tracked by the ledger: created when a submission
// leaves a remainder on the book, removed when a cancel succeeds.
type Position struct {
	OrderID      int64
	Side         Side
	Price        float64
	OriginalQty  int64
	FilledQty    int64
	RemainingQty int64
	CreatedAt    time.Time
}

package domain

import "time"

// PriceLevel is a single price+quantity entry on one side of the book.
type PriceLevel struct {
	Price    float64
	Quantity int64
}

// DepthSnapshot is a full snapshot of the order book as delivered by the
// exchange. Bids are conventionally sorted descending by price and asks
// ascending, but consumers must not rely on ordering for correctness.
type DepthSnapshot struct {
	Bids      []PriceLevel
	Asks      []PriceLevel
	Sequence  int64
	Timestamp time.Time
}

// DepthLevel is one row of a cumulative depth-of-market view: the level's own
// quantity plus the running total of quantities from the best price out to and
// including this level.
type DepthLevel struct {
	Price    float64
	Quantity int64
	Total    int64
}

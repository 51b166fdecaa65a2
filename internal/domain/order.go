package domain

// Side indicates whether an order buys or sells.
type Side string

const (
	SideBuy  Side = "Buy"
	SideSell Side = "Sell"
)

// Valid reports whether s is one of the two recognized sides.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Order is an outbound order intent submitted to the exchange.
type Order struct {
	Price       float64
	Quantity    int64
	Side        Side
	SubmitterID int64
}

// Fill is one matched quantity between a submitted order and a resting
// counterparty order.
type Fill struct {
	Price        float64
	Quantity     int64
	MakerOrderID int64
}

// FillResult is the exchange's response to an order submission. OrderID is nil
// when the order filled completely and left no resting remainder. Invariant:
// FilledQty + RemainingQty equals the submitted quantity, and Fills is empty
// iff FilledQty is zero.
type FillResult struct {
	OrderID      *int64
	Fills        []Fill
	FilledQty    int64
	RemainingQty int64
}

// CancelResult is the exchange's response to an order cancellation.
type CancelResult struct {
	FilledQty    int64
	AveragePrice float64
}

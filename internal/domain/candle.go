package domain

import "time"

// Candle is one fixed-width OHLC bucket of mid-price movement. Invariant:
// Low <= Open, Close <= High at all times. Once a bucket closes it is
// immutable.
type Candle struct {
	BucketStart time.Time
	Open        float64
	High        float64
	Low         float64
	Close       float64
}

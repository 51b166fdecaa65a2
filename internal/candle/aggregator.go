// Package candle buckets a stream of mid-price samples into fixed-width OHLC
// candles with a bounded history.
package candle

import (
	"sync"
	"time"

	"tradedesk/internal/domain"
)

// DefaultMaxHistory caps the number of closed candles retained.
const DefaultMaxHistory = 500

// Aggregator converts mid-price samples into candles. Exactly one mutable
// current candle exists at a time; when a sample lands in a new bucket the
// current candle is closed, appended to history, and never touched again.
// Eviction is FIFO since append order is chronological.
type Aggregator struct {
	mu         sync.Mutex
	interval   time.Duration
	maxHistory int
	current    *domain.Candle
	history    []domain.Candle
}

// NewAggregator creates an Aggregator with the given bucket width and history
// cap. A non-positive cap falls back to DefaultMaxHistory.
func NewAggregator(interval time.Duration, maxHistory int) *Aggregator {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	return &Aggregator{
		interval:   interval,
		maxHistory: maxHistory,
	}
}

// Record folds one mid-price sample into the candle for now's bucket. The
// result depends only on the samples and their buckets, not on call
// frequency.
func (a *Aggregator) Record(price float64, now time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()

	bucket := now.Truncate(a.interval)

	if a.current == nil || !a.current.BucketStart.Equal(bucket) {
		if a.current != nil {
			a.history = append(a.history, *a.current)
			if len(a.history) > a.maxHistory {
				a.history = a.history[len(a.history)-a.maxHistory:]
			}
		}
		a.current = &domain.Candle{
			BucketStart: bucket,
			Open:        price,
			High:        price,
			Low:         price,
			Close:       price,
		}
		return
	}

	if price > a.current.High {
		a.current.High = price
	}
	if price < a.current.Low {
		a.current.Low = price
	}
	a.current.Close = price
}

// Current returns a copy of the mutable current candle.
func (a *Aggregator) Current() (domain.Candle, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current == nil {
		return domain.Candle{}, false
	}
	return *a.current, true
}

// History returns a copy of the closed candles, oldest first.
func (a *Aggregator) History() []domain.Candle {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]domain.Candle, len(a.history))
	copy(out, a.history)
	return out
}

// All returns the closed history followed by the current candle, if any.
func (a *Aggregator) All() []domain.Candle {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]domain.Candle, 0, len(a.history)+1)
	out = append(out, a.history...)
	if a.current != nil {
		out = append(out, *a.current)
	}
	return out
}

// Interval returns the configured bucket width.
func (a *Aggregator) Interval() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.interval
}

// SetInterval changes the bucket width. Changing width mid-stream would mix
// bucket boundaries, so accumulated state is discarded first.
func (a *Aggregator) SetInterval(interval time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if interval == a.interval {
		return
	}
	a.interval = interval
	a.current = nil
	a.history = nil
}

// Reset discards the current candle and all history.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.current = nil
	a.history = nil
}

// Package book holds the latest depth snapshot and derives best-price,
// spread, and cumulative depth-of-market views from it.
package book

import (
	"sort"
	"sync"

	"tradedesk/internal/domain"
)

// Store owns the current depth snapshot. Snapshots are replaced wholesale,
// never mutated in place, so a consumer holding a previous snapshot stays
// valid. A snapshot whose sequence is not strictly greater than the stored
// one is discarded, which makes out-of-order and duplicate delivery harmless.
type Store struct {
	mu   sync.RWMutex
	snap domain.DepthSnapshot
	held bool
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{}
}

// Apply replaces the current snapshot if snap carries a strictly greater
// sequence. It reports whether the snapshot was accepted.
func (s *Store) Apply(snap domain.DepthSnapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.held && snap.Sequence <= s.snap.Sequence {
		return false
	}
	s.snap = snap
	s.held = true
	return true
}

// Snapshot returns the current snapshot and whether one has been applied yet.
func (s *Store) Snapshot() (domain.DepthSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap, s.held
}

// BestBid returns the highest bid price. Ordering of the input is not
// assumed; the best price is found by scan.
func (s *Store) BestBid() (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return bestPrice(s.snap.Bids, func(p, best float64) bool { return p > best })
}

// BestAsk returns the lowest ask price.
func (s *Store) BestAsk() (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return bestPrice(s.snap.Asks, func(p, best float64) bool { return p < best })
}

// Spread returns bestAsk - bestBid when both sides are non-empty.
func (s *Store) Spread() (float64, bool) {
	bid, okBid := s.BestBid()
	ask, okAsk := s.BestAsk()
	if !okBid || !okAsk {
		return 0, false
	}
	return ask - bid, true
}

// Mid returns the mid price (bestBid+bestAsk)/2 when both sides are
// non-empty.
func (s *Store) Mid() (float64, bool) {
	bid, okBid := s.BestBid()
	ask, okAsk := s.BestAsk()
	if !okBid || !okAsk {
		return 0, false
	}
	return (bid + ask) / 2, true
}

// CumulativeBids returns the bid side sorted descending by price with each
// level's running total of quantities from the best bid down to that level.
func (s *Store) CumulativeBids() []domain.DepthLevel {
	s.mu.RLock()
	levels := append([]domain.PriceLevel(nil), s.snap.Bids...)
	s.mu.RUnlock()

	sort.Slice(levels, func(i, j int) bool { return levels[i].Price > levels[j].Price })
	return accumulate(levels)
}

// CumulativeAsks returns the ask side sorted ascending by price with each
// level's running total of quantities from the best ask up to that level.
func (s *Store) CumulativeAsks() []domain.DepthLevel {
	s.mu.RLock()
	levels := append([]domain.PriceLevel(nil), s.snap.Asks...)
	s.mu.RUnlock()

	sort.Slice(levels, func(i, j int) bool { return levels[i].Price < levels[j].Price })
	return accumulate(levels)
}

func bestPrice(levels []domain.PriceLevel, better func(p, best float64) bool) (float64, bool) {
	if len(levels) == 0 {
		return 0, false
	}
	best := levels[0].Price
	for _, lvl := range levels[1:] {
		if better(lvl.Price, best) {
			best = lvl.Price
		}
	}
	return best, true
}

func accumulate(levels []domain.PriceLevel) []domain.DepthLevel {
	out := make([]domain.DepthLevel, 0, len(levels))
	var total int64
	for _, lvl := range levels {
		total += lvl.Quantity
		out = append(out, domain.DepthLevel{
			Price:    lvl.Price,
			Quantity: lvl.Quantity,
			Total:    total,
		})
	}
	return out
}

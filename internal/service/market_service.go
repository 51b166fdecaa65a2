// Package service wires the feed-driven read path and the order-submission
// write path to the domain state holders.
package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"tradedesk/internal/book"
	"tradedesk/internal/candle"
	"tradedesk/internal/domain"
)

// MarketService is the feed-driven read path: every accepted snapshot updates
// the book store, feeds the candle aggregator, refreshes the depth mirror,
// and is announced on the signal bus.
type MarketService struct {
	store   *book.Store
	candles *candle.Aggregator
	gateway domain.OrderGateway
	cache   domain.DepthCache // nil when the mirror is disabled
	bus     domain.SignalBus
	logger  *slog.Logger
}

// NewMarketService creates a MarketService. cache may be nil.
func NewMarketService(
	store *book.Store,
	candles *candle.Aggregator,
	gateway domain.OrderGateway,
	cache domain.DepthCache,
	bus domain.SignalBus,
	logger *slog.Logger,
) *MarketService {
	return &MarketService{
		store:   store,
		candles: candles,
		gateway: gateway,
		cache:   cache,
		bus:     bus,
		logger:  logger.With(slog.String("component", "market_service")),
	}
}

// Prime performs the one-time initial depth poll so the UI has a book before
// the live feed delivers its first message. A poll response that arrives
// after a fresher feed snapshot is discarded by the store's sequence guard.
func (s *MarketService) Prime(ctx context.Context) {
	snap, err := s.gateway.GetDepth(ctx)
	if err != nil {
		s.logger.Warn("initial depth poll failed", slog.String("error", err.Error()))
		return
	}
	s.HandleSnapshot(ctx, snap)
}

// HandleSnapshot is the feed callback. Stale snapshots are dropped silently;
// reordering and duplicates are expected under network delivery.
func (s *MarketService) HandleSnapshot(ctx context.Context, snap domain.DepthSnapshot) {
	if !s.store.Apply(snap) {
		s.logger.Debug("dropping stale snapshot", slog.Int64("sequence", snap.Sequence))
		return
	}

	if mid, ok := s.store.Mid(); ok {
		s.candles.Record(mid, snap.Timestamp)
	}

	if s.cache != nil {
		if err := s.cache.SetSnapshot(ctx, snap); err != nil {
			s.logger.Warn("depth mirror update failed", slog.String("error", err.Error()))
		}
	}

	s.publishDepth(ctx, snap)
	s.publishCandle(ctx)
}

// HandleStatus is the feed status callback; it announces connect/disconnect
// transitions on the bus for the UI's connection indicator.
func (s *MarketService) HandleStatus(ctx context.Context, connected bool) {
	evt, _ := json.Marshal(map[string]any{
		"event":     "feed_status",
		"connected": connected,
		"timestamp": time.Now().Format(time.RFC3339),
	})
	if err := s.bus.Publish(ctx, "status", evt); err != nil {
		s.logger.Warn("publish status failed", slog.String("error", err.Error()))
	}
}

// depthLevelEvent is one cumulative depth row in a bus event.
type depthLevelEvent struct {
	Price float64 `json:"price"`
	Qty   int64   `json:"qty"`
	Total int64   `json:"total"`
}

func toDepthLevelEvents(levels []domain.DepthLevel) []depthLevelEvent {
	out := make([]depthLevelEvent, 0, len(levels))
	for _, lvl := range levels {
		out = append(out, depthLevelEvent{Price: lvl.Price, Qty: lvl.Quantity, Total: lvl.Total})
	}
	return out
}

func (s *MarketService) publishDepth(ctx context.Context, snap domain.DepthSnapshot) {
	bid, _ := s.store.BestBid()
	ask, _ := s.store.BestAsk()
	mid, hasMid := s.store.Mid()
	spread, _ := s.store.Spread()

	evt, _ := json.Marshal(map[string]any{
		"event":     "depth",
		"sequence":  snap.Sequence,
		"best_bid":  bid,
		"best_ask":  ask,
		"mid":       mid,
		"has_mid":   hasMid,
		"spread":    spread,
		"bids":      toDepthLevelEvents(s.store.CumulativeBids()),
		"asks":      toDepthLevelEvents(s.store.CumulativeAsks()),
		"timestamp": snap.Timestamp.Format(time.RFC3339Nano),
	})
	if err := s.bus.Publish(ctx, "depth", evt); err != nil {
		s.logger.Warn("publish depth failed", slog.String("error", err.Error()))
	}
}

func (s *MarketService) publishCandle(ctx context.Context) {
	current, ok := s.candles.Current()
	if !ok {
		return
	}
	evt, _ := json.Marshal(map[string]any{
		"event":        "candle",
		"bucket_start": current.BucketStart.UnixMilli(),
		"open":         current.Open,
		"high":         current.High,
		"low":          current.Low,
		"close":        current.Close,
	})
	if err := s.bus.Publish(ctx, "candles", evt); err != nil {
		s.logger.Warn("publish candle failed", slog.String("error", err.Error()))
	}
}

package domain

import "context"

// OrderGateway is the request/response contract against the exchange backend.
// Implementations perform no retries; a non-success response surfaces as an
// error wrapping ErrGateway with the backend's message.
type OrderGateway interface {
	Submit(ctx context.Context, order Order) (FillResult, error)
	Cancel(ctx context.Context, orderID int64) (CancelResult, error)
	GetDepth(ctx context.Context) (DepthSnapshot, error)
}

// DepthCache mirrors the latest accepted depth snapshot for external
// consumers.
type DepthCache interface {
	SetSnapshot(ctx context.Context, snap DepthSnapshot) error
	GetSnapshot(ctx context.Context) (DepthSnapshot, error)
}

// SignalBus provides pub/sub fan-out of derived-state events (depth, candle,
// trade, position, bot) toward the presentation layer.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// TradeStore persists trade-tape entries for audit. Persistence is
// best-effort; the in-memory tape remains the source of truth for the UI.
type TradeStore interface {
	Insert(ctx context.Context, trade TradeEntry) error
	Recent(ctx context.Context, limit int) ([]TradeEntry, error)
}

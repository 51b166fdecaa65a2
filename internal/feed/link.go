// Package feed maintains the persistent depth feed connection and its
// reconnect policy.
package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"tradedesk/internal/domain"
	"tradedesk/internal/platform/exchange"
)

// DefaultReconnectDelay is the fixed pause between reconnect attempts. The
// delay never grows and attempts never cap out: the cost of a failed attempt
// is one handshake, so the simple policy holds up under sustained outages.
const DefaultReconnectDelay = 3 * time.Second

// SnapshotHandler is called for every depth snapshot the feed decodes.
type SnapshotHandler func(snap domain.DepthSnapshot)

// StatusHandler is called when the connected state flips.
type StatusHandler func(connected bool)

// Link owns one transport connection to the depth push endpoint. It
// reconnects automatically after a fixed delay whenever the transport drops;
// Disconnect is the only path that suppresses reconnection.
type Link struct {
	wsURL          string
	reconnectDelay time.Duration
	onSnap         SnapshotHandler
	onStatus       StatusHandler
	logger         *slog.Logger

	mu        sync.Mutex
	client    *exchange.WSClient
	reconnect *time.Timer
	connected bool
	stopped   bool
	gen       uint64
}

// NewLink creates a feed link. onStatus may be nil.
func NewLink(wsURL string, reconnectDelay time.Duration, onSnap SnapshotHandler, onStatus StatusHandler, logger *slog.Logger) *Link {
	if reconnectDelay <= 0 {
		reconnectDelay = DefaultReconnectDelay
	}
	return &Link{
		wsURL:          wsURL,
		reconnectDelay: reconnectDelay,
		onSnap:         onSnap,
		onStatus:       onStatus,
		logger:         logger.With(slog.String("component", "feed_link")),
		stopped:        true,
	}
}

// Connect establishes the transport and starts the read loop. A pending
// reconnect timer is cancelled first so only one connection attempt is ever
// in flight.
func (l *Link) Connect(ctx context.Context) {
	l.mu.Lock()
	l.stopped = false
	l.cancelTimerLocked()
	l.gen++
	l.mu.Unlock()

	l.dial(ctx)
}

// Disconnect cancels any pending reconnect timer and closes the active
// transport. The link stays down until Connect is called again.
func (l *Link) Disconnect() {
	l.mu.Lock()
	l.stopped = true
	l.gen++
	l.cancelTimerLocked()
	client := l.client
	l.client = nil
	l.mu.Unlock()

	if client != nil {
		_ = client.Close()
	}
	l.setConnected(false)
}

// Connected reports whether the transport is currently open.
func (l *Link) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connected
}

// dial performs one connection attempt and, on success, hands the connection
// to a read-loop goroutine. On failure it schedules the next attempt.
func (l *Link) dial(ctx context.Context) {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	gen := l.gen
	client := exchange.NewWSClient(l.wsURL, exchange.SnapshotHandler(l.onSnap), l.logger)
	l.client = client
	l.mu.Unlock()

	if err := client.Connect(ctx); err != nil {
		l.logger.Warn("feed connect failed, retrying",
			slog.String("error", err.Error()),
			slog.Duration("delay", l.reconnectDelay),
		)
		l.scheduleReconnect(ctx, gen)
		return
	}

	l.setConnected(true)
	l.logger.Info("feed connected", slog.String("url", l.wsURL))

	go func() {
		err := client.Run()
		l.setConnected(false)
		if err != nil {
			l.logger.Warn("feed disconnected, reconnecting",
				slog.String("error", err.Error()),
				slog.Duration("delay", l.reconnectDelay),
			)
		}
		l.scheduleReconnect(ctx, gen)
	}()
}

// scheduleReconnect arms the single reconnect timer, unless the link was
// deliberately stopped or a newer connection generation has taken over.
func (l *Link) scheduleReconnect(ctx context.Context, gen uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stopped || gen != l.gen {
		return
	}
	l.cancelTimerLocked()
	l.reconnect = time.AfterFunc(l.reconnectDelay, func() {
		l.dial(ctx)
	})
}

// cancelTimerLocked stops a pending reconnect timer. Caller must hold l.mu.
func (l *Link) cancelTimerLocked() {
	if l.reconnect != nil {
		l.reconnect.Stop()
		l.reconnect = nil
	}
}

// setConnected flips the observable state and notifies the status handler on
// actual transitions only.
func (l *Link) setConnected(up bool) {
	l.mu.Lock()
	changed := l.connected != up
	l.connected = up
	onStatus := l.onStatus
	l.mu.Unlock()

	if changed && onStatus != nil {
		onStatus(up)
	}
}

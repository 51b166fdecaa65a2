package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"tradedesk/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings to the peer at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// SnapshotHandler is called for every decoded depth snapshot.
type SnapshotHandler func(snap domain.DepthSnapshot)

// WSClient is a single-connection WebSocket client for the backend's depth
// push feed. It owns one dial/read-loop lifetime; reconnect policy lives in
// the feed layer above.
type WSClient struct {
	wsURL  string
	onSnap SnapshotHandler
	logger *slog.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
	done   chan struct{}
}

// NewWSClient creates a client for the given feed endpoint,
// e.g. "ws://localhost:8080/ws".
func NewWSClient(wsURL string, onSnap SnapshotHandler, logger *slog.Logger) *WSClient {
	return &WSClient{
		wsURL:  wsURL,
		onSnap: onSnap,
		logger: logger.With(slog.String("component", "exchange_ws")),
		done:   make(chan struct{}),
	}
}

// Connect dials the feed endpoint and starts the read and ping loops.
func (w *WSClient) Connect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("exchange/ws: %w", domain.ErrWSDisconnect)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, w.wsURL, nil)
	if err != nil {
		return fmt.Errorf("exchange/ws: connect: %w", err)
	}
	w.conn = conn

	w.conn.SetReadDeadline(time.Now().Add(pongWait))
	w.conn.SetPongHandler(func(string) error {
		w.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go w.pingLoop()
	return nil
}

// Run reads messages until the connection drops or Close is called. It
// returns nil on a deliberate Close and the transport error otherwise.
func (w *WSClient) Run() error {
	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()

	if conn == nil {
		return fmt.Errorf("exchange/ws: %w", domain.ErrNotConnected)
	}

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-w.done:
				return nil
			default:
			}
			return fmt.Errorf("exchange/ws: read: %w", err)
		}
		w.handleMessage(message)
	}
}

// Close shuts down the connection and stops the ping loop. Safe to call more
// than once.
func (w *WSClient) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	close(w.done)

	if w.conn != nil {
		_ = w.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		return w.conn.Close()
	}
	return nil
}

// pingLoop sends periodic ping messages to keep the connection alive.
func (w *WSClient) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.mu.Lock()
			conn := w.conn
			w.mu.Unlock()
			if conn == nil {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage decodes one push frame. Unrecognized message types are
// ignored; malformed payloads are logged and dropped, never fatal.
func (w *WSClient) handleMessage(raw []byte) {
	var env PushEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		w.logger.Warn("dropping malformed feed message", slog.String("error", err.Error()))
		return
	}

	switch env.Type {
	case "depth":
		snap, err := env.Data.ToDomainSnapshot(time.Now())
		if err != nil {
			w.logger.Warn("dropping undecodable depth update", slog.String("error", err.Error()))
			return
		}
		if w.onSnap != nil {
			w.onSnap(snap)
		}
	default:
		// Other message kinds are not part of the contract yet.
	}
}

// Package app provides the top-level application lifecycle. It wires together
// all dependencies (gateway, feed, state holders, services, bot, server) and
// runs them until the context is cancelled.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"tradedesk/internal/config"
	"tradedesk/internal/server"
	"tradedesk/internal/server/handler"
	"tradedesk/internal/server/ws"
)

// shutdownTimeout bounds the graceful HTTP shutdown on exit.
const shutdownTimeout = 10 * time.Second

// App is the root application object. It owns the configuration, logger, and
// a list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run is the main entry point. It wires all dependencies, starts the feed,
// the WebSocket hub, and the HTTP server, and blocks until the context is
// cancelled or a component fails.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("api_url", a.cfg.Exchange.APIURL),
		slog.String("ws_url", a.cfg.Exchange.WSURL),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	g, ctx := errgroup.WithContext(ctx)

	// One-time depth poll so the book is populated before the first feed
	// message arrives. Best effort; the feed repairs any gap.
	deps.Market.Prime(ctx)

	// Live market data feed, reconnecting until Disconnect.
	deps.Feed.Connect(ctx)
	a.closers = append(a.closers, deps.Feed.Disconnect)

	// Stop the bot before the gateway goes away.
	a.closers = append(a.closers, deps.Bot.Stop)

	// WebSocket hub bridging the signal bus to browser clients.
	hub := ws.NewHub(deps.Bus, deps.Feed, a.logger)
	g.Go(func() error {
		if err := hub.Run(ctx); err != nil && ctx.Err() == nil {
			return fmt.Errorf("app: ws hub: %w", err)
		}
		return nil
	})

	// HTTP API server.
	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
	}, server.Handlers{
		Health: handler.NewHealthHandler(deps.Feed),
		Market: handler.NewMarketHandler(deps.Book, deps.Candles, deps.Feed),
		Orders: handler.NewOrderHandler(deps.Orders, a.logger),
		Ledger: handler.NewLedgerHandler(deps.Ledger),
		Bot:    handler.NewBotHandler(deps.Bot),
	}, hub, a.logger)

	g.Go(srv.Start)

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

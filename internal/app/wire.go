package app

import (
	"context"
	"fmt"
	"log/slog"

	"tradedesk/internal/book"
	"tradedesk/internal/bot"
	"tradedesk/internal/bus"
	"tradedesk/internal/cache/redis"
	"tradedesk/internal/candle"
	"tradedesk/internal/config"
	"tradedesk/internal/domain"
	"tradedesk/internal/feed"
	"tradedesk/internal/ledger"
	"tradedesk/internal/platform/exchange"
	"tradedesk/internal/service"
	"tradedesk/internal/store/postgres"
)

// Dependencies bundles every component the application needs to run. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Gateway domain.OrderGateway
	Book    *book.Store
	Candles *candle.Aggregator
	Ledger  *ledger.Ledger

	Bus        domain.SignalBus
	DepthCache domain.DepthCache // nil when Redis is disabled
	TradeStore domain.TradeStore // nil when Postgres is disabled

	Market *service.MarketService
	Orders *service.OrderService
	Bot    *bot.Engine
	Feed   *feed.Link
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Redis (optional depth mirror + cross-process signal bus) ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.DepthCache = redis.NewBookCache(redisClient)
		deps.Bus = redis.NewSignalBus(redisClient)
	} else {
		deps.Bus = bus.NewMemory()
	}

	// --- Postgres (optional trade audit store) ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.Migrate(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		deps.TradeStore = postgres.NewTradeStore(pgClient.Pool())
	}

	// --- Exchange gateway and in-memory state holders ---
	deps.Gateway = exchange.NewRESTClient(cfg.Exchange.APIURL)
	deps.Book = book.NewStore()
	deps.Candles = candle.NewAggregator(cfg.Candles.Interval.Duration, cfg.Candles.MaxHistory)
	deps.Ledger = ledger.New(deps.Gateway, logger)

	// --- Services ---
	deps.Market = service.NewMarketService(deps.Book, deps.Candles, deps.Gateway, deps.DepthCache, deps.Bus, logger)
	deps.Orders = service.NewOrderService(deps.Gateway, deps.Ledger, deps.TradeStore, deps.Bus, logger)

	// --- Bot engine ---
	// Submission results flow into the ledger even when they complete after
	// the bot stops, so the callback must not capture a cancellable context.
	deps.Bot = bot.NewEngine(deps.Gateway, bot.Config{
		MinPrice:    cfg.Bot.MinPrice,
		MaxPrice:    cfg.Bot.MaxPrice,
		MinQty:      cfg.Bot.MinQty,
		MaxQty:      cfg.Bot.MaxQty,
		Interval:    cfg.Bot.Interval.Duration,
		SubmitterID: cfg.Bot.SubmitterID,
	}, func(result domain.FillResult, price float64, side domain.Side) {
		deps.Orders.Record(context.Background(), result, price, side)
	}, logger)

	// --- Market data feed ---
	deps.Feed = feed.NewLink(cfg.Exchange.WSURL, cfg.Exchange.ReconnectDelay.Duration,
		func(snap domain.DepthSnapshot) {
			deps.Market.HandleSnapshot(ctx, snap)
		},
		func(connected bool) {
			deps.Market.HandleStatus(ctx, connected)
		},
		logger,
	)

	return deps, cleanup, nil
}

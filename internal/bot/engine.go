// Package bot drives a synthetic order generator that exercises the exchange
// with momentum-biased random order flow.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"tradedesk/internal/domain"
)

const (
	// sideBias is the probability of picking the side momentum points at.
	sideBias = 0.6

	// momentumDecay smooths the momentum random walk toward zero.
	momentumDecay = 0.7

	// momentumNoise is the half-width of the uniform per-tick momentum shock.
	momentumNoise = 0.25

	// driftFraction scales momentum into a price drift as a fraction of the
	// configured price range.
	driftFraction = 0.1

	// largeQtyChance is the probability a tick doubles its quantity bias.
	largeQtyChance = 0.3

	// burstChance is the per-tick probability of entering burst mode.
	burstChance = 0.2

	// burstSpacing separates the extra orders fired during a burst.
	burstSpacing = 100 * time.Millisecond

	// burstHold extends the re-entrancy guard past the last burst order.
	burstHold = 500 * time.Millisecond
)

// Config is the caller-settable tuple controlling order generation. It can
// only change while the engine is stopped.
type Config struct {
	MinPrice    float64
	MaxPrice    float64
	MinQty      int64
	MaxQty      int64
	Interval    time.Duration
	SubmitterID int64
}

// Validate checks the config for impossible ranges.
func (c Config) Validate() error {
	if c.MinPrice <= 0 || c.MaxPrice < c.MinPrice {
		return fmt.Errorf("bot: price range [%v, %v] invalid", c.MinPrice, c.MaxPrice)
	}
	if c.MinQty <= 0 || c.MaxQty < c.MinQty {
		return fmt.Errorf("bot: quantity range [%d, %d] invalid", c.MinQty, c.MaxQty)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("bot: interval must be positive, got %v", c.Interval)
	}
	return nil
}

// ResultHandler receives the outcome of every successful submission together
// with the side-channel metadata the ledger needs. Results that complete
// after Stop are still delivered.
type ResultHandler func(result domain.FillResult, price float64, side domain.Side)

// Engine is the timer-driven synthetic order generator. Momentum, last price,
// and the burst guard are owned by the run goroutine; ticks always advance
// that state whether or not the submission succeeds.
type Engine struct {
	gateway  domain.OrderGateway
	onResult ResultHandler
	logger   *slog.Logger

	mu         sync.Mutex
	cfg        Config
	running    bool
	stop       chan struct{}
	orderCount int64

	momentum   float64
	lastPrice  float64
	burstUntil time.Time
	rng        *rand.Rand

	kicks chan struct{}
}

// NewEngine creates a stopped engine with the given config.
func NewEngine(gateway domain.OrderGateway, cfg Config, onResult ResultHandler, logger *slog.Logger) *Engine {
	return &Engine{
		gateway:  gateway,
		onResult: onResult,
		logger:   logger.With(slog.String("component", "bot")),
		cfg:      cfg,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		kicks:    make(chan struct{}, 8),
	}
}

// SetConfig replaces the generation parameters. It is rejected while the
// engine is running; a config change never applies mid-flight.
func (e *Engine) SetConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return domain.ErrBotRunning
	}
	e.cfg = cfg
	return nil
}

// Config returns the current generation parameters.
func (e *Engine) Config() Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// Start fires one order immediately and then one per configured interval
// until Stop. The engine owns its own lifetime: Stop is the only thing that
// ends the loop, so callers (the HTTP handler in particular) never hand in a
// context that outlives them. Calling Start on a running engine is a no-op.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.stop = make(chan struct{})
	stop := e.stop
	interval := e.cfg.Interval

	// Burst kicks queued just before the previous Stop must not carry into
	// this run.
	for len(e.kicks) > 0 {
		<-e.kicks
	}
	e.mu.Unlock()

	e.logger.Info("bot started", slog.Duration("interval", interval))
	go e.run(stop, interval)
}

// Stop cancels the periodic timer. In-flight submissions complete and their
// results are still reported.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	close(e.stop)
	e.stop = nil
	e.mu.Unlock()

	e.logger.Info("bot stopped")
}

// Reset stops the engine and zeroes the order counter. Momentum is left
// alone: the market keeps its memory across restarts.
func (e *Engine) Reset() {
	e.Stop()
	e.mu.Lock()
	e.orderCount = 0
	e.mu.Unlock()
}

// Running reports whether the engine is generating orders.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// OrderCount returns the number of successfully submitted orders since the
// last Reset.
func (e *Engine) OrderCount() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.orderCount
}

// Momentum returns the current momentum value in [-1, 1].
func (e *Engine) Momentum() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.momentum
}

// run is the engine's single tick loop. Burst mode feeds extra generation
// kicks back through e.kicks so all momentum mutation stays on this
// goroutine.
func (e *Engine) run(stop chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.tick(stop)
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			e.tick(stop)
		case <-e.kicks:
			e.tick(stop)
		}
	}
}

// tick generates one order, advances momentum, possibly schedules a burst,
// and hands the order to a submission goroutine so the loop is never blocked
// on the gateway.
func (e *Engine) tick(stop chan struct{}) {
	e.mu.Lock()
	e.maybeStartBurst(stop)
	order := e.generateOrder()
	e.mu.Unlock()

	go e.submit(order)
}

// maybeStartBurst enters burst mode with probability burstChance unless a
// burst is already active. The guard window covers the whole burst plus a
// hold so an active burst cannot re-trigger. Caller must hold e.mu.
func (e *Engine) maybeStartBurst(stop chan struct{}) {
	now := time.Now()
	if now.Before(e.burstUntil) || e.rng.Float64() >= burstChance {
		return
	}

	count := 2 + e.rng.Intn(3)
	e.burstUntil = now.Add(time.Duration(count)*burstSpacing + burstHold)

	go func() {
		for i := 0; i < count; i++ {
			if i > 0 {
				select {
				case <-stop:
					return
				case <-time.After(burstSpacing):
				}
			}
			select {
			case <-stop:
				return
			case e.kicks <- struct{}{}:
			default:
			}
		}
	}()
}

// generateOrder draws one order from the momentum-biased random walk and
// advances the momentum state. Caller must hold e.mu.
func (e *Engine) generateOrder() domain.Order {
	cfg := e.cfg

	// Momentum pushes price in its own direction through order-flow
	// imbalance.
	var side domain.Side
	if e.momentum > 0 {
		side = domain.SideSell
		if e.rng.Float64() < sideBias {
			side = domain.SideBuy
		}
	} else {
		side = domain.SideBuy
		if e.rng.Float64() < sideBias {
			side = domain.SideSell
		}
	}

	mid := (cfg.MinPrice + cfg.MaxPrice) / 2
	priceRange := cfg.MaxPrice - cfg.MinPrice
	drift := e.momentum * priceRange * driftFraction
	spreadFactor := 0.3 + e.rng.Float64()*0.7
	offset := (e.rng.Float64() - 0.5) * priceRange * spreadFactor

	price := math.Floor(mid + offset + drift)
	price = math.Max(cfg.MinPrice, math.Min(cfg.MaxPrice, price))

	// Exponentially smoothed random walk with mean reversion toward zero,
	// advanced on every tick regardless of the order outcome.
	e.momentum = e.momentum*momentumDecay + (e.rng.Float64()-0.5)*2*momentumNoise
	e.momentum = math.Max(-1, math.Min(1, e.momentum))

	qtyBias := 1.0
	if e.rng.Float64() < largeQtyChance {
		qtyBias = 2.0
	}
	qtyRange := float64(cfg.MaxQty - cfg.MinQty)
	qty := cfg.MinQty + int64(e.rng.Float64()*qtyRange*qtyBias)
	if qty > cfg.MaxQty {
		qty = cfg.MaxQty
	}

	e.lastPrice = price

	return domain.Order{
		Price:       price,
		Quantity:    qty,
		Side:        side,
		SubmitterID: cfg.SubmitterID,
	}
}

// submit sends one order to the gateway. Failures are logged and never
// retried; the next scheduled tick proceeds regardless. The background
// context keeps a submission in flight at Stop alive until its result lands.
func (e *Engine) submit(order domain.Order) {
	result, err := e.gateway.Submit(context.Background(), order)
	if err != nil {
		e.logger.Warn("bot order failed",
			slog.Float64("price", order.Price),
			slog.Int64("qty", order.Quantity),
			slog.String("side", string(order.Side)),
			slog.String("error", err.Error()),
		)
		return
	}

	e.mu.Lock()
	e.orderCount++
	e.mu.Unlock()

	if e.onResult != nil {
		e.onResult(result, order.Price, order.Side)
	}
}

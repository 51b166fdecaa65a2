package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"tradedesk/internal/bot"
	"tradedesk/internal/domain"
)

// BotHandler exposes the synthetic order generator's controls.
type BotHandler struct {
	engine *bot.Engine
}

// NewBotHandler creates a BotHandler.
func NewBotHandler(engine *bot.Engine) *BotHandler {
	return &BotHandler{engine: engine}
}

// botConfigJSON is the wire form of the bot's configuration tuple.
type botConfigJSON struct {
	MinPrice   float64 `json:"min_price"`
	MaxPrice   float64 `json:"max_price"`
	MinQty     int64   `json:"min_qty"`
	MaxQty     int64   `json:"max_qty"`
	IntervalMs int64   `json:"interval_ms"`
}

// Status returns the current bot state.
// GET /api/bot
func (h *BotHandler) Status(w http.ResponseWriter, r *http.Request) {
	cfg := h.engine.Config()
	writeJSON(w, http.StatusOK, map[string]any{
		"running":     h.engine.Running(),
		"order_count": h.engine.OrderCount(),
		"momentum":    h.engine.Momentum(),
		"config": botConfigJSON{
			MinPrice:   cfg.MinPrice,
			MaxPrice:   cfg.MaxPrice,
			MinQty:     cfg.MinQty,
			MaxQty:     cfg.MaxQty,
			IntervalMs: cfg.Interval.Milliseconds(),
		},
	})
}

// Start begins synthetic order generation. The engine runs on its own
// lifetime, not the request's; generation outlives this handler and ends
// only at Stop.
// POST /api/bot/start
func (h *BotHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.engine.Start()
	writeJSON(w, http.StatusOK, map[string]any{"running": true})
}

// Stop halts synthetic order generation. In-flight submissions still report
// their results.
// POST /api/bot/stop
func (h *BotHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.engine.Stop()
	writeJSON(w, http.StatusOK, map[string]any{"running": false})
}

// Reset stops the bot and zeroes its order counter.
// POST /api/bot/reset
func (h *BotHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.engine.Reset()
	writeJSON(w, http.StatusOK, map[string]any{
		"running":     false,
		"order_count": 0,
	})
}

// UpdateConfig replaces the generation parameters. Rejected with 409 while
// the bot is running; a change never applies mid-flight.
// PUT /api/bot/config
func (h *BotHandler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var req botConfigJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cfg := h.engine.Config()
	cfg.MinPrice = req.MinPrice
	cfg.MaxPrice = req.MaxPrice
	cfg.MinQty = req.MinQty
	cfg.MaxQty = req.MaxQty
	cfg.Interval = time.Duration(req.IntervalMs) * time.Millisecond

	if err := h.engine.SetConfig(cfg); err != nil {
		if errors.Is(err, domain.ErrBotRunning) {
			writeError(w, http.StatusConflict, "stop the bot before changing its configuration")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, req)
}

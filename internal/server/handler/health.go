package handler

import (
	"net/http"
	"time"
)

// FeedStatus reports whether the live depth feed is currently connected.
type FeedStatus interface {
	Connected() bool
}

// HealthHandler serves the health endpoint.
type HealthHandler struct {
	feed      FeedStatus
	startedAt time.Time
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(feed FeedStatus) *HealthHandler {
	return &HealthHandler{
		feed:      feed,
		startedAt: time.Now(),
	}
}

// HealthCheck returns service liveness and the feed connection state.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"service":        "tradedesk",
		"feed_connected": h.feed.Connected(),
		"uptime":         time.Since(h.startedAt).String(),
	})
}

package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// HealthHandler serves the liveness and metrics endpoints
type HealthHandler struct {
	BaseHandler
	promHandler http.Handler
	startedAt   time.Time
	backend     string
}

// healthResponse is the body of GET /health
type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Uptime    string `json:"uptime"`
	Backend   string `json:"backend"`
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(logger *zap.Logger, backend string) *HealthHandler {
	return &HealthHandler{
		BaseHandler: BaseHandler{Logger: logger},
		promHandler: promhttp.Handler(),
		startedAt:   time.Now(),
		backend:     backend,
	}
}

// RegisterRoutes registers /health and /metrics
func (h *HealthHandler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.Health)
	r.Handle("/metrics", h.promHandler)
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, _ *http.Request) {
	h.RespondJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(h.startedAt).Truncate(time.Second).String(),
		Backend:   h.backend,
	})
}

package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// Pinger is a dependency the readiness probe can check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthHandler handles health check endpoints
type HealthHandler struct {
	database Pinger
	redis    Pinger
	logger   *slog.Logger
}

// NewHealthHandler creates a new health handler. redis may be nil when the
// token cache runs in process.
func NewHealthHandler(database, redis Pinger, logger *slog.Logger) *HealthHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &HealthHandler{
		database: database,
		redis:    redis,
		logger:   logger,
	}
}

// HealthResponse represents the health status response
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadinessResponse represents the readiness check response
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Health handles GET /healthz - Simple liveness check
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(HealthResponse{Status: "ok"})
}

// Ready handles GET /readyz - Returns 200 only if the database (and Redis,
// when configured) answer
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	ready := true

	// Check database
	if h.database == nil {
		checks["database"] = "not configured"
		ready = false
	} else if err := h.database.Ping(ctx); err != nil {
		checks["database"] = "error: " + err.Error()
		ready = false
	} else {
		checks["database"] = "ok"
	}

	// Check Redis
	if h.redis == nil {
		checks["redis"] = "not configured"
	} else if err := h.redis.Ping(ctx); err != nil {
		checks["redis"] = "error: " + err.Error()
		ready = false
	} else {
		checks["redis"] = "ok"
	}

	status := "ready"
	statusCode := http.StatusOK
	if !ready {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ReadinessResponse{
		Status: status,
		Checks: checks,
	})

	if !ready {
		h.logger.Warn("readiness check failed",
			slog.String("database", checks["database"]),
			slog.String("redis", checks["redis"]),
		)
	}
}

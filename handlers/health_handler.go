package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/hrapp/hr-backend/utils"
	"go.uber.org/zap"
)

const readinessTimeout = 5 * time.Second

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// InfoResponse is served at /management/info
type InfoResponse struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Environment string `json:"environment"`
}

// HealthHandler serves the management endpoints
type HealthHandler struct {
	db     *sql.DB
	info   InfoResponse
	logger *zap.Logger
}

// NewHealthHandler creates a new HealthHandler; db may be nil
func NewHealthHandler(db *sql.DB, info InfoResponse, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		db:     db,
		info:   info,
		logger: logger,
	}
}

// HandleHealth handles GET /management/health
// Liveness only; returns 200 while the process is serving
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, HealthResponse{
		Status:    "UP",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleReadiness handles GET /management/health/ready
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	checks := make(map[string]string)
	status := "UP"
	httpStatus := http.StatusOK

	if err := h.checkDatabase(ctx); err != nil {
		h.logger.Warn("identity store health check failed", zap.Error(err))
		checks["database"] = "DOWN"
		status = "DOWN"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["database"] = "UP"
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}

	if err := utils.WriteJSON(w, httpStatus, utils.SuccessResponse{Data: response}); err != nil {
		h.logger.Error("failed to write readiness response", zap.Error(err))
	}
}

// HandleInfo handles GET /management/info
func (h *HealthHandler) HandleInfo(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, h.info)
}

func (h *HealthHandler) checkDatabase(ctx context.Context) error {
	if h.db == nil {
		return nil
	}

	if err := h.db.PingContext(ctx); err != nil {
		return err
	}

	var result int
	return h.db.QueryRowContext(ctx, "SELECT 1").Scan(&result)
}

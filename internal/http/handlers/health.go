package handlers

import (
	"context"
	"database/sql"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/firmenkern/recherche-api/internal/version"
)

const healthPingTimeout = 2 * time.Second

// HealthHandler handles the health check endpoint.
type HealthHandler struct {
	db *sql.DB
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(db *sql.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// HealthOutput represents the health check response.
type HealthOutput struct {
	Body struct {
		Status  string `json:"status" example:"healthy" doc:"Health status"`
		Version string `json:"version" doc:"API version"`
	}
}

// Health reports whether the API can reach its database.
func (h *HealthHandler) Health(ctx context.Context, input *struct{}) (*HealthOutput, error) {
	pingCtx, cancel := context.WithTimeout(ctx, healthPingTimeout)
	defer cancel()

	if err := h.db.PingContext(pingCtx); err != nil {
		return nil, huma.Error503ServiceUnavailable("database unreachable")
	}

	out := &HealthOutput{}
	out.Body.Status = "healthy"
	out.Body.Version = version.Get().Short()
	return out, nil
}

package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/donaldgifford/restock-tracker/internal/state"
)

// StateSnapshotter reads the cached state document.
type StateSnapshotter interface {
	Snapshot() (state.Document, error)
}

// HealthHandler provides health and readiness endpoints.
type HealthHandler struct {
	states StateSnapshotter
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(s StateSnapshotter) *HealthHandler {
	return &HealthHandler{states: s}
}

// Healthz returns 200 if the process is running.
func (*HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, StatusResponse{Status: "ok"})
}

// Readyz returns 200 if the state table can be read, 503 otherwise.
func (h *HealthHandler) Readyz(c echo.Context) error {
	if _, err := h.states.Snapshot(); err != nil {
		c.Logger().Warnf("readiness check failed: %v", err)
		return c.JSON(http.StatusServiceUnavailable, StatusResponse{Status: "unavailable"})
	}
	return c.JSON(http.StatusOK, StatusResponse{Status: "ready"})
}

// handlers_health.go - Health check handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// HealthHandlerImpl implements the HealthHandler interface
type HealthHandlerImpl struct {
	version          string
	sessions         SessionManager
	analysisEndpoint string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version string, sessions SessionManager, analysisEndpoint string) HealthHandler {
	return &HealthHandlerImpl{
		version:          version,
		sessions:         sessions,
		analysisEndpoint: analysisEndpoint,
	}
}

// HandleHealth returns server health status
func (h *HealthHandlerImpl) HandleHealth(c echo.Context) error {
	count := 0
	if h.sessions != nil {
		count = h.sessions.Count()
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":           "ok",
		"version":          h.version,
		"sessions":         count,
		"analysisEndpoint": h.analysisEndpoint,
	})
}

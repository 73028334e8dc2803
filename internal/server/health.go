package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthResponse represents the response from the health check endpoint
type HealthResponse struct {
	Status   string         `json:"status"`
	Database string         `json:"database"`
	Version  string         `json:"version,omitempty"`
	Zones    int            `json:"zones"`
	Time     string         `json:"time"`
	Details  map[string]any `json:"details,omitempty"`
}

type healthHandler struct {
	db      HealthChecker
	zones   Zones
	version string
}

func setupHealthRoutes(apiGroup *gin.RouterGroup, deps Deps) {
	h := &healthHandler{db: deps.DB, zones: deps.Zones, version: deps.Version}
	apiGroup.GET("/health", h.check)
}

// check handles GET /api/health
func (h *healthHandler) check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:   "ok",
		Database: "disabled",
		Version:  h.version,
		Time:     time.Now().UTC().Format(time.RFC3339),
		Details:  make(map[string]any),
	}
	if h.zones != nil {
		response.Zones = len(h.zones.Zones())
	}

	if h.db != nil {
		if err := h.db.Health(ctx); err != nil {
			response.Status = "degraded"
			response.Database = "unhealthy"
			response.Details["database_error"] = err.Error()
			c.JSON(http.StatusServiceUnavailable, response)
			return
		}
		response.Database = "healthy"
	}

	c.JSON(http.StatusOK, response)
}

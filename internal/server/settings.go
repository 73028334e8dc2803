package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"kiosk-player/internal/logger"
	"kiosk-player/internal/settings"
)

type settingsHandler struct {
	store *settings.Store
}

func setupSettingsRoutes(apiGroup *gin.RouterGroup, store *settings.Store) {
	h := &settingsHandler{store: store}
	apiGroup.GET("/settings", h.get)
	apiGroup.PUT("/settings", h.update)
	apiGroup.POST("/play", h.setPlaying(true))
	apiGroup.POST("/pause", h.setPlaying(false))
}

// get handles GET /api/settings
func (h *settingsHandler) get(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.Get())
}

// update handles PUT /api/settings. Unknown transitions are rejected;
// out of range intervals are clamped.
func (h *settingsHandler) update(c *gin.Context) {
	var patch settings.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body: " + err.Error(),
		})
		return
	}
	if err := patch.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_transition",
			Message: err.Error(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	next, err := h.store.Update(ctx, patch.Apply)
	if err != nil {
		// the new settings are live, only persisting them failed
		logger.Log.Error().Err(err).Msg("Failed to persist settings")
		_ = c.Error(err)
	}
	c.JSON(http.StatusOK, next)
}

// setPlaying handles POST /api/play and POST /api/pause
func (h *settingsHandler) setPlaying(playing bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		next, err := h.store.SetPlaying(ctx, playing)
		if err != nil {
			logger.Log.Error().Err(err).Bool("playing", playing).Msg("Failed to persist settings")
			_ = c.Error(err)
		}
		c.JSON(http.StatusOK, next)
	}
}

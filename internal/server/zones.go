package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"kiosk-player/internal/logger"
	"kiosk-player/internal/media"
	"kiosk-player/internal/player"
	"kiosk-player/internal/show"
	"kiosk-player/internal/template"
)

const zoneCallTimeout = 2 * time.Second

// ZoneResponse describes one zone: its layout and live status.
type ZoneResponse struct {
	template.Zone
	Status *show.Status `json:"status,omitempty"`
}

// ItemsResponse is a zone's media list in playback order.
type ItemsResponse struct {
	Zone  string       `json:"zone"`
	Items []media.Item `json:"items"`
}

type zoneHandler struct {
	zones Zones
}

func setupZoneRoutes(apiGroup *gin.RouterGroup, zones Zones) {
	h := &zoneHandler{zones: zones}
	zoneGroup := apiGroup.Group("/zones")

	zoneGroup.GET("", h.list)
	zoneGroup.GET("/:id/scene", h.scene)
	zoneGroup.GET("/:id/status", h.status)
	zoneGroup.GET("/:id/items", h.items)
	zoneGroup.POST("/:id/advance", h.advance)
	zoneGroup.POST("/:id/gesture", h.gesture)
}

// list handles GET /api/zones
func (h *zoneHandler) list(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), zoneCallTimeout)
	defer cancel()

	out := make([]ZoneResponse, 0)
	for _, id := range h.zones.Zones() {
		info, err := h.zones.ZoneInfo(id)
		if err != nil {
			continue
		}
		resp := ZoneResponse{Zone: info}
		if st, err := h.zones.Status(ctx, id); err == nil {
			resp.Status = &st
		}
		out = append(out, resp)
	}
	c.JSON(http.StatusOK, out)
}

// scene handles GET /api/zones/:id/scene
func (h *zoneHandler) scene(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), zoneCallTimeout)
	defer cancel()

	sc, err := h.zones.Scene(ctx, c.Param("id"))
	if err != nil {
		zoneError(c, err)
		return
	}
	c.JSON(http.StatusOK, sc)
}

// status handles GET /api/zones/:id/status
func (h *zoneHandler) status(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), zoneCallTimeout)
	defer cancel()

	st, err := h.zones.Status(ctx, c.Param("id"))
	if err != nil {
		zoneError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// items handles GET /api/zones/:id/items
func (h *zoneHandler) items(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), zoneCallTimeout)
	defer cancel()

	id := c.Param("id")
	items, err := h.zones.Items(ctx, id)
	if err != nil {
		zoneError(c, err)
		return
	}
	if items == nil {
		items = []media.Item{}
	}
	c.JSON(http.StatusOK, ItemsResponse{Zone: id, Items: items})
}

// advance handles POST /api/zones/:id/advance
func (h *zoneHandler) advance(c *gin.Context) {
	h.command(c, h.zones.Advance)
}

// gesture handles POST /api/zones/:id/gesture, the double interaction
// that forces playback to resume.
func (h *zoneHandler) gesture(c *gin.Context) {
	h.command(c, h.zones.Gesture)
}

func (h *zoneHandler) command(c *gin.Context, fn func(context.Context, string) error) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), zoneCallTimeout)
	defer cancel()

	id := c.Param("id")
	if err := fn(ctx, id); err != nil {
		zoneError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

func zoneError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, player.ErrZoneNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "zone_not_found",
			Message: "Zone " + c.Param("id") + " does not exist",
		})
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error:   "zone_busy",
			Message: "Zone did not respond in time",
		})
	default:
		logger.Log.Error().Err(err).Str("zone", c.Param("id")).Msg("Zone request failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "zone_failed",
			Message: err.Error(),
		})
	}
}

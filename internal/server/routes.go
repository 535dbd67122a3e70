package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mantonx/mediawall/internal/events"
	"github.com/mantonx/mediawall/internal/modules/wallmodule"
)

var startTime = time.Now()

// setupRoutes registers the server-level endpoints; module routes register
// themselves.
func setupRoutes(r *gin.Engine) {
	r.GET("/health", handleHealth)

	api := r.Group("/api/v1")
	{
		api.GET("/events", handleRecentEvents)
		api.GET("/events/stats", handleEventStats)
	}
}

func handleHealth(c *gin.Context) {
	status := "ok"
	if systemEventBus != nil {
		if err := systemEventBus.Health(); err != nil {
			status = "degraded"
		}
	}
	body := gin.H{
		"status": status,
		"uptime": time.Since(startTime).String(),
	}
	if wall := wallmodule.GetWall(); wall != nil {
		snap := wall.Snapshot()
		body["wall"] = gin.H{
			"session_id": snap.SessionID,
			"tiles":      snap.TileCount,
			"broken":     snap.Broken,
			"pool_error": snap.PoolError,
		}
		if snap.PoolError != "" {
			body["status"] = "degraded"
		}
	}
	c.JSON(http.StatusOK, body)
}

func handleRecentEvents(c *gin.Context) {
	if systemEventBus == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event bus not running"})
		return
	}

	var filter events.EventFilter
	if t := c.Query("type"); t != "" {
		filter.Types = []events.EventType{events.EventType(t)}
	}

	limit := 50
	if n, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil && n > 0 && n <= 500 {
		limit = n
	}
	offset := 0
	if n, err := strconv.Atoi(c.DefaultQuery("offset", "0")); err == nil && n >= 0 {
		offset = n
	}

	list, total, err := systemEventBus.GetEvents(filter, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": list, "total": total})
}

func handleEventStats(c *gin.Context) {
	if systemEventBus == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event bus not running"})
		return
	}
	c.JSON(http.StatusOK, systemEventBus.GetStats())
}

package wallmodule

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mantonx/mediawall/internal/modules/wallmodule/layout"
)

// handleGetWall returns the full wall snapshot
func (m *Module) handleGetWall(c *gin.Context) {
	c.JSON(http.StatusOK, m.wall.Snapshot())
}

// handleReloadPool refetches the candidate pool and reshuffles. This is the
// manual retry path for a failed pool load.
func (m *Module) handleReloadPool(c *gin.Context) {
	if err := m.wall.Reload(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, m.wall.Snapshot())
}

func (m *Module) handleShuffleAll(c *gin.Context) {
	m.wall.ShuffleAll()
	c.JSON(http.StatusOK, m.wall.Snapshot())
}

func (m *Module) handleShuffleTile(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tile index"})
		return
	}
	if !m.wall.TileEvent(index, ClickEvent{}) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such tile"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// tileEventRequest is a player-side event reported for one tile
type tileEventRequest struct {
	Type     string  `json:"type" binding:"required"`
	Duration float64 `json:"duration"`
}

// handleTileEvent feeds player events (canplay, error, loadedmetadata,
// rightclick) into the tile's state machine.
func (m *Module) handleTileEvent(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tile index"})
		return
	}

	var req tileEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var ev TileEvent
	switch req.Type {
	case "canplay":
		ev = CanPlayEvent{}
	case "error":
		ev = PlaybackErrorEvent{}
	case "loadedmetadata":
		ev = MetadataEvent{Duration: req.Duration}
	case "click":
		ev = ClickEvent{}
	case "rightclick":
		ev = RightClickEvent{}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown event type: " + req.Type})
		return
	}

	if !m.wall.TileEvent(index, ev) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such tile"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// settingsRequest carries user-adjustable wall settings; nil fields are
// left unchanged.
type settingsRequest struct {
	TileCount  *int    `json:"tile_count"`
	LayoutMode *string `json:"layout_mode"`
	Muted      *bool   `json:"muted"`
	HUD        *bool   `json:"hud"`
}

func (m *Module) handleUpdateSettings(c *gin.Context) {
	var req settingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.TileCount != nil {
		m.wall.SetTileCount(c.Request.Context(), *req.TileCount)
	}
	if req.LayoutMode != nil {
		m.wall.SetLayoutMode(layout.Mode(*req.LayoutMode))
	}
	if req.Muted != nil {
		m.wall.SetMuted(*req.Muted)
	}
	if req.HUD != nil {
		m.wall.SetHUD(*req.HUD)
	}
	c.JSON(http.StatusOK, m.wall.Snapshot())
}

// commandRequest is a keyboard shortcut forwarded by a client
type commandRequest struct {
	Key string `json:"key" binding:"required"`
}

func (m *Module) handleCommand(c *gin.Context) {
	var req commandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !m.wall.Command(req.Key) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown command: " + req.Key})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleAdmissionStats exposes decoder slot usage for the HUD
func (m *Module) handleAdmissionStats(c *gin.Context) {
	ctrl := m.wall.Admission()
	c.JSON(http.StatusOK, gin.H{
		"active":   ctrl.Active(),
		"waiting":  ctrl.Waiting(),
		"capacity": ctrl.Capacity(),
	})
}

func (m *Module) handleWebSocket(c *gin.Context) {
	m.wall.Hub().ServeWS(c.Writer, c.Request)
}

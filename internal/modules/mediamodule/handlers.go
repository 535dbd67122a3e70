package mediamodule

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// handleCandidates returns video candidates for wall sampling
func (m *Manager) handleCandidates(c *gin.Context) {
	limit := 200
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	items, err := m.ListVideoCandidates(c.Request.Context(), c.Query("tag"), limit)
	if err != nil {
		m.logger.Error("failed to list video candidates", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query candidates"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items": items,
		"count": len(items),
	})
}

// handleGetItem returns one catalog entry
func (m *Manager) handleGetItem(c *gin.Context) {
	item, err := m.store.GetByID(c.Request.Context(), c.Param("id"))
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "media item not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load media item"})
		return
	}

	c.JSON(http.StatusOK, item)
}

// handleStream serves the media file. The transcode and h parameters are
// player pipeline hints carried on the URL; the file itself is served as-is.
func (m *Manager) handleStream(c *gin.Context) {
	item, err := m.store.GetByID(c.Request.Context(), c.Param("id"))
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "media item not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load media item"})
		return
	}

	if c.Query("transcode") == "1" {
		m.logger.Debug("transcode hint on stream request", "media_id", item.ID)
	}
	if h := c.Query("h"); h != "" {
		m.logger.Debug("low-res hint on stream request", "media_id", item.ID, "max_height", h)
	}

	c.File(item.Path)
}

// handleThumbnail serves the captured thumbnail for an item
func (m *Manager) handleThumbnail(c *gin.Context) {
	item, err := m.store.GetByID(c.Request.Context(), c.Param("id"))
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "media item not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load media item"})
		return
	}
	if item.ThumbnailPath == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "no thumbnail for media item"})
		return
	}

	c.File(item.ThumbnailPath)
}

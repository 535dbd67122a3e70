package wallmodule

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"gorm.io/gorm"

	"github.com/mantonx/mediawall/internal/config"
	"github.com/mantonx/mediawall/internal/events"
	"github.com/mantonx/mediawall/internal/modules/mediamodule"
	"github.com/mantonx/mediawall/internal/modules/modulemanager"
	"github.com/mantonx/mediawall/internal/modules/statsmodule"
	"github.com/mantonx/mediawall/internal/modules/wallmodule/admission"
	"github.com/mantonx/mediawall/internal/modules/wallmodule/layout"
)

// Auto-register the module when imported
func init() {
	Register()
}

const (
	ModuleID   = "system.wall"
	ModuleName = "Video Wall"
)

// Module wires the wall orchestrator, its admission controllers, and the
// HTTP/websocket surface together.
type Module struct {
	id          string
	name        string
	core        bool
	logger      hclog.Logger
	wall        *Wall
	preview     *admission.Controller
	initialized bool

	previewMu     sync.Mutex
	previewTokens map[string]func()
}

var moduleInstance *Module

// Register registers this module with the module system
func Register() {
	moduleInstance = &Module{
		id:   ModuleID,
		name: ModuleName,
		core: true,
	}
	modulemanager.Register(moduleInstance)
}

// GetWall returns the running wall orchestrator, nil before init
func GetWall() *Wall {
	if moduleInstance == nil {
		return nil
	}
	return moduleInstance.wall
}

// ID returns the module ID
func (m *Module) ID() string {
	return m.id
}

// Name returns the module name
func (m *Module) Name() string {
	return m.name
}

// Core returns whether this is a core module
func (m *Module) Core() bool {
	return m.core
}

// Migrate is a no-op; the wall keeps no persistent state of its own
func (m *Module) Migrate(db *gorm.DB) error {
	return nil
}

// Init builds the wall from configuration and starts it. A failed initial
// pool load is not fatal: the wall serves its error state and the reload
// endpoint retries.
func (m *Module) Init() error {
	if m.initialized {
		return nil
	}

	backend := mediamodule.GetManager()
	if backend == nil {
		return fmt.Errorf("wall module requires the media module")
	}

	cfg := config.Get()
	m.logger = hclog.Default().Named("wall-module")
	m.previewTokens = make(map[string]func())

	// Wall playback and hover previews have separate decoder budgets
	ctrl := admission.NewController(cfg.Wall.DecoderSlots, hclog.Default())
	m.preview = admission.NewController(cfg.Wall.PreviewDecoderSlots, hclog.Default())

	m.wall = NewWall(backend, ctrl, statsmodule.GetRecorder(), events.GetGlobalEventBus(), hclog.Default(), Options{
		TileCount:   cfg.Wall.TileCount,
		LayoutMode:  layout.Mode(cfg.Wall.LayoutMode),
		PoolSize:    cfg.Wall.PoolSize,
		StaggerStep: cfg.Wall.StaggerStep,
		Muted:       cfg.Wall.Muted,
	})

	if err := m.wall.Start(context.Background()); err != nil {
		m.logger.Warn("wall started with empty pool", "error", err)
	}

	m.initialized = true
	return nil
}

// Shutdown tears down the wall and releases any preview slots
func (m *Module) Shutdown() error {
	if m.wall != nil {
		m.wall.Dispose()
	}

	m.previewMu.Lock()
	for token, release := range m.previewTokens {
		release()
		delete(m.previewTokens, token)
	}
	m.previewMu.Unlock()
	return nil
}

// RegisterRoutes registers the wall API
func (m *Module) RegisterRoutes(router *gin.Engine) {
	if !m.initialized {
		return
	}

	api := router.Group("/api/v1/wall")
	{
		api.GET("", m.handleGetWall)
		api.GET("/ws", m.handleWebSocket)
		api.GET("/admission", m.handleAdmissionStats)
		api.POST("/pool/reload", m.handleReloadPool)
		api.POST("/shuffle", m.handleShuffleAll)
		api.POST("/tiles/:index/shuffle", m.handleShuffleTile)
		api.POST("/tiles/:index/event", m.handleTileEvent)
		api.PUT("/settings", m.handleUpdateSettings)
		api.POST("/command", m.handleCommand)
		api.POST("/preview/acquire", m.handlePreviewAcquire)
		api.DELETE("/preview/:token", m.handlePreviewRelease)
	}
}

// handlePreviewAcquire grants a hover-preview decoder slot if one is free.
// Previews never queue; a denied preview simply doesn't play.
func (m *Module) handlePreviewAcquire(c *gin.Context) {
	release, ok := m.preview.TryAcquire(c.ClientIP())
	if !ok {
		c.JSON(http.StatusTooManyRequests, gin.H{
			"granted":  false,
			"active":   m.preview.Active(),
			"capacity": m.preview.Capacity(),
		})
		return
	}

	token := uuid.NewString()
	m.previewMu.Lock()
	m.previewTokens[token] = release
	m.previewMu.Unlock()

	c.JSON(http.StatusOK, gin.H{"granted": true, "token": token})
}

func (m *Module) handlePreviewRelease(c *gin.Context) {
	token := c.Param("token")

	m.previewMu.Lock()
	release, ok := m.previewTokens[token]
	delete(m.previewTokens, token)
	m.previewMu.Unlock()

	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown preview token"})
		return
	}
	release()
	c.JSON(http.StatusOK, gin.H{"status": "released"})
}

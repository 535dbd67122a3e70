package vaultmodule

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
	"gorm.io/gorm"

	"github.com/mantonx/mediawall/internal/config"
	"github.com/mantonx/mediawall/internal/events"
	"github.com/mantonx/mediawall/internal/modules/mediamodule"
	"github.com/mantonx/mediawall/internal/modules/modulemanager"
)

// Auto-register the module when imported
func init() {
	Register()
}

const (
	ModuleID   = "system.vault"
	ModuleName = "Media Vault"
)

// Module watches the vault roots and keeps the media catalog in sync
type Module struct {
	id          string
	name        string
	core        bool
	logger      hclog.Logger
	watcher     *Watcher
	scanner     *Scanner
	roots       []string
	initialized bool
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

// Migrate is a no-op; the vault owns no tables, the catalog does
func (m *Module) Migrate(db *gorm.DB) error {
	return nil
}

// Init starts the vault watcher against the configured roots
func (m *Module) Init() error {
	if m.initialized {
		return nil
	}

	indexer := mediamodule.GetManager()
	if indexer == nil {
		return fmt.Errorf("vault module requires the media module")
	}

	cfg := config.Get()
	m.logger = hclog.Default().Named("vault-module")
	m.roots = cfg.Vault.Roots

	bus := events.GetGlobalEventBus()
	m.scanner = NewScanner(indexer, bus, hclog.Default())

	if cfg.Vault.WatchEnabled && len(m.roots) > 0 {
		watcher, err := NewWatcher(indexer, bus, hclog.Default(), cfg.Vault.DebounceWindow, cfg.Vault.IgnorePatterns)
		if err != nil {
			return fmt.Errorf("failed to create vault watcher: %w", err)
		}
		if err := watcher.Start(m.roots); err != nil {
			return fmt.Errorf("failed to start vault watcher: %w", err)
		}
		m.watcher = watcher
	}

	m.initialized = true
	return nil
}

// Shutdown stops the vault watcher
func (m *Module) Shutdown() error {
	if m.watcher != nil {
		return m.watcher.Stop()
	}
	return nil
}

// RegisterRoutes registers the vault API
func (m *Module) RegisterRoutes(router *gin.Engine) {
	if !m.initialized {
		return
	}

	api := router.Group("/api/v1/vault")
	{
		api.GET("/status", m.handleStatus)
		api.POST("/rescan", m.handleRescan)
	}
}

func (m *Module) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"roots":    m.roots,
		"watching": m.watcher != nil,
		"scan":     m.scanner.Status(),
	})
}

// handleRescan starts a full vault walk in the background
func (m *Module) handleRescan(c *gin.Context) {
	if m.scanner.Status().Running {
		c.JSON(http.StatusConflict, gin.H{"error": "scan already in progress"})
		return
	}

	// Detached from the request context; the scan outlives the response
	go func() {
		if err := m.scanner.Rescan(context.Background(), m.roots); err != nil {
			m.logger.Warn("rescan failed", "error", err)
		}
	}()
	c.JSON(http.StatusAccepted, gin.H{"status": "scan started"})
}

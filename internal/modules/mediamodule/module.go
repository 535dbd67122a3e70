package mediamodule

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
	"gorm.io/gorm"

	"github.com/mantonx/mediawall/internal/events"
	"github.com/mantonx/mediawall/internal/modules/modulemanager"
)

// Auto-register the module when imported
func init() {
	Register()
}

const (
	ModuleID   = "system.media"
	ModuleName = "Media Catalog"
)

// Module owns the media catalog and the streaming/thumbnail routes
type Module struct {
	id          string
	name        string
	core        bool
	db          *gorm.DB
	eventBus    events.EventBus
	manager     *Manager
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

// GetManager returns the catalog manager once the module is initialized
func GetManager() *Manager {
	if moduleInstance == nil {
		return nil
	}
	return moduleInstance.manager
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

// Migrate handles database schema migrations for the catalog
func (m *Module) Migrate(db *gorm.DB) error {
	m.db = db
	return db.AutoMigrate(&MediaItem{})
}

// Init initializes the media module
func (m *Module) Init() error {
	if m.initialized {
		return nil
	}
	if m.db == nil {
		return fmt.Errorf("media module migrated before database was available")
	}

	m.eventBus = events.GetGlobalEventBus()
	m.manager = NewManager(m.db, hclog.Default())

	m.initialized = true
	return nil
}

// RegisterRoutes registers API routes for the media catalog
func (m *Module) RegisterRoutes(router *gin.Engine) {
	if !m.initialized {
		return
	}

	api := router.Group("/api/v1/media")
	{
		api.GET("/candidates", m.manager.handleCandidates)
		api.GET("/:id", m.manager.handleGetItem)
		api.GET("/:id/stream", m.manager.handleStream)
		api.GET("/:id/thumb", m.manager.handleThumbnail)
	}
}

// Manager implements the catalog operations and the media backend surface
// consumed by the wall.
type Manager struct {
	logger hclog.Logger
	store  *Store
}

// NewManager creates a catalog manager
func NewManager(db *gorm.DB, logger hclog.Logger) *Manager {
	return &Manager{
		logger: logger.Named("media-manager"),
		store:  NewStore(db),
	}
}

// Store exposes the underlying catalog store
func (m *Manager) Store() *Store {
	return m.store
}

// ListVideoCandidates returns up to limit video items for wall sampling
func (m *Manager) ListVideoCandidates(ctx context.Context, tagFilter string, limit int) ([]MediaItem, error) {
	return m.store.VideoCandidates(ctx, tagFilter, limit)
}

// IndexFile classifies and upserts one vault file. Audio files and unknown
// extensions are skipped. Images get their dimensions decoded and videos go
// through ffprobe when it is installed, so the mosaic layout and the random
// seek can work with real aspect ratios and durations.
func (m *Manager) IndexFile(ctx context.Context, path string) (bool, error) {
	kind, ok := ClassifyPath(path)
	if !ok {
		return false, nil
	}
	if IsAudioFile(path) {
		m.logger.Debug("skipping audio file", "path", path)
		return false, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	item := &MediaItem{
		Path: path,
		Kind: kind,
		Size: info.Size(),
	}

	switch kind {
	case KindImage, KindGif:
		if w, h, ok := ProbeImageDims(path); ok {
			item.Width = &w
			item.Height = &h
		}
	case KindVideo:
		if IsFFProbeAvailable() {
			probe, err := ProbeVideo(ctx, path)
			if err != nil {
				m.logger.Debug("video probe failed", "path", path, "error", err)
				break
			}
			if probe.Duration > 0 {
				item.Duration = &probe.Duration
			}
			if probe.Width > 0 && probe.Height > 0 {
				item.Width = &probe.Width
				item.Height = &probe.Height
			}
		}
	}

	if err := m.store.UpsertByPath(ctx, item); err != nil {
		return false, err
	}
	return true, nil
}

// RemovePath drops the catalog entry for a deleted file
func (m *Manager) RemovePath(ctx context.Context, path string) error {
	return m.store.RemoveByPath(ctx, path)
}

// RemovePathPrefix drops all catalog entries under a deleted directory
func (m *Manager) RemovePathPrefix(ctx context.Context, prefix string) error {
	return m.store.RemoveByPathPrefix(ctx, prefix)
}

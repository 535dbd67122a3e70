package statsmodule

import (
	"fmt"
	"net/http"
	"runtime"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
	"gorm.io/gorm"

	"github.com/mantonx/mediawall/internal/modules/modulemanager"
)

// Auto-register the module when imported
func init() {
	Register()
}

const (
	ModuleID   = "system.stats"
	ModuleName = "Wall Statistics"
)

// Module persists wall telemetry and serves usage plus host stats
type Module struct {
	id          string
	name        string
	core        bool
	db          *gorm.DB
	logger      hclog.Logger
	recorder    *Recorder
	initialized bool
}

var moduleInstance *Module

// Register registers this module with the module system
func Register() {
	moduleInstance = &Module{
		id:   ModuleID,
		name: ModuleName,
		core: false,
	}
	modulemanager.Register(moduleInstance)
}

// GetRecorder returns the telemetry recorder, nil before init. The nil
// recorder is usable; its methods no-op.
func GetRecorder() *Recorder {
	if moduleInstance == nil {
		return nil
	}
	return moduleInstance.recorder
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

// Migrate handles database schema migrations for telemetry tables
func (m *Module) Migrate(db *gorm.DB) error {
	m.db = db
	return db.AutoMigrate(&WallSession{}, &ShuffleEvent{})
}

// Init initializes the stats module
func (m *Module) Init() error {
	if m.initialized {
		return nil
	}
	if m.db == nil {
		return fmt.Errorf("stats module migrated before database was available")
	}

	m.logger = hclog.Default().Named("stats-module")
	m.recorder = NewRecorder(m.db, hclog.Default())

	m.initialized = true
	return nil
}

// RegisterRoutes registers the stats API
func (m *Module) RegisterRoutes(router *gin.Engine) {
	if !m.initialized {
		return
	}

	api := router.Group("/api/v1/stats")
	{
		api.GET("", m.handleStats)
		api.GET("/sessions", m.handleSessions)
		api.GET("/system", m.handleSystem)
	}
}

// handleStats returns usage counters
func (m *Module) handleStats(c *gin.Context) {
	sessions, err := m.recorder.SessionCount()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	shuffles, err := m.recorder.ShuffleCount()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"sessions": sessions,
		"shuffles": shuffles,
	})
}

func (m *Module) handleSessions(c *gin.Context) {
	limit := 20
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	sessions, err := m.recorder.RecentSessions(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

// handleSystem reports host load for the wall HUD. Partial data is fine;
// fields are omitted when a probe fails.
func (m *Module) handleSystem(c *gin.Context) {
	ctx := c.Request.Context()
	result := gin.H{
		"goroutines": runtime.NumGoroutine(),
	}

	if memStats, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		result["memory_percent"] = memStats.UsedPercent
		result["memory_used"] = memStats.Used
		result["memory_total"] = memStats.Total
	} else {
		m.logger.Debug("memory probe failed", "error", err)
	}

	if cpuPercents, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(cpuPercents) > 0 {
		result["cpu_percent"] = cpuPercents[0]
	} else if err != nil {
		m.logger.Debug("cpu probe failed", "error", err)
	}

	if loadStats, err := load.AvgWithContext(ctx); err == nil {
		result["load1"] = loadStats.Load1
		result["load5"] = loadStats.Load5
		result["load15"] = loadStats.Load15
	}

	c.JSON(http.StatusOK, result)
}

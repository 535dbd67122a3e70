package server

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"

	"github.com/mantonx/mediawall/internal/config"
	"github.com/mantonx/mediawall/internal/database"
	"github.com/mantonx/mediawall/internal/events"
	"github.com/mantonx/mediawall/internal/logger"
	"github.com/mantonx/mediawall/internal/modules/modulemanager"

	// Import all modules to trigger their registration
	_ "github.com/mantonx/mediawall/internal/modules/mediamodule"
	_ "github.com/mantonx/mediawall/internal/modules/statsmodule"
	_ "github.com/mantonx/mediawall/internal/modules/vaultmodule"
	_ "github.com/mantonx/mediawall/internal/modules/wallmodule"
)

var systemEventBus events.EventBus
var moduleInitialized bool

// SetupRouter initializes the event bus and module system and returns the
// configured router.
func SetupRouter() (*gin.Engine, error) {
	cfg := config.Get()
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	if cfg.Server.EnableCORS {
		r.Use(corsMiddleware())
	}

	if err := initializeEventBus(); err != nil {
		return nil, fmt.Errorf("failed to initialize event bus: %w", err)
	}
	if err := initializeModules(); err != nil {
		return nil, fmt.Errorf("failed to initialize modules: %w", err)
	}

	setupRoutes(r)
	modulemanager.RegisterRoutes(r)

	return r, nil
}

// corsMiddleware allows the wall frontend to be served from anywhere
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// initializeEventBus wires the system event bus with database persistence
func initializeEventBus() error {
	if systemEventBus != nil {
		return nil
	}

	db := database.GetDB()
	if err := events.Migrate(db); err != nil {
		return fmt.Errorf("failed to migrate event storage: %w", err)
	}

	busConfig := events.DefaultEventBusConfig()
	systemEventBus = events.NewEventBus(busConfig, hclog.Default().Named("events"), events.NewDatabaseEventStorage(db))

	if err := systemEventBus.Start(context.Background()); err != nil {
		return fmt.Errorf("failed to start event bus: %w", err)
	}

	events.SetGlobalEventBus(systemEventBus)
	logger.Info("Event bus initialized")
	return nil
}

// initializeModules loads every registered module against the database
func initializeModules() error {
	if moduleInitialized {
		return nil
	}

	moduleConfig, err := modulemanager.LoadConfig(modulemanager.GetDefaultConfigPath())
	if err != nil {
		logger.Warn("Failed to load module config: %v", err)
	} else {
		for _, id := range moduleConfig.Modules.Disabled {
			modulemanager.DisableModule(id)
		}
	}

	if err := modulemanager.LoadAll(database.GetDB()); err != nil {
		return err
	}

	moduleInitialized = true
	for _, module := range modulemanager.ListModules() {
		logger.Info("Module loaded: %s (%s)", module.Name(), module.ID())
	}
	return nil
}

// Shutdown stops all modules and the event bus, in reverse start order
func Shutdown() {
	modulemanager.ShutdownAll()

	if systemEventBus != nil {
		systemEventBus.PublishAsync(events.NewSystemEvent(
			events.EventSystemStopped,
			"System stopping",
			"Media wall server is shutting down",
		))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := systemEventBus.Stop(ctx); err != nil {
			logger.Warn("Event bus stop failed: %v", err)
		}
	}
}

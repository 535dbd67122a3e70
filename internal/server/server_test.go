package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mantonx/mediawall/internal/events"
)

// Mirrors the bus wiring in initializeEventBus: persistent storage backed
// by gorm, started at boot and stopped with a deadline at shutdown.
func TestEventBusLifecycle(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, events.Migrate(db))

	bus := events.NewEventBus(events.DefaultEventBusConfig(),
		hclog.NewNullLogger().Named("events"), events.NewDatabaseEventStorage(db))
	require.NoError(t, bus.Start(context.Background()))

	bus.PublishAsync(events.NewSystemEvent(
		events.EventSystemStarted,
		"System starting",
		"Media wall server is starting",
	))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, bus.Stop(ctx))
}

// Before module init there is no wall to report on, so health carries only
// the base fields.
func TestHandleHealth_BeforeInit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/health", handleHealth)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
	assert.NotContains(t, w.Body.String(), `"wall"`)
}

package statsmodule

import (
	"time"

	"github.com/hashicorp/go-hclog"
	"gorm.io/gorm"
)

// Recorder persists wall telemetry. Every write is fire-and-forget: the
// wall must never stall or fail because a stats insert did. All methods
// are safe on a nil receiver so callers can skip the disabled-module check.
type Recorder struct {
	db     *gorm.DB
	logger hclog.Logger
}

// NewRecorder creates a telemetry recorder
func NewRecorder(db *gorm.DB, logger hclog.Logger) *Recorder {
	return &Recorder{
		db:     db,
		logger: logger.Named("stats-recorder"),
	}
}

// RecordSessionStart persists a new wall session
func (r *Recorder) RecordSessionStart(sessionID string, tileCount int) {
	if r == nil {
		return
	}
	go func() {
		session := WallSession{
			ID:        sessionID,
			TileCount: tileCount,
			StartedAt: time.Now(),
		}
		if err := r.db.Create(&session).Error; err != nil {
			r.logger.Debug("session record dropped", "error", err)
		}
	}()
}

// RecordShuffleEvent persists one shuffle; tileIndex -1 means the whole wall
func (r *Recorder) RecordShuffleEvent(sessionID string, tileIndex int) {
	if r == nil {
		return
	}
	go func() {
		event := ShuffleEvent{
			SessionID: sessionID,
			TileIndex: tileIndex,
		}
		if err := r.db.Create(&event).Error; err != nil {
			r.logger.Debug("shuffle record dropped", "error", err)
		}
	}()
}

// SessionCount returns the number of recorded sessions
func (r *Recorder) SessionCount() (int64, error) {
	var count int64
	err := r.db.Model(&WallSession{}).Count(&count).Error
	return count, err
}

// ShuffleCount returns the number of recorded shuffles
func (r *Recorder) ShuffleCount() (int64, error) {
	var count int64
	err := r.db.Model(&ShuffleEvent{}).Count(&count).Error
	return count, err
}

// RecentSessions returns the latest sessions, newest first
func (r *Recorder) RecentSessions(limit int) ([]WallSession, error) {
	var sessions []WallSession
	err := r.db.Order("started_at DESC").Limit(limit).Find(&sessions).Error
	return sessions, err
}

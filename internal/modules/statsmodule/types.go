package statsmodule

import "time"

// WallSession records one wall mount, from page load to teardown
type WallSession struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	TileCount int       `json:"tile_count"`
	StartedAt time.Time `json:"started_at"`
}

// TableName returns the table name for WallSession
func (WallSession) TableName() string {
	return "wall_sessions"
}

// ShuffleEvent records one shuffle; TileIndex is -1 for a full-wall shuffle
type ShuffleEvent struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID string    `gorm:"index" json:"session_id"`
	TileIndex int       `json:"tile_index"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the table name for ShuffleEvent
func (ShuffleEvent) TableName() string {
	return "wall_shuffle_events"
}

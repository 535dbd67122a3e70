package wallmodule

import (
	"context"

	"github.com/mantonx/mediawall/internal/modules/mediamodule"
	"github.com/mantonx/mediawall/internal/modules/wallmodule/layout"
)

// MediaBackend is the capability surface the wall consumes for media lookup
// and URL resolution. URL methods report a miss with ok=false instead of an
// error; a miss is an expected outcome (unknown id, missing thumbnail), not
// a failure.
type MediaBackend interface {
	ListVideoCandidates(ctx context.Context, tagFilter string, limit int) ([]mediamodule.MediaItem, error)
	GetLowResURL(ctx context.Context, id string, maxHeight int) (string, bool)
	GetPlayableURL(ctx context.Context, id string, forceTranscode bool) (string, bool)
	GetThumbnailURL(ctx context.Context, id string) (string, bool)
}

// StatsRecorder receives fire-and-forget wall telemetry. Implementations
// must not block; failures are swallowed.
type StatsRecorder interface {
	RecordSessionStart(sessionID string, tileCount int)
	RecordShuffleEvent(sessionID string, tileIndex int)
}

// noopStats is used when the stats module is disabled
type noopStats struct{}

func (noopStats) RecordSessionStart(string, int) {}
func (noopStats) RecordShuffleEvent(string, int) {}

// TileSnapshot is the wire representation of one tile's current state
type TileSnapshot struct {
	Index    int         `json:"index"`
	Status   TileStatus  `json:"status"`
	MediaID  string      `json:"media_id,omitempty"`
	URL      string      `json:"url,omitempty"`
	Thumb    string      `json:"thumb,omitempty"`
	Duration float64     `json:"duration,omitempty"`
	Seek     float64     `json:"seek,omitempty"`
	Rect     layout.Rect `json:"rect"`
}

// WallSnapshot is the full wall state pushed to clients
type WallSnapshot struct {
	SessionID  string         `json:"session_id"`
	TileCount  int            `json:"tile_count"`
	LayoutMode layout.Mode    `json:"layout_mode"`
	Muted      bool           `json:"muted"`
	HUD        bool           `json:"hud"`
	PoolSize   int            `json:"pool_size"`
	PoolError  string         `json:"pool_error,omitempty"`
	Broken     int            `json:"broken"`
	Tiles      []TileSnapshot `json:"tiles"`
}

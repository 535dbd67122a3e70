package mediamodule

import (
	"context"
	"fmt"
)

// GetPlayableURL returns the stream URL for a video item. forceTranscode asks
// the player pipeline to remux/transcode rather than direct-play; the hint is
// carried as a query parameter on the same route.
func (m *Manager) GetPlayableURL(ctx context.Context, id string, forceTranscode bool) (string, bool) {
	item, err := m.store.GetByID(ctx, id)
	if err != nil {
		return "", false
	}
	if item.Kind != KindVideo {
		return "", false
	}

	url := fmt.Sprintf("/api/v1/media/%s/stream", item.ID)
	if forceTranscode {
		url += "?transcode=1"
	}
	return url, true
}

// GetLowResUrl returns a reduced-height stream URL used by dense walls.
// Misses when the item is unknown or not a video.
func (m *Manager) GetLowResURL(ctx context.Context, id string, maxHeight int) (string, bool) {
	item, err := m.store.GetByID(ctx, id)
	if err != nil {
		return "", false
	}
	if item.Kind != KindVideo || maxHeight <= 0 {
		return "", false
	}

	return fmt.Sprintf("/api/v1/media/%s/stream?h=%d", item.ID, maxHeight), true
}

// GetThumbnailURL returns the thumbnail URL, missing when none was captured
func (m *Manager) GetThumbnailURL(ctx context.Context, id string) (string, bool) {
	item, err := m.store.GetByID(ctx, id)
	if err != nil {
		return "", false
	}
	if item.ThumbnailPath == "" {
		return "", false
	}

	return fmt.Sprintf("/api/v1/media/%s/thumb", item.ID), true
}

package mediamodule

import (
	"strings"
	"time"
)

// MediaKind classifies catalog entries
type MediaKind string

const (
	KindVideo MediaKind = "video"
	KindImage MediaKind = "image"
	KindGif   MediaKind = "gif"
)

// defaultAspectRatio is assumed when an item's dimensions are unknown.
const defaultAspectRatio = 16.0 / 9.0

// MediaItem represents one vault file in the catalog
type MediaItem struct {
	ID            string    `gorm:"primaryKey" json:"id"`
	Path          string    `gorm:"uniqueIndex;not null" json:"path"`
	Kind          MediaKind `gorm:"not null;index" json:"kind"`
	Size          int64     `json:"size"`
	Duration      *float64  `json:"duration,omitempty"`
	Width         *int      `json:"width,omitempty"`
	Height        *int      `json:"height,omitempty"`
	ThumbnailPath string    `json:"thumbnail_path,omitempty"`
	Tags          string    `gorm:"index" json:"tags,omitempty"` // comma-separated
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName returns the table name for MediaItem
func (MediaItem) TableName() string {
	return "media_items"
}

// AspectRatio returns width/height, or 16:9 when dimensions are unknown
func (m *MediaItem) AspectRatio() float64 {
	if m.Width != nil && m.Height != nil && *m.Width > 0 && *m.Height > 0 {
		return float64(*m.Width) / float64(*m.Height)
	}
	return defaultAspectRatio
}

// TagList splits the comma-separated tag column
func (m *MediaItem) TagList() []string {
	if m.Tags == "" {
		return nil
	}
	parts := strings.Split(m.Tags, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

package mediamodule

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned when an item id has no catalog entry
var ErrNotFound = errors.New("media item not found")

// Store wraps catalog queries over gorm
type Store struct {
	db *gorm.DB
}

// NewStore creates a catalog store
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// VideoCandidates returns up to limit video items, optionally filtered by tag.
// Items are returned in insertion order; callers do their own sampling.
func (s *Store) VideoCandidates(ctx context.Context, tagFilter string, limit int) ([]MediaItem, error) {
	query := s.db.WithContext(ctx).Where("kind = ?", KindVideo)

	if tagFilter != "" {
		query = query.Where("tags LIKE ?", "%"+strings.TrimSpace(tagFilter)+"%")
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var items []MediaItem
	if err := query.Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to query video candidates: %w", err)
	}
	return items, nil
}

// GetByID returns one item or ErrNotFound
func (s *Store) GetByID(ctx context.Context, id string) (*MediaItem, error) {
	var item MediaItem
	err := s.db.WithContext(ctx).First(&item, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load media item %s: %w", id, err)
	}
	return &item, nil
}

// UpsertByPath inserts or refreshes a catalog entry keyed by vault path
func (s *Store) UpsertByPath(ctx context.Context, item *MediaItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "path"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"kind", "size", "duration", "width", "height", "thumbnail_path", "tags", "updated_at",
		}),
	}).Create(item).Error
	if err != nil {
		return fmt.Errorf("failed to upsert media item %s: %w", item.Path, err)
	}
	return nil
}

// RemoveByPath deletes the entry for an exact vault path
func (s *Store) RemoveByPath(ctx context.Context, path string) error {
	return s.db.WithContext(ctx).Where("path = ?", path).Delete(&MediaItem{}).Error
}

// RemoveByPathPrefix deletes all entries under a vault directory
func (s *Store) RemoveByPathPrefix(ctx context.Context, prefix string) error {
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return s.db.WithContext(ctx).Where("path LIKE ?", prefix+"%").Delete(&MediaItem{}).Error
}

// Count returns the total catalog size
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&MediaItem{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

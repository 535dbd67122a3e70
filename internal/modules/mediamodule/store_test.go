package mediamodule

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&MediaItem{}))

	return NewStore(db)
}

func seedItem(t *testing.T, store *Store, path string, kind MediaKind, tags string) *MediaItem {
	t.Helper()
	item := &MediaItem{Path: path, Kind: kind, Tags: tags}
	require.NoError(t, store.UpsertByPath(context.Background(), item))
	return item
}

func TestStore_VideoCandidates(t *testing.T) {
	store := newTestStore(t)

	for i := 0; i < 5; i++ {
		seedItem(t, store, fmt.Sprintf("/vault/video%d.mp4", i), KindVideo, "")
	}
	seedItem(t, store, "/vault/pic.jpg", KindImage, "")
	seedItem(t, store, "/vault/anim.gif", KindGif, "")

	items, err := store.VideoCandidates(context.Background(), "", 200)
	require.NoError(t, err)
	assert.Len(t, items, 5)
	for _, item := range items {
		assert.Equal(t, KindVideo, item.Kind)
	}
}

func TestStore_VideoCandidates_TagFilterAndLimit(t *testing.T) {
	store := newTestStore(t)

	seedItem(t, store, "/vault/a.mp4", KindVideo, "amateur,pov")
	seedItem(t, store, "/vault/b.mp4", KindVideo, "pov")
	seedItem(t, store, "/vault/c.mp4", KindVideo, "compilation")

	items, err := store.VideoCandidates(context.Background(), "pov", 200)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	items, err = store.VideoCandidates(context.Background(), "", 2)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestStore_UpsertByPath_Idempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := seedItem(t, store, "/vault/a.mp4", KindVideo, "")
	require.NotEmpty(t, first.ID)

	// Second upsert for the same path must update, not duplicate
	w, h := 1920, 1080
	require.NoError(t, store.UpsertByPath(ctx, &MediaItem{
		Path: "/vault/a.mp4", Kind: KindVideo, Width: &w, Height: &h,
	}))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestStore_GetByID_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_RemoveByPathPrefix(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seedItem(t, store, "/vault/sub/a.mp4", KindVideo, "")
	seedItem(t, store, "/vault/sub/b.mp4", KindVideo, "")
	seedItem(t, store, "/vault/other.mp4", KindVideo, "")

	require.NoError(t, store.RemoveByPathPrefix(ctx, "/vault/sub"))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestMediaItem_AspectRatio(t *testing.T) {
	w, h := 1080, 1920
	zero := 0

	tests := []struct {
		name string
		item MediaItem
		want float64
	}{
		{name: "missing dimensions default to 16:9", item: MediaItem{}, want: 16.0 / 9.0},
		{name: "portrait", item: MediaItem{Width: &w, Height: &h}, want: 1080.0 / 1920.0},
		{name: "zero dimensions default to 16:9", item: MediaItem{Width: &zero, Height: &zero}, want: 16.0 / 9.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.item.AspectRatio(), 1e-9)
		})
	}
}

func TestMediaItem_TagList(t *testing.T) {
	item := MediaItem{Tags: "amateur, pov ,,solo"}
	assert.Equal(t, []string{"amateur", "pov", "solo"}, item.TagList())

	empty := MediaItem{}
	assert.Nil(t, empty.TagList())
}

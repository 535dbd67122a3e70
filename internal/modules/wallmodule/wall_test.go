package wallmodule

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mantonx/mediawall/internal/modules/mediamodule"
	"github.com/mantonx/mediawall/internal/modules/wallmodule/admission"
)

type playableCall struct {
	id    string
	force bool
}

// fakeBackend serves a fixed pool and records URL requests
type fakeBackend struct {
	mu            sync.Mutex
	items         []mediamodule.MediaItem
	listErr       error
	playableCalls []playableCall
}

func (b *fakeBackend) ListVideoCandidates(_ context.Context, _ string, limit int) ([]mediamodule.MediaItem, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listErr != nil {
		return nil, b.listErr
	}
	items := b.items
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return append([]mediamodule.MediaItem(nil), items...), nil
}

func (b *fakeBackend) GetLowResURL(_ context.Context, id string, maxHeight int) (string, bool) {
	return fmt.Sprintf("/media/%s/stream?h=%d", id, maxHeight), true
}

func (b *fakeBackend) GetPlayableURL(_ context.Context, id string, force bool) (string, bool) {
	b.mu.Lock()
	b.playableCalls = append(b.playableCalls, playableCall{id: id, force: force})
	b.mu.Unlock()
	if force {
		return "/media/" + id + "/stream?transcode=1", true
	}
	return "/media/" + id + "/stream", true
}

func (b *fakeBackend) GetThumbnailURL(_ context.Context, _ string) (string, bool) {
	return "", false
}

func (b *fakeBackend) forcedCalls(id string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, call := range b.playableCalls {
		if call.id == id && call.force {
			n++
		}
	}
	return n
}

func videoPool(n int) []mediamodule.MediaItem {
	duration := 60.0
	items := make([]mediamodule.MediaItem, n)
	for i := range items {
		items[i] = mediamodule.MediaItem{
			ID:       fmt.Sprintf("vid-%02d", i),
			Path:     fmt.Sprintf("/vault/vid-%02d.mp4", i),
			Kind:     mediamodule.KindVideo,
			Duration: &duration,
		}
	}
	return items
}

func newTestWall(t *testing.T, backend *fakeBackend, tileCount, slots int) *Wall {
	t.Helper()

	w := NewWall(backend, admission.NewController(slots, hclog.NewNullLogger()), nil, nil, hclog.NewNullLogger(), Options{
		TileCount:   tileCount,
		StaggerStep: time.Millisecond,
		Seed:        1,
	})
	t.Cleanup(w.Dispose)
	return w
}

func visibleIDs(w *Wall) []string {
	snap := w.Snapshot()
	ids := make([]string, 0, len(snap.Tiles))
	for _, tile := range snap.Tiles {
		if tile.MediaID != "" {
			ids = append(ids, tile.MediaID)
		}
	}
	return ids
}

func waitAllReady(t *testing.T, w *Wall) {
	t.Helper()
	require.Eventually(t, func() bool {
		snap := w.Snapshot()
		if len(snap.Tiles) == 0 {
			return false
		}
		for _, tile := range snap.Tiles {
			if tile.Status != StatusReady {
				return false
			}
		}
		return true
	}, 5*time.Second, 10*time.Millisecond)
}

func TestWall_LoadPoolFiltersToVideos(t *testing.T) {
	backend := &fakeBackend{items: videoPool(5)}
	backend.items = append(backend.items, mediamodule.MediaItem{
		ID: "img-1", Path: "/vault/pic.png", Kind: mediamodule.KindImage,
	})

	w := newTestWall(t, backend, 9, 50)
	require.NoError(t, w.LoadPool(context.Background()))

	snap := w.Snapshot()
	assert.Equal(t, 5, snap.PoolSize)
	assert.Empty(t, snap.PoolError)
}

func TestWall_LoadPoolFailsOnEmptyVault(t *testing.T) {
	w := newTestWall(t, &fakeBackend{}, 9, 50)

	err := w.LoadPool(context.Background())
	require.Error(t, err)
	assert.NotEmpty(t, w.Snapshot().PoolError)

	// A later successful load clears the error state
	w.backend.(*fakeBackend).items = videoPool(3)
	require.NoError(t, w.LoadPool(context.Background()))
	assert.Empty(t, w.Snapshot().PoolError)
}

func TestWall_LoadPoolFailsOnBackendError(t *testing.T) {
	w := newTestWall(t, &fakeBackend{listErr: assert.AnError}, 9, 50)

	require.Error(t, w.LoadPool(context.Background()))
	assert.NotEmpty(t, w.Snapshot().PoolError)
}

func TestWall_ShuffleAllSelectsDistinctPoolItems(t *testing.T) {
	backend := &fakeBackend{items: videoPool(20)}
	w := newTestWall(t, backend, 9, 50)
	require.NoError(t, w.LoadPool(context.Background()))

	w.ShuffleAll()

	snap := w.Snapshot()
	require.Len(t, snap.Tiles, 9)

	seen := map[string]bool{}
	for _, tile := range snap.Tiles {
		require.NotEmpty(t, tile.MediaID)
		assert.False(t, seen[tile.MediaID], "duplicate item %s", tile.MediaID)
		seen[tile.MediaID] = true
	}

	// Mosaic rects tile the full container
	area := 0.0
	for _, tile := range snap.Tiles {
		area += tile.Rect.Width * tile.Rect.Height
	}
	assert.InDelta(t, 100.0*100.0, area, 1e-6)

	waitAllReady(t, w)
}

func TestWall_ShuffleExcludesBrokenItems(t *testing.T) {
	backend := &fakeBackend{items: videoPool(20)}
	w := newTestWall(t, backend, 9, 50)
	require.NoError(t, w.LoadPool(context.Background()))

	for i := 0; i < 15; i++ {
		w.markBroken(fmt.Sprintf("vid-%02d", i))
	}
	w.ShuffleAll()

	ids := visibleIDs(w)
	require.Len(t, ids, 5, "only the unbroken items remain eligible")
	for _, id := range ids {
		assert.GreaterOrEqual(t, id, "vid-15")
	}
}

func TestWall_ShuffleOneAvoidsVisibleDuplicates(t *testing.T) {
	backend := &fakeBackend{items: videoPool(12)}
	w := newTestWall(t, backend, 9, 50)
	require.NoError(t, w.LoadPool(context.Background()))
	w.ShuffleAll()

	for i := 0; i < 20; i++ {
		w.ShuffleOne(0)

		ids := visibleIDs(w)
		require.Len(t, ids, 9)
		seen := map[string]bool{}
		for _, id := range ids {
			require.False(t, seen[id], "duplicate visible item %s", id)
			seen[id] = true
		}
	}
}

func TestWall_ShuffleOneNoopWhenExhausted(t *testing.T) {
	backend := &fakeBackend{items: videoPool(9)}
	w := newTestWall(t, backend, 9, 50)
	require.NoError(t, w.LoadPool(context.Background()))
	w.ShuffleAll()

	before := visibleIDs(w)
	require.Len(t, before, 9)

	// The whole pool is on screen and tile 0's own item is broken, so no
	// eligible replacement exists
	w.markBroken(before[0])
	w.ShuffleOne(0)

	assert.Equal(t, before, visibleIDs(w))
}

func TestWall_BrokenSurvivesPoolReload(t *testing.T) {
	backend := &fakeBackend{items: videoPool(10)}
	w := newTestWall(t, backend, 4, 50)
	require.NoError(t, w.LoadPool(context.Background()))
	w.ShuffleAll()

	w.markBroken("vid-03")
	require.NoError(t, w.Reload(context.Background()))

	assert.Equal(t, 1, w.BrokenCount())
	assert.NotContains(t, visibleIDs(w), "vid-03")

	// Repeated shuffles after the reload never resurrect it
	for i := 0; i < 10; i++ {
		w.ShuffleAll()
		assert.NotContains(t, visibleIDs(w), "vid-03")
	}
}

func TestWall_ErrorLadderEndToEnd(t *testing.T) {
	backend := &fakeBackend{items: videoPool(3)}
	w := newTestWall(t, backend, 2, 50)
	require.NoError(t, w.LoadPool(context.Background()))
	w.ShuffleAll()
	waitAllReady(t, w)

	victim := w.Snapshot().Tiles[0].MediaID
	require.NotEmpty(t, victim)

	// First playback error: the tile refetches with forced transcode
	require.True(t, w.TileEvent(0, PlaybackErrorEvent{}))
	require.Eventually(t, func() bool {
		return backend.forcedCalls(victim) == 1
	}, 5*time.Second, 10*time.Millisecond)
	assert.Zero(t, w.BrokenCount())

	// Second error: the item lands in the broken set and the tile moves on
	require.True(t, w.TileEvent(0, PlaybackErrorEvent{}))
	require.Eventually(t, func() bool {
		return w.BrokenCount() == 1 && !contains(visibleIDs(w), victim)
	}, 5*time.Second, 10*time.Millisecond)
}

func TestWall_AdmissionBoundsConcurrentDecoders(t *testing.T) {
	backend := &fakeBackend{items: videoPool(20)}
	w := newTestWall(t, backend, 12, 6)
	require.NoError(t, w.LoadPool(context.Background()))
	w.ShuffleAll()

	// Six tiles get slots and finish loading; the other six stay queued
	// because ready tiles keep their slot until replaced.
	require.Eventually(t, func() bool {
		return w.Admission().Active() == 6 && w.Admission().Waiting() == 6
	}, 5*time.Second, 10*time.Millisecond)

	// Replacing a loaded tile frees its slot for a queued one
	snap := w.Snapshot()
	for _, tile := range snap.Tiles {
		if tile.Status == StatusReady {
			w.ShuffleOne(tile.Index)
			break
		}
	}
	require.Eventually(t, func() bool {
		return w.Admission().Active() == 6
	}, 5*time.Second, 10*time.Millisecond)

	w.Dispose()
	require.Eventually(t, func() bool {
		return w.Admission().Active() == 0 && w.Admission().Waiting() == 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestWall_SetTileCountClampsAndReshuffles(t *testing.T) {
	backend := &fakeBackend{items: videoPool(40)}
	w := newTestWall(t, backend, 9, 100)
	require.NoError(t, w.LoadPool(context.Background()))
	w.ShuffleAll()

	w.SetTileCount(context.Background(), 100)
	assert.Equal(t, 30, w.TileCount())
	assert.Len(t, w.Snapshot().Tiles, 30)

	w.SetTileCount(context.Background(), 0)
	assert.Equal(t, 2, w.TileCount())
	assert.Len(t, w.Snapshot().Tiles, 2)
}

func TestWall_Commands(t *testing.T) {
	backend := &fakeBackend{items: videoPool(5)}
	w := newTestWall(t, backend, 4, 50)
	require.NoError(t, w.LoadPool(context.Background()))

	muted := w.Snapshot().Muted
	assert.True(t, w.Command("m"))
	assert.Equal(t, !muted, w.Snapshot().Muted)

	hud := w.Snapshot().HUD
	assert.True(t, w.Command("H"))
	assert.Equal(t, !hud, w.Snapshot().HUD)

	assert.True(t, w.Command("s"))
	assert.True(t, w.Command("F"))
	assert.False(t, w.Command("q"))
}

func TestWall_DisposeIsIdempotent(t *testing.T) {
	backend := &fakeBackend{items: videoPool(5)}
	w := newTestWall(t, backend, 4, 50)
	require.NoError(t, w.LoadPool(context.Background()))
	w.ShuffleAll()

	w.Dispose()
	assert.NotPanics(t, w.Dispose)

	// A disposed wall ignores shuffles
	w.ShuffleAll()
	assert.Empty(t, w.Snapshot().Tiles)
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

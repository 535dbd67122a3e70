package wallmodule

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/mantonx/mediawall/internal/events"
	"github.com/mantonx/mediawall/internal/modules/mediamodule"
	"github.com/mantonx/mediawall/internal/modules/wallmodule/admission"
	"github.com/mantonx/mediawall/internal/modules/wallmodule/layout"
)

// Bounds on the user-adjustable tile count
const (
	MinTileCount = 2
	MaxTileCount = 30
)

// Options configures a Wall
type Options struct {
	TileCount   int
	LayoutMode  layout.Mode
	PoolSize    int
	StaggerStep time.Duration
	Muted       bool
	TagFilter   string
	// Seed fixes the sampling RNG for tests; 0 means seed from the clock
	Seed int64
}

// Wall owns the tile array, the candidate pool, and the broken set. It is
// the only component that mutates any of them; tiles reach back in solely
// through markBroken and ShuffleOne.
type Wall struct {
	logger    hclog.Logger
	backend   MediaBackend
	stats     StatsRecorder
	bus       events.EventBus
	hub       *Hub
	admission *admission.Controller

	mu          sync.Mutex
	rng         *rand.Rand
	sessionID   string
	tileCount   int
	layoutMode  layout.Mode
	poolSize    int
	staggerStep time.Duration
	tagFilter   string
	muted       bool
	hud         bool
	pool        []mediamodule.MediaItem
	poolErr     string
	broken      map[string]struct{}
	runners     []*tileRunner
	vaultSub    *events.Subscription
	disposed    bool
}

// NewWall constructs a wall. bus and stats may be nil; a nil bus disables
// vault-change reloads, a nil stats recorder drops telemetry.
func NewWall(backend MediaBackend, ctrl *admission.Controller, stats StatsRecorder, bus events.EventBus, logger hclog.Logger, opts Options) *Wall {
	if opts.TileCount < MinTileCount {
		opts.TileCount = MinTileCount
	}
	if opts.TileCount > MaxTileCount {
		opts.TileCount = MaxTileCount
	}
	if opts.LayoutMode == "" {
		opts.LayoutMode = layout.ModeMosaic
	}
	if opts.PoolSize <= 0 {
		opts.PoolSize = 200
	}
	if opts.StaggerStep <= 0 {
		opts.StaggerStep = 100 * time.Millisecond
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if stats == nil {
		stats = noopStats{}
	}

	return &Wall{
		logger:      logger.Named("wall"),
		backend:     backend,
		stats:       stats,
		bus:         bus,
		hub:         NewHub(logger),
		admission:   ctrl,
		rng:         rand.New(rand.NewSource(seed)),
		sessionID:   uuid.NewString(),
		tileCount:   opts.TileCount,
		layoutMode:  opts.LayoutMode,
		poolSize:    opts.PoolSize,
		staggerStep: opts.StaggerStep,
		tagFilter:   opts.TagFilter,
		muted:       opts.Muted,
		hud:         true,
		broken:      make(map[string]struct{}),
	}
}

// SessionID returns the wall session identifier
func (w *Wall) SessionID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sessionID
}

// Hub returns the websocket hub for client connections
func (w *Wall) Hub() *Hub { return w.hub }

// Admission returns the decoder admission controller
func (w *Wall) Admission() *admission.Controller { return w.admission }

// Start loads the pool, populates the tiles, and subscribes to vault
// changes. A pool-load failure is returned but leaves the wall serving its
// error state; Reload retries it.
func (w *Wall) Start(ctx context.Context) error {
	go w.hub.Run()

	if w.bus != nil {
		sub, err := w.bus.Subscribe(ctx, events.EventFilter{
			Types: []events.EventType{events.EventVaultChanged},
		}, w.onVaultChanged)
		if err != nil {
			w.logger.Warn("vault change subscription failed", "error", err)
		} else {
			w.mu.Lock()
			w.vaultSub = sub
			w.mu.Unlock()
		}
	}

	w.stats.RecordSessionStart(w.SessionID(), w.TileCount())
	w.publish(events.EventWallSessionStarted, "Wall session started", "")

	if err := w.LoadPool(ctx); err != nil {
		return err
	}
	w.ShuffleAll()
	return nil
}

// LoadPool fetches candidate videos from the media backend. An empty result
// is an error; the wall shows it with a retry affordance instead of looping.
func (w *Wall) LoadPool(ctx context.Context) error {
	w.mu.Lock()
	size := w.poolSize
	filter := w.tagFilter
	w.mu.Unlock()

	items, err := w.backend.ListVideoCandidates(ctx, filter, size)
	if err == nil {
		videos := items[:0]
		for _, item := range items {
			if item.Kind == mediamodule.KindVideo {
				videos = append(videos, item)
			}
		}
		items = videos
		if len(items) == 0 {
			err = fmt.Errorf("no playable videos in vault")
		}
	}

	w.mu.Lock()
	if err != nil {
		w.pool = nil
		w.poolErr = err.Error()
		w.mu.Unlock()
		w.logger.Error("pool load failed", "error", err)
		w.notifyChanged()
		return err
	}
	w.pool = items
	w.poolErr = ""
	w.mu.Unlock()

	w.logger.Info("pool loaded", "candidates", len(items))
	w.publish(events.EventWallPoolReloaded, "Pool reloaded", fmt.Sprintf("%d candidates", len(items)))
	return nil
}

// Reload refetches the pool and reshuffles, preserving tile count and
// layout mode.
func (w *Wall) Reload(ctx context.Context) error {
	if err := w.LoadPool(ctx); err != nil {
		return err
	}
	w.ShuffleAll()
	return nil
}

// ShuffleAll replaces every tile with a fresh sample from the pool
func (w *Wall) ShuffleAll() {
	w.mu.Lock()
	if w.disposed {
		w.mu.Unlock()
		return
	}
	items := w.sampleLocked(w.tileCount, nil)

	old := w.runners
	w.runners = make([]*tileRunner, len(items))
	for i := range items {
		machine := NewTileMachine(i, w.tileCount, w.staggerStep, w.tileRNGLocked())
		w.runners[i] = newTileRunner(w, machine)
	}
	runners := w.runners
	sessionID := w.sessionID
	w.mu.Unlock()

	for _, r := range old {
		r.dispose()
	}
	for i, r := range runners {
		r.bind(items[i])
	}

	w.stats.RecordShuffleEvent(sessionID, -1)
	w.publish(events.EventWallShuffled, "Wall shuffled", "")
	w.logger.Debug("shuffled all tiles", "tiles", len(runners))
	w.notifyChanged()
}

// ShuffleOne replaces a single tile, excluding broken items and everything
// currently visible in other tiles. If no eligible candidate remains the
// tile is left alone.
func (w *Wall) ShuffleOne(index int) {
	w.mu.Lock()
	if w.disposed || index < 0 || index >= len(w.runners) {
		w.mu.Unlock()
		return
	}

	exclude := make(map[string]struct{})
	for i, r := range w.runners {
		if i == index {
			continue
		}
		if id, ok := r.itemID(); ok {
			exclude[id] = struct{}{}
		}
	}

	items := w.sampleLocked(1, exclude)
	if len(items) == 0 {
		w.mu.Unlock()
		w.logger.Debug("no eligible replacement", "tile", index)
		return
	}

	old := w.runners[index]
	machine := NewTileMachine(index, w.tileCount, w.staggerStep, w.tileRNGLocked())
	runner := newTileRunner(w, machine)
	w.runners[index] = runner
	sessionID := w.sessionID
	w.mu.Unlock()

	old.dispose()
	runner.bind(items[0])

	w.stats.RecordShuffleEvent(sessionID, index)
	w.notifyChanged()
}

// tileRNGLocked derives an independent RNG for one tile machine. Tile seeks
// happen on runner goroutines, so sharing w.rng would race. Caller holds
// w.mu.
func (w *Wall) tileRNGLocked() func() float64 {
	src := rand.New(rand.NewSource(w.rng.Int63()))
	return src.Float64
}

// sampleLocked draws n distinct items from the pool via a partial
// Fisher-Yates, skipping broken items and the extra exclusions. Caller
// holds w.mu. Each length-n prefix permutation of the eligible set is
// equally likely; cost is O(n), not O(pool).
func (w *Wall) sampleLocked(n int, exclude map[string]struct{}) []mediamodule.MediaItem {
	eligible := make([]mediamodule.MediaItem, 0, len(w.pool))
	for _, item := range w.pool {
		if _, bad := w.broken[item.ID]; bad {
			continue
		}
		if _, skip := exclude[item.ID]; skip {
			continue
		}
		eligible = append(eligible, item)
	}

	if n > len(eligible) {
		n = len(eligible)
	}
	for i := 0; i < n; i++ {
		j := i + w.rng.Intn(len(eligible)-i)
		eligible[i], eligible[j] = eligible[j], eligible[i]
	}
	return eligible[:n]
}

// markBroken permanently excludes an item for the rest of the session.
// Reshuffling the affected tile is the caller's job.
func (w *Wall) markBroken(id string) {
	w.mu.Lock()
	if _, dup := w.broken[id]; dup {
		w.mu.Unlock()
		return
	}
	w.broken[id] = struct{}{}
	total := len(w.broken)
	w.mu.Unlock()

	w.logger.Warn("media item marked broken", "id", id, "broken_total", total)
	if w.bus != nil {
		w.bus.PublishAsync(events.NewEventWithData(
			events.EventWallTileBroken, "wallmodule", "Tile broken", "",
			map[string]interface{}{"media_id": id},
		))
	}
}

// onVaultChanged reloads the pool when the vault reports file changes,
// keeping the current tile count and layout mode.
func (w *Wall) onVaultChanged(event events.Event) error {
	w.logger.Info("vault changed, reloading pool", "source", event.Source)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return w.Reload(ctx)
}

// TileCount returns the current tile count
func (w *Wall) TileCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tileCount
}

// SetTileCount clamps n to the allowed range and reshuffles the wall with
// the new count. The pool is reused; no refetch happens unless it is empty.
func (w *Wall) SetTileCount(ctx context.Context, n int) {
	if n < MinTileCount {
		n = MinTileCount
	}
	if n > MaxTileCount {
		n = MaxTileCount
	}

	w.mu.Lock()
	if n == w.tileCount {
		w.mu.Unlock()
		return
	}
	w.tileCount = n
	empty := len(w.pool) == 0
	w.mu.Unlock()

	if empty {
		if err := w.LoadPool(ctx); err != nil {
			return
		}
	}
	w.ShuffleAll()
}

// SetLayoutMode switches between mosaic and grid
func (w *Wall) SetLayoutMode(mode layout.Mode) {
	if mode != layout.ModeMosaic && mode != layout.ModeGrid {
		return
	}
	w.mu.Lock()
	w.layoutMode = mode
	w.mu.Unlock()
	w.notifyChanged()
}

// SetMuted sets the wall-wide mute flag
func (w *Wall) SetMuted(muted bool) {
	w.mu.Lock()
	w.muted = muted
	w.mu.Unlock()
	w.notifyChanged()
}

// SetHUD toggles the on-screen HUD flag
func (w *Wall) SetHUD(hud bool) {
	w.mu.Lock()
	w.hud = hud
	w.mu.Unlock()
	w.notifyChanged()
}

// Command handles a keyboard shortcut. S shuffles, M toggles mute, H
// toggles the HUD; F is forwarded to clients, fullscreen is theirs to do.
func (w *Wall) Command(key string) bool {
	switch strings.ToUpper(key) {
	case "S", "SHUFFLE":
		w.ShuffleAll()
	case "M", "MUTE":
		w.mu.Lock()
		w.muted = !w.muted
		w.mu.Unlock()
		w.notifyChanged()
	case "H", "HUD":
		w.mu.Lock()
		w.hud = !w.hud
		w.mu.Unlock()
		w.notifyChanged()
	case "F", "FULLSCREEN":
		w.hub.BroadcastCommand("fullscreen")
	default:
		return false
	}
	return true
}

// TileEvent dispatches a player-reported event to the tile at index
func (w *Wall) TileEvent(index int, ev TileEvent) bool {
	w.mu.Lock()
	if index < 0 || index >= len(w.runners) {
		w.mu.Unlock()
		return false
	}
	runner := w.runners[index]
	w.mu.Unlock()

	runner.step(ev)
	return true
}

// Snapshot renders the full wall state, layout rects included
func (w *Wall) Snapshot() WallSnapshot {
	w.mu.Lock()
	runners := make([]*tileRunner, len(w.runners))
	copy(runners, w.runners)
	snap := WallSnapshot{
		SessionID:  w.sessionID,
		TileCount:  w.tileCount,
		LayoutMode: w.layoutMode,
		Muted:      w.muted,
		HUD:        w.hud,
		PoolSize:   len(w.pool),
		PoolError:  w.poolErr,
		Broken:     len(w.broken),
	}
	mode := w.layoutMode
	w.mu.Unlock()

	aspects := make([]float64, len(runners))
	tiles := make([]TileSnapshot, len(runners))
	for i, r := range runners {
		aspects[i] = r.aspect()
		tiles[i] = r.snapshot()
	}

	rects := layout.Compute(mode, aspects)
	for i := range tiles {
		tiles[i].Rect = rects[i]
	}
	snap.Tiles = tiles
	return snap
}

// BrokenCount returns the number of permanently excluded items
func (w *Wall) BrokenCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.broken)
}

// notifyChanged pushes a fresh snapshot to connected clients
func (w *Wall) notifyChanged() {
	w.hub.BroadcastSnapshot(w.Snapshot())
}

func (w *Wall) publish(eventType events.EventType, title, message string) {
	if w.bus == nil {
		return
	}
	w.bus.PublishAsync(events.NewEvent(eventType, "wallmodule", title, message))
}

// Dispose tears down the wall: every tile runner, the vault subscription,
// and the client hub.
func (w *Wall) Dispose() {
	w.mu.Lock()
	if w.disposed {
		w.mu.Unlock()
		return
	}
	w.disposed = true
	runners := w.runners
	w.runners = nil
	sub := w.vaultSub
	w.vaultSub = nil
	w.mu.Unlock()

	for _, r := range runners {
		r.dispose()
	}
	if sub != nil && w.bus != nil {
		if err := w.bus.Unsubscribe(sub.ID); err != nil {
			w.logger.Warn("unsubscribe failed", "error", err)
		}
	}
	w.hub.Stop()
	w.logger.Info("wall disposed", "session", w.sessionID)
}

package wallmodule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mantonx/mediawall/internal/modules/mediamodule"
)

// tileRunner drives one TileMachine: it executes the effects the machine
// emits (timers, slot acquisition, URL fetches) and feeds the results back
// in as events. All machine access goes through step() under mu.
//
// Teardown is a single path: dispose() cancels the context (aborting any
// queued slot wait and in-flight fetch), stops the stagger timer, and
// releases a granted slot. Everything the runner allocates is reclaimed
// there, whether or not the tile ever reached ready.
type tileRunner struct {
	machine *TileMachine
	wall    *Wall

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	timer    *time.Timer
	release  func()
	seekPos  float64
	disposed bool
}

func newTileRunner(wall *Wall, machine *TileMachine) *tileRunner {
	ctx, cancel := context.WithCancel(context.Background())
	return &tileRunner{
		machine: machine,
		wall:    wall,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// bind attaches a media item and starts the load sequence
func (r *tileRunner) bind(item mediamodule.MediaItem) {
	r.step(BindEvent{Item: item})
}

// step feeds one event to the machine and executes the resulting effects.
// Effects that touch runner state run under mu; effects that call back into
// the wall or do I/O run after mu is dropped so lock order stays wall before
// runner.
func (r *tileRunner) step(ev TileEvent) {
	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return
	}

	effects := r.machine.Handle(ev)

	var deferred []Effect
	for _, eff := range effects {
		switch eff := eff.(type) {
		case ScheduleTimerEffect:
			if r.timer != nil {
				r.timer.Stop()
			}
			r.timer = time.AfterFunc(eff.Delay, func() {
				r.step(TimerFiredEvent{})
			})
		case SeekEffect:
			r.seekPos = eff.Position
		default:
			deferred = append(deferred, eff)
		}
	}
	r.mu.Unlock()

	for _, eff := range deferred {
		switch eff := eff.(type) {
		case AcquireSlotEffect:
			go r.acquireSlot()
		case FetchLowResEffect:
			go r.fetchLowRes(eff.MediaID, eff.MaxHeight)
		case FetchPlayableEffect:
			go r.fetchPlayable(eff.MediaID, eff.ForceTranscode)
		case MarkBrokenEffect:
			r.wall.markBroken(eff.MediaID)
		case ReshuffleEffect:
			go r.wall.ShuffleOne(r.machine.Index())
		}
	}

	r.wall.notifyChanged()
}

// acquireSlot waits for a decoder slot, honouring dispose via ctx
func (r *tileRunner) acquireSlot() {
	id := fmt.Sprintf("tile-%d", r.machine.Index())
	release, err := r.wall.admission.AcquireWait(r.ctx, id)
	if err != nil {
		return
	}

	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		release()
		return
	}
	r.release = release
	r.mu.Unlock()

	r.step(SlotGrantedEvent{})
}

func (r *tileRunner) fetchLowRes(mediaID string, maxHeight int) {
	url, ok := r.wall.backend.GetLowResURL(r.ctx, mediaID, maxHeight)
	r.step(LowResResultEvent{URL: url, OK: ok})
}

func (r *tileRunner) fetchPlayable(mediaID string, force bool) {
	url, ok := r.wall.backend.GetPlayableURL(r.ctx, mediaID, force)
	r.step(PlayableResultEvent{URL: url, OK: ok})
}

// snapshot captures the tile's current wire state
func (r *tileRunner) snapshot() TileSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := TileSnapshot{
		Index:    r.machine.Index(),
		Status:   r.machine.Status(),
		URL:      r.machine.URL(),
		Duration: r.machine.Duration(),
		Seek:     r.seekPos,
	}
	if item, ok := r.machine.Item(); ok {
		snap.MediaID = item.ID
		if thumb, ok := r.wall.backend.GetThumbnailURL(r.ctx, item.ID); ok {
			snap.Thumb = thumb
		}
	}
	return snap
}

// itemID returns the bound item's id, ok false before the first bind
func (r *tileRunner) itemID() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.machine.Item()
	return item.ID, ok
}

// aspect returns the bound item's aspect ratio for layout
func (r *tileRunner) aspect() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if item, ok := r.machine.Item(); ok {
		return item.AspectRatio()
	}
	return 0
}

// dispose tears the runner down. Idempotent. Stops the stagger timer,
// cancels any queued slot wait, and releases a granted slot.
func (r *tileRunner) dispose() {
	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return
	}
	r.disposed = true
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	release := r.release
	r.release = nil
	r.mu.Unlock()

	r.cancel()
	if release != nil {
		release()
	}
}

package wallmodule

import (
	"time"

	"github.com/mantonx/mediawall/internal/modules/mediamodule"
)

// TileStatus is a tile's lifecycle state
type TileStatus string

const (
	StatusIdle              TileStatus = "idle"
	StatusLoadingLowRes     TileStatus = "loading-lowres"
	StatusLoadingFullRes    TileStatus = "loading-fullres"
	StatusReady             TileStatus = "ready"
	StatusRetryingTranscode TileStatus = "retrying-transcode"
	StatusBroken            TileStatus = "broken"
)

// staggerThreshold tiles load immediately on mount; later indices are delayed
// to spread the initial burst of fetch and decode work.
const staggerThreshold = 4

// Low-res fetch kicks in once the wall is dense enough that full-resolution
// streams would waste bandwidth on tiny tiles.
const (
	lowResTileThreshold = 9
	lowResHeightDense   = 360
	lowResHeightSparse  = 480
	lowResDenseCutoff   = 16
)

// minSeekableDuration guards the random seek: clips shorter than this start
// from the beginning.
const minSeekableDuration = 2.0

// TileEvent is an input to the tile state machine
type TileEvent interface{ tileEvent() }

type (
	// BindEvent attaches a media item to the tile and restarts its lifecycle
	BindEvent struct{ Item mediamodule.MediaItem }
	// TimerFiredEvent signals the stagger delay has elapsed
	TimerFiredEvent struct{}
	// SlotGrantedEvent signals a decoder slot was acquired
	SlotGrantedEvent struct{}
	// LowResResultEvent carries the outcome of a low-res URL fetch
	LowResResultEvent struct {
		URL string
		OK  bool
	}
	// PlayableResultEvent carries the outcome of a playable URL fetch
	PlayableResultEvent struct {
		URL string
		OK  bool
	}
	// MetadataEvent reports the media duration once the player has it
	MetadataEvent struct{ Duration float64 }
	// CanPlayEvent signals the player reached a playable state
	CanPlayEvent struct{}
	// PlaybackErrorEvent signals a decoder or playback failure
	PlaybackErrorEvent struct{}
	// ClickEvent is a user click on the tile
	ClickEvent struct{}
	// RightClickEvent is a user right-click on the tile
	RightClickEvent struct{}
)

func (BindEvent) tileEvent()           {}
func (TimerFiredEvent) tileEvent()     {}
func (SlotGrantedEvent) tileEvent()    {}
func (LowResResultEvent) tileEvent()   {}
func (PlayableResultEvent) tileEvent() {}
func (MetadataEvent) tileEvent()       {}
func (CanPlayEvent) tileEvent()        {}
func (PlaybackErrorEvent) tileEvent()  {}
func (ClickEvent) tileEvent()          {}
func (RightClickEvent) tileEvent()     {}

// Effect is an action the runner must perform on the machine's behalf. The
// machine itself never touches timers, the network, or the admission gate.
type Effect interface{ tileEffect() }

type (
	// ScheduleTimerEffect arms the stagger timer
	ScheduleTimerEffect struct{ Delay time.Duration }
	// AcquireSlotEffect requests a decoder slot from the admission gate
	AcquireSlotEffect struct{}
	// FetchLowResEffect resolves a capped-height URL for the bound item
	FetchLowResEffect struct {
		MediaID   string
		MaxHeight int
	}
	// FetchPlayableEffect resolves the standard playable URL
	FetchPlayableEffect struct {
		MediaID        string
		ForceTranscode bool
	}
	// SeekEffect positions playback at the given offset in seconds
	SeekEffect struct{ Position float64 }
	// MarkBrokenEffect reports the item as permanently unplayable
	MarkBrokenEffect struct{ MediaID string }
	// ReshuffleEffect asks the orchestrator to replace this tile's item
	ReshuffleEffect struct{}
)

func (ScheduleTimerEffect) tileEffect() {}
func (AcquireSlotEffect) tileEffect()   {}
func (FetchLowResEffect) tileEffect()   {}
func (FetchPlayableEffect) tileEffect() {}
func (SeekEffect) tileEffect()          {}
func (MarkBrokenEffect) tileEffect()    {}
func (ReshuffleEffect) tileEffect()     {}

// StaggerDelay returns the load delay for a tile index. The first four tiles
// start immediately; later indices back off linearly.
func StaggerDelay(index int, step time.Duration) time.Duration {
	if index < staggerThreshold {
		return 0
	}
	return time.Duration(index-staggerThreshold) * step
}

// lowResMaxHeight picks the height cap for the low-res fetch based on wall
// density.
func lowResMaxHeight(tileCount int) int {
	if tileCount > lowResDenseCutoff {
		return lowResHeightDense
	}
	return lowResHeightSparse
}

// TileMachine is the pure per-tile lifecycle state machine. Handle consumes
// one event and returns the effects the runner must execute; it performs no
// I/O and holds no locks, so every transition is unit-testable in isolation.
type TileMachine struct {
	index       int
	tileCount   int
	staggerStep time.Duration
	rng         func() float64

	item     mediamodule.MediaItem
	bound    bool
	status   TileStatus
	retried  bool
	url      string
	duration float64
}

// NewTileMachine creates a machine for one tile slot. rng is injected so
// seek positions are deterministic under test.
func NewTileMachine(index, tileCount int, staggerStep time.Duration, rng func() float64) *TileMachine {
	return &TileMachine{
		index:       index,
		tileCount:   tileCount,
		staggerStep: staggerStep,
		rng:         rng,
		status:      StatusIdle,
	}
}

// Index returns the tile's slot position
func (m *TileMachine) Index() int { return m.index }

// Status returns the current lifecycle state
func (m *TileMachine) Status() TileStatus { return m.status }

// Item returns the bound media item; ok is false before the first bind
func (m *TileMachine) Item() (mediamodule.MediaItem, bool) { return m.item, m.bound }

// URL returns the currently bound playback URL, empty until a fetch succeeds
func (m *TileMachine) URL() string { return m.url }

// Duration returns the reported media duration in seconds, 0 until metadata
// arrives.
func (m *TileMachine) Duration() float64 { return m.duration }

// Handle advances the state machine by one event
func (m *TileMachine) Handle(ev TileEvent) []Effect {
	switch ev := ev.(type) {
	case BindEvent:
		m.item = ev.Item
		m.bound = true
		m.status = StatusIdle
		m.retried = false
		m.url = ""
		m.duration = 0
		if ev.Item.Duration != nil {
			m.duration = *ev.Item.Duration
		}
		return []Effect{ScheduleTimerEffect{Delay: StaggerDelay(m.index, m.staggerStep)}}

	case TimerFiredEvent:
		if !m.bound || m.status != StatusIdle {
			return nil
		}
		return []Effect{AcquireSlotEffect{}}

	case SlotGrantedEvent:
		if !m.bound || m.status != StatusIdle {
			return nil
		}
		if m.tileCount >= lowResTileThreshold {
			m.status = StatusLoadingLowRes
			return []Effect{FetchLowResEffect{
				MediaID:   m.item.ID,
				MaxHeight: lowResMaxHeight(m.tileCount),
			}}
		}
		m.status = StatusLoadingFullRes
		return []Effect{FetchPlayableEffect{MediaID: m.item.ID}}

	case LowResResultEvent:
		if m.status != StatusLoadingLowRes {
			return nil
		}
		if ev.OK {
			m.url = ev.URL
			m.status = StatusReady
			return nil
		}
		// No low-res variant; fall back to the full stream
		m.status = StatusLoadingFullRes
		return []Effect{FetchPlayableEffect{MediaID: m.item.ID}}

	case PlayableResultEvent:
		if m.status != StatusLoadingFullRes && m.status != StatusRetryingTranscode {
			return nil
		}
		if !ev.OK {
			// One shot per item: a failed fetch means replace, not retry
			return []Effect{ReshuffleEffect{}}
		}
		m.url = ev.URL
		if m.status == StatusLoadingFullRes {
			m.status = StatusReady
		}
		return nil

	case MetadataEvent:
		if !m.bound {
			return nil
		}
		m.duration = ev.Duration
		return m.randomSeek()

	case CanPlayEvent:
		if m.status == StatusRetryingTranscode {
			m.status = StatusReady
		}
		return nil

	case PlaybackErrorEvent:
		if !m.bound || m.status == StatusBroken {
			return nil
		}
		if !m.retried {
			m.retried = true
			m.status = StatusRetryingTranscode
			return []Effect{FetchPlayableEffect{
				MediaID:        m.item.ID,
				ForceTranscode: true,
			}}
		}
		m.status = StatusBroken
		return []Effect{
			MarkBrokenEffect{MediaID: m.item.ID},
			ReshuffleEffect{},
		}

	case ClickEvent:
		if !m.bound {
			return nil
		}
		return []Effect{ReshuffleEffect{}}

	case RightClickEvent:
		return m.randomSeek()
	}

	return nil
}

// randomSeek picks a position in the first 80% of the clip, skipping the
// opening 10% so tiles don't all show the same title frame.
func (m *TileMachine) randomSeek() []Effect {
	if m.duration < minSeekableDuration {
		return nil
	}
	pos := (0.1 + m.rng()*0.8) * m.duration
	return []Effect{SeekEffect{Position: pos}}
}

// Package events provides the event bus used to propagate vault and wall
// state changes between modules.
package events

import (
	"time"
)

// EventType represents the type of event
type EventType string

// System-wide event types
const (
	// Vault events
	EventVaultChanged     EventType = "vault.changed"
	EventVaultScanStarted EventType = "vault.scan.started"
	EventVaultScanDone    EventType = "vault.scan.completed"

	// Wall events
	EventWallSessionStarted EventType = "wall.session.started"
	EventWallShuffled       EventType = "wall.shuffled"
	EventWallTileBroken     EventType = "wall.tile.broken"
	EventWallPoolReloaded   EventType = "wall.pool.reloaded"

	// System events
	EventSystemStarted EventType = "system.started"
	EventSystemStopped EventType = "system.stopped"

	// General events
	EventError   EventType = "error"
	EventWarning EventType = "warning"
	EventInfo    EventType = "info"
)

// EventPriority represents the priority level of an event
type EventPriority int

const (
	PriorityLow      EventPriority = 1
	PriorityNormal   EventPriority = 5
	PriorityHigh     EventPriority = 10
	PriorityCritical EventPriority = 20
)

// Event represents a system event
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Source    string                 `json:"source"` // system, module:id, etc.
	Target    string                 `json:"target"` // specific target if applicable
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data"`
	Priority  EventPriority          `json:"priority"`
	Tags      []string               `json:"tags"`
	Timestamp time.Time              `json:"timestamp"`
}

// EventHandler represents a function that handles events
type EventHandler func(event Event) error

// EventFilter represents filters for event subscriptions
type EventFilter struct {
	Types    []EventType    `json:"types,omitempty"`
	Sources  []string       `json:"sources,omitempty"`
	Tags     []string       `json:"tags,omitempty"`
	Priority *EventPriority `json:"priority,omitempty"`
}

// Subscription represents an event subscription
type Subscription struct {
	ID            string       `json:"id"`
	Filter        EventFilter  `json:"filter"`
	Handler       EventHandler `json:"-"`
	Subscriber    string       `json:"subscriber"`
	Created       time.Time    `json:"created"`
	LastTriggered *time.Time   `json:"last_triggered,omitempty"`
	TriggerCount  int64        `json:"trigger_count"`
}

// EventStats represents statistics about events
type EventStats struct {
	TotalEvents         int64            `json:"total_events"`
	EventsByType        map[string]int64 `json:"events_by_type"`
	EventsBySource      map[string]int64 `json:"events_by_source"`
	RecentEvents        []Event          `json:"recent_events"`
	ActiveSubscriptions int              `json:"active_subscriptions"`
}

// EventBusConfig represents configuration for the event bus
type EventBusConfig struct {
	BufferSize        int           `json:"buffer_size"`
	MaxEventAge       time.Duration `json:"max_event_age"`
	EnablePersistence bool          `json:"enable_persistence"`
}

// DefaultEventBusConfig returns default configuration
func DefaultEventBusConfig() EventBusConfig {
	return EventBusConfig{
		BufferSize:        1000,
		MaxEventAge:       24 * time.Hour,
		EnablePersistence: true,
	}
}

// VaultChangedData represents data for vault.changed events
type VaultChangedData struct {
	Root         string   `json:"root"`
	AddedPaths   []string `json:"added_paths,omitempty"`
	RemovedPaths []string `json:"removed_paths,omitempty"`
}

// WallShuffledData represents data for wall.shuffled events
type WallShuffledData struct {
	SessionID string `json:"session_id"`
	Kind      string `json:"kind"` // all or one
	TileIndex int    `json:"tile_index,omitempty"`
}

// WallTileBrokenData represents data for wall.tile.broken events
type WallTileBrokenData struct {
	SessionID string `json:"session_id"`
	MediaID   string `json:"media_id"`
	TileIndex int    `json:"tile_index"`
}

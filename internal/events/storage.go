package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// StoredEvent represents a persisted event row
type StoredEvent struct {
	ID        uint32    `gorm:"primaryKey" json:"id"`
	EventID   string    `gorm:"uniqueIndex;not null" json:"event_id"`
	Type      string    `gorm:"not null;index" json:"type"`
	Source    string    `gorm:"not null;index" json:"source"`
	Target    string    `gorm:"index" json:"target"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Data      string    `gorm:"type:text" json:"data"` // JSON-encoded event data
	Priority  int       `gorm:"not null;index" json:"priority"`
	Tags      string    `gorm:"type:text" json:"tags"` // JSON-encoded tags
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// TableName returns the table name for StoredEvent
func (StoredEvent) TableName() string {
	return "system_events"
}

// ToEvent converts a StoredEvent to an Event
func (se *StoredEvent) ToEvent() (Event, error) {
	event := Event{
		ID:        se.EventID,
		Type:      EventType(se.Type),
		Source:    se.Source,
		Target:    se.Target,
		Title:     se.Title,
		Message:   se.Message,
		Priority:  EventPriority(se.Priority),
		Timestamp: se.CreatedAt,
	}

	if se.Data != "" {
		var data map[string]interface{}
		if err := json.Unmarshal([]byte(se.Data), &data); err != nil {
			return event, fmt.Errorf("failed to unmarshal event data: %w", err)
		}
		event.Data = data
	} else {
		event.Data = make(map[string]interface{})
	}

	if se.Tags != "" {
		var tags []string
		if err := json.Unmarshal([]byte(se.Tags), &tags); err != nil {
			return event, fmt.Errorf("failed to unmarshal event tags: %w", err)
		}
		event.Tags = tags
	} else {
		event.Tags = []string{}
	}

	return event, nil
}

func fromEvent(event Event) (*StoredEvent, error) {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event data: %w", err)
	}
	tags, err := json.Marshal(event.Tags)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event tags: %w", err)
	}

	return &StoredEvent{
		EventID:   event.ID,
		Type:      string(event.Type),
		Source:    event.Source,
		Target:    event.Target,
		Title:     event.Title,
		Message:   event.Message,
		Data:      string(data),
		Priority:  int(event.Priority),
		Tags:      string(tags),
		CreatedAt: event.Timestamp,
	}, nil
}

// databaseEventStorage persists events through gorm
type databaseEventStorage struct {
	db *gorm.DB
}

// NewDatabaseEventStorage creates gorm-backed event storage
func NewDatabaseEventStorage(db *gorm.DB) EventStorage {
	return &databaseEventStorage{db: db}
}

// Migrate creates the event table
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&StoredEvent{})
}

// Store stores an event
func (s *databaseEventStorage) Store(ctx context.Context, event Event) error {
	row, err := fromEvent(event)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Create(row).Error
}

// Get retrieves events based on filter
func (s *databaseEventStorage) Get(ctx context.Context, filter EventFilter, limit, offset int) ([]Event, int64, error) {
	query := s.db.WithContext(ctx).Model(&StoredEvent{})

	if len(filter.Types) > 0 {
		types := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			types[i] = string(t)
		}
		query = query.Where("type IN ?", types)
	}
	if len(filter.Sources) > 0 {
		query = query.Where("source IN ?", filter.Sources)
	}
	if filter.Priority != nil {
		query = query.Where("priority >= ?", int(*filter.Priority))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count events: %w", err)
	}

	var rows []StoredEvent
	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to query events: %w", err)
	}

	result := make([]Event, 0, len(rows))
	for i := range rows {
		event, err := rows[i].ToEvent()
		if err != nil {
			continue
		}
		result = append(result, event)
	}

	return result, total, nil
}

// Delete removes events older than the specified duration
func (s *databaseEventStorage) Delete(ctx context.Context, olderThan time.Duration) error {
	cutoff := time.Now().Add(-olderThan)
	return s.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&StoredEvent{}).Error
}

// Close closes the storage
func (s *databaseEventStorage) Close() error {
	return nil
}

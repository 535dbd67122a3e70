package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testLogger struct{}

func (testLogger) Debug(msg string, fields ...interface{}) {}
func (testLogger) Info(msg string, fields ...interface{})  {}
func (testLogger) Warn(msg string, fields ...interface{})  {}
func (testLogger) Error(msg string, fields ...interface{}) {}

func newTestBus(t *testing.T) EventBus {
	t.Helper()
	bus := NewEventBus(EventBusConfig{BufferSize: 64}, testLogger{}, nil)
	require.NoError(t, bus.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = bus.Stop(ctx)
	})
	return bus
}

func TestEventBus_PublishAndSubscribe(t *testing.T) {
	bus := newTestBus(t)

	received := make(chan Event, 1)
	_, err := bus.Subscribe(context.Background(), EventFilter{
		Types: []EventType{EventVaultChanged},
	}, func(event Event) error {
		received <- event
		return nil
	})
	require.NoError(t, err)

	err = bus.Publish(context.Background(), NewSystemEvent(EventVaultChanged, "Vault Changed", "files added"))
	require.NoError(t, err)

	select {
	case event := <-received:
		assert.Equal(t, EventVaultChanged, event.Type)
		assert.Equal(t, "system", event.Source)
		assert.NotEmpty(t, event.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber was not notified")
	}
}

func TestEventBus_FilterDoesNotMatch(t *testing.T) {
	bus := newTestBus(t)

	var mu sync.Mutex
	var got []Event
	_, err := bus.Subscribe(context.Background(), EventFilter{
		Types: []EventType{EventWallShuffled},
	}, func(event Event) error {
		mu.Lock()
		got = append(got, event)
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), NewSystemEvent(EventVaultChanged, "x", "y")))

	// Give the processor time to (not) deliver
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Empty(t, got)
}

func TestEventBus_PublishRequiresTypeAndSource(t *testing.T) {
	bus := newTestBus(t)

	err := bus.Publish(context.Background(), Event{Source: "system"})
	assert.Error(t, err)

	err = bus.Publish(context.Background(), Event{Type: EventVaultChanged})
	assert.Error(t, err)
}

func TestEventBus_PublishWhenStopped(t *testing.T) {
	bus := NewEventBus(EventBusConfig{BufferSize: 8}, testLogger{}, nil)

	err := bus.Publish(context.Background(), NewSystemEvent(EventInfo, "x", "y"))
	assert.Error(t, err)
}

func TestEventBus_Unsubscribe(t *testing.T) {
	bus := newTestBus(t)

	sub, err := bus.Subscribe(context.Background(), EventFilter{}, func(event Event) error { return nil })
	require.NoError(t, err)
	assert.Len(t, bus.GetSubscriptions(), 1)

	require.NoError(t, bus.Unsubscribe(sub.ID))
	assert.Empty(t, bus.GetSubscriptions())

	assert.Error(t, bus.Unsubscribe(sub.ID))
}

func TestEventBus_StatsAndRecentEvents(t *testing.T) {
	bus := newTestBus(t)

	done := make(chan struct{}, 3)
	_, err := bus.Subscribe(context.Background(), EventFilter{}, func(event Event) error {
		done <- struct{}{}
		return nil
	})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, bus.Publish(context.Background(), NewSystemEvent(EventWallShuffled, "shuffle", "")))
	}
	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("event not processed")
		}
	}

	stats := bus.GetStats()
	assert.Equal(t, int64(3), stats.TotalEvents)
	assert.Equal(t, int64(3), stats.EventsByType[string(EventWallShuffled)])
	assert.Len(t, stats.RecentEvents, 3)
}

func TestMatchesFilter(t *testing.T) {
	high := PriorityHigh
	tests := []struct {
		name   string
		event  Event
		filter EventFilter
		want   bool
	}{
		{
			name:   "empty filter matches everything",
			event:  Event{Type: EventVaultChanged, Source: "system"},
			filter: EventFilter{},
			want:   true,
		},
		{
			name:   "type match",
			event:  Event{Type: EventVaultChanged, Source: "system"},
			filter: EventFilter{Types: []EventType{EventVaultChanged}},
			want:   true,
		},
		{
			name:   "type mismatch",
			event:  Event{Type: EventWallShuffled, Source: "system"},
			filter: EventFilter{Types: []EventType{EventVaultChanged}},
			want:   false,
		},
		{
			name:   "source mismatch",
			event:  Event{Type: EventVaultChanged, Source: "module:vault"},
			filter: EventFilter{Sources: []string{"system"}},
			want:   false,
		},
		{
			name:   "priority below threshold",
			event:  Event{Type: EventVaultChanged, Source: "system", Priority: PriorityNormal},
			filter: EventFilter{Priority: &high},
			want:   false,
		},
		{
			name:   "tag match",
			event:  Event{Type: EventVaultChanged, Source: "system", Tags: []string{"wall"}},
			filter: EventFilter{Tags: []string{"wall"}},
			want:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchesFilter(tt.event, tt.filter))
		})
	}
}

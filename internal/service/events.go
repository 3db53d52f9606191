package service

import (
	"sync"
	"time"
)

// EventType defines the type of event
type EventType string

const (
	EventDetectorPlaced    EventType = "detector_placed"
	EventDetectorMoved     EventType = "detector_moved"
	EventDetectorUpdated   EventType = "detector_updated"
	EventDetectorRemoved   EventType = "detector_removed"
	EventConnectionCreated EventType = "connection_created"
	EventConnectionRemoved EventType = "connection_removed"
	EventPlanChanged       EventType = "plan_changed"
	EventMetadataUpdated   EventType = "metadata_updated"
	EventSceneLoaded       EventType = "scene_loaded"
	EventViewChanged       EventType = "view_changed"
	EventExportFinished    EventType = "export_finished"
)

// Event represents a change to the open project
type Event struct {
	Type    EventType   `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
	At      time.Time   `json:"at"`
}

// EventName names the event on the SSE stream
func (e Event) EventName() string { return string(e.Type) }

// EventBus allows publishing and subscribing to events
type EventBus struct {
	mu          sync.RWMutex
	subscribers []chan<- Event
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make([]chan<- Event, 0),
	}
}

// Subscribe adds a subscriber to receive events
func (eb *EventBus) Subscribe(ch chan<- Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.subscribers = append(eb.subscribers, ch)
}

// Unsubscribe removes a subscriber. The channel is not closed.
func (eb *EventBus) Unsubscribe(ch chan<- Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	for i, sub := range eb.subscribers {
		if sub == ch {
			eb.subscribers = append(eb.subscribers[:i], eb.subscribers[i+1:]...)
			return
		}
	}
}

// Publish sends an event to all subscribers. Slow subscribers miss events
// rather than block the publisher. A nil bus drops everything.
func (eb *EventBus) Publish(event Event) {
	if eb == nil {
		return
	}
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	for _, ch := range eb.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

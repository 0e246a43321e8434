// Package events provides the in-process pub/sub bus that connects the
// simulator to the serving layer.
package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EventType identifies a category of event on the bus.
type EventType string

// Event types emitted by the core.
const (
	SnapshotPublished EventType = "snapshot_published"
	CurveReset        EventType = "curve_reset"
)

// Event is a single bus message.
type Event struct {
	Type      EventType `json:"type"`
	Module    string    `json:"module"`
	Timestamp time.Time `json:"timestamp"`
	Data      EventData `json:"data"`
}

// Handler processes a published event. Handlers run on the publisher's
// goroutine and must not block; hand off to a channel for slow work.
type Handler func(*Event)

// Bus is a minimal synchronous pub/sub bus keyed by event type.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType]map[int]Handler
	nextID   int
	log      zerolog.Logger
}

// NewBus creates an empty event bus.
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		handlers: make(map[EventType]map[int]Handler),
		log:      log.With().Str("component", "event_bus").Logger(),
	}
}

// Subscribe registers a handler for an event type and returns a
// subscription id for Unsubscribe.
func (b *Bus) Subscribe(t EventType, h Handler) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.handlers[t] == nil {
		b.handlers[t] = make(map[int]Handler)
	}
	b.nextID++
	b.handlers[t][b.nextID] = h
	return b.nextID
}

// Unsubscribe removes a subscription. Unknown ids are ignored.
func (b *Bus) Unsubscribe(t EventType, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers[t], id)
}

// Publish delivers an event to every handler subscribed to its type.
func (b *Bus) Publish(module string, data EventData) {
	event := &Event{
		Type:      data.EventType(),
		Module:    module,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers[event.Type]))
	for _, h := range b.handlers[event.Type] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	b.log.Debug().
		Str("event_type", string(event.Type)).
		Str("module", module).
		Int("handlers", len(handlers)).
		Msg("Publishing event")

	for _, h := range handlers {
		h(event)
	}
}

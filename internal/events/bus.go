// Package events provides the bounded in-memory event ring feeding the
// polling HTTP surface.
package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultCapacity is the ring size unless overridden
const DefaultCapacity = 500

// Bus is a bounded FIFO of typed events. Oldest entries are evicted once
// capacity is reached. All methods are safe for concurrent use.
type Bus struct {
	mu        sync.Mutex
	events    []Event
	capacity  int
	nextID    uint64
	listeners []Listener
	log       zerolog.Logger
}

// NewBus creates a bus with the given capacity (DefaultCapacity when <= 0)
func NewBus(capacity int) *Bus {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Bus{
		events:   make([]Event, 0, capacity),
		capacity: capacity,
		nextID:   1,
		log:      log.With().Str("component", "events").Logger(),
	}
}

// Subscribe registers a listener invoked synchronously on every emit.
// Listeners must be non-blocking; slow listeners delay emitters for
// exactly their own execution time.
func (b *Bus) Subscribe(l Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, l)
}

// Emit appends an event and notifies listeners
func (b *Bus) Emit(t Type, severity Severity, message string, data map[string]interface{}) Event {
	b.mu.Lock()

	ev := Event{
		ID:        b.nextID,
		Type:      t,
		Timestamp: time.Now().UTC(),
		Severity:  severity,
		Message:   message,
		Data:      data,
	}
	b.nextID++

	b.events = append(b.events, ev)
	if len(b.events) > b.capacity {
		// FIFO eviction; shift keeps the backing array bounded
		copy(b.events, b.events[len(b.events)-b.capacity:])
		b.events = b.events[:b.capacity]
	}

	listeners := b.listeners
	b.mu.Unlock()

	for _, l := range listeners {
		l(ev)
	}

	// The event text goes under its own key so it cannot collide with
	// zerolog's message field
	b.log.Debug().
		Str("type", string(t)).
		Str("severity", string(severity)).
		Str("event_message", message).
		Msg("Event emitted")

	return ev
}

// Get returns up to limit events most-recent-first, optionally filtered
// by type and a lower timestamp bound
func (b *Bus) Get(limit int, eventType Type, since time.Time) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Event, 0, limit)
	for i := len(b.events) - 1; i >= 0; i-- {
		ev := b.events[i]
		if eventType != "" && ev.Type != eventType {
			continue
		}
		if !since.IsZero() && !ev.Timestamp.After(since) {
			continue
		}
		out = append(out, ev)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// Latest returns the n most recent events, most-recent-first
func (b *Bus) Latest(n int) []Event {
	return b.Get(n, "", time.Time{})
}

// Len returns the current number of retained events
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

// Stats summarizes ring contents by type and severity
func (b *Bus) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	stats := Stats{
		Total:      len(b.events),
		ByType:     make(map[Type]int),
		BySeverity: make(map[Severity]int),
	}
	for _, ev := range b.events {
		stats.ByType[ev.Type]++
		stats.BySeverity[ev.Severity]++
	}
	if len(b.events) > 0 {
		oldest := b.events[0].Timestamp
		newest := b.events[len(b.events)-1].Timestamp
		stats.Oldest = &oldest
		stats.Newest = &newest
	}
	return stats
}

// Clear empties the ring. Listener registrations survive.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = b.events[:0]
	b.log.Info().Msg("Event ring cleared")
}

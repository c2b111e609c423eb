// Package events broadcasts orchestrator outcomes to the presentation layer.
// The orchestrator never shows notifications itself; it publishes events and
// whoever renders the editing surface subscribes.
package events

import (
	"sync"
	"time"

	"github.com/leapstack-labs/fieldsync/pkg/core"
)

// Kind names an event.
type Kind string

// Event kinds.
const (
	SaveSucceeded     Kind = "save.succeeded"
	SaveFailed        Kind = "save.failed"
	ValidationChanged Kind = "validation.changed"
)

// Event is one orchestrator outcome.
type Event struct {
	Kind     Kind
	FieldKey string
	Label    string
	Value    any
	// Message is the user-facing notification text for SaveFailed.
	Message    string
	Err        error
	Response   *core.Response
	Validation *core.ValidationResult
	At         time.Time
}

// Handler receives events synchronously.
type Handler func(Event)

// subscriberBuffer is the channel capacity handed to Subscribe callers.
const subscriberBuffer = 32

// Bus fans events out to channel subscribers and handlers.
type Bus struct {
	mu        sync.RWMutex
	listeners map[chan Event]struct{}
	handlers  map[int]Handler
	nextID    int
}

// New creates a new Bus instance.
func New() *Bus {
	return &Bus{
		listeners: make(map[chan Event]struct{}),
		handlers:  make(map[int]Handler),
	}
}

// Subscribe returns a channel that receives events.
// The caller must call Unsubscribe when done to prevent goroutine leaks.
func (b *Bus) Subscribe() chan Event {
	ch := make(chan Event, subscriberBuffer)
	b.mu.Lock()
	b.listeners[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener channel and closes it.
func (b *Bus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	_, ok := b.listeners[ch]
	delete(b.listeners, ch)
	b.mu.Unlock()
	if ok {
		close(ch)
	}
}

// Handle registers a synchronous handler and returns a function that removes it.
func (b *Bus) Handle(h Handler) (remove func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = h
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.handlers, id)
		b.mu.Unlock()
	}
}

// Publish delivers an event to every handler, then every channel subscriber.
// Channel delivery is non-blocking: a full subscriber misses the event.
// Publishers stamp At from their own clock; an unstamped event gets the wall time.
func (b *Bus) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(e)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.listeners {
		select {
		case ch <- e:
		default:
			// Channel full, skip
		}
	}
}

package tombstone

import (
	"context"
	"database/sql"
	"sync"

	"golang.org/x/sync/errgroup"
)

// --- Event System ---

// EventName identifies a lifecycle event.
type EventName string

// Lifecycle events. destroying/destroyed, saving/saved and updating/updated
// are also emitted by soft deletes, subject to the Store's Policy.
const (
	EventCreating   EventName = "creating"
	EventCreated    EventName = "created"
	EventSaving     EventName = "saving"
	EventSaved      EventName = "saved"
	EventUpdating   EventName = "updating"
	EventUpdated    EventName = "updated"
	EventDestroying EventName = "destroying"
	EventDestroyed  EventName = "destroyed"
)

// Event is the payload handed to listeners.
type Event struct {
	Name  EventName
	Model interface{} // *T of the emitting Thing
	Table string
	ID    int64
	// Attrs holds the columns being written. Set for save and update
	// variants, and for soft-delete pre-events.
	Attrs map[string]interface{}
	// Previous holds the attributes before the write. Set on post-events.
	Previous map[string]interface{}
	// Result is the outcome of the write. Set on post-events.
	Result  sql.Result
	Options Options
}

// EventListener defines the signature for functions that can listen to events.
// A listener may mutate the model on pre-events; concurrent listeners of the
// same emission share that model.
type EventListener func(ctx context.Context, ev *Event) error

// EventBus holds listeners for one model type.
type EventBus struct {
	mu        sync.RWMutex
	listeners map[EventName][]EventListener
}

// NewEventBus returns an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{listeners: make(map[EventName][]EventListener)}
}

// On registers listener for name.
func (b *EventBus) On(name EventName, listener EventListener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners[name] = append(b.listeners[name], listener)
}

// Has reports whether any listener is registered for name.
func (b *EventBus) Has(name EventName) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners[name]) > 0
}

// Emit runs every listener registered for ev.Name concurrently and returns
// once all of them have returned. The first error is returned as is.
func (b *EventBus) Emit(ctx context.Context, ev *Event) error {
	b.mu.RLock()
	listeners := append([]EventListener(nil), b.listeners[ev.Name]...)
	b.mu.RUnlock()

	if len(listeners) == 0 {
		return nil
	}
	if len(listeners) == 1 {
		return listeners[0](ctx, ev)
	}

	var g errgroup.Group
	for _, l := range listeners {
		l := l
		g.Go(func() error {
			return l(ctx, ev)
		})
	}
	return g.Wait()
}

// emitAll emits one event per name concurrently, each built by mk, and
// waits for all of them.
func (b *EventBus) emitAll(ctx context.Context, names []EventName, mk func(EventName) *Event) error {
	switch len(names) {
	case 0:
		return nil
	case 1:
		return b.Emit(ctx, mk(names[0]))
	}
	var g errgroup.Group
	for _, name := range names {
		ev := mk(name)
		g.Go(func() error {
			return b.Emit(ctx, ev)
		})
	}
	return g.Wait()
}

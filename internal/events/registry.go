// Package events provides a synchronous callback registry keyed by event
// name. Transport events are decoupled from their consumers through it.
package events

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Handler consumes the raw payload of a dispatched event.
type Handler func(data json.RawMessage)

type entry struct {
	id uint64
	fn Handler
}

// Subscription identifies a registered handler. Cancel removes it; calling
// Cancel more than once is harmless.
type Subscription struct {
	registry *Registry
	event    string
	id       uint64
}

// Cancel removes the handler from its registry.
func (s *Subscription) Cancel() {
	if s == nil || s.registry == nil {
		return
	}
	s.registry.remove(s.event, s.id)
	s.registry = nil
}

// Registry maps event names to ordered handler lists. Dispatch is
// synchronous and runs handlers in registration order.
type Registry struct {
	mu       sync.Mutex
	handlers map[string][]entry
	nextID   uint64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string][]entry)}
}

// Subscribe registers a handler for an event and returns its subscription
// handle. Each call registers independently, even for the same function.
func (r *Registry) Subscribe(event string, fn Handler) *Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	r.handlers[event] = append(r.handlers[event], entry{id: r.nextID, fn: fn})
	return &Subscription{registry: r, event: event, id: r.nextID}
}

func (r *Registry) remove(event string, id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list, ok := r.handlers[event]
	if !ok {
		return
	}
	for i, e := range list {
		if e.id == id {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(r.handlers, event)
		return
	}
	r.handlers[event] = list
}

// Dispatch invokes every handler registered for the event, in registration
// order. A panicking handler is recovered and logged so the remaining
// handlers still run. Dispatch with no subscribers is a no-op.
func (r *Registry) Dispatch(event string, data json.RawMessage) {
	r.mu.Lock()
	list := r.handlers[event]
	snapshot := make([]entry, len(list))
	copy(snapshot, list)
	r.mu.Unlock()

	for _, e := range snapshot {
		invoke(event, e.fn, data)
	}
}

// HandlerCount reports how many handlers are registered for an event.
func (r *Registry) HandlerCount(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handlers[event])
}

func invoke(event string, fn Handler, data json.RawMessage) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("Event handler panicked", "event", event, "panic", rec)
		}
	}()
	fn(data)
}

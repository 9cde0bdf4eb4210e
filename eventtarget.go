package coro

import (
	"sync"
)

// EventListenerFunc is a callback registered against a lifecycle event on a
// ctx or env (state_changed, env_set, priority_changed, stack_set,
// locked_destroy, unlocked_destroy).
type EventListenerFunc func(event *Event)

// ListenerID uniquely identifies a registered listener so it can be removed.
// Go function values cannot be reliably compared for equality, so callers
// hold onto the ID returned by AddEventListener instead.
type ListenerID uint64

type listenerEntry struct {
	id       ListenerID
	listener EventListenerFunc
}

// EventTarget is a small publish/subscribe list keyed by event type, embedded
// into both Ctx and Env to back their lifecycle hooks. Listeners are invoked
// synchronously, after the mutation, by whichever mutator caused the event;
// the owning entity's lock is not held while they run. EventTarget itself
// only serializes its own listener-list bookkeeping.
type EventTarget struct {
	listeners      map[string][]listenerEntry
	nextListenerID ListenerID
	mu             sync.RWMutex
}

// Event is the value delivered to a listener. Detail carries event-specific
// payload (e.g. a [2]CtxState{previous, next} pair on "state_changed").
type Event struct {
	Target *EventTarget
	Type   string
	detail any
}

// Detail returns the event's payload, if any.
func (e *Event) Detail() any { return e.detail }

// NewEventTarget returns an EventTarget with no registered listeners.
func NewEventTarget() *EventTarget {
	return &EventTarget{
		listeners:      make(map[string][]listenerEntry),
		nextListenerID: 1,
	}
}

// AddEventListener registers listener for eventType and returns an ID that
// can later be passed to RemoveEventListenerByID.
func (et *EventTarget) AddEventListener(eventType string, listener EventListenerFunc) ListenerID {
	if listener == nil {
		return 0
	}

	et.mu.Lock()
	defer et.mu.Unlock()

	id := et.nextListenerID
	et.nextListenerID++
	et.listeners[eventType] = append(et.listeners[eventType], listenerEntry{id: id, listener: listener})
	return id
}

// RemoveEventListenerByID removes a previously registered listener. Returns
// false if it was already removed (idempotent no-op).
func (et *EventTarget) RemoveEventListenerByID(eventType string, id ListenerID) bool {
	et.mu.Lock()
	defer et.mu.Unlock()

	entries, ok := et.listeners[eventType]
	if !ok {
		return false
	}
	for i, entry := range entries {
		if entry.id == id {
			et.listeners[eventType] = append(entries[:i:i], entries[i+1:]...)
			return true
		}
	}
	return false
}

// DispatchEvent calls every listener registered for event.Type, in
// registration order, setting event.Target to this EventTarget first.
// The ctx mutators in this package call DispatchEvent after their mutation,
// without holding the ctx's lock.
func (et *EventTarget) DispatchEvent(event *Event) {
	if event == nil {
		return
	}
	event.Target = et

	et.mu.RLock()
	entries := et.listeners[event.Type]
	snapshot := make([]listenerEntry, len(entries))
	copy(snapshot, entries)
	et.mu.RUnlock()

	for _, entry := range snapshot {
		entry.listener(event)
	}
}

// HasEventListeners reports whether any listener is registered for eventType.
func (et *EventTarget) HasEventListeners(eventType string) bool {
	et.mu.RLock()
	defer et.mu.RUnlock()
	return len(et.listeners[eventType]) > 0
}

// ListenerCount returns the number of listeners registered for eventType.
func (et *EventTarget) ListenerCount(eventType string) int {
	et.mu.RLock()
	defer et.mu.RUnlock()
	return len(et.listeners[eventType])
}

func newEvent(eventType string, detail any) *Event {
	return &Event{Type: eventType, detail: detail}
}

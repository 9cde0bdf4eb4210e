package coro

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventTargetDispatchInRegistrationOrder(t *testing.T) {
	et := NewEventTarget()
	var order []int
	et.AddEventListener("tick", func(e *Event) { order = append(order, 1) })
	et.AddEventListener("tick", func(e *Event) { order = append(order, 2) })
	et.AddEventListener("tick", func(e *Event) { order = append(order, 3) })

	et.DispatchEvent(newEvent("tick", nil))
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestEventTargetDispatchOnlyMatchingType(t *testing.T) {
	et := NewEventTarget()
	var fired []string
	et.AddEventListener("a", func(e *Event) { fired = append(fired, "a") })
	et.AddEventListener("b", func(e *Event) { fired = append(fired, "b") })

	et.DispatchEvent(newEvent("a", nil))
	assert.Equal(t, []string{"a"}, fired)
}

func TestEventTargetDetailAndTargetAreSet(t *testing.T) {
	et := NewEventTarget()
	var got *Event
	et.AddEventListener("state_changed", func(e *Event) { got = e })

	et.DispatchEvent(newEvent("state_changed", 42))
	assert.Equal(t, et, got.Target)
	assert.Equal(t, 42, got.Detail())
}

func TestEventTargetRemoveEventListenerByID(t *testing.T) {
	et := NewEventTarget()
	called := false
	id := et.AddEventListener("x", func(e *Event) { called = true })

	assert.True(t, et.RemoveEventListenerByID("x", id))
	assert.False(t, et.RemoveEventListenerByID("x", id))

	et.DispatchEvent(newEvent("x", nil))
	assert.False(t, called)
}

func TestEventTargetHasEventListenersAndCount(t *testing.T) {
	et := NewEventTarget()
	assert.False(t, et.HasEventListeners("y"))
	assert.Equal(t, 0, et.ListenerCount("y"))

	et.AddEventListener("y", func(e *Event) {})
	et.AddEventListener("y", func(e *Event) {})

	assert.True(t, et.HasEventListeners("y"))
	assert.Equal(t, 2, et.ListenerCount("y"))
}

func TestEventTargetAddEventListenerNilIsNoop(t *testing.T) {
	et := NewEventTarget()
	id := et.AddEventListener("z", nil)
	assert.Equal(t, ListenerID(0), id)
	assert.False(t, et.HasEventListeners("z"))
}

// Package timing provides a discrete event engine on integer steps. The
// engine owns the step counter that the schedule is queried with.
package timing

import (
	"strconv"
	"sync/atomic"
)

// Step is a logical epoch counter.
type Step = uint64

// An Event is something going to happen in the future.
type Event interface {
	// Time returns the step at which the event should happen.
	Time() Step

	// Handler returns the handler that should handle the event.
	Handler() Handler

	// IsSecondary tells if the event is a secondary event. Secondary events
	// are handled after all same-step primary events are handled.
	IsSecondary() bool
}

// HookPosBeforeEvent is a hook position that triggers before handling an event.
var HookPosBeforeEvent = &HookPos{Name: "BeforeEvent"}

// HookPosAfterEvent is a hook position that triggers after handling an event.
var HookPosAfterEvent = &HookPos{Name: "AfterEvent"}

var nextEventID uint64

func generateID() string {
	return strconv.FormatUint(atomic.AddUint64(&nextEventID, 1), 10)
}

// EventBase provides the basic fields and getters for other events.
type EventBase struct {
	ID        string
	time      Step
	handler   Handler
	secondary bool
}

// NewEventBase creates a new EventBase.
func NewEventBase(t Step, handler Handler) *EventBase {
	return &EventBase{
		ID:      generateID(),
		time:    t,
		handler: handler,
	}
}

// Time returns the step at which the event is going to happen.
func (e EventBase) Time() Step {
	return e.time
}

// Handler returns the handler to handle the event.
func (e EventBase) Handler() Handler {
	return e.handler
}

// IsSecondary returns true if the event is a secondary event.
func (e EventBase) IsSecondary() bool {
	return e.secondary
}

// A Handler defines a domain for the events.
type Handler interface {
	Handle(e Event) error
}

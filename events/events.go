// Package events is a typed event bus, standing in for CustomEvent dispatch
// on the browser window.
//
// Every event carries a [Detail], i.e. the detected value, plus the time it
// was detected. Dispatch is synchronous, and listeners run in registration
// order, on the dispatching goroutine.
package events

import (
	"time"

	eventloop "github.com/joeycumines/go-eventloop"
)

type (
	// Detail is the payload of every event published on a Bus.
	Detail struct {
		Timestamp time.Time `json:"timestamp"`
		Value     string    `json:"value"`
	}

	// Handler receives events of a subscribed type.
	Handler func(event string, detail Detail)

	// Bus dispatches named events, carrying a Detail, to subscribers.
	// It wraps an [eventloop.EventTarget], which may be shared with other
	// (untyped) listeners via Target.
	Bus struct {
		target *eventloop.EventTarget
	}

	// Subscription identifies a registered Handler.
	Subscription struct {
		bus   *Bus
		event string
		id    eventloop.ListenerID
	}
)

// NewBus returns a Bus with its own event target.
func NewBus() *Bus { return NewBusWithTarget(eventloop.NewEventTarget()) }

// NewBusWithTarget returns a Bus dispatching on target, which must not be
// nil.
func NewBusWithTarget(target *eventloop.EventTarget) *Bus {
	if target == nil {
		panic(`events: nil target`)
	}
	return &Bus{target: target}
}

// Target returns the underlying event target.
func (x *Bus) Target() *eventloop.EventTarget { return x.target }

// Dispatch publishes detail as a bubbling, non-cancelable CustomEvent named
// event. The return value is always true, as the event is not cancelable.
func (x *Bus) Dispatch(event string, detail Detail) bool {
	ev := eventloop.NewCustomEventWithOptions(event, detail, true, false)
	return x.target.DispatchEvent(ev.EventPtr())
}

// Subscribe registers h for events named event. Events dispatched on the
// target without a Detail payload are delivered with a zero Detail.
func (x *Bus) Subscribe(event string, h Handler) Subscription {
	return x.subscribe(event, h, false)
}

// Once is like Subscribe, but h is removed after the first event.
func (x *Bus) Once(event string, h Handler) Subscription {
	return x.subscribe(event, h, true)
}

// HasSubscribers reports whether any listener is registered for event.
func (x *Bus) HasSubscribers(event string) bool {
	return x.target.HasEventListeners(event)
}

func (x *Bus) subscribe(event string, h Handler, once bool) Subscription {
	if h == nil {
		panic(`events: nil handler`)
	}
	listener := func(e *eventloop.Event) {
		detail, _ := e.Detail().(Detail)
		h(e.Type, detail)
	}
	var id eventloop.ListenerID
	if once {
		id = x.target.AddEventListenerOnce(event, listener)
	} else {
		id = x.target.AddEventListener(event, listener)
	}
	return Subscription{bus: x, event: event, id: id}
}

// Unsubscribe removes the handler, returning false if it was already
// removed (including via Once).
func (x Subscription) Unsubscribe() bool {
	if x.bus == nil {
		return false
	}
	return x.bus.target.RemoveEventListenerByID(x.event, x.id)
}

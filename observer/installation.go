package observer

import (
	"fmt"

	"github.com/joeycumines/go-tagglue/dom"
	"github.com/joeycumines/go-tagglue/events"
	"github.com/joeycumines/go-tagglue/schedule"
)

type (
	// State is the lifecycle state of an Installation.
	State int

	// Installation is the result of Observer.Install.
	Installation struct {
		observer  *Observer
		source    dom.ChangeSource
		timer     schedule.Timer
		cfg       Config
		lastValue string
		emissions int
		state     State
		immediate bool
	}
)

const (
	Uninstalled State = iota
	Watching
	Emitted
	TimedOut
	Disconnected
)

func (x State) String() string {
	switch x {
	case Uninstalled:
		return `uninstalled`
	case Watching:
		return `watching`
	case Emitted:
		return `emitted`
	case TimedOut:
		return `timed out`
	case Disconnected:
		return `disconnected`
	default:
		return fmt.Sprintf(`State(%d)`, int(x))
	}
}

// State returns the current state.
func (x *Installation) State() State { return x.state }

// Immediate reports whether the value was published by Install itself,
// without starting a change source.
func (x *Installation) Immediate() bool { return x.immediate }

// Value returns the most recently published value.
func (x *Installation) Value() string { return x.lastValue }

// Emissions returns the number of values published.
func (x *Installation) Emissions() int { return x.emissions }

// Config returns the config, with defaults applied.
func (x *Installation) Config() Config { return x.cfg }

// Disconnect stops a Watching installation, returning false if it wasn't
// watching.
func (x *Installation) Disconnect() bool {
	if x.state != Watching {
		return false
	}
	x.disconnect(Disconnected)
	return true
}

// check extracts and validates, treating extraction errors as invalid.
func (x *Installation) check(el dom.Element) (string, bool) {
	value, err := x.cfg.Extract(el)
	if err != nil {
		x.observer.logger.Debug().
			Str(`selector`, x.cfg.Selector).
			Err(err).
			Log(`element observer extract failed`)
		return ``, false
	}
	if !x.cfg.Validate(value) {
		return ``, false
	}
	return value, true
}

func (x *Installation) onChange() {
	defer x.recoverCallback(`change`)
	if x.state != Watching {
		return
	}
	el, err := x.observer.doc.QuerySelector(x.cfg.Selector)
	if err != nil {
		x.observer.logger.Debug().
			Str(`selector`, x.cfg.Selector).
			Err(err).
			Log(`element observer query failed`)
		return
	}
	if el == nil {
		return
	}
	value, ok := x.check(el)
	if !ok {
		return
	}
	switch {
	case x.cfg.disconnectAfterFirst():
		x.disconnect(Emitted)
	case x.emissions != 0 && value == x.lastValue:
		return
	default:
		x.cancelTimeout()
	}
	x.emit(value)
}

func (x *Installation) onTimeout() {
	defer x.recoverCallback(`timeout`)
	if x.state != Watching {
		return
	}
	x.timer = nil
	x.disconnect(TimedOut)
	x.observer.logger.Warning().
		Str(`selector`, x.cfg.Selector).
		Dur(`timeout`, x.cfg.Timeout).
		Int(`emissions`, x.emissions).
		Log(`element observer timed out`)
}

func (x *Installation) emit(value string) {
	o := x.observer
	x.lastValue = value
	x.emissions++
	o.ns.Set(x.cfg.StateKey, value)
	o.bus.Dispatch(x.cfg.EventName, events.Detail{
		Timestamp: o.clock.Now(),
		Value:     value,
	})
	o.logger.Info().
		Str(`selector`, x.cfg.Selector).
		Str(`event`, x.cfg.EventName).
		Str(`value`, value).
		Log(`element observer emitted`)
	if x.cfg.OnEmit != nil {
		x.cfg.OnEmit(value)
	}
}

// cancelTimeout stops any pending timeout, and clears its key.
func (x *Installation) cancelTimeout() {
	if x.timer != nil {
		x.timer.Stop()
		x.timer = nil
	}
	x.observer.setKey(x.cfg.TimeoutKey, nil)
}

// disconnect cancels the timeout, stops the source, and clears both keys.
func (x *Installation) disconnect(state State) {
	x.cancelTimeout()
	if x.source != nil {
		x.source.Stop()
		x.source = nil
	}
	x.observer.setKey(x.cfg.ObserverKey, nil)
	x.state = state
}

func (x *Installation) recoverCallback(kind string) {
	if r := recover(); r != nil {
		x.observer.logger.Err().
			Str(`selector`, x.cfg.Selector).
			Str(`callback`, kind).
			Str(`panic`, fmt.Sprint(r)).
			Log(`element observer callback panicked`)
	}
}

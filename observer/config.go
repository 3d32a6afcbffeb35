package observer

import (
	"errors"
	"time"

	"github.com/joeycumines/go-tagglue/dom"
)

// Config describes an element to observe, and where to publish its value.
// Keys that are empty are not written.
type Config struct {
	// Extract reads the value from the element. Defaults to dom.TrimmedText.
	Extract dom.Extractor

	// Validate reports whether an extracted value should be published.
	// Defaults to rejecting the empty string.
	Validate func(value string) bool

	// OnEmit is called after each emission, after the event is dispatched.
	OnEmit func(value string)

	// DisconnectAfterFirst stops observation after the first emission.
	// Defaults to true.
	DisconnectAfterFirst *bool

	// Selector identifies the element. Required.
	Selector string

	// StateKey receives the published value. Required.
	StateKey string

	// HookKey is set to true once installed, and is what Observer.Installed
	// checks.
	HookKey string

	// ObserverKey holds the active dom.ChangeSource, or nil.
	ObserverKey string

	// TimeoutKey holds the pending timeout's schedule.Timer, or nil.
	// Required for Timeout to take effect.
	TimeoutKey string

	// EventName is the name of the event dispatched on emission. Required.
	EventName string

	// Timeout stops observation if no value is published in time.
	Timeout time.Duration

	// WatchBody observes the document body, with its subtree, instead of
	// the element itself. Required if the element may not exist yet.
	WatchBody bool
}

var (
	ErrMissingSelector  = errors.New(`observer: missing selector`)
	ErrMissingStateKey  = errors.New(`observer: missing state key`)
	ErrMissingEventName = errors.New(`observer: missing event name`)
)

// Bool returns a pointer to v, for Config.DisconnectAfterFirst.
func Bool(v bool) *bool { return &v }

// Check reports any missing required fields.
func (x Config) Check() error {
	var errs []error
	if x.Selector == `` {
		errs = append(errs, ErrMissingSelector)
	}
	if x.StateKey == `` {
		errs = append(errs, ErrMissingStateKey)
	}
	if x.EventName == `` {
		errs = append(errs, ErrMissingEventName)
	}
	return errors.Join(errs...)
}

func (x Config) disconnectAfterFirst() bool {
	return x.DisconnectAfterFirst == nil || *x.DisconnectAfterFirst
}

func (x Config) withDefaults() Config {
	if x.Extract == nil {
		x.Extract = dom.TrimmedText
	}
	if x.Validate == nil {
		x.Validate = nonEmpty
	}
	return x
}

func (x Config) observeOptions() dom.ObserveOptions {
	if x.WatchBody {
		return dom.ObserveOptions{ChildList: true, Subtree: true, CharacterData: true}
	}
	return dom.ObserveOptions{ChildList: true}
}

func nonEmpty(v string) bool { return v != `` }

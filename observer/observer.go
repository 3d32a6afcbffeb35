package observer

import (
	"errors"
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/joeycumines/go-tagglue/dom"
	"github.com/joeycumines/go-tagglue/events"
	"github.com/joeycumines/go-tagglue/internal/logging"
	"github.com/joeycumines/go-tagglue/internal/recovery"
	"github.com/joeycumines/go-tagglue/namespace"
	"github.com/joeycumines/go-tagglue/schedule"
)

type (
	// Observer installs element observations against a document, publishing
	// to a namespace and event bus shared by every installation.
	Observer struct {
		doc    dom.Document
		ns     *namespace.Namespace
		bus    *events.Bus
		sched  schedule.Scheduler
		clock  clock.Clock
		logger *logging.Logger
	}

	// Option configures an Observer.
	Option interface {
		applyObserver(*Observer) error
	}

	optionImpl struct {
		applyObserverFunc func(*Observer) error
	}

	// PanicError is a panic recovered by SafeInstall.
	PanicError = recovery.PanicError
)

var (
	// ErrElementNotFound is returned by Install if the element doesn't exist,
	// and Config.WatchBody is false.
	ErrElementNotFound = errors.New(`observer: element not found`)

	// ErrAlreadyInstalled is returned by Ensure if the config's HookKey is
	// already set.
	ErrAlreadyInstalled = errors.New(`observer: already installed`)
)

func (x *optionImpl) applyObserver(o *Observer) error { return x.applyObserverFunc(o) }

// WithNamespace sets the namespace values are published to. Defaults to a
// new, empty namespace.
func WithNamespace(ns *namespace.Namespace) Option {
	return &optionImpl{func(o *Observer) error {
		if ns == nil {
			return errors.New(`observer: nil namespace`)
		}
		o.ns = ns
		return nil
	}}
}

// WithBus sets the bus events are dispatched on. Defaults to a new bus.
func WithBus(bus *events.Bus) Option {
	return &optionImpl{func(o *Observer) error {
		if bus == nil {
			return errors.New(`observer: nil bus`)
		}
		o.bus = bus
		return nil
	}}
}

// WithScheduler sets the scheduler used for timeouts. Without one, timeouts
// are ignored, with a warning.
func WithScheduler(s schedule.Scheduler) Option {
	return &optionImpl{func(o *Observer) error {
		o.sched = s
		return nil
	}}
}

// WithClock sets the clock used to timestamp events.
func WithClock(c clock.Clock) Option {
	return &optionImpl{func(o *Observer) error {
		if c == nil {
			return errors.New(`observer: nil clock`)
		}
		o.clock = c
		return nil
	}}
}

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(l *logging.Logger) Option {
	return &optionImpl{func(o *Observer) error {
		o.logger = l
		return nil
	}}
}

// New returns an Observer for doc.
func New(doc dom.Document, opts ...Option) (*Observer, error) {
	if doc == nil {
		return nil, errors.New(`observer: nil document`)
	}
	o := Observer{doc: doc}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyObserver(&o); err != nil {
			return nil, err
		}
	}
	if o.ns == nil {
		o.ns = namespace.New()
	}
	if o.bus == nil {
		o.bus = events.NewBus()
	}
	if o.clock == nil {
		o.clock = clock.New()
	}
	return &o, nil
}

// Namespace returns the namespace values are published to.
func (x *Observer) Namespace() *namespace.Namespace { return x.ns }

// Bus returns the bus events are dispatched on.
func (x *Observer) Bus() *events.Bus { return x.bus }

// Installed reports whether cfg's HookKey has been set, i.e. whether a prior
// Install succeeded, possibly from another caller sharing the namespace.
func (x *Observer) Installed(cfg Config) bool {
	return cfg.HookKey != `` && x.ns.Truthy(cfg.HookKey)
}

// Ensure calls Install, unless Installed, in which case it returns
// ErrAlreadyInstalled.
func (x *Observer) Ensure(cfg Config) (*Installation, error) {
	if x.Installed(cfg) {
		return nil, fmt.Errorf(`%w: %s`, ErrAlreadyInstalled, cfg.HookKey)
	}
	return x.Install(cfg)
}

// SafeInstall is Install, but recovers any panic (e.g. from a callback in
// cfg) into an error wrapping a PanicError. Any watcher the panicking
// Install had started is disconnected first.
func (x *Observer) SafeInstall(cfg Config) (inst *Installation, err error) {
	defer func() {
		if r := recover(); r != nil {
			inst = nil
			err = fmt.Errorf(`observer: install %q: %w`, cfg.Selector, PanicError{Value: r})
			x.logger.Err().Str(`selector`, cfg.Selector).Err(err).Log(`element observer panicked`)
		}
	}()
	return x.Install(cfg)
}

// Install checks for the element, publishing immediately if it already has a
// valid value. Otherwise, a change source is started, and each change is
// checked, until a valid value is found, or the timeout elapses.
//
// If the element doesn't exist, and cfg.WatchBody is false, the returned
// error wraps ErrElementNotFound, and nothing is written to the namespace.
func (x *Observer) Install(cfg Config) (*Installation, error) {
	if err := cfg.Check(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	inst := &Installation{observer: x, cfg: cfg}
	defer func() {
		if r := recover(); r != nil {
			if inst.state == Watching {
				inst.disconnect(Uninstalled)
			}
			panic(r)
		}
	}()

	el, err := x.doc.QuerySelector(cfg.Selector)
	if err != nil {
		return nil, fmt.Errorf(`observer: query %q: %w`, cfg.Selector, err)
	}

	if el != nil {
		if value, ok := inst.check(el); ok {
			inst.immediate = true
			inst.state = Emitted
			x.setKey(cfg.HookKey, true)
			inst.emit(value)
			return inst, nil
		}
	} else if !cfg.WatchBody {
		return nil, fmt.Errorf(`%w: %s`, ErrElementNotFound, cfg.Selector)
	}

	target := el
	if cfg.WatchBody {
		if target, err = x.doc.Body(); err != nil {
			return nil, fmt.Errorf(`observer: body: %w`, err)
		}
		if target == nil {
			return nil, errors.New(`observer: document has no body`)
		}
	}

	source, err := x.doc.Observe(target, cfg.observeOptions())
	if err != nil {
		return nil, fmt.Errorf(`observer: observe %q: %w`, cfg.Selector, err)
	}

	inst.source = source
	inst.state = Watching
	x.setKey(cfg.ObserverKey, source)

	if err := source.Start(inst.onChange); err != nil {
		inst.disconnect(Uninstalled)
		return nil, fmt.Errorf(`observer: start %q: %w`, cfg.Selector, err)
	}

	if cfg.Timeout > 0 {
		switch {
		case cfg.TimeoutKey == ``:
			x.logger.Warning().
				Str(`selector`, cfg.Selector).
				Dur(`timeout`, cfg.Timeout).
				Log(`element observer timeout requires a timeout key, ignoring timeout`)
		case x.sched == nil:
			x.logger.Warning().
				Str(`selector`, cfg.Selector).
				Dur(`timeout`, cfg.Timeout).
				Log(`element observer has no scheduler, ignoring timeout`)
		default:
			timer, err := x.sched.After(cfg.Timeout, inst.onTimeout)
			if err != nil {
				inst.disconnect(Uninstalled)
				return nil, fmt.Errorf(`observer: schedule timeout %q: %w`, cfg.Selector, err)
			}
			inst.timer = timer
			x.setKey(cfg.TimeoutKey, timer)
		}
	}

	x.setKey(cfg.HookKey, true)

	x.logger.Debug().
		Str(`selector`, cfg.Selector).
		Bool(`watch_body`, cfg.WatchBody).
		Log(`element observer watching`)

	return inst, nil
}

func (x *Observer) setKey(key string, v any) {
	if key != `` {
		x.ns.Set(key, v)
	}
}

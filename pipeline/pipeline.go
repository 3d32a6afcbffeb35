// Package pipeline wires element observers to element trackers, for one page
// session: each monitor publishes to a shared namespace and event bus, and
// each tracker is invoked by its trigger event.
package pipeline

import (
	"errors"
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/joeycumines/go-tagglue/analytics"
	"github.com/joeycumines/go-tagglue/config"
	"github.com/joeycumines/go-tagglue/dom"
	"github.com/joeycumines/go-tagglue/events"
	"github.com/joeycumines/go-tagglue/internal/logging"
	"github.com/joeycumines/go-tagglue/namespace"
	"github.com/joeycumines/go-tagglue/observer"
	"github.com/joeycumines/go-tagglue/schedule"
	"github.com/joeycumines/go-tagglue/tracker"
)

type (
	// Pipeline is a session's set of monitors and trackers. Like its
	// components, it must be used from a single goroutine.
	Pipeline struct {
		observer *observer.Observer
		tracker  *tracker.Tracker
		ns       *namespace.Namespace
		bus      *events.Bus
		logger   *logging.Logger
		id       string
		monitors []observer.Config
		trackers []config.BuiltTracker
		subs     []events.Subscription
		installs []*observer.Installation
		started  bool
	}

	// Option configures a Pipeline.
	Option interface {
		applyPipeline(*options) error
	}

	optionImpl struct {
		applyPipelineFunc func(*options) error
	}

	options struct {
		ns        *namespace.Namespace
		bus       *events.Bus
		committer analytics.Committer
		clock     clock.Clock
		logger    *logging.Logger
		id        string
		testMode  bool
	}
)

var (
	// ErrStarted is returned by Start, if called more than once.
	ErrStarted = errors.New(`pipeline: already started`)
)

func (x *optionImpl) applyPipeline(o *options) error { return x.applyPipelineFunc(o) }

// WithSessionID sets the session ID, added to every log entry. Defaults to a
// random UUID.
func WithSessionID(id string) Option {
	return &optionImpl{func(o *options) error {
		o.id = id
		return nil
	}}
}

// WithNamespace sets the shared namespace.
func WithNamespace(ns *namespace.Namespace) Option {
	return &optionImpl{func(o *options) error {
		o.ns = ns
		return nil
	}}
}

// WithBus sets the event bus.
func WithBus(bus *events.Bus) Option {
	return &optionImpl{func(o *options) error {
		o.bus = bus
		return nil
	}}
}

// WithCommitter sets the analytics capability. Without one, commits are
// dropped, with a warning.
func WithCommitter(c analytics.Committer) Option {
	return &optionImpl{func(o *options) error {
		o.committer = c
		return nil
	}}
}

// WithTestMode is passed through to the tracker.
func WithTestMode(enabled bool) Option {
	return &optionImpl{func(o *options) error {
		o.testMode = enabled
		return nil
	}}
}

// WithClock sets the clock used to timestamp events.
func WithClock(c clock.Clock) Option {
	return &optionImpl{func(o *options) error {
		o.clock = c
		return nil
	}}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return &optionImpl{func(o *options) error {
		o.logger = l
		return nil
	}}
}

// New builds the observer and tracker for a session. Nothing is installed
// until Start.
func New(doc dom.Document, sched schedule.Scheduler, built *config.Built, opts ...Option) (*Pipeline, error) {
	if built == nil {
		return nil, errors.New(`pipeline: nil config`)
	}
	var o options
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyPipeline(&o); err != nil {
			return nil, err
		}
	}
	if o.id == `` {
		o.id = uuid.NewString()
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
	logger := o.logger.Clone().Str(`session`, o.id).Logger()

	obs, err := observer.New(doc,
		observer.WithNamespace(o.ns),
		observer.WithBus(o.bus),
		observer.WithScheduler(sched),
		observer.WithClock(o.clock),
		observer.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf(`pipeline: %w`, err)
	}

	trk, err := tracker.New(sched,
		tracker.WithNamespace(o.ns),
		tracker.WithCommitter(o.committer),
		tracker.WithTestMode(o.testMode),
		tracker.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf(`pipeline: %w`, err)
	}

	return &Pipeline{
		observer: obs,
		tracker:  trk,
		ns:       o.ns,
		bus:      o.bus,
		logger:   logger,
		id:       o.id,
		monitors: built.Monitors,
		trackers: built.Trackers,
	}, nil
}

// ID returns the session ID.
func (x *Pipeline) ID() string { return x.id }

// Namespace returns the shared namespace.
func (x *Pipeline) Namespace() *namespace.Namespace { return x.ns }

// Bus returns the event bus.
func (x *Pipeline) Bus() *events.Bus { return x.bus }

// Installations returns the installed monitors, in config order, excluding
// any that failed, or were already installed.
func (x *Pipeline) Installations() []*observer.Installation {
	return append([]*observer.Installation(nil), x.installs...)
}

// Start subscribes every tracker to its trigger, then installs every monitor.
// Monitors whose element is absent (without watch_body) are skipped with a
// warning. Other failures are returned, joined, after attempting the rest.
func (x *Pipeline) Start() error {
	if x.started {
		return ErrStarted
	}
	x.started = true

	// subscribe first, as monitors may emit from within Install
	for _, t := range x.trackers {
		cfg := t.Config
		x.subs = append(x.subs, x.bus.Subscribe(t.Trigger, func(event string, detail events.Detail) {
			if _, err := x.tracker.SafeTrack(cfg); err != nil {
				x.logger.Warning().
					Str(`trigger`, event).
					Str(`event`, cfg.EventName).
					Err(err).
					Log(`element tracker failed`)
			}
		}))
	}

	var errs []error
	for _, cfg := range x.monitors {
		if x.observer.Installed(cfg) {
			x.logger.Debug().Str(`selector`, cfg.Selector).Log(`element observer already installed`)
			continue
		}
		inst, err := x.observer.SafeInstall(cfg)
		switch {
		case err == nil:
			x.installs = append(x.installs, inst)
		case errors.Is(err, observer.ErrElementNotFound):
			x.logger.Warning().Str(`selector`, cfg.Selector).Log(`element observer skipped, element not found`)
		default:
			errs = append(errs, err)
		}
	}

	x.logger.Info().
		Int(`monitors`, len(x.installs)).
		Int(`trackers`, len(x.subs)).
		Log(`pipeline started`)

	return errors.Join(errs...)
}

// Stop unsubscribes every tracker, and disconnects every monitor that is
// still watching. Debounce timers already scheduled may still fire.
func (x *Pipeline) Stop() {
	for _, sub := range x.subs {
		sub.Unsubscribe()
	}
	x.subs = nil
	for _, inst := range x.installs {
		inst.Disconnect()
	}
}

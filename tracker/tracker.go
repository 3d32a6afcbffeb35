package tracker

import (
	"errors"
	"fmt"
	"time"

	catrate "github.com/joeycumines/go-catrate"
	"github.com/joeycumines/go-tagglue/analytics"
	"github.com/joeycumines/go-tagglue/internal/logging"
	"github.com/joeycumines/go-tagglue/internal/recovery"
	"github.com/joeycumines/go-tagglue/namespace"
	"github.com/joeycumines/go-tagglue/schedule"
)

// PanicError is a panic recovered by SafeTrack.
type PanicError = recovery.PanicError

// DefaultDebounceDelay is used when Config.DebounceDelay is zero.
const DefaultDebounceDelay = 300 * time.Millisecond

type (
	// Config describes a value to track, and the namespace keys holding the
	// debounce timer and dedup state.
	Config struct {
		// GenerateDedupKey derives the dedup key from the value, e.g. to
		// qualify it with the page URL. Defaults to the value itself.
		GenerateDedupKey func(value string) string

		// StateKey holds the value to commit. Required.
		StateKey string

		// TimerKey holds the pending debounce timer. Required.
		TimerKey string

		// DedupKey holds the key of the last commit. If empty, every fire
		// commits.
		DedupKey string

		// VarName, if set, receives the value (via SetVar) before each commit.
		VarName string

		// EventName is the analytics event to commit. Required.
		EventName string

		// DebounceDelay defaults to DefaultDebounceDelay.
		DebounceDelay time.Duration
	}

	// Result describes a successful Track call.
	Result struct {
		// Value is the value that will be committed, when the timer fires.
		Value string
		// Scheduled is always true, for a successful call.
		Scheduled bool
	}

	// Tracker debounces, deduplicates, then commits values.
	Tracker struct {
		sched     schedule.Scheduler
		ns        *namespace.Namespace
		committer analytics.Committer
		limiter   *catrate.Limiter
		logger    *logging.Logger
		testMode  bool
	}

	// Option configures a Tracker.
	Option interface {
		applyTracker(*Tracker) error
	}

	optionImpl struct {
		applyTrackerFunc func(*Tracker) error
	}
)

var (
	// ErrNoValue is returned by Track if the StateKey is unset, or empty.
	ErrNoValue = errors.New(`tracker: no value to track`)

	// ErrCommitterUnavailable is logged when a commit is dropped, because no
	// analytics capability was configured.
	ErrCommitterUnavailable = errors.New(`tracker: analytics capability unavailable`)

	ErrMissingStateKey  = errors.New(`tracker: missing state key`)
	ErrMissingTimerKey  = errors.New(`tracker: missing timer key`)
	ErrMissingEventName = errors.New(`tracker: missing event name`)
)

func (x *optionImpl) applyTracker(t *Tracker) error { return x.applyTrackerFunc(t) }

// WithNamespace sets the namespace, which should be shared with the element
// observer. Defaults to a new, empty namespace.
func WithNamespace(ns *namespace.Namespace) Option {
	return &optionImpl{func(t *Tracker) error {
		if ns == nil {
			return errors.New(`tracker: nil namespace`)
		}
		t.ns = ns
		return nil
	}}
}

// WithCommitter sets the analytics capability. Without one, commits are
// dropped, with a warning.
func WithCommitter(c analytics.Committer) Option {
	return &optionImpl{func(t *Tracker) error {
		t.committer = c
		return nil
	}}
}

// WithTestMode marks the tracker as running without a real analytics
// capability, which only changes the warning logged for dropped commits.
func WithTestMode(enabled bool) Option {
	return &optionImpl{func(t *Tracker) error {
		t.testMode = enabled
		return nil
	}}
}

// WithWarningRate limits how often dropped commits are logged, per event
// name. See [catrate.NewLimiter] for the format. Defaults to once per
// minute. An empty map disables limiting.
func WithWarningRate(rates map[time.Duration]int) Option {
	return &optionImpl{func(t *Tracker) (err error) {
		if len(rates) == 0 {
			// the zero value applies no limits
			t.limiter = new(catrate.Limiter)
			return nil
		}
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf(`tracker: warning rate: %v`, r)
			}
		}()
		t.limiter = catrate.NewLimiter(rates)
		return nil
	}}
}

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(l *logging.Logger) Option {
	return &optionImpl{func(t *Tracker) error {
		t.logger = l
		return nil
	}}
}

// New returns a Tracker, which schedules debounce timers using sched.
func New(sched schedule.Scheduler, opts ...Option) (*Tracker, error) {
	if sched == nil {
		return nil, errors.New(`tracker: nil scheduler`)
	}
	t := Tracker{sched: sched}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyTracker(&t); err != nil {
			return nil, err
		}
	}
	if t.ns == nil {
		t.ns = namespace.New()
	}
	if t.limiter == nil {
		t.limiter = catrate.NewLimiter(map[time.Duration]int{time.Minute: 1})
	}
	return &t, nil
}

// Namespace returns the namespace.
func (x *Tracker) Namespace() *namespace.Namespace { return x.ns }

// Check reports any missing required fields.
func (x Config) Check() error {
	var errs []error
	if x.StateKey == `` {
		errs = append(errs, ErrMissingStateKey)
	}
	if x.TimerKey == `` {
		errs = append(errs, ErrMissingTimerKey)
	}
	if x.EventName == `` {
		errs = append(errs, ErrMissingEventName)
	}
	return errors.Join(errs...)
}

func (x Config) withDefaults() Config {
	if x.DebounceDelay == 0 {
		x.DebounceDelay = DefaultDebounceDelay
	}
	if x.GenerateDedupKey == nil {
		x.GenerateDedupKey = identity
	}
	return x
}

// SafeTrack is Track, but recovers any panic into an error wrapping a
// PanicError.
func (x *Tracker) SafeTrack(cfg Config) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{}
			err = fmt.Errorf(`tracker: track %q: %w`, cfg.EventName, PanicError{Value: r})
			x.logger.Err().Str(`event`, cfg.EventName).Err(err).Log(`element tracker panicked`)
		}
	}()
	return x.Track(cfg)
}

// Track reads the value at cfg.StateKey, then (re)starts the debounce
// timer, replacing any pending timer for cfg.TimerKey. The value read now is
// the value committed, if this call is the last before the timer fires.
func (x *Tracker) Track(cfg Config) (Result, error) {
	if err := cfg.Check(); err != nil {
		return Result{}, err
	}
	cfg = cfg.withDefaults()

	value := x.ns.String(cfg.StateKey)
	if value == `` {
		x.logger.Debug().
			Str(`key`, cfg.StateKey).
			Str(`event`, cfg.EventName).
			Log(`element tracker has no value`)
		return Result{}, fmt.Errorf(`%w: %s`, ErrNoValue, cfg.StateKey)
	}

	if schedule.StopTimer(x.ns.Get(cfg.TimerKey)) {
		x.logger.Trace().
			Str(`event`, cfg.EventName).
			Log(`element tracker debounced`)
	}
	x.ns.Clear(cfg.TimerKey)

	timer, err := x.sched.After(cfg.DebounceDelay, func() { x.fire(cfg, value) })
	if err != nil {
		return Result{}, fmt.Errorf(`tracker: schedule %q: %w`, cfg.EventName, err)
	}
	x.ns.Set(cfg.TimerKey, timer)

	return Result{Value: value, Scheduled: true}, nil
}

func (x *Tracker) fire(cfg Config, value string) {
	defer func() {
		if r := recover(); r != nil {
			x.logger.Err().
				Str(`event`, cfg.EventName).
				Str(`panic`, fmt.Sprint(r)).
				Log(`element tracker callback panicked`)
		}
	}()

	x.ns.Clear(cfg.TimerKey)

	key := cfg.GenerateDedupKey(value)
	if cfg.DedupKey != `` {
		if prev, ok := x.ns.Lookup(cfg.DedupKey); ok && prev == key {
			x.logger.Debug().
				Str(`event`, cfg.EventName).
				Str(`dedup_key`, key).
				Log(`element tracker skipped duplicate`)
			return
		}
	}

	if x.committer == nil {
		if _, ok := x.limiter.Allow(cfg.EventName); ok {
			msg := `analytics capability unavailable, commit dropped`
			if x.testMode {
				msg = `analytics capability unavailable in test mode, commit skipped`
			}
			x.logger.Warning().
				Str(`event`, cfg.EventName).
				Str(`value`, value).
				Err(ErrCommitterUnavailable).
				Log(msg)
		}
		return
	}

	if cfg.DedupKey != `` {
		x.ns.Set(cfg.DedupKey, key)
	}

	if cfg.VarName != `` {
		if err := x.committer.SetVar(cfg.VarName, value); err != nil {
			x.logger.Warning().
				Str(`event`, cfg.EventName).
				Str(`var`, cfg.VarName).
				Err(err).
				Log(`element tracker set var failed`)
		}
	}

	if err := x.committer.Track(cfg.EventName); err != nil {
		x.logger.Warning().
			Str(`event`, cfg.EventName).
			Err(err).
			Log(`element tracker commit failed`)
		return
	}

	x.logger.Info().
		Str(`event`, cfg.EventName).
		Str(`value`, value).
		Log(`element tracker committed`)
}

func identity(v string) string { return v }

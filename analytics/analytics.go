// Package analytics models the downstream analytics capability that the
// element tracker commits events to, e.g. a tag manager's track call.
package analytics

import (
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/joeycumines/go-tagglue/glue"
	"github.com/joeycumines/go-tagglue/internal/logging"
)

type (
	// Committer is the analytics capability. Variable names may be dotted
	// paths, e.g. "page.info.title", addressing nested objects.
	Committer interface {
		// Track commits the named event, along with the current variables.
		Track(event string) error
		// SetVar sets a variable, to be included with subsequent commits.
		SetVar(name string, value any) error
		// GetVar returns a variable previously set.
		GetVar(name string) (any, bool)
	}

	// Commit is a single Track call, as captured by Recorder.
	Commit struct {
		Time  time.Time
		Vars  map[string]any
		Event string
	}

	// Recorder is an in-memory Committer. It is safe for concurrent use.
	Recorder struct {
		clock   clock.Clock
		vars    map[string]any
		commits []Commit
		mu      sync.Mutex
	}

	// Logger is a Committer that logs each call, then forwards it.
	Logger struct {
		next   Committer
		logger *logging.Logger
	}

	// RecorderOption configures a Recorder.
	RecorderOption interface {
		applyRecorder(r *Recorder)
	}

	recorderOptionImpl struct {
		fn func(r *Recorder)
	}
)

var (
	// compile time assertions

	_ Committer = (*Recorder)(nil)
	_ Committer = (*Logger)(nil)
)

var (
	// ErrEmptyEvent is returned by Track for an empty event name.
	ErrEmptyEvent = errors.New(`analytics: empty event name`)
)

// WithClock sets the clock used to timestamp commits.
func WithClock(c clock.Clock) RecorderOption {
	return recorderOptionImpl{fn: func(r *Recorder) {
		if c != nil {
			r.clock = c
		}
	}}
}

func (x recorderOptionImpl) applyRecorder(r *Recorder) { x.fn(r) }

// NewRecorder returns an empty Recorder.
func NewRecorder(opts ...RecorderOption) *Recorder {
	r := Recorder{clock: clock.New(), vars: make(map[string]any)}
	for _, o := range opts {
		if o != nil {
			o.applyRecorder(&r)
		}
	}
	return &r
}

func (x *Recorder) Track(event string) error {
	if event == `` {
		return ErrEmptyEvent
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	x.commits = append(x.commits, Commit{
		Time:  x.clock.Now(),
		Vars:  copyVars(x.vars),
		Event: event,
	})
	return nil
}

func (x *Recorder) SetVar(name string, value any) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	return glue.SetPath(x.vars, name, value)
}

func (x *Recorder) GetVar(name string) (any, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	v, ok := glue.GetPath(x.vars, name)
	if m, isMap := v.(map[string]any); isMap {
		v = copyVars(m)
	}
	return v, ok
}

// Commits returns a copy of every commit so far, oldest first.
func (x *Recorder) Commits() []Commit {
	x.mu.Lock()
	defer x.mu.Unlock()
	return append([]Commit(nil), x.commits...)
}

// Events returns the event name of every commit so far, oldest first.
func (x *Recorder) Events() []string {
	x.mu.Lock()
	defer x.mu.Unlock()
	events := make([]string, len(x.commits))
	for i, c := range x.commits {
		events[i] = c.Event
	}
	return events
}

// NewLogger wraps next, logging every call at the informational level (or
// warning, on failure). A nil next forwards to a new Recorder.
func NewLogger(logger *logging.Logger, next Committer) *Logger {
	if next == nil {
		next = NewRecorder()
	}
	return &Logger{next: next, logger: logger}
}

func (x *Logger) Track(event string) error {
	err := x.next.Track(event)
	if err != nil {
		x.logger.Warning().Str(`event`, event).Err(err).Log(`analytics commit failed`)
	} else {
		x.logger.Info().Str(`event`, event).Log(`analytics commit`)
	}
	return err
}

func (x *Logger) SetVar(name string, value any) error {
	err := x.next.SetVar(name, value)
	if err != nil {
		x.logger.Warning().Str(`var`, name).Err(err).Log(`analytics set var failed`)
	} else {
		x.logger.Debug().Str(`var`, name).Any(`value`, value).Log(`analytics set var`)
	}
	return err
}

func (x *Logger) GetVar(name string) (any, bool) { return x.next.GetVar(name) }

func copyVars(m map[string]any) map[string]any {
	c := make(map[string]any, len(m))
	for k, v := range m {
		if nested, ok := v.(map[string]any); ok {
			v = copyVars(nested)
		}
		c[k] = v
	}
	return c
}

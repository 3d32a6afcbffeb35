// Package jsfunc compiles small JavaScript functions, as used by glue
// configuration for value validators and dedup key generators, into Go
// funcs.
//
// Functions run in a goja runtime preloaded with the glue helpers
// (isDefaultTitle, isRealTitle, shortHash, extractPublisherId, getCookie,
// sanitizeParam) and a read-only location object.
package jsfunc

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
	"github.com/joeycumines/go-tagglue/glue"
	"github.com/joeycumines/go-tagglue/internal/logging"
)

type (
	// Env is a JavaScript runtime shared by the functions it compiles. Calls
	// are serialized.
	Env struct {
		vm       *goja.Runtime
		location func() string
		cookies  func() string
		logger    *logging.Logger
		afterFunc func(d time.Duration, f func()) *time.Timer
		timeout   time.Duration
		mu        sync.Mutex
	}

	// Func is a compiled function of one string argument.
	Func struct {
		env *Env
		fn  goja.Callable
		src string
	}

	// Option configures an Env.
	Option interface {
		applyEnv(*Env) error
	}

	optionImpl struct {
		applyEnvFunc func(*Env) error
	}
)

var (
	// ErrTimeout is the cause of calls interrupted by WithTimeout.
	ErrTimeout = errors.New(`jsfunc: timeout`)

	// ErrNotFunction is returned by Compile for source that doesn't evaluate
	// to a function.
	ErrNotFunction = errors.New(`jsfunc: not a function`)
)

func (x *optionImpl) applyEnv(e *Env) error { return x.applyEnvFunc(e) }

// WithLocation sets the source of location.href. Defaults to "about:blank".
func WithLocation(href func() string) Option {
	return &optionImpl{func(e *Env) error {
		e.location = href
		return nil
	}}
}

// WithCookies sets the source of the cookie string read by getCookie.
func WithCookies(cookies func() string) Option {
	return &optionImpl{func(e *Env) error {
		e.cookies = cookies
		return nil
	}}
}

// WithTimeout interrupts calls that run longer than d. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return &optionImpl{func(e *Env) error {
		if d < 0 {
			return fmt.Errorf(`jsfunc: negative timeout: %s`, d)
		}
		e.timeout = d
		return nil
	}}
}

// WithLogger sets the logger used to report errors from funcs returned by
// Predicate and KeyFunc.
func WithLogger(l *logging.Logger) Option {
	return &optionImpl{func(e *Env) error {
		e.logger = l
		return nil
	}}
}

// NewEnv returns a new runtime, with the glue helpers installed.
func NewEnv(opts ...Option) (*Env, error) {
	e := Env{vm: goja.New(), afterFunc: time.AfterFunc}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyEnv(&e); err != nil {
			return nil, err
		}
	}
	if e.location == nil {
		e.location = func() string { return `about:blank` }
	}
	if e.cookies == nil {
		e.cookies = func() string { return `` }
	}
	if err := e.install(); err != nil {
		return nil, err
	}
	return &e, nil
}

func (x *Env) install() error {
	vm := x.vm
	for name, fn := range map[string]any{
		`isDefaultTitle`: glue.IsDefaultTitle,
		`isRealTitle`:    glue.IsRealTitle,
		`shortHash`:      glue.ShortHash,
		`sanitizeParam`:  glue.SanitizeParam,
		`extractPublisherId`: func(path string) goja.Value {
			if id, ok := glue.ExtractPublisherID(path); ok {
				return vm.ToValue(id)
			}
			return goja.Null()
		},
		`getCookie`: func(name string) goja.Value {
			if v, ok := glue.Cookie(x.cookies(), name); ok {
				return vm.ToValue(v)
			}
			return goja.Null()
		},
	} {
		if err := vm.Set(name, fn); err != nil {
			return fmt.Errorf(`jsfunc: install %s: %w`, name, err)
		}
	}

	location := vm.NewObject()
	for name, get := range map[string]func(u *url.URL, href string) string{
		`href`:     func(_ *url.URL, href string) string { return href },
		`pathname`: func(u *url.URL, _ string) string { return u.Path },
		`search`: func(u *url.URL, _ string) string {
			if u.RawQuery == `` {
				return ``
			}
			return `?` + u.RawQuery
		},
		`hostname`: func(u *url.URL, _ string) string { return u.Hostname() },
	} {
		getter := vm.ToValue(func(goja.FunctionCall) goja.Value {
			href := x.location()
			u, err := url.Parse(href)
			if err != nil {
				u = new(url.URL)
			}
			return vm.ToValue(get(u, href))
		})
		if err := location.DefineAccessorProperty(name, getter, nil, goja.FLAG_FALSE, goja.FLAG_TRUE); err != nil {
			return fmt.Errorf(`jsfunc: install location.%s: %w`, name, err)
		}
	}
	return vm.Set(`location`, location)
}

// Compile evaluates src, which must be a function expression, e.g.
// "v => v.length > 3".
func (x *Env) Compile(src string) (*Func, error) {
	src = strings.TrimSpace(src)
	if src == `` {
		return nil, fmt.Errorf(`%w: empty source`, ErrNotFunction)
	}
	prog, err := goja.Compile(``, `(`+src+`)`, true)
	if err != nil {
		return nil, fmt.Errorf(`jsfunc: compile: %w`, err)
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	v, err := x.vm.RunProgram(prog)
	if err != nil {
		return nil, fmt.Errorf(`jsfunc: evaluate: %w`, err)
	}
	fn, ok := goja.AssertFunction(v)
	if !ok {
		return nil, fmt.Errorf(`%w: %s`, ErrNotFunction, src)
	}
	return &Func{env: x, fn: fn, src: src}, nil
}

// Predicate compiles src as a validator. Calls that fail are logged, and
// reported as invalid.
func (x *Env) Predicate(src string) (func(value string) bool, error) {
	f, err := x.Compile(src)
	if err != nil {
		return nil, err
	}
	return func(value string) bool {
		ok, err := f.Bool(value)
		if err != nil {
			x.logger.Warning().Str(`func`, f.src).Err(err).Log(`js predicate failed`)
			return false
		}
		return ok
	}, nil
}

// KeyFunc compiles src as a key generator. Calls that fail are logged, and
// return the value unchanged.
func (x *Env) KeyFunc(src string) (func(value string) string, error) {
	f, err := x.Compile(src)
	if err != nil {
		return nil, err
	}
	return func(value string) string {
		key, err := f.String(value)
		if err != nil {
			x.logger.Warning().Str(`func`, f.src).Err(err).Log(`js key func failed`)
			return value
		}
		return key
	}, nil
}

// Call invokes the function with arg.
func (x *Func) Call(arg string) (goja.Value, error) {
	e := x.env
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.timeout > 0 {
		// the timer callback may already be running when Stop is called
		var (
			doneMu sync.Mutex
			done   bool
		)
		timer := e.afterFunc(e.timeout, func() {
			doneMu.Lock()
			defer doneMu.Unlock()
			if !done {
				e.vm.Interrupt(ErrTimeout)
			}
		})
		defer func() {
			timer.Stop()
			doneMu.Lock()
			done = true
			doneMu.Unlock()
			e.vm.ClearInterrupt()
		}()
	}
	v, err := x.fn(goja.Undefined(), e.vm.ToValue(arg))
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			return nil, fmt.Errorf(`jsfunc: call: %w`, ErrTimeout)
		}
		return nil, fmt.Errorf(`jsfunc: call: %w`, err)
	}
	return v, nil
}

// Bool calls the function, converting the result per JavaScript truthiness.
func (x *Func) Bool(arg string) (bool, error) {
	v, err := x.Call(arg)
	if err != nil {
		return false, err
	}
	return v.ToBoolean(), nil
}

// String calls the function, converting the result to a string. Undefined
// and null convert to the empty string.
func (x *Func) String(arg string) (string, error) {
	v, err := x.Call(arg)
	if err != nil {
		return ``, err
	}
	if goja.IsUndefined(v) || goja.IsNull(v) {
		return ``, nil
	}
	return v.String(), nil
}

// Source returns the source the function was compiled from.
func (x *Func) Source() string { return x.src }

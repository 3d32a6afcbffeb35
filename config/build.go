package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joeycumines/go-tagglue/dom"
	"github.com/joeycumines/go-tagglue/jsfunc"
	"github.com/joeycumines/go-tagglue/observer"
	"github.com/joeycumines/go-tagglue/tracker"
)

// Built is a Config, compiled into component configs.
type Built struct {
	Monitors []observer.Config
	Trackers []BuiltTracker
}

// BuiltTracker is a tracker.Config, with the event that triggers it.
type BuiltTracker struct {
	Trigger string
	Config  tracker.Config
}

// ParseExtractor resolves an extractor name: "trimmed_text" (the default),
// "text", or "attr:<name>".
func ParseExtractor(name string) (dom.Extractor, error) {
	switch name {
	case ``, `trimmed_text`:
		return dom.TrimmedText, nil
	case `text`:
		return dom.TextContent, nil
	}
	if attr, ok := strings.CutPrefix(name, `attr:`); ok && attr != `` {
		return dom.AttributeExtractor(attr), nil
	}
	return nil, fmt.Errorf(`unknown extractor %q`, name)
}

// Build compiles every monitor and tracker, returning all errors, joined.
func (x *Config) Build(env *jsfunc.Env) (*Built, error) {
	var (
		b    Built
		errs []error
	)
	for i, m := range x.Monitors {
		cfg, err := m.ObserverConfig(env)
		if err != nil {
			errs = append(errs, fmt.Errorf(`monitors[%d]: %w`, i, err))
			continue
		}
		b.Monitors = append(b.Monitors, cfg)
	}
	for i, t := range x.Trackers {
		cfg, err := t.TrackerConfig(env)
		if err != nil {
			errs = append(errs, fmt.Errorf(`trackers[%d]: %w`, i, err))
			continue
		}
		b.Trackers = append(b.Trackers, BuiltTracker{Trigger: t.Trigger, Config: cfg})
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &b, nil
}

// ObserverConfig converts the monitor. Unset hook, observer and timeout keys
// are derived from the name.
func (x Monitor) ObserverConfig(env *jsfunc.Env) (observer.Config, error) {
	extract, err := ParseExtractor(x.Extract)
	if err != nil {
		return observer.Config{}, fmt.Errorf(`extract: %w`, err)
	}
	cfg := observer.Config{
		Extract:              extract,
		DisconnectAfterFirst: x.DisconnectAfterFirst,
		Selector:             x.Selector,
		StateKey:             x.StateKey,
		HookKey:              orDefault(x.HookKey, x.Name+`_hook`),
		ObserverKey:          orDefault(x.ObserverKey, x.Name+`_observer`),
		TimeoutKey:           x.TimeoutKey,
		EventName:            x.Event,
		Timeout:              x.Timeout,
		WatchBody:            x.WatchBody,
	}
	if cfg.Timeout > 0 && cfg.TimeoutKey == `` {
		cfg.TimeoutKey = x.Name + `_timeout`
	}
	if x.Validate != `` {
		if cfg.Validate, err = env.Predicate(x.Validate); err != nil {
			return observer.Config{}, fmt.Errorf(`validate: %w`, err)
		}
	}
	return cfg, cfg.Check()
}

// TrackerConfig converts the tracker.
func (x Tracker) TrackerConfig(env *jsfunc.Env) (tracker.Config, error) {
	cfg := tracker.Config{
		StateKey:      x.StateKey,
		TimerKey:      x.TimerKey,
		DedupKey:      x.DedupKey,
		VarName:       x.Var,
		EventName:     x.Event,
		DebounceDelay: x.Debounce,
	}
	if x.Dedup != `` {
		var err error
		if cfg.GenerateDedupKey, err = env.KeyFunc(x.Dedup); err != nil {
			return tracker.Config{}, fmt.Errorf(`dedup: %w`, err)
		}
	}
	return cfg, cfg.Check()
}

func orDefault(v, def string) string {
	if v == `` {
		return def
	}
	return v
}

// Package config loads the runner's YAML configuration, which describes the
// page to watch, and the element monitors and trackers to install on it.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type (
	// Config is the root of the configuration file.
	Config struct {
		Session  Session   `yaml:"session"`
		Logging  Logging   `yaml:"logging"`
		Browser  Browser   `yaml:"browser"`
		Monitors []Monitor `yaml:"monitors"`
		Trackers []Tracker `yaml:"trackers"`
	}

	// Session describes the page.
	Session struct {
		URL string `yaml:"url"`
		// TestMode marks the session as having no real analytics capability,
		// which changes the warnings logged for dropped commits.
		TestMode bool `yaml:"test_mode"`
		// JSTimeout bounds each call of a JavaScript validator or key
		// generator.
		JSTimeout time.Duration `yaml:"js_timeout"`
	}

	Logging struct {
		Level   string `yaml:"level"`
		Console bool   `yaml:"console"`
	}

	// Browser configures the rod browser.
	Browser struct {
		// ControlURL connects to an existing browser, instead of launching
		// one.
		ControlURL string `yaml:"control_url"`
		Bin        string `yaml:"bin"`
		Headless   *bool  `yaml:"headless"`
	}

	// Monitor configures an element observer.
	Monitor struct {
		DisconnectAfterFirst *bool         `yaml:"disconnect_after_first"`
		Name                 string        `yaml:"name"`
		Selector             string        `yaml:"selector"`
		StateKey             string        `yaml:"state_key"`
		HookKey              string        `yaml:"hook_key"`
		ObserverKey          string        `yaml:"observer_key"`
		TimeoutKey           string        `yaml:"timeout_key"`
		Event                string        `yaml:"event"`
		Extract              string        `yaml:"extract"`
		Validate             string        `yaml:"validate"`
		Timeout              time.Duration `yaml:"timeout"`
		WatchBody            bool          `yaml:"watch_body"`
	}

	// Tracker configures an element tracker, run each time Trigger is
	// dispatched by a monitor.
	Tracker struct {
		Name     string        `yaml:"name"`
		Trigger  string        `yaml:"trigger"`
		StateKey string        `yaml:"state_key"`
		TimerKey string        `yaml:"timer_key"`
		DedupKey string        `yaml:"dedup_key"`
		Var      string        `yaml:"var"`
		Event    string        `yaml:"event"`
		Dedup    string        `yaml:"dedup"`
		Debounce time.Duration `yaml:"debounce"`
	}

	// Env holds the environment overrides, all prefixed with TAGGLUE_.
	Env struct {
		URL        *string `envconfig:"URL"`
		LogLevel   *string `envconfig:"LOG_LEVEL"`
		ControlURL *string `envconfig:"CONTROL_URL"`
		Headless   *bool   `envconfig:"HEADLESS"`
		TestMode   *bool   `envconfig:"TEST_MODE"`
	}
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = `TAGGLUE`

// Load reads, decodes, applies environment overrides, and validates the
// file at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf(`config: %w`, err)
	}
	c, err := Decode(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf(`config: %s: %w`, path, err)
	}
	env, err := LoadEnv()
	if err != nil {
		return nil, err
	}
	c.ApplyEnv(env)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf(`config: %s: %w`, path, err)
	}
	return c, nil
}

// Decode parses YAML from r, rejecting unknown fields.
func Decode(r io.Reader) (*Config, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var c Config
	if err := dec.Decode(&c); err != nil {
		if errors.Is(err, io.EOF) {
			return &c, nil
		}
		return nil, fmt.Errorf(`decode: %w`, err)
	}
	return &c, nil
}

// LoadEnv reads the environment overrides.
func LoadEnv() (Env, error) {
	var env Env
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return Env{}, fmt.Errorf(`config: env: %w`, err)
	}
	return env, nil
}

// ApplyEnv overrides fields with those set in env.
func (x *Config) ApplyEnv(env Env) {
	if env.URL != nil {
		x.Session.URL = *env.URL
	}
	if env.LogLevel != nil {
		x.Logging.Level = *env.LogLevel
	}
	if env.ControlURL != nil {
		x.Browser.ControlURL = *env.ControlURL
	}
	if env.Headless != nil {
		v := *env.Headless
		x.Browser.Headless = &v
	}
	if env.TestMode != nil {
		x.Session.TestMode = *env.TestMode
	}
}

// HeadlessOrDefault returns Headless, defaulting to true.
func (x Browser) HeadlessOrDefault() bool { return x.Headless == nil || *x.Headless }

// Validate checks the structure, returning every problem found, joined.
// Extractors and JavaScript sources are checked by Build.
func (x *Config) Validate() error {
	var errs []error
	if x.Session.JSTimeout < 0 {
		errs = append(errs, errors.New(`session.js_timeout: must not be negative`))
	}
	if len(x.Monitors) == 0 {
		errs = append(errs, errors.New(`monitors: at least one is required`))
	}

	names := make(map[string]struct{})
	events := make(map[string]struct{})
	for i, m := range x.Monitors {
		field := fmt.Sprintf(`monitors[%d]`, i)
		if m.Name == `` {
			errs = append(errs, fmt.Errorf(`%s.name: required`, field))
		} else if _, dup := names[m.Name]; dup {
			errs = append(errs, fmt.Errorf(`%s.name: duplicate %q`, field, m.Name))
		}
		names[m.Name] = struct{}{}
		if m.Selector == `` {
			errs = append(errs, fmt.Errorf(`%s.selector: required`, field))
		}
		if m.StateKey == `` {
			errs = append(errs, fmt.Errorf(`%s.state_key: required`, field))
		}
		if m.Event == `` {
			errs = append(errs, fmt.Errorf(`%s.event: required`, field))
		}
		events[m.Event] = struct{}{}
		if m.Timeout < 0 {
			errs = append(errs, fmt.Errorf(`%s.timeout: must not be negative`, field))
		}
	}

	for i, t := range x.Trackers {
		field := fmt.Sprintf(`trackers[%d]`, i)
		if t.Name == `` {
			errs = append(errs, fmt.Errorf(`%s.name: required`, field))
		} else if _, dup := names[t.Name]; dup {
			errs = append(errs, fmt.Errorf(`%s.name: duplicate %q`, field, t.Name))
		}
		names[t.Name] = struct{}{}
		if t.Trigger == `` {
			errs = append(errs, fmt.Errorf(`%s.trigger: required`, field))
		} else if _, ok := events[t.Trigger]; !ok {
			errs = append(errs, fmt.Errorf(`%s.trigger: no monitor dispatches %q`, field, t.Trigger))
		}
		if t.StateKey == `` {
			errs = append(errs, fmt.Errorf(`%s.state_key: required`, field))
		}
		if t.TimerKey == `` {
			errs = append(errs, fmt.Errorf(`%s.timer_key: required`, field))
		}
		if t.Event == `` {
			errs = append(errs, fmt.Errorf(`%s.event: required`, field))
		}
		if t.Debounce < 0 {
			errs = append(errs, fmt.Errorf(`%s.debounce: must not be negative`, field))
		}
	}

	return errors.Join(errs...)
}

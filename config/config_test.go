package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/joeycumines/go-tagglue/dom/domtest"
	"github.com/joeycumines/go-tagglue/jsfunc"
	"github.com/joeycumines/go-tagglue/observer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	c, err := Load(filepath.Join(`testdata`, `partner.yaml`))
	require.NoError(t, err)

	assert.Equal(t, `https://app.example.com/publisher/7781/overview`, c.Session.URL)
	assert.Equal(t, 100*time.Millisecond, c.Session.JSTimeout)
	assert.Equal(t, Logging{Level: `debug`, Console: true}, c.Logging)
	assert.False(t, c.Browser.HeadlessOrDefault())
	require.Len(t, c.Monitors, 2)
	assert.Equal(t, 10*time.Second, c.Monitors[0].Timeout)
	assert.Equal(t, observer.Bool(false), c.Monitors[1].DisconnectAfterFirst)
	require.Len(t, c.Trackers, 2)
	assert.Equal(t, time.Second, c.Trackers[1].Debounce)
}

func TestLoad_envOverrides(t *testing.T) {
	t.Setenv(`TAGGLUE_URL`, `https://other.example.com/`)
	t.Setenv(`TAGGLUE_LOG_LEVEL`, `warn`)
	t.Setenv(`TAGGLUE_HEADLESS`, `true`)
	t.Setenv(`TAGGLUE_TEST_MODE`, `true`)
	t.Setenv(`TAGGLUE_CONTROL_URL`, `ws://127.0.0.1:9222/devtools/browser/x`)

	c, err := Load(filepath.Join(`testdata`, `partner.yaml`))
	require.NoError(t, err)
	assert.Equal(t, `https://other.example.com/`, c.Session.URL)
	assert.Equal(t, `warn`, c.Logging.Level)
	assert.True(t, c.Browser.HeadlessOrDefault())
	assert.True(t, c.Session.TestMode)
	assert.Equal(t, `ws://127.0.0.1:9222/devtools/browser/x`, c.Browser.ControlURL)
}

func TestLoadEnv_invalid(t *testing.T) {
	t.Setenv(`TAGGLUE_HEADLESS`, `sometimes`)
	_, err := LoadEnv()
	assert.ErrorContains(t, err, `config: env: `)
}

func TestLoad_errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), `missing.yaml`))
	assert.ErrorIs(t, err, os.ErrNotExist)

	path := filepath.Join(t.TempDir(), `bad.yaml`)
	require.NoError(t, os.WriteFile(path, []byte("monitors:\n  - name: x\n    selectr: title\n"), 0o600))
	_, err = Load(path)
	assert.ErrorContains(t, err, `field selectr not found`)
}

func TestDecode_empty(t *testing.T) {
	c, err := Decode(strings.NewReader(``))
	require.NoError(t, err)
	assert.EqualError(t, c.Validate(), `monitors: at least one is required`)
}

func TestConfig_Validate(t *testing.T) {
	c := Config{
		Session: Session{JSTimeout: -1},
		Monitors: []Monitor{
			{Name: `a`, Selector: `title`, StateKey: `t`, Event: `e`, Timeout: -time.Second},
			{Name: `a`},
		},
		Trackers: []Tracker{
			{Name: `a`, Trigger: `other`, StateKey: `t`, TimerKey: `tt`, Event: `x`, Debounce: -1},
			{},
		},
	}
	err := c.Validate()
	require.Error(t, err)
	assert.Equal(t, []string{
		`session.js_timeout: must not be negative`,
		`monitors[0].timeout: must not be negative`,
		`monitors[1].name: duplicate "a"`,
		`monitors[1].selector: required`,
		`monitors[1].state_key: required`,
		`monitors[1].event: required`,
		`trackers[0].name: duplicate "a"`,
		`trackers[0].trigger: no monitor dispatches "other"`,
		`trackers[0].debounce: must not be negative`,
		`trackers[1].name: required`,
		`trackers[1].trigger: required`,
		`trackers[1].state_key: required`,
		`trackers[1].timer_key: required`,
		`trackers[1].event: required`,
	}, strings.Split(err.Error(), "\n"))
}

func TestParseExtractor(t *testing.T) {
	el := &domtest.Element{Text: "  a\n b ", Attrs: map[string]string{`data-name`: `X`}}
	for _, tc := range [...]struct {
		Name string
		Want string
		Err  bool
	}{
		{``, `a b`, false},
		{`trimmed_text`, `a b`, false},
		{`text`, "  a\n b ", false},
		{`attr:data-name`, `X`, false},
		{`attr:`, ``, true},
		{`html`, ``, true},
	} {
		t.Run(tc.Name, func(t *testing.T) {
			fn, err := ParseExtractor(tc.Name)
			if tc.Err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			v, err := fn(el)
			require.NoError(t, err)
			assert.Equal(t, tc.Want, v)
		})
	}
}

func TestConfig_Build(t *testing.T) {
	c, err := Load(filepath.Join(`testdata`, `partner.yaml`))
	require.NoError(t, err)
	href := c.Session.URL
	env, err := jsfunc.NewEnv(jsfunc.WithLocation(func() string { return href }))
	require.NoError(t, err)

	b, err := c.Build(env)
	require.NoError(t, err)
	require.Len(t, b.Monitors, 2)
	require.Len(t, b.Trackers, 2)

	title := b.Monitors[0]
	assert.Equal(t, `title_hook`, title.HookKey)
	assert.Equal(t, `title_observer`, title.ObserverKey)
	assert.Equal(t, `title_timeout`, title.TimeoutKey)
	assert.False(t, title.Validate(`Loading...`))
	assert.True(t, title.Validate(`Partner X`))

	partner := b.Monitors[1]
	assert.Empty(t, partner.TimeoutKey)
	assert.True(t, partner.WatchBody)
	v, err := partner.Extract(&domtest.Element{Attrs: map[string]string{`data-name`: `Partner X`}})
	require.NoError(t, err)
	assert.Equal(t, `Partner X`, v)

	assert.Equal(t, `titleChange`, b.Trackers[0].Trigger)
	assert.Equal(t, `page.title`, b.Trackers[0].Config.VarName)
	assert.Equal(t, `/publisher/7781/overview|Overview`, b.Trackers[0].Config.GenerateDedupKey(`Overview`))
	assert.Nil(t, b.Trackers[1].Config.GenerateDedupKey)
	assert.Equal(t, time.Second, b.Trackers[1].Config.DebounceDelay)
}

func TestConfig_Build_errors(t *testing.T) {
	env, err := jsfunc.NewEnv()
	require.NoError(t, err)
	c := Config{
		Monitors: []Monitor{
			{Name: `a`, Selector: `title`, StateKey: `t`, Event: `e`, Extract: `html`},
			{Name: `b`, Selector: `title`, StateKey: `t`, Event: `e`, Validate: `v => {`},
		},
		Trackers: []Tracker{
			{Name: `c`, Trigger: `e`, StateKey: `t`, TimerKey: `tt`, Event: `x`, Dedup: `42`},
		},
	}
	_, err = c.Build(env)
	require.Error(t, err)
	assert.ErrorContains(t, err, `monitors[0]: extract: unknown extractor "html"`)
	assert.ErrorContains(t, err, `monitors[1]: validate: jsfunc: compile: `)
	assert.ErrorContains(t, err, `trackers[0]: dedup: jsfunc: not a function: 42`)
	assert.ErrorIs(t, err, jsfunc.ErrNotFunction)
}

package jsfunc

import (
	"testing"
	"time"

	"github.com/joeycumines/go-tagglue/internal/logging"
	"github.com/joeycumines/logiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnv_Predicate(t *testing.T) {
	env, err := NewEnv()
	require.NoError(t, err)

	for _, tc := range [...]struct {
		Src   string
		Value string
		Want  bool
	}{
		{`v => v.length > 3`, `abcd`, true},
		{`v => v.length > 3`, `abc`, false},
		{`v => !isDefaultTitle(v)`, `Loading...`, false},
		{`isRealTitle`, `Partner X`, true},
		{`function (v) { return v && v.indexOf('Partner') === 0 }`, `Partner X`, true},
		{`v => v`, ``, false},
		{`v => extractPublisherId('/publisher/' + v + '/overview') === v`, `7781`, true},
	} {
		t.Run(tc.Src, func(t *testing.T) {
			fn, err := env.Predicate(tc.Src)
			require.NoError(t, err)
			assert.Equal(t, tc.Want, fn(tc.Value))
		})
	}
}

func TestEnv_KeyFunc(t *testing.T) {
	href := `https://app.example.com/publisher/7781/overview?tab=a`
	env, err := NewEnv(WithLocation(func() string { return href }))
	require.NoError(t, err)

	key, err := env.KeyFunc(`v => location.href + '|' + v`)
	require.NoError(t, err)
	assert.Equal(t, `https://app.example.com/publisher/7781/overview?tab=a|Overview`, key(`Overview`))

	href = `https://app.example.com/publisher/42/overview`
	assert.Equal(t, `https://app.example.com/publisher/42/overview|Overview`, key(`Overview`))

	parts, err := env.KeyFunc(`v => [location.hostname, location.pathname, location.search, extractPublisherId(location.pathname)].join(' ')`)
	require.NoError(t, err)
	href = `https://app.example.com/publisher/42/overview?x=1`
	assert.Equal(t, `app.example.com /publisher/42/overview ?x=1 42`, parts(``))

	hash, err := env.KeyFunc(`shortHash`)
	require.NoError(t, err)
	assert.Equal(t, `2e9`, hash(`ab`))

	nothing, err := env.KeyFunc(`v => undefined`)
	require.NoError(t, err)
	assert.Equal(t, ``, nothing(`x`))
}

func TestEnv_cookies(t *testing.T) {
	env, err := NewEnv(WithCookies(func() string { return `uid=abc%20123; theme=dark` }))
	require.NoError(t, err)
	fn, err := env.KeyFunc(`v => getCookie(v) === null ? 'missing' : getCookie(v)`)
	require.NoError(t, err)
	assert.Equal(t, `abc 123`, fn(`uid`))
	assert.Equal(t, `missing`, fn(`nope`))

	sanitize, err := env.KeyFunc(`sanitizeParam`)
	require.NoError(t, err)
	assert.Equal(t, `a b`, sanitize(" <a>\tb "))
}

func TestEnv_Compile_errors(t *testing.T) {
	env, err := NewEnv()
	require.NoError(t, err)

	_, err = env.Compile(``)
	assert.ErrorIs(t, err, ErrNotFunction)
	_, err = env.Compile(`42`)
	assert.ErrorIs(t, err, ErrNotFunction)
	_, err = env.Compile(`v => {`)
	assert.ErrorContains(t, err, `jsfunc: compile: `)
	_, err = env.Predicate(`'str'`)
	assert.Error(t, err)
	_, err = env.KeyFunc(`)`)
	assert.Error(t, err)

	f, err := env.Compile(`  v => v  `)
	require.NoError(t, err)
	assert.Equal(t, `v => v`, f.Source())
}

func TestEnv_callErrors(t *testing.T) {
	logger, logs := logging.NewCapture(logiface.LevelWarning)
	env, err := NewEnv(WithLogger(logger))
	require.NoError(t, err)

	f, err := env.Compile(`v => { throw new Error('bad ' + v) }`)
	require.NoError(t, err)
	_, err = f.Bool(`x`)
	assert.ErrorContains(t, err, `bad x`)

	pred, err := env.Predicate(`v => { throw new Error('nope') }`)
	require.NoError(t, err)
	assert.False(t, pred(`x`))

	key, err := env.KeyFunc(`v => v.missing.field`)
	require.NoError(t, err)
	assert.Equal(t, `raw`, key(`raw`))

	assert.Equal(t, []string{`js predicate failed`, `js key func failed`}, logs.Messages(`warn`))
}

func TestEnv_timeout(t *testing.T) {
	_, err := NewEnv(WithTimeout(-time.Second))
	assert.Error(t, err)

	env, err := NewEnv(WithTimeout(50 * time.Millisecond))
	require.NoError(t, err)
	f, err := env.Compile(`v => { for (;;) {} }`)
	require.NoError(t, err)
	_, err = f.Call(`x`)
	assert.ErrorIs(t, err, ErrTimeout)

	// the runtime remains usable
	g, err := env.Compile(`v => v + '!'`)
	require.NoError(t, err)
	s, err := g.String(`ok`)
	require.NoError(t, err)
	assert.Equal(t, `ok!`, s)
}

func TestEnv_timeout_callbackAfterReturn(t *testing.T) {
	env, err := NewEnv(WithTimeout(time.Hour))
	require.NoError(t, err)
	var callbacks []func()
	env.afterFunc = func(d time.Duration, f func()) *time.Timer {
		assert.Equal(t, time.Hour, d)
		callbacks = append(callbacks, f)
		return time.NewTimer(d)
	}
	f, err := env.Compile(`v => v + '!'`)
	require.NoError(t, err)

	s, err := f.String(`one`)
	require.NoError(t, err)
	assert.Equal(t, `one!`, s)

	// the timer fired, but lost the race with the call returning
	require.Len(t, callbacks, 1)
	callbacks[0]()

	s, err = f.String(`two`)
	require.NoError(t, err)
	assert.Equal(t, `two!`, s)
}

package htmldom

import (
	"testing"

	"github.com/joeycumines/go-tagglue/dom"
	"github.com/joeycumines/go-tagglue/dom/domtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPage = `<!doctype html>
<html><head><title>Loading...</title></head>
<body>
  <div id="app"><h1 class="partner">  Partner
    X </h1><span id="count" data-n="1">1</span></div>
</body></html>`

func observe(t *testing.T, d *Document, selector string, opts dom.ObserveOptions) (*Observation, *int) {
	t.Helper()
	el, err := d.QuerySelector(selector)
	require.NoError(t, err)
	require.NotNil(t, el)
	src, err := d.Observe(el, opts)
	require.NoError(t, err)
	var n int
	require.NoError(t, src.Start(func() { n++ }))
	return src.(*Observation), &n
}

func TestDocument_QuerySelector(t *testing.T) {
	d := MustParseString(testPage)

	el, err := d.QuerySelector(`h1.partner`)
	require.NoError(t, err)
	require.NotNil(t, el)
	text, err := dom.TrimmedText(el)
	require.NoError(t, err)
	assert.Equal(t, `Partner X`, text)

	el, err = d.QuerySelector(`#missing`)
	assert.NoError(t, err)
	assert.Nil(t, el, `absent elements must be an untyped nil`)

	_, err = d.QuerySelector(`[[`)
	assert.Error(t, err)

	all, err := d.QuerySelectorAll(`#app > *`)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, `h1`, all[0].Tag())

	v, ok, err := all[1].Attribute(`data-n`)
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `1`, v)

	assert.Equal(t, `Loading...`, d.Title())
}

func TestDocument_SetTitle_notifiesTitleObserver(t *testing.T) {
	d := MustParseString(testPage)
	obs, n := observe(t, d, `title`, dom.ObserveOptions{ChildList: true})

	d.SetTitle(`Partner X`)
	assert.Equal(t, 1, *n)
	assert.Equal(t, `Partner X`, d.Title())

	obs.Stop()
	assert.False(t, obs.Active())
	d.SetTitle(`Other`)
	assert.Equal(t, 1, *n)
}

func TestDocument_SetTitle_createsTitle(t *testing.T) {
	d := MustParseString(`<html><body></body></html>`)
	_, n := observe(t, d, `html`, dom.ObserveOptions{ChildList: true, Subtree: true})
	d.SetTitle(`Hello`)
	assert.Equal(t, `Hello`, d.Title())
	assert.Equal(t, 1, *n, `batched into one delivery`)
}

func TestDocument_subtree(t *testing.T) {
	d := MustParseString(testPage)
	_, direct := observe(t, d, `body`, dom.ObserveOptions{ChildList: true})
	_, deep := observe(t, d, `body`, dom.ObserveOptions{ChildList: true, Subtree: true})

	require.NoError(t, d.AppendHTML(`#app`, `<p class="late">Late</p>`))
	assert.Equal(t, 0, *direct)
	assert.Equal(t, 1, *deep)

	el, err := d.QuerySelector(`p.late`)
	require.NoError(t, err)
	require.NotNil(t, el)

	require.NoError(t, d.AppendHTML(`body`, `<footer></footer>`))
	assert.Equal(t, 1, *direct)
	assert.Equal(t, 2, *deep)

	require.NoError(t, d.Remove(`p.late`))
	assert.Equal(t, 3, *deep)
	el, err = d.QuerySelector(`p.late`)
	assert.NoError(t, err)
	assert.Nil(t, el)
}

func TestDocument_recordTypes(t *testing.T) {
	d := MustParseString(testPage)
	_, childList := observe(t, d, `#app`, dom.ObserveOptions{ChildList: true, Subtree: true})
	_, charData := observe(t, d, `#app`, dom.ObserveOptions{CharacterData: true, Subtree: true})
	_, attrs := observe(t, d, `#count`, dom.ObserveOptions{Attributes: true})

	require.NoError(t, d.SetData(`#count`, `2`))
	assert.Equal(t, []int{0, 1, 0}, []int{*childList, *charData, *attrs})

	require.NoError(t, d.SetAttribute(`#count`, `data-n`, `2`))
	require.NoError(t, d.SetAttribute(`#count`, `data-new`, `x`))
	assert.Equal(t, []int{0, 1, 2}, []int{*childList, *charData, *attrs})

	require.NoError(t, d.SetText(`#count`, `3`))
	assert.Equal(t, []int{1, 1, 2}, []int{*childList, *charData, *attrs})

	assert.ErrorIs(t, d.SetText(`#nope`, `x`), ErrNotFound)
	require.NoError(t, d.AppendHTML(`#app`, `<b></b>`))
	assert.Error(t, d.SetData(`b`, `x`), `no text node`)
}

func TestDocument_Batch(t *testing.T) {
	d := MustParseString(testPage)
	_, n := observe(t, d, `body`, dom.ObserveOptions{ChildList: true, Subtree: true})
	d.Batch(func() {
		require.NoError(t, d.SetText(`#count`, `1`))
		require.NoError(t, d.SetText(`#count`, `2`))
		require.NoError(t, d.AppendHTML(`#app`, `<i>x</i>`))
		assert.Equal(t, 0, *n)
	})
	assert.Equal(t, 1, *n)
}

func TestDocument_reentrantMutation(t *testing.T) {
	d := MustParseString(testPage)
	el, err := d.QuerySelector(`#app`)
	require.NoError(t, err)
	src, err := d.Observe(el, dom.ObserveOptions{ChildList: true, Subtree: true})
	require.NoError(t, err)

	var calls int
	require.NoError(t, src.Start(func() {
		calls++
		if calls == 1 {
			// queued, then delivered in a second round
			require.NoError(t, d.SetText(`#count`, `changed`))
		}
	}))
	require.NoError(t, d.SetText(`#count`, `first`))
	assert.Equal(t, 2, calls)
}

func TestDocument_stopDiscardsQueued(t *testing.T) {
	d := MustParseString(testPage)
	el, err := d.QuerySelector(`#app`)
	require.NoError(t, err)
	src, err := d.Observe(el, dom.ObserveOptions{ChildList: true, Subtree: true})
	require.NoError(t, err)

	var calls int
	require.NoError(t, src.Start(func() {
		calls++
		src.Stop()
		require.NoError(t, d.SetText(`#count`, `during`))
	}))
	require.NoError(t, d.SetText(`#count`, `first`))
	require.NoError(t, d.SetText(`#count`, `after`))
	assert.Equal(t, 1, calls)
}

func TestDocument_Observe_errors(t *testing.T) {
	d := MustParseString(testPage)
	other := MustParseString(testPage)
	el, err := other.QuerySelector(`body`)
	require.NoError(t, err)

	_, err = d.Observe(el, dom.ObserveOptions{ChildList: true})
	assert.ErrorIs(t, err, dom.ErrForeignElement)
	_, err = d.Observe(&domtest.Element{}, dom.ObserveOptions{ChildList: true})
	assert.ErrorIs(t, err, dom.ErrForeignElement)

	body, err := d.Body()
	require.NoError(t, err)
	_, err = d.Observe(body, dom.ObserveOptions{Subtree: true})
	assert.Error(t, err)

	src, err := d.Observe(body, dom.ObserveOptions{ChildList: true})
	require.NoError(t, err)
	assert.Error(t, src.Start(nil))
	require.NoError(t, src.Start(func() {}))
	assert.ErrorIs(t, src.Start(func() {}), dom.ErrAlreadyStarted)
	src.Stop()
	src.Stop()
	assert.ErrorIs(t, src.Start(func() {}), dom.ErrStopped)
}

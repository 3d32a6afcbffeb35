package observer

import (
	"testing"
	"time"

	"github.com/joeycumines/go-tagglue/dom/htmldom"
	"github.com/joeycumines/go-tagglue/events"
	"github.com/joeycumines/go-tagglue/glue"
	"github.com/joeycumines/go-tagglue/namespace"
	"github.com/joeycumines/go-tagglue/schedule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHTMLObserver(t *testing.T, page string) (*htmldom.Document, *Observer, *[]string) {
	t.Helper()
	doc := htmldom.MustParseString(page)
	bus := events.NewBus()
	o, err := New(doc, WithBus(bus), WithNamespace(namespace.New()), WithScheduler(schedule.NewVirtual()))
	require.NoError(t, err)
	var values []string
	bus.Subscribe(`titleChange`, func(_ string, detail events.Detail) {
		values = append(values, detail.Value)
	})
	return doc, o, &values
}

func TestObserver_htmldom_titleScenario(t *testing.T) {
	doc, o, values := newHTMLObserver(t, `<html><head><title>Loading...</title></head><body><div id="app"></div></body></html>`)

	inst, err := o.Install(titleConfig())
	require.NoError(t, err)
	assert.Equal(t, Watching, inst.State())

	doc.SetTitle(`Loading`)
	assert.Empty(t, *values)

	doc.SetTitle(`Partner X`)
	assert.Equal(t, []string{`Partner X`}, *values)
	assert.Equal(t, Emitted, inst.State())
	assert.Equal(t, `Partner X`, o.Namespace().Get(`title`))

	doc.SetTitle(`Partner Y`)
	assert.Equal(t, []string{`Partner X`}, *values)
}

func TestObserver_htmldom_lateElement(t *testing.T) {
	doc, o, values := newHTMLObserver(t, `<html><head></head><body><div id="app"></div></body></html>`)
	cfg := titleConfig()
	cfg.Selector = `#app .partner-name`
	cfg.WatchBody = true
	cfg.Timeout = time.Minute

	inst, err := o.Install(cfg)
	require.NoError(t, err)

	require.NoError(t, doc.AppendHTML(`#app`, `<nav><a href="/">Home</a></nav>`))
	require.NoError(t, doc.AppendHTML(`#app`, `<h1 class="partner-name">Loading...</h1>`))
	assert.Empty(t, *values)

	require.NoError(t, doc.SetData(`.partner-name`, `  Partner   X `))
	assert.Equal(t, []string{`Partner X`}, *values)
	assert.Equal(t, Emitted, inst.State())
	assert.Nil(t, o.Namespace().Get(`titleTimeout`))

	require.NoError(t, doc.SetText(`.partner-name`, `Partner Y`))
	assert.Equal(t, []string{`Partner X`}, *values)
}

func TestObserver_htmldom_batchedMutations(t *testing.T) {
	doc, o, values := newHTMLObserver(t, `<html><head><title></title></head><body></body></html>`)
	cfg := titleConfig()
	cfg.DisconnectAfterFirst = Bool(false)
	cfg.Validate = glue.IsRealTitle

	_, err := o.Install(cfg)
	require.NoError(t, err)

	// one notification, observing only the final value
	doc.Batch(func() {
		doc.SetTitle(`Partner A`)
		doc.SetTitle(`Loading...`)
		doc.SetTitle(`Partner B`)
	})
	assert.Equal(t, []string{`Partner B`}, *values)
}

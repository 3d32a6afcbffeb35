//go:build integration

package roddom_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/joeycumines/go-tagglue/dom"
	"github.com/joeycumines/go-tagglue/dom/roddom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocument_liveTitleChange(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>Loading...</title></head><body>
<script>setTimeout(() => { document.title = 'Partner X' }, 200)</script>
</body></html>`)
	}))
	defer ts.Close()

	u := launcher.New().Headless(true).MustLaunch()
	browser := rod.New().ControlURL(u).MustConnect()
	defer browser.MustClose()

	page := browser.MustPage(ts.URL).MustWaitLoad()
	doc, err := roddom.New(page)
	require.NoError(t, err)

	title, err := doc.QuerySelector(`title`)
	require.NoError(t, err)
	require.NotNil(t, title)

	changed := make(chan string, 8)
	src, err := doc.Observe(title, dom.ObserveOptions{ChildList: true})
	require.NoError(t, err)
	require.NoError(t, src.Start(func() {
		el, err := doc.QuerySelector(`title`)
		if err == nil && el != nil {
			v, _ := dom.TrimmedText(el)
			changed <- v
		}
	}))
	defer src.Stop()

	select {
	case v := <-changed:
		assert.Equal(t, `Partner X`, v)
	case <-time.After(10 * time.Second):
		t.Fatal(`no mutation observed`)
	}

	missing, err := doc.QuerySelector(`#missing`)
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

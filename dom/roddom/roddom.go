// Package roddom implements dom.Document for a live browser page, using
// go-rod. Change sources install a real MutationObserver in the page, which
// calls back into Go via a binding, see [rod.Page.Expose].
package roddom

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/go-rod/rod"
	"github.com/joeycumines/go-tagglue/dom"
	"github.com/ysmood/gson"
)

type (
	// Document is a dom.Document backed by a rod page.
	Document struct {
		page     *rod.Page
		dispatch func(fn func()) error
		prefix   string
		seq      atomic.Uint64
	}

	// Element wraps a rod element.
	Element struct {
		doc *Document
		el  *rod.Element
	}

	// Option configures a Document.
	Option interface {
		applyDocument(*Document) error
	}

	optionImpl struct {
		applyDocumentFunc func(*Document) error
	}

	source struct {
		doc     *Document
		target  *Element
		stopFn  func() error
		binding string
		opts    dom.ObserveOptions
		mu      sync.Mutex
		started bool
		stopped bool
	}
)

var (
	// compile time assertions

	_ dom.Document     = (*Document)(nil)
	_ dom.Element      = (*Element)(nil)
	_ dom.ChangeSource = (*source)(nil)
)

const (
	observeJS = `function (binding, opts) {
	const observer = new MutationObserver(() => { window[binding]('') })
	observer.observe(this, opts)
	window[binding + '_observer'] = observer
}`

	disconnectJS = `(binding) => {
	const observer = window[binding + '_observer']
	if (observer) {
		observer.disconnect()
		delete window[binding + '_observer']
	}
}`

	textContentJS = `function () { return this.textContent || '' }`
)

// WithDispatch configures how change notifications, which arrive on rod's
// event goroutine, are handed off. Typically this is the Submit method of the
// event loop that runs the element observer. Defaults to calling directly.
func WithDispatch(dispatch func(fn func()) error) Option {
	return &optionImpl{func(d *Document) error {
		d.dispatch = dispatch
		return nil
	}}
}

// WithBindingPrefix sets the prefix of the window bindings used by change
// sources. Defaults to "__tagglue_change_".
func WithBindingPrefix(prefix string) Option {
	return &optionImpl{func(d *Document) error {
		if prefix == `` {
			return errors.New(`roddom: empty binding prefix`)
		}
		d.prefix = prefix
		return nil
	}}
}

func (x *optionImpl) applyDocument(d *Document) error { return x.applyDocumentFunc(d) }

// New wraps page.
func New(page *rod.Page, opts ...Option) (*Document, error) {
	if page == nil {
		return nil, errors.New(`roddom: nil page`)
	}
	d := &Document{page: page, prefix: `__tagglue_change_`}
	for _, o := range opts {
		if o == nil {
			continue
		}
		if err := o.applyDocument(d); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Page returns the underlying page.
func (x *Document) Page() *rod.Page { return x.page }

func (x *Document) QuerySelector(selector string) (dom.Element, error) {
	ok, el, err := x.page.Has(selector)
	if err != nil {
		return nil, fmt.Errorf(`roddom: query %q: %w`, selector, err)
	}
	if !ok || el == nil {
		return nil, nil
	}
	return &Element{doc: x, el: el}, nil
}

func (x *Document) Body() (dom.Element, error) {
	el, err := x.QuerySelector(`body`)
	if err != nil {
		return nil, err
	}
	if el == nil {
		return nil, errors.New(`roddom: document has no body`)
	}
	return el, nil
}

func (x *Document) Observe(target dom.Element, opts dom.ObserveOptions) (dom.ChangeSource, error) {
	el, ok := target.(*Element)
	if !ok || el == nil || el.doc != x {
		return nil, dom.ErrForeignElement
	}
	if !opts.Valid() {
		return nil, errors.New(`roddom: observe options must include at least one record type`)
	}
	return &source{
		doc:     x,
		target:  el,
		opts:    opts,
		binding: fmt.Sprintf(`%s%d`, x.prefix, x.seq.Add(1)),
	}, nil
}

func (x *Element) TextContent() (string, error) {
	obj, err := x.el.Eval(textContentJS)
	if err != nil {
		return ``, fmt.Errorf(`roddom: text content: %w`, err)
	}
	return obj.Value.Str(), nil
}

func (x *Element) Attribute(name string) (string, bool, error) {
	v, err := x.el.Attribute(name)
	if err != nil {
		return ``, false, fmt.Errorf(`roddom: attribute %q: %w`, name, err)
	}
	if v == nil {
		return ``, false, nil
	}
	return *v, true, nil
}

// Rod returns the underlying element.
func (x *Element) Rod() *rod.Element { return x.el }

func (x *source) Start(onChange func()) error {
	if onChange == nil {
		return errors.New(`roddom: nil onChange`)
	}

	// the lock isn't held while talking to the browser, as notifications may
	// arrive (and need it) before the observer is fully installed
	x.mu.Lock()
	switch {
	case x.stopped:
		x.mu.Unlock()
		return dom.ErrStopped
	case x.started:
		x.mu.Unlock()
		return dom.ErrAlreadyStarted
	}
	x.started = true
	x.mu.Unlock()

	stop, err := x.doc.page.Expose(x.binding, func(gson.JSON) (any, error) {
		x.notify(onChange)
		return nil, nil
	})
	if err != nil {
		x.fail()
		return fmt.Errorf(`roddom: expose binding: %w`, err)
	}

	if _, err := x.target.el.Eval(observeJS, x.binding, map[string]bool{
		`childList`:     x.opts.ChildList,
		`subtree`:       x.opts.Subtree,
		`characterData`: x.opts.CharacterData,
		`attributes`:    x.opts.Attributes,
	}); err != nil {
		_ = stop()
		x.fail()
		return fmt.Errorf(`roddom: install mutation observer: %w`, err)
	}

	x.mu.Lock()
	x.stopFn = stop
	stopped := x.stopped
	x.mu.Unlock()
	if stopped {
		// Stop raced with installation
		x.disconnect(stop)
	}
	return nil
}

func (x *source) fail() {
	x.mu.Lock()
	x.stopped = true
	x.mu.Unlock()
}

func (x *source) Stop() {
	x.mu.Lock()
	if x.stopped {
		x.mu.Unlock()
		return
	}
	x.stopped = true
	stop := x.stopFn
	x.mu.Unlock()
	if stop != nil {
		x.disconnect(stop)
	}
}

func (x *source) disconnect(stop func() error) {
	// best effort, the page may already be gone
	_, _ = x.doc.page.Eval(disconnectJS, x.binding)
	_ = stop()
}

func (x *source) active() bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.started && !x.stopped
}

func (x *source) notify(onChange func()) {
	run := func() {
		// drop notifications that were in flight when stopped
		if x.active() {
			onChange()
		}
	}
	if x.doc.dispatch == nil {
		run()
		return
	}
	_ = x.doc.dispatch(run)
}

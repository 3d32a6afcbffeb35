// Package domtest provides manually driven fakes of the dom interfaces.
package domtest

import (
	"github.com/joeycumines/go-tagglue/dom"
)

type (
	// Document is a fake dom.Document. Elements are looked up by exact
	// selector, in the Elements map, which tests mutate directly.
	Document struct {
		// Elements maps selectors to elements. Missing entries query as
		// absent.
		Elements map[string]*Element
		// BodyElement is returned by Body, or a new Element if nil.
		BodyElement *Element
		// QueryErr, if set, is returned by QuerySelector.
		QueryErr error
		// ObserveErr, if set, is returned by Observe.
		ObserveErr error
		// StartErr, if set, is returned by the Start method of every Source
		// created by Observe.
		StartErr error
		// Sources records every Source created by Observe, in order.
		Sources []*Source
		// Queries counts QuerySelector calls.
		Queries int
	}

	// Element is a fake dom.Element.
	Element struct {
		Attrs map[string]string
		Err   error
		Text  string
	}

	// Source is a fake dom.ChangeSource, that only notifies on Fire.
	Source struct {
		Target   dom.Element
		StartErr error
		onChange func()
		Options  dom.ObserveOptions
		Started  bool
		Stopped  bool
	}
)

var (
	// compile time assertions

	_ dom.Document     = (*Document)(nil)
	_ dom.Element      = (*Element)(nil)
	_ dom.ChangeSource = (*Source)(nil)
)

// NewDocument returns an empty Document.
func NewDocument() *Document {
	return &Document{Elements: make(map[string]*Element)}
}

// Set adds or replaces the element at selector, returning it.
func (x *Document) Set(selector, text string) *Element {
	if x.Elements == nil {
		x.Elements = make(map[string]*Element)
	}
	el := &Element{Text: text}
	x.Elements[selector] = el
	return el
}

// Delete removes the element at selector.
func (x *Document) Delete(selector string) { delete(x.Elements, selector) }

// Fire notifies every started, un-stopped source, returning the number
// notified.
func (x *Document) Fire() int {
	var n int
	for _, s := range x.Sources {
		if s.Fire() {
			n++
		}
	}
	return n
}

// Active returns the sources that are started and not stopped.
func (x *Document) Active() []*Source {
	var active []*Source
	for _, s := range x.Sources {
		if s.Started && !s.Stopped {
			active = append(active, s)
		}
	}
	return active
}

func (x *Document) QuerySelector(selector string) (dom.Element, error) {
	x.Queries++
	if x.QueryErr != nil {
		return nil, x.QueryErr
	}
	if el, ok := x.Elements[selector]; ok && el != nil {
		return el, nil
	}
	return nil, nil
}

func (x *Document) Body() (dom.Element, error) {
	if x.BodyElement == nil {
		x.BodyElement = &Element{}
	}
	return x.BodyElement, nil
}

func (x *Document) Observe(target dom.Element, opts dom.ObserveOptions) (dom.ChangeSource, error) {
	if x.ObserveErr != nil {
		return nil, x.ObserveErr
	}
	s := &Source{Target: target, Options: opts, StartErr: x.StartErr}
	x.Sources = append(x.Sources, s)
	return s, nil
}

func (x *Element) TextContent() (string, error) {
	if x.Err != nil {
		return ``, x.Err
	}
	return x.Text, nil
}

func (x *Element) Attribute(name string) (string, bool, error) {
	if x.Err != nil {
		return ``, false, x.Err
	}
	v, ok := x.Attrs[name]
	return v, ok, nil
}

func (x *Source) Start(onChange func()) error {
	switch {
	case x.Stopped:
		return dom.ErrStopped
	case x.Started:
		return dom.ErrAlreadyStarted
	case x.StartErr != nil:
		return x.StartErr
	}
	x.Started = true
	x.onChange = onChange
	return nil
}

func (x *Source) Stop() { x.Stopped = true }

// Fire calls the onChange callback, if the source is active.
func (x *Source) Fire() bool {
	if !x.Started || x.Stopped || x.onChange == nil {
		return false
	}
	x.onChange()
	return true
}

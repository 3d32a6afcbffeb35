// Package htmldom is an in-memory, mutable dom.Document, built on the
// golang.org/x/net/html tree, with CSS selectors provided by cascadia.
//
// Mutation notifications follow MutationObserver semantics closely enough
// for the element observer: records are queued per observer, and delivered
// once the mutating call (or Batch) returns, with each observer receiving at
// most one callback per delivery round. Mutations made by a callback are
// delivered in a further round, and stopping an observer discards anything
// queued for it.
//
// A Document is not safe for concurrent use.
package htmldom

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/joeycumines/go-tagglue/dom"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

type (
	// Document is an in-memory dom.Document.
	Document struct {
		root       *html.Node
		selectors  map[string]cascadia.Selector
		observers  []*Observation
		batchDepth int
		delivering bool
	}

	// Element wraps a node of a Document.
	Element struct {
		doc  *Document
		node *html.Node
	}

	// Observation is the dom.ChangeSource returned by Document.Observe.
	Observation struct {
		doc      *Document
		target   *html.Node
		onChange func()
		opts     dom.ObserveOptions
		pending  int
		started  bool
		stopped  bool
	}

	recordKind int
)

const (
	recordChildList recordKind = iota
	recordCharacterData
	recordAttributes
)

var (
	// compile time assertions

	_ dom.Document     = (*Document)(nil)
	_ dom.Element      = (*Element)(nil)
	_ dom.ChangeSource = (*Observation)(nil)
)

var (
	// ErrNotFound is returned by mutation methods when the selector doesn't
	// match any element.
	ErrNotFound = errors.New(`htmldom: no element matches selector`)
)

// Parse reads an HTML document.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf(`htmldom: parse: %w`, err)
	}
	return &Document{root: root, selectors: make(map[string]cascadia.Selector)}, nil
}

// ParseString is a convenience wrapper around Parse.
func ParseString(s string) (*Document, error) { return Parse(strings.NewReader(s)) }

// MustParseString is like ParseString, but panics on error.
func MustParseString(s string) *Document {
	d, err := ParseString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Render writes the current document as HTML.
func (x *Document) Render(w io.Writer) error { return html.Render(w, x.root) }

// String renders the document, for debugging.
func (x *Document) String() string {
	var b strings.Builder
	_ = x.Render(&b)
	return b.String()
}

func (x *Document) QuerySelector(selector string) (dom.Element, error) {
	n, err := x.query(selector)
	if err != nil || n == nil {
		return nil, err
	}
	return &Element{doc: x, node: n}, nil
}

// QuerySelectorAll returns every element matching selector, in document
// order.
func (x *Document) QuerySelectorAll(selector string) ([]*Element, error) {
	sel, err := x.compile(selector)
	if err != nil {
		return nil, err
	}
	var elements []*Element
	for _, n := range sel.MatchAll(x.root) {
		elements = append(elements, &Element{doc: x, node: n})
	}
	return elements, nil
}

func (x *Document) Body() (dom.Element, error) {
	n, err := x.query(`body`)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, fmt.Errorf(`htmldom: document has no body`)
	}
	return &Element{doc: x, node: n}, nil
}

// Title returns the trimmed text of the first title element, like
// document.title.
func (x *Document) Title() string {
	n, _ := x.query(`title`)
	if n == nil {
		return ``
	}
	return strings.Join(strings.Fields(textContent(n)), ` `)
}

func (x *Document) Observe(target dom.Element, opts dom.ObserveOptions) (dom.ChangeSource, error) {
	el, ok := target.(*Element)
	if !ok || el == nil || el.doc != x {
		return nil, dom.ErrForeignElement
	}
	if !opts.Valid() {
		return nil, fmt.Errorf(`htmldom: observe options must include at least one record type`)
	}
	return &Observation{doc: x, target: el.node, opts: opts}, nil
}

// Batch runs fn, delivering any mutation notifications it causes only after
// it returns, which models several mutations made within one task.
func (x *Document) Batch(fn func()) {
	x.batchDepth++
	defer func() {
		x.batchDepth--
		x.deliver()
	}()
	fn()
}

// SetText replaces the children of the first element matching selector with
// a single text node, like assigning textContent.
func (x *Document) SetText(selector, text string) error {
	n, err := x.mustQuery(selector)
	if err != nil {
		return err
	}
	x.setText(n, text)
	return nil
}

// SetTitle sets document.title, creating the title element (in head) if
// necessary.
func (x *Document) SetTitle(title string) {
	x.Batch(func() {
		n, _ := x.query(`title`)
		if n == nil {
			head, _ := x.query(`head`)
			if head == nil {
				// html.Parse always synthesizes head
				head = x.root
			}
			n = &html.Node{Type: html.ElementNode, Data: `title`, DataAtom: atom.Title}
			head.AppendChild(n)
			x.record(recordChildList, head)
		}
		x.setText(n, title)
	})
}

// SetData modifies, in place, the first text node within the first element
// matching selector, which produces a characterData record rather than a
// childList record.
func (x *Document) SetData(selector, text string) error {
	n, err := x.mustQuery(selector)
	if err != nil {
		return err
	}
	t := firstTextNode(n)
	if t == nil {
		return fmt.Errorf(`htmldom: %q has no text node`, selector)
	}
	t.Data = text
	x.record(recordCharacterData, t)
	return nil
}

// AppendHTML parses fragment in the context of the first element matching
// selector, appending the result as its children.
func (x *Document) AppendHTML(selector, fragment string) error {
	parent, err := x.mustQuery(selector)
	if err != nil {
		return err
	}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), parent)
	if err != nil {
		return fmt.Errorf(`htmldom: parse fragment: %w`, err)
	}
	if len(nodes) == 0 {
		return nil
	}
	for _, n := range nodes {
		parent.AppendChild(n)
	}
	x.record(recordChildList, parent)
	return nil
}

// Remove detaches the first element matching selector.
func (x *Document) Remove(selector string) error {
	n, err := x.mustQuery(selector)
	if err != nil {
		return err
	}
	parent := n.Parent
	if parent == nil {
		return fmt.Errorf(`htmldom: cannot remove the document root`)
	}
	parent.RemoveChild(n)
	x.record(recordChildList, parent)
	return nil
}

// SetAttribute sets an attribute on the first element matching selector.
func (x *Document) SetAttribute(selector, name, value string) error {
	n, err := x.mustQuery(selector)
	if err != nil {
		return err
	}
	for i := range n.Attr {
		if n.Attr[i].Namespace == `` && n.Attr[i].Key == name {
			n.Attr[i].Val = value
			x.record(recordAttributes, n)
			return nil
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: value})
	x.record(recordAttributes, n)
	return nil
}

func (x *Document) setText(n *html.Node, text string) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
	if text != `` {
		n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	}
	x.record(recordChildList, n)
}

func (x *Document) compile(selector string) (cascadia.Selector, error) {
	if sel, ok := x.selectors[selector]; ok {
		return sel, nil
	}
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf(`htmldom: invalid selector %q: %w`, selector, err)
	}
	x.selectors[selector] = sel
	return sel, nil
}

func (x *Document) query(selector string) (*html.Node, error) {
	sel, err := x.compile(selector)
	if err != nil {
		return nil, err
	}
	return sel.MatchFirst(x.root), nil
}

func (x *Document) mustQuery(selector string) (*html.Node, error) {
	n, err := x.query(selector)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, fmt.Errorf(`%w: %q`, ErrNotFound, selector)
	}
	return n, nil
}

// record queues a notification for every interested observer, then delivers
// (unless batching, or already delivering).
func (x *Document) record(kind recordKind, target *html.Node) {
	for _, o := range x.observers {
		if o.wants(kind, target) {
			o.pending++
		}
	}
	x.deliver()
}

func (x *Document) deliver() {
	if x.batchDepth > 0 || x.delivering {
		return
	}
	x.delivering = true
	defer func() { x.delivering = false }()
	for {
		var round []*Observation
		for _, o := range x.observers {
			if o.pending > 0 {
				o.pending = 0
				round = append(round, o)
			}
		}
		if len(round) == 0 {
			return
		}
		for _, o := range round {
			// may have been stopped by an earlier callback in this round
			if !o.stopped {
				o.onChange()
			}
		}
	}
}

func (x *Document) detach(o *Observation) {
	for i, v := range x.observers {
		if v == o {
			x.observers = append(x.observers[:i], x.observers[i+1:]...)
			return
		}
	}
}

func (x *Element) TextContent() (string, error) { return textContent(x.node), nil }

func (x *Element) Attribute(name string) (string, bool, error) {
	for _, a := range x.node.Attr {
		if a.Namespace == `` && a.Key == name {
			return a.Val, true, nil
		}
	}
	return ``, false, nil
}

// Tag returns the element's tag name.
func (x *Element) Tag() string { return x.node.Data }

func (x *Observation) Start(onChange func()) error {
	switch {
	case x.stopped:
		return dom.ErrStopped
	case x.started:
		return dom.ErrAlreadyStarted
	case onChange == nil:
		return fmt.Errorf(`htmldom: nil onChange`)
	}
	x.started = true
	x.onChange = onChange
	x.doc.observers = append(x.doc.observers, x)
	return nil
}

func (x *Observation) Stop() {
	if x.stopped {
		return
	}
	x.stopped = true
	x.pending = 0
	if x.started {
		x.doc.detach(x)
	}
}

// Active reports whether the observation is started, and not stopped.
func (x *Observation) Active() bool { return x.started && !x.stopped }

func (x *Observation) wants(kind recordKind, target *html.Node) bool {
	switch kind {
	case recordChildList:
		if !x.opts.ChildList {
			return false
		}
	case recordCharacterData:
		if !x.opts.CharacterData {
			return false
		}
	case recordAttributes:
		if !x.opts.Attributes {
			return false
		}
	}
	if target == x.target {
		return true
	}
	if !x.opts.Subtree {
		return false
	}
	for n := target.Parent; n != nil; n = n.Parent {
		if n == x.target {
			return true
		}
	}
	return false
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch c.Type {
			case html.TextNode:
				b.WriteString(c.Data)
			case html.ElementNode:
				walk(c)
			}
		}
	}
	walk(n)
	return b.String()
}

func firstTextNode(n *html.Node) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			return c
		}
		if t := firstTextNode(c); t != nil {
			return t
		}
	}
	return nil
}

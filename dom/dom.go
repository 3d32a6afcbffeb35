// Package dom models the small slice of the browser DOM that the element
// observer depends on: selector queries, text extraction, and mutation
// observation.
//
// Implementations live in sub-packages, see htmldom (in-memory), roddom
// (live browser, via go-rod), and domtest (manually driven fakes).
package dom

import (
	"errors"
	"strings"
)

type (
	// Element is a node returned by a selector query.
	Element interface {
		// TextContent returns the concatenated text of the element and its
		// descendants, per the DOM textContent property.
		TextContent() (string, error)
		// Attribute returns the value of the named attribute, and whether it
		// was present.
		Attribute(name string) (string, bool, error)
	}

	// Document is the entry point for queries and observation.
	Document interface {
		// QuerySelector returns the first element matching selector, or a nil
		// Element (and nil error) if none match.
		QuerySelector(selector string) (Element, error)
		// Body returns the document body.
		Body() (Element, error)
		// Observe prepares a ChangeSource watching target, which must be an
		// element returned by this document. Observation begins on Start.
		Observe(target Element, opts ObserveOptions) (ChangeSource, error)
	}

	// ChangeSource is a mutation watcher, e.g. a MutationObserver.
	//
	// The onChange callback receives no records: consumers re-query the
	// document, which keeps implementations free to coalesce notifications.
	ChangeSource interface {
		// Start begins delivering change notifications, and may only be
		// called once.
		Start(onChange func()) error
		// Stop disconnects the source. Notifications that were queued but not
		// yet delivered are discarded. Safe to call multiple times, and
		// before Start.
		Stop()
	}

	// ObserveOptions mirrors MutationObserverInit.
	ObserveOptions struct {
		// ChildList watches for children being added or removed.
		ChildList bool
		// Subtree extends observation to all descendants of the target.
		Subtree bool
		// CharacterData watches for in-place changes to text nodes.
		CharacterData bool
		// Attributes watches for attribute changes.
		Attributes bool
	}

	// Extractor derives the (string) value of an element.
	Extractor func(el Element) (string, error)
)

var (
	// ErrForeignElement indicates an element from a different document, or
	// implementation, was passed to Document.Observe.
	ErrForeignElement = errors.New(`dom: element does not belong to this document`)

	// ErrAlreadyStarted is returned by ChangeSource.Start if called twice.
	ErrAlreadyStarted = errors.New(`dom: change source already started`)

	// ErrStopped is returned by ChangeSource.Start after Stop.
	ErrStopped = errors.New(`dom: change source stopped`)
)

// TextContent is an Extractor returning the raw text content.
func TextContent(el Element) (string, error) { return el.TextContent() }

// TrimmedText is an Extractor returning the text content with leading and
// trailing whitespace removed, and internal runs of whitespace collapsed,
// which matches what browsers report for document.title.
func TrimmedText(el Element) (string, error) {
	s, err := el.TextContent()
	if err != nil {
		return ``, err
	}
	return strings.Join(strings.Fields(s), ` `), nil
}

// AttributeExtractor returns an Extractor reading the named attribute, with
// missing attributes extracted as the empty string.
func AttributeExtractor(name string) Extractor {
	return func(el Element) (string, error) {
		v, _, err := el.Attribute(name)
		return v, err
	}
}

// Valid reports whether opts would observe anything.
func (x ObserveOptions) Valid() bool {
	return x.ChildList || x.CharacterData || x.Attributes
}

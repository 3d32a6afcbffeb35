// Package observer implements the element observer: it watches a CSS
// selected element (or, for elements that have yet to render, the whole
// document body) until a valid value can be extracted, then publishes that
// value, both to a shared namespace and as an event.
//
// An Installation moves through the states Uninstalled, Watching, then
// either Emitted or TimedOut (or Disconnected, if stopped by the caller).
// Continuous installations, those with DisconnectAfterFirst set to false,
// remain Watching after each emission.
//
// All methods, and all callbacks made by the document and scheduler, are
// expected to run on a single goroutine, e.g. that of an event loop.
package observer

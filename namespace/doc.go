// Package namespace implements the page-scoped state bag shared between
// glue components, e.g. the value an element observer extracted, or the
// pending debounce timer of a tracker.
//
// A [Namespace] maps arbitrary string keys to arbitrary values. Keys are
// never deleted, only overwritten; clearing a key stores nil. Key names are
// a contract between the components that read and write them, and there is
// no collision protection, beyond convention.
//
// Unlike the browser original, there is no process-wide instance: each page
// session (or test case) owns one, and passes it to the components that
// need it.
package namespace

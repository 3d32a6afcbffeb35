// Package tracker implements the element tracker, which commits the value
// published by an element observer to the analytics capability.
//
// Calls to Track are debounced, last call wins, using a timer handle held in
// the shared namespace. When the timer fires, the value is deduplicated
// against the key of the last commit, so repeated tracking of an unchanged
// value commits only once.
package tracker

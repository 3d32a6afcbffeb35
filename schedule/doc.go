// Package schedule abstracts the platform timers (setTimeout/clearTimeout)
// that the glue components depend on, for debouncing and auto-timeouts.
//
// Two implementations are provided: [Loop], which schedules callbacks on a
// [github.com/joeycumines/go-eventloop] loop, and [Virtual], which advances
// a virtual clock on demand, for deterministic tests.
//
// Callbacks always run on a single goroutine, i.e. the loop goroutine, or
// the goroutine calling [Virtual.Advance].
package schedule

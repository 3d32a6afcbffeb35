package schedule

import (
	"errors"
	"time"
)

type (
	// Scheduler schedules fn to be called once, after d has elapsed.
	//
	// Implementations must never call fn synchronously, from within After,
	// even if d <= 0.
	Scheduler interface {
		After(d time.Duration, fn func()) (Timer, error)
	}

	// Timer is a handle to a scheduled callback.
	Timer interface {
		// Stop cancels the callback, returning false if it already ran, or
		// was already stopped. Safe to call multiple times.
		Stop() bool
	}

	// SchedulerFunc implements Scheduler.
	SchedulerFunc func(d time.Duration, fn func()) (Timer, error)
)

var (
	// ErrNilCallback is returned by schedulers when fn is nil.
	ErrNilCallback = errors.New(`schedule: nil callback`)
)

// After implements Scheduler.
func (x SchedulerFunc) After(d time.Duration, fn func()) (Timer, error) { return x(d, fn) }

// StopTimer stops v if it's a Timer, returning true if it was stopped by
// this call. It exists to cancel handles retrieved from untyped storage.
func StopTimer(v any) bool {
	if t, ok := v.(Timer); ok && t != nil {
		return t.Stop()
	}
	return false
}

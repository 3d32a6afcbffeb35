package schedule

import (
	"sync/atomic"
	"time"

	eventloop "github.com/joeycumines/go-eventloop"
)

type (
	// Loop is a Scheduler backed by [eventloop.JS.SetTimeout], meaning
	// callbacks run on the event loop goroutine.
	Loop struct {
		js *eventloop.JS
	}

	loopTimer struct {
		js    *eventloop.JS
		id    uint64
		state atomic.Int32
	}
)

const (
	loopTimerPending int32 = iota
	loopTimerFired
	loopTimerStopped
)

var (
	// compile time assertions

	_ Scheduler = (*Loop)(nil)
	_ Timer     = (*loopTimer)(nil)
)

// NewLoop wraps js, which must not be nil.
func NewLoop(js *eventloop.JS) *Loop {
	if js == nil {
		panic(`schedule: nil js`)
	}
	return &Loop{js: js}
}

// After schedules fn via setTimeout, rounding d up to whole milliseconds.
// An error is returned if the loop is shutting down, or closed.
func (x *Loop) After(d time.Duration, fn func()) (Timer, error) {
	if fn == nil {
		return nil, ErrNilCallback
	}
	t := &loopTimer{js: x.js}
	id, err := x.js.SetTimeout(func() {
		if t.state.CompareAndSwap(loopTimerPending, loopTimerFired) {
			fn()
		}
	}, durationToMillis(d))
	if err != nil {
		return nil, err
	}
	t.id = id
	return t, nil
}

func (x *loopTimer) Stop() bool {
	if !x.state.CompareAndSwap(loopTimerPending, loopTimerStopped) {
		return false
	}
	// the state guard already prevents fn running, clearing avoids the wakeup
	_ = x.js.ClearTimeout(x.id)
	return true
}

func durationToMillis(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	ms := d / time.Millisecond
	if d%time.Millisecond != 0 {
		ms++
	}
	return int(ms)
}

package schedule

import (
	"container/heap"
	"sync"
	"time"
)

type (
	// Virtual is a deterministic Scheduler, for tests. Time only moves when
	// Advance is called, and due callbacks are run on the calling goroutine,
	// ordered by deadline, then by scheduling order.
	Virtual struct {
		start   time.Time
		timers  virtualHeap
		elapsed time.Duration
		seq     uint64
		mu      sync.Mutex
	}

	virtualTimer struct {
		fn      func()
		owner   *Virtual
		when    time.Duration
		seq     uint64
		index   int
		stopped bool
		fired   bool
	}

	virtualHeap []*virtualTimer
)

var (
	// compile time assertions

	_ Scheduler = (*Virtual)(nil)
	_ Timer     = (*virtualTimer)(nil)
)

// NewVirtual returns a Virtual scheduler, with its clock starting at the
// unix epoch.
func NewVirtual() *Virtual {
	return &Virtual{start: time.Unix(0, 0).UTC()}
}

// After implements Scheduler.
func (x *Virtual) After(d time.Duration, fn func()) (Timer, error) {
	if fn == nil {
		return nil, ErrNilCallback
	}
	if d < 0 {
		d = 0
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	x.seq++
	t := &virtualTimer{
		fn:    fn,
		owner: x,
		when:  x.elapsed + d,
		seq:   x.seq,
	}
	heap.Push(&x.timers, t)
	return t, nil
}

// Advance moves the clock forward by d, running every callback that becomes
// due, including any scheduled by those callbacks. It returns the number of
// callbacks run.
func (x *Virtual) Advance(d time.Duration) int {
	x.mu.Lock()
	target := x.elapsed + d
	x.mu.Unlock()

	var n int
	for {
		x.mu.Lock()
		if len(x.timers) == 0 || x.timers[0].when > target {
			x.elapsed = target
			x.mu.Unlock()
			return n
		}
		t := heap.Pop(&x.timers).(*virtualTimer)
		x.elapsed = t.when
		t.fired = true
		x.mu.Unlock()

		t.fn()
		n++
	}
}

// RunDue runs callbacks that are already due, without moving the clock,
// e.g. those scheduled with a zero delay.
func (x *Virtual) RunDue() int { return x.Advance(0) }

// Elapsed returns the virtual time elapsed since creation.
func (x *Virtual) Elapsed() time.Duration {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.elapsed
}

// Now returns the virtual wall clock time.
func (x *Virtual) Now() time.Time {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.start.Add(x.elapsed)
}

// Pending returns the number of scheduled callbacks that have not yet run,
// or been stopped.
func (x *Virtual) Pending() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.timers)
}

func (x *virtualTimer) Stop() bool {
	v := x.owner
	v.mu.Lock()
	defer v.mu.Unlock()
	if x.stopped || x.fired {
		return false
	}
	x.stopped = true
	heap.Remove(&v.timers, x.index)
	return true
}

func (x virtualHeap) Len() int { return len(x) }

func (x virtualHeap) Less(i, j int) bool {
	if x[i].when != x[j].when {
		return x[i].when < x[j].when
	}
	return x[i].seq < x[j].seq
}

func (x virtualHeap) Swap(i, j int) {
	x[i], x[j] = x[j], x[i]
	x[i].index = i
	x[j].index = j
}

func (x *virtualHeap) Push(v any) {
	t := v.(*virtualTimer)
	t.index = len(*x)
	*x = append(*x, t)
}

func (x *virtualHeap) Pop() any {
	old := *x
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*x = old[:n-1]
	return t
}

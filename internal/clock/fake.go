package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake is a manually advanced Clock for tests. Advance moves the
// current time and fires due timers synchronously, so a test observes
// every timer side effect before Advance returns.
type Fake struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

// NewFake returns a Fake clock starting at a fixed instant.
func NewFake() *Fake {
	return &Fake{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

// Now returns the fake current time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// AfterFunc schedules f to run when the fake time passes d from now.
func (f *Fake) AfterFunc(d time.Duration, fn func()) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTimer{clock: f, when: f.now.Add(d), fn: fn}
	f.timers = append(f.timers, t)
	return t
}

// Advance moves the clock forward and runs all timers that became due,
// in firing order.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	due := make([]*fakeTimer, 0, len(f.timers))
	remaining := f.timers[:0]
	for _, t := range f.timers {
		switch {
		case t.stopped:
			// Dropped here so a long-lived fake does not accumulate
			// entries for timers that will never fire.
		case !t.when.After(f.now):
			due = append(due, t)
		default:
			remaining = append(remaining, t)
		}
	}
	f.timers = remaining
	sort.Slice(due, func(i, j int) bool { return due[i].when.Before(due[j].when) })
	f.mu.Unlock()

	for _, t := range due {
		t.fire()
	}
}

type fakeTimer struct {
	clock   *Fake
	when    time.Time
	fn      func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

func (t *fakeTimer) fire() {
	t.clock.mu.Lock()
	if t.stopped {
		t.clock.mu.Unlock()
		return
	}
	t.fired = true
	t.clock.mu.Unlock()
	t.fn()
}

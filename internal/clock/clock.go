package clock

import "time"

// Clock abstracts time so deadline-driven flows (confirmation expiry,
// deferred channel removal) can be tested deterministically.
type Clock interface {
	Now() time.Time
	// AfterFunc waits for d, then calls f in its own goroutine. The
	// returned Timer cancels the pending call via Stop.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a scheduled call that can be cancelled.
type Timer interface {
	// Stop prevents the timer from firing. Returns false if it already
	// fired or was stopped.
	Stop() bool
}

type realClock struct{}

// New returns a Clock backed by the time package.
func New() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

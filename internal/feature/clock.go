package feature

import "time"

// Clock supplies the readings elapsed time is measured against.
// Durations are only ever computed as differences of two Now values, so a
// clock carrying a monotonic reading (time.Now does) is immune to wall
// clock jumps.
type Clock interface {
	Now() time.Time
}

// SystemClock reads time.Now.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// stopwatch accumulates time across start/stop cycles. Only intervals
// between start and stop count toward elapsed.
type stopwatch struct {
	clock   Clock
	running bool
	since   time.Time
	acc     time.Duration
}

func newStopwatch(clock Clock, running bool) *stopwatch {
	w := &stopwatch{clock: clock}
	if running {
		w.start()
	}
	return w
}

func (w *stopwatch) start() {
	if w.running {
		return
	}
	w.since = w.clock.Now()
	w.running = true
}

func (w *stopwatch) stop() {
	if !w.running {
		return
	}
	w.acc += w.clock.Now().Sub(w.since)
	w.running = false
}

func (w *stopwatch) elapsed() time.Duration {
	if w.running {
		return w.acc + w.clock.Now().Sub(w.since)
	}
	return w.acc
}

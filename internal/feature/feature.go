package feature

import (
	"errors"
	"time"
)

// Feature is one running measurement of a named operation within a
// context. It is a single-threaded state machine: a Feature and its steps
// must be driven from one goroutine.
//
// Lifecycle:
//
//	f := feature.StartNew("Agenda", "Load")
//	err := f.Step("query", func(s *feature.Step) error { ... })
//	entry, err := f.Finish("42 rows", time.Now())
//
// Finish and Fail are terminal; exactly one of them may succeed.
type Feature struct {
	clock   Clock
	context string
	name    string

	watch      *stopwatch
	paused     bool
	terminated bool

	open  []*Step // stack of steps begun but not ended
	steps []StepEntry
}

// StartNew begins measuring a feature on the system clock.
func StartNew(context, name string) *Feature {
	return New(SystemClock{}, context, name)
}

// New begins measuring a feature on clock.
func New(clock Clock, context, name string) *Feature {
	return &Feature{
		clock:   clock,
		context: context,
		name:    name,
		watch:   newStopwatch(clock, true),
	}
}

// Context returns the capture-site namespace.
func (f *Feature) Context() string { return f.context }

// Name returns the feature name.
func (f *Feature) Name() string { return f.name }

// TimeSpent returns the time accumulated while the feature was running.
// Paused intervals are excluded.
func (f *Feature) TimeSpent() time.Duration { return f.watch.elapsed() }

// Paused reports whether the feature is paused.
func (f *Feature) Paused() bool { return f.paused }

// Terminated reports whether Finish or Fail has succeeded.
func (f *Feature) Terminated() bool { return f.terminated }

// Depth returns the number of open steps.
func (f *Feature) Depth() int { return len(f.open) }

// Pause stops the clock of the feature and of every open step, for
// example while a confirmation dialog blocks. Pausing a paused or
// terminated feature does nothing.
func (f *Feature) Pause() {
	if f.paused || f.terminated {
		return
	}
	f.paused = true
	f.watch.stop()
	for _, s := range f.open {
		s.watch.stop()
	}
}

// Resume restarts the clocks stopped by Pause without resetting them.
func (f *Feature) Resume() {
	if !f.paused || f.terminated {
		return
	}
	f.paused = false
	f.watch.start()
	for _, s := range f.open {
		s.watch.start()
	}
}

// BeginStep opens a named sub-measurement nested under the innermost open
// step, if any. The returned token must be ended with End; prefer Step,
// which guarantees that.
func (f *Feature) BeginStep(name string) (*Step, error) {
	if f.terminated {
		return nil, f.misuse(ErrCodeAlreadyTerminated, name, "step begun after the feature terminated")
	}
	if n := len(f.open); n > 0 {
		f.open[n-1].hasChildren = true
	}
	s := &Step{
		feature: f,
		name:    name,
		level:   len(f.open),
		watch:   newStopwatch(f.clock, !f.paused),
	}
	f.open = append(f.open, s)
	return s, nil
}

// Step runs fn inside a step named name. The step is ended on every exit
// path, including a panic in fn. An error from ending the step is joined
// with fn's error.
func (f *Feature) Step(name string, fn func(*Step) error) (err error) {
	s, err := f.BeginStep(name)
	if err != nil {
		return err
	}
	defer func() {
		if endErr := s.End(); endErr != nil {
			err = errors.Join(err, endErr)
		}
	}()
	return fn(s)
}

// Steps returns the steps ended so far, in the order they ended.
func (f *Feature) Steps() []StepEntry {
	out := make([]StepEntry, len(f.steps))
	copy(out, f.steps)
	return out
}

// Finish terminates the feature successfully and returns its entry.
// Every step must have been ended.
func (f *Feature) Finish(details string, at time.Time) (Entry, error) {
	if f.terminated {
		return Entry{}, f.misuse(ErrCodeAlreadyTerminated, "", "feature already stopped or failed")
	}
	if n := len(f.open); n > 0 {
		return Entry{}, f.misuse(ErrCodeStepsOpen, f.open[n-1].name, "%d step(s) still open", n)
	}
	f.watch.stop()
	f.terminated = true
	return Entry{
		Context:   f.context,
		Name:      f.name,
		Details:   details,
		TimeSpent: f.watch.elapsed(),
		CreatedAt: at,
		Steps:     f.Steps(),
	}, nil
}

// Fail terminates the feature with cause and returns the failure record.
// Step measurements of this attempt, ended or open, are discarded.
func (f *Feature) Fail(cause error, at time.Time) (Failure, error) {
	if f.terminated {
		return Failure{}, f.misuse(ErrCodeAlreadyTerminated, "", "feature already stopped or failed")
	}
	f.watch.stop()
	f.terminated = true
	for _, s := range f.open {
		s.watch.stop()
		s.state = stepDiscarded
	}
	f.open = nil
	f.steps = nil

	message := "unknown error"
	if cause != nil {
		message = cause.Error()
	}
	return Failure{
		Context:    f.context,
		Name:       f.name,
		Message:    message,
		StackTrace: stackOf(cause),
		CreatedAt:  at,
	}, nil
}
